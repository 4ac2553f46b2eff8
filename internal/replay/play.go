package replay

import (
	"errors"
	"fmt"
	"io"
	"time"
)

type Sleeper interface {
	Sleep(d time.Duration)
}

type realSleeper struct{}

func (realSleeper) Sleep(d time.Duration) { time.Sleep(d) }

// Play replays records with their relative timing.
//
// cb is invoked for each record that carries data. START markers reset the
// origin.
//
// speedMultiplier: 1.0 = real time, 2.0 = 2x speed (half waits), 0.5 = half speed.
func Play(records []Record, speedMultiplier float64, loop bool, sleeper Sleeper, cb func(chunk []byte) error) error {
	if speedMultiplier <= 0 {
		return fmt.Errorf("replay: speed must be > 0")
	}
	if sleeper == nil {
		sleeper = realSleeper{}
	}
	if cb == nil {
		return errors.New("replay: callback is nil")
	}
	if len(records) == 0 {
		return errors.New("replay: no records")
	}

	for {
		var origin time.Duration
		var lastAt time.Duration
		var haveLast bool

		for _, r := range records {
			if r.Data == nil {
				// START marker.
				origin = r.At
				lastAt = 0
				haveLast = false
				continue
			}

			at := r.At - origin
			if at < 0 {
				at = 0
			}
			if haveLast {
				wait := at - lastAt
				if wait < 0 {
					wait = 0
				}
				wait = time.Duration(float64(wait) / speedMultiplier)
				if wait > 0 {
					sleeper.Sleep(wait)
				}
			}

			if err := cb(r.Data); err != nil {
				return err
			}

			lastAt = at
			haveLast = true
		}

		if !loop {
			return nil
		}
	}
}

// NewPlayReader plays records in a goroutine and exposes the chunks as a
// byte stream. Closing the reader stops playback at the next chunk. Writes
// are rejected so the result can stand in for a receiver connection.
func NewPlayReader(records []Record, speedMultiplier float64, loop bool, sleeper Sleeper) *PlayReader {
	pr, pw := io.Pipe()
	go func() {
		err := Play(records, speedMultiplier, loop, sleeper, func(chunk []byte) error {
			_, err := pw.Write(chunk)
			return err
		})
		_ = pw.CloseWithError(err)
	}()
	return &PlayReader{r: pr}
}

// ErrReadOnly is returned by PlayReader.Write.
var ErrReadOnly = errors.New("replay: capture source is read-only")

type PlayReader struct {
	r *io.PipeReader
}

func (p *PlayReader) Read(b []byte) (int, error) { return p.r.Read(b) }

func (p *PlayReader) Write([]byte) (int, error) { return 0, ErrReadOnly }

func (p *PlayReader) Close() error { return p.r.Close() }
