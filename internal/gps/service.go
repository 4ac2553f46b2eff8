package gps

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"gnsswire/internal/logging"
	"gnsswire/internal/ubx"
)

var (
	// ErrReadOnly is returned by Send when the source cannot reach the receiver.
	ErrReadOnly = errors.New("gps: source is read-only")
	// ErrNotConnected is returned by Send while no source is open.
	ErrNotConnected = errors.New("gps: not connected")
)

// Opener returns a byte stream to the receiver.
type Opener func(ctx context.Context) (io.ReadWriteCloser, error)

// ChunkRecorder captures raw read chunks. replay.Writer implements it.
type ChunkRecorder interface {
	WriteChunk(now time.Time, p []byte) error
}

// Config controls the receiver service.
//
// The u-blox receivers this targets typically appear as /dev/ttyACM* and
// emit NMEA at 9600 baud by default, interleaved with any UBX traffic that
// was polled or enabled.
type Config struct {
	// Source is "serial" or "gpsd". It is only a label when Open is set.
	Source   string
	Device   string
	Baud     int
	GPSDAddr string

	NMEABufferBytes int
	UBXPayloadBytes int

	// Poll lists message types requested once the source is open.
	Poll []ubx.MessageType

	// FixStaleAfter marks the fix stale when no GGA arrived for this long.
	// Zero selects 3s.
	FixStaleAfter time.Duration

	// Open overrides the source selected by Source.
	Open Opener
	// Record receives every read chunk before it is decoded. Optional.
	Record ChunkRecorder
	// Sentence receives every checksum-valid NMEA payload. Optional; the
	// slice is only valid during the call.
	Sentence func(payload []byte)
	// Frame receives every checksum-valid UBX frame. Optional; the payload
	// is only valid during the call.
	Frame func(ubx.Frame)
}

type Stats struct {
	BytesRead uint64 `json:"bytes_read"`
	Discarded uint64 `json:"discarded"`

	Sentences          uint64 `json:"sentences"`
	NMEAChecksumErrors uint64 `json:"nmea_checksum_errors"`
	NMEAOverflows      uint64 `json:"nmea_overflows"`
	NMEABadDigits      uint64 `json:"nmea_bad_digits"`
	DecodeErrors       uint64 `json:"decode_errors"`

	UBXFrames         uint64 `json:"ubx_frames"`
	UBXChecksumErrors uint64 `json:"ubx_checksum_errors"`
	UBXOverflows      uint64 `json:"ubx_overflows"`
	UBXSyncMisses     uint64 `json:"ubx_sync_misses"`
}

type Snapshot struct {
	Enabled  bool `json:"enabled"`
	Valid    bool `json:"valid"`
	FixStale bool `json:"fix_stale"`

	Source   string `json:"source,omitempty"`
	GPSDAddr string `json:"gpsd_addr,omitempty"`
	Device   string `json:"device,omitempty"`
	Baud     int    `json:"baud,omitempty"`

	// UTC is the GGA time of day in hundredths of a second.
	UTC          uint32  `json:"utc_cs"`
	LatDeg       float64 `json:"lat_deg"`
	LonDeg       float64 `json:"lon_deg"`
	FixQuality   int     `json:"fix_quality"`
	Satellites   int     `json:"satellites"`
	HDOP         float64 `json:"hdop"`
	AltitudeM    float64 `json:"altitude_m"`
	GeoidHeightM float64 `json:"geoid_height_m"`
	FixAgeSec    float64 `json:"fix_age_sec,omitempty"`
	LastFixUTC   string  `json:"last_fix_utc,omitempty"`

	SWVersion   string   `json:"sw_version,omitempty"`
	HWVersion   string   `json:"hw_version,omitempty"`
	Extensions  []string `json:"extensions,omitempty"`
	LastAck     string   `json:"last_ack,omitempty"`
	LastNak     string   `json:"last_nak,omitempty"`
	GPSDRelease string   `json:"gpsd_release,omitempty"`

	Stats     Stats  `json:"stats"`
	LastError string `json:"last_error,omitempty"`
}

type Service struct {
	cfg Config
	log *zap.Logger
	now func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup

	last atomic.Value // Snapshot

	mu   sync.Mutex
	conn io.ReadWriteCloser

	// writeMu keeps frames written to the device from interleaving.
	writeMu sync.Mutex
}

// New builds a service. A nil logger selects logging.GetLogger().
func New(cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = logging.GetLogger()
	}
	cfg.Source = strings.ToLower(strings.TrimSpace(cfg.Source))
	if cfg.Source == "" {
		cfg.Source = "serial"
	}
	if cfg.Baud == 0 {
		cfg.Baud = 9600
	}
	if cfg.Source == "gpsd" && strings.TrimSpace(cfg.GPSDAddr) == "" {
		cfg.GPSDAddr = gpsdDefaultAddr
	}
	if cfg.FixStaleAfter <= 0 {
		cfg.FixStaleAfter = 3 * time.Second
	}
	s := &Service{cfg: cfg, log: logger, now: time.Now}
	s.last.Store(s.baseSnapshot())
	return s
}

func (s *Service) baseSnapshot() Snapshot {
	out := Snapshot{Enabled: true, Source: s.cfg.Source}
	switch s.cfg.Source {
	case "gpsd":
		out.GPSDAddr = s.cfg.GPSDAddr
		out.Device = s.cfg.Device
	default:
		out.Device = s.cfg.Device
		out.Baud = s.cfg.Baud
	}
	return out
}

// Start opens the source and begins decoding in the background. Serial and
// custom sources are opened synchronously so that open errors are returned;
// gpsd is dialled in the background and redialled with backoff.
func (s *Service) Start(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("gps service is nil")
	}
	if ctx == nil {
		return fmt.Errorf("ctx is nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return nil
	}

	childCtx, cancel := context.WithCancel(ctx)

	if s.cfg.Open == nil && s.cfg.Source == "gpsd" {
		s.cancel = cancel
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runGPSD(childCtx)
		}()
		return nil
	}

	open := s.cfg.Open
	if open == nil {
		if s.cfg.Source != "serial" {
			cancel()
			return fmt.Errorf("gps: unknown source %q", s.cfg.Source)
		}
		open = s.openSerial
	}
	conn, err := open(childCtx)
	if err != nil {
		cancel()
		s.setErrorLocked(err.Error())
		return err
	}
	s.cancel = cancel
	s.conn = conn

	s.log.Info("gps enabled",
		zap.String("source", s.cfg.Source),
		zap.String("device", s.cfg.Device),
		zap.Int("baud", s.cfg.Baud),
	)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() { _ = conn.Close() }()
		rx := newReceiver(s)
		s.pollConfigured(conn)
		err := s.pump(childCtx, conn, rx)
		if childCtx.Err() == nil {
			rx.lastErr = fmt.Sprintf("gps read stopped: %v", err)
			s.publish(rx)
			s.log.Warn("gps read stopped", zap.Error(err))
		}
	}()
	return nil
}

func (s *Service) openSerial(context.Context) (io.ReadWriteCloser, error) {
	device := strings.TrimSpace(s.cfg.Device)
	if device == "" {
		device = autoDetectDevice()
		if device == "" {
			return nil, fmt.Errorf("gps auto-detect failed: no /dev/ttyACM* or /dev/ttyUSB* found")
		}
		s.cfg.Device = device
	}
	f, err := openSerial(device, s.cfg.Baud)
	if err != nil {
		return nil, fmt.Errorf("gps open failed device=%s baud=%d: %w", device, s.cfg.Baud, err)
	}
	return f, nil
}

const (
	gpsdMinBackoff = 250 * time.Millisecond
	gpsdMaxBackoff = 10 * time.Second
)

func (s *Service) runGPSD(ctx context.Context) {
	s.log.Info("gps enabled", zap.String("source", "gpsd"), zap.String("addr", s.cfg.GPSDAddr))
	rx := newReceiver(s)
	backoff := gpsdMinBackoff

	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := dialGPSD(ctx, s.cfg.GPSDAddr)
		if err == nil {
			var gc gpsdConn
			var ver gpsdVersion
			gc, ver, err = gpsdHandshake(conn, s.cfg.Device, 2*time.Second)
			if err != nil {
				_ = conn.Close()
			} else {
				backoff = gpsdMinBackoff
				rx.stream.Reset()
				rx.gpsdRelease = ver.Release
				s.log.Info("gpsd connected",
					zap.String("addr", s.cfg.GPSDAddr),
					zap.String("release", ver.Release),
				)
				s.mu.Lock()
				if ctx.Err() != nil {
					// Close already ran and would not see this conn.
					s.mu.Unlock()
					_ = gc.Close()
					return
				}
				// Swap the conn so Close() can interrupt an active connection.
				s.conn = gc
				s.mu.Unlock()

				err = s.pump(ctx, gc, rx)
				_ = gc.Close()
				s.mu.Lock()
				s.conn = nil
				s.mu.Unlock()
				if ctx.Err() != nil {
					return
				}
				err = fmt.Errorf("gpsd read stopped: %w", err)
			}
		}

		rx.lastErr = err.Error()
		s.publish(rx)
		s.log.Warn("gpsd connection failed", zap.String("addr", s.cfg.GPSDAddr), zap.Error(err))
		select {
		case <-ctx.Done():
			return
		case <-time.After(min(backoff, gpsdMaxBackoff)):
		}
		if backoff < gpsdMaxBackoff {
			backoff *= 2
		}
	}
}

const readBufferSize = 512

// pump reads chunks until the source fails or ctx is cancelled. Each chunk
// is recorded, then fed to the dispatcher, then the snapshot is republished.
func (s *Service) pump(ctx context.Context, r io.Reader, rx *receiver) error {
	buf := make([]byte, readBufferSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			if s.cfg.Record != nil {
				if rerr := s.cfg.Record.WriteChunk(s.now(), chunk); rerr != nil {
					s.log.Warn("gps record failed", zap.Error(rerr))
				}
			}
			logging.LogRawBytes("gps rx", chunk)
			rx.bytesRead += uint64(n)
			rx.stream.Write(chunk)
			s.publish(rx)
		}
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (s *Service) pollConfigured(w io.Writer) {
	for _, t := range s.cfg.Poll {
		if err := s.poll(w, t); err != nil {
			s.log.Warn("gps poll failed", zap.Stringer("type", t), zap.Error(err))
		}
	}
}

// Poll asks the receiver to report message t.
func (s *Service) Poll(t ubx.MessageType) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	return s.poll(conn, t)
}

func (s *Service) poll(w io.Writer, t ubx.MessageType) error {
	frame, err := ubx.AppendFrame(nil, t, nil)
	if err != nil {
		return err
	}
	if err := s.write(w, frame); err != nil {
		return fmt.Errorf("gps: poll %s: %w", t.Name(), err)
	}
	logging.LogUBXFrame("tx", ubx.Frame{Type: t})
	return nil
}

// Send writes an encoded frame to the receiver.
func (s *Service) Send(frame []byte) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	if err := s.write(conn, frame); err != nil {
		return fmt.Errorf("gps: send: %w", err)
	}
	return nil
}

func (s *Service) write(w io.Writer, frame []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err := w.Write(frame)
	return err
}

func (s *Service) Close() {
	if s == nil {
		return
	}
	s.mu.Lock()
	cancel := s.cancel
	conn := s.conn
	s.cancel = nil
	s.conn = nil
	// Cancel under mu so runGPSD cannot publish a conn after this point.
	if cancel != nil {
		cancel()
	}
	s.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	s.wg.Wait()
}

// Snapshot returns the latest published state. FixStale and FixAgeSec are
// computed at call time.
func (s *Service) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	v := s.last.Load()
	if v == nil {
		return Snapshot{}
	}
	snap := v.(Snapshot)
	if snap.LastFixUTC != "" {
		if last, err := time.Parse(time.RFC3339Nano, snap.LastFixUTC); err == nil {
			age := s.now().Sub(last)
			snap.FixAgeSec = age.Seconds()
			snap.FixStale = age > s.cfg.FixStaleAfter
		}
	}
	return snap
}

func (s *Service) publish(rx *receiver) {
	s.last.Store(rx.snapshot())
}

func (s *Service) setErrorLocked(msg string) {
	cur := s.Snapshot()
	cur.LastError = msg
	// Do not force Valid=false here; transient issues shouldn't flip validity.
	s.last.Store(cur)
}

func autoDetectDevice() string {
	// Keep it intentionally tiny and predictable.
	candidates := []string{}
	for i := 0; i < 10; i++ {
		candidates = append(candidates, fmt.Sprintf("/dev/ttyACM%d", i))
	}
	for i := 0; i < 10; i++ {
		candidates = append(candidates, fmt.Sprintf("/dev/ttyUSB%d", i))
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
