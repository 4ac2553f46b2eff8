package replay

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

type fakeSleeper struct {
	slept []time.Duration
}

func (fs *fakeSleeper) Sleep(d time.Duration) {
	fs.slept = append(fs.slept, d)
}

func TestReaderReadAll(t *testing.T) {
	in := strings.NewReader(`
# comment

START
0, 2447
10, b5 62
`)

	recs, err := NewReader(in).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll() error: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recs))
	}
	if recs[0].Data != nil {
		t.Fatalf("expected START marker (nil data), got %v", recs[0].Data)
	}
	if recs[1].At != 0 {
		t.Fatalf("expected At=0, got %s", recs[1].At)
	}
	if !reflect.DeepEqual(recs[1].Data, []byte("$G")) {
		t.Fatalf("unexpected chunk 1: %x", recs[1].Data)
	}
	if recs[2].At != 10*time.Nanosecond {
		t.Fatalf("expected At=10ns, got %s", recs[2].At)
	}
	if !reflect.DeepEqual(recs[2].Data, []byte{0xb5, 0x62}) {
		t.Fatalf("unexpected chunk 2: %x", recs[2].Data)
	}
}

func TestReaderReadAll_InvalidLines(t *testing.T) {
	cases := map[string]string{
		"MissingComma": "not-a-valid-line\n",
		"EmptyHex":     "5,\n",
		"BadTimestamp": "x,00\n",
		"Negative":     "-1,00\n",
		"BadHex":       "1,0g\n",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := NewReader(strings.NewReader(in)).ReadAll(); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestReadAll_ReportsLineNumber(t *testing.T) {
	_, err := NewReader(strings.NewReader("START\n1,00\nbogus\n")).ReadAll()
	if err == nil || !strings.Contains(err.Error(), "line 3") {
		t.Fatalf("err=%v", err)
	}
}

func TestPlay_RespectsTimingAndStart(t *testing.T) {
	chunks := make([][]byte, 0, 3)
	fs := &fakeSleeper{}

	recs := []Record{
		{At: 1 * time.Second, Data: nil},
		{At: 1 * time.Second, Data: []byte{0xAA}},
		{At: 1*time.Second + 100*time.Nanosecond, Data: []byte{0xBB}},
		{At: 2 * time.Second, Data: nil},
		{At: 2*time.Second + 50*time.Nanosecond, Data: []byte{0xCC}},
	}

	err := Play(recs, 1.0, false, fs, func(chunk []byte) error {
		chunks = append(chunks, append([]byte(nil), chunk...))
		return nil
	})
	if err != nil {
		t.Fatalf("Play() error: %v", err)
	}

	want := [][]byte{{0xAA}, {0xBB}, {0xCC}}
	if !reflect.DeepEqual(chunks, want) {
		t.Fatalf("chunks = %x, want %x", chunks, want)
	}
	if !reflect.DeepEqual(fs.slept, []time.Duration{100 * time.Nanosecond}) {
		t.Fatalf("slept = %v, want [100ns]", fs.slept)
	}
}

func TestPlay_SpeedMultiplier(t *testing.T) {
	fs := &fakeSleeper{}
	recs := []Record{
		{At: 0, Data: []byte{0x01}},
		{At: 100 * time.Nanosecond, Data: []byte{0x02}},
	}

	err := Play(recs, 2.0, false, fs, func(chunk []byte) error { return nil })
	if err != nil {
		t.Fatalf("Play() error: %v", err)
	}
	if !reflect.DeepEqual(fs.slept, []time.Duration{50 * time.Nanosecond}) {
		t.Fatalf("slept = %v, want [50ns]", fs.slept)
	}
}

func TestPlay_InvalidArgs(t *testing.T) {
	recs := []Record{{At: 0, Data: []byte{0x01}}}
	if err := Play(recs, 0, false, nil, func([]byte) error { return nil }); err == nil {
		t.Fatalf("expected speed error")
	}
	if err := Play(recs, 1, false, nil, nil); err == nil {
		t.Fatalf("expected callback error")
	}
	if err := Play(nil, 1, false, nil, func([]byte) error { return nil }); err == nil {
		t.Fatalf("expected no-records error")
	}
}

func TestPlay_LoopStopsOnCallbackError(t *testing.T) {
	stop := errors.New("stop")
	recs := []Record{{At: 0, Data: []byte{0x01}}}
	n := 0
	err := Play(recs, 1, true, &fakeSleeper{}, func([]byte) error {
		n++
		if n == 5 {
			return stop
		}
		return nil
	})
	if !errors.Is(err, stop) || n != 5 {
		t.Fatalf("err=%v n=%d", err, n)
	}
}

func TestWriter_WritesExpectedFormat(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "out.log")

	w, err := CreateWriter(path)
	if err != nil {
		t.Fatalf("CreateWriter() error: %v", err)
	}
	w.start = time.Unix(0, 0)

	if err := w.WriteChunk(time.Unix(0, 20), []byte{0x01, 0x02}); err != nil {
		t.Fatalf("WriteChunk() error: %v", err)
	}
	if err := w.WriteChunk(time.Unix(0, 30), nil); err != nil {
		t.Fatalf("WriteChunk(nil) error: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if err := w.WriteChunk(time.Unix(0, 40), []byte{0x03}); err == nil {
		t.Fatalf("expected error after Close")
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	if string(b) != "START\n20,0102\n" {
		t.Fatalf("unexpected file contents: %q", string(b))
	}
}

func TestPlayReader_StreamsChunks(t *testing.T) {
	recs := []Record{
		{Data: nil},
		{At: 0, Data: []byte("$GP")},
		{At: 5, Data: []byte("GGA")},
	}
	fs := &fakeSleeper{}
	pr := NewPlayReader(recs, 1, false, fs)
	defer pr.Close()

	b, err := io.ReadAll(pr)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(b, []byte("$GPGGA")) {
		t.Fatalf("got %q", b)
	}
	if _, err := pr.Write([]byte{1}); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("Write err=%v", err)
	}
}

func TestPlayReader_CloseStopsLoop(t *testing.T) {
	pr := NewPlayReader([]Record{{Data: []byte{0x24}}}, 1, true, &fakeSleeper{})
	buf := make([]byte, 1)
	if _, err := io.ReadFull(pr, buf); err != nil {
		t.Fatalf("ReadFull: %v", err)
	}
	if err := pr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := pr.Read(buf); !errors.Is(err, io.ErrClosedPipe) {
		t.Fatalf("Read after close err=%v", err)
	}
}
