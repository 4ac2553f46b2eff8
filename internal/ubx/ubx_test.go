package ubx

import (
	"bytes"
	"encoding/hex"
	"errors"
	"reflect"
	"testing"
)

// ubxFrame builds a frame with an independently computed checksum.
func ubxFrame(class, id byte, payload []byte) []byte {
	body := append([]byte{class, id, byte(len(payload)), byte(len(payload) >> 8)}, payload...)
	var a, b byte
	for _, c := range body {
		a += c
		b += a
	}
	out := append([]byte{0xB5, 0x62}, body...)
	return append(out, a, b)
}

type frameRecord struct {
	Type    MessageType
	Payload []byte
}

type framerRecorder struct {
	frames []frameRecord
	errs   []Error
}

func (r *framerRecorder) handler() FrameHandler {
	return FrameHandler{
		Frame: func(f Frame) {
			r.frames = append(r.frames, frameRecord{Type: f.Type, Payload: append([]byte{}, f.Payload...)})
		},
		Error: func(e *Error) { r.errs = append(r.errs, *e) },
	}
}

func TestFramer_AckAckZeroLength(t *testing.T) {
	var rec framerRecorder
	f := NewFramer(0, rec.handler())
	f.Write([]byte("\xB5\x62\x05\x01\x00\x00\x06\x17"))

	if len(rec.frames) != 1 {
		t.Fatalf("frames=%d errs=%v", len(rec.frames), rec.errs)
	}
	if rec.frames[0].Type != TypeAckAck || len(rec.frames[0].Payload) != 0 {
		t.Fatalf("frame=%+v", rec.frames[0])
	}
	if f.State() != StateIdle {
		t.Fatalf("state=%s", f.State())
	}
}

func TestFramer_CfgPmsPoll(t *testing.T) {
	var rec framerRecorder
	f := NewFramer(0, rec.handler())
	f.Write([]byte("\xB5b\x06\x86\x00\x00\x8C\xAA"))
	if len(rec.frames) != 1 || rec.frames[0].Type != TypeCfgPms {
		t.Fatalf("frames=%+v errs=%v", rec.frames, rec.errs)
	}
}

func TestFramer_PayloadFrame(t *testing.T) {
	var rec framerRecorder
	f := NewFramer(0, rec.handler())
	payload := []byte{0x06, 0x86}
	f.Write(append([]byte("junk"), ubxFrame(0x05, 0x00, payload)...))

	if len(rec.frames) != 1 {
		t.Fatalf("frames=%d errs=%v", len(rec.frames), rec.errs)
	}
	if rec.frames[0].Type != TypeAckNak || !bytes.Equal(rec.frames[0].Payload, payload) {
		t.Fatalf("frame=%+v", rec.frames[0])
	}
}

func TestFramer_CorruptedByteReportsBadChecksum(t *testing.T) {
	good := ubxFrame(0x0A, 0x04, []byte("ROM CORE 3.01"))
	// Every byte after the sync pair and before the checksum.
	for i := 2; i < len(good)-2; i++ {
		if i == 4 || i == 5 {
			// Corrupting the length changes framing, covered separately.
			continue
		}
		b := append([]byte{}, good...)
		b[i] ^= 0x40
		var rec framerRecorder
		f := NewFramer(0, rec.handler())
		f.Write(b)
		if len(rec.frames) != 0 {
			t.Fatalf("byte %d: corrupted frame delivered", i)
		}
		if len(rec.errs) != 1 || rec.errs[0].Kind != BadChecksum {
			t.Fatalf("byte %d: errs=%v", i, rec.errs)
		}
	}
}

func TestFramer_ChecksumByteMismatch(t *testing.T) {
	for _, idx := range []int{6, 7} {
		b := []byte("\xB5\x62\x05\x01\x00\x00\x06\x17")
		b[idx]++
		var rec framerRecorder
		f := NewFramer(0, rec.handler())
		f.Write(b)
		if len(rec.frames) != 0 || len(rec.errs) != 1 {
			t.Fatalf("idx %d: frames=%d errs=%v", idx, len(rec.frames), rec.errs)
		}
		want := Error{Type: TypeAckAck, Length: 0, Kind: BadChecksum}
		if rec.errs[0] != want {
			t.Fatalf("err=%+v want %+v", rec.errs[0], want)
		}
	}
}

func TestFramer_OverflowReportsCapacity(t *testing.T) {
	var rec framerRecorder
	f := NewFramer(16, rec.handler())
	f.Write(ubxFrame(0x0A, 0x04, make([]byte, 17))[:6])

	if len(rec.errs) != 1 {
		t.Fatalf("errs=%v", rec.errs)
	}
	want := Error{Type: TypeMonVer, Length: 16, Kind: BufferOverflow}
	if rec.errs[0] != want {
		t.Fatalf("err=%+v want %+v", rec.errs[0], want)
	}
	if f.State() != StateIdle {
		t.Fatalf("state=%s", f.State())
	}

	// A payload exactly at capacity is accepted.
	f.Write(ubxFrame(0x0A, 0x04, make([]byte, 16)))
	if len(rec.frames) != 1 {
		t.Fatalf("frames=%d errs=%v", len(rec.frames), rec.errs)
	}
}

func TestFramer_Sync2MissReturnsIdle(t *testing.T) {
	var rec framerRecorder
	f := NewFramer(0, rec.handler())
	f.Feed(0xB5)
	f.Feed(0xB5)
	if f.State() != StateIdle {
		t.Fatalf("state=%s want idle", f.State())
	}
	f.Write(ubxFrame(0x05, 0x01, nil))
	if len(rec.frames) != 1 || f.Stats().SyncMisses != 1 {
		t.Fatalf("frames=%d stats=%+v", len(rec.frames), f.Stats())
	}
}

func TestFramer_CapacityClamp(t *testing.T) {
	if c := NewFramer(1<<20, FrameHandler{}).Capacity(); c != MaxPayload {
		t.Fatalf("capacity=%d", c)
	}
	if c := NewFramer(-1, FrameHandler{}).Capacity(); c != DefaultCapacity {
		t.Fatalf("capacity=%d", c)
	}
}

type byteSink struct {
	bytes.Buffer
	failAfter int
	err       error
}

func (s *byteSink) WriteByte(c byte) error {
	if s.err != nil && s.Len() >= s.failAfter {
		return s.err
	}
	return s.Buffer.WriteByte(c)
}

func TestEncode_AckAck(t *testing.T) {
	var sink byteSink
	if err := Encode(&sink, TypeAckAck, nil); err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	if got := sink.Bytes(); !bytes.Equal(got, []byte("\xB5\x62\x05\x01\x00\x00\x06\x17")) {
		t.Fatalf("frame=%x", got)
	}
}

func TestEncode_AckAckPayload(t *testing.T) {
	var sink byteSink
	if err := Encode(&sink, TypeAckAck, []byte{0x06, 0x86}); err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	if got := hex.EncodeToString(sink.Bytes()); got != "b56205010200068694bd" {
		t.Fatalf("frame=%s", got)
	}
}

func TestChecksum_UpdateBytesMatchesUpdate(t *testing.T) {
	p := []byte{0x05, 0x01, 0x02, 0x00, 0x06, 0x86}
	var one, many Checksum
	for _, b := range p {
		one.Update(b)
	}
	many.UpdateBytes(p)
	if one != many {
		t.Fatalf("UpdateBytes=%+v Update=%+v", many, one)
	}
	if !many.Match(0x94, 0xBD) {
		t.Fatalf("checksum=%02X %02X want 94 BD", many.A, many.B)
	}
	many.Reset()
	if many != (Checksum{}) {
		t.Fatalf("Reset left %+v", many)
	}
}

func TestEncodePoll(t *testing.T) {
	cases := []struct {
		t    MessageType
		want string
	}{
		{TypeMonVer, "b5620a0400000e34"},
		{TypeCfgPms, "b562068600008caa"},
	}
	for _, tc := range cases {
		var sink byteSink
		if err := EncodePoll(&sink, tc.t); err != nil {
			t.Fatalf("EncodePoll(%s) error: %v", tc.t, err)
		}
		if got := hex.EncodeToString(sink.Bytes()); got != tc.want {
			t.Fatalf("EncodePoll(%s)=%s want %s", tc.t, got, tc.want)
		}
	}

	var sink byteSink
	if err := Poll[MonVer](&sink); err != nil {
		t.Fatalf("Poll() error: %v", err)
	}
	if got := hex.EncodeToString(sink.Bytes()); got != "b5620a0400000e34" {
		t.Fatalf("Poll[MonVer]=%s", got)
	}
}

func TestEncode_SinkErrorAborts(t *testing.T) {
	boom := errors.New("boom")
	sink := &byteSink{failAfter: 3, err: boom}
	err := Encode(sink, TypeMonVer, []byte{1, 2, 3})
	if !errors.Is(err, boom) {
		t.Fatalf("err=%v want %v", err, boom)
	}
	if sink.Len() != 3 {
		t.Fatalf("wrote %d bytes before failing, want 3", sink.Len())
	}
}

func TestEncode_PayloadTooLarge(t *testing.T) {
	var sink byteSink
	if err := Encode(&sink, TypeMonVer, make([]byte, MaxPayload+1)); !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("err=%v", err)
	}
	if sink.Len() != 0 {
		t.Fatalf("expected nothing written, got %d bytes", sink.Len())
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	payloads := [][]byte{
		nil,
		{0x00},
		bytes.Repeat([]byte{0xB5, 0x62}, 40),
		bytes.Repeat([]byte{0xFF}, 255),
		bytes.Repeat([]byte("$GPGGA*"), 30),
	}
	types := []MessageType{TypeAckAck, TypeMonVer, {0x01, 0x07}, {0xFF, 0xFF}}

	for _, mt := range types {
		for _, p := range payloads {
			frame, err := AppendFrame(nil, mt, p)
			if err != nil {
				t.Fatalf("AppendFrame() error: %v", err)
			}
			if want := ubxFrame(mt.Class, mt.ID, p); !bytes.Equal(frame, want) {
				t.Fatalf("%s: frame=%x want %x", mt, frame, want)
			}

			var rec framerRecorder
			f := NewFramer(len(p), rec.handler())
			f.Write(frame)
			if len(rec.frames) != 1 || len(rec.errs) != 0 {
				t.Fatalf("%s len=%d: frames=%d errs=%v", mt, len(p), len(rec.frames), rec.errs)
			}
			got := rec.frames[0]
			if got.Type != mt || !bytes.Equal(got.Payload, p) {
				t.Fatalf("%s: round trip got %+v", mt, got)
			}
		}
	}
}

const monVerHex = "524f4d20434f524520332e303120283130373838382900000000000000003030" +
	"303830303030000046575645523d53504720332e303100000000000000000000" +
	"00000000000050524f545645523d31382e303000000000000000000000000000" +
	"000000004750533b474c4f3b47414c3b42445300000000000000000000000000" +
	"0000534241533b494d45533b515a535300000000000000000000000000000000"

var monVerWant = MonVer{
	SWVersion: "ROM CORE 3.01 (107888)",
	HWVersion: "00080000",
	Extensions: []string{
		"FWVER=SPG 3.01",
		"PROTVER=18.00",
		"GPS;GLO;GAL;BDS",
		"SBAS;IMES;QZSS",
	},
}

func TestRecords_MonVerLayout(t *testing.T) {
	payload, _ := hex.DecodeString(monVerHex)
	if len(payload) != 160 {
		t.Fatalf("fixture length=%d", len(payload))
	}
	recs, err := NewRecords(payload, 40, 30)
	if err != nil {
		t.Fatalf("NewRecords() error: %v", err)
	}
	if recs.Len() != 4 {
		t.Fatalf("records=%d want 4", recs.Len())
	}
	n := 0
	for {
		rec, ok := recs.Next()
		if !ok {
			break
		}
		if len(rec) != 30 || cap(rec) != 30 {
			t.Fatalf("record %d len=%d cap=%d", n, len(rec), cap(rec))
		}
		n++
	}
	if n != 4 || recs.Remaining() != 0 {
		t.Fatalf("iterated %d, remaining %d", n, recs.Remaining())
	}
	if _, ok := recs.Next(); ok {
		t.Fatalf("exhausted view yielded a record")
	}

	for i, want := range []int{40, 70, 100, 160} {
		if got := SizeFor(40, 30, []int{0, 1, 2, 4}[i]); got != want {
			t.Fatalf("SizeFor(%d)=%d want %d", i, got, want)
		}
	}
}

func TestRecords_PartialRecordIgnored(t *testing.T) {
	recs, err := NewRecords(make([]byte, 40+30*2+29), 40, 30)
	if err != nil {
		t.Fatalf("NewRecords() error: %v", err)
	}
	if recs.Len() != 2 {
		t.Fatalf("records=%d want 2", recs.Len())
	}
}

func TestRecords_Errors(t *testing.T) {
	if _, err := NewRecords(make([]byte, 39), 40, 30); !errors.Is(err, ErrShortBuffer) {
		t.Fatalf("err=%v want ErrShortBuffer", err)
	}
	if _, err := NewRecords(make([]byte, 40), 40, 0); err == nil {
		t.Fatalf("expected error for zero record size")
	}
	recs, err := NewRecords(make([]byte, 40), 40, 30)
	if err != nil || recs.Len() != 0 {
		t.Fatalf("header-only: len=%v err=%v", recs, err)
	}
}

func TestMonVer_DecodeAndMarshal(t *testing.T) {
	payload, _ := hex.DecodeString(monVerHex)
	got, err := DecodeMonVer(payload)
	if err != nil {
		t.Fatalf("DecodeMonVer() error: %v", err)
	}
	if !reflect.DeepEqual(got, monVerWant) {
		t.Fatalf("MonVer=%+v want %+v", got, monVerWant)
	}

	out, err := monVerWant.MarshalUBX()
	if err != nil {
		t.Fatalf("MarshalUBX() error: %v", err)
	}
	if !bytes.Equal(out, payload) {
		t.Fatalf("MarshalUBX()=%x\nwant %x", out, payload)
	}
}

func TestMonVer_MarshalRejectsLongStrings(t *testing.T) {
	m := MonVer{SWVersion: "x", HWVersion: "0123456789A"}
	if _, err := m.MarshalUBX(); err == nil {
		t.Fatalf("expected error")
	}
}

func TestMonVer_EncodeMessageThroughFramer(t *testing.T) {
	var sink byteSink
	if err := EncodeMessage(&sink, monVerWant); err != nil {
		t.Fatalf("EncodeMessage() error: %v", err)
	}

	var got MonVer
	r := NewRouter()
	r.Handle(TypeMonVer, func(f Frame) {
		var err error
		if got, err = DecodeMonVer(f.Payload); err != nil {
			t.Fatalf("DecodeMonVer() error: %v", err)
		}
	})
	f := NewFramer(0, FrameHandler{Frame: r.HandleFrame})
	f.Write(sink.Bytes())
	if !reflect.DeepEqual(got, monVerWant) {
		t.Fatalf("MonVer=%+v", got)
	}
}

func TestDecodeAck(t *testing.T) {
	a, err := DecodeAck(Frame{Type: TypeAckNak, Payload: []byte{0x06, 0x86}})
	if err != nil {
		t.Fatalf("DecodeAck() error: %v", err)
	}
	if !a.Nak || a.Acked != TypeCfgPms || a.MessageType() != TypeAckNak {
		t.Fatalf("ack=%+v", a)
	}
	if _, err := DecodeAck(Frame{Type: TypeAckAck, Payload: []byte{0x06}}); err == nil {
		t.Fatalf("expected short payload error")
	}
	if _, err := DecodeAck(Frame{Type: TypeMonVer, Payload: []byte{0x06, 0x86}}); err == nil {
		t.Fatalf("expected wrong type error")
	}
}

func TestParseMessageType(t *testing.T) {
	cases := map[string]MessageType{
		"0A-04":     TypeMonVer,
		"0x06-0x86": TypeCfgPms,
		"mon-ver":   TypeMonVer,
		"ACK-ACK":   TypeAckAck,
		"01-07":     {0x01, 0x07},
	}
	for in, want := range cases {
		got, err := ParseMessageType(in)
		if err != nil || got != want {
			t.Fatalf("ParseMessageType(%q)=%v,%v want %v", in, got, err, want)
		}
	}
	for _, in := range []string{"", "0A", "0A-", "100-01", "zz-01"} {
		if _, err := ParseMessageType(in); err == nil {
			t.Fatalf("ParseMessageType(%q) expected error", in)
		}
	}
	if TypeMonVer.String() != "0A-04" || TypeMonVer.Name() != "MON-VER" || (MessageType{1, 7}).Name() != "01-07" {
		t.Fatalf("String/Name mismatch")
	}
}
