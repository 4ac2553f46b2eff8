package ubx

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	Sync1 byte = 0xB5
	Sync2 byte = 0x62
)

const (
	ClassNAV byte = 0x01
	ClassACK byte = 0x05
	ClassCFG byte = 0x06
	ClassMON byte = 0x0A
)

// MessageType is the (class, id) pair that identifies a UBX message.
type MessageType struct {
	Class byte
	ID    byte
}

var (
	TypeAckNak = MessageType{ClassACK, 0x00}
	TypeAckAck = MessageType{ClassACK, 0x01}
	TypeCfgPms = MessageType{ClassCFG, 0x86}
	TypeMonVer = MessageType{ClassMON, 0x04}
)

var typeNames = map[MessageType]string{
	TypeAckNak: "ACK-NAK",
	TypeAckAck: "ACK-ACK",
	TypeCfgPms: "CFG-PMS",
	TypeMonVer: "MON-VER",
}

// String formats the type as "CC-II" in hex.
func (t MessageType) String() string {
	return fmt.Sprintf("%02X-%02X", t.Class, t.ID)
}

// Name returns the catalog name ("MON-VER") or the hex form when unknown.
func (t MessageType) Name() string {
	if n, ok := typeNames[t]; ok {
		return n
	}
	return t.String()
}

// ParseMessageType accepts "CC-II" hex pairs ("0A-04", "0x0a-0x04") or a
// catalog name ("MON-VER").
func ParseMessageType(s string) (MessageType, error) {
	s = strings.TrimSpace(s)
	for t, n := range typeNames {
		if strings.EqualFold(n, s) {
			return t, nil
		}
	}
	cls, id, ok := strings.Cut(s, "-")
	if !ok {
		return MessageType{}, fmt.Errorf("ubx: message type %q: want CLASS-ID", s)
	}
	c, err := parseHexByte(cls)
	if err != nil {
		return MessageType{}, fmt.Errorf("ubx: message type %q class: %w", s, err)
	}
	i, err := parseHexByte(id)
	if err != nil {
		return MessageType{}, fmt.Errorf("ubx: message type %q id: %w", s, err)
	}
	return MessageType{Class: c, ID: i}, nil
}

func parseHexByte(s string) (byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return 0, err
	}
	return byte(v), nil
}

// UnmarshalText lets MessageType be used directly in YAML config lists.
func (t *MessageType) UnmarshalText(b []byte) error {
	v, err := ParseMessageType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

func (t MessageType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}
