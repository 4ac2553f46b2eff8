package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
)

func TestEventBuffer_JoinsPartialLines(t *testing.T) {
	b := NewEventBuffer(10)
	_, _ = b.Write([]byte("UBX ACK-ACK CFG-PMS\nNMEA GP"))
	lines, _ := b.Snapshot(0)
	if !reflect.DeepEqual(lines, []string{"UBX ACK-ACK CFG-PMS"}) {
		t.Fatalf("lines=%q", lines)
	}

	_, _ = b.Write([]byte("GSV,1,1,00\r\n\n"))
	lines, _ = b.Snapshot(0)
	if !reflect.DeepEqual(lines, []string{"UBX ACK-ACK CFG-PMS", "NMEA GPGSV,1,1,00"}) {
		t.Fatalf("lines=%q", lines)
	}
}

func TestEventBuffer_DropsOldest(t *testing.T) {
	b := NewEventBuffer(2)
	_, _ = b.Write([]byte("a\nb\nc\n"))
	lines, dropped := b.Snapshot(10)
	if !reflect.DeepEqual(lines, []string{"b", "c"}) || dropped != 1 {
		t.Fatalf("lines=%q dropped=%d", lines, dropped)
	}
	lines, _ = b.Snapshot(1)
	if !reflect.DeepEqual(lines, []string{"c"}) {
		t.Fatalf("tail lines=%q", lines)
	}
}

func TestAPIEvents(t *testing.T) {
	b := NewEventBuffer(2)
	_, _ = b.Write([]byte("one\ntwo\nthree\n"))
	ts := httptest.NewServer(Handler(nil, nil, b, nil))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/events?tail=5")
	if err != nil {
		t.Fatalf("get events: %v", err)
	}
	var out EventsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	resp.Body.Close()
	if !reflect.DeepEqual(out.Lines, []string{"two", "three"}) || out.Dropped != 1 {
		t.Fatalf("resp=%+v", out)
	}

	resp, err = http.Get(ts.URL + "/api/events?format=text&tail=1")
	if err != nil {
		t.Fatalf("get events text: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "[dropped=1]\nthree\n" {
		t.Fatalf("body=%q", body)
	}

	resp, err = http.Get(ts.URL + "/api/events?tail=0")
	if err != nil {
		t.Fatalf("get events: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status code=%d", resp.StatusCode)
	}
}
