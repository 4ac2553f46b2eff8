// Package metrics exposes receiver counters and fix state as Prometheus
// metrics. Values are read from snapshots at scrape time.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gnsswire/internal/gps"
	"gnsswire/internal/pps"
)

const DefaultNamespace = "gnsswire"

// Sources supplies the values behind the metrics. GPS is required; the
// others are registered only when set.
type Sources struct {
	GPS       func() gps.Snapshot
	PPS       func() pps.Snapshot
	Forwarded func() uint64
}

// Metrics owns a private registry so several instances can coexist.
type Metrics struct {
	reg *prometheus.Registry
}

func New(namespace string, src Sources) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	stat := func(get func(gps.Stats) uint64) func() float64 {
		return func() float64 { return float64(get(src.GPS().Stats)) }
	}
	counter := func(name, help string, labels prometheus.Labels, fn func() float64) {
		f.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		}, fn)
	}
	gauge := func(name, help string, fn func() float64) {
		f.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, fn)
	}

	counter("bytes_read_total", "Bytes read from the receiver", nil,
		stat(func(s gps.Stats) uint64 { return s.BytesRead }))
	counter("discarded_bytes_total", "Bytes dropped between frames", nil,
		stat(func(s gps.Stats) uint64 { return s.Discarded }))
	counter("nmea_sentences_total", "Checksum-valid NMEA sentences", nil,
		stat(func(s gps.Stats) uint64 { return s.Sentences }))
	counter("ubx_frames_total", "Checksum-valid UBX frames", nil,
		stat(func(s gps.Stats) uint64 { return s.UBXFrames }))

	frameErrors := []struct {
		protocol, kind string
		get            func(gps.Stats) uint64
	}{
		{"nmea", "checksum", func(s gps.Stats) uint64 { return s.NMEAChecksumErrors }},
		{"nmea", "overflow", func(s gps.Stats) uint64 { return s.NMEAOverflows }},
		{"nmea", "bad_digit", func(s gps.Stats) uint64 { return s.NMEABadDigits }},
		{"nmea", "decode", func(s gps.Stats) uint64 { return s.DecodeErrors }},
		{"ubx", "checksum", func(s gps.Stats) uint64 { return s.UBXChecksumErrors }},
		{"ubx", "overflow", func(s gps.Stats) uint64 { return s.UBXOverflows }},
		{"ubx", "sync_miss", func(s gps.Stats) uint64 { return s.UBXSyncMisses }},
	}
	for _, fe := range frameErrors {
		counter("frame_errors_total", "Rejected frames by protocol and kind",
			prometheus.Labels{"protocol": fe.protocol, "kind": fe.kind}, stat(fe.get))
	}

	gauge("fix_valid", "1 when the last GGA reported a usable fix", func() float64 {
		if src.GPS().Valid {
			return 1
		}
		return 0
	})
	gauge("fix_stale", "1 when no fix arrived within the stale window", func() float64 {
		if src.GPS().FixStale {
			return 1
		}
		return 0
	})
	gauge("fix_age_seconds", "Seconds since the last valid fix", func() float64 { return src.GPS().FixAgeSec })
	gauge("satellites", "Satellites used in the last GGA", func() float64 { return float64(src.GPS().Satellites) })
	gauge("hdop", "Horizontal dilution of precision from the last GGA", func() float64 { return src.GPS().HDOP })

	if src.PPS != nil {
		counter("pps_pulses_total", "Timepulse rising edges", nil,
			func() float64 { return float64(src.PPS().Count) })
		counter("pps_missed_total", "Timepulse edges skipped by the kernel", nil,
			func() float64 { return float64(src.PPS().Missed) })
	}
	if src.Forwarded != nil {
		counter("forwarded_datagrams_total", "NMEA sentences forwarded over UDP", nil,
			func() float64 { return float64(src.Forwarded()) })
	}

	return &Metrics{reg: reg}
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}
