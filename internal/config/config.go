package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"gnsswire/internal/logging"
	"gnsswire/internal/ubx"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "GNSSWIRE_"

const (
	SourceSerial = "serial"
	SourceGPSD   = "gpsd"

	DefaultBaud     = 9600
	DefaultGPSDAddr = "127.0.0.1:2947"
	DefaultBuffer   = 256
	DefaultPPSChip  = "/dev/gpiochip0"
	DefaultListen   = "127.0.0.1:8080"
	DefaultEvents   = 1000
)

type Config struct {
	GPS     GPSConfig     `yaml:"gps" envPrefix:"GPS_"`
	Record  RecordConfig  `yaml:"record" envPrefix:"RECORD_"`
	Replay  ReplayConfig  `yaml:"replay" envPrefix:"REPLAY_"`
	Forward ForwardConfig `yaml:"forward" envPrefix:"FORWARD_"`
	PPS     PPSConfig     `yaml:"pps" envPrefix:"PPS_"`
	HTTP    HTTPConfig    `yaml:"http" envPrefix:"HTTP_"`
	Log     LogConfig     `yaml:"log" envPrefix:"LOG_"`
}

type GPSConfig struct {
	Source          string            `yaml:"source" env:"SOURCE"`
	Device          string            `yaml:"device" env:"DEVICE"`
	Baud            int               `yaml:"baud" env:"BAUD"`
	GPSDAddr        string            `yaml:"gpsd_addr" env:"GPSD_ADDR"`
	NMEABufferBytes int               `yaml:"nmea_buffer_bytes" env:"NMEA_BUFFER_BYTES"`
	UBXPayloadBytes int               `yaml:"ubx_payload_bytes" env:"UBX_PAYLOAD_BYTES"`
	Poll            []ubx.MessageType `yaml:"poll"`
}

type RecordConfig struct {
	Enable bool   `yaml:"enable" env:"ENABLE"`
	Path   string `yaml:"path" env:"PATH"`
}

type ReplayConfig struct {
	Enable bool    `yaml:"enable" env:"ENABLE"`
	Path   string  `yaml:"path" env:"PATH"`
	Speed  float64 `yaml:"speed" env:"SPEED"`
	Loop   bool    `yaml:"loop" env:"LOOP"`
}

type ForwardConfig struct {
	Enable bool   `yaml:"enable" env:"ENABLE"`
	Dest   string `yaml:"dest" env:"DEST"`
}

type PPSConfig struct {
	Enable bool   `yaml:"enable" env:"ENABLE"`
	Chip   string `yaml:"chip" env:"CHIP"`
	Line   *int   `yaml:"line" env:"LINE"`
}

// HTTPConfig enables the JSON status API.
type HTTPConfig struct {
	Enable bool   `yaml:"enable" env:"ENABLE"`
	Listen string `yaml:"listen" env:"LISTEN"`
	// Events is how many recent decoded event lines /api/events keeps.
	Events int `yaml:"events" env:"EVENTS"`
}

type LogConfig struct {
	Level string `yaml:"level" env:"LEVEL"`
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(b)
}

// Parse validates a YAML document and fills defaults. Unknown keys are
// rejected. Environment variables named EnvPrefix + SECTION_KEY (for example
// GNSSWIRE_GPS_DEVICE) override the document before validation.
func Parse(b []byte) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("config: env: %w", err)
	}

	if cfg.GPS.Source == "" {
		cfg.GPS.Source = SourceSerial
	}
	switch cfg.GPS.Source {
	case SourceSerial:
		if cfg.GPS.Device == "" && !cfg.Replay.Enable {
			return Config{}, fmt.Errorf("gps.device is required when gps.source is 'serial'")
		}
	case SourceGPSD:
		if cfg.GPS.GPSDAddr == "" {
			cfg.GPS.GPSDAddr = DefaultGPSDAddr
		}
	default:
		return Config{}, fmt.Errorf("gps.source must be 'serial' or 'gpsd'")
	}
	if cfg.GPS.Baud == 0 {
		cfg.GPS.Baud = DefaultBaud
	}
	if cfg.GPS.Baud < 0 {
		return Config{}, fmt.Errorf("gps.baud must be > 0")
	}
	if cfg.GPS.NMEABufferBytes == 0 {
		cfg.GPS.NMEABufferBytes = DefaultBuffer
	}
	if cfg.GPS.NMEABufferBytes < 0 {
		return Config{}, fmt.Errorf("gps.nmea_buffer_bytes must be > 0")
	}
	if cfg.GPS.UBXPayloadBytes == 0 {
		cfg.GPS.UBXPayloadBytes = DefaultBuffer
	}
	if cfg.GPS.UBXPayloadBytes < 0 || cfg.GPS.UBXPayloadBytes > ubx.MaxPayload {
		return Config{}, fmt.Errorf("gps.ubx_payload_bytes must be between 1 and 65535")
	}

	if cfg.Record.Enable && cfg.Record.Path == "" {
		return Config{}, fmt.Errorf("record.path is required when record.enable is true")
	}

	if cfg.Replay.Enable {
		if cfg.Replay.Path == "" {
			return Config{}, fmt.Errorf("replay.path is required when replay.enable is true")
		}
		if cfg.Replay.Speed == 0 {
			cfg.Replay.Speed = 1
		}
		if cfg.Replay.Speed < 0 {
			return Config{}, fmt.Errorf("replay.speed must be > 0")
		}
	}

	if cfg.Record.Enable && cfg.Replay.Enable {
		return Config{}, fmt.Errorf("record and replay cannot both be enabled")
	}

	if cfg.Forward.Enable && cfg.Forward.Dest == "" {
		return Config{}, fmt.Errorf("forward.dest is required when forward.enable is true")
	}

	if cfg.PPS.Chip == "" {
		cfg.PPS.Chip = DefaultPPSChip
	}
	if cfg.PPS.Enable {
		if cfg.PPS.Line == nil {
			return Config{}, fmt.Errorf("pps.line is required when pps.enable is true")
		}
		if *cfg.PPS.Line < 0 {
			return Config{}, fmt.Errorf("pps.line must be >= 0")
		}
	}

	if cfg.HTTP.Enable {
		if cfg.HTTP.Listen == "" {
			cfg.HTTP.Listen = DefaultListen
		}
		if cfg.HTTP.Events == 0 {
			cfg.HTTP.Events = DefaultEvents
		}
		if cfg.HTTP.Events < 0 {
			return Config{}, fmt.Errorf("http.events must be > 0")
		}
	}

	if cfg.Log.Level != "" {
		if _, err := logging.ParseLevel(cfg.Log.Level); err != nil {
			return Config{}, fmt.Errorf("log.level must be one of debug, info, warn, error")
		}
	}

	return cfg, nil
}
