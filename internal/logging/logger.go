package logging

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"gnsswire/internal/ubx"
)

// LogLevelEnvVar controls verbosity when no level is configured.
// Valid values: "debug", "info", "warn", "error".
const LogLevelEnvVar = "GNSSWIRE_LOG_LEVEL"

// maxDump caps hex dumps in log fields.
const maxDump = 256

var (
	mu     sync.RWMutex
	logger *zap.Logger
)

// ParseLevel maps a level name to a zap level. Unknown names are an error.
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("logging: unknown level %q", level)
	}
}

// Initialize installs the global logger.
// If level is empty, GNSSWIRE_LOG_LEVEL is used; if that is empty too the
// logger is a no-op.
func Initialize(level string) error {
	if level == "" {
		level = os.Getenv(LogLevelEnvVar)
	}
	if level == "" {
		set(zap.NewNop())
		return nil
	}

	zapLevel, err := ParseLevel(level)
	if err != nil {
		return err
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         "console",
		EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
	config.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	l, err := config.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	set(l)
	return nil
}

// SetLogger replaces the global logger. Tests use it with zaptest/observer.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	set(l)
}

func set(l *zap.Logger) {
	mu.Lock()
	logger = l
	mu.Unlock()
}

// GetLogger returns the global logger, a no-op logger until initialized.
func GetLogger() *zap.Logger {
	mu.RLock()
	l := logger
	mu.RUnlock()
	if l == nil {
		return zap.NewNop()
	}
	return l
}

func Info(msg string, fields ...zap.Field)  { GetLogger().Info(msg, fields...) }
func Debug(msg string, fields ...zap.Field) { GetLogger().Debug(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { GetLogger().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { GetLogger().Error(msg, fields...) }

// LogUBXFrame logs one checksum-valid UBX frame.
func LogUBXFrame(direction string, f ubx.Frame) {
	l := GetLogger()
	fields := []zap.Field{
		zap.String("direction", direction),
		zap.Stringer("type", f.Type),
		zap.String("name", f.Type.Name()),
		zap.Int("length", len(f.Payload)),
	}
	if l.Core().Enabled(zapcore.DebugLevel) {
		fields = append(fields, zap.String("hex", HexDump(f.Payload)))
	}
	l.Info("UBX frame", fields...)
}

// LogSentence logs one checksum-valid NMEA payload at debug level.
func LogSentence(direction string, payload []byte) {
	Debug("NMEA sentence",
		zap.String("direction", direction),
		zap.ByteString("payload", payload),
	)
}

// LogRawBytes logs a raw read chunk at debug level.
func LogRawBytes(label string, data []byte) {
	Debug(label,
		zap.Int("length", len(data)),
		zap.String("hex", HexDump(data)),
		zap.String("ascii", ASCIIDump(data)),
	)
}

// HexDump hex-encodes up to the first 256 bytes of data.
func HexDump(data []byte) string {
	if len(data) > maxDump {
		return hex.EncodeToString(data[:maxDump]) + "..."
	}
	return hex.EncodeToString(data)
}

// ASCIIDump renders printable bytes and replaces the rest with '.'.
func ASCIIDump(data []byte) string {
	if len(data) > maxDump {
		data = data[:maxDump]
	}
	out := make([]byte, len(data))
	for i, b := range data {
		if b >= 32 && b <= 126 {
			out[i] = b
		} else {
			out[i] = '.'
		}
	}
	return string(out)
}

// Sync flushes buffered entries.
func Sync() {
	_ = GetLogger().Sync()
}
