// Package logging provides structured logging for gnsswire.
//
// It wraps a zap logger with package-level helpers. Logging is silent unless
// a level is passed to Initialize or GNSSWIRE_LOG_LEVEL is set.
//
// Frame helpers log decoded traffic with a consistent field set:
//
//	logging.LogUBXFrame("rx", frame)
//	logging.LogSentence("rx", payload)
//
// Payload hex dumps are only attached at debug level.
package logging
