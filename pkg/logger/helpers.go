package logger

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// LogRequest logs a completed HTTP request at a level matching its status
func LogRequest(log Logger, method, url string, statusCode int, duration time.Duration) {
	fields := map[string]interface{}{
		"method":      method,
		"url":         url,
		"status_code": statusCode,
		"duration":    duration,
	}

	switch {
	case statusCode >= 200 && statusCode < 300:
		log.DebugWithFields("HTTP request completed", fields)
	case statusCode >= 400 && statusCode < 500:
		log.WarnWithFields("HTTP request client error", fields)
	default:
		log.ErrorWithFields("HTTP request server error", fields)
	}
}

// LogQueryProgress logs how far a query is towards its target
func LogQueryProgress(log Logger, query string, fetched, target int) {
	percentage := 0.0
	if target > 0 {
		percentage = float64(fetched) / float64(target) * 100
	}

	log.WithFields(map[string]interface{}{
		"query":      query,
		"fetched":    fetched,
		"target":     target,
		"percentage": fmt.Sprintf("%.1f%%", percentage),
	}).Debug("Query progress")
}

// NewNopLogger creates a no-operation logger
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) FatalWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger {
	nop := zerolog.Nop()
	return &nop
}
