// Package observability defines the optional structured event hook that
// services call at fixed extension points. A nil Sink is always valid.
package observability

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	EventRegistered          = "auth.registered"
	EventLoginFailed         = "auth.login_failed"
	EventLoginSucceeded      = "auth.login_succeeded"
	EventGenerateStarted     = "blueprint.generate_started"
	EventGenerateCompleted   = "blueprint.generate_completed"
	EventGenerateFailed      = "blueprint.generate_failed"
	EventStreamAborted       = "blueprint.stream_aborted"
	EventBlueprintSaved      = "blueprint.saved"
	EventBlueprintSaveFailed = "blueprint.save_failed"
)

// Event is a single structured observation
type Event struct {
	Name   string
	UserID string
	Fields map[string]any
	Time   time.Time
}

// Sink receives events. Implementations must not block the caller for long.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// Emit sends an event to sink, doing nothing when sink is nil
func Emit(ctx context.Context, sink Sink, name, userID string, fields map[string]any) {
	if sink == nil {
		return
	}
	sink.Emit(ctx, Event{
		Name:   name,
		UserID: userID,
		Fields: fields,
		Time:   time.Now(),
	})
}

// LogSink writes events through zerolog
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink creates a sink on top of the global logger
func NewLogSink() *LogSink {
	return &LogSink{logger: log.With().Str("component", "events").Logger()}
}

// NewLogSinkWithLogger creates a sink writing to logger
func NewLogSinkWithLogger(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Emit(_ context.Context, event Event) {
	e := s.logger.Info().
		Str("event", event.Name).
		Time("at", event.Time)
	if event.UserID != "" {
		e = e.Str("user_id", event.UserID)
	}
	if len(event.Fields) > 0 {
		e = e.Fields(event.Fields)
	}
	e.Msg("event")
}
