// Package notify delivers human readable bot messages to operators.
package notify

import (
	"context"

	"go.uber.org/zap"
)

// Sink is one notification channel.
type Sink interface {
	Name() string
	Send(ctx context.Context, message string) error
}

// Dispatcher fans a message out to every sink. Delivery failures are logged
// and never returned.
type Dispatcher struct {
	sinks  []Sink
	logger *zap.Logger
}

// NewDispatcher creates a Dispatcher over sinks.
func NewDispatcher(logger *zap.Logger, sinks ...Sink) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{sinks: sinks, logger: logger.Named("notify")}
}

// Send delivers message to all sinks.
func (d *Dispatcher) Send(ctx context.Context, message string) {
	for _, s := range d.sinks {
		if err := s.Send(ctx, message); err != nil {
			d.logger.Warn("notification failed",
				zap.String("sink", s.Name()),
				zap.Error(err),
			)
		}
	}
}

// LogSink writes messages to the structured log.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger.Named("message")}
}

var _ Sink = (*LogSink)(nil)

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Send(_ context.Context, message string) error {
	s.logger.Info(message)
	return nil
}
