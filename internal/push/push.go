// Package push delivers notifications to device tokens.
package push

import (
	"context"

	"healthreach-server/internal/logger"
)

// Message is the payload sent to every device of a recipient.
type Message struct {
	Title string
	Body  string
	Data  map[string]string
}

// Result summarises one fan-out. InvalidTokens lists tokens the provider
// reported as no longer registered.
type Result struct {
	SuccessCount  int
	FailureCount  int
	InvalidTokens []string
}

// Sender delivers a message to a set of device tokens.
type Sender interface {
	Send(ctx context.Context, tokens []string, msg Message) (*Result, error)
}

// LogSender is used when push delivery is disabled. It logs and reports
// every token as delivered.
type LogSender struct {
	log *logger.Logger
}

func NewLogSender(log *logger.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(ctx context.Context, tokens []string, msg Message) (*Result, error) {
	s.log.WithComponent("push").
		WithField("tokens", len(tokens)).
		WithField("title", msg.Title).
		Info("push disabled, notification not delivered")
	return &Result{SuccessCount: len(tokens)}, nil
}
