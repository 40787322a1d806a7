// Package notify delivers one-time codes to users.
package notify

import (
	"context"
	"errors"
	"log/slog"
)

// ErrNoAddress is returned when there is nowhere to send a code.
var ErrNoAddress = errors.New("notify: no address")

// Sender delivers a one-time code to an email address.
type Sender interface {
	SendOneTimeCode(ctx context.Context, address, code string) error
}

// LogSender only records that a code was issued. The code itself is logged at
// debug level so local development works without a mail relay.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) SendOneTimeCode(ctx context.Context, address, code string) error {
	if address == "" {
		return ErrNoAddress
	}
	s.logger.InfoContext(ctx, "one-time code issued", "address", address)
	s.logger.DebugContext(ctx, "one-time code", "address", address, "code", code)
	return nil
}
