package sms

import (
	"context"
	"errors"

	"slotbook/pkg/logger"
	"slotbook/pkg/sanitizer"
)

var (
	ErrUnsupportedNumber = errors.New("phone number not supported by gateway")
	ErrGatewayAuth       = errors.New("sms gateway authentication failed")
	ErrGatewayRejected   = errors.New("sms gateway rejected message")
)

// Sender delivers a text message to an E.164 phone number.
type Sender interface {
	Send(ctx context.Context, phone, message string) error
}

// LogSender writes messages to the log instead of delivering them. It is
// used when no gateway is configured.
type LogSender struct {
	log *logger.Logger
}

func NewLogSender(log *logger.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(_ context.Context, phone, message string) error {
	s.log.Info("SMS (not delivered, no gateway configured)",
		"phone", sanitizer.MaskPhone(phone),
		"message", message,
	)
	return nil
}
