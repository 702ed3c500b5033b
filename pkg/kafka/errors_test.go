package kafka

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"nil", nil, ErrorTypeUnknown},
		{"tagged transient", NewTransientError("gateway", errors.New("boom")), ErrorTypeTransient},
		{"tagged business", NewBusinessError("unsupported number", nil), ErrorTypeBusiness},
		{"wrapped tagged", fmt.Errorf("send: %w", NewPermanentError("bad", nil)), ErrorTypePermanent},
		{"deadline", fmt.Errorf("post: %w", context.DeadlineExceeded), ErrorTypeTransient},
		{"connection refused", errors.New("dial tcp: Connection Refused"), ErrorTypeTransient},
		{"deserialization", errors.New("deserialization failed: unexpected EOF"), ErrorTypePermanent},
		{"unknown", errors.New("something odd"), ErrorTypePermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyError(tt.err); got != tt.want {
				t.Errorf("ClassifyError(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestShouldRetry(t *testing.T) {
	transient := NewTransientError("timeout", nil)

	if !ShouldRetry(transient, 0, 3) {
		t.Error("transient error under the limit should retry")
	}
	if ShouldRetry(transient, 3, 3) {
		t.Error("retries at the limit should stop")
	}
	if ShouldRetry(NewPermanentError("bad", nil), 0, 3) {
		t.Error("permanent error should not retry")
	}
	if ShouldRetry(nil, 0, 3) {
		t.Error("nil error should not retry")
	}
}
