package kafka

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"

	"slotbook/pkg/logger"
)

type fakeWriter struct {
	mu      sync.Mutex
	written []kafka.Message
	err     error
	closed  bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.written = append(w.written, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func (w *fakeWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.written)
}

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: logger.ERROR, Service: "test"})
}

func testMessage(t *testing.T) Message {
	t.Helper()
	msg, err := NewMessage().WithKey("+998901234567").WithValue(map[string]string{"a": "b"}).Build()
	if err != nil {
		t.Fatal(err)
	}
	return msg
}

func TestProducer_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, nil, "reservation-status", "", testLogger())

	var seenTopic string
	p.Use(func(ctx context.Context, msg Message, next func(context.Context, Message) error) error {
		seenTopic = msg.Topic
		return next(ctx, msg)
	})

	if err := p.Publish(context.Background(), testMessage(t)); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if w.count() != 1 {
		t.Errorf("expected 1 written message, got %d", w.count())
	}
	if seenTopic != "reservation-status" {
		t.Errorf("middleware saw topic %q", seenTopic)
	}
}

func TestProducer_Validation(t *testing.T) {
	p := newProducer(&fakeWriter{}, nil, "t", "", testLogger())

	if err := p.Publish(context.Background(), Message{Value: []byte("x")}); !errors.Is(err, ErrEmptyKey) {
		t.Errorf("expected ErrEmptyKey, got %v", err)
	}
	if err := p.Publish(context.Background(), Message{Key: "k"}); !errors.Is(err, ErrEmptyValue) {
		t.Errorf("expected ErrEmptyValue, got %v", err)
	}

	_ = p.Close()
	if err := p.Publish(context.Background(), testMessage(t)); !errors.Is(err, ErrProducerClosed) {
		t.Errorf("expected ErrProducerClosed, got %v", err)
	}
}

func TestProducer_FailureGoesToDLQ(t *testing.T) {
	writeErr := errors.New("broker down")
	w := &fakeWriter{err: writeErr}
	dlq := &fakeWriter{}
	p := newProducer(w, dlq, "t", "t-dlq", testLogger())

	err := p.Publish(context.Background(), testMessage(t))
	if !errors.Is(err, writeErr) {
		t.Errorf("expected original error, got %v", err)
	}
	if dlq.count() != 1 {
		t.Fatalf("expected 1 DLQ message, got %d", dlq.count())
	}
}

type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []kafka.Message
	done      chan struct{}
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		m := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()

	select {
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	case <-r.done:
		return kafka.Message{}, io.EOF
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error {
	close(r.done)
	return nil
}

func (r *fakeReader) committedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.committed)
}

func TestConsumer_ProcessMessage(t *testing.T) {
	tests := []struct {
		name        string
		failures    int
		err         error
		wantCalls   int
		wantDLQ     int
		wantErrored bool
	}{
		{"success", 0, nil, 1, 0, false},
		{"transient then success", 2, NewTransientError("timeout", nil), 3, 0, false},
		{"transient exhausts retries", 10, NewTransientError("timeout", nil), 4, 1, true},
		{"permanent goes straight to DLQ", 10, NewPermanentError("bad payload", nil), 1, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			handler := func(context.Context, Message) error {
				calls++
				if calls <= tt.failures {
					return tt.err
				}
				return nil
			}
			dlq := &fakeWriter{}
			c := newConsumer(&fakeReader{done: make(chan struct{})}, dlq, "t", "g", 3, handler, testLogger())

			err := c.processMessage(context.Background(), testMessage(t))
			if (err != nil) != tt.wantErrored {
				t.Errorf("processMessage error = %v", err)
			}
			if calls != tt.wantCalls {
				t.Errorf("expected %d handler calls, got %d", tt.wantCalls, calls)
			}
			if dlq.count() != tt.wantDLQ {
				t.Errorf("expected %d DLQ messages, got %d", tt.wantDLQ, dlq.count())
			}
		})
	}
}

func TestConsumer_StartCommitsAndStops(t *testing.T) {
	m := testMessage(t)
	reader := &fakeReader{
		queue: []kafka.Message{m.toKafka(), m.toKafka()},
		done:  make(chan struct{}),
	}

	handled := make(chan struct{}, 2)
	c := newConsumer(reader, nil, "t", "g", 0, func(context.Context, Message) error {
		handled <- struct{}{}
		return nil
	}, testLogger())

	errCh := make(chan error, 1)
	go func() { errCh <- c.Start(context.Background()) }()

	<-handled
	<-handled
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := <-errCh; !errors.Is(err, ErrConsumerClosed) {
		t.Errorf("expected ErrConsumerClosed, got %v", err)
	}
	if reader.committedCount() != 2 {
		t.Errorf("expected 2 commits, got %d", reader.committedCount())
	}
}
