package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"slotbook/internal/sms"
	"slotbook/pkg/events"
	"slotbook/pkg/kafka"
	"slotbook/pkg/logger"
	"slotbook/pkg/model"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: logger.ERROR, Service: "test"})
}

func testEvent(status model.ReservationStatus) model.StatusChangedEvent {
	return model.StatusChangedEvent{
		ReservationID: "r1",
		CustomerPhone: "+998901234567",
		CustomerName:  "Aziz",
		Status:        status,
		StartTime:     time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		OccurredAt:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestRender(t *testing.T) {
	approved, err := Render(testEvent(model.StatusApproved))
	if err != nil || !strings.Contains(approved, "Aziz") || !strings.Contains(approved, "tasdiqlandi") {
		t.Errorf("approved = %q, %v", approved, err)
	}

	rejected, err := Render(testEvent(model.StatusRejected))
	if err != nil || !strings.Contains(rejected, "rad etildi") {
		t.Errorf("rejected = %q, %v", rejected, err)
	}

	if _, err := Render(testEvent(model.StatusPending)); !errors.Is(err, ErrNoTemplate) {
		t.Errorf("pending: expected ErrNoTemplate, got %v", err)
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.StatusChangedEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e model.StatusChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func TestAsyncDispatcher(t *testing.T) {
	pub := &recordingPublisher{}
	d := NewAsyncDispatcher(pub, time.Second, testLogger())

	d.Dispatch(testEvent(model.StatusApproved))
	d.Dispatch(testEvent(model.StatusRejected))
	d.Close()

	if len(pub.events) != 2 {
		t.Fatalf("expected 2 published events, got %d", len(pub.events))
	}

	d.Dispatch(testEvent(model.StatusApproved))
	if len(pub.events) != 2 {
		t.Error("dispatch after Close must be dropped")
	}
}

func TestAsyncDispatcher_FailureIsSwallowed(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	d := NewAsyncDispatcher(pub, time.Second, testLogger())

	d.Dispatch(testEvent(model.StatusApproved))
	d.Close()

	if len(pub.events) != 1 {
		t.Errorf("expected one publish attempt, got %d", len(pub.events))
	}
}

func TestNewKafkaMessage(t *testing.T) {
	e := testEvent(model.StatusApproved)
	msg, err := NewKafkaMessage(e, "reservations")
	if err != nil {
		t.Fatalf("NewKafkaMessage: %v", err)
	}
	if msg.Key != e.CustomerPhone {
		t.Errorf("key = %q, want customer phone", msg.Key)
	}
	if msg.GetEventType() != EventTypeStatusChanged || msg.GetCorrelationID() != "r1" {
		t.Errorf("unexpected headers: %v", msg.Headers)
	}
}

type fakeSender struct {
	mu    sync.Mutex
	sent  map[string]string
	err   error
	calls int
}

func (s *fakeSender) Send(_ context.Context, phone, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return s.err
	}
	if s.sent == nil {
		s.sent = map[string]string{}
	}
	s.sent[phone] = message
	return nil
}

func TestWorker_Deliver(t *testing.T) {
	tests := []struct {
		name     string
		status   model.ReservationStatus
		sendErr  error
		wantType kafka.ErrorType
		wantErr  bool
	}{
		{"approved", model.StatusApproved, nil, 0, false},
		{"pending has no message", model.StatusPending, nil, kafka.ErrorTypePermanent, true},
		{"unsupported number", model.StatusRejected, sms.ErrUnsupportedNumber, kafka.ErrorTypeBusiness, true},
		{"gateway rejected", model.StatusRejected, sms.ErrGatewayRejected, kafka.ErrorTypePermanent, true},
		{"network error", model.StatusApproved, errors.New("dial tcp: connection refused"), kafka.ErrorTypeTransient, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &fakeSender{err: tt.sendErr}
			w := NewWorker(sender, testLogger())

			err := w.Deliver(context.Background(), testEvent(tt.status))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Deliver error = %v", err)
			}
			if err != nil && kafka.ClassifyError(err) != tt.wantType {
				t.Errorf("error type = %d, want %d", kafka.ClassifyError(err), tt.wantType)
			}
		})
	}
}

func TestWorker_KafkaHandler(t *testing.T) {
	sender := &fakeSender{}
	w := NewWorker(sender, testLogger())
	handler := w.KafkaHandler()

	msg, _ := NewKafkaMessage(testEvent(model.StatusRejected), "test")
	if err := handler(context.Background(), msg); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if !strings.Contains(sender.sent["+998901234567"], "rad etildi") {
		t.Errorf("unexpected sms: %v", sender.sent)
	}

	other, _ := kafka.NewMessage().WithKey("k").WithRawValue([]byte("{}")).WithEventType("something.else").Build()
	if err := handler(context.Background(), other); err != nil {
		t.Errorf("unrelated events should be skipped, got %v", err)
	}

	bad, _ := kafka.NewMessage().WithKey("k").WithRawValue([]byte("{")).Build()
	if err := handler(context.Background(), bad); kafka.ClassifyError(err) != kafka.ErrorTypePermanent {
		t.Errorf("undecodable payload should be permanent, got %v", err)
	}
}

func TestWorker_NATSHandler(t *testing.T) {
	sender := &fakeSender{}
	w := NewWorker(sender, testLogger())

	data, _ := json.Marshal(testEvent(model.StatusApproved))
	w.NATSHandler(context.Background())(&events.Message{Subject: events.ReservationStatusChanged, Data: data})
	w.NATSHandler(context.Background())(&events.Message{Data: []byte("{")})

	if sender.calls != 1 {
		t.Errorf("expected 1 send, got %d", sender.calls)
	}
}
