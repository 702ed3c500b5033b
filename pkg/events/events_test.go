package events

import (
	"errors"
	"testing"

	"slotbook/pkg/logger"
)

func TestNewNATSEventBus_RequiresConnection(t *testing.T) {
	_, err := NewNATSEventBus(nil, logger.New(logger.Config{Service: "test"}))
	if !errors.Is(err, ErrNoConnection) {
		t.Errorf("expected ErrNoConnection, got %v", err)
	}
}

func TestMessageDecode(t *testing.T) {
	msg := &Message{Data: []byte(`{"status":"rejected"}`)}
	var v struct {
		Status string `json:"status"`
	}
	if err := msg.Decode(&v); err != nil || v.Status != "rejected" {
		t.Errorf("Decode = %+v, %v", v, err)
	}
}
