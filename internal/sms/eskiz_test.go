package sms

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"slotbook/pkg/logger"
)

const blockedSenderID = "0000"

type fakeGateway struct {
	logins   atomic.Int32
	sends    atomic.Int32
	validTok atomic.Value

	mu   sync.Mutex
	last sendRequest
}

func (g *fakeGateway) lastSend() sendRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last
}

func (g *fakeGateway) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(loginPath, func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		n := g.logins.Add(1)
		tok := "token-" + string(rune('0'+n))
		g.validTok.Store(tok)
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]string{"token": tok}})
	})
	mux.HandleFunc(sendPath, func(w http.ResponseWriter, r *http.Request) {
		valid, _ := g.validTok.Load().(string)
		if r.Header.Get("Authorization") != "Bearer "+valid {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var body sendRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode send body: %v", err)
		}
		if body.From == blockedSenderID {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "Sender ID is not approved"})
			return
		}
		g.mu.Lock()
		g.last = body
		g.mu.Unlock()
		g.sends.Add(1)
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func newTestSender(url, password string) *EskizSender {
	return NewEskizSender(EskizConfig{
		BaseURL:  url,
		Email:    "shop@example.uz",
		Password: password,
		SenderID: "4546",
	}, logger.New(logger.Config{Level: logger.ERROR}))
}

func TestEskizSender_Send(t *testing.T) {
	gw := &fakeGateway{}
	srv := httptest.NewServer(gw.handler(t))
	defer srv.Close()

	s := newTestSender(srv.URL, "secret")
	if err := s.Send(context.Background(), "+998901234567", "hello"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := s.Send(context.Background(), "+998901234567", "again"); err != nil {
		t.Fatalf("second Send: %v", err)
	}

	if gw.logins.Load() != 1 {
		t.Errorf("token should be cached, logins = %d", gw.logins.Load())
	}
	if last := gw.lastSend(); last.MobilePhone != "998901234567" || last.From != "4546" || last.Message != "again" {
		t.Errorf("unexpected send body: %+v", last)
	}
}

func TestEskizSender_RenewsExpiredToken(t *testing.T) {
	gw := &fakeGateway{}
	srv := httptest.NewServer(gw.handler(t))
	defer srv.Close()

	s := newTestSender(srv.URL, "secret")
	s.token = "stale"

	if err := s.Send(context.Background(), "+998901234567", "hello"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gw.logins.Load() != 1 || gw.sends.Load() != 1 {
		t.Errorf("logins=%d sends=%d, want 1 and 1", gw.logins.Load(), gw.sends.Load())
	}
}

func TestEskizSender_Errors(t *testing.T) {
	gw := &fakeGateway{}
	srv := httptest.NewServer(gw.handler(t))
	defer srv.Close()

	if err := newTestSender(srv.URL, "wrong").Send(context.Background(), "+998901234567", "x"); !errors.Is(err, ErrGatewayAuth) {
		t.Errorf("expected ErrGatewayAuth, got %v", err)
	}
	if err := newTestSender(srv.URL, "secret").Send(context.Background(), "+972541234567", "x"); !errors.Is(err, ErrUnsupportedNumber) {
		t.Errorf("expected ErrUnsupportedNumber, got %v", err)
	}
	if gw.sends.Load() != 0 {
		t.Errorf("nothing should have been sent, got %d", gw.sends.Load())
	}
}

func TestEskizSender_GatewayRejects(t *testing.T) {
	gw := &fakeGateway{}
	srv := httptest.NewServer(gw.handler(t))
	defer srv.Close()

	s := newTestSender(srv.URL, "secret")
	s.cfg.SenderID = blockedSenderID

	err := s.Send(context.Background(), "+998901234567", "hello")
	if !errors.Is(err, ErrGatewayRejected) {
		t.Fatalf("expected ErrGatewayRejected, got %v", err)
	}
	if !strings.Contains(err.Error(), "Sender ID is not approved") || !strings.Contains(err.Error(), "status 400") {
		t.Errorf("gateway message missing from error: %v", err)
	}
}
