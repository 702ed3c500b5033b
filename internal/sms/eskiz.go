package sms

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"slotbook/pkg/client"
	"slotbook/pkg/locale"
	"slotbook/pkg/logger"
	"slotbook/pkg/sanitizer"
)

const (
	loginPath = "/auth/login"
	sendPath  = "/message/sms/send"
)

type EskizConfig struct {
	BaseURL  string
	Email    string
	Password string
	SenderID string
}

// EskizSender talks to an Eskiz style gateway: a login call returns a
// bearer token that authorizes send calls. The token is cached and renewed
// once when the gateway answers 401.
type EskizSender struct {
	http *client.HttpClient
	cfg  EskizConfig
	log  *logger.Logger

	mu    sync.Mutex
	token string
}

func NewEskizSender(cfg EskizConfig, log *logger.Logger) *EskizSender {
	return &EskizSender{
		http: client.NewHttpClient(strings.TrimSuffix(cfg.BaseURL, "/")),
		cfg:  cfg,
		log:  log,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Data struct {
		Token string `json:"token"`
	} `json:"data"`
}

type sendRequest struct {
	MobilePhone string `json:"mobile_phone"`
	Message     string `json:"message"`
	From        string `json:"from"`
}

func (s *EskizSender) Send(ctx context.Context, phone, message string) error {
	country := locale.InferCountryFromPhone(phone)
	if country == nil || country.Code != "UZ" {
		return fmt.Errorf("%w: %s", ErrUnsupportedNumber, sanitizer.MaskPhone(phone))
	}

	body := sendRequest{
		MobilePhone: strings.TrimPrefix(phone, "+"),
		Message:     message,
		From:        s.cfg.SenderID,
	}

	resp, err := s.send(ctx, body, false)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		s.log.Debug("SMS gateway token rejected, logging in again")
		if resp, err = s.send(ctx, body, true); err != nil {
			return err
		}
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("%w: status %d: %s", ErrGatewayRejected, resp.StatusCode, client.GetErrorMessage(resp))
	}

	s.log.Info("SMS sent", "phone", sanitizer.MaskPhone(phone))
	return nil
}

func (s *EskizSender) send(ctx context.Context, body sendRequest, renew bool) (*client.Response, error) {
	token, err := s.bearer(ctx, renew)
	if err != nil {
		return nil, err
	}
	resp, err := s.http.POSTWithHeaders(ctx, sendPath, body, map[string]string{
		"Authorization": "Bearer " + token,
	})
	if err != nil {
		return nil, fmt.Errorf("sms send request: %w", err)
	}
	return resp, nil
}

func (s *EskizSender) bearer(ctx context.Context, renew bool) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && !renew {
		return s.token, nil
	}

	resp, err := s.http.POST(ctx, loginPath, loginRequest{Email: s.cfg.Email, Password: s.cfg.Password})
	if err != nil {
		return "", fmt.Errorf("sms gateway login: %w", err)
	}
	if !resp.IsSuccess() {
		return "", fmt.Errorf("%w: %s", ErrGatewayAuth, resp.ToString())
	}

	var out loginResponse
	if err := resp.DecodeJSON(&out); err != nil {
		return "", fmt.Errorf("%w: %v", ErrGatewayAuth, err)
	}
	if out.Data.Token == "" {
		return "", fmt.Errorf("%w: empty token", ErrGatewayAuth)
	}

	s.token = out.Data.Token
	return s.token, nil
}
