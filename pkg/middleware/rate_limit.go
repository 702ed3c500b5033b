package middleware

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"slotbook/pkg/clock"
	apperrors "slotbook/pkg/errors"
	httputil "slotbook/pkg/http"
	"slotbook/pkg/logger"
	"slotbook/pkg/sanitizer"
)

const PhoneHeader = "X-Phone-Number"

type PhoneExtractor func(r *http.Request) string

// PhoneRateLimiter keeps a sliding window of request times per phone
// number. Requests without a phone are not limited.
type PhoneRateLimiter struct {
	mu             sync.Mutex
	requests       map[string][]time.Time
	limit          int
	window         time.Duration
	phoneExtractor PhoneExtractor
	clock          clock.Clock
	log            *logger.Logger
	stopCh         chan struct{}
	stopOnce       sync.Once
}

func NewPhoneRateLimiter(limit int, window time.Duration, extractor PhoneExtractor, c clock.Clock, log *logger.Logger) *PhoneRateLimiter {
	if c == nil {
		c = clock.Real()
	}
	limiter := &PhoneRateLimiter{
		requests:       make(map[string][]time.Time),
		limit:          limit,
		window:         window,
		phoneExtractor: extractor,
		clock:          c,
		log:            log,
		stopCh:         make(chan struct{}),
	}

	go limiter.cleanup()

	return limiter
}

func (rl *PhoneRateLimiter) cleanup() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.prune()
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *PhoneRateLimiter) prune() {
	now := rl.clock.Now()
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for phone, timestamps := range rl.requests {
		if len(timestamps) == 0 || now.Sub(timestamps[len(timestamps)-1]) >= rl.window {
			delete(rl.requests, phone)
		}
	}
}

func (rl *PhoneRateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

func (rl *PhoneRateLimiter) Allow(phone string) bool {
	if phone == "" {
		return true
	}

	now := rl.clock.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	timestamps := rl.requests[phone]
	valid := timestamps[:0]
	for _, ts := range timestamps {
		if now.Sub(ts) < rl.window {
			valid = append(valid, ts)
		}
	}

	if len(valid) >= rl.limit {
		rl.requests[phone] = valid
		return false
	}

	rl.requests[phone] = append(valid, now)
	return true
}

func PhoneRateLimit(limiter *PhoneRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			phone := extractPhoneNumber(r, limiter.phoneExtractor)

			if phone == "" {
				next.ServeHTTP(w, r)
				return
			}

			if !limiter.Allow(phone) {
				rejectRateLimited(w, limiter.log, r, phone)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func extractPhoneNumber(r *http.Request, extractor PhoneExtractor) string {
	if extractor == nil {
		return DefaultPhoneExtractor(r)
	}
	return extractor(r)
}

func rejectRateLimited(w http.ResponseWriter, log *logger.Logger, r *http.Request, phone string) {
	log.Warn("Rate limit exceeded",
		"request_id", RequestID(r.Context()),
		"phone", sanitizer.MaskPhone(phone),
		"path", r.URL.Path,
	)

	err := apperrors.New(apperrors.CodeBadRequest, "Rate limit exceeded", http.StatusTooManyRequests)
	_ = httputil.WriteError(w, err)
}

func DefaultPhoneExtractor(r *http.Request) string {
	return phoneKey(r.Header.Get(PhoneHeader))
}

// ChallengePhoneExtractor limits sign-in code requests by the phone in the
// JSON body of POST challengePath, so one number cannot be flooded with
// SMS. Other requests fall back to the phone header.
func ChallengePhoneExtractor(challengePath string) PhoneExtractor {
	return func(r *http.Request) string {
		if r.Method != http.MethodPost || r.URL.Path != challengePath {
			return DefaultPhoneExtractor(r)
		}

		body, err := readAndRestoreBody(r)
		if err != nil || len(body) == 0 {
			return ""
		}
		var payload struct {
			Phone string `json:"phone"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			return ""
		}
		return phoneKey(payload.Phone)
	}
}

// phoneKey reduces a phone to its digits so formatting variants of one
// number share a window.
func phoneKey(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
