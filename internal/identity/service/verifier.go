package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"slotbook/internal/identity"
	"slotbook/internal/identity/repository"
	"slotbook/internal/sms"
	"slotbook/pkg/clock"
	"slotbook/pkg/config"
	apperrors "slotbook/pkg/errors"
	"slotbook/pkg/locale"
	"slotbook/pkg/model"
	"slotbook/pkg/sanitizer"
)

const codeDigits = 6

// Verifier runs the phone sign-in exchange: a one-time code is sent by SMS
// and traded, together with the challenge handle, for a session token.
type Verifier interface {
	RequestChallenge(ctx context.Context, phone string) (*ChallengeTicket, error)
	VerifyChallenge(ctx context.Context, handle, code string) (*model.Session, error)
}

type ChallengeTicket struct {
	Handle    string    `json:"handle"`
	ExpiresAt time.Time `json:"expires_at"`
}

type verifier struct {
	challenges repository.ChallengeStore
	users      repository.UserRepository
	sender     sms.Sender
	tokens     *identity.TokenIssuer
	clock      clock.Clock
	cfg        *config.Config
	region     string
	providers  map[string]struct{}
}

func NewVerifier(
	challenges repository.ChallengeStore,
	users repository.UserRepository,
	sender sms.Sender,
	tokens *identity.TokenIssuer,
	c clock.Clock,
	cfg *config.Config,
) Verifier {
	region := locale.DetectRegion(cfg.BusinessTimeZone)
	providers := make(map[string]struct{}, len(cfg.ProviderPhones))
	for _, p := range cfg.ProviderPhones {
		if normalized := sanitizer.NormalizePhone(p, region); normalized != "" {
			providers[normalized] = struct{}{}
		}
	}
	if c == nil {
		c = clock.Real()
	}

	return &verifier{
		challenges: challenges,
		users:      users,
		sender:     sender,
		tokens:     tokens,
		clock:      c,
		cfg:        cfg,
		region:     region,
		providers:  providers,
	}
}

func (v *verifier) RequestChallenge(ctx context.Context, phone string) (*ChallengeTicket, error) {
	normalized := sanitizer.NormalizePhone(phone, v.region)
	if normalized == "" {
		return nil, apperrors.Validation("Invalid phone number", map[string]any{
			"phone": "must be a valid phone number",
		})
	}

	code, err := generateCode()
	if err != nil {
		return nil, apperrors.Internal("Failed to generate verification code", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.Internal("Failed to hash verification code", err)
	}

	ch := &model.Challenge{
		Handle:    uuid.NewString(),
		Phone:     normalized,
		CodeHash:  hash,
		ExpiresAt: v.clock.Now().Add(v.cfg.VerificationCodeTTL),
	}
	if err := v.challenges.Save(ctx, ch); err != nil {
		v.cfg.Log.Error("Failed to store verification challenge", "error", err)
		return nil, apperrors.Unavailable("verification store")
	}

	if err := v.sender.Send(ctx, normalized, verificationMessage(code)); err != nil {
		// The challenge stays valid; the caller may ask for a new one.
		v.cfg.Log.Error("Failed to send verification code",
			"phone", sanitizer.MaskPhone(normalized),
			"error", err,
		)
	}

	v.cfg.Log.Info("Verification challenge issued",
		"handle", ch.Handle,
		"phone", sanitizer.MaskPhone(normalized),
	)
	return &ChallengeTicket{Handle: ch.Handle, ExpiresAt: ch.ExpiresAt}, nil
}

func (v *verifier) VerifyChallenge(ctx context.Context, handle, code string) (*model.Session, error) {
	ch, err := v.challenges.Get(ctx, handle)
	if errors.Is(err, repository.ErrChallengeNotFound) {
		return nil, apperrors.ExpiredChallenge("Verification challenge expired or unknown")
	}
	if err != nil {
		v.cfg.Log.Error("Failed to load verification challenge", "handle", handle, "error", err)
		return nil, apperrors.Unavailable("verification store")
	}

	if !v.clock.Now().Before(ch.ExpiresAt) {
		v.discard(ctx, handle)
		return nil, apperrors.ExpiredChallenge("Verification challenge expired")
	}

	attempt, err := v.challenges.ReserveAttempt(ctx, handle)
	if errors.Is(err, repository.ErrChallengeNotFound) {
		return nil, apperrors.ExpiredChallenge("Verification challenge expired or unknown")
	}
	if err != nil {
		v.cfg.Log.Error("Failed to reserve verification attempt", "handle", handle, "error", err)
		return nil, apperrors.Unavailable("verification store")
	}
	if attempt > v.cfg.VerificationMaxAttempts {
		v.discard(ctx, handle)
		return nil, apperrors.ExpiredChallenge("Verification challenge expired")
	}

	if bcrypt.CompareHashAndPassword(ch.CodeHash, []byte(code)) != nil {
		if attempt >= v.cfg.VerificationMaxAttempts {
			v.discard(ctx, handle)
		}
		return nil, apperrors.InvalidCode("Invalid verification code").WithDetails(map[string]any{
			"attempts_left": max(0, v.cfg.VerificationMaxAttempts-attempt),
		})
	}

	consumed, err := v.challenges.Consume(ctx, handle)
	if err != nil {
		v.cfg.Log.Error("Failed to consume verification challenge", "handle", handle, "error", err)
		return nil, apperrors.Unavailable("verification store")
	}
	if !consumed {
		return nil, apperrors.ExpiredChallenge("Verification challenge already used")
	}

	user, err := v.users.FindOrCreate(ctx, ch.Phone, v.roleFor(ch.Phone))
	if err != nil {
		v.cfg.Log.Error("Failed to resolve user", "phone", sanitizer.MaskPhone(ch.Phone), "error", err)
		return nil, apperrors.Internal("Failed to sign in", err)
	}

	id := user.Identity()
	token, expiresAt, err := v.tokens.Issue(id)
	if err != nil {
		return nil, apperrors.Internal("Failed to issue session", err)
	}

	v.cfg.Log.Info("User signed in", "user_id", user.ID, "role", user.Role)
	return &model.Session{Token: token, ExpiresAt: expiresAt, Identity: id}, nil
}

func (v *verifier) roleFor(phone string) model.Role {
	if _, ok := v.providers[phone]; ok {
		return model.RoleProvider
	}
	return model.RoleCustomer
}

func (v *verifier) discard(ctx context.Context, handle string) {
	if err := v.challenges.Delete(ctx, handle); err != nil {
		v.cfg.Log.Warn("Failed to delete verification challenge", "handle", handle, "error", err)
	}
}

func generateCode() (string, error) {
	limit := big.NewInt(1)
	for i := 0; i < codeDigits; i++ {
		limit.Mul(limit, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", codeDigits, n.Int64()), nil
}

func verificationMessage(code string) string {
	return fmt.Sprintf("Tasdiqlash kodingiz: %s", code)
}
