package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"slotbook/pkg/clock"
	"slotbook/pkg/model"
)

const audience = "slotbook-api"

var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	Phone string     `json:"phone"`
	Role  model.Role `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and parses HS256 session tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	clock  clock.Clock
}

func NewTokenIssuer(secret string, ttl time.Duration, c clock.Clock) *TokenIssuer {
	if c == nil {
		c = clock.Real()
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, clock: c}
}

func (t *TokenIssuer) Issue(id *model.Identity) (string, time.Time, error) {
	now := t.clock.Now()
	expiresAt := now.Add(t.ttl)
	claims := Claims{
		Phone: id.Phone,
		Role:  id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Audience:  []string{audience},
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return token, expiresAt, nil
}

func (t *TokenIssuer) Parse(raw string) (*model.Identity, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims,
		func(token *jwt.Token) (any, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithTimeFunc(t.clock.Now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !tok.Valid || claims.Subject == "" || !claims.Role.Valid() {
		return nil, ErrInvalidToken
	}

	return &model.Identity{UserID: claims.Subject, Phone: claims.Phone, Role: claims.Role}, nil
}
