package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"

	"slotbook/pkg/clock"
	"slotbook/pkg/model"
)

var ErrChallengeNotFound = errors.New("verification challenge not found")

// ChallengeStore keeps pending phone verifications until they expire.
type ChallengeStore interface {
	Save(ctx context.Context, ch *model.Challenge) error
	Get(ctx context.Context, handle string) (*model.Challenge, error)
	// ReserveAttempt atomically counts one more guess against the challenge
	// and returns the new count. It must be called before the code is compared.
	ReserveAttempt(ctx context.Context, handle string) (int, error)
	// Consume removes the challenge and reports whether this call removed it.
	// Only one caller can consume a given challenge.
	Consume(ctx context.Context, handle string) (bool, error)
	Delete(ctx context.Context, handle string) error
}

const (
	challengeKeyPrefix = "slotbook:challenge:"
	challengeDataField = "data"
	attemptsField      = "attempts"
)

// reserveAttemptScript increments the attempt counter only while the
// challenge exists, so an expired key is never recreated without a TTL.
var reserveAttemptScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return -1
end
return redis.call("HINCRBY", KEYS[1], ARGV[1], 1)
`)

type redisChallengeStore struct {
	rdb   *redis.Client
	clock clock.Clock
}

func NewRedisChallengeStore(rdb *redis.Client, c clock.Clock) ChallengeStore {
	if c == nil {
		c = clock.Real()
	}
	return &redisChallengeStore{rdb: rdb, clock: c}
}

func challengeKey(handle string) string {
	return challengeKeyPrefix + handle
}

func (s *redisChallengeStore) Save(ctx context.Context, ch *model.Challenge) error {
	data, err := json.Marshal(ch)
	if err != nil {
		return fmt.Errorf("encode challenge: %w", err)
	}
	ttl := ch.ExpiresAt.Sub(s.clock.Now())
	if ttl <= 0 {
		return fmt.Errorf("challenge already expired")
	}

	key := challengeKey(ch.Handle)
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, challengeDataField, data, attemptsField, ch.Attempts)
		pipe.PExpire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("store challenge: %w", err)
	}
	return nil
}

func (s *redisChallengeStore) Get(ctx context.Context, handle string) (*model.Challenge, error) {
	fields, err := s.rdb.HGetAll(ctx, challengeKey(handle)).Result()
	if err != nil {
		return nil, fmt.Errorf("load challenge: %w", err)
	}
	data, ok := fields[challengeDataField]
	if !ok {
		return nil, ErrChallengeNotFound
	}

	var ch model.Challenge
	if err := json.Unmarshal([]byte(data), &ch); err != nil {
		return nil, fmt.Errorf("decode challenge: %w", err)
	}
	if attempts, err := strconv.Atoi(fields[attemptsField]); err == nil {
		ch.Attempts = attempts
	}
	return &ch, nil
}

func (s *redisChallengeStore) ReserveAttempt(ctx context.Context, handle string) (int, error) {
	n, err := reserveAttemptScript.Run(ctx, s.rdb, []string{challengeKey(handle)}, attemptsField).Int()
	if err != nil {
		return 0, fmt.Errorf("reserve attempt: %w", err)
	}
	if n < 0 {
		return 0, ErrChallengeNotFound
	}
	return n, nil
}

func (s *redisChallengeStore) Consume(ctx context.Context, handle string) (bool, error) {
	removed, err := s.rdb.Del(ctx, challengeKey(handle)).Result()
	if err != nil {
		return false, fmt.Errorf("consume challenge: %w", err)
	}
	return removed == 1, nil
}

func (s *redisChallengeStore) Delete(ctx context.Context, handle string) error {
	if err := s.rdb.Del(ctx, challengeKey(handle)).Err(); err != nil {
		return fmt.Errorf("delete challenge: %w", err)
	}
	return nil
}

type memoryChallengeStore struct {
	mu         sync.Mutex
	clock      clock.Clock
	challenges map[string]model.Challenge
}

func NewMemoryChallengeStore(c clock.Clock) ChallengeStore {
	if c == nil {
		c = clock.Real()
	}
	return &memoryChallengeStore{clock: c, challenges: make(map[string]model.Challenge)}
}

func (s *memoryChallengeStore) Save(_ context.Context, ch *model.Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictLocked()
	s.challenges[ch.Handle] = *ch
	return nil
}

func (s *memoryChallengeStore) Get(_ context.Context, handle string) (*model.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictLocked()
	ch, ok := s.challenges[handle]
	if !ok {
		return nil, ErrChallengeNotFound
	}
	return &ch, nil
}

func (s *memoryChallengeStore) ReserveAttempt(_ context.Context, handle string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictLocked()
	ch, ok := s.challenges[handle]
	if !ok {
		return 0, ErrChallengeNotFound
	}
	ch.Attempts++
	s.challenges[handle] = ch
	return ch.Attempts, nil
}

func (s *memoryChallengeStore) Consume(_ context.Context, handle string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictLocked()
	if _, ok := s.challenges[handle]; !ok {
		return false, nil
	}
	delete(s.challenges, handle)
	return true, nil
}

func (s *memoryChallengeStore) Delete(_ context.Context, handle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.challenges, handle)
	return nil
}

func (s *memoryChallengeStore) evictLocked() {
	now := s.clock.Now()
	for handle, ch := range s.challenges {
		if !now.Before(ch.ExpiresAt) {
			delete(s.challenges, handle)
		}
	}
}
