package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/go-marketplace-auth/internal/domain"
)

const defaultPrefix = "otp"

// consumeChallengeLua deletes the challenge hash only when it still carries
// the expected challenge_id.
// KEYS[1] = challenge key
// ARGV[1] = challenge id
//
// Returns 1 when this caller consumed the challenge, 0 otherwise.
var consumeChallengeLua = goredis.NewScript(`
if redis.call('HGET', KEYS[1], 'challenge_id') == ARGV[1] then
  redis.call('DEL', KEYS[1])
  return 1
end
return 0
`)

// failChallengeLua counts a wrong code against the challenge, provided it still
// carries the expected challenge_id, and deletes it once the limit is reached.
// KEYS[1] = challenge key
// ARGV[1] = challenge id
// ARGV[2] = max attempts
//
// Returns the new attempt count, or 0 when the challenge is gone or replaced.
var failChallengeLua = goredis.NewScript(`
if redis.call('HGET', KEYS[1], 'challenge_id') ~= ARGV[1] then
  return 0
end
local n = redis.call('HINCRBY', KEYS[1], 'attempts', 1)
if n >= tonumber(ARGV[2]) then
  redis.call('DEL', KEYS[1])
end
return n
`)

// ChallengeStore keeps OTP challenges in Redis hashes keyed by
// prefix:purpose:email. Keys carry a PEXPIRE matching the challenge expiry.
type ChallengeStore struct {
	redis  goredis.UniversalClient
	prefix string
}

func NewChallengeStore(client goredis.UniversalClient, prefix string) *ChallengeStore {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &ChallengeStore{redis: client, prefix: prefix}
}

func (s *ChallengeStore) key(email string, purpose domain.Purpose) string {
	return s.prefix + ":" + string(purpose) + ":" + email
}

// Put replaces any existing challenge for (email, purpose).
func (s *ChallengeStore) Put(ctx context.Context, c *domain.Challenge) error {
	key := s.key(c.Email, c.Purpose)
	ttl := time.Until(time.Unix(c.ExpiresAt, 0))
	if ttl <= 0 {
		ttl = time.Second
	}
	_, err := s.redis.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			"challenge_id", c.ChallengeID,
			"envelope", c.Envelope,
			"issued_at", c.IssuedAt.UTC().Format(time.RFC3339Nano),
			"expires_at", strconv.FormatInt(c.ExpiresAt, 10),
			"attempts", strconv.Itoa(c.Attempts),
		)
		pipe.PExpire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("store challenge: %w", err)
	}
	return nil
}

// Get returns the current challenge or ErrNotFound.
func (s *ChallengeStore) Get(ctx context.Context, email string, purpose domain.Purpose) (*domain.Challenge, error) {
	fields, err := s.redis.HGetAll(ctx, s.key(email, purpose)).Result()
	if err != nil {
		return nil, fmt.Errorf("load challenge: %w", err)
	}
	if len(fields) == 0 || fields["challenge_id"] == "" {
		return nil, fmt.Errorf("challenge not found: %w", domain.ErrNotFound)
	}
	expiresAt, err := strconv.ParseInt(fields["expires_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode challenge expiry: %w", err)
	}
	issuedAt, err := time.Parse(time.RFC3339Nano, fields["issued_at"])
	if err != nil {
		return nil, fmt.Errorf("decode challenge issue time: %w", err)
	}
	attempts := 0
	if v := fields["attempts"]; v != "" {
		if attempts, err = strconv.Atoi(v); err != nil {
			return nil, fmt.Errorf("decode challenge attempts: %w", err)
		}
	}
	return &domain.Challenge{
		Email:       email,
		Purpose:     purpose,
		ChallengeID: fields["challenge_id"],
		Envelope:    fields["envelope"],
		IssuedAt:    issuedAt,
		ExpiresAt:   expiresAt,
		Attempts:    attempts,
	}, nil
}

// Consume removes the challenge if it still matches challengeID. Exactly one
// concurrent caller observes true.
func (s *ChallengeStore) Consume(ctx context.Context, email string, purpose domain.Purpose, challengeID string) (bool, error) {
	n, err := consumeChallengeLua.Run(ctx, s.redis, []string{s.key(email, purpose)}, challengeID).Int()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return false, fmt.Errorf("consume challenge: %w", err)
	}
	return n == 1, nil
}

// RecordFailure counts one wrong code and deletes the challenge when
// maxAttempts is reached. It returns the new count, or 0 when challengeID is
// no longer current.
func (s *ChallengeStore) RecordFailure(ctx context.Context, email string, purpose domain.Purpose, challengeID string, maxAttempts int) (int, error) {
	n, err := failChallengeLua.Run(ctx, s.redis, []string{s.key(email, purpose)}, challengeID, maxAttempts).Int()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return 0, fmt.Errorf("record challenge failure: %w", err)
	}
	return n, nil
}
