package repository

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"
)

const otpKeyPrefix = "otp:"

// compare-and-delete in one round trip so a code can only ever be
// consumed once, even under concurrent duplicate submissions.
var otpConsumeScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	redis.call("DEL", KEYS[1])
	return 1
end
return 0
`)

// OTPStore issues and verifies single-use email verification codes.
// At most one live code per email; issuing overwrites the previous one.
type OTPStore interface {
	Issue(ctx context.Context, email string) (code string, expiresAt time.Time, err error)
	// VerifyAndConsume atomically deletes the code when it matches.
	VerifyAndConsume(ctx context.Context, email, code string) (bool, error)
	Delete(ctx context.Context, email string) error
}

type redisOTPStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewOTPStore(client *redis.Client, ttl time.Duration) OTPStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &redisOTPStore{client: client, ttl: ttl}
}

func (s *redisOTPStore) Issue(ctx context.Context, email string) (string, time.Time, error) {
	code, err := randomCode(6)
	if err != nil {
		return "", time.Time{}, err
	}
	if err := s.client.Set(ctx, otpKeyPrefix+email, code, s.ttl).Err(); err != nil {
		return "", time.Time{}, err
	}
	return code, time.Now().Add(s.ttl), nil
}

func (s *redisOTPStore) VerifyAndConsume(ctx context.Context, email, code string) (bool, error) {
	if code == "" {
		return false, nil
	}
	n, err := otpConsumeScript.Run(ctx, s.client, []string{otpKeyPrefix + email}, code).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *redisOTPStore) Delete(ctx context.Context, email string) error {
	err := s.client.Del(ctx, otpKeyPrefix+email).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}

// randomCode returns a uniformly random numeric code as a string,
// preserving leading zeros.
func randomCode(digits int) (string, error) {
	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", digits, n), nil
}
