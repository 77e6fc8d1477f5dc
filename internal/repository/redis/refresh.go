package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/arklim/social-login-auth/internal/core/domain"
	"github.com/arklim/social-login-auth/internal/core/port"
)

const defaultRefreshPrefix = "auth:refresh"

const (
	rotateStatusNotFound int64 = 0
	rotateStatusMismatch int64 = 1
	rotateStatusRotated  int64 = 2
)

// KEYS[1] refresh key; ARGV[1] expected token; ARGV[2] next token; ARGV[3] ttl in ms.
const rotateRefreshScript = `
local current = redis.call("GET", KEYS[1])
if not current then
	return 0
end
if current ~= ARGV[1] then
	return 1
end
redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
return 2
`

var rotateRefreshLua = red.NewScript(rotateRefreshScript)

// RefreshRepository keeps the single live refresh token of each user.
type RefreshRepository struct {
	client *red.Client
	prefix string
}

// NewRefreshRepository wires a Redis client into a refresh-token repository.
func NewRefreshRepository(client *red.Client, keyPrefix string) *RefreshRepository {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultRefreshPrefix
	}

	return &RefreshRepository{client: client, prefix: prefix}
}

// Save overwrites the refresh token stored for the user.
func (r *RefreshRepository) Save(ctx context.Context, userID, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("ttl must be positive")
	}
	if strings.TrimSpace(token) == "" {
		return errors.New("refresh token must not be empty")
	}

	key := r.key(userID)
	if key == "" {
		return errors.New("user id must not be empty")
	}

	if err := r.client.Set(ctx, key, token, roundUpTTL(ttl)).Err(); err != nil {
		return fmt.Errorf("redis set refresh token: %w", err)
	}

	return nil
}

// Get returns the stored refresh token, reporting false when none is live.
func (r *RefreshRepository) Get(ctx context.Context, userID string) (string, bool, error) {
	key := r.key(userID)
	if key == "" {
		return "", false, errors.New("user id must not be empty")
	}

	value, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis get refresh token: %w", err)
	}

	return value, true, nil
}

// Clear drops the refresh token stored for the user. Clearing an absent record is not an error.
func (r *RefreshRepository) Clear(ctx context.Context, userID string) error {
	key := r.key(userID)
	if key == "" {
		return errors.New("user id must not be empty")
	}

	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del refresh token: %w", err)
	}

	return nil
}

// Rotate swaps expected for next in one script execution so that two callers
// presenting the same refresh token cannot both succeed.
func (r *RefreshRepository) Rotate(ctx context.Context, userID, expected, next string, ttl time.Duration) (domain.RotateOutcome, error) {
	if ttl <= 0 {
		return domain.RotateNotFound, errors.New("ttl must be positive")
	}
	if expected == "" || next == "" {
		return domain.RotateNotFound, errors.New("refresh tokens must not be empty")
	}

	key := r.key(userID)
	if key == "" {
		return domain.RotateNotFound, errors.New("user id must not be empty")
	}

	code, err := rotateRefreshLua.Run(ctx, r.client, []string{key}, expected, next, roundUpTTL(ttl).Milliseconds()).Int64()
	if err != nil {
		return domain.RotateNotFound, fmt.Errorf("redis rotate refresh token: %w", err)
	}

	switch code {
	case rotateStatusNotFound:
		return domain.RotateNotFound, nil
	case rotateStatusMismatch:
		return domain.RotateMismatch, nil
	case rotateStatusRotated:
		return domain.RotateSwapped, nil
	default:
		return domain.RotateNotFound, fmt.Errorf("redis rotate refresh token: unexpected status %d", code)
	}
}

func (r *RefreshRepository) key(userID string) string {
	trimmed := strings.TrimSpace(userID)
	if trimmed == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s", r.prefix, trimmed)
}

var _ port.RefreshStore = (*RefreshRepository)(nil)
