package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/arklim/social-login-auth/internal/core/port"
)

const defaultRevocationPrefix = "auth:revoked"

var errEmptyTokenIdentity = errors.New("token identity must not be empty")

// RevocationRepository remembers logged-out access tokens by digest until they would
// have expired anyway. The stored value is the revocation time in unix milliseconds.
type RevocationRepository struct {
	client *red.Client
	prefix string
	now    func() time.Time
}

func NewRevocationRepository(client *red.Client, keyPrefix string) *RevocationRepository {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultRevocationPrefix
	}
	return &RevocationRepository{client: client, prefix: prefix, now: time.Now}
}

// Revoke marks the token for at least ttl. Sub-second ttls are kept, go-redis sends PX for them.
func (r *RevocationRepository) Revoke(ctx context.Context, tokenIdentity string, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("revocation ttl must be positive, got %v", ttl)
	}
	key, err := r.key(tokenIdentity)
	if err != nil {
		return err
	}

	marker := strconv.FormatInt(r.now().UnixMilli(), 10)
	if err := r.client.Set(ctx, key, marker, roundUpTTL(ttl)).Err(); err != nil {
		return fmt.Errorf("redis revoke token: %w", err)
	}
	return nil
}

// IsRevoked reports whether an unexpired revocation exists for the token.
func (r *RevocationRepository) IsRevoked(ctx context.Context, tokenIdentity string) (bool, error) {
	key, err := r.key(tokenIdentity)
	if err != nil {
		return false, err
	}

	n, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis check revoked token: %w", err)
	}
	return n > 0, nil
}

func (r *RevocationRepository) key(tokenIdentity string) (string, error) {
	identity := strings.TrimSpace(tokenIdentity)
	if identity == "" {
		return "", errEmptyTokenIdentity
	}
	return r.prefix + ":" + identity, nil
}

var _ port.RevocationStore = (*RevocationRepository)(nil)
