package usecase

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/arklim/social-login-auth/internal/core/domain"
)

func TestIdentityResolver_ProviderLookupIsCaseInsensitive(t *testing.T) {
	resolver := NewIdentityResolver(newMemoryUserRepository(), zaptest.NewLogger(t), newFakeProvider(), nil)

	if _, err := resolver.Provider("KaKaO"); err != nil {
		t.Fatalf("expected provider lookup to succeed, got %v", err)
	}
	if _, err := resolver.Provider("google"); !errors.Is(err, ErrUnsupportedProvider) {
		t.Fatalf("expected ErrUnsupportedProvider, got %v", err)
	}
	if names := resolver.Providers(); len(names) != 1 || names[0] != testProvider {
		t.Fatalf("unexpected providers: %v", names)
	}
}

func TestIdentityResolver_FindOrCreateUserIsIdempotent(t *testing.T) {
	users := newMemoryUserRepository()
	clock := newTestClock()
	resolver := NewIdentityResolver(users, zaptest.NewLogger(t)).WithClock(clock.Now)
	ctx := context.Background()

	profile := domain.ProviderProfile{ID: "42", Nickname: "neo", Email: "neo@example.com"}

	first, isNew, err := resolver.FindOrCreateUser(ctx, testProvider, profile)
	if err != nil || !isNew {
		t.Fatalf("expected new user, got %v / %v", isNew, err)
	}
	if first.Role != domain.UserRoleUser || !first.CreatedAt.Equal(clock.Now()) {
		t.Fatalf("unexpected defaults: %+v", first)
	}

	second, isNew, err := resolver.FindOrCreateUser(ctx, testProvider, profile)
	if err != nil || isNew {
		t.Fatalf("expected existing user, got %v / %v", isNew, err)
	}
	if first.ID != second.ID {
		t.Fatalf("identity bound to two users: %s and %s", first.ID, second.ID)
	}

	other, isNew, err := resolver.FindOrCreateUser(ctx, "naver", profile)
	if err != nil || !isNew || other.ID == first.ID {
		t.Fatalf("same provider id on another provider must be a distinct user")
	}
}

func TestIdentityResolver_ProfileWithoutIDIsUpstreamError(t *testing.T) {
	provider := newFakeProvider()
	provider.profiles["code-anon"] = domain.ProviderProfile{}
	resolver := NewIdentityResolver(newMemoryUserRepository(), zaptest.NewLogger(t), provider)

	_, _, err := resolver.Resolve(context.Background(), provider, "code-anon", testRedirectURI)
	if !errors.Is(err, ErrUpstreamAuth) {
		t.Fatalf("expected ErrUpstreamAuth, got %v", err)
	}
}

func TestIdentityResolver_RepositoryFailureIsNotUpstream(t *testing.T) {
	users := newMemoryUserRepository()
	users.err = errors.New("connection refused")
	provider := newFakeProvider()
	resolver := NewIdentityResolver(users, zaptest.NewLogger(t), provider)

	_, _, err := resolver.Resolve(context.Background(), provider, "code-alice", testRedirectURI)
	if err == nil || errors.Is(err, ErrUpstreamAuth) {
		t.Fatalf("expected internal error, got %v", err)
	}
}
