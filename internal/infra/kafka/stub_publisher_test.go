package kafka

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/arklim/social-login-auth/internal/core/domain"
	"github.com/arklim/social-login-auth/internal/infra/logger"
)

func TestStubPublisherLogsWithoutPersonalData(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	publisher := NewStubPublisher(zap.New(core))

	ctx := logger.WithRequestID(context.Background(), "req-1")
	err := publisher.PublishUserRegistered(ctx, domain.UserRegisteredEvent{
		UserID:         "user-1",
		Provider:       "kakao",
		ProviderUserID: "4242",
		Email:          "john.doe@example.com",
		RegisteredAt:   time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("PublishUserRegistered returned error: %v", err)
	}

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected one log entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["event_type"] != EventUserRegistered || fields["user_id"] != "user-1" {
		t.Fatalf("unexpected fields: %v", fields)
	}
	if fields["email"] != "joh***@example.com" {
		t.Fatalf("expected masked email, got %v", fields["email"])
	}
	if fields["request_id"] != "req-1" {
		t.Fatalf("expected request id from context, got %v", fields["request_id"])
	}
}

func TestStubPublisherAcceptsEveryEvent(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	publisher := NewStubPublisher(zap.New(core))
	ctx := context.Background()

	if err := publisher.PublishUserLoggedIn(ctx, domain.UserLoggedInEvent{UserID: "u", LoginType: domain.LoginTypeLogin}); err != nil {
		t.Fatalf("PublishUserLoggedIn: %v", err)
	}
	if err := publisher.PublishUserLoggedOut(ctx, domain.UserLoggedOutEvent{UserID: "u", RefreshCleared: true}); err != nil {
		t.Fatalf("PublishUserLoggedOut: %v", err)
	}
	if err := publisher.PublishTokenRefreshed(ctx, domain.TokenRefreshedEvent{UserID: "u"}); err != nil {
		t.Fatalf("PublishTokenRefreshed: %v", err)
	}

	if got := logs.FilterField(zap.String("user_id", "u")).Len(); got != 3 {
		t.Fatalf("expected three logged events, got %d", got)
	}
}
