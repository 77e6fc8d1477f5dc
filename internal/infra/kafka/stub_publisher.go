package kafka

import (
	"context"

	"go.uber.org/zap"

	"github.com/arklim/social-login-auth/internal/core/domain"
	"github.com/arklim/social-login-auth/internal/core/port"
	"github.com/arklim/social-login-auth/internal/infra/logger"
)

// StubPublisher writes events to the log when no broker is configured.
type StubPublisher struct {
	logger *zap.Logger
}

func NewStubPublisher(log *zap.Logger) *StubPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &StubPublisher{logger: log.Named("events")}
}

func (p *StubPublisher) record(ctx context.Context, o outgoing) error {
	fields := append([]zap.Field{
		zap.String("event_type", o.eventType),
		zap.String("user_id", o.userID),
		zap.Time("occurred_at", o.timestamp()),
	}, o.summary...)
	logger.FromContext(ctx, p.logger).Info("event not shipped, kafka disabled", fields...)
	return nil
}

func (p *StubPublisher) PublishUserRegistered(ctx context.Context, event domain.UserRegisteredEvent) error {
	return p.record(ctx, registeredEvent(event))
}

func (p *StubPublisher) PublishUserLoggedIn(ctx context.Context, event domain.UserLoggedInEvent) error {
	return p.record(ctx, loggedInEvent(event))
}

func (p *StubPublisher) PublishUserLoggedOut(ctx context.Context, event domain.UserLoggedOutEvent) error {
	return p.record(ctx, loggedOutEvent(event))
}

func (p *StubPublisher) PublishTokenRefreshed(ctx context.Context, event domain.TokenRefreshedEvent) error {
	return p.record(ctx, refreshedEvent(event))
}

var _ port.EventPublisher = (*StubPublisher)(nil)
