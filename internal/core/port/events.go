package port

import (
	"context"

	"github.com/arklim/social-login-auth/internal/core/domain"
)

// EventPublisher publishes domain events to the message bus.
type EventPublisher interface {
	PublishUserRegistered(ctx context.Context, event domain.UserRegisteredEvent) error
	PublishUserLoggedIn(ctx context.Context, event domain.UserLoggedInEvent) error
	PublishUserLoggedOut(ctx context.Context, event domain.UserLoggedOutEvent) error
	PublishTokenRefreshed(ctx context.Context, event domain.TokenRefreshedEvent) error
}
