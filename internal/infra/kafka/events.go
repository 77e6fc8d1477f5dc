package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arklim/social-login-auth/internal/core/domain"
	"github.com/arklim/social-login-auth/internal/core/port"
	"github.com/arklim/social-login-auth/internal/infra/config"
	"github.com/arklim/social-login-auth/internal/infra/logger"
)

const schemaVersion = "1.0"

// Event types published on the bus. Topics are derived by prefixing the configured topic prefix.
const (
	EventUserRegistered = "auth.user.registered"
	EventUserLoggedIn   = "auth.user.logged_in"
	EventUserLoggedOut  = "auth.user.logged_out"
	EventTokenRefreshed = "auth.token.refreshed"
)

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	UserID    string           `json:"user_id,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   any              `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

// outgoing is one event ready to be enveloped. summary carries the log fields,
// which leave out personal data present in payload.
type outgoing struct {
	id        string
	eventType string
	userID    string
	at        time.Time
	payload   any
	summary   []zap.Field
}

func (o outgoing) timestamp() time.Time {
	if o.at.IsZero() {
		return time.Now().UTC()
	}
	return o.at.UTC()
}

func registeredEvent(event domain.UserRegisteredEvent) outgoing {
	return outgoing{
		id:        event.EventID,
		eventType: EventUserRegistered,
		userID:    event.UserID,
		at:        event.RegisteredAt,
		payload: struct {
			UserID         string    `json:"user_id"`
			Provider       string    `json:"provider"`
			ProviderUserID string    `json:"provider_user_id"`
			Nickname       string    `json:"nickname,omitempty"`
			Email          string    `json:"email,omitempty"`
			RegisteredAt   time.Time `json:"registered_at"`
		}{
			UserID:         event.UserID,
			Provider:       event.Provider,
			ProviderUserID: event.ProviderUserID,
			Nickname:       event.Nickname,
			Email:          event.Email,
			RegisteredAt:   event.RegisteredAt.UTC(),
		},
		summary: []zap.Field{
			zap.String("provider", event.Provider),
			zap.String("provider_user_id", event.ProviderUserID),
			zap.String("email", logger.MaskEmail(event.Email)),
		},
	}
}

func loggedInEvent(event domain.UserLoggedInEvent) outgoing {
	return outgoing{
		id:        event.EventID,
		eventType: EventUserLoggedIn,
		userID:    event.UserID,
		at:        event.LoggedInAt,
		payload: struct {
			UserID     string    `json:"user_id"`
			Provider   string    `json:"provider"`
			LoginType  string    `json:"login_type"`
			LoggedInAt time.Time `json:"logged_in_at"`
		}{
			UserID:     event.UserID,
			Provider:   event.Provider,
			LoginType:  string(event.LoginType),
			LoggedInAt: event.LoggedInAt.UTC(),
		},
		summary: []zap.Field{
			zap.String("provider", event.Provider),
			zap.String("login_type", string(event.LoginType)),
		},
	}
}

func loggedOutEvent(event domain.UserLoggedOutEvent) outgoing {
	return outgoing{
		id:        event.EventID,
		eventType: EventUserLoggedOut,
		userID:    event.UserID,
		at:        event.LoggedOutAt,
		payload: struct {
			UserID           string    `json:"user_id"`
			TokenID          string    `json:"token_id,omitempty"`
			LoggedOutAt      time.Time `json:"logged_out_at"`
			RevocationTTLSec int64     `json:"revocation_ttl_seconds"`
			RefreshCleared   bool      `json:"refresh_cleared"`
		}{
			UserID:           event.UserID,
			TokenID:          event.TokenID,
			LoggedOutAt:      event.LoggedOutAt.UTC(),
			RevocationTTLSec: int64(event.RevocationTTL / time.Second),
			RefreshCleared:   event.RefreshCleared,
		},
		summary: []zap.Field{
			zap.Duration("revocation_ttl", event.RevocationTTL),
			zap.Bool("refresh_cleared", event.RefreshCleared),
		},
	}
}

func refreshedEvent(event domain.TokenRefreshedEvent) outgoing {
	return outgoing{
		id:        event.EventID,
		eventType: EventTokenRefreshed,
		userID:    event.UserID,
		at:        event.RefreshedAt,
		payload: struct {
			UserID      string    `json:"user_id"`
			PreviousJTI string    `json:"previous_jti,omitempty"`
			RefreshedAt time.Time `json:"refreshed_at"`
		}{
			UserID:      event.UserID,
			PreviousJTI: event.PreviousJTI,
			RefreshedAt: event.RefreshedAt.UTC(),
		},
	}
}

func (p *EventPublisher) publish(ctx context.Context, o outgoing) error {
	eventID := o.id
	if eventID == "" {
		eventID = uuid.NewString()
	}

	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		metadata["trace_id"] = sc.TraceID().String()
	}

	body, err := json.Marshal(eventEnvelope{
		EventID:   eventID,
		EventType: o.eventType,
		UserID:    o.userID,
		Timestamp: o.timestamp(),
		Version:   schemaVersion,
		Payload:   o.payload,
		Metadata:  metadata,
	})
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", o.eventType, err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(o.eventType),
		Value: sarama.ByteEncoder(body),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(o.eventType)},
			{Key: []byte("schema_version"), Value: []byte(schemaVersion)},
		},
	}
	if o.userID != "" {
		message.Key = sarama.StringEncoder(o.userID)
	}

	if err := p.producer.Send(ctx, message); err != nil {
		p.logger.Warn("event not enqueued", zap.String("event_type", o.eventType), zap.Error(err))
		return err
	}
	return nil
}

// PublishUserRegistered publishes auth.user.registered events.
func (p *EventPublisher) PublishUserRegistered(ctx context.Context, event domain.UserRegisteredEvent) error {
	return p.publish(ctx, registeredEvent(event))
}

// PublishUserLoggedIn publishes auth.user.logged_in events.
func (p *EventPublisher) PublishUserLoggedIn(ctx context.Context, event domain.UserLoggedInEvent) error {
	return p.publish(ctx, loggedInEvent(event))
}

// PublishUserLoggedOut publishes auth.user.logged_out events.
func (p *EventPublisher) PublishUserLoggedOut(ctx context.Context, event domain.UserLoggedOutEvent) error {
	return p.publish(ctx, loggedOutEvent(event))
}

// PublishTokenRefreshed publishes auth.token.refreshed events.
func (p *EventPublisher) PublishTokenRefreshed(ctx context.Context, event domain.TokenRefreshedEvent) error {
	return p.publish(ctx, refreshedEvent(event))
}

var _ port.EventPublisher = (*EventPublisher)(nil)
