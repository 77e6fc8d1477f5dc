package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/social-login-auth/internal/core/domain"
	"github.com/arklim/social-login-auth/internal/core/port"
	"github.com/arklim/social-login-auth/internal/infra/logger"
	"github.com/arklim/social-login-auth/internal/repository"
)

// CreatePlatformInput describes a new SNS account link.
type CreatePlatformInput struct {
	PlatformType string
	AccountURL   string
	AccountName  string
}

// UpdatePlatformInput carries the mutable fields of a link. Empty values keep the stored ones.
type UpdatePlatformInput struct {
	AccountURL  string
	AccountName string
}

// PlatformService manages the SNS accounts a user links to their profile.
type PlatformService struct {
	platforms port.PlatformRepository
	logger    *zap.Logger
	now       func() time.Time
}

// NewPlatformService constructs a PlatformService.
func NewPlatformService(platforms port.PlatformRepository, logger *zap.Logger) *PlatformService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PlatformService{
		platforms: platforms,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the internal clock for deterministic tests.
func (s *PlatformService) WithClock(now func() time.Time) *PlatformService {
	if now != nil {
		s.now = now
	}
	return s
}

// List returns every platform linked by userID.
func (s *PlatformService) List(ctx context.Context, userID string) ([]domain.SnsPlatform, error) {
	platforms, err := s.platforms.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list platforms: %w", err)
	}
	return platforms, nil
}

// Create links a new account. Links start unverified; the same (type, url) pair may be linked once per user.
func (s *PlatformService) Create(ctx context.Context, userID string, input CreatePlatformInput) (*domain.SnsPlatform, error) {
	platformType := strings.ToUpper(strings.TrimSpace(input.PlatformType))
	accountURL := strings.TrimSpace(input.AccountURL)
	if platformType == "" || accountURL == "" {
		return nil, fmt.Errorf("%w: platform type and account url are required", ErrInvalidRequest)
	}

	exists, err := s.platforms.Exists(ctx, userID, platformType, accountURL)
	if err != nil {
		return nil, fmt.Errorf("check platform: %w", err)
	}
	if exists {
		return nil, ErrPlatformAlreadyExists
	}

	now := s.now()
	created, err := s.platforms.Create(ctx, domain.SnsPlatform{
		UserID:       userID,
		PlatformType: platformType,
		AccountURL:   accountURL,
		AccountName:  strings.TrimSpace(input.AccountName),
		Verified:     false,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrPlatformAlreadyExists
		}
		return nil, fmt.Errorf("create platform: %w", err)
	}

	s.log(ctx).Info("platform linked",
		zap.String("user_id", userID),
		zap.Int64("platform_id", created.ID),
		zap.String("platform_type", created.PlatformType),
	)

	return created, nil
}

// Get returns one platform owned by userID.
func (s *PlatformService) Get(ctx context.Context, userID string, platformID int64) (*domain.SnsPlatform, error) {
	platform, err := s.platforms.Get(ctx, userID, platformID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPlatformNotFound
		}
		return nil, fmt.Errorf("get platform: %w", err)
	}
	return platform, nil
}

// Update changes the account name or url. Verification status is never touched.
func (s *PlatformService) Update(ctx context.Context, userID string, platformID int64, input UpdatePlatformInput) (*domain.SnsPlatform, error) {
	current, err := s.Get(ctx, userID, platformID)
	if err != nil {
		return nil, err
	}

	if url := strings.TrimSpace(input.AccountURL); url != "" {
		current.AccountURL = url
	}
	if name := strings.TrimSpace(input.AccountName); name != "" {
		current.AccountName = name
	}
	current.UpdatedAt = s.now()

	updated, err := s.platforms.Update(ctx, *current)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrPlatformNotFound
		case errors.Is(err, repository.ErrConflict):
			return nil, ErrPlatformAlreadyExists
		}
		return nil, fmt.Errorf("update platform: %w", err)
	}
	return updated, nil
}

// Delete unlinks a platform owned by userID.
func (s *PlatformService) Delete(ctx context.Context, userID string, platformID int64) error {
	if err := s.platforms.Delete(ctx, userID, platformID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrPlatformNotFound
		}
		return fmt.Errorf("delete platform: %w", err)
	}

	s.log(ctx).Info("platform unlinked", zap.String("user_id", userID), zap.Int64("platform_id", platformID))
	return nil
}

func (s *PlatformService) log(ctx context.Context) *zap.Logger {
	return logger.FromContext(ctx, s.logger)
}
