package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/arklim/social-login-auth/internal/core/domain"
	"github.com/arklim/social-login-auth/internal/core/port"
	"github.com/arklim/social-login-auth/internal/repository"
)

const platformsTable = "user_sns_platforms"

var platformColumns = []string{
	"id",
	"user_id",
	"platform_type",
	"account_url",
	"account_name",
	"verified",
	"created_at",
	"updated_at",
}

// PlatformRepository implements port.PlatformRepository using PostgreSQL.
// Every read and write is scoped by the owning user id.
type PlatformRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewPlatformRepository wires a PostgreSQL-backed SNS platform repository.
func NewPlatformRepository(exec pgExecutor) *PlatformRepository {
	return &PlatformRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts a platform link and returns the stored row.
func (r *PlatformRepository) Create(ctx context.Context, platform domain.SnsPlatform) (*domain.SnsPlatform, error) {
	stmt, args, err := r.builder.Insert(platformsTable).
		Columns("user_id", "platform_type", "account_url", "account_name", "verified", "created_at", "updated_at").
		Values(
			platform.UserID,
			platform.PlatformType,
			platform.AccountURL,
			platform.AccountName,
			platform.Verified,
			platform.CreatedAt,
			platform.UpdatedAt,
		).
		Suffix("RETURNING " + strings.Join(platformColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert platform sql: %w", err)
	}

	created, err := scanPlatform(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, repository.ErrConflict
		}
		return nil, fmt.Errorf("insert platform: %w", err)
	}
	return created, nil
}

// Exists reports whether the user already linked the account.
func (r *PlatformRepository) Exists(ctx context.Context, userID, platformType, accountURL string) (bool, error) {
	stmt, args, err := r.builder.
		Select("1").
		From(platformsTable).
		Where(squirrel.Eq{
			"user_id":       userID,
			"platform_type": platformType,
			"account_url":   accountURL,
		}).
		Prefix("SELECT EXISTS (").
		Suffix(")").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build platform exists sql: %w", err)
	}

	var exists bool
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("check platform exists: %w", err)
	}
	return exists, nil
}

// ListByUser returns the user's platform links ordered by creation.
func (r *PlatformRepository) ListByUser(ctx context.Context, userID string) ([]domain.SnsPlatform, error) {
	stmt, args, err := r.builder.
		Select(platformColumns...).
		From(platformsTable).
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list platforms sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list platforms: %w", err)
	}
	defer rows.Close()

	platforms := make([]domain.SnsPlatform, 0)
	for rows.Next() {
		platform, err := scanPlatform(rows)
		if err != nil {
			return nil, fmt.Errorf("scan platform: %w", err)
		}
		platforms = append(platforms, *platform)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate platforms: %w", err)
	}

	return platforms, nil
}

// Get returns one platform link owned by the user.
func (r *PlatformRepository) Get(ctx context.Context, userID string, platformID int64) (*domain.SnsPlatform, error) {
	stmt, args, err := r.builder.
		Select(platformColumns...).
		From(platformsTable).
		Where(squirrel.Eq{"id": platformID, "user_id": userID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get platform sql: %w", err)
	}

	platform, err := scanPlatform(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get platform: %w", err)
	}
	return platform, nil
}

// Update rewrites the account name and url. The verified flag is never touched.
func (r *PlatformRepository) Update(ctx context.Context, platform domain.SnsPlatform) (*domain.SnsPlatform, error) {
	stmt, args, err := r.builder.Update(platformsTable).
		Set("account_name", platform.AccountName).
		Set("account_url", platform.AccountURL).
		Set("updated_at", platform.UpdatedAt).
		Where(squirrel.Eq{"id": platform.ID, "user_id": platform.UserID}).
		Suffix("RETURNING " + strings.Join(platformColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update platform sql: %w", err)
	}

	updated, err := scanPlatform(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, err
		case isUniqueViolation(err):
			return nil, repository.ErrConflict
		}
		return nil, fmt.Errorf("update platform: %w", err)
	}
	return updated, nil
}

// Delete removes one platform link owned by the user.
func (r *PlatformRepository) Delete(ctx context.Context, userID string, platformID int64) error {
	stmt, args, err := r.builder.Delete(platformsTable).
		Where(squirrel.Eq{"id": platformID, "user_id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete platform sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("delete platform: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func scanPlatform(row pgx.Row) (*domain.SnsPlatform, error) {
	var platform domain.SnsPlatform
	if err := row.Scan(
		&platform.ID,
		&platform.UserID,
		&platform.PlatformType,
		&platform.AccountURL,
		&platform.AccountName,
		&platform.Verified,
		&platform.CreatedAt,
		&platform.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &platform, nil
}

var _ port.PlatformRepository = (*PlatformRepository)(nil)
