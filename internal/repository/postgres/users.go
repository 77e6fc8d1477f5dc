package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/arklim/social-login-auth/internal/core/domain"
	"github.com/arklim/social-login-auth/internal/core/port"
	"github.com/arklim/social-login-auth/internal/repository"
)

var userColumns = []string{
	"id",
	"provider",
	"provider_user_id",
	"nickname",
	"email",
	"profile_image",
	"role",
	"created_at",
	"last_login",
}

// UserRepository implements port.UserRepository using PostgreSQL.
type UserRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewUserRepository wires a PostgreSQL-backed user repository.
func NewUserRepository(exec pgExecutor) *UserRepository {
	return &UserRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// FindOrCreate inserts the user unless the provider identity is already bound,
// in which case the existing row is returned untouched.
func (r *UserRepository) FindOrCreate(ctx context.Context, user domain.User) (*domain.User, bool, error) {
	role := user.Role
	if role == "" {
		role = domain.UserRoleUser
	}

	stmt, args, err := r.builder.Insert("users").
		Columns(
			"id",
			"provider",
			"provider_user_id",
			"nickname",
			"email",
			"profile_image",
			"role",
			"created_at",
		).
		Values(
			user.ID,
			user.Provider,
			user.ProviderUserID,
			user.Nickname,
			nullableString(user.Email),
			nullableString(user.ProfileImage),
			string(role),
			user.CreatedAt,
		).
		Suffix("ON CONFLICT (provider, provider_user_id) DO NOTHING RETURNING " + strings.Join(userColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, false, fmt.Errorf("build insert user sql: %w", err)
	}

	created, err := scanUser(r.exec.QueryRow(ctx, stmt, args...))
	if err == nil {
		return created, true, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, fmt.Errorf("insert user: %w", err)
	}

	existing, err := r.getByProviderIdentity(ctx, user.Provider, user.ProviderUserID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// TouchLastLogin stamps the user's last successful login with the database clock.
func (r *UserRepository) TouchLastLogin(ctx context.Context, id string) error {
	stmt, args, err := r.builder.Update("users").
		Set("last_login", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build touch user sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("touch user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *UserRepository) getByProviderIdentity(ctx context.Context, provider, providerUserID string) (*domain.User, error) {
	stmt, args, err := r.builder.
		Select(userColumns...).
		From("users").
		Where(squirrel.Eq{"provider": provider, "provider_user_id": providerUserID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user by provider sql: %w", err)
	}

	user, err := scanUser(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("select user by provider: %w", err)
	}
	return user, nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		user         domain.User
		email        sql.NullString
		profileImage sql.NullString
		lastLogin    sql.NullTime
		role         string
	)

	if err := row.Scan(
		&user.ID,
		&user.Provider,
		&user.ProviderUserID,
		&user.Nickname,
		&email,
		&profileImage,
		&role,
		&user.CreatedAt,
		&lastLogin,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	user.Email = email.String
	user.ProfileImage = profileImage.String
	user.Role = domain.UserRole(role)
	if lastLogin.Valid {
		at := lastLogin.Time
		user.LastLogin = &at
	}
	return &user, nil
}

var _ port.UserRepository = (*UserRepository)(nil)
