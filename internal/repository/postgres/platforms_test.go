package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/arklim/social-login-auth/internal/core/domain"
	"github.com/arklim/social-login-auth/internal/repository"
)

var platformRowColumns = []string{"id", "user_id", "platform_type", "account_url", "account_name", "verified", "created_at", "updated_at"}

func TestPlatformRepository_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewPlatformRepository(mock)
	now := time.Now().UTC()
	platform := domain.SnsPlatform{
		UserID:       "user-1",
		PlatformType: "INSTAGRAM",
		AccountURL:   "https://instagram.com/neo",
		AccountName:  "neo",
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	mock.ExpectQuery(`INSERT INTO user_sns_platforms .* RETURNING id, user_id`).
		WithArgs("user-1", "INSTAGRAM", "https://instagram.com/neo", "neo", false, now, now).
		WillReturnRows(pgxmock.NewRows(platformRowColumns).
			AddRow(int64(7), "user-1", "INSTAGRAM", "https://instagram.com/neo", "neo", false, now, now))

	created, err := repo.Create(context.Background(), platform)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if created.ID != 7 || created.Verified {
		t.Fatalf("unexpected platform %+v", created)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPlatformRepository_CreateConflict(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewPlatformRepository(mock)
	mock.ExpectQuery(`INSERT INTO user_sns_platforms`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "user_sns_platforms_account_key"})

	if _, err := repo.Create(context.Background(), domain.SnsPlatform{UserID: "user-1"}); !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestPlatformRepository_Exists(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewPlatformRepository(mock)
	mock.ExpectQuery(`SELECT EXISTS \( SELECT 1 FROM user_sns_platforms WHERE account_url = \$1 AND platform_type = \$2 AND user_id = \$3 \)`).
		WithArgs("https://x.com/neo", "X", "user-1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.Exists(context.Background(), "user-1", "X", "https://x.com/neo")
	if err != nil {
		t.Fatalf("Exists returned error: %v", err)
	}
	if !exists {
		t.Fatalf("expected link to exist")
	}
}

func TestPlatformRepository_ListByUser(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewPlatformRepository(mock)
	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT .* FROM user_sns_platforms WHERE user_id = \$1 ORDER BY id`).
		WithArgs("user-1").
		WillReturnRows(pgxmock.NewRows(platformRowColumns).
			AddRow(int64(1), "user-1", "X", "https://x.com/neo", "neo", true, now, now).
			AddRow(int64(2), "user-1", "YOUTUBE", "https://youtube.com/@neo", "neo", false, now, now))

	platforms, err := repo.ListByUser(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("ListByUser returned error: %v", err)
	}
	if len(platforms) != 2 || platforms[1].PlatformType != "YOUTUBE" || !platforms[0].Verified {
		t.Fatalf("unexpected platforms %+v", platforms)
	}
}

func TestPlatformRepository_GetScopedByOwner(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewPlatformRepository(mock)
	mock.ExpectQuery(`SELECT .* FROM user_sns_platforms WHERE id = \$1 AND user_id = \$2`).
		WithArgs(int64(9), "intruder").
		WillReturnRows(pgxmock.NewRows(platformRowColumns))

	if _, err := repo.Get(context.Background(), "intruder", 9); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPlatformRepository_UpdateLeavesVerifiedAlone(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewPlatformRepository(mock)
	now := time.Now().UTC()
	mock.ExpectQuery(`UPDATE user_sns_platforms SET account_name = \$1, account_url = \$2, updated_at = \$3 WHERE id = \$4 AND user_id = \$5 RETURNING`).
		WithArgs("trinity", "https://x.com/trinity", now, int64(3), "user-1").
		WillReturnRows(pgxmock.NewRows(platformRowColumns).
			AddRow(int64(3), "user-1", "X", "https://x.com/trinity", "trinity", true, now.Add(-time.Hour), now))

	updated, err := repo.Update(context.Background(), domain.SnsPlatform{
		ID:          3,
		UserID:      "user-1",
		AccountName: "trinity",
		AccountURL:  "https://x.com/trinity",
		Verified:    false,
		UpdatedAt:   now,
	})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if !updated.Verified {
		t.Fatalf("expected stored verified flag to survive update")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPlatformRepository_Delete(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewPlatformRepository(mock)
	mock.ExpectExec(`DELETE FROM user_sns_platforms WHERE id = \$1 AND user_id = \$2`).
		WithArgs(int64(3), "user-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`DELETE FROM user_sns_platforms WHERE id = \$1 AND user_id = \$2`).
		WithArgs(int64(3), "user-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	if err := repo.Delete(context.Background(), "user-1", 3); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if err := repo.Delete(context.Background(), "user-1", 3); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
