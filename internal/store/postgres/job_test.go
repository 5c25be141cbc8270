package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"jobcore/internal/store"
)

func TestCreateJob_Success(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO jobs`).
		WithArgs(sqlmock.AnyArg(), "etl", sqlmock.AnyArg(), 4, store.LifecycleOnce,
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	job := &store.Job{
		Name:      "etl",
		Pipeline:  []byte(`[{"op":"noop"}]`),
		Workers:   4,
		Lifecycle: store.LifecycleOnce,
	}

	got, err := s.CreateJob(context.Background(), job)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if got.ID == uuid.Nil {
		t.Error("expected ID to be assigned")
	}
	if got.Context != "job" {
		t.Errorf("got Context %q, want job", got.Context)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestGetJob_Success(t *testing.T) {
	s, mock := newMockStore(t)

	jobID := uuid.New()
	now := time.Now()

	mock.ExpectQuery(`SELECT id, name, pipeline, workers, lifecycle, assets, moderator, created_at, updated_at\s*FROM jobs WHERE id = \$1`).
		WithArgs(jobID).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "pipeline", "workers", "lifecycle", "assets", "moderator", "created_at", "updated_at",
		}).AddRow(
			jobID, "etl", []byte(`[{"op":"noop"}]`), 4, store.LifecycleOnce, []byte(`[]`), []byte(`{}`), now, now,
		))

	got, err := s.GetJob(context.Background(), jobID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Name != "etl" {
		t.Errorf("got Name %q, want etl", got.Name)
	}
	if got.Workers != 4 {
		t.Errorf("got Workers %d, want 4", got.Workers)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestGetJob_NotFound(t *testing.T) {
	s, mock := newMockStore(t)

	jobID := uuid.New()
	mock.ExpectQuery(`SELECT id, name, pipeline, workers, lifecycle, assets, moderator, created_at, updated_at\s*FROM jobs WHERE id = \$1`).
		WithArgs(jobID).
		WillReturnError(sql.ErrNoRows)

	_, err := s.GetJob(context.Background(), jobID)
	if err != store.ErrNotFound {
		t.Errorf("expected store.ErrNotFound, got %v", err)
	}
}

func TestGetJobs_ListsAll(t *testing.T) {
	s, mock := newMockStore(t)

	jobID := uuid.New()
	now := time.Now()

	mock.ExpectQuery(`SELECT id, name, pipeline, workers, lifecycle, assets, moderator, created_at, updated_at\s*FROM jobs ORDER BY created_at ASC OFFSET \$1 LIMIT \$2`).
		WithArgs(0, store.MaxSearchSize).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "pipeline", "workers", "lifecycle", "assets", "moderator", "created_at", "updated_at",
		}).AddRow(
			jobID, "etl", []byte(`[{"op":"noop"}]`), 1, store.LifecycleOnce, []byte(`[]`), []byte(`{}`), now, now,
		))

	got, err := s.GetJobs(context.Background(), store.Query{}, 0, store.MaxSearchSize)
	if err != nil {
		t.Fatalf("GetJobs: %v", err)
	}
	if len(got) != 1 || got[0].ID != jobID {
		t.Fatalf("got %v, want single job %v", got, jobID)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
