package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"jobcore/internal/store"
)

// CreateJob inserts a new job row, assigning _created/_updated/_context.
func (s *Store) CreateJob(ctx context.Context, job *store.Job) (*store.Job, error) {
	now := time.Now().UTC()
	job.ID = uuid.New()
	job.Context = "job"
	job.Created = now
	job.Updated = now

	assets, err := json.Marshal(job.Assets)
	if err != nil {
		return nil, store.Wrap("CreateJob: marshal assets", err)
	}
	moderator, err := json.Marshal(job.Moderator)
	if err != nil {
		return nil, store.Wrap("CreateJob: marshal moderator", err)
	}
	pipeline := job.Pipeline
	if pipeline == nil {
		pipeline = json.RawMessage("{}")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, name, pipeline, workers, lifecycle, assets, moderator, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, job.ID, job.Name, pipeline, job.Workers, job.Lifecycle, assets, moderator, job.Created, job.Updated)
	if err != nil {
		return nil, store.Wrap("CreateJob", err)
	}
	return job, nil
}

// UpdateJob loads the job, applies mutate, and persists the result,
// bumping _updated.
func (s *Store) UpdateJob(ctx context.Context, id uuid.UUID, mutate func(*store.Job)) (*store.Job, error) {
	job, err := s.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	mutate(job)
	job.Updated = time.Now().UTC()

	assets, err := json.Marshal(job.Assets)
	if err != nil {
		return nil, store.Wrap("UpdateJob: marshal assets", err)
	}
	moderator, err := json.Marshal(job.Moderator)
	if err != nil {
		return nil, store.Wrap("UpdateJob: marshal moderator", err)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE jobs SET name=$2, pipeline=$3, workers=$4, lifecycle=$5, assets=$6, moderator=$7, updated_at=$8
		WHERE id=$1
	`, job.ID, job.Name, job.Pipeline, job.Workers, job.Lifecycle, assets, moderator, job.Updated)
	if err != nil {
		return nil, store.Wrap("UpdateJob", err)
	}
	return job, nil
}

// GetJob returns a job by ID, or store.ErrNotFound.
func (s *Store) GetJob(ctx context.Context, id uuid.UUID) (*store.Job, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, pipeline, workers, lifecycle, assets, moderator, created_at, updated_at
		FROM jobs WHERE id = $1
	`, id)
	return scanJob(row)
}

// GetJobs returns all jobs in creation order from offset from, capped by
// size; q is not applied.
func (s *Store) GetJobs(ctx context.Context, q store.Query, from, size int) ([]*store.Job, error) {
	if size <= 0 || size > store.MaxSearchSize {
		size = store.MaxSearchSize
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, pipeline, workers, lifecycle, assets, moderator, created_at, updated_at
		FROM jobs ORDER BY created_at ASC OFFSET $1 LIMIT $2
	`, from, size)
	if err != nil {
		return nil, store.Wrap("GetJobs", err)
	}
	defer rows.Close()

	var jobs []*store.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, store.Wrap("GetJobs: scan", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*store.Job, error) {
	var job store.Job
	var assets, moderator []byte
	err := row.Scan(&job.ID, &job.Name, &job.Pipeline, &job.Workers, &job.Lifecycle, &assets, &moderator, &job.Created, &job.Updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, store.Wrap("GetJob", err)
	}
	if err := json.Unmarshal(assets, &job.Assets); err != nil {
		return nil, store.Wrap("GetJob: unmarshal assets", err)
	}
	if err := json.Unmarshal(moderator, &job.Moderator); err != nil {
		return nil, store.Wrap("GetJob: unmarshal moderator", err)
	}
	job.Context = "job"
	return &job, nil
}
