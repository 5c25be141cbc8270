package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"jobcore/internal/store"
)

// CreateExecution inserts a new execution row, assigning
// _created/_updated/_context.
func (s *Store) CreateExecution(ctx context.Context, execution *store.Execution) (*store.Execution, error) {
	now := time.Now().UTC()
	execution.ID = uuid.New()
	execution.Context = "ex"
	execution.Created = now
	execution.Updated = now

	resolvedAssets, err := json.Marshal(execution.ResolvedAssets)
	if err != nil {
		return nil, store.Wrap("CreateExecution: marshal resolved assets", err)
	}
	moderator, err := json.Marshal(execution.Moderator)
	if err != nil {
		return nil, store.Wrap("CreateExecution: marshal moderator", err)
	}
	pipeline := execution.Pipeline
	if pipeline == nil {
		pipeline = json.RawMessage("{}")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO executions (id, job_id, pipeline, workers, status, failure_reason, slicer_stats, has_errors,
			recover_execution, resolved_assets, moderator, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, execution.ID, execution.JobID, pipeline, execution.Workers, execution.Status, execution.FailureReason,
		nullableJSON(execution.SlicerStats), execution.HasErrors, execution.RecoverExecution,
		resolvedAssets, moderator, execution.Created, execution.Updated)
	if err != nil {
		return nil, store.Wrap("CreateExecution", err)
	}
	return execution, nil
}

// UpdateExecution merges patch into the execution record, bumping _updated.
func (s *Store) UpdateExecution(ctx context.Context, id uuid.UUID, patch store.ExecutionPatch) (*store.Execution, error) {
	execution, err := s.GetExecution(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Status != nil {
		execution.Status = *patch.Status
	}
	if patch.FailureReason != nil {
		execution.FailureReason = *patch.FailureReason
	}
	if patch.SlicerStats != nil {
		execution.SlicerStats = patch.SlicerStats
	}
	if patch.HasErrors != nil {
		execution.HasErrors = *patch.HasErrors
	}
	if patch.RecoverExecution != nil {
		execution.RecoverExecution = *patch.RecoverExecution
	}
	if patch.ResolvedAssets != nil {
		execution.ResolvedAssets = patch.ResolvedAssets
	}
	if patch.Pipeline != nil {
		execution.Pipeline = patch.Pipeline
	}
	execution.Updated = time.Now().UTC()

	resolvedAssets, err := json.Marshal(execution.ResolvedAssets)
	if err != nil {
		return nil, store.Wrap("UpdateExecution: marshal resolved assets", err)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE executions SET status=$2, failure_reason=$3, slicer_stats=$4, has_errors=$5,
			recover_execution=$6, resolved_assets=$7, pipeline=$8, updated_at=$9
		WHERE id=$1
	`, execution.ID, execution.Status, execution.FailureReason, nullableJSON(execution.SlicerStats),
		execution.HasErrors, execution.RecoverExecution, resolvedAssets, execution.Pipeline, execution.Updated)
	if err != nil {
		return nil, store.Wrap("UpdateExecution", err)
	}
	return execution, nil
}

// GetExecution returns an execution by ID, or store.ErrNotFound.
func (s *Store) GetExecution(ctx context.Context, id uuid.UUID) (*store.Execution, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, job_id, pipeline, workers, status, failure_reason, slicer_stats, has_errors,
			recover_execution, resolved_assets, moderator, created_at, updated_at
		FROM executions WHERE id = $1
	`, id)
	return scanExecution(row)
}

// SearchExecutions runs a typed query, capped at
// store.MaxSearchSize.
func (s *Store) SearchExecutions(ctx context.Context, q store.Query, from, size int, sort store.Sort) ([]*store.Execution, error) {
	if size <= 0 || size > store.MaxSearchSize {
		size = store.MaxSearchSize
	}

	where := []string{}
	args := []interface{}{}
	argN := 1

	if q.JobID != nil {
		where = append(where, fmt.Sprintf("job_id = $%d", argN))
		args = append(args, *q.JobID)
		argN++
	}
	if len(q.Statuses) > 0 {
		placeholders := make([]string, len(q.Statuses))
		for i, st := range q.Statuses {
			placeholders[i] = fmt.Sprintf("$%d", argN)
			args = append(args, st)
			argN++
		}
		where = append(where, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ", ")))
	}
	if len(q.StatusExcept) > 0 {
		placeholders := make([]string, len(q.StatusExcept))
		for i, st := range q.StatusExcept {
			placeholders[i] = fmt.Sprintf("$%d", argN)
			args = append(args, st)
			argN++
		}
		where = append(where, fmt.Sprintf("status NOT IN (%s)", strings.Join(placeholders, ", ")))
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	orderCol := "created_at"
	if sort.Field == "updated" {
		orderCol = "updated_at"
	}
	direction := "ASC"
	if sort.Descending {
		direction = "DESC"
	}

	args = append(args, from, size)
	query := fmt.Sprintf(`
		SELECT id, job_id, pipeline, workers, status, failure_reason, slicer_stats, has_errors,
			recover_execution, resolved_assets, moderator, created_at, updated_at
		FROM executions %s ORDER BY %s %s OFFSET $%d LIMIT $%d
	`, whereClause, orderCol, direction, argN, argN+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, store.Wrap("SearchExecutions", err)
	}
	defer rows.Close()

	var executions []*store.Execution
	for rows.Next() {
		execution, err := scanExecution(rows)
		if err != nil {
			return nil, store.Wrap("SearchExecutions: scan", err)
		}
		executions = append(executions, execution)
	}
	return executions, rows.Err()
}

func scanExecution(row rowScanner) (*store.Execution, error) {
	var execution store.Execution
	var slicerStats sql.NullString
	var resolvedAssets, moderator []byte

	err := row.Scan(&execution.ID, &execution.JobID, &execution.Pipeline, &execution.Workers, &execution.Status,
		&execution.FailureReason, &slicerStats, &execution.HasErrors, &execution.RecoverExecution,
		&resolvedAssets, &moderator, &execution.Created, &execution.Updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, store.Wrap("GetExecution", err)
	}
	if slicerStats.Valid {
		execution.SlicerStats = json.RawMessage(slicerStats.String)
	}
	if err := json.Unmarshal(resolvedAssets, &execution.ResolvedAssets); err != nil {
		return nil, store.Wrap("GetExecution: unmarshal resolved assets", err)
	}
	if err := json.Unmarshal(moderator, &execution.Moderator); err != nil {
		return nil, store.Wrap("GetExecution: unmarshal moderator", err)
	}
	execution.Context = "ex"
	return &execution, nil
}

func nullableJSON(raw json.RawMessage) interface{} {
	if raw == nil {
		return nil
	}
	return []byte(raw)
}
