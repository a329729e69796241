package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"trip-planner/internal/database"
	"trip-planner/internal/models"
)

type historyRepository struct {
	store *Store
}

const historyColumns = `request_id, requester_id, status, inputs, days, error, created_at, updated_at`

func scanResult(row rowScanner) (models.PlanningResult, error) {
	var res models.PlanningResult
	var status, inputs, days string
	var createdAt, updatedAt int64

	if err := row.Scan(&res.RequestID, &res.RequesterID, &status, &inputs, &days, &res.Error, &createdAt, &updatedAt); err != nil {
		return res, err
	}

	res.Status = models.PlanStatus(status)
	res.CreatedAt = fromMillis(createdAt)
	res.UpdatedAt = fromMillis(updatedAt)

	if err := json.Unmarshal([]byte(inputs), &res.Inputs); err != nil {
		return res, fmt.Errorf("failed to decode inputs: %w", err)
	}
	if err := json.Unmarshal([]byte(days), &res.Days); err != nil {
		return res, fmt.Errorf("failed to decode days: %w", err)
	}
	if res.Days == nil {
		res.Days = []models.DayPlan{}
	}

	return res, nil
}

func (r *historyRepository) insert(ctx context.Context, req models.PlanningRequest, status models.PlanStatus, days []models.DayPlan) (*models.PlanningResult, error) {
	if req.RequestID == "" {
		return nil, &database.PersistenceError{Op: "create history", Err: errors.New("request id is required")}
	}
	if days == nil {
		days = []models.DayPlan{}
	}

	inputs, err := json.Marshal(req)
	if err != nil {
		return nil, &database.PersistenceError{Op: "create history", Err: err}
	}
	daysJSON, err := json.Marshal(days)
	if err != nil {
		return nil, &database.PersistenceError{Op: "create history", Err: err}
	}

	now := time.Now().UTC()
	submitted := req.SubmittedAt
	if submitted.IsZero() {
		submitted = now
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	query := `INSERT INTO plan_history (request_id, requester_id, status, inputs, days, error, submitted_at, created_at, updated_at)
	          VALUES (?, ?, ?, ?, ?, '', ?, ?, ?)`

	_, err = r.store.db.ExecContext(ctx, query,
		req.RequestID, req.RequesterID, string(status), string(inputs), string(daysJSON),
		toMillis(submitted), toMillis(now), toMillis(now),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("plan %s: %w", req.RequestID, database.ErrDuplicate)
		}
		return nil, &database.PersistenceError{Op: "create history", Err: err}
	}

	return &models.PlanningResult{
		RequestID:   req.RequestID,
		RequesterID: req.RequesterID,
		Status:      status,
		Inputs:      req,
		Days:        days,
		CreatedAt:   fromMillis(toMillis(now)),
		UpdatedAt:   fromMillis(toMillis(now)),
	}, nil
}

func (r *historyRepository) CreatePending(ctx context.Context, req models.PlanningRequest) (*models.PlanningResult, error) {
	return r.insert(ctx, req, models.PlanStatusPending, nil)
}

func (r *historyRepository) CreateCompleted(ctx context.Context, req models.PlanningRequest, days []models.DayPlan) (*models.PlanningResult, error) {
	return r.insert(ctx, req, models.PlanStatusCompleted, days)
}

func (r *historyRepository) MarkCompleted(ctx context.Context, requestID string, days []models.DayPlan) error {
	if days == nil {
		days = []models.DayPlan{}
	}
	daysJSON, err := json.Marshal(days)
	if err != nil {
		return &database.PersistenceError{Op: "mark completed", Err: err}
	}
	return r.finalize(ctx, "mark completed", requestID, models.PlanStatusCompleted, string(daysJSON), "")
}

func (r *historyRepository) MarkFailed(ctx context.Context, requestID string, errorMessage string) error {
	if errorMessage == "" {
		errorMessage = "unknown error"
	}
	return r.finalize(ctx, "mark failed", requestID, models.PlanStatusFailed, "[]", errorMessage)
}

// finalize moves a pending record to a terminal status exactly once
func (r *historyRepository) finalize(ctx context.Context, op, requestID string, status models.PlanStatus, days, errorMessage string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	query := `UPDATE plan_history
	          SET status = ?, days = ?, error = ?, updated_at = ?
	          WHERE request_id = ? AND status = ?`

	result, err := r.store.db.ExecContext(ctx, query,
		string(status), days, errorMessage, toMillis(time.Now()), requestID, string(models.PlanStatusPending),
	)
	if err != nil {
		return &database.PersistenceError{Op: op, Err: err}
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return &database.PersistenceError{Op: op, Err: err}
	}
	if rows == 1 {
		return nil
	}

	var current string
	err = r.store.db.QueryRowContext(ctx, `SELECT status FROM plan_history WHERE request_id = ?`, requestID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("plan %s: %w", requestID, database.ErrNotFound)
	}
	if err != nil {
		return &database.PersistenceError{Op: op, Err: err}
	}
	return fmt.Errorf("plan %s is %s: %w", requestID, current, database.ErrAlreadyFinalized)
}

func (r *historyRepository) GetByRequestID(ctx context.Context, requestID string) (*models.PlanningResult, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	query := `SELECT ` + historyColumns + ` FROM plan_history WHERE request_id = ?`
	res, err := scanResult(r.store.db.QueryRowContext(ctx, query, requestID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("plan %s: %w", requestID, database.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}

	return &res, nil
}

// ListByRequester returns one page of the requester's plans, newest first, and the total count
func (r *historyRepository) ListByRequester(ctx context.Context, requesterID string, page, limit int) ([]models.PlanningResult, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var total int
	if err := r.store.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM plan_history WHERE requester_id = ?`, requesterID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count plans: %w", err)
	}

	query := `SELECT ` + historyColumns + ` FROM plan_history
	          WHERE requester_id = ?
	          ORDER BY submitted_at DESC, created_at DESC, request_id DESC
	          LIMIT ? OFFSET ?`

	rows, err := r.store.db.QueryContext(ctx, query, requesterID, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query plans: %w", err)
	}
	defer rows.Close()

	plans := []models.PlanningResult{}
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan plan: %w", err)
		}
		plans = append(plans, res)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating plans: %w", err)
	}

	return plans, total, nil
}
