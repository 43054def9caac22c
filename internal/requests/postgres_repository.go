package requests

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wolfman30/missedcall-flow/internal/catalog"
)

type rowQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores request records in the relational database.
type PostgresRepository struct {
	pool rowQuerier
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("requests: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

func newPostgresRepositoryWithExec(exec rowQuerier) *PostgresRepository {
	if exec == nil {
		panic("requests: exec required")
	}
	return &PostgresRepository{pool: exec}
}

const recordColumns = `id, session_id, caller_id, business_ref, category, payload, priority, status, created_at`

// Create inserts a new row unless the session already produced one.
func (r *PostgresRepository) Create(ctx context.Context, req *CreateRecordRequest) (*Record, bool, error) {
	if err := req.Validate(); err != nil {
		return nil, false, err
	}

	id := uuid.New().String()
	query := `
		INSERT INTO request_records (id, session_id, caller_id, business_ref, category, payload, priority, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (session_id) DO NOTHING
		RETURNING created_at
	`
	var createdAt time.Time
	err := r.pool.QueryRow(ctx, query,
		id,
		req.SessionID,
		req.CallerID,
		req.BusinessRef,
		string(req.Category),
		req.Payload,
		req.Priority,
		StatusNew,
	).Scan(&createdAt)
	switch {
	case err == nil:
		return &Record{
			ID:          id,
			SessionID:   req.SessionID,
			CallerID:    req.CallerID,
			BusinessRef: req.BusinessRef,
			Category:    req.Category,
			Payload:     req.Payload,
			Priority:    req.Priority,
			Status:      StatusNew,
			CreatedAt:   createdAt,
		}, true, nil
	case errors.Is(err, pgx.ErrNoRows):
		existing, err := r.getBySession(ctx, req.SessionID)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	default:
		return nil, false, fmt.Errorf("requests: insert failed: %w", err)
	}
}

func (r *PostgresRepository) getBySession(ctx context.Context, sessionID string) (*Record, error) {
	query := `SELECT ` + recordColumns + ` FROM request_records WHERE session_id = $1`
	rec, err := scanRecord(r.pool.QueryRow(ctx, query, sessionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("requests: select by session failed: %w", err)
	}
	return rec, nil
}

// GetByID fetches a single record.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Record, error) {
	query := `SELECT ` + recordColumns + ` FROM request_records WHERE id = $1`
	rec, err := scanRecord(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("requests: select failed: %w", err)
	}
	return rec, nil
}

// ListByBusiness returns the newest records first.
func (r *PostgresRepository) ListByBusiness(ctx context.Context, businessRef string, filter ListFilter) ([]*Record, error) {
	filter = filter.normalized()
	query := `
		SELECT ` + recordColumns + `
		FROM request_records
		WHERE business_ref = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.pool.Query(ctx, query, businessRef, filter.Status, filter.Limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("requests: list failed: %w", err)
	}
	defer rows.Close()

	out := make([]*Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("requests: scan failed: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("requests: list failed: %w", err)
	}
	return out, nil
}

func scanRecord(row pgx.Row) (*Record, error) {
	var (
		rec      Record
		category string
	)
	if err := row.Scan(
		&rec.ID,
		&rec.SessionID,
		&rec.CallerID,
		&rec.BusinessRef,
		&category,
		&rec.Payload,
		&rec.Priority,
		&rec.Status,
		&rec.CreatedAt,
	); err != nil {
		return nil, err
	}
	rec.Category = catalog.CategoryKey(category)
	return &rec, nil
}
