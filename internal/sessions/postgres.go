package sessions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wolfman30/missedcall-flow/internal/catalog"
)

type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore keeps sessions in conversation_sessions, one row per caller.
type PostgresStore struct {
	pool rowQuerier
	now  func() time.Time
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("sessions: pgx pool required")
	}
	return &PostgresStore{pool: pool, now: time.Now}
}

func newPostgresStoreWithExec(exec rowQuerier) *PostgresStore {
	if exec == nil {
		panic("sessions: exec required")
	}
	return &PostgresStore{pool: exec, now: time.Now}
}

const sessionColumns = `id, caller_id, business_ref, category, stage, selection, opened_at, updated_at`

func (s *PostgresStore) Open(ctx context.Context, callerID, businessRef string, category catalog.CategoryKey) (*Session, error) {
	key, err := callerKey(callerID)
	if err != nil {
		return nil, err
	}
	if err := validateOpen(category); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	sess := Session{
		ID:          uuid.NewString(),
		CallerID:    key,
		Category:    category,
		BusinessRef: businessRef,
		Stage:       catalog.StageIntro,
		OpenedAt:    now,
		UpdatedAt:   now,
	}
	query := `
		INSERT INTO conversation_sessions (id, caller_id, business_ref, category, stage, stage_rank, selection, opened_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, '', $7, $7)
		ON CONFLICT (caller_id) DO UPDATE SET
			id = EXCLUDED.id,
			business_ref = EXCLUDED.business_ref,
			category = EXCLUDED.category,
			stage = EXCLUDED.stage,
			stage_rank = EXCLUDED.stage_rank,
			selection = '',
			opened_at = EXCLUDED.opened_at,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := s.pool.Exec(ctx, query, sess.ID, key, businessRef, string(category), string(sess.Stage), sess.Stage.Rank(), now); err != nil {
		return nil, fmt.Errorf("sessions: open session: %w", err)
	}
	return &sess, nil
}

func (s *PostgresStore) Get(ctx context.Context, callerID string) (*Session, error) {
	key, err := callerKey(callerID)
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + sessionColumns + ` FROM conversation_sessions WHERE caller_id = $1`
	sess, err := scanSession(s.pool.QueryRow(ctx, query, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("sessions: load session: %w", err)
	}
	return sess, nil
}

// Advance relies on Postgres evaluating every SET expression against the
// pre-update row, so the rank comparison guards stage and selection together.
func (s *PostgresStore) Advance(ctx context.Context, callerID string, next catalog.Stage, selection string) (*Session, error) {
	key, err := callerKey(callerID)
	if err != nil {
		return nil, err
	}
	if err := validateStage(next); err != nil {
		return nil, err
	}
	query := `
		UPDATE conversation_sessions SET
			stage = CASE WHEN stage_rank < $2 THEN $3 ELSE stage END,
			selection = CASE WHEN stage_rank < $2 THEN $4 ELSE selection END,
			updated_at = CASE WHEN stage_rank < $2 THEN $5 ELSE updated_at END,
			stage_rank = GREATEST(stage_rank, $2)
		WHERE caller_id = $1
		RETURNING ` + sessionColumns
	sess, err := scanSession(s.pool.QueryRow(ctx, query, key, next.Rank(), string(next), selection, s.now().UTC()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoActiveSession
		}
		return nil, fmt.Errorf("sessions: advance session: %w", err)
	}
	return sess, nil
}

func (s *PostgresStore) Close(ctx context.Context, callerID string) error {
	key, err := callerKey(callerID)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM conversation_sessions WHERE caller_id = $1`, key); err != nil {
		return fmt.Errorf("sessions: close session: %w", err)
	}
	return nil
}

func (s *PostgresStore) CloseSession(ctx context.Context, callerID, sessionID string) error {
	key, err := callerKey(callerID)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM conversation_sessions WHERE caller_id = $1 AND id = $2`, key, sessionID); err != nil {
		return fmt.Errorf("sessions: close session: %w", err)
	}
	return nil
}

func scanSession(row pgx.Row) (*Session, error) {
	var (
		sess     Session
		category string
		stage    string
	)
	if err := row.Scan(&sess.ID, &sess.CallerID, &sess.BusinessRef, &category, &stage, &sess.Selection, &sess.OpenedAt, &sess.UpdatedAt); err != nil {
		return nil, err
	}
	sess.Category = catalog.CategoryKey(category)
	sess.Stage = catalog.Stage(stage)
	return &sess, nil
}
