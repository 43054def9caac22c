package business

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/lib/pq"
)

// ErrBusinessNotFound is returned when no business matches the reference.
var ErrBusinessNotFound = errors.New("business: not found")

// Business is the subscriber whose missed calls start conversations.
type Business struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Profession   string   `json:"profession,omitempty"`
	NotifyEmails []string `json:"notify_emails"`
}

// Lookup resolves a business reference.
type Lookup interface {
	Get(ctx context.Context, id string) (*Business, error)
}

// Directory reads businesses from Postgres.
type Directory struct {
	db *sql.DB
}

func NewDirectory(db *sql.DB) *Directory {
	if db == nil {
		panic("business: sql db required")
	}
	return &Directory{db: db}
}

func (d *Directory) Get(ctx context.Context, id string) (*Business, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrBusinessNotFound
	}
	var (
		b          Business
		profession sql.NullString
	)
	err := d.db.QueryRowContext(ctx, `
		SELECT id, name, profession, notify_emails
		FROM businesses
		WHERE id = $1`, id).Scan(&b.ID, &b.Name, &profession, pq.Array(&b.NotifyEmails))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBusinessNotFound
		}
		return nil, fmt.Errorf("business: get %s: %w", id, err)
	}
	b.Profession = profession.String
	return &b, nil
}

// Upsert creates or replaces a business row.
func (d *Directory) Upsert(ctx context.Context, b Business) error {
	if strings.TrimSpace(b.ID) == "" {
		return errors.New("business: id required")
	}
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO businesses (id, name, profession, notify_emails)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			profession = EXCLUDED.profession,
			notify_emails = EXCLUDED.notify_emails,
			updated_at = NOW()`,
		b.ID, b.Name, b.Profession, pq.Array(b.NotifyEmails))
	if err != nil {
		return fmt.Errorf("business: upsert %s: %w", b.ID, err)
	}
	return nil
}

// StaticDirectory is an in-memory Lookup for development and tests.
type StaticDirectory struct {
	mu         sync.RWMutex
	businesses map[string]Business
}

func NewStaticDirectory(businesses ...Business) *StaticDirectory {
	d := &StaticDirectory{businesses: make(map[string]Business, len(businesses))}
	for _, b := range businesses {
		d.businesses[b.ID] = b
	}
	return d
}

func (d *StaticDirectory) Get(_ context.Context, id string) (*Business, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	b, ok := d.businesses[strings.TrimSpace(id)]
	if !ok {
		return nil, ErrBusinessNotFound
	}
	b.NotifyEmails = append([]string(nil), b.NotifyEmails...)
	return &b, nil
}
