package requests

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for request record storage
type Repository interface {
	// Create stores a record once per session. A repeat for the same session
	// returns the stored record and created=false.
	Create(ctx context.Context, req *CreateRecordRequest) (rec *Record, created bool, err error)
	GetByID(ctx context.Context, id string) (*Record, error)
	ListByBusiness(ctx context.Context, businessRef string, filter ListFilter) ([]*Record, error)
}

// InMemoryRepository is a Repository using in-memory storage
type InMemoryRepository struct {
	mu        sync.RWMutex
	records   map[string]*Record
	bySession map[string]string
}

// NewInMemoryRepository creates a new in-memory repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		records:   make(map[string]*Record),
		bySession: make(map[string]string),
	}
}

func (r *InMemoryRepository) Create(ctx context.Context, req *CreateRecordRequest) (*Record, bool, error) {
	if err := req.Validate(); err != nil {
		return nil, false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.bySession[req.SessionID]; ok {
		existing := *r.records[id]
		return &existing, false, nil
	}

	rec := &Record{
		ID:          uuid.New().String(),
		SessionID:   req.SessionID,
		CallerID:    req.CallerID,
		BusinessRef: req.BusinessRef,
		Category:    req.Category,
		Payload:     req.Payload,
		Priority:    req.Priority,
		Status:      StatusNew,
		CreatedAt:   time.Now().UTC(),
	}
	r.records[rec.ID] = rec
	r.bySession[rec.SessionID] = rec.ID

	out := *rec
	return &out, true, nil
}

// GetByID retrieves a record by ID
func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	out := *rec
	return &out, nil
}

// ListByBusiness returns the newest records first.
func (r *InMemoryRepository) ListByBusiness(ctx context.Context, businessRef string, filter ListFilter) ([]*Record, error) {
	filter = filter.normalized()

	r.mu.RLock()
	matched := make([]*Record, 0)
	for _, rec := range r.records {
		if rec.BusinessRef != businessRef {
			continue
		}
		if filter.Status != "" && rec.Status != filter.Status {
			continue
		}
		out := *rec
		matched = append(matched, &out)
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	if filter.Offset >= len(matched) {
		return []*Record{}, nil
	}
	matched = matched[filter.Offset:]
	if len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}
