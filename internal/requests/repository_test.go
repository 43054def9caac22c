package requests

import (
	"context"
	"errors"
	"testing"
	"time"

	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCreateRequest(session string) *CreateRecordRequest {
	return &CreateRecordRequest{
		SessionID:   session,
		CallerID:    "+385911234567",
		BusinessRef: "B1",
		Category:    "emergency_repair_vodoinstalater",
		Payload:     "Ivan Horvat, Ulica 12, pukla cijev",
		Priority:    "Hitno",
	}
}

func TestInMemoryRepositoryCreateOncePerSession(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	first, created, err := repo.Create(ctx, newCreateRequest("s-1"))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, StatusNew, first.Status)
	assert.Equal(t, "Hitno", first.Priority)

	again, created, err := repo.Create(ctx, newCreateRequest("s-1"))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)

	got, err := repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ivan Horvat, Ulica 12, pukla cijev", got.Payload)

	list, err := repo.ListByBusiness(ctx, "B1", ListFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestInMemoryRepositoryValidation(t *testing.T) {
	repo := NewInMemoryRepository()
	_, _, err := repo.Create(context.Background(), &CreateRecordRequest{CallerID: "+1"})
	assert.True(t, errors.Is(err, ErrMissingSession))
	_, _, err = repo.Create(context.Background(), &CreateRecordRequest{SessionID: "s"})
	assert.True(t, errors.Is(err, ErrMissingCaller))

	_, err = repo.GetByID(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrRecordNotFound))
}

func TestInMemoryRepositoryListPaging(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()
	for _, s := range []string{"a", "b", "c"} {
		_, _, err := repo.Create(ctx, newCreateRequest(s))
		require.NoError(t, err)
	}
	_, _, err := repo.Create(ctx, &CreateRecordRequest{SessionID: "x", CallerID: "+1", BusinessRef: "B2"})
	require.NoError(t, err)

	page, err := repo.ListByBusiness(ctx, "B1", ListFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page, 2)

	rest, err := repo.ListByBusiness(ctx, "B1", ListFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, rest, 1)

	none, err := repo.ListByBusiness(ctx, "B1", ListFilter{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, none)
}

var recordCols = []string{"id", "session_id", "caller_id", "business_ref", "category", "payload", "priority", "status", "created_at"}

func TestPostgresRepositoryCreate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	repo := newPostgresRepositoryWithExec(mock)
	ctx := context.Background()
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery("INSERT INTO request_records").
		WithArgs(pgxmock.AnyArg(), "s-1", "+385911234567", "B1", "emergency_repair_vodoinstalater",
			"Ivan Horvat, Ulica 12, pukla cijev", "Hitno", StatusNew).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(now))
	rec, created, err := repo.Create(ctx, newCreateRequest("s-1"))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, now, rec.CreatedAt)

	mock.ExpectQuery("INSERT INTO request_records").
		WithArgs(pgxmock.AnyArg(), "s-1", "+385911234567", "B1", "emergency_repair_vodoinstalater",
			"Ivan Horvat, Ulica 12, pukla cijev", "Hitno", StatusNew).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("SELECT (.+) FROM request_records WHERE session_id").
		WithArgs("s-1").
		WillReturnRows(pgxmock.NewRows(recordCols).AddRow(rec.ID, "s-1", "+385911234567", "B1",
			"emergency_repair_vodoinstalater", "Ivan Horvat, Ulica 12, pukla cijev", "Hitno", StatusNew, now))
	again, created, err := repo.Create(ctx, newCreateRequest("s-1"))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, rec.ID, again.ID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepositoryReads(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	repo := newPostgresRepositoryWithExec(mock)
	ctx := context.Background()
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT (.+) FROM request_records WHERE id").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)
	_, err = repo.GetByID(ctx, "missing")
	assert.True(t, errors.Is(err, ErrRecordNotFound))

	mock.ExpectQuery("SELECT (.+) FROM request_records").
		WithArgs("B1", "", 50, 0).
		WillReturnRows(pgxmock.NewRows(recordCols).
			AddRow("r1", "s-1", "+385911234567", "B1", "booking_service", "sutra u 10", "Novi termin", StatusNew, now).
			AddRow("r2", "s-2", "+385921111111", "B1", "booking_service", "pitanje", "", StatusPending, now.Add(-time.Hour)))
	list, err := repo.ListByBusiness(ctx, "B1", ListFilter{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "r1", list[0].ID)
	assert.Equal(t, StatusPending, list[1].Status)

	require.NoError(t, mock.ExpectationsWereMet())
}
