package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R204570/LexAudit-Flow/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return newPostgresStore(mock), mock
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS items`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetItem_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT name, rate, description, last_updated FROM items WHERE name = \$1`).
		WithArgs("Drones").
		WillReturnError(pgx.ErrNoRows)

	it, err := s.GetItem(context.Background(), "Drones")
	require.NoError(t, err)
	assert.Nil(t, it)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListItems(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT name, rate, description, last_updated FROM items ORDER BY name`).
		WillReturnRows(pgxmock.NewRows([]string{"name", "rate", "description", "last_updated"}).
			AddRow("Laptops", 18.0, "Portable computers", now).
			AddRow("Tablets", 12.0, "", now))

	items, err := s.ListItems(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Laptops", items[0].Name)
	assert.Equal(t, 12.0, items[1].Rate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertItem(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`ON CONFLICT \(name\) DO UPDATE`).
		WithArgs("Laptops", 12.0, "", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.UpsertItem(context.Background(), model.Item{Name: "Laptops", Rate: 12}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SeedItems_SkipsWhenPopulated(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM items`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectRollback()

	n, err := s.SeedItems(context.Background(), []model.Item{{Name: "Laptops", Rate: 18}})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SeedItems_InsertsIntoEmptySet(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM items`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(`INSERT INTO items`).
		WithArgs("Laptops", 18.0, "", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO items`).
		WithArgs("Tablets", 12.0, "", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	n, err := s.SeedItems(context.Background(), []model.Item{
		{Name: "Laptops", Rate: 18},
		{Name: "Tablets", Rate: 12},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestPostgresStore_CreatePendingUpdate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO pending_updates`).
		WithArgs(pgxmock.AnyArg(), "Laptops", pgxmock.AnyArg(), 12.0, "doc.pdf", "quote", "pending",
			pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	u := &model.PendingUpdate{
		DetectedItem:  "Laptops",
		CurrentRate:   model.Float(18),
		ProposedRate:  12,
		EvidencePath:  "doc.pdf",
		EvidenceQuote: "quote",
	}
	require.NoError(t, s.CreatePendingUpdate(context.Background(), u))
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, model.UpdateStatusPending, u.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetPendingUpdate_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, detected_item, .* FROM pending_updates WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetPendingUpdate(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetEvidencePath_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE pending_updates SET evidence_path = \$1 WHERE id = \$2`).
		WithArgs("x.pdf", "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.SetEvidencePath(context.Background(), "missing", "x.pdf")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_TransitionPendingUpdate_Conflict(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	at := time.Now().UTC()

	mock.ExpectQuery(`UPDATE pending_updates SET status = \$1, updated_at = \$2\s+WHERE id = \$3 AND status = \$4`).
		WithArgs("accepted", at, "u1", "pending").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`SELECT status FROM pending_updates WHERE id = \$1`).
		WithArgs("u1").
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow("rejected"))

	_, err := s.TransitionPendingUpdate(context.Background(), "u1", model.UpdateStatusPending, model.UpdateStatusAccepted, at)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrConflict))
	assert.Contains(t, err.Error(), "rejected")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_TransitionPendingUpdate_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	at := time.Now().UTC()

	mock.ExpectQuery(`UPDATE pending_updates SET status`).
		WithArgs("rejected", at, "missing", "pending").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`SELECT status FROM pending_updates WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.TransitionPendingUpdate(context.Background(), "missing", model.UpdateStatusPending, model.UpdateStatusRejected, at)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InTx_CommitAndRollback(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO audit_log`).
		WithArgs(pgxmock.AnyArg(), "update_rejected", "Laptops", pgxmock.AnyArg(), 12.0, "u1", "", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := s.InTx(ctx, func(tx Tx) error {
		return tx.AppendAudit(ctx, &model.AuditEntry{
			Action: model.AuditUpdateRejected, ItemName: "Laptops", NewValue: 12, UpdateID: "u1",
		})
	})
	require.NoError(t, err)

	boom := eris.New("boom")
	mock.ExpectBegin()
	mock.ExpectRollback()

	err = s.InTx(ctx, func(Tx) error { return boom })
	assert.True(t, eris.Is(err, boom))
	assert.NoError(t, mock.ExpectationsWereMet())
}
