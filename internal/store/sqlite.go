package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/R204570/LexAudit-Flow/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	sqliteOps
	db *sql.DB
}

// sqlQuerier is satisfied by both *sql.DB and *sql.Tx.
type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// sqliteOps implements Tx against either the database or an open transaction.
type sqliteOps struct {
	q sqlQuerier
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
// The pool is limited to one connection so that writers serialize on it.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{sqliteOps: sqliteOps{q: db}, db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS items (
	name         TEXT PRIMARY KEY,
	rate         REAL NOT NULL,
	description  TEXT NOT NULL DEFAULT '',
	last_updated DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS pending_updates (
	id             TEXT PRIMARY KEY,
	detected_item  TEXT NOT NULL,
	current_rate   REAL,
	proposed_rate  REAL NOT NULL,
	evidence_path  TEXT NOT NULL DEFAULT '',
	evidence_quote TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL DEFAULT 'pending',
	created_at     DATETIME NOT NULL,
	updated_at     DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS audit_log (
	id         TEXT PRIMARY KEY,
	action     TEXT NOT NULL,
	item_name  TEXT NOT NULL,
	old_value  REAL,
	new_value  REAL NOT NULL,
	update_id  TEXT NOT NULL DEFAULT '',
	manager_id TEXT NOT NULL DEFAULT '',
	timestamp  DATETIME NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_items_name ON items(name);
CREATE INDEX IF NOT EXISTS idx_pending_updates_status ON pending_updates(status);
CREATE INDEX IF NOT EXISTS idx_pending_updates_item ON pending_updates(detected_item);
CREATE INDEX IF NOT EXISTS idx_audit_log_item ON audit_log(item_name);
CREATE INDEX IF NOT EXISTS idx_audit_log_timestamp ON audit_log(timestamp);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) InTx(ctx context.Context, fn func(Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	if err := fn(sqliteOps{q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit tx")
}

// Items

const itemColumns = `name, rate, description, last_updated`

func (s *SQLiteStore) ListItems(ctx context.Context) ([]model.Item, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+itemColumns+` FROM items ORDER BY name`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list items")
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		var it model.Item
		if err := rows.Scan(&it.Name, &it.Rate, &it.Description, &it.LastUpdated); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan item")
		}
		items = append(items, it)
	}
	return items, eris.Wrap(rows.Err(), "sqlite: list items iterate")
}

func (s *SQLiteStore) SeedItems(ctx context.Context, items []model.Item) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin seed tx")
	}
	defer tx.Rollback() //nolint:errcheck

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM items`).Scan(&count); err != nil {
		return 0, eris.Wrap(err, "sqlite: count items")
	}
	if count > 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	for _, it := range items {
		if it.LastUpdated.IsZero() {
			it.LastUpdated = now
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO items (`+itemColumns+`) VALUES (?, ?, ?, ?)`,
			it.Name, it.Rate, it.Description, it.LastUpdated,
		); err != nil {
			return 0, eris.Wrapf(err, "sqlite: seed item %s", it.Name)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit seed tx")
	}
	return len(items), nil
}

func (o sqliteOps) GetItem(ctx context.Context, name string) (*model.Item, error) {
	var it model.Item
	err := o.q.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE name = ?`, name,
	).Scan(&it.Name, &it.Rate, &it.Description, &it.LastUpdated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get item %s", name)
	}
	return &it, nil
}

func (o sqliteOps) UpsertItem(ctx context.Context, item model.Item) error {
	if item.LastUpdated.IsZero() {
		item.LastUpdated = time.Now().UTC()
	}
	_, err := o.q.ExecContext(ctx,
		`INSERT INTO items (`+itemColumns+`) VALUES (?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET rate = excluded.rate, last_updated = excluded.last_updated`,
		item.Name, item.Rate, item.Description, item.LastUpdated,
	)
	return eris.Wrapf(err, "sqlite: upsert item %s", item.Name)
}

// Pending updates

const pendingColumns = `id, detected_item, current_rate, proposed_rate, evidence_path, evidence_quote, status, created_at, updated_at`

func (s *SQLiteStore) CreatePendingUpdate(ctx context.Context, u *model.PendingUpdate) error {
	prepareUpdate(u, uuid.New().String(), time.Now().UTC())
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pending_updates (`+pendingColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.DetectedItem, u.CurrentRate, u.ProposedRate, u.EvidencePath, u.EvidenceQuote,
		string(u.Status), u.CreatedAt, u.UpdatedAt,
	)
	return eris.Wrap(err, "sqlite: insert pending update")
}

func (s *SQLiteStore) ListPendingUpdates(ctx context.Context, filter PendingFilter) ([]model.PendingUpdate, error) {
	query := `SELECT ` + pendingColumns + ` FROM pending_updates WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Item != "" {
		query += ` AND detected_item = ?`
		args = append(args, filter.Item)
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, listLimit(filter.Limit))

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list pending updates")
	}
	defer rows.Close()

	var updates []model.PendingUpdate
	for rows.Next() {
		u, err := scanPendingUpdate(rows)
		if err != nil {
			return nil, err
		}
		updates = append(updates, *u)
	}
	return updates, eris.Wrap(rows.Err(), "sqlite: list pending updates iterate")
}

func (s *SQLiteStore) SetEvidencePath(ctx context.Context, id, path string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE pending_updates SET evidence_path = ? WHERE id = ?`, path, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set evidence path %s", id)
	}
	return checkRowsAffected(res, "pending update", id)
}

func (o sqliteOps) GetPendingUpdate(ctx context.Context, id string) (*model.PendingUpdate, error) {
	row := o.q.QueryRowContext(ctx,
		`SELECT `+pendingColumns+` FROM pending_updates WHERE id = ?`, id,
	)
	u, err := scanPendingUpdate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "pending update %s", id)
	}
	return u, err
}

func (o sqliteOps) TransitionPendingUpdate(ctx context.Context, id string, from, to model.UpdateStatus, at time.Time) (*model.PendingUpdate, error) {
	row := o.q.QueryRowContext(ctx,
		`UPDATE pending_updates SET status = ?, updated_at = ?
		 WHERE id = ? AND status = ?
		 RETURNING `+pendingColumns,
		string(to), at, id, string(from),
	)
	u, err := scanPendingUpdate(row)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(err, "sqlite: transition pending update %s", id)
	}

	var current string
	err = o.q.QueryRowContext(ctx, `SELECT status FROM pending_updates WHERE id = ?`, id).Scan(&current)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "pending update %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: read status %s", id)
	}
	return nil, eris.Wrapf(ErrConflict, "pending update %s is %s", id, current)
}

// Audit

const auditColumns = `id, action, item_name, old_value, new_value, update_id, manager_id, timestamp`

func (o sqliteOps) AppendAudit(ctx context.Context, e *model.AuditEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	_, err := o.q.ExecContext(ctx,
		`INSERT INTO audit_log (`+auditColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.Action), e.ItemName, e.OldValue, e.NewValue, e.UpdateID, e.ManagerID, e.Timestamp,
	)
	return eris.Wrap(err, "sqlite: append audit")
}

func (s *SQLiteStore) ListAuditEntries(ctx context.Context, filter AuditFilter) ([]model.AuditEntry, error) {
	query := `SELECT ` + auditColumns + ` FROM audit_log WHERE 1=1`
	var args []any

	if filter.Item != "" {
		query += ` AND item_name = ?`
		args = append(args, filter.Item)
	}
	query += ` ORDER BY timestamp DESC, rowid DESC LIMIT ?`
	args = append(args, listLimit(filter.Limit))

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list audit entries")
	}
	defer rows.Close()

	var entries []model.AuditEntry
	for rows.Next() {
		e, err := scanAuditEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: list audit entries iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanPendingUpdate(row scannable) (*model.PendingUpdate, error) {
	var u model.PendingUpdate
	var current sql.NullFloat64
	var status string

	err := row.Scan(&u.ID, &u.DetectedItem, &current, &u.ProposedRate, &u.EvidencePath,
		&u.EvidenceQuote, &status, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan pending update")
	}
	if current.Valid {
		u.CurrentRate = model.Float(current.Float64)
	}
	u.Status = model.UpdateStatus(status)
	return &u, nil
}

func scanAuditEntry(row scannable) (*model.AuditEntry, error) {
	var e model.AuditEntry
	var old sql.NullFloat64
	var action string

	err := row.Scan(&e.ID, &action, &e.ItemName, &old, &e.NewValue, &e.UpdateID, &e.ManagerID, &e.Timestamp)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan audit entry")
	}
	if old.Valid {
		e.OldValue = model.Float(old.Float64)
	}
	e.Action = model.AuditAction(action)
	return &e, nil
}
