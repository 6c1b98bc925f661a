package store

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/R204570/LexAudit-Flow/internal/model"
)

// Pool is the subset of pgxpool.Pool used by PostgresStore. It is satisfied
// by *pgxpool.Pool and by pgxmock pools in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// pgQuerier is satisfied by both Pool and pgx.Tx.
type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// pgOps implements Tx against either the pool or an open transaction.
type pgOps struct {
	q pgQuerier
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pgOps
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return newPostgresStore(pool), nil
}

func newPostgresStore(pool Pool) *PostgresStore {
	return &PostgresStore{pgOps: pgOps{q: pool}, pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS items (
	name         TEXT PRIMARY KEY,
	rate         DOUBLE PRECISION NOT NULL,
	description  TEXT NOT NULL DEFAULT '',
	last_updated TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS pending_updates (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	detected_item  TEXT NOT NULL,
	current_rate   DOUBLE PRECISION,
	proposed_rate  DOUBLE PRECISION NOT NULL,
	evidence_path  TEXT NOT NULL DEFAULT '',
	evidence_quote TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL DEFAULT 'pending'
	               CHECK (status IN ('pending', 'accepted', 'rejected')),
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS audit_log (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	action     TEXT NOT NULL,
	item_name  TEXT NOT NULL,
	old_value  DOUBLE PRECISION,
	new_value  DOUBLE PRECISION NOT NULL,
	update_id  TEXT NOT NULL DEFAULT '',
	manager_id TEXT NOT NULL DEFAULT '',
	timestamp  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_items_name ON items(name);
CREATE INDEX IF NOT EXISTS idx_pending_updates_status ON pending_updates(status);
CREATE INDEX IF NOT EXISTS idx_pending_updates_item ON pending_updates(detected_item);
CREATE INDEX IF NOT EXISTS idx_pending_updates_created ON pending_updates(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_audit_log_item ON audit_log(item_name);
CREATE INDEX IF NOT EXISTS idx_audit_log_timestamp ON audit_log(timestamp DESC);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) InTx(ctx context.Context, fn func(Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}
	if err := fn(pgOps{q: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit tx")
}

// Items

func (s *PostgresStore) ListItems(ctx context.Context) ([]model.Item, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+itemColumns+` FROM items ORDER BY name`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list items")
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		var it model.Item
		if err := rows.Scan(&it.Name, &it.Rate, &it.Description, &it.LastUpdated); err != nil {
			return nil, eris.Wrap(err, "postgres: scan item")
		}
		items = append(items, it)
	}
	return items, eris.Wrap(rows.Err(), "postgres: list items iterate")
}

func (s *PostgresStore) SeedItems(ctx context.Context, items []model.Item) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: begin seed tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var count int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM items`).Scan(&count); err != nil {
		return 0, eris.Wrap(err, "postgres: count items")
	}
	if count > 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	for _, it := range items {
		if it.LastUpdated.IsZero() {
			it.LastUpdated = now
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO items (`+itemColumns+`) VALUES ($1, $2, $3, $4)`,
			it.Name, it.Rate, it.Description, it.LastUpdated,
		); err != nil {
			return 0, eris.Wrapf(err, "postgres: seed item %s", it.Name)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: commit seed tx")
	}
	return len(items), nil
}

func (o pgOps) GetItem(ctx context.Context, name string) (*model.Item, error) {
	var it model.Item
	err := o.q.QueryRow(ctx,
		`SELECT `+itemColumns+` FROM items WHERE name = $1`, name,
	).Scan(&it.Name, &it.Rate, &it.Description, &it.LastUpdated)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get item %s", name)
	}
	return &it, nil
}

func (o pgOps) UpsertItem(ctx context.Context, item model.Item) error {
	if item.LastUpdated.IsZero() {
		item.LastUpdated = time.Now().UTC()
	}
	_, err := o.q.Exec(ctx,
		`INSERT INTO items (`+itemColumns+`) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (name) DO UPDATE SET rate = EXCLUDED.rate, last_updated = EXCLUDED.last_updated`,
		item.Name, item.Rate, item.Description, item.LastUpdated,
	)
	return eris.Wrapf(err, "postgres: upsert item %s", item.Name)
}

// Pending updates

func (s *PostgresStore) CreatePendingUpdate(ctx context.Context, u *model.PendingUpdate) error {
	prepareUpdate(u, uuid.New().String(), time.Now().UTC())
	_, err := s.pool.Exec(ctx,
		`INSERT INTO pending_updates (`+pendingColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		u.ID, u.DetectedItem, u.CurrentRate, u.ProposedRate, u.EvidencePath, u.EvidenceQuote,
		string(u.Status), u.CreatedAt, u.UpdatedAt,
	)
	return eris.Wrap(err, "postgres: insert pending update")
}

func (s *PostgresStore) ListPendingUpdates(ctx context.Context, filter PendingFilter) ([]model.PendingUpdate, error) {
	query := `SELECT ` + pendingColumns + ` FROM pending_updates WHERE 1=1`
	var args []any
	argN := 1

	if filter.Status != "" {
		query += ` AND status = ` + placeholder(argN)
		args = append(args, string(filter.Status))
		argN++
	}
	if filter.Item != "" {
		query += ` AND detected_item = ` + placeholder(argN)
		args = append(args, filter.Item)
		argN++
	}
	query += ` ORDER BY created_at DESC LIMIT ` + placeholder(argN)
	args = append(args, listLimit(filter.Limit))
	argN++

	if filter.Offset > 0 {
		query += ` OFFSET ` + placeholder(argN)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list pending updates")
	}
	defer rows.Close()

	var updates []model.PendingUpdate
	for rows.Next() {
		u, err := scanPgPendingUpdate(rows)
		if err != nil {
			return nil, err
		}
		updates = append(updates, *u)
	}
	return updates, eris.Wrap(rows.Err(), "postgres: list pending updates iterate")
}

func (s *PostgresStore) SetEvidencePath(ctx context.Context, id, path string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE pending_updates SET evidence_path = $1 WHERE id = $2`, path, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set evidence path %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "pending update %s", id)
	}
	return nil
}

func (o pgOps) GetPendingUpdate(ctx context.Context, id string) (*model.PendingUpdate, error) {
	row := o.q.QueryRow(ctx,
		`SELECT `+pendingColumns+` FROM pending_updates WHERE id = $1`, id,
	)
	u, err := scanPgPendingUpdate(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "pending update %s", id)
	}
	return u, err
}

func (o pgOps) TransitionPendingUpdate(ctx context.Context, id string, from, to model.UpdateStatus, at time.Time) (*model.PendingUpdate, error) {
	row := o.q.QueryRow(ctx,
		`UPDATE pending_updates SET status = $1, updated_at = $2
		 WHERE id = $3 AND status = $4
		 RETURNING `+pendingColumns,
		string(to), at, id, string(from),
	)
	u, err := scanPgPendingUpdate(row)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(err, "postgres: transition pending update %s", id)
	}

	var current string
	err = o.q.QueryRow(ctx, `SELECT status FROM pending_updates WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "pending update %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: read status %s", id)
	}
	return nil, eris.Wrapf(ErrConflict, "pending update %s is %s", id, current)
}

// Audit

func (o pgOps) AppendAudit(ctx context.Context, e *model.AuditEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	_, err := o.q.Exec(ctx,
		`INSERT INTO audit_log (`+auditColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, string(e.Action), e.ItemName, e.OldValue, e.NewValue, e.UpdateID, e.ManagerID, e.Timestamp,
	)
	return eris.Wrap(err, "postgres: append audit")
}

func (s *PostgresStore) ListAuditEntries(ctx context.Context, filter AuditFilter) ([]model.AuditEntry, error) {
	query := `SELECT ` + auditColumns + ` FROM audit_log WHERE 1=1`
	var args []any
	argN := 1

	if filter.Item != "" {
		query += ` AND item_name = ` + placeholder(argN)
		args = append(args, filter.Item)
		argN++
	}
	query += ` ORDER BY timestamp DESC LIMIT ` + placeholder(argN)
	args = append(args, listLimit(filter.Limit))
	argN++

	if filter.Offset > 0 {
		query += ` OFFSET ` + placeholder(argN)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list audit entries")
	}
	defer rows.Close()

	var entries []model.AuditEntry
	for rows.Next() {
		var e model.AuditEntry
		var action string
		if err := rows.Scan(&e.ID, &action, &e.ItemName, &e.OldValue, &e.NewValue,
			&e.UpdateID, &e.ManagerID, &e.Timestamp); err != nil {
			return nil, eris.Wrap(err, "postgres: scan audit entry")
		}
		e.Action = model.AuditAction(action)
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: list audit entries iterate")
}

func scanPgPendingUpdate(row scannable) (*model.PendingUpdate, error) {
	var u model.PendingUpdate
	var status string

	err := row.Scan(&u.ID, &u.DetectedItem, &u.CurrentRate, &u.ProposedRate, &u.EvidencePath,
		&u.EvidenceQuote, &status, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan pending update")
	}
	u.Status = model.UpdateStatus(status)
	return &u, nil
}

func placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}
