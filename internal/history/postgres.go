package history

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createTable = `
CREATE TABLE IF NOT EXISTS batch_history (
    id            uuid PRIMARY KEY,
    template_name text        NOT NULL,
    targets       integer     NOT NULL,
    attempted     integer     NOT NULL,
    failed        integer     NOT NULL,
    status        text        NOT NULL,
    error_report  bytea,
    client_ip     inet,
    started_at    timestamptz NOT NULL,
    finished_at   timestamptz NOT NULL
);
CREATE INDEX IF NOT EXISTS batch_history_started_at_idx ON batch_history (started_at DESC);
`

const selectColumns = `id::text, template_name, targets, attempted, failed, status,
       error_report, COALESCE(host(client_ip), ''), started_at, finished_at`

// PostgresStore keeps run history in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps a pool. Call EnsureSchema before first use.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the history table when missing.
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("create batch_history: %w", err)
	}
	return nil
}

func (p *PostgresStore) Record(ctx context.Context, e Entry) error {
	var report []byte
	if len(e.Report) > 0 {
		report = e.Report
	}

	_, err := p.pool.Exec(ctx, `
INSERT INTO batch_history
    (id, template_name, targets, attempted, failed, status, error_report, client_ip, started_at, finished_at)
VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, NULLIF($8::text, '')::inet, $9, $10)`,
		e.ID, e.TemplateName, e.Targets, e.Attempted, e.Failed, e.Status,
		report, clientHost(e.ClientIP), toPgTimestamptz(e.StartedAt), toPgTimestamptz(e.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("insert batch history: %w", err)
	}
	return nil
}

func (p *PostgresStore) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := p.pool.Query(ctx,
		`SELECT `+selectColumns+` FROM batch_history ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list batch history: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Entry, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT `+selectColumns+` FROM batch_history WHERE id::text = $1`, id)
	e, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

func scanEntry(row pgx.Row) (*Entry, error) {
	var (
		e        Entry
		report   []byte
		started  pgtype.Timestamptz
		finished pgtype.Timestamptz
	)
	err := row.Scan(&e.ID, &e.TemplateName, &e.Targets, &e.Attempted, &e.Failed, &e.Status,
		&report, &e.ClientIP, &started, &finished)
	if err != nil {
		return nil, err
	}
	e.Report = report
	e.StartedAt = started.Time
	e.FinishedAt = finished.Time
	return &e, nil
}

// clientHost strips a port from a remote address; unparseable input is dropped.
func clientHost(addr string) string {
	if addr == "" {
		return ""
	}
	host := addr
	if h, _, err := net.SplitHostPort(addr); err == nil {
		host = h
	}
	if net.ParseIP(host) == nil {
		return ""
	}
	return host
}

func toPgTimestamptz(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}
