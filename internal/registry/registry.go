// Package registry is the external MetadataStore collaborator named in
// spec.md §1: the durable function catalog the Invoker reads at step 1 and
// the append-only invocation log the Invoker writes at step 5. It is
// backed by PostgreSQL via pgx/v5, the same driver and jsonb-blob-per-row
// style as the teacher's store package, trimmed of every table this
// module's Non-goals exclude (versions, aliases, tenancy, async queues,
// event bus, RBAC).
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oriys/barq/internal/domain"
)

// ErrFunctionNotFound is returned by GetFunction/DeleteFunction when no function
// with the given id exists. The Invoker surfaces this directly to the
// caller (spec §4.4 step 1, §7).
var ErrFunctionNotFound = errors.New("registry: function not found")

// MetadataStore is the durable registry collaborator. The Invoker and the
// HTTP API depend on this interface, not on *Postgres, so tests can supply
// an in-memory fake.
type MetadataStore interface {
	Close() error
	Ping(ctx context.Context) error

	SaveFunction(ctx context.Context, fn *domain.Function) error
	GetFunction(ctx context.Context, id string) (*domain.Function, error)
	DeleteFunction(ctx context.Context, id string) error
	ListFunctions(ctx context.Context) ([]*domain.Function, error)

	SaveTelemetry(ctx context.Context, t *domain.Telemetry) error
	SaveTelemetryBatch(ctx context.Context, ts []*domain.Telemetry) error
	ListTelemetry(ctx context.Context, funcID string, limit int) ([]*domain.Telemetry, error)
}

// Postgres is the pgx/v5-backed MetadataStore implementation.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres opens a pool against dsn, verifies connectivity, and ensures
// the schema exists.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	if dsn == "" {
		return nil, fmt.Errorf("registry: postgres DSN is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("registry: create postgres pool: %w", err)
	}
	s := &Postgres{pool: pool}
	if err := s.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Postgres) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func (s *Postgres) Ping(ctx context.Context) error {
	if s.pool == nil {
		return fmt.Errorf("registry: postgres not initialized")
	}
	return s.pool.Ping(ctx)
}

func (s *Postgres) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS functions (
			id TEXT PRIMARY KEY,
			data JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS invocation_telemetry (
			seq BIGSERIAL PRIMARY KEY,
			func_id TEXT NOT NULL,
			data JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_invocation_telemetry_func_id ON invocation_telemetry (func_id, seq DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("registry: ensure schema: %w", err)
		}
	}
	return nil
}

func (s *Postgres) SaveFunction(ctx context.Context, fn *domain.Function) error {
	if fn.ID == "" {
		return fmt.Errorf("registry: function id is required")
	}
	now := time.Now()
	if fn.CreatedAt.IsZero() {
		fn.CreatedAt = now
	}
	data, err := json.Marshal(fn)
	if err != nil {
		return fmt.Errorf("registry: marshal function: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO functions (id, data, created_at, updated_at)
		VALUES ($1, $2::jsonb, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at
	`, fn.ID, data, fn.CreatedAt, now)
	if err != nil {
		return fmt.Errorf("registry: save function: %w", err)
	}
	return nil
}

func (s *Postgres) GetFunction(ctx context.Context, id string) (*domain.Function, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM functions WHERE id = $1`, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrFunctionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("registry: get function: %w", err)
	}
	var fn domain.Function
	if err := json.Unmarshal(data, &fn); err != nil {
		return nil, fmt.Errorf("registry: decode function: %w", err)
	}
	return &fn, nil
}

func (s *Postgres) DeleteFunction(ctx context.Context, id string) error {
	ct, err := s.pool.Exec(ctx, `DELETE FROM functions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("registry: delete function: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrFunctionNotFound
	}
	return nil
}

func (s *Postgres) ListFunctions(ctx context.Context) ([]*domain.Function, error) {
	rows, err := s.pool.Query(ctx, `SELECT data FROM functions ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("registry: list functions: %w", err)
	}
	defer rows.Close()

	var out []*domain.Function
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("registry: scan function: %w", err)
		}
		var fn domain.Function
		if err := json.Unmarshal(data, &fn); err != nil {
			return nil, fmt.Errorf("registry: decode function: %w", err)
		}
		out = append(out, &fn)
	}
	return out, rows.Err()
}

func (s *Postgres) SaveTelemetry(ctx context.Context, t *domain.Telemetry) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("registry: marshal telemetry: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO invocation_telemetry (func_id, data, created_at)
		VALUES ($1, $2::jsonb, $3)
	`, t.FuncID, data, t.Timestamp)
	if err != nil {
		return fmt.Errorf("registry: save telemetry: %w", err)
	}
	return nil
}

func (s *Postgres) SaveTelemetryBatch(ctx context.Context, ts []*domain.Telemetry) error {
	if len(ts) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, t := range ts {
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("registry: marshal telemetry: %w", err)
		}
		batch.Queue(`
			INSERT INTO invocation_telemetry (func_id, data, created_at)
			VALUES ($1, $2::jsonb, $3)
		`, t.FuncID, data, t.Timestamp)
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range ts {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("registry: save telemetry batch: %w", err)
		}
	}
	return nil
}

func (s *Postgres) ListTelemetry(ctx context.Context, funcID string, limit int) ([]*domain.Telemetry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT data FROM invocation_telemetry
		WHERE func_id = $1
		ORDER BY seq DESC
		LIMIT $2
	`, funcID, limit)
	if err != nil {
		return nil, fmt.Errorf("registry: list telemetry: %w", err)
	}
	defer rows.Close()

	var out []*domain.Telemetry
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("registry: scan telemetry: %w", err)
		}
		var t domain.Telemetry
		if err := json.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("registry: decode telemetry: %w", err)
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}
