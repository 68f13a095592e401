// Package postgres archives finished run reports so evidence from earlier
// runs can be compared later. Each run is stored under its own run ID and
// nothing is ever merged across runs.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hamed0406/shardprobe/internal/domain"
	"github.com/hamed0406/shardprobe/internal/evidence"
	"github.com/hamed0406/shardprobe/internal/repo"
)

const Schema = `
CREATE TABLE IF NOT EXISTS runs (
  run_id        TEXT PRIMARY KEY,
  started_at    TIMESTAMPTZ NOT NULL,
  finished_at   TIMESTAMPTZ NOT NULL,
  server_root   TEXT NOT NULL,
  reference_key TEXT NOT NULL,
  index_key     TEXT NOT NULL,
  index_variant TEXT NOT NULL DEFAULT '',
  reachable     BOOLEAN NULL,
  dns_class     TEXT NULL,
  http_status   INTEGER NULL
);

CREATE TABLE IF NOT EXISTS outcomes (
  id          BIGSERIAL PRIMARY KEY,
  run_id      TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
  seq         INTEGER NOT NULL,
  strategy    TEXT NOT NULL,
  variant     TEXT NOT NULL,
  url         TEXT NOT NULL,
  kind        TEXT NOT NULL,
  error_kind  TEXT NOT NULL,
  http_status INTEGER NOT NULL,
  attempts    INTEGER NOT NULL,
  duration_ms DOUBLE PRECISION NOT NULL,
  size        BIGINT NOT NULL,
  sha256      TEXT NOT NULL,
  diagnostic  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS existence (
  id          BIGSERIAL PRIMARY KEY,
  run_id      TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
  seq         INTEGER NOT NULL,
  role        TEXT NOT NULL,
  key         TEXT NOT NULL,
  variant     TEXT NOT NULL,
  url         TEXT NOT NULL,
  class       TEXT NOT NULL,
  http_status INTEGER NOT NULL,
  status_line TEXT NOT NULL,
  method      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_outcomes_run  ON outcomes (run_id, seq);
CREATE INDEX IF NOT EXISTS idx_existence_run ON existence (run_id, seq);
CREATE INDEX IF NOT EXISTS idx_runs_started  ON runs (started_at DESC);
`

type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func New(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Store{pool: pool, log: log}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the archive tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// SaveReport writes one run in a single transaction. Saving the same run
// twice replaces the earlier copy.
func (s *Store) SaveReport(ctx context.Context, r evidence.Report) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM runs WHERE run_id = $1`, r.RunID); err != nil {
		return fmt.Errorf("replace run: %w", err)
	}

	var reachable *bool
	var dnsClass *string
	var status *int
	if c := r.Connectivity; c != nil {
		reachable, dnsClass, status = &c.Reachable, &c.DNSClass, &c.HTTPStatus
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO runs (run_id, started_at, finished_at, server_root, reference_key, index_key, index_variant, reachable, dns_class, http_status)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		r.RunID, r.StartedAt, r.FinishedAt, r.ServerRoot, r.ReferenceKey.String(), r.IndexKey.String(),
		string(r.IndexVariant), reachable, dnsClass, status); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	batch := &pgx.Batch{}
	for i, o := range r.Outcomes {
		batch.Queue(
			`INSERT INTO outcomes (run_id, seq, strategy, variant, url, kind, error_kind, http_status, attempts, duration_ms, size, sha256, diagnostic)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
			r.RunID, i, o.Strategy, string(o.Target.Variant), o.Target.URL, string(o.Kind), string(o.ErrorKind),
			o.HTTPStatus, o.Attempts, float64(o.Duration)/float64(time.Millisecond), o.Size, o.SHA256, o.Diagnostic)
	}
	for i, row := range r.Existence {
		e := row.Result
		batch.Queue(
			`INSERT INTO existence (run_id, seq, role, key, variant, url, class, http_status, status_line, method)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			r.RunID, i, string(row.Role), e.Key.String(), string(e.Variant), e.URL, string(e.Class),
			e.HTTPStatus, e.StatusLine, e.Method)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert evidence: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.log.Info("run_archived",
		zap.String("run_id", r.RunID),
		zap.Int("outcomes", len(r.Outcomes)),
		zap.Int("existence", len(r.Existence)),
	)
	return nil
}

var ErrRunNotFound = errors.New("run not found")

// LoadReport reads an archived run back. Fields the archive does not keep
// (artifact paths, latencies) are left zero.
func (s *Store) LoadReport(ctx context.Context, runID string) (evidence.Report, error) {
	r := evidence.Report{RunID: runID}
	var ref, idx, idxVariant string
	var reachable *bool
	var dnsClass *string
	var status *int
	err := s.pool.QueryRow(ctx,
		`SELECT started_at, finished_at, server_root, reference_key, index_key, index_variant, reachable, dns_class, http_status
		   FROM runs WHERE run_id = $1`, runID).
		Scan(&r.StartedAt, &r.FinishedAt, &r.ServerRoot, &ref, &idx, &idxVariant, &reachable, &dnsClass, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return r, ErrRunNotFound
	}
	if err != nil {
		return r, fmt.Errorf("load run: %w", err)
	}
	r.ReferenceKey, _ = domain.ParseResourceKey(ref)
	r.IndexKey, _ = domain.ParseResourceKey(idx)
	r.IndexVariant = domain.PathVariant(idxVariant)
	if reachable != nil {
		c := domain.Connectivity{Reachable: *reachable}
		if dnsClass != nil {
			c.DNSClass = *dnsClass
		}
		if status != nil {
			c.HTTPStatus = *status
		}
		r.Connectivity = &c
	}

	rows, err := s.pool.Query(ctx,
		`SELECT strategy, variant, url, kind, error_kind, http_status, attempts, duration_ms, size, sha256, diagnostic
		   FROM outcomes WHERE run_id = $1 ORDER BY seq`, runID)
	if err != nil {
		return r, fmt.Errorf("load outcomes: %w", err)
	}
	for rows.Next() {
		var o domain.ProbeOutcome
		var variant, kind, errKind string
		var ms float64
		if err := rows.Scan(&o.Strategy, &variant, &o.Target.URL, &kind, &errKind, &o.HTTPStatus, &o.Attempts, &ms, &o.Size, &o.SHA256, &o.Diagnostic); err != nil {
			rows.Close()
			return r, err
		}
		o.Target.Key = r.ReferenceKey
		o.Target.Variant = domain.PathVariant(variant)
		o.Kind = domain.OutcomeKind(kind)
		o.ErrorKind = domain.ErrorKind(errKind)
		o.Duration = time.Duration(ms * float64(time.Millisecond))
		r.Outcomes = append(r.Outcomes, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return r, err
	}

	rows, err = s.pool.Query(ctx,
		`SELECT role, key, variant, url, class, http_status, status_line, method
		   FROM existence WHERE run_id = $1 ORDER BY seq`, runID)
	if err != nil {
		return r, fmt.Errorf("load existence: %w", err)
	}
	defer rows.Close()
	seen := map[domain.PathVariant]bool{}
	for rows.Next() {
		var row repo.ExistenceRow
		var role, key, variant, class string
		if err := rows.Scan(&role, &key, &variant, &row.Result.URL, &class, &row.Result.HTTPStatus, &row.Result.StatusLine, &row.Result.Method); err != nil {
			return r, err
		}
		row.Role = repo.KeyRole(role)
		row.Result.Key, _ = domain.ParseResourceKey(key)
		row.Result.Variant = domain.PathVariant(variant)
		row.Result.Class = domain.ExistenceClass(class)
		r.Existence = append(r.Existence, row)
		if !seen[row.Result.Variant] {
			seen[row.Result.Variant] = true
			r.Variants = append(r.Variants, row.Result.Variant)
		}
	}
	return r, rows.Err()
}

// RecentRunIDs lists archived runs, newest first.
func (s *Store) RecentRunIDs(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `SELECT run_id FROM runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
