//go:build sqlite
// +build sqlite

package runstore

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"crosspost/internal/dispatch"
	"crosspost/internal/verify"
	"crosspost/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) SaveBatch(ctx context.Context, batch *dispatch.Batch) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if batch == nil || batch.RunID == "" {
		return errors.New("batch has no run id")
	}
	b, err := json.Marshal(batch)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs(run_id, started_at, batch)
		 VALUES(?,?,?)
		 ON CONFLICT(run_id) DO UPDATE SET batch=excluded.batch`,
		batch.RunID, batch.StartedAt.Format(time.RFC3339Nano), string(b),
	)
	return err
}

func (s *sqliteStore) SaveChecks(ctx context.Context, checks verify.CheckSet) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if checks.RunID == "" {
		return errors.New("check set has no run id")
	}
	b, err := json.Marshal(checks)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET checks = ? WHERE run_id = ?`, string(b), checks.RunID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqliteStore) GetRun(ctx context.Context, runID string) (Record, error) {
	if s == nil || s.db == nil {
		return Record{}, ErrDisabled
	}
	var batchJSON string
	var checksJSON sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT batch, checks FROM runs WHERE run_id = ?`, runID).Scan(&batchJSON, &checksJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	var rec Record
	if err := json.Unmarshal([]byte(batchJSON), &rec.Batch); err != nil {
		return Record{}, err
	}
	if checksJSON.Valid {
		var cs verify.CheckSet
		if err := json.Unmarshal([]byte(checksJSON.String), &cs); err != nil {
			return Record{}, err
		}
		rec.Checks = &cs
	}
	return rec, nil
}

func (s *sqliteStore) LatestRunID(ctx context.Context) (string, error) {
	if s == nil || s.db == nil {
		return "", ErrDisabled
	}
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT run_id FROM runs ORDER BY started_at DESC LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return id, nil
}
