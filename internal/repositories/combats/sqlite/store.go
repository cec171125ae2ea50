// Package sqlite provides a SQLite-backed combat session repository.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/KirkDiggler/rpg-atb/internal/domain/game/session"
	"github.com/KirkDiggler/rpg-atb/internal/errors"
	"github.com/KirkDiggler/rpg-atb/internal/repositories/combats"
	"github.com/KirkDiggler/rpg-atb/internal/repositories/combats/sqlite/migrations"
	_ "modernc.org/sqlite"
)

const migrationTable = "schema_migrations"

// Store persists combat sessions in SQLite.
type Store struct {
	sqlDB        *sql.DB
	timeProvider combats.TimeProvider
}

var _ combats.Repository = (*Store)(nil)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// Open opens a SQLite store and applies embedded migrations.
func Open(path string, timeProvider combats.TimeProvider) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	if timeProvider == nil {
		timeProvider = combats.SystemTime()
	}

	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, timeProvider: timeProvider}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Save upserts a snapshot.
func (s *Store) Save(ctx context.Context, snapshot *session.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if snapshot == nil {
		return errors.InvalidArgument("snapshot cannot be nil")
	}
	if strings.TrimSpace(snapshot.ID) == "" {
		return errors.InvalidArgument("snapshot ID cannot be empty")
	}

	now := s.timeProvider.Now()
	if snapshot.CreatedAt.IsZero() {
		snapshot.CreatedAt = now
	}
	snapshot.UpdatedAt = now

	data, err := json.Marshal(snapshot)
	if err != nil {
		return errors.Wrap(err, "failed to serialize snapshot")
	}

	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO combat_sessions (id, driver_id, status, tick, data, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   driver_id = excluded.driver_id,
		   status = excluded.status,
		   tick = excluded.tick,
		   data = excluded.data,
		   updated_at = excluded.updated_at`,
		snapshot.ID,
		snapshot.DriverID,
		string(snapshot.Status),
		snapshot.Tick(),
		string(data),
		toMillis(snapshot.CreatedAt),
		toMillis(snapshot.UpdatedAt),
	)
	if err != nil {
		return errors.Wrapf(err, "failed to save combat session %s", snapshot.ID)
	}
	return nil
}

// Get returns one snapshot by ID.
func (s *Store) Get(ctx context.Context, id string) (*session.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var data string
	err := s.sqlDB.QueryRowContext(ctx, `SELECT data FROM combat_sessions WHERE id = ?`, id).Scan(&data)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFoundf("combat session %s not found", id)
		}
		return nil, errors.Wrapf(err, "failed to get combat session %s", id)
	}
	return decode(id, data)
}

// Delete removes one snapshot.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM combat_sessions WHERE id = ?`, id)
	if err != nil {
		return errors.Wrapf(err, "failed to delete combat session %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrapf(err, "failed to delete combat session %s", id)
	}
	if n == 0 {
		return errors.NotFoundf("combat session %s not found", id)
	}
	return nil
}

// ListActive returns active snapshots ordered by ID.
func (s *Store) ListActive(ctx context.Context) ([]*session.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, data FROM combat_sessions WHERE status = ? ORDER BY id`,
		string(session.StatusActive),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list active combat sessions")
	}
	defer rows.Close()

	var active []*session.Snapshot
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, errors.Wrap(err, "failed to scan combat session")
		}
		snapshot, err := decode(id, data)
		if err != nil {
			return nil, err
		}
		active = append(active, snapshot)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to list active combat sessions")
	}
	return active, nil
}

func decode(id, data string) (*session.Snapshot, error) {
	var snapshot session.Snapshot
	if err := json.Unmarshal([]byte(data), &snapshot); err != nil {
		return nil, errors.Wrapf(err, "failed to deserialize combat session %s", id)
	}
	return &snapshot, nil
}

// applyMigrations executes each embedded migration at most once.
func applyMigrations(sqlDB *sql.DB, migrationFS fs.FS) error {
	entries, err := fs.ReadDir(migrationFS, ".")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	if _, err := sqlDB.Exec(fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		name TEXT PRIMARY KEY,
		applied_at INTEGER NOT NULL
	)`, migrationTable)); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	for _, file := range files {
		var applied int
		if err := sqlDB.QueryRow(fmt.Sprintf(`SELECT COUNT(1) FROM %s WHERE name = ?`, migrationTable), file).Scan(&applied); err != nil {
			return fmt.Errorf("check migration %s: %w", file, err)
		}
		if applied > 0 {
			continue
		}

		content, err := fs.ReadFile(migrationFS, file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		up := upMigration(string(content))
		if strings.TrimSpace(up) == "" {
			continue
		}

		tx, err := sqlDB.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", file, err)
		}
		if _, err := tx.Exec(up); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", file, err)
		}
		if _, err := tx.Exec(
			fmt.Sprintf(`INSERT INTO %s (name, applied_at) VALUES (?, ?)`, migrationTable),
			file,
			toMillis(time.Now()),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", file, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", file, err)
		}
	}
	return nil
}

// upMigration returns the SQL in the "-- +migrate Up" section.
func upMigration(content string) string {
	const upMarker, downMarker = "-- +migrate Up", "-- +migrate Down"
	upIdx := strings.Index(content, upMarker)
	if upIdx == -1 {
		return content
	}
	rest := content[upIdx+len(upMarker):]
	if downIdx := strings.Index(rest, downMarker); downIdx != -1 {
		return rest[:downIdx]
	}
	return rest
}
