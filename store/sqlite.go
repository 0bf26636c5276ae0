package store

import (
	"context"
	"database/sql"
	"encoding/json"

	pkgerrors "github.com/pkg/errors"

	// modernc.org/sqlite is a pure-Go, CGO-free SQLite driver: the right
	// fit for a store that has to build and run unmodified on constrained
	// field devices with no C toolchain available.
	_ "modernc.org/sqlite"

	"github.com/mdfalcon104/survey-response-sync/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS response_records (
    id               TEXT PRIMARY KEY,
    farmer_id        TEXT NOT NULL,
    created_at       INTEGER NOT NULL,
    answers_json     TEXT NOT NULL,
    status           TEXT NOT NULL,
    retry_count      INTEGER NOT NULL,
    last_attempt_at  INTEGER,
    media_paths_json TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_response_records_pending
    ON response_records (status, created_at, id);
`

// SQLiteStore is a ResponseStore backed by database/sql over
// modernc.org/sqlite. media_paths is persisted as a JSON array in a TEXT
// column: an implementation convenience spec §9 explicitly permits ("the
// model requires only 'ordered sequence of opaque strings'").
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (and, if needed, creates) the sqlite database file
// at path and ensures the schema exists.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "open sqlite database")
	}

	// The sqlite driver is not safe for unbounded concurrent writers; cap
	// it at one open connection so every operation in this package
	// serializes through Go's database/sql connection pool. Each write
	// below additionally runs in its own transaction (a default
	// sql.TxOptions transaction, not BEGIN IMMEDIATE).
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, pkgerrors.Wrap(err, "create schema")
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) beginImmediate(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, &sql.TxOptions{})
}

func (s *SQLiteStore) InsertOrReplace(ctx context.Context, r *model.ResponseRecord) error {
	mediaJSON, err := json.Marshal(r.MediaPaths)
	if err != nil {
		return pkgerrors.Wrap(err, "marshal media_paths")
	}

	tx, err := s.beginImmediate(ctx)
	if err != nil {
		return pkgerrors.Wrap(err, "begin transaction")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO response_records
			(id, farmer_id, created_at, answers_json, status, retry_count, last_attempt_at, media_paths_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			retry_count = excluded.retry_count,
			last_attempt_at = excluded.last_attempt_at,
			media_paths_json = excluded.media_paths_json
	`, r.ID, r.FarmerID, r.CreatedAt, r.AnswersJSON, string(r.Status), r.RetryCount, r.LastAttemptAt, string(mediaJSON))
	if err != nil {
		return pkgerrors.Wrap(err, "insert_or_replace")
	}

	return tx.Commit()
}

func (s *SQLiteStore) GetByID(ctx context.Context, id string) (*model.ResponseRecord, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, farmer_id, created_at, answers_json, status, retry_count, last_attempt_at, media_paths_json
		FROM response_records WHERE id = ?
	`, id)

	r, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, pkgerrors.Wrap(err, "get_by_id")
	}
	return r, true, nil
}

func (s *SQLiteStore) GetPending(ctx context.Context) ([]*model.ResponseRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, farmer_id, created_at, answers_json, status, retry_count, last_attempt_at, media_paths_json
		FROM response_records
		WHERE status IN (?, ?)
		ORDER BY created_at ASC, id ASC
	`, string(model.StatusPending), string(model.StatusFailedRetryable))
	if err != nil {
		return nil, pkgerrors.Wrap(err, "get_pending")
	}
	defer rows.Close()

	var out []*model.ResponseRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, pkgerrors.Wrap(err, "get_pending scan")
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.Wrap(err, "get_pending rows")
	}

	return out, nil
}

func (s *SQLiteStore) UpdateStatus(ctx context.Context, id string, status model.Status, retryCount int, lastAttemptAt int64) error {
	tx, err := s.beginImmediate(ctx)
	if err != nil {
		return pkgerrors.Wrap(err, "begin transaction")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE response_records
		SET status = ?, retry_count = ?, last_attempt_at = ?
		WHERE id = ?
	`, string(status), retryCount, lastAttemptAt, id)
	if err != nil {
		return pkgerrors.Wrap(err, "update_status")
	}

	return tx.Commit()
}

func (s *SQLiteStore) MarkSynced(ctx context.Context, id string) error {
	tx, err := s.beginImmediate(ctx)
	if err != nil {
		return pkgerrors.Wrap(err, "begin transaction")
	}
	defer tx.Rollback()

	emptyMedia, _ := json.Marshal([]string{})
	_, err = tx.ExecContext(ctx, `
		UPDATE response_records
		SET status = ?, media_paths_json = ?
		WHERE id = ?
	`, string(model.StatusSynced), string(emptyMedia), id)
	if err != nil {
		return pkgerrors.Wrap(err, "mark_synced")
	}

	return tx.Commit()
}

func (s *SQLiteStore) DeleteSyncedBefore(ctx context.Context, ts int64) (int64, error) {
	tx, err := s.beginImmediate(ctx)
	if err != nil {
		return 0, pkgerrors.Wrap(err, "begin transaction")
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		DELETE FROM response_records WHERE status = ? AND created_at < ?
	`, string(model.StatusSynced), ts)
	if err != nil {
		return 0, pkgerrors.Wrap(err, "delete_synced_before")
	}

	if err := tx.Commit(); err != nil {
		return 0, pkgerrors.Wrap(err, "commit delete_synced_before")
	}

	// Implementation-defined count (spec §9 open question); modernc.org/sqlite
	// does surface an accurate RowsAffected, but callers must treat the
	// contract as "delete all matching rows" regardless of this value.
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return n, nil
}

func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM response_records`).Scan(&n)
	if err != nil {
		return 0, pkgerrors.Wrap(err, "count")
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*model.ResponseRecord, error) {
	var (
		r             model.ResponseRecord
		status        string
		lastAttemptAt sql.NullInt64
		mediaJSON     string
	)

	if err := row.Scan(&r.ID, &r.FarmerID, &r.CreatedAt, &r.AnswersJSON, &status, &r.RetryCount, &lastAttemptAt, &mediaJSON); err != nil {
		return nil, err
	}

	r.Status = model.Status(status)
	if lastAttemptAt.Valid {
		v := lastAttemptAt.Int64
		r.LastAttemptAt = &v
	}
	if mediaJSON != "" {
		if err := json.Unmarshal([]byte(mediaJSON), &r.MediaPaths); err != nil {
			return nil, err
		}
	}

	return &r, nil
}
