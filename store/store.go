// Package store defines the ResponseStore contract (spec §4.2) and two
// implementations: an in-memory store for tests and a modernc.org/sqlite
// backed store for field devices.
package store

import (
	"context"
	"errors"

	"github.com/mdfalcon104/survey-response-sync/model"
)

// ErrNotFound names the "no such row" condition. It is not part of the
// ResponseStore contract (GetByID reports a missing row through its bool
// result), and neither implementation in this package returns it.
var ErrNotFound = errors.New("store: response record not found")

// ResponseStore is the durable, transactional mapping from response id to
// response record described in spec §4.2. All operations are safe for
// concurrent use; per-id writes are serialized by the implementation.
type ResponseStore interface {
	// InsertOrReplace upserts a record, preserving I1 (one row per id) and
	// I5: when a row with the id already exists, only status, retry_count,
	// last_attempt_at and media_paths are replaced; farmer_id, created_at
	// and answers_json keep their inserted values.
	InsertOrReplace(ctx context.Context, record *model.ResponseRecord) error

	// GetByID returns the record and true, or nil and false if no row with
	// that id exists.
	GetByID(ctx context.Context, id string) (*model.ResponseRecord, bool, error)

	// GetPending returns every record with status PENDING or
	// FAILED_RETRYABLE, ordered by created_at ascending, ties broken by id
	// lexicographically.
	GetPending(ctx context.Context) ([]*model.ResponseRecord, error)

	// UpdateStatus atomically updates status, retry_count and
	// last_attempt_at. It is a no-op if id is missing.
	UpdateStatus(ctx context.Context, id string, status model.Status, retryCount int, lastAttemptAt int64) error

	// MarkSynced atomically sets status=SYNCED and clears media_paths,
	// enforcing I2.
	MarkSynced(ctx context.Context, id string) error

	// DeleteSyncedBefore deletes every row with status=SYNCED and
	// created_at < ts, returning the number of rows deleted (see the open
	// question in spec §9: this count is implementation-defined and
	// callers must not depend on any specific value for correctness).
	DeleteSyncedBefore(ctx context.Context, ts int64) (int64, error)

	// Count returns the total number of rows across all statuses.
	Count(ctx context.Context) (int64, error)

	// Close releases any resources the store holds (file handles,
	// connection pools).
	Close() error
}
