// Package cleanup implements the CleanupPolicy from spec §4.7: deleting
// SYNCED rows older than a retention window, triggered by the caller based
// on queue size.
package cleanup

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/mdfalcon104/survey-response-sync/clock"
	"github.com/mdfalcon104/survey-response-sync/config"
	utillog "github.com/mdfalcon104/survey-response-sync/pkg/util/log"
	"github.com/mdfalcon104/survey-response-sync/store"
)

// Policy implements CleanupOldSynced/ShouldTriggerCleanup. It has no
// ordering dependency on SyncEngine: both only ever touch disjoint status
// partitions (spec §4.7).
type Policy struct {
	cfg    config.Config
	store  store.ResponseStore
	clock  clock.Provider
	logger log.Logger
}

// New builds a Policy. logger may be nil, in which case a default logfmt
// logger is used.
func New(cfg config.Config, s store.ResponseStore, clk clock.Provider, logger log.Logger) *Policy {
	if logger == nil {
		logger = utillog.NewLogger()
	}
	return &Policy{cfg: cfg, store: s, clock: clk, logger: logger}
}

// CleanupOldSynced computes cutoff = now - retention_window and deletes
// every SYNCED row older than it.
func (p *Policy) CleanupOldSynced(ctx context.Context) error {
	nowMs := p.clock.NowMillis()
	cutoff := nowMs - p.cfg.RetentionWindow.Milliseconds()

	deleted, err := p.store.DeleteSyncedBefore(ctx, cutoff)
	if err != nil {
		level.Error(p.logger).Log("msg", "delete_synced_before failed", "err", err)
		return err
	}

	cutoffTime := time.UnixMilli(cutoff)
	level.Info(p.logger).Log("msg", "cleaned up synced responses", "deleted", deleted,
		"cutoff", humanize.Time(cutoffTime))

	return nil
}

// ShouldTriggerCleanup implements should_trigger_cleanup(pending_count).
func (p *Policy) ShouldTriggerCleanup(pendingCount int) bool {
	return pendingCount >= p.cfg.CleanupThreshold
}
