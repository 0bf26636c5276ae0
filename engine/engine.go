// Package engine implements the SyncEngine: the drain algorithm, early-stop
// policy, per-record state machine, and single-flight gate described in
// spec §4.4–§4.5 and §5.
package engine

import (
	"context"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"golang.org/x/sync/singleflight"

	"github.com/mdfalcon104/survey-response-sync/clock"
	"github.com/mdfalcon104/survey-response-sync/config"
	"github.com/mdfalcon104/survey-response-sync/filesink"
	"github.com/mdfalcon104/survey-response-sync/model"
	utillog "github.com/mdfalcon104/survey-response-sync/pkg/util/log"
	"github.com/mdfalcon104/survey-response-sync/store"
	"github.com/mdfalcon104/survey-response-sync/syncerr"
	"github.com/mdfalcon104/survey-response-sync/upload"
)

// drainKey is the single singleflight key a drain runs under: one engine
// instance drives at most one in-flight drain at a time (spec §5).
const drainKey = "drain"

// Engine orchestrates drains against a ResponseStore. It holds no
// process-wide state; every collaborator is supplied at construction
// (spec §9 "no process-wide singletons").
type Engine struct {
	cfg      config.Config
	store    store.ResponseStore
	uploader upload.Uploader
	sink     filesink.FileSink
	clock    clock.Provider
	logger   log.Logger
	failLog  *utillog.RateLimitedLogger

	gate singleflight.Group
}

// New builds an Engine. logger may be nil, in which case a default logfmt
// logger is used.
func New(cfg config.Config, s store.ResponseStore, uploader upload.Uploader, sink filesink.FileSink, clk clock.Provider, logger log.Logger) *Engine {
	if logger == nil {
		logger = utillog.NewLogger()
	}

	return &Engine{
		cfg:      cfg,
		store:    s,
		uploader: uploader,
		sink:     sink,
		clock:    clk,
		logger:   logger,
		failLog:  utillog.NewRateLimitedLogger(1, level.Warn(logger)),
	}
}

// Sync runs one drain, or joins an already in-flight one (spec §4.4.1,
// §5). Every caller joined to the same drain receives the identical
// SyncResult value.
func (e *Engine) Sync(ctx context.Context) (SyncResult, error) {
	resultCh := e.gate.DoChan(drainKey, func() (interface{}, error) {
		return e.drain(context.WithoutCancel(ctx))
	})

	select {
	case res := <-resultCh:
		if res.Err != nil {
			return SyncResult{}, res.Err
		}
		return res.Val.(SyncResult), nil
	case <-ctx.Done():
		// Only this caller observes cancellation; the drain keeps running
		// for everyone else still joined to it (spec §5).
		return SyncResult{Stop: stopCancelled()}, ctx.Err()
	}
}

// drain implements spec §4.4.3. It always runs to completion (or until an
// early stop / fatal store error) even if the Sync caller that started it
// has since had its own context cancelled, because every other joined
// caller is still waiting on this same result.
func (e *Engine) drain(ctx context.Context) (SyncResult, error) {
	pending, err := e.store.GetPending(ctx)
	if err != nil {
		level.Error(e.logger).Log("msg", "get_pending failed", "err", err)
		return SyncResult{Stop: stopFatalStore(err)}, nil
	}

	if len(pending) == 0 {
		return EmptyResult(), nil
	}

	remaining := make(map[string]struct{}, len(pending))
	for _, r := range pending {
		remaining[r.ID] = struct{}{}
	}

	var (
		succeeded   []string
		failed      []string
		consecutive int
		stop        *StopReason
	)

	for _, r := range pending {
		delete(remaining, r.ID)

		uploadErr := e.uploader.Upload(ctx, r)
		now := e.clock.NowMillis()

		if uploadErr == nil {
			succeeded = append(succeeded, r.ID)
			consecutive = 0
			if err := e.applySuccess(ctx, r); err != nil {
				level.Error(e.logger).Log("msg", "mark_synced failed", "id", r.ID, "err", err)
				stop = stopFatalStore(err)
				break
			}
			continue
		}

		failed = append(failed, r.ID)
		if err := e.applyFailure(ctx, r, uploadErr, now); err != nil {
			level.Error(e.logger).Log("msg", "update_status failed", "id", r.ID, "err", err)
			stop = stopFatalStore(err)
			break
		}

		if syncerr.IsRetryable(uploadErr) {
			consecutive++
		} else {
			consecutive = 0
		}

		_ = e.failLog.Log("msg", "upload failed", "id", r.ID, "kind", uploadErr.Kind.String(), "consecutive", consecutive)

		if reason := evaluateEarlyStop(uploadErr, consecutive, e.cfg.ConsecutiveFailureThreshold); reason != nil {
			stop = reason
			break
		}
	}

	pendingIDs := make([]string, 0, len(remaining))
	for _, r := range pending {
		if _, ok := remaining[r.ID]; ok {
			pendingIDs = append(pendingIDs, r.ID)
		}
	}

	if stop != nil {
		level.Info(e.logger).Log("msg", "drain stopped early", "reason", stop.String(),
			"succeeded", len(succeeded), "failed", len(failed), "pending", len(pendingIDs))
	} else {
		level.Info(e.logger).Log("msg", "drain complete",
			"succeeded", len(succeeded), "failed", len(failed))
	}

	return SyncResult{
		Succeeded: succeeded,
		Failed:    failed,
		Pending:   pendingIDs,
		Stop:      stop,
	}, nil
}

// applySuccess implements the Ok branch of the state machine (spec
// §4.4.2): mark_synced, then best-effort delete any captured media.
func (e *Engine) applySuccess(ctx context.Context, r *model.ResponseRecord) error {
	if err := e.store.MarkSynced(ctx, r.ID); err != nil {
		return err
	}

	if len(r.MediaPaths) > 0 {
		deleted := e.sink.DeleteFiles(ctx, r.MediaPaths)
		if deleted < len(r.MediaPaths) {
			level.Warn(e.logger).Log("msg", "media delete incomplete", "id", r.ID,
				"deleted", deleted, "total", len(r.MediaPaths))
		}
	}

	return nil
}

// applyFailure implements the Err branches of the state machine (spec
// §4.4.2): classify retryable vs. permanent and persist the transition.
func (e *Engine) applyFailure(ctx context.Context, r *model.ResponseRecord, uploadErr *syncerr.Error, now int64) error {
	nextRetryCount := r.RetryCount + 1

	var next model.Status
	if !syncerr.IsRetryable(uploadErr) {
		next = model.StatusFailedPermanent
	} else if nextRetryCount >= e.cfg.MaxRetryCount {
		next = model.StatusFailedPermanent
	} else {
		next = model.StatusFailedRetryable
	}

	return e.store.UpdateStatus(ctx, r.ID, next, nextRetryCount, now)
}

// evaluateEarlyStop implements spec §4.4.4.
func evaluateEarlyStop(err *syncerr.Error, consecutive, threshold int) *StopReason {
	switch err.Kind {
	case syncerr.KindNoInternet:
		return stopFatalUpload(err)
	case syncerr.KindTimeout:
		if consecutive >= threshold {
			return stopNetworkDegradation(consecutive)
		}
	case syncerr.KindServerError:
		if err.Code >= 500 && err.Code <= 599 && consecutive >= threshold {
			return stopNetworkDegradation(consecutive)
		}
	}
	return nil
}

// Backoff implements the advisory helper from spec §4.4.5: pure function of
// n (a record's post-attempt retry_count), never consulted by drain itself.
func (e *Engine) Backoff(n int) (delayMs int64) {
	return Backoff(e.cfg, n)
}

// Backoff computes delay(n) = min(initial * 2^min(n, maxExponent), max),
// without requiring a constructed Engine.
func Backoff(cfg config.Config, n int) int64 {
	exp := n
	if exp > cfg.MaxBackoffExponent {
		exp = cfg.MaxBackoffExponent
	}
	if exp < 0 {
		exp = 0
	}

	delay := cfg.InitialBackoff.Milliseconds()
	for i := 0; i < exp; i++ {
		delay *= 2
		if delay >= cfg.MaxBackoff.Milliseconds() {
			delay = cfg.MaxBackoff.Milliseconds()
			break
		}
	}

	if delay > cfg.MaxBackoff.Milliseconds() {
		delay = cfg.MaxBackoff.Milliseconds()
	}
	return delay
}
