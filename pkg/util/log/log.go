// Package log provides the structured logging primitives every engine
// component is constructed with: a default logfmt logger and a rate
// limiter wrapper so a degraded connection failing every pending record
// doesn't flood the log with one line per record.
package log

import (
	"os"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"go.uber.org/atomic"
	"golang.org/x/time/rate"
)

// NewLogger builds the default logfmt logger written to stderr, timestamped
// with the standard go-kit caller-friendly format. Components take a
// log.Logger through their constructor rather than reaching for a
// package-level singleton; this is only the default callers wire in.
func NewLogger() log.Logger {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	return log.With(logger, "ts", log.DefaultTimestampUTC)
}

// RateLimitedLogger wraps a log.Logger so that no more than logsPerSecond
// log lines pass through per second; callers beyond that rate are dropped
// silently but counted, via Suppressed.
type RateLimitedLogger struct {
	limiter    *rate.Limiter
	logger     log.Logger
	suppressed atomic.Int64
}

// NewRateLimitedLogger builds a RateLimitedLogger allowing up to
// logsPerSecond lines per second with a burst of one.
func NewRateLimitedLogger(logsPerSecond int, logger log.Logger) *RateLimitedLogger {
	return &RateLimitedLogger{
		limiter: rate.NewLimiter(rate.Limit(logsPerSecond), 1),
		logger:  logger,
	}
}

// Log emits keyvals through the wrapped logger if the rate limit allows it;
// otherwise it increments the suppressed counter and returns nil.
func (l *RateLimitedLogger) Log(keyvals ...interface{}) error {
	if !l.limiter.AllowN(time.Now(), 1) {
		l.suppressed.Inc()
		return nil
	}

	return l.logger.Log(keyvals...)
}

// Suppressed returns the number of log lines dropped by the rate limiter
// since construction.
func (l *RateLimitedLogger) Suppressed() int64 {
	return l.suppressed.Load()
}

// Error returns the level.Error-wrapped form of logger. (The engine wraps
// its rate-limited per-record failure line with level.Warn, not this.)
func Error(logger log.Logger) log.Logger {
	return level.Error(logger)
}
