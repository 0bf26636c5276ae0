// Package filesink defines the FileSink external collaborator (spec §4.6)
// and an os-backed implementation for locally captured media.
package filesink

import (
	"context"
	"errors"
	"os"

	"go.uber.org/multierr"
)

// FileSink performs best-effort batch deletion of media files. It must
// never fail the enclosing sync: callers only use the returned count, and
// per-file errors are opaque to the engine.
type FileSink interface {
	DeleteFiles(ctx context.Context, paths []string) int
}

// OSFileSink deletes files from the local filesystem with os.Remove.
type OSFileSink struct {
	// OnError, if set, receives the combined error from any files that
	// failed to delete, for logging. It is never surfaced to the engine.
	OnError func(err error)
}

// DeleteFiles implements FileSink. A path that no longer exists counts as
// successfully deleted: the desired end state (no file at that path) is
// already true.
func (s *OSFileSink) DeleteFiles(ctx context.Context, paths []string) int {
	var (
		deleted int
		errs    error
	)

	for _, p := range paths {
		if ctx.Err() != nil {
			break
		}

		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = multierr.Append(errs, err)
			continue
		}
		deleted++
	}

	if errs != nil && s.OnError != nil {
		s.OnError(errs)
	}

	return deleted
}
