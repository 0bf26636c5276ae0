// Package upload defines the Uploader external collaborator (spec §4.3)
// and an HTTP reference implementation.
package upload

import (
	"context"

	"github.com/mdfalcon104/survey-response-sync/model"
	"github.com/mdfalcon104/survey-response-sync/syncerr"
)

// Uploader is the remote transport collaborator. Implementations must not
// mutate the record they're given, must be cancellable at suspension
// points, and are not required to be idempotent: the engine guarantees at
// most one concurrent in-flight run per device (spec §4.3).
type Uploader interface {
	Upload(ctx context.Context, record *model.ResponseRecord) *syncerr.Error
}

// Func adapts a plain function to the Uploader interface, the same
// function-as-interface convenience used throughout the corpus for small
// collaborator seams (e.g. http.HandlerFunc).
type Func func(ctx context.Context, record *model.ResponseRecord) *syncerr.Error

// Upload calls f.
func (f Func) Upload(ctx context.Context, record *model.ResponseRecord) *syncerr.Error {
	return f(ctx, record)
}
