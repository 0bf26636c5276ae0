package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/cristalhq/hedgedhttp"

	"github.com/mdfalcon104/survey-response-sync/model"
	"github.com/mdfalcon104/survey-response-sync/syncerr"
)

// uploadPayload is the wire shape POSTed for each response record. The
// engine never inspects AnswersJSON; it is forwarded verbatim.
type uploadPayload struct {
	ID          string   `json:"id"`
	FarmerID    string   `json:"farmer_id"`
	CreatedAt   int64    `json:"created_at"`
	AnswersJSON string   `json:"answers_json"`
	MediaPaths  []string `json:"media_paths"`
}

// HTTPUploader is a reference Uploader that POSTs each record as JSON to a
// fixed endpoint. It hedges requests with cristalhq/hedgedhttp so a single
// slow attempt doesn't stall the drain; the engine itself applies no
// upload-level timeout (spec §5), so bounding tail latency is this
// collaborator's job, not the engine's.
type HTTPUploader struct {
	endpoint string
	client   *http.Client
}

// NewHTTPUploader builds an HTTPUploader against endpoint. perAttemptTimeout
// bounds each hedged attempt; upto is the maximum number of concurrent
// hedged attempts per request.
func NewHTTPUploader(endpoint string, perAttemptTimeout time.Duration, upto int) (*HTTPUploader, error) {
	base := &http.Client{Timeout: perAttemptTimeout}

	hedged, err := hedgedhttp.NewClient(perAttemptTimeout, upto, base)
	if err != nil {
		return nil, fmt.Errorf("build hedged http client: %w", err)
	}

	return &HTTPUploader{endpoint: endpoint, client: hedged}, nil
}

// Upload implements Uploader.
func (u *HTTPUploader) Upload(ctx context.Context, record *model.ResponseRecord) *syncerr.Error {
	body, err := json.Marshal(uploadPayload{
		ID:          record.ID,
		FarmerID:    record.FarmerID,
		CreatedAt:   record.CreatedAt,
		AnswersJSON: record.AnswersJSON,
		MediaPaths:  record.MediaPaths,
	})
	if err != nil {
		return syncerr.NewSerialization(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint, bytes.NewReader(body))
	if err != nil {
		return syncerr.NewUnknown(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := u.client.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return syncerr.NewServerError(resp.StatusCode, string(msg))
	}

	return nil
}

func classifyTransportError(err error) *syncerr.Error {
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return syncerr.NewTimeout()
	}

	var opErr *net.OpError
	if asOpError(err, &opErr) {
		return syncerr.NewNoInternet()
	}

	return syncerr.NewUnknown(err)
}

func asOpError(err error, target **net.OpError) bool {
	for err != nil {
		if opErr, ok := err.(*net.OpError); ok {
			*target = opErr
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}
