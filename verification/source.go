package verification

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/ipcollateral/lending-services/constants"
	"github.com/ipcollateral/lending-services/models/lending"
)

// ErrMalformedResponse means the verification service answered, but
// not with anything we can interpret. The poller treats it like any
// other network failure.
var ErrMalformedResponse = errors.New("malformed verification status response")

// StatusSource returns the current status of a verification request.
type StatusSource interface {
	FetchStatus(ctx context.Context, requestID string) (*lending.StatusResponse, error)
}

// DemoSource answers every query with a completed status, so the
// registration flow can run end to end without the external service.
// The scenario depends only on the request id.
type DemoSource struct {
	now func() time.Time
}

// NewDemoSource returns a DemoSource. If now is nil, it uses time.Now.
func NewDemoSource(now func() time.Time) *DemoSource {
	if now == nil {
		now = time.Now
	}
	return &DemoSource{now: now}
}

// FetchStatus returns a completed status for requestID. Half of all
// ids come back clean and the rest carry one medium confidence brand
// match.
func (src *DemoSource) FetchStatus(ctx context.Context, requestID string) (*lending.StatusResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resp := &lending.StatusResponse{
		ID: requestID,
		Infringements: lending.Infringements{
			Status:      constants.RemoteStatusCompleted,
			LastUpdated: src.now().UTC().Format(time.RFC3339),
			InNetwork:   make([]lending.InNetworkInfringement, 0),
			External:    make([]lending.ExternalInfringement, 0),
		},
	}
	h := fnv.New32a()
	h.Write([]byte(requestID))
	if h.Sum32()%2 == 1 {
		resp.Infringements.External = append(resp.Infringements.External,
			lending.ExternalInfringement{
				BrandID:         "demo-brand",
				BrandName:       "Demo Brand",
				SimilarityScore: 0.65,
				Confidence:      0.7,
				ContentType:     "image",
			})
	}
	return resp, nil
}

// Register accepts any token and reports it as pending. It stands in
// for the verification service's registration endpoint in demo mode.
func (src *DemoSource) Register(ctx context.Context, token *lending.TokenRequest) (*lending.StatusResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &lending.StatusResponse{
		ID:        token.ID,
		CreatorID: token.CreatorID,
		Media:     token.Media,
		Infringements: lending.Infringements{
			Status:      constants.RemoteStatusPending,
			LastUpdated: src.now().UTC().Format(time.RFC3339),
			InNetwork:   make([]lending.InNetworkInfringement, 0),
			External:    make([]lending.ExternalInfringement, 0),
		},
	}, nil
}

// SequenceStep is one scripted answer from a SequenceSource. Exactly
// one of Response and Err should be set.
type SequenceStep struct {
	Response *lending.StatusResponse
	Err      error
}

// SequenceSource replays a fixed list of answers in order. Once the
// list is exhausted it keeps repeating the last step. It records how
// many queries it received.
type SequenceSource struct {
	steps []SequenceStep
	calls int
	mutex sync.Mutex
}

// NewSequenceSource returns a SequenceSource that replays steps.
func NewSequenceSource(steps ...SequenceStep) *SequenceSource {
	return &SequenceSource{steps: steps}
}

// FetchStatus returns the next scripted answer.
func (src *SequenceSource) FetchStatus(ctx context.Context, requestID string) (*lending.StatusResponse, error) {
	src.mutex.Lock()
	defer src.mutex.Unlock()
	index := src.calls
	src.calls++
	if len(src.steps) == 0 {
		return nil, fmt.Errorf("no status scripted for %s", requestID)
	}
	if index >= len(src.steps) {
		index = len(src.steps) - 1
	}
	step := src.steps[index]
	if step.Err != nil {
		return nil, step.Err
	}
	resp := *step.Response
	if resp.ID == "" {
		resp.ID = requestID
	}
	return &resp, nil
}

// Calls returns the number of queries received so far.
func (src *SequenceSource) Calls() int {
	src.mutex.Lock()
	defer src.mutex.Unlock()
	return src.calls
}

// StatusWithRemote returns a response carrying only a remote status.
// Useful for scripting a SequenceSource.
func StatusWithRemote(status string) *lending.StatusResponse {
	return &lending.StatusResponse{
		Infringements: lending.Infringements{Status: status},
	}
}
