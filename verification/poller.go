package verification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ipcollateral/lending-services/constants"
	"github.com/ipcollateral/lending-services/models/lending"
	"github.com/op/go-logging"
)

// PollerConfig holds the settings for a Poller. A MaxAttempts below one
// or a negative Interval falls back to the defaults in the constants
// package. An Interval of zero retries immediately.
type PollerConfig struct {
	MaxAttempts int
	Interval    time.Duration
	Source      StatusSource
	Analyzer    Analyzer
	Now         func() time.Time
	Logger      *logging.Logger
}

// Poller queries a StatusSource until a request reaches a terminal
// status or the attempt budget runs out.
type Poller struct {
	maxAttempts int
	interval    time.Duration
	source      StatusSource
	analyzer    Analyzer
	now         func() time.Time
	logger      *logging.Logger
}

// NewPoller returns a Poller. It panics if config has no Source.
func NewPoller(config PollerConfig) *Poller {
	if config.Source == nil {
		panic("verification: PollerConfig.Source is required")
	}
	poller := &Poller{
		maxAttempts: config.MaxAttempts,
		interval:    config.Interval,
		source:      config.Source,
		analyzer:    config.Analyzer,
		now:         config.Now,
		logger:      config.Logger,
	}
	if poller.maxAttempts <= 0 {
		poller.maxAttempts = constants.DefaultPollAttempts
	}
	if poller.interval < 0 {
		poller.interval = constants.DefaultPollInterval
	}
	if poller.analyzer == nil {
		poller.analyzer = InfringementAnalyzer{}
	}
	if poller.now == nil {
		poller.now = time.Now
	}
	if poller.logger == nil {
		poller.logger = logging.MustGetLogger("verification")
	}
	return poller
}

// MaxAttempts returns the number of queries Poll will make at most.
func (p *Poller) MaxAttempts() int {
	return p.maxAttempts
}

// Poll returns the verdict for requestID. It never returns an error.
// Query failures are retried, and if no terminal status shows up
// within the attempt budget, Poll returns the indeterminate Fallback.
//
// If ctx is cancelled, Poll stops at the next query or wait and
// returns the Fallback. Callers should check ctx.Err() and discard
// that result.
func (p *Poller) Poll(ctx context.Context, requestID string) *lending.VerificationResult {
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if ctx.Err() != nil {
			p.logger.Infof("Polling for %s cancelled before attempt %d", requestID, attempt)
			return Fallback(requestID, p.now())
		}
		resp, err := p.query(ctx, requestID)
		if err != nil {
			p.logger.Warningf("Status query %d/%d for %s failed: %v",
				attempt, p.maxAttempts, requestID, err)
		} else if resp.IsTerminal() {
			p.logger.Infof("Request %s reached status %s after %d queries",
				requestID, resp.Infringements.Status, attempt)
			return p.analyzer.Analyze(resp, p.now())
		} else {
			p.logger.Debugf("Request %s still %s after query %d/%d",
				requestID, resp.Infringements.Status, attempt, p.maxAttempts)
		}
		if attempt < p.maxAttempts && !p.wait(ctx) {
			p.logger.Infof("Polling for %s cancelled after attempt %d", requestID, attempt)
			return Fallback(requestID, p.now())
		}
	}
	p.logger.Warningf("Request %s did not complete after %d queries", requestID, p.maxAttempts)
	return Fallback(requestID, p.now())
}

// query fetches the status and rejects responses we can't interpret.
func (p *Poller) query(ctx context.Context, requestID string) (*lending.StatusResponse, error) {
	resp, err := p.source.FetchStatus(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, fmt.Errorf("%w: empty response", ErrMalformedResponse)
	}
	if !resp.IsRecognized() {
		return nil, fmt.Errorf("%w: unknown status '%s'", ErrMalformedResponse,
			resp.Infringements.Status)
	}
	if resp.ID == "" {
		resp.ID = requestID
	} else if !strings.EqualFold(resp.ID, requestID) {
		return nil, fmt.Errorf("%w: asked for %s, got %s", ErrMalformedResponse,
			requestID, resp.ID)
	}
	resp.ID = requestID
	return resp, nil
}

// wait sleeps for the poll interval. It returns false if ctx was
// cancelled first.
func (p *Poller) wait(ctx context.Context) bool {
	if p.interval == 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(p.interval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
