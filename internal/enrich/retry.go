// Package enrich – RetryController
//
// RetryController settles a single organization: it calls the endpoint,
// backs off BaseDelay * 2^n between attempts, mirrors the attempt counter in
// the Store for display, and after MaxRetries retries gives up with a
// synthesized record. Resolve always returns a complete record; what varies
// is whether it came from the endpoint (StateSuccess) or from Synthesize
// (StateExhaustedFallback).
//
// The local attempt counter drives the machine. The Store copy is written for
// readers only and is removed once a fetch for the URL succeeds.
package enrich

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-org-enricher/internal/domain"
	"github.com/tbourn/go-org-enricher/internal/metadata"
)

// Retry defaults.
const (
	DefaultMaxRetries = 2
	DefaultBaseDelay  = time.Second
)

// State is a step of the per-organization retry state machine.
type State int

const (
	StateIdle State = iota
	StateRequesting
	StateRetrying
	StateSuccess
	StateExhaustedFallback
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequesting:
		return "requesting"
	case StateRetrying:
		return "retrying"
	case StateSuccess:
		return "success"
	case StateExhaustedFallback:
		return "exhausted_fallback"
	}
	return "unknown"
}

// Fetcher retrieves a record from the metadata endpoint.
// *EndpointClient satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (domain.Metadata, error)
}

// Outcome is the settled result of one Resolve call. Record is always
// complete; State is StateSuccess or StateExhaustedFallback.
type Outcome struct {
	Record   domain.Metadata
	State    State
	Attempts int
	// Err is the last failure seen, nil on success.
	Err error
}

// RetryController resolves one organization's metadata with bounded
// exponential backoff, falling back to a synthesized record.
//
// Fields:
//   - Fetcher: endpoint access, usually *EndpointClient.
//   - Store: receives the mirrored retry counter; records are written by the
//     Scheduler, not here.
//   - MaxRetries: retries after the first attempt (default 2, so 3 calls).
//   - BaseDelay: first backoff; each further retry doubles it.
type RetryController struct {
	Fetcher    Fetcher
	Store      *Store
	MaxRetries int
	BaseDelay  time.Duration

	// Sleep waits d or until ctx is done. Tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnTransition, when set, observes every state change.
	OnTransition func(orgID string, from, to State)
}

// NewRetryController returns a controller with the default policy.
func NewRetryController(f Fetcher, st *Store) *RetryController {
	return &RetryController{
		Fetcher:    f,
		Store:      st,
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  DefaultBaseDelay,
		Sleep:      SleepContext,
	}
}

// SleepContext blocks for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Resolve runs Idle → Requesting → {Success | Retrying → Requesting |
// ExhaustedFallback} for org. The backoff before retry n (0-based) is
// BaseDelay * 2^n. Endpoint rejections of the URL itself and context
// cancellation end the machine without further retries.
func (rc *RetryController) Resolve(ctx context.Context, org domain.Organization) Outcome {
	var (
		state   = StateIdle
		out     Outcome
		retries int
		lastErr error
	)
	raw := org.Website
	move := func(to State) {
		if rc.OnTransition != nil {
			rc.OnTransition(org.ID, state, to)
		}
		state = to
	}

	for {
		switch state {
		case StateIdle:
			if _, err := metadata.Normalize(raw); err != nil {
				lastErr = err
				move(StateExhaustedFallback)
				continue
			}
			move(StateRequesting)

		case StateRequesting:
			out.Attempts++
			rec, err := rc.Fetcher.Fetch(ctx, raw)
			if err == nil {
				rc.mirror(raw, 0)
				out.Record = rec
				move(StateSuccess)
				continue
			}
			lastErr = err
			log.Debug().Err(err).Str("org_id", org.ID).Str("url", raw).Int("attempt", out.Attempts).Msg("metadata request failed")
			switch {
			case IsTerminal(err), ctx.Err() != nil:
				move(StateExhaustedFallback)
			case retries < rc.MaxRetries:
				move(StateRetrying)
			default:
				move(StateExhaustedFallback)
			}

		case StateRetrying:
			delay := rc.BaseDelay << retries
			retries++
			rc.mirror(raw, retries)
			if err := rc.sleep(ctx, delay); err != nil {
				lastErr = err
				move(StateExhaustedFallback)
				continue
			}
			move(StateRequesting)

		case StateSuccess:
			out.State = StateSuccess
			return out

		case StateExhaustedFallback:
			out.State = StateExhaustedFallback
			out.Err = lastErr
			out.Record = metadata.Synthesize(raw, org.OrgName)
			out.Record.ErrorNote = failureNote(lastErr)
			log.Warn().Err(lastErr).Str("org_id", org.ID).Str("url", raw).Int("attempts", out.Attempts).Msg("metadata enrichment fell back")
			return out
		}
	}
}

func (rc *RetryController) sleep(ctx context.Context, d time.Duration) error {
	if rc.Sleep != nil {
		return rc.Sleep(ctx, d)
	}
	return SleepContext(ctx, d)
}

func (rc *RetryController) mirror(raw string, n int) {
	if rc.Store != nil {
		rc.Store.SetRetryCount(raw, n)
	}
}

func failureNote(err error) string {
	var me *metadata.Error
	switch {
	case errors.As(err, &me):
		return me.Note()
	case IsTerminal(err):
		return "Website URL is not valid"
	case errors.Is(err, context.DeadlineExceeded):
		return "Metadata request timed out"
	}
	return "Metadata could not be loaded"
}
