// Package enrich – Scheduler
//
// The Scheduler turns an organization list into sweeps. A sweep claims every
// candidate (website present, no record, not already loading) in one Store
// operation, splits them into consecutive groups of BatchSize, runs each
// group concurrently and waits BatchDelay between groups. Results are written
// as each task settles, so progress moves within a group.
//
// Sweeps are idempotent: running Reconcile twice over the same list claims
// nothing the second time. Manual Refresh bumps the organization's
// generation, so a sweep result that lands afterwards is discarded.
//
// Cancellation stops dispatch, drops results of unfinished tasks, clears their
// loading flags and leaves AggregateSweepMessage as the status.
package enrich

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/tbourn/go-org-enricher/internal/domain"
	"github.com/tbourn/go-org-enricher/internal/metadata"
)

// Batch defaults.
const (
	DefaultBatchSize  = 3
	DefaultBatchDelay = 500 * time.Millisecond
)

// Resolver settles one organization. *RetryController satisfies it.
type Resolver interface {
	Resolve(ctx context.Context, org domain.Organization) Outcome
}

// BatchReport is passed to OnBatch after each group settles.
type BatchReport struct {
	Index    int // 0-based group index
	Groups   int
	OrgIDs   []string
	Progress Progress
}

// Scheduler runs enrichment sweeps over an organization list.
//
// Fields:
//   - Store: shared state; the Scheduler is its only writer of records.
//   - Resolver: settles one organization, usually *RetryController.
//   - BatchSize: group size (default 3).
//   - BatchDelay: pause between groups (default 500ms), none after the last.
type Scheduler struct {
	Store      *Store
	Resolver   Resolver
	BatchSize  int
	BatchDelay time.Duration

	// Sleep waits between groups. Tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnBatch observes progress after every group.
	OnBatch func(BatchReport)
}

// NewScheduler returns a scheduler with the default batch policy.
func NewScheduler(st *Store, r Resolver) *Scheduler {
	return &Scheduler{
		Store:      st,
		Resolver:   r,
		BatchSize:  DefaultBatchSize,
		BatchDelay: DefaultBatchDelay,
		Sleep:      SleepContext,
	}
}

// Plan partitions tasks into consecutive groups of at most size.
func Plan(tasks []Task, size int) [][]Task {
	if size < 1 {
		size = 1
	}
	plan := make([][]Task, 0, (len(tasks)+size-1)/size)
	for start := 0; start < len(tasks); start += size {
		end := min(start+size, len(tasks))
		plan = append(plan, tasks[start:end])
	}
	return plan
}

// Reconcile runs one idempotent sweep over orgs. Candidates are claimed
// atomically, grouped, and processed group by group: members of a group run
// concurrently, each outcome is written as it settles, and the next group
// starts only after the whole group has settled and BatchDelay has elapsed.
//
// Per-organization failures never fail the sweep. A non-nil error is always
// a *SweepError, returned after the loading flags of every unfinished
// candidate have been cleared.
func (s *Scheduler) Reconcile(ctx context.Context, orgs []domain.Organization) (err error) {
	tasks := s.Store.Claim(orgs)
	if len(tasks) == 0 {
		return nil
	}

	ctx, span := otel.Tracer("enrich/Scheduler").Start(ctx, "Reconcile")
	span.SetAttributes(attribute.Int("enrich.candidates", len(tasks)))
	defer span.End()

	plan := Plan(tasks, s.BatchSize)
	log.Info().Int("candidates", len(tasks)).Int("groups", len(plan)).Msg("enrichment sweep started")

	defer func() {
		if r := recover(); r != nil {
			err = s.abort(tasks, fmt.Errorf("panic: %v", r))
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	for i, group := range plan {
		if i > 0 {
			if serr := s.sleep(ctx, s.BatchDelay); serr != nil {
				return s.abort(tasks, serr)
			}
		}
		if cerr := ctx.Err(); cerr != nil {
			return s.abort(tasks, cerr)
		}
		s.runGroup(ctx, group)
		if cerr := ctx.Err(); cerr != nil {
			return s.abort(tasks, cerr)
		}
		if s.OnBatch != nil {
			ids := make([]string, len(group))
			for j, t := range group {
				ids[j] = t.Org.ID
			}
			s.OnBatch(BatchReport{Index: i, Groups: len(plan), OrgIDs: ids, Progress: s.Store.Progress(orgs)})
		}
	}
	log.Info().Int("candidates", len(tasks)).Msg("enrichment sweep finished")
	return nil
}

// runGroup dispatches every member concurrently and waits for all of them.
// Members never return errors to the group: each one is isolated.
func (s *Scheduler) runGroup(ctx context.Context, group []Task) {
	var g errgroup.Group
	for _, t := range group {
		g.Go(func() error {
			s.runTask(ctx, t)
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Scheduler) runTask(ctx context.Context, t Task) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("org_id", t.Org.ID).Msg("enrichment task panicked")
			rec := metadata.Synthesize(t.Org.Website, t.Org.OrgName)
			rec.ErrorNote = "Metadata could not be loaded"
			s.Store.Settle(t.Org.ID, t.Gen, rec)
			s.Store.SetStatus(fmt.Sprintf("Failed to load website metadata for %s", displayName(t.Org)))
		}
	}()

	out := s.Resolver.Resolve(ctx, t.Org)
	if ctx.Err() != nil {
		// Abandoned: leave the flag for abort to clear.
		return
	}
	if !s.Store.Settle(t.Org.ID, t.Gen, out.Record) {
		log.Debug().Str("org_id", t.Org.ID).Msg("dropping superseded enrichment result")
		return
	}
	if out.State == StateExhaustedFallback {
		s.Store.SetStatus(fmt.Sprintf("Failed to load website metadata for %s", displayName(t.Org)))
	}
}

// abort clears the loading flags still owned by tasks and publishes the
// aggregate status message.
func (s *Scheduler) abort(tasks []Task, cause error) error {
	n := 0
	for _, t := range tasks {
		if s.Store.Abandon(t.Org.ID, t.Gen) {
			n++
		}
	}
	s.Store.SetStatus(AggregateSweepMessage)
	log.Error().Err(cause).Int("abandoned", n).Msg("enrichment sweep aborted")
	return &SweepError{Cause: cause, Abandoned: n}
}

// Refresh discards orgID's record and resolves it again outside any sweep.
// A sweep still working on the same organization loses: its completion
// carries an older generation and is dropped.
//
// Errors:
//   - *SweepError when ctx ends before the organization settles or the
//     resolver panics; the loading flag is already cleared
func (s *Scheduler) Refresh(ctx context.Context, org domain.Organization) (out Outcome, err error) {
	gen := s.Store.Restart(org.ID)
	if !org.HasWebsite() {
		s.Store.Abandon(org.ID, gen)
		return Outcome{}, nil
	}
	defer func() {
		if r := recover(); r != nil {
			s.Store.Abandon(org.ID, gen)
			s.Store.SetStatus(AggregateSweepMessage)
			err = &SweepError{Cause: fmt.Errorf("panic: %v", r), Abandoned: 1}
		}
	}()

	out = s.Resolver.Resolve(ctx, org)
	if cerr := ctx.Err(); cerr != nil {
		s.Store.Abandon(org.ID, gen)
		return out, &SweepError{Cause: cerr, Abandoned: 1}
	}
	s.Store.Settle(org.ID, gen, out.Record)
	if out.State == StateExhaustedFallback {
		s.Store.SetStatus(fmt.Sprintf("Failed to load website metadata for %s", displayName(org)))
	}
	return out, nil
}

func (s *Scheduler) sleep(ctx context.Context, d time.Duration) error {
	if s.Sleep != nil {
		return s.Sleep(ctx, d)
	}
	return SleepContext(ctx, d)
}

func displayName(o domain.Organization) string {
	if o.OrgName != "" {
		return o.OrgName
	}
	return o.Website
}
