package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/tbourn/go-org-enricher/internal/config"
	"github.com/tbourn/go-org-enricher/internal/domain"
	"github.com/tbourn/go-org-enricher/internal/enrich"
	"github.com/tbourn/go-org-enricher/internal/observability"
	"github.com/tbourn/go-org-enricher/internal/repo"
	"github.com/tbourn/go-org-enricher/internal/services"
	"github.com/tbourn/go-org-enricher/internal/sysutil"
)

// app is the wired enrichment pipeline for one process.
type app struct {
	orgs  *services.OrganizationService
	store *enrich.Store
	sched *enrich.Scheduler
	out   *json.Encoder
}

// line is one settled organization on stdout.
type line struct {
	OrgID    string          `json:"org_id"`
	Metadata domain.Metadata `json:"metadata"`
	Fallback bool            `json:"fallback"`
}

// openDB is replaced in tests.
var openDB = repo.OpenSQLite

func resolvedVersion() string { return sysutil.ResolveVersion(version) }

func parseInterval(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid --interval %q", s)
	}
	return d, nil
}

// bootstrap loads configuration, logging, tracing and the database, and
// returns the wired app with a cleanup func.
func bootstrap(cmd *cobra.Command, verbose bool) (*app, func(), error) {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	sysutil.InitLogger(level, cfg.LogPretty, observability.ComponentEnrich)

	shutdownOTel, err := observability.SetupOTel(cmd.Context(), cfg.OTEL, resolvedVersion(), observability.ComponentEnrich)
	if err != nil {
		return nil, nil, fmt.Errorf("otel setup: %w", err)
	}
	db, err := openDB(cfg.DBPath)
	if err != nil {
		_ = shutdownOTel(context.Background())
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(ctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}

	if err := repo.UseTracing(db); err != nil {
		log.Warn().Err(err).Msg("gorm tracing disabled")
	}
	if err := repo.AutoMigrate(db); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	a, err := newApp(cfg, db, cmd.OutOrStdout())
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return a, cleanup, nil
}

// newApp wires client, retry controller, store and scheduler from cfg.Enrich.
func newApp(cfg config.Config, db *gorm.DB, out io.Writer) (*app, error) {
	client, err := enrich.NewEndpointClient(cfg.Enrich.Endpoint, cfg.Enrich.ClientTimeout, nil)
	if err != nil {
		return nil, err
	}
	store := enrich.NewStore(enrich.WithStatusTTL(cfg.Enrich.StatusTTL))

	rc := enrich.NewRetryController(client, store)
	rc.MaxRetries = cfg.Enrich.MaxRetries
	rc.BaseDelay = cfg.Enrich.RetryBase
	rc.OnTransition = func(orgID string, from, to enrich.State) {
		log.Debug().Str("org_id", orgID).Stringer("from", from).Stringer("to", to).Msg("enrichment transition")
	}

	sched := enrich.NewScheduler(store, rc)
	sched.BatchSize = cfg.Enrich.BatchSize
	sched.BatchDelay = cfg.Enrich.BatchDelay

	a := &app{
		orgs:  services.NewOrganizationService(db, repo.Organizations{}),
		store: store,
		sched: sched,
		out:   json.NewEncoder(out),
	}
	sched.OnBatch = a.onBatch
	return a, nil
}

func (a *app) onBatch(r enrich.BatchReport) {
	log.Info().
		Int("group", r.Index+1).
		Int("groups", r.Groups).
		Int("loaded", r.Progress.Loaded).
		Int("total", r.Progress.TotalWithWebsite).
		Int("percent", r.Progress.Percentage).
		Msg("enrichment progress")
	for _, id := range r.OrgIDs {
		a.emit(id)
	}
}

func (a *app) emit(orgID string) {
	rec, ok := a.store.Get(orgID)
	if !ok {
		return
	}
	if err := a.out.Encode(line{OrgID: orgID, Metadata: rec, Fallback: rec.IsFallback()}); err != nil {
		log.Error().Err(err).Str("org_id", orgID).Msg("write result")
	}
}

// sweepOnce reconciles the current directory contents.
func (a *app) sweepOnce(ctx context.Context) error {
	orgs, err := a.orgs.List(ctx)
	if err != nil {
		return fmt.Errorf("list organizations: %w", err)
	}
	if err := a.sched.Reconcile(ctx, orgs); err != nil {
		return err
	}
	a.logStatus()
	return nil
}

// sweepLoop runs sweepOnce, then again every interval until ctx is done. A
// zero interval runs once. Interruption is a clean exit.
func (a *app) sweepLoop(ctx context.Context, interval time.Duration) error {
	err := a.sweepOnce(ctx)
	if interval <= 0 || err != nil {
		return ignoreCanceled(err)
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if ctx.Err() != nil {
				return nil
			}
			if err := a.sweepOnce(ctx); err != nil {
				return ignoreCanceled(err)
			}
		}
	}
}

// refresh re-resolves one organization by id and prints its record.
func (a *app) refresh(ctx context.Context, orgID string) error {
	org, err := a.orgs.Get(ctx, orgID)
	if err != nil {
		return fmt.Errorf("organization %s: %w", orgID, err)
	}
	if !org.HasWebsite() {
		return fmt.Errorf("organization %s has no website", orgID)
	}
	if _, err := a.sched.Refresh(ctx, *org); err != nil {
		return ignoreCanceled(err)
	}
	a.emit(org.ID)
	a.logStatus()
	return nil
}

func (a *app) logStatus() {
	if msg, ok := a.store.Status(); ok {
		log.Warn().Msg(msg)
	}
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
