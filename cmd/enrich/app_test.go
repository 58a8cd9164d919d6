package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-org-enricher/internal/config"
	"github.com/tbourn/go-org-enricher/internal/domain"
	"github.com/tbourn/go-org-enricher/internal/repo"
)

func newEnrichDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:enrich_cli_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// metadataServer answers like GET /metadata; "down.org" always fails with 503.
func metadataServer(t *testing.T, downHits *int32) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.URL.Query().Get("url")
		w.Header().Set("Content-Type", "application/json")
		if raw == "down.org" {
			atomic.AddInt32(downHits, 1)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":"unavailable"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(domain.Metadata{
			Title:       "Title of " + raw,
			Description: "About " + raw,
			Image:       "https://" + raw + "/og.png",
			Favicon:     "https://" + raw + "/favicon.ico",
			SourceURL:   "https://" + raw,
			Domain:      raw,
		})
	}))
	t.Cleanup(ts.Close)
	return ts
}

func testCfg(endpoint string) config.Config {
	return config.Config{Enrich: config.EnrichConfig{
		Endpoint:      endpoint,
		ClientTimeout: 2 * time.Second,
		MaxRetries:    2,
		RetryBase:     time.Millisecond,
		BatchSize:     3,
		BatchDelay:    0,
		StatusTTL:     time.Minute,
	}}
}

func decodeLines(t *testing.T, buf *bytes.Buffer) map[string]line {
	t.Helper()
	out := map[string]line{}
	sc := bufio.NewScanner(buf)
	for sc.Scan() {
		var l line
		if err := json.Unmarshal(sc.Bytes(), &l); err != nil {
			t.Fatalf("bad line %q: %v", sc.Text(), err)
		}
		out[l.OrgID] = l
	}
	return out
}

func seed(t *testing.T, db *gorm.DB, name, website string) domain.Organization {
	t.Helper()
	o, err := repo.CreateOrganization(context.Background(), db, name, website, domain.StatusApproved)
	if err != nil {
		t.Fatalf("seed %s: %v", name, err)
	}
	return *o
}

func TestSweepOnce_EmitsSettledOrganizations(t *testing.T) {
	var downHits int32
	ts := metadataServer(t, &downHits)
	db := newEnrichDB(t)

	live := seed(t, db, "350.org", "350.org")
	down := seed(t, db, "Down Org", "down.org")
	none := seed(t, db, "No Site", "")

	var buf bytes.Buffer
	a, err := newApp(testCfg(ts.URL+"/metadata"), db, &buf)
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	if err := a.sweepOnce(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	lines := decodeLines(t, &buf)
	if len(lines) != 2 {
		t.Fatalf("lines = %d; want 2 (%v)", len(lines), lines)
	}
	if l := lines[live.ID]; l.Fallback || l.Metadata.Title != "Title of 350.org" {
		t.Fatalf("unexpected ok line: %+v", l)
	}
	if l := lines[down.ID]; !l.Fallback || l.Metadata.Domain != "down.org" || l.Metadata.ErrorNote == "" {
		t.Fatalf("unexpected fallback line: %+v", l)
	}
	if _, present := lines[none.ID]; present {
		t.Fatalf("organization without website must not be emitted")
	}
	if got := atomic.LoadInt32(&downHits); got != 3 {
		t.Fatalf("down.org requests = %d; want 3 (1 + 2 retries)", got)
	}

	// A second pass has nothing left to claim.
	buf.Reset()
	if err := a.sweepOnce(context.Background()); err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("second sweep emitted %q", buf.String())
	}
}

func TestRefresh_ReResolvesOneOrganization(t *testing.T) {
	var downHits int32
	ts := metadataServer(t, &downHits)
	db := newEnrichDB(t)
	org := seed(t, db, "Sunrise", "sunrisemovement.org")
	bare := seed(t, db, "Bare", "")

	var buf bytes.Buffer
	a, err := newApp(testCfg(ts.URL+"/metadata"), db, &buf)
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}

	if err := a.refresh(context.Background(), org.ID); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	lines := decodeLines(t, &buf)
	if l := lines[org.ID]; l.Metadata.Domain != "sunrisemovement.org" {
		t.Fatalf("unexpected refresh line: %+v", l)
	}

	if err := a.refresh(context.Background(), uuid.NewString()); err == nil {
		t.Fatalf("unknown organization must fail")
	}
	if err := a.refresh(context.Background(), bare.ID); err == nil {
		t.Fatalf("organization without website must fail")
	}
}

func TestSweepLoop_StopsOnCancel(t *testing.T) {
	var downHits int32
	ts := metadataServer(t, &downHits)
	db := newEnrichDB(t)
	seed(t, db, "350.org", "350.org")

	a, err := newApp(testCfg(ts.URL+"/metadata"), db, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	time.AfterFunc(50*time.Millisecond, cancel)
	if err := a.sweepLoop(ctx, 10*time.Millisecond); err != nil {
		t.Fatalf("sweepLoop: %v", err)
	}
}

func TestNewApp_BadEndpoint(t *testing.T) {
	if _, err := newApp(testCfg("not-absolute"), newEnrichDB(t), &bytes.Buffer{}); err == nil {
		t.Fatalf("expected endpoint error")
	}
}

func TestBootstrap_ReleasesDatabaseOnWiringError(t *testing.T) {
	t.Setenv("DB_PATH", filepath.Join(t.TempDir(), "enrich.db"))
	t.Setenv("ENRICH_ENDPOINT", "not-absolute")
	t.Setenv("OTEL_ENABLED", "false")

	var opened *gorm.DB
	orig := openDB
	t.Cleanup(func() { openDB = orig })
	openDB = func(path string) (*gorm.DB, error) {
		db, err := orig(path)
		opened = db
		return db, err
	}

	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	a, cleanup, err := bootstrap(cmd, false)
	if err == nil || a != nil || cleanup != nil {
		t.Fatalf("bootstrap = (%v, cleanup set=%v, %v); want error", a, cleanup != nil, err)
	}
	if opened == nil {
		t.Fatalf("database was never opened")
	}
	sqlDB, _ := opened.DB()
	if err := sqlDB.Ping(); err == nil {
		t.Fatalf("database left open after failed bootstrap")
	}
}

func TestParseInterval(t *testing.T) {
	if d, err := parseInterval("1m"); err != nil || d != time.Minute {
		t.Fatalf("parseInterval(1m) = (%v, %v)", d, err)
	}
	for _, bad := range []string{"soon", "-1s"} {
		if _, err := parseInterval(bad); err == nil {
			t.Fatalf("parseInterval(%q) must fail", bad)
		}
	}
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"sweep", "refresh"} {
		if c, _, err := root.Find([]string{name}); err != nil || c.Name() != name {
			t.Fatalf("subcommand %s missing: %v", name, err)
		}
	}
	if root.PersistentFlags().Lookup("verbose") == nil {
		t.Fatalf("verbose flag missing")
	}
}
