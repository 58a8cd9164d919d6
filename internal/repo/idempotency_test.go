package repo

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-org-enricher/internal/domain"
)

const idemScope = domain.IdempotencyScopeCreateOrganization

func newIdemDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:idem_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.Idempotency{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestGetIdempotency_BlankKey_ReturnsNotFound(t *testing.T) {
	db := newIdemDB(t)
	rec, err := GetIdempotency(context.Background(), db, idemScope, "   ", time.Now().UTC())
	if rec != nil || !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected (nil, ErrNotFound), got (%v, %v)", rec, err)
	}
}

func TestIdempotency_CreateGet_ScopeAndExpiry(t *testing.T) {
	db := newIdemDB(t)
	ctx := context.Background()

	rec, err := CreateIdempotency(ctx, db, idemScope, "k1", "org-1", 201, time.Hour)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.ID == "" || rec.ResourceID != "org-1" || !rec.ExpiresAt.After(rec.CreatedAt) {
		t.Fatalf("unexpected record %+v", rec)
	}

	got, err := GetIdempotency(ctx, db, idemScope, "k1", time.Now().UTC())
	if err != nil || got.ResourceID != "org-1" || got.Status != 201 {
		t.Fatalf("get = (%+v, %v)", got, err)
	}

	if _, err := GetIdempotency(ctx, db, "other.scope", "k1", time.Now().UTC()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("other scope must miss, got %v", err)
	}
	if _, err := GetIdempotency(ctx, db, idemScope, "k1", time.Now().Add(2*time.Hour)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired record must miss, got %v", err)
	}
}

func TestCreateIdempotency_Duplicate(t *testing.T) {
	db := newIdemDB(t)
	ctx := context.Background()

	if _, err := CreateIdempotency(ctx, db, idemScope, "dup", "org-1", 201, time.Hour); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := CreateIdempotency(ctx, db, idemScope, "dup", "org-2", 201, time.Hour); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestCreateIdempotency_OtherError(t *testing.T) {
	db := newIdemDB(t)
	if err := db.Migrator().DropTable(&domain.Idempotency{}); err != nil {
		t.Fatalf("drop: %v", err)
	}
	_, err := CreateIdempotency(context.Background(), db, idemScope, "k", "o", 201, time.Hour)
	if err == nil || errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected raw db error, got %v", err)
	}
}

func TestPurgeExpiredIdempotency(t *testing.T) {
	db := newIdemDB(t)
	ctx := context.Background()

	if _, err := CreateIdempotency(ctx, db, idemScope, "old", "o1", 201, time.Millisecond); err != nil {
		t.Fatalf("create old: %v", err)
	}
	if _, err := CreateIdempotency(ctx, db, idemScope, "fresh", "o2", 201, time.Hour); err != nil {
		t.Fatalf("create fresh: %v", err)
	}
	n, err := PurgeExpiredIdempotency(ctx, db, time.Now().UTC().Add(time.Second))
	if err != nil || n != 1 {
		t.Fatalf("purge = (%d, %v); want (1, nil)", n, err)
	}
	if _, err := GetIdempotency(ctx, db, idemScope, "fresh", time.Now().UTC()); err != nil {
		t.Fatalf("fresh record must survive: %v", err)
	}
}
