package repo

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-lab-backend/internal/domain"
)

func newIdemDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()
	// Use a unique in-memory database per test to avoid schema leakage across tests.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func ensureUniqueIndex(t *testing.T, db *gorm.DB) {
	t.Helper()
	// Ensure uniqueness on (link_id, key) so the duplicate path is guaranteed.
	db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS ux_link_key ON idempotency(link_id, key)`)
}

func TestGetIdempotency_NoLinkID_ReturnsNotFound(t *testing.T) {
	db := newIdemDB(t, &domain.Idempotency{})
	now := time.Now().UTC()

	rec, err := GetIdempotency(context.Background(), db, "   ", "k1", now)
	if rec != nil || err != ErrNotFound {
		t.Fatalf("expected (nil, ErrNotFound) for empty linkID, got (%v, %v)", rec, err)
	}
}

func TestGetIdempotency_ExpiredOrMissing_ReturnsNotFound(t *testing.T) {
	db := newIdemDB(t, &domain.Idempotency{})
	now := time.Now().UTC()

	// Missing record
	rec, err := GetIdempotency(context.Background(), db, "L1", "missing", now)
	if rec != nil || !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing: expected ErrNotFound, got (%v, %v)", rec, err)
	}

	// Expired record
	old := &domain.Idempotency{
		ID: "i1", LinkID: "L1", Key: "k-old", Operation: "refresh", Status: 200,
		CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour),
	}
	if err := db.Create(old).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	rec, err = GetIdempotency(context.Background(), db, "L1", "k-old", now)
	if rec != nil || !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired: expected ErrNotFound, got (%v, %v)", rec, err)
	}
}

func TestCreateThenGetIdempotency_RoundTrip(t *testing.T) {
	db := newIdemDB(t, &domain.Idempotency{})
	now := time.Now().UTC()

	created, err := CreateIdempotency(context.Background(), db, "L1", "k1", "verify", 200, time.Hour)
	if err != nil {
		t.Fatalf("CreateIdempotency: %v", err)
	}
	if created.LinkID != "L1" || created.Key != "k1" || created.Operation != "verify" || created.Status != 200 {
		t.Fatalf("created = %+v", created)
	}
	if !created.ExpiresAt.After(now) {
		t.Fatalf("ExpiresAt not in the future: %v", created.ExpiresAt)
	}

	got, err := GetIdempotency(context.Background(), db, "L1", "k1", now)
	if err != nil {
		t.Fatalf("GetIdempotency: %v", err)
	}
	if got.ID != created.ID {
		t.Fatalf("got = %+v, want id %s", got, created.ID)
	}
}

func TestGetIdempotency_ScopedByLink(t *testing.T) {
	db := newIdemDB(t, &domain.Idempotency{})
	now := time.Now().UTC()

	if _, err := CreateIdempotency(context.Background(), db, "L1", "k1", "refresh", 200, time.Hour); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// Same key under a different link is a different record.
	rec, err := GetIdempotency(context.Background(), db, "L2", "k1", now)
	if rec != nil || !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-link lookup: (%v, %v)", rec, err)
	}
}

func TestCreateIdempotency_DuplicateTuple(t *testing.T) {
	db := newIdemDB(t, &domain.Idempotency{})
	ensureUniqueIndex(t, db)

	if _, err := CreateIdempotency(context.Background(), db, "L1", "k1", "refresh", 200, time.Hour); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := CreateIdempotency(context.Background(), db, "L1", "k1", "refresh", 200, time.Hour)
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("second create err = %v, want ErrDuplicate", err)
	}

	// Same key, different link: allowed.
	if _, err := CreateIdempotency(context.Background(), db, "L2", "k1", "refresh", 200, time.Hour); err != nil {
		t.Fatalf("different link create: %v", err)
	}
}

func TestCreateIdempotency_OtherErrorPropagates(t *testing.T) {
	db := newIdemDB(t /* no migrations */)
	_, err := CreateIdempotency(context.Background(), db, "L1", "k1", "refresh", 200, time.Hour)
	if err == nil || errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected raw DB error, got %v", err)
	}
}
