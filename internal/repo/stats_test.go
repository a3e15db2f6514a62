package repo

import (
	"context"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-lab-backend/internal/domain"
)

func newTestDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()
	// Unique DB per test to avoid schema leaking across tests.
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

func TestDeviceTypesStats_CountError_NoTable(t *testing.T) {
	db := newTestDB(t /* no migrations */)
	_, _, err := DeviceTypesStats(context.Background(), db)
	if err == nil {
		t.Fatalf("expected error due to missing device_types table")
	}
}

func TestDeviceTypesStats_EmptyTable(t *testing.T) {
	db := newTestDB(t, &domain.DeviceType{})
	count, maxTS, err := DeviceTypesStats(context.Background(), db)
	if err != nil {
		t.Fatalf("DeviceTypesStats: %v", err)
	}
	if count != 0 || maxTS != nil {
		t.Fatalf("expected 0/nil for empty table, got %d/%v", count, maxTS)
	}
}

func TestDeviceTypesStats_CountAndMaxUpdatedAt(t *testing.T) {
	db := newTestDB(t, &domain.DeviceType{})

	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	newest := base.Add(30 * time.Minute)
	rows := []domain.DeviceType{
		{ID: "d1", Name: "BinaxNOW", Model: "BinaxNOW", CreatedAt: base, UpdatedAt: base},
		{ID: "d2", Name: "ID NOW", Model: "ID NOW", CreatedAt: base, UpdatedAt: newest},
	}
	if err := db.Create(&rows).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	count, maxTS, err := DeviceTypesStats(context.Background(), db)
	if err != nil {
		t.Fatalf("DeviceTypesStats: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
	if maxTS == nil || !maxTS.Equal(newest) {
		t.Fatalf("maxUpdatedAt = %v, want %v", maxTS, newest)
	}
}

func TestSpecimenTypesStats_CountError_NoTable(t *testing.T) {
	db := newTestDB(t /* no migrations */)
	_, _, err := SpecimenTypesStats(context.Background(), db)
	if err == nil {
		t.Fatalf("expected error due to missing specimen_types table")
	}
}

func TestSpecimenTypesStats_EmptyTable(t *testing.T) {
	db := newTestDB(t, &domain.SpecimenType{})
	count, maxTS, err := SpecimenTypesStats(context.Background(), db)
	if err != nil {
		t.Fatalf("SpecimenTypesStats: %v", err)
	}
	if count != 0 || maxTS != nil {
		t.Fatalf("expected 0/nil for empty table, got %d/%v", count, maxTS)
	}
}

func TestSpecimenTypesStats_CountAndMaxUpdatedAt(t *testing.T) {
	db := newTestDB(t, &domain.SpecimenType{})

	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	newest := base.Add(45 * time.Minute)
	rows := []domain.SpecimenType{
		{ID: "s1", Name: "Saliva", TypeCode: "258560004", CreatedAt: base, UpdatedAt: newest},
		{ID: "s2", Name: "Sputum", TypeCode: "119334006", CreatedAt: base, UpdatedAt: base},
	}
	if err := db.Create(&rows).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	count, maxTS, err := SpecimenTypesStats(context.Background(), db)
	if err != nil {
		t.Fatalf("SpecimenTypesStats: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
	if maxTS == nil || !maxTS.Equal(newest) {
		t.Fatalf("maxUpdatedAt = %v, want %v", maxTS, newest)
	}
}
