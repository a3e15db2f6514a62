package domain

import (
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newDomainDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:domain_models?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// Enforce FKs so cascades actually execute.
	db.Exec("PRAGMA foreign_keys=ON;")
	return db
}

func TestTableNames(t *testing.T) {
	cases := []struct {
		model interface{ TableName() string }
		want  string
	}{
		{DeviceType{}, "device_types"},
		{DeviceTypeDisease{}, "device_type_diseases"},
		{SpecimenType{}, "specimen_types"},
		{Organization{}, "organizations"},
		{Person{}, "persons"},
		{TestOrder{}, "test_orders"},
		{PatientLink{}, "patient_links"},
	}
	for _, tc := range cases {
		if got := tc.model.TableName(); got != tc.want {
			t.Fatalf("%T.TableName() = %q; want %q", tc.model, got, tc.want)
		}
	}
}

func TestPatientLink_IsCurrent_Boundaries(t *testing.T) {
	refreshed := time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)
	link := PatientLink{ID: "L1", RefreshedAt: refreshed}
	window := 24 * time.Hour

	cases := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"just refreshed", refreshed, true},
		{"inside window", refreshed.Add(23 * time.Hour), true},
		{"one tick before boundary", refreshed.Add(window - time.Nanosecond), true},
		{"exactly at boundary", refreshed.Add(window), false},
		{"past boundary", refreshed.Add(25 * time.Hour), false},
	}
	for _, tc := range cases {
		if got := link.IsCurrent(tc.now, window); got != tc.want {
			t.Fatalf("%s: IsCurrent = %v; want %v", tc.name, got, tc.want)
		}
	}

	// A shorter window expires sooner for the same link.
	if link.IsCurrent(refreshed.Add(90*time.Minute), time.Hour) {
		t.Fatalf("expected stale under a 1h window at +90m")
	}
	if !link.IsCurrent(refreshed.Add(90*time.Minute), 2*time.Hour) {
		t.Fatalf("expected current under a 2h window at +90m")
	}
}

func TestMigrations_Indexes_AndCascades(t *testing.T) {
	db := newDomainDB(t)

	if err := db.AutoMigrate(
		&DeviceType{}, &DeviceTypeDisease{}, &SpecimenType{},
		&Organization{}, &Person{}, &TestOrder{}, &PatientLink{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	m := db.Migrator()

	// Tables exist
	for _, tbl := range []any{
		&DeviceType{}, &DeviceTypeDisease{}, &SpecimenType{},
		&Organization{}, &Person{}, &TestOrder{}, &PatientLink{},
	} {
		if !m.HasTable(tbl) {
			t.Fatalf("expected table for %T to exist", tbl)
		}
	}

	// Indexes from tags exist
	if !m.HasIndex(&DeviceTypeDisease{}, "idx_device_diseases") {
		t.Fatalf("expected index idx_device_diseases on device_type_diseases")
	}
	if !m.HasIndex(&SpecimenType{}, "idx_specimen_name") {
		t.Fatalf("expected index idx_specimen_name on specimen_types")
	}
	if !m.HasIndex(&PatientLink{}, "ux_link_order") {
		t.Fatalf("expected unique index ux_link_order on patient_links")
	}

	// Seed a device with two assays, then cascade-delete the device
	now := time.Now().UTC()

	dev := &DeviceType{ID: "d1", Name: "BinaxNOW", CreatedAt: now, UpdatedAt: now}
	if err := db.Create(dev).Error; err != nil {
		t.Fatalf("insert device: %v", err)
	}
	a1 := &DeviceTypeDisease{ID: "a1", DeviceTypeID: "d1", TestPerformedLoincCode: "94558-4", CreatedAt: now, UpdatedAt: now}
	a2 := &DeviceTypeDisease{ID: "a2", DeviceTypeID: "d1", TestPerformedLoincCode: "94534-5", CreatedAt: now, UpdatedAt: now}
	if err := db.Create(a1).Error; err != nil {
		t.Fatalf("insert a1: %v", err)
	}
	if err := db.Create(a2).Error; err != nil {
		t.Fatalf("insert a2: %v", err)
	}

	// CASCADE: hard-deleting a device should delete its assays
	if err := db.Unscoped().Delete(&DeviceType{}, "id = ?", "d1").Error; err != nil {
		t.Fatalf("delete device: %v", err)
	}
	var cnt int64
	if err := db.Model(&DeviceTypeDisease{}).Where("device_type_id = ?", "d1").Count(&cnt).Error; err != nil {
		t.Fatalf("count assays after device delete: %v", err)
	}
	if cnt != 0 {
		t.Fatalf("expected assays to cascade-delete with their device, got count=%d", cnt)
	}

	// One link per order: the unique index rejects a second link
	org := &Organization{ID: "g1", Name: "Elm Street Clinic", ExternalID: "x-1", CreatedAt: now, UpdatedAt: now}
	pat := &Person{ID: "p1", FirstName: "Ada", LastName: "Lovelace", BirthDate: time.Date(1990, 6, 2, 0, 0, 0, 0, time.UTC), CreatedAt: now, UpdatedAt: now}
	ord := &TestOrder{ID: "o1", PatientID: "p1", OrganizationID: "g1", CreatedAt: now, UpdatedAt: now}
	for _, seed := range []any{org, pat, ord} {
		if err := db.Create(seed).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	l1 := &PatientLink{ID: "l1", TestOrderID: "o1", CreatedAt: now, RefreshedAt: now}
	if err := db.Create(l1).Error; err != nil {
		t.Fatalf("insert link: %v", err)
	}
	l2 := &PatientLink{ID: "l2", TestOrderID: "o1", CreatedAt: now, RefreshedAt: now}
	if err := db.Create(l2).Error; err == nil {
		t.Fatalf("expected UNIQUE violation for second link on the same order")
	}
}
