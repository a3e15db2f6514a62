// Package domain defines the persistence models for reference data
// (device types, specimen types) and patient links. These types are
// mapped with GORM and form the core data layer of the lab-report
// backend.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// DeviceType represents one piece of testing hardware/software known to
// the system. A device may support several assays; each supported assay
// is a DeviceTypeDisease row.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Name: vendor-facing device name.
//   - Model: model string as it appears on result uploads; indexed for
//     reference lookups.
//   - SupportedDiseaseTestPerformed: assays this device can perform.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
//   - DeletedAt: soft deletion marker (retains row for audit/history).
type DeviceType struct {
	ID        string         `json:"id"    gorm:"type:char(36);primaryKey"`
	Name      string         `json:"name"  gorm:"type:varchar(255);not null"`
	Model     string         `json:"model" gorm:"type:varchar(255);not null;index:idx_device_model"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"     gorm:"index"`

	// SupportedDiseaseTestPerformed lists the assays supported by this
	// device. Rows are cascade-deleted with their device.
	SupportedDiseaseTestPerformed []DeviceTypeDisease `json:"supported_disease_test_performed" gorm:"foreignKey:DeviceTypeID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for DeviceType.
func (DeviceType) TableName() string { return "device_types" }

// DeviceTypeDisease links a device to one assay it supports, carrying
// the LOINC codes and equipment identifiers reported downstream.
type DeviceTypeDisease struct {
	ID           string `json:"id"             gorm:"type:char(36);primaryKey"`
	DeviceTypeID string `json:"device_type_id" gorm:"type:char(36);not null;index:idx_device_diseases"`

	// TestPerformedLoincCode addresses the device code map together with
	// the device model.
	TestPerformedLoincCode string `json:"test_performed_loinc_code" gorm:"type:varchar(255)"`
	TestOrderedLoincCode   string `json:"test_ordered_loinc_code"   gorm:"type:varchar(255)"`
	EquipmentUID           string `json:"equipment_uid"             gorm:"type:varchar(255)"`
	TestkitNameID          string `json:"testkit_name_id"           gorm:"type:varchar(255)"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for DeviceTypeDisease.
func (DeviceTypeDisease) TableName() string { return "device_type_diseases" }

// SpecimenType represents one specimen kind with its canonical clinical
// vocabulary code (SNOMED). Rows in this table override the compiled-in
// synonym table during cache builds.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - Name: human-entered specimen name; lookups are case-insensitive.
//   - TypeCode: canonical SNOMED code for the specimen.
//   - CollectionLocationName / CollectionLocationCode: optional body-site
//     metadata reported alongside results.
type SpecimenType struct {
	ID                     string         `json:"id"        gorm:"type:char(36);primaryKey"`
	Name                   string         `json:"name"      gorm:"type:varchar(255);not null;index:idx_specimen_name"`
	TypeCode               string         `json:"type_code" gorm:"type:varchar(255);not null"`
	CollectionLocationName string         `json:"collection_location_name,omitempty" gorm:"type:varchar(255)"`
	CollectionLocationCode string         `json:"collection_location_code,omitempty" gorm:"type:varchar(255)"`
	CreatedAt              time.Time      `json:"created_at"`
	UpdatedAt              time.Time      `json:"updated_at"`
	DeletedAt              gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName returns the database table name for SpecimenType.
func (SpecimenType) TableName() string { return "specimen_types" }

// Organization is the testing-facility operator a test order belongs to.
type Organization struct {
	ID         string    `json:"id"          gorm:"type:char(36);primaryKey"`
	Name       string    `json:"name"        gorm:"type:varchar(255);not null"`
	ExternalID string    `json:"external_id" gorm:"type:varchar(255);uniqueIndex"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName returns the database table name for Organization.
func (Organization) TableName() string { return "organizations" }

// Person is the tested patient. BirthDate is the shared secret checked
// during patient-link identity verification; it is stored date-only and
// compared by exact calendar date.
type Person struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	FirstName string    `json:"first_name" gorm:"type:varchar(255)"`
	LastName  string    `json:"last_name"  gorm:"type:varchar(255);not null"`
	BirthDate time.Time `json:"birth_date" gorm:"type:date;not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Person.
func (Person) TableName() string { return "persons" }

// TestOrder ties one patient to one organization for a test event. It is
// the anchor a patient link grants access to.
type TestOrder struct {
	ID             string    `json:"id"              gorm:"type:char(36);primaryKey"`
	PatientID      string    `json:"patient_id"      gorm:"type:char(36);not null;index"`
	OrganizationID string    `json:"organization_id" gorm:"type:char(36);not null;index"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	Patient      Person       `json:"patient"      gorm:"foreignKey:PatientID;references:ID"`
	Organization Organization `json:"organization" gorm:"foreignKey:OrganizationID;references:ID"`
}

// TableName returns the database table name for TestOrder.
func (TestOrder) TableName() string { return "test_orders" }

// PatientLink is a shareable, time-bounded capability granting access to
// one test order's patient data. The ID doubles as the capability token,
// so it must be unguessable (random UUID). A link is current while
// now - RefreshedAt stays under the configured validity window; expired
// links are never deleted by this subsystem, only re-verified and
// refreshed.
type PatientLink struct {
	ID          string    `json:"id"            gorm:"type:char(36);primaryKey"`
	TestOrderID string    `json:"test_order_id" gorm:"type:char(36);not null;uniqueIndex:ux_link_order"`
	CreatedAt   time.Time `json:"created_at"`
	RefreshedAt time.Time `json:"refreshed_at"  gorm:"not null;index"`

	// TestOrder is the order this link grants access to; strictly 1:1.
	TestOrder TestOrder `json:"-" gorm:"foreignKey:TestOrderID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for PatientLink.
func (PatientLink) TableName() string { return "patient_links" }

// IsCurrent reports whether the link is still inside the validity window
// at the given instant. Window boundaries are exclusive: a link exactly
// window old is no longer current.
func (l PatientLink) IsCurrent(now time.Time, window time.Duration) bool {
	return now.Sub(l.RefreshedAt) < window
}
