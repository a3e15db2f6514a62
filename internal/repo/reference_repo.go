// Package repo implements the data persistence layer for domain
// entities, backed by GORM. This file provides repository functions for
// the reference tables (device types, specimen types).
//
// All functions are context-aware and accept a *gorm.DB handle, making
// them safe for use within transactions or connection-scoped
// operations. They follow the "thin repository" approach: no business
// logic, only CRUD persistence and query composition.
//
// Error semantics:
//   - Snapshot reads return an empty slice, not an error, when a table
//     is empty.
//   - On DB errors (connectivity, constraint violations, etc.) the raw
//     gorm error is propagated; the cache layer treats it as a build
//     failure and retries on the next read.
//
// The snapshot functions (AllDeviceTypes, AllSpecimenTypes) are the
// ReferenceStore contract consumed by the cache builders: full table
// reads with no pagination, taken once per rebuild. The paginated
// variants back the admin listing endpoints only.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-lab-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// AllDeviceTypes returns a full snapshot of device types with their
// supported assays preloaded, ordered by creation time ascending so
// that duplicate-key resolution in the cache builder is stable.
func AllDeviceTypes(ctx context.Context, db *gorm.DB) ([]domain.DeviceType, error) {
	var out []domain.DeviceType
	err := db.WithContext(ctx).
		Preload("SupportedDiseaseTestPerformed").
		Order("created_at asc").
		Find(&out).Error
	return out, err
}

// AllSpecimenTypes returns a full snapshot of specimen types, ordered
// by creation time ascending.
func AllSpecimenTypes(ctx context.Context, db *gorm.DB) ([]domain.SpecimenType, error) {
	var out []domain.SpecimenType
	err := db.WithContext(ctx).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}

// ReferenceStore adapts the snapshot functions above to the
// services.ReferenceStore contract consumed by the cache builders. Both
// the server entrypoint and the HTTP wiring use this one adapter.
type ReferenceStore struct{}

// AllDeviceTypes proxies the package-level AllDeviceTypes.
func (ReferenceStore) AllDeviceTypes(ctx context.Context, db *gorm.DB) ([]domain.DeviceType, error) {
	return AllDeviceTypes(ctx, db)
}

// AllSpecimenTypes proxies the package-level AllSpecimenTypes.
func (ReferenceStore) AllSpecimenTypes(ctx context.Context, db *gorm.DB) ([]domain.SpecimenType, error) {
	return AllSpecimenTypes(ctx, db)
}

// CountDeviceTypes returns the total number of device types.
func CountDeviceTypes(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.DeviceType{}).
		Count(&total).Error
	return total, err
}

// ListDeviceTypesPage returns a paginated slice of device types with
// assays preloaded, ordered by name ascending. Use CountDeviceTypes to
// obtain the total for pagination metadata.
//
// The caller is responsible for computing offset and limit (e.g., (page-1)*pageSize).
func ListDeviceTypesPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.DeviceType, error) {
	var out []domain.DeviceType
	err := db.WithContext(ctx).
		Preload("SupportedDiseaseTestPerformed").
		Order("name asc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountSpecimenTypes returns the total number of specimen types.
func CountSpecimenTypes(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.SpecimenType{}).
		Count(&total).Error
	return total, err
}

// ListSpecimenTypesPage returns a paginated slice of specimen types,
// ordered by name ascending.
func ListSpecimenTypesPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.SpecimenType, error) {
	var out []domain.SpecimenType
	err := db.WithContext(ctx).
		Order("name asc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
