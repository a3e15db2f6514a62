// Package repo implements the data persistence layer for domain
// entities, backed by GORM. This file provides small aggregate
// statistics queries used primarily for conditional responses (ETag
// generation) on the reference listing endpoints. Each function is
// context-aware and safe to call from services or handlers.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-lab-backend/internal/domain"
)

// DeviceTypesStats returns aggregate metadata for the device reference
// table: the total number of rows and the maximum UpdatedAt timestamp
// among them.
//
// It executes two lightweight queries against the device_types table.
// When the table is empty, the returned count is 0 and maxUpdatedAt is
// nil.
//
// Return values:
//   - count:        total device types
//   - maxUpdatedAt: pointer to the greatest UpdatedAt, or nil if no rows
//   - err:          database error, if any
func DeviceTypesStats(ctx context.Context, db *gorm.DB) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.DeviceType{})

	// Count
	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}

// SpecimenTypesStats returns aggregate metadata for the specimen
// reference table: the total number of rows and the maximum UpdatedAt
// timestamp among them. Semantics match DeviceTypesStats.
func SpecimenTypesStats(ctx context.Context, db *gorm.DB) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.SpecimenType{})

	// Count
	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}
