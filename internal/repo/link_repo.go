// Package repo implements the data persistence layer for domain
// entities, backed by GORM. This file provides repository functions for
// the PatientLink model and its TestOrder anchor.
//
// Error semantics:
//   - When a link or order is not found, functions return
//     gorm.ErrRecordNotFound (exported here as ErrNotFound).
//   - On other DB errors, the raw gorm error is propagated.
//
// Each operation targets a single row by id and is mutated inside one
// GORM statement, so no cross-link locking is needed.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-lab-backend/internal/domain"
)

// GetPatientLink fetches a link by id with its test order, patient, and
// organization preloaded. Returns ErrNotFound if the record does not
// exist.
func GetPatientLink(ctx context.Context, db *gorm.DB, id string) (*domain.PatientLink, error) {
	var link domain.PatientLink
	err := db.WithContext(ctx).
		Preload("TestOrder").
		Preload("TestOrder.Patient").
		Preload("TestOrder.Organization").
		Where("id = ?", id).
		First(&link).Error
	if err != nil {
		return nil, err
	}
	return &link, nil
}

// GetTestOrder fetches a test order by id with patient and organization
// preloaded. Returns ErrNotFound if the record does not exist.
func GetTestOrder(ctx context.Context, db *gorm.DB, id string) (*domain.TestOrder, error) {
	var order domain.TestOrder
	err := db.WithContext(ctx).
		Preload("Patient").
		Preload("Organization").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// CreatePatientLink inserts a new link bound 1:1 to the given test
// order, with RefreshedAt set to now. The link id is a randomly
// generated UUID, which is the whole of the capability token. A second
// link for the same order trips the ux_link_order unique index and is
// returned as ErrDuplicate.
func CreatePatientLink(ctx context.Context, db *gorm.DB, testOrderID string, now time.Time) (*domain.PatientLink, error) {
	link := &domain.PatientLink{
		ID:          uuid.NewString(),
		TestOrderID: testOrderID,
		CreatedAt:   now.UTC(),
		RefreshedAt: now.UTC(),
	}
	if err := db.WithContext(ctx).Create(link).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return link, nil
}

// TouchPatientLink sets RefreshedAt on the link identified by id. If no
// rows are affected (link missing), it returns ErrNotFound. On DB
// error, the raw error is returned.
func TouchPatientLink(ctx context.Context, db *gorm.DB, id string, refreshedAt time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.PatientLink{}).
		Where("id = ?", id).
		Update("refreshed_at", refreshedAt.UTC())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
