// Package services – ReferenceDataService
//
// This file implements the ReferenceDataService, which owns the two
// process-wide reference caches: the device code map (composite
// model|testPerformedCode key -> device) and the specimen code map
// (lowercase name -> SNOMED code, merged with the compiled-in synonym
// table). The maps translate noisy, human-entered device/specimen
// strings from result uploads into canonical codes for downstream
// clinical-data submission.
//
// The service is an explicitly owned, injectable component: the
// composing application constructs it, registers its key-spaces with
// the scheduler, and hands it to handlers. There is no hidden
// singleton. Cache mechanics (single-flight builds, eviction, wholesale
// replacement) live in internal/refdata; this service supplies the
// build factories and the read API.
package services

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-lab-backend/internal/domain"
	"github.com/tbourn/go-lab-backend/internal/refdata"
)

// Key-space names, used in scheduler logs and metrics.
const (
	DeviceCodeMapKeySpace   = "deviceModelAndTestPerformedCodeMap"
	SpecimenCodeMapKeySpace = "specimenTypeNameSNOMEDMap"
)

// ReferenceStore defines the snapshot reads required by the cache
// builders. Implementations are responsible for persistence of the
// reference tables.
type ReferenceStore interface {
	// AllDeviceTypes returns a full snapshot of device records with
	// their supported assays; may be empty.
	AllDeviceTypes(ctx context.Context, db *gorm.DB) ([]domain.DeviceType, error)

	// AllSpecimenTypes returns a full snapshot of specimen records; may
	// be empty.
	AllSpecimenTypes(ctx context.Context, db *gorm.DB) ([]domain.SpecimenType, error)
}

// ReferenceDataService serves cached reference lookups. Safe for
// concurrent use; all mutable state lives inside the two refdata
// Values.
type ReferenceDataService struct {
	// DB is the GORM handle used for snapshot reads during rebuilds.
	DB *gorm.DB
	// Store is the reference repository used by the build factories.
	Store ReferenceStore

	devices   *refdata.Value[map[string]domain.DeviceType]
	specimens *refdata.Value[map[string]string]
}

// NewReferenceDataService constructs a ReferenceDataService with its
// two cache key-spaces wired to build factories against the store.
func NewReferenceDataService(db *gorm.DB, store ReferenceStore) *ReferenceDataService {
	s := &ReferenceDataService{DB: db, Store: store}
	s.devices = refdata.NewValue(DeviceCodeMapKeySpace, func(ctx context.Context) (map[string]domain.DeviceType, error) {
		records, err := store.AllDeviceTypes(ctx, db)
		if err != nil {
			return nil, err
		}
		return refdata.BuildDeviceCodeMap(records), nil
	})
	s.specimens = refdata.NewValue(SpecimenCodeMapKeySpace, func(ctx context.Context) (map[string]string, error) {
		records, err := store.AllSpecimenTypes(ctx, db)
		if err != nil {
			return nil, err
		}
		return refdata.BuildSpecimenCodeMap(records, refdata.SpecimenSNOMEDSynonyms), nil
	})
	return s
}

// DeviceCodeMap returns the current device code map, building it on
// first access after eviction. Callers must treat the map as read-only.
func (s *ReferenceDataService) DeviceCodeMap(ctx context.Context) (map[string]domain.DeviceType, error) {
	return s.devices.Get(ctx)
}

// SpecimenCodeMap returns the current specimen code map. Callers must
// treat the map as read-only.
func (s *ReferenceDataService) SpecimenCodeMap(ctx context.Context) (map[string]string, error) {
	return s.specimens.Get(ctx)
}

// FindDevice resolves a (model, testPerformedCode) pair against the
// device code map. Returns ErrUnknownDevice when no device matches.
func (s *ReferenceDataService) FindDevice(ctx context.Context, model, testPerformedCode string) (*domain.DeviceType, error) {
	m, err := s.DeviceCodeMap(ctx)
	if err != nil {
		return nil, err
	}
	device, ok := m[refdata.DeviceKey(model, testPerformedCode)]
	if !ok {
		return nil, ErrUnknownDevice
	}
	return &device, nil
}

// FindSpecimenCode resolves a specimen name (case-insensitive) to its
// SNOMED code. Returns ErrUnknownSpecimen when neither the database nor
// the synonym table knows the name.
func (s *ReferenceDataService) FindSpecimenCode(ctx context.Context, name string) (string, error) {
	m, err := s.SpecimenCodeMap(ctx)
	if err != nil {
		return "", err
	}
	code, ok := m[refdata.NormalizeName(name)]
	if !ok {
		return "", ErrUnknownSpecimen
	}
	return code, nil
}

// KeySpaces exposes the cached key-spaces for scheduler registration
// and the manual refresh endpoint, in a fixed order: devices first,
// specimens second.
func (s *ReferenceDataService) KeySpaces() []refdata.Refresher {
	return []refdata.Refresher{s.devices, s.specimens}
}

// EvictAll clears both key-spaces immediately without rebuilding. The
// next read per key-space triggers exactly one lazy rebuild.
func (s *ReferenceDataService) EvictAll() {
	s.devices.Evict()
	s.specimens.Evict()
}

// RefreshAll evicts and eagerly rebuilds both key-spaces, the same
// action the scheduler performs on its ticks. The first failure stops
// the sweep and is returned; the failed key-space is left empty and
// repopulates lazily on its next read.
func (s *ReferenceDataService) RefreshAll(ctx context.Context) error {
	for _, ks := range s.KeySpaces() {
		if err := ks.Refresh(ctx); err != nil {
			return err
		}
	}
	return nil
}
