// Package services – PatientLinkService
//
// This file implements the PatientLinkService, which manages the
// lifecycle and verification of patient links: time-bounded capability
// tokens granting access to one test order's data. A link has two
// observable states, fresh (now - refreshedAt < validity window) and
// stale; there is no revoked state in this subsystem.
//
// The operations are deliberately separable: CurrentOrganization is a
// side-effect-free probe, VerifyIdentity checks the birth-date secret
// regardless of freshness (that is how a stale link becomes eligible
// for refresh), and Refresh unconditionally restarts the window.
// Callers that need a verified refresh must call VerifyIdentity first;
// Refresh performs no re-verification itself, matching the upstream
// contract.
//
// Service-level errors (ErrLinkNotFound, ErrTestOrderNotFound,
// ErrIncorrectBirthDate) are returned for predictable cases so handlers
// can map them to HTTP results consistently.
package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-lab-backend/internal/domain"
	"github.com/tbourn/go-lab-backend/internal/repo"
)

// DefaultLinkValidity is the freshness window applied when none is
// configured: a link stays current for one day after its last refresh.
const DefaultLinkValidity = 24 * time.Hour

// LinkRepo defines the repository contract required by
// PatientLinkService. Implementations are responsible for persistence
// of patient links and test orders.
type LinkRepo interface {
	// GetPatientLink fetches a link by id with order, patient, and
	// organization preloaded.
	GetPatientLink(ctx context.Context, db *gorm.DB, id string) (*domain.PatientLink, error)

	// GetTestOrder fetches a test order by id.
	GetTestOrder(ctx context.Context, db *gorm.DB, id string) (*domain.TestOrder, error)

	// CreatePatientLink inserts a new link for the order with
	// RefreshedAt set to now.
	CreatePatientLink(ctx context.Context, db *gorm.DB, testOrderID string, now time.Time) (*domain.PatientLink, error)

	// TouchPatientLink sets RefreshedAt on an existing link.
	TouchPatientLink(ctx context.Context, db *gorm.DB, id string, refreshedAt time.Time) error
}

// PatientLinkService provides patient-link operations: creation,
// freshness-gated organization lookup, birth-date identity
// verification, and window refresh.
type PatientLinkService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the link repository used by this service.
	Repo LinkRepo

	// Validity is the freshness window; DefaultLinkValidity when zero.
	Validity time.Duration
	// Now returns the current instant; time.Now when nil. Injected by
	// tests to pin the clock.
	Now func() time.Time
}

// NewPatientLinkService constructs a PatientLinkService with the
// default validity window and wall-clock time.
func NewPatientLinkService(db *gorm.DB, r LinkRepo) *PatientLinkService {
	return &PatientLinkService{
		DB:       db,
		Repo:     r,
		Validity: DefaultLinkValidity,
		Now:      time.Now,
	}
}

// Create constructs a new link bound 1:1 to the given test order with
// RefreshedAt set to now and persists it. Returns ErrTestOrderNotFound
// if the order does not exist and ErrLinkExists when the order already
// has a link.
func (s *PatientLinkService) Create(ctx context.Context, testOrderID string) (*domain.PatientLink, error) {
	if _, err := s.Repo.GetTestOrder(ctx, s.DB, testOrderID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTestOrderNotFound
		}
		return nil, err
	}
	link, err := s.Repo.CreatePatientLink(ctx, s.DB, testOrderID, s.now())
	if errors.Is(err, repo.ErrDuplicate) {
		return nil, ErrLinkExists
	}
	return link, err
}

// CurrentOrganization returns the organization context for a fresh
// link, or nil (no context) for a stale one. It is a side-effect-free
// probe: it does not refresh the link and does not check the birth-date
// secret. Returns ErrLinkNotFound if the id resolves to nothing.
func (s *PatientLinkService) CurrentOrganization(ctx context.Context, linkID string) (*domain.Organization, error) {
	link, err := s.get(ctx, linkID)
	if err != nil {
		return nil, err
	}
	if !link.IsCurrent(s.now(), s.validity()) {
		return nil, nil
	}
	org := link.TestOrder.Organization
	return &org, nil
}

// VerifyIdentity checks the supplied birth date against the patient on
// record and returns the Person on a match. The check is allowed
// regardless of freshness: a stale link can still be verified, which is
// how it becomes eligible for refresh. Comparison is exact calendar
// date, no fuzzing. Returns ErrLinkNotFound or ErrIncorrectBirthDate.
func (s *PatientLinkService) VerifyIdentity(ctx context.Context, linkID string, birthDate time.Time) (*domain.Person, error) {
	link, err := s.get(ctx, linkID)
	if err != nil {
		return nil, err
	}
	patient := link.TestOrder.Patient
	if !sameCalendarDate(patient.BirthDate, birthDate) {
		return nil, ErrIncorrectBirthDate
	}
	return &patient, nil
}

// Refresh unconditionally sets RefreshedAt to now, persists it, and
// returns the updated link. No identity re-verification happens here;
// callers that need that guarantee must call VerifyIdentity first.
// Returns ErrLinkNotFound if the id resolves to nothing.
func (s *PatientLinkService) Refresh(ctx context.Context, linkID string) (*domain.PatientLink, error) {
	now := s.now()
	if err := s.Repo.TouchPatientLink(ctx, s.DB, linkID, now); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, err
	}
	return s.get(ctx, linkID)
}

// get fetches a link, mapping the repo's not-found to ErrLinkNotFound.
func (s *PatientLinkService) get(ctx context.Context, linkID string) (*domain.PatientLink, error) {
	link, err := s.Repo.GetPatientLink(ctx, s.DB, linkID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, err
	}
	return link, nil
}

// validity returns the configured window or the default.
func (s *PatientLinkService) validity() time.Duration {
	if s.Validity > 0 {
		return s.Validity
	}
	return DefaultLinkValidity
}

// now returns the injected clock or wall time, always UTC.
func (s *PatientLinkService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// sameCalendarDate reports whether two instants fall on the same
// calendar date in UTC. Birth dates are stored date-only, so this is
// the exact-equality check the verification contract requires.
func sameCalendarDate(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
