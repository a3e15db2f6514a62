// Package services defines the business logic for reference-data
// caching and patient-link verification. This file centralizes common
// service-level error values so that they can be consistently returned
// by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler/controller layer. In particular,
// ErrIncorrectBirthDate must stay distinct from ErrLinkNotFound so
// handlers can decide how much to reveal.
package services

import "errors"

// Patient-link errors.
var (
	// ErrLinkNotFound indicates that no patient link exists for the
	// supplied id.
	ErrLinkNotFound = errors.New("patient link not found")

	// ErrTestOrderNotFound indicates that no test order exists for the
	// supplied id when creating a link.
	ErrTestOrderNotFound = errors.New("test order not found")

	// ErrLinkExists indicates that the test order already has a link.
	// Links are bound 1:1 to orders, so a second create is a conflict,
	// not an internal failure.
	ErrLinkExists = errors.New("patient link already exists for test order")

	// ErrIncorrectBirthDate is returned when identity verification fails
	// because the supplied birth date does not match the patient on
	// record. It is non-retryable and deliberately separate from
	// ErrLinkNotFound.
	ErrIncorrectBirthDate = errors.New("incorrect birth date")
)

// Reference-lookup errors.
var (
	// ErrUnknownDevice indicates that no device matches the supplied
	// (model, test performed code) pair in the current cache.
	ErrUnknownDevice = errors.New("unknown device model and test performed code")

	// ErrUnknownSpecimen indicates that no SNOMED code is known for the
	// supplied specimen name, in either the database or the static
	// synonym table.
	ErrUnknownSpecimen = errors.New("unknown specimen name")
)
