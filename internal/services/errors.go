// Package services defines the business logic for organizations and website
// metadata lookups. This file centralizes common service-level error values so
// that they can be consistently returned by service methods and checked by
// callers.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import "errors"

// Metadata lookup errors.
var (
	// ErrURLRequired is returned when a lookup is requested without a URL.
	ErrURLRequired = errors.New("url is required")

	// ErrInvalidURL is returned when the URL cannot be normalized into an
	// absolute URL with a host.
	ErrInvalidURL = errors.New("invalid url")
)

// Organization errors.
var (
	// ErrOrganizationNotFound indicates that the requested organization does
	// not exist or has been soft-deleted.
	ErrOrganizationNotFound = errors.New("organization not found")

	// ErrEmptyOrgName is returned when an organization is created without a
	// display name.
	ErrEmptyOrgName = errors.New("organization name is empty")

	// ErrInvalidStatus is returned when a status is outside pending, approved
	// and rejected.
	ErrInvalidStatus = errors.New("status must be pending, approved or rejected")

	// ErrNameTooLong is returned when an organization name exceeds the
	// configured maximum length.
	ErrNameTooLong = errors.New("organization name too long")
)
