package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and sources return these
// (optionally wrapped) so services can translate them into domain errors.
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
)
