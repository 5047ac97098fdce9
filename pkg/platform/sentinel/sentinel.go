package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and directory/secret
// backends return these (optionally wrapped) so services can translate them
// into coded domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store
// - ErrExpired: pending authentication or session has passed its TTL
// - ErrUnavailable: backing service temporarily unreachable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors.
var (
	ErrNotFound    = errors.New("not found")
	ErrExpired     = errors.New("expired")
	ErrUnavailable = errors.New("unavailable")
)
