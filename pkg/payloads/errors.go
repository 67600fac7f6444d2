package payloads

import "errors"

// Sentinel errors for catalog failure modes. Callers should use
// errors.Is() to check for these.
var (
	// ErrPayloadNotFound indicates the requested payload ID does not exist.
	ErrPayloadNotFound = errors.New("payloads: payload not found")

	// ErrInvalidPayload indicates a payload failed validation (missing id,
	// content, or an unknown category/severity).
	ErrInvalidPayload = errors.New("payloads: invalid payload")

	// ErrEmptySelection indicates a selection resolved to zero payloads.
	ErrEmptySelection = errors.New("payloads: selection matched no payloads")
)
