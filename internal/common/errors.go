// Package common defines shared constants and sentinel errors used across
// the account backend. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors mapped to the external response contract.
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// ErrorTaken reports that an identifier (email, username) is already
	// registered. Only availability probes surface it to callers; the
	// login path never does.
	ErrorTaken = errors.New("identifier already taken")

	// ErrorFederation covers every provider-side failure during federated
	// authentication: network errors, rejected provider tokens, malformed
	// payloads. Details are logged, never returned.
	ErrorFederation = errors.New("federation failure")

	// ErrInvalidPictureRef reports a picture reference that is neither a
	// URI nor an uploaded-file storage key.
	ErrInvalidPictureRef = errors.New("invalid picture reference")
)
