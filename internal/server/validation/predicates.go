package validation

import (
	"context"
	"errors"
	"net/url"
	"regexp"
	"strings"
)

var (
	emailPattern    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,32}$`)
	// storage keys look like users/2026/8/23/<uuid>
	storageKeyPattern = regexp.MustCompile(`^users/\d{4}/\d{1,2}/\d{1,2}/[0-9a-fA-F-]{36}$`)
)

// Email checks basic address shape.
func Email(ctx context.Context, value string) error {
	if !emailPattern.MatchString(value) {
		return errors.New("invalid email format")
	}
	return nil
}

// Username checks the allowed charset and length.
func Username(ctx context.Context, value string) error {
	if !usernamePattern.MatchString(value) {
		return errors.New("invalid username format")
	}
	return nil
}

// NonEmpty rejects empty or all-whitespace values.
func NonEmpty(ctx context.Context, value string) error {
	if strings.TrimSpace(value) == "" {
		return errors.New("must not be empty")
	}
	return nil
}

// HTTPURI accepts absolute http(s) URLs.
func HTTPURI(ctx context.Context, value string) error {
	u, err := url.Parse(value)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("invalid picture reference")
	}
	return nil
}

// StorageKey accepts uploaded-file tokens produced by the picture upload flow.
func StorageKey(ctx context.Context, value string) error {
	if !storageKeyPattern.MatchString(value) {
		return errors.New("invalid picture reference")
	}
	return nil
}

// PictureRef accepts either an absolute URI or an uploaded-file token.
var PictureRef = Any(HTTPURI, StorageKey)

// Available wraps a store round-trip availability probe as a predicate.
// Evaluate it as close as possible to the eventual write: two concurrent
// requests can still both observe "not taken" in the gap.
func Available(probe func(ctx context.Context, value string) (bool, error)) Predicate {
	return func(ctx context.Context, value string) error {
		taken, err := probe(ctx, value)
		if err != nil {
			return err
		}
		if taken {
			return errors.New("already taken")
		}
		return nil
	}
}
