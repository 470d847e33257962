// Package apperr defines the error kinds shared by the receipt store, the
// insight cache and the extraction pipeline.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedMedia is returned for uploads that are neither a supported image nor a PDF.
	ErrUnsupportedMedia = errors.New("unsupported media")
	// ErrExternalService is returned when an OCR, translation or LLM call fails or times out.
	ErrExternalService = errors.New("external service error")
	// ErrMalformedJSON is returned when model output or a cache entry is not parseable JSON.
	ErrMalformedJSON = errors.New("malformed json")
	// ErrNotFound is returned for unknown receipt identifiers.
	ErrNotFound = errors.New("not found")
)

// External wraps a collaborator failure so that callers can match it with
// errors.Is(err, ErrExternalService) while keeping the original cause.
func External(service string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrExternalService) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", service, ErrExternalService, err)
}

// Malformed wraps a decode failure as ErrMalformedJSON.
func Malformed(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrMalformedJSON, err)
}

// NotFound reports an unknown identifier.
func NotFound(what, id string) error {
	return fmt.Errorf("%s %q: %w", what, id, ErrNotFound)
}

// Unsupported reports an upload kind outside the accepted set.
func Unsupported(detail string) error {
	return fmt.Errorf("%w: %s", ErrUnsupportedMedia, detail)
}
