package models

import (
	"errors"
	"fmt"
)

// Sentinel errors returned synchronously from the campaign control surface.
var (
	// ErrConflict is returned when an owner already has a running campaign.
	ErrConflict = errors.New("campaign already running for owner")

	// ErrNotFound is returned when a campaign does not exist or is not owned
	// by the caller.
	ErrNotFound = errors.New("campaign not found")

	// ErrNoMessage is returned when the queue is empty.
	ErrNoMessage = errors.New("no messages in queue")

	// ErrDuplicateJob is returned when a scraped job with the same posting URL
	// already exists.
	ErrDuplicateJob = errors.New("scraped job already exists")

	// ErrCorruptItem is returned when a scraped item is missing required
	// fields (title, company). The item is discarded; the loop continues.
	ErrCorruptItem = errors.New("scraped item missing required fields")
)

// TransientError wraps a network/5xx/timeout failure from an upstream
// service. Transient errors are retried with exponential backoff up to a
// fixed attempt ceiling.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient upstream error: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err is (or wraps) a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// MalformedResponseError indicates the analyzer returned non-JSON output or
// JSON missing a required field. Retried on a smaller budget than transient
// errors, then surfaced as a hard failure.
type MalformedResponseError struct {
	Field string
	Err   error
}

func (e *MalformedResponseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("malformed analyzer response: missing %s", e.Field)
	}
	return fmt.Sprintf("malformed analyzer response: %v", e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// IsMalformed reports whether err is (or wraps) a MalformedResponseError.
func IsMalformed(err error) bool {
	var me *MalformedResponseError
	return errors.As(err, &me)
}

// TruncatedError indicates the analyzer output hit its token ceiling. The
// caller retries with a doubled token budget up to a hard maximum.
type TruncatedError struct {
	MaxTokens int
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("analyzer output truncated at %d tokens", e.MaxTokens)
}

// IsTruncated reports whether err is (or wraps) a TruncatedError.
func IsTruncated(err error) bool {
	var te *TruncatedError
	return errors.As(err, &te)
}
