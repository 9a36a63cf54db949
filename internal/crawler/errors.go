package crawler

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced across subsystem boundaries.
var (
	// ErrInvalidInput rejects a malformed homepage URL before job creation.
	ErrInvalidInput = errors.New("invalid homepage url")

	// ErrNoBarcode indicates a decode attempt found nothing. Non-fatal; the
	// pipeline falls back to OCR-derived recovery.
	ErrNoBarcode = errors.New("no barcode detected")

	// ErrStopped indicates a cooperative stop was honored at a checkpoint.
	ErrStopped = errors.New("crawl stopped")
)

// FatalInitError wraps a failure to acquire the browser automation engine.
// It is the only error class that aborts a job outright.
type FatalInitError struct {
	Err error
}

func (e *FatalInitError) Error() string {
	return fmt.Sprintf("browser init: %v", e.Err)
}

func (e *FatalInitError) Unwrap() error { return e.Err }

// TransientFetchError wraps a network/timeout/navigation failure. It is
// logged and contained; the job continues with the next item.
type TransientFetchError struct {
	URL string
	Err error
}

func (e *TransientFetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *TransientFetchError) Unwrap() error { return e.Err }

// IsFatal reports whether err must terminate the job.
func IsFatal(err error) bool {
	var fatal *FatalInitError
	return errors.As(err, &fatal) || errors.Is(err, ErrInvalidInput)
}
