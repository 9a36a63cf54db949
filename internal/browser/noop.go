package browser

import (
	"context"
	"errors"

	"github.com/shelfscan/shelfscan/internal/crawler"
)

// Noop implements crawler.Browser but always fails to hand out pages,
// signaling that browser automation is not available in the current build.
type Noop struct{}

// NewNoop creates a Noop browser.
func NewNoop() *Noop {
	return &Noop{}
}

// NewPage returns an error since this is a stub implementation.
func (Noop) NewPage(_ context.Context) (crawler.Page, error) {
	return nil, errors.New("browser automation not configured")
}

// Close does nothing.
func (Noop) Close(_ context.Context) error { return nil }
