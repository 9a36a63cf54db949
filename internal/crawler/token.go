package crawler

import "sync/atomic"

// StopToken is the cooperative cancellation handle threaded through the
// traversal and extraction calls. It is checked only at the documented
// suspension points (category boundary, product boundary); an in-flight page
// load or recognition call always completes.
type StopToken struct {
	stopped atomic.Bool
}

// NewStopToken returns an unset token.
func NewStopToken() *StopToken {
	return &StopToken{}
}

// Stop requests a cooperative shutdown. Safe for concurrent use.
func (t *StopToken) Stop() {
	if t == nil {
		return
	}
	t.stopped.Store(true)
}

// Stopped reports whether a stop was requested.
func (t *StopToken) Stopped() bool {
	return t != nil && t.stopped.Load()
}
