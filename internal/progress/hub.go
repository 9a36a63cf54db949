package progress

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Sink receives events from a Hub. Implementations must tolerate concurrent
// Close of the hub; Emit is never called after Close returns.
type Sink interface {
	Emit(ctx context.Context, event Event) error
}

// Config controls buffering for the Hub.
type Config struct {
	// BufferSize is the size of the internal channel (default 1024).
	BufferSize int
	// SinkTimeout bounds each sink call (default 5s).
	SinkTimeout time.Duration
	// Logger is used for warnings; nil means silent.
	Logger *zap.Logger
}

const (
	defaultBufferSize  = 1024
	defaultSinkTimeout = 5 * time.Second
)

// Hub accepts Events and fans them out to sinks on a background goroutine.
// Publish never blocks the caller; events are dropped when the buffer is
// full.
type Hub struct {
	sinks       []Sink
	events      chan Event
	doneCh      chan struct{}
	sinkTimeout time.Duration
	logger      *zap.Logger
	dropped     atomic.Int64
	closed      atomic.Bool
	closeOnce   sync.Once
}

// NewHub starts a Hub delivering to the supplied sinks.
func NewHub(cfg Config, sinks ...Sink) *Hub {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultBufferSize
	}
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = defaultSinkTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		sinks:       append([]Sink(nil), sinks...),
		events:      make(chan Event, cfg.BufferSize),
		doneCh:      make(chan struct{}),
		sinkTimeout: cfg.SinkTimeout,
		logger:      logger,
	}
	go h.run()
	return h
}

// Publish enqueues an event. Invalid events and events after Close are
// counted as dropped.
func (h *Hub) Publish(event Event) {
	if h == nil {
		return
	}
	if h.closed.Load() || event.Validate() != nil {
		h.dropped.Add(1)
		return
	}
	select {
	case h.events <- event:
	default:
		h.dropped.Add(1)
	}
}

// Dropped reports how many events were discarded.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// Close stops intake, flushes buffered events, and waits for delivery to
// finish.
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		h.closed.Store(true)
		close(h.events)
		<-h.doneCh
	})
}

func (h *Hub) run() {
	defer close(h.doneCh)
	for event := range h.events {
		h.deliver(event)
	}
}

func (h *Hub) deliver(event Event) {
	for _, sink := range h.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), h.sinkTimeout)
		if err := sink.Emit(ctx, event); err != nil {
			h.logger.Warn("progress sink failed",
				zap.String("stage", string(event.Stage)),
				zap.Error(err),
			)
		}
		cancel()
	}
}
