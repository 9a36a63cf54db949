// Package recognize runs the per-image barcode and OCR fusion pipeline:
// preprocessing fallback chains, content classification, and field parsing.
package recognize

import (
	"context"
	"errors"
	"image"
	"sync"

	"go.uber.org/zap"

	"github.com/shelfscan/shelfscan/internal/crawler"
	"github.com/shelfscan/shelfscan/internal/metrics"
)

// ErrPoolStopped is returned when Recognize is called without an active
// retain on the pool.
var ErrPoolStopped = errors.New("recognize: ocr pool not running")

type ocrTask struct {
	ctx context.Context
	img image.Image
	out chan ocrOutcome
}

type ocrOutcome struct {
	result crawler.OCRResult
	err    error
}

// Pool serves OCR requests through a fixed set of workers and one FIFO
// queue. OCR is the expensive shared resource: every crawl job in the
// process submits here rather than owning engine instances. The pool is
// reference counted; workers start on the first Retain and drain on the
// last Release, so the process pays for engine warmup only while a job is
// actually running.
//
// Pool itself satisfies crawler.OCREngine.
type Pool struct {
	engine  crawler.OCREngine
	logger  *zap.Logger
	workers int
	depth   int

	mu    sync.Mutex
	refs  int
	tasks chan ocrTask
	wg    sync.WaitGroup
}

// NewPool wraps engine with a bounded worker pool.
func NewPool(engine crawler.OCREngine, workers, queueDepth int, logger *zap.Logger) *Pool {
	if workers <= 0 {
		workers = 2
	}
	if queueDepth <= 0 {
		queueDepth = 64
	}
	return &Pool{
		engine:  engine,
		logger:  logger,
		workers: workers,
		depth:   queueDepth,
	}
}

// Retain registers a user of the pool, starting the workers on the first
// call.
func (p *Pool) Retain() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.refs++
	if p.refs > 1 {
		return
	}
	p.tasks = make(chan ocrTask, p.depth)
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(p.tasks)
	}
	p.logger.Debug("ocr pool started", zap.Int("workers", p.workers))
}

// Release drops one reference. The last release closes the queue and waits
// for in-flight recognitions to finish.
func (p *Pool) Release() {
	p.mu.Lock()
	if p.refs == 0 {
		p.mu.Unlock()
		return
	}
	p.refs--
	if p.refs > 0 {
		p.mu.Unlock()
		return
	}
	tasks := p.tasks
	p.tasks = nil
	p.mu.Unlock()

	close(tasks)
	p.wg.Wait()
	p.logger.Debug("ocr pool drained")
}

// Recognize enqueues img and blocks until a worker has processed it or ctx
// is done. Queue order is FIFO across all submitting jobs.
func (p *Pool) Recognize(ctx context.Context, img image.Image) (crawler.OCRResult, error) {
	p.mu.Lock()
	tasks := p.tasks
	p.mu.Unlock()
	if tasks == nil {
		return crawler.OCRResult{}, ErrPoolStopped
	}

	t := ocrTask{ctx: ctx, img: img, out: make(chan ocrOutcome, 1)}
	select {
	case tasks <- t:
		metrics.SetOCRQueueDepth(len(tasks))
	case <-ctx.Done():
		return crawler.OCRResult{}, ctx.Err()
	}

	select {
	case out := <-t.out:
		return out.result, out.err
	case <-ctx.Done():
		return crawler.OCRResult{}, ctx.Err()
	}
}

func (p *Pool) worker(tasks <-chan ocrTask) {
	defer p.wg.Done()
	for t := range tasks {
		metrics.SetOCRQueueDepth(len(tasks))
		if err := t.ctx.Err(); err != nil {
			t.out <- ocrOutcome{err: err}
			continue
		}
		result, err := p.engine.Recognize(t.ctx, t.img)
		t.out <- ocrOutcome{result: result, err: err}
	}
}
