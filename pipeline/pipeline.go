// Package pipeline validates, de-duplicates, and persists contractor records.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/cvantienen/gsaScrape/config"
	"github.com/cvantienen/gsaScrape/models"
	"github.com/cvantienen/gsaScrape/parser"
)

var (
	// ErrPipelineClosed is returned when Process is called after shutdown.
	ErrPipelineClosed = errors.New("pipeline: closed")
	// ErrPipelineCloseTimeout is returned when workers fail to drain in time.
	ErrPipelineCloseTimeout = errors.New("pipeline: close timed out")
)

// drainTimeout bounds how long Close waits for pending batches.
var drainTimeout = 30 * time.Second

// OutputWriter defines the interface for data output.
type OutputWriter interface {
	Write(records []*models.Record) error
	Close() error
	Validate() error
}

// Pipeline coordinates validation, de-duplication, and output writing.
type Pipeline struct {
	ctx       context.Context
	writer    OutputWriter
	recordCh  chan *models.Record
	batchSize int

	wg sync.WaitGroup

	seen *lru.Cache[string, struct{}]

	metrics metrics

	mu     sync.Mutex // guards closed/err
	closed bool
	err    error

	closeOnce    sync.Once
	shutdown     chan struct{}
	shutdownOnce sync.Once
}

// NewPipeline builds a pipeline sized from cfg.
func NewPipeline(ctx context.Context, writer OutputWriter, cfg *config.Config) *Pipeline {
	buffer := cfg.PipelineBufferSize
	if buffer <= 0 {
		buffer = 1
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 1
	}
	dedupe := cfg.DedupeMaxSize
	if dedupe <= 0 {
		dedupe = 1
	}
	// lru.New only fails on a non-positive size.
	seen, _ := lru.New[string, struct{}](dedupe)

	return &Pipeline{
		ctx:       ctx,
		writer:    writer,
		recordCh:  make(chan *models.Record, buffer),
		batchSize: batch,
		seen:      seen,
		metrics:   metrics{validation: make(map[string]int)},
		shutdown:  make(chan struct{}),
	}
}

// Start launches worker goroutines.
func (p *Pipeline) Start(workers int) {
	if workers <= 0 {
		workers = 1
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// Process enqueues records for downstream processing.
func (p *Pipeline) Process(records ...*models.Record) error {
	if len(records) == 0 {
		return nil
	}

	closed, err := p.state()
	if err != nil {
		return err
	}
	if closed {
		return ErrPipelineClosed
	}

	for _, r := range records {
		if r == nil {
			continue
		}
		if err := p.enqueue(r); err != nil {
			return err
		}
	}
	return nil
}

// Close stops accepting records and waits up to drainTimeout for the
// workers to flush what is already queued.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.closeOnce.Do(func() {
		close(p.recordCh)
	})

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(drainTimeout):
		p.signalShutdown()
		return fmt.Errorf("%w after %s", ErrPipelineCloseTimeout, drainTimeout)
	}

	p.signalShutdown()
	return p.Err()
}

// Err returns the first error encountered during processing.
func (p *Pipeline) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// GetMetrics returns a snapshot of the internal counters.
func (p *Pipeline) GetMetrics() map[string]interface{} {
	return p.metrics.snapshot()
}

// StartMetricsReporting emits periodic progress logs.
func (p *Pipeline) StartMetricsReporting(interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				m := p.GetMetrics()
				slog.Info("pipeline progress",
					slog.Int64("processed", m["processed_records"].(int64)),
					slog.Any("rejected", m["validation_errors"]),
				)
			case <-p.shutdown:
				return
			}
		}
	}()
}

func (p *Pipeline) worker() {
	defer p.wg.Done()

	batch := make([]*models.Record, 0, p.batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := p.writer.Write(batch); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}

	for r := range p.recordCh {
		if !p.accept(r) {
			continue
		}
		batch = append(batch, r)
		if len(batch) >= p.batchSize {
			if err := flush(); err != nil {
				p.setErr(fmt.Errorf("write batch: %w", err))
				return
			}
		}
	}

	if err := flush(); err != nil {
		p.setErr(fmt.Errorf("write batch: %w", err))
	}
}

func (p *Pipeline) accept(r *models.Record) bool {
	if err := parser.ValidateRecord(r); err != nil {
		slog.Warn("record rejected", slog.String("error", err.Error()))
		p.metrics.addValidation("invalid_record")
		return false
	}

	if found, _ := p.seen.ContainsOrAdd(r.SourceURL, struct{}{}); found {
		slog.Warn("duplicate record dropped", slog.String("url", r.SourceURL))
		p.metrics.addValidation("duplicate_url")
		return false
	}

	p.metrics.incrementProcessed()
	return true
}

func (p *Pipeline) enqueue(r *models.Record) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = ErrPipelineClosed
		}
	}()

	select {
	case <-p.shutdown:
		return ErrPipelineClosed
	case <-p.ctx.Done():
		return p.ctx.Err()
	case p.recordCh <- r:
		return nil
	}
}

func (p *Pipeline) setErr(err error) {
	if err == nil {
		return
	}

	p.mu.Lock()
	if p.err != nil {
		p.mu.Unlock()
		return
	}
	p.err = err
	p.closed = true
	p.mu.Unlock()

	p.signalShutdown()
	// Drain so producers blocked on a full buffer are released.
	go func() {
		for range p.recordCh {
		}
	}()
}

func (p *Pipeline) state() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed, p.err
}

func (p *Pipeline) signalShutdown() {
	p.shutdownOnce.Do(func() {
		close(p.shutdown)
	})
}

type metrics struct {
	mu         sync.Mutex
	processed  int64
	validation map[string]int
}

func (m *metrics) incrementProcessed() {
	m.mu.Lock()
	m.processed++
	m.mu.Unlock()
}

func (m *metrics) addValidation(kind string) {
	m.mu.Lock()
	m.validation[kind]++
	m.mu.Unlock()
}

func (m *metrics) snapshot() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	return map[string]interface{}{
		"processed_records": m.processed,
		"validation_errors": maps.Clone(m.validation),
	}
}
