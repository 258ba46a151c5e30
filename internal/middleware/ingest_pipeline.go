package middleware

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"CoinPulse/internal/domain/models"
	domrepo "CoinPulse/internal/domain/repository"
	applogger "CoinPulse/pkg/logger"
)

// Proc is the downstream the pipeline forwards accepted records to.
type Proc interface {
	Process(ctx context.Context, r models.MetricRecord) error
}

// WriterProc forwards each record to a MetricWriter as a one-row batch.
type WriterProc struct {
	W domrepo.MetricWriter
}

func (p WriterProc) Process(ctx context.Context, r models.MetricRecord) error {
	return p.W.StoreBatch(ctx, []models.MetricRecord{r})
}

var (
	ErrInvalidRecord = errors.New("invalid metric record")
	ErrBufferFull    = errors.New("ingest buffer full")
)

// IngestPipeline sits between a live source and the metric store. It
// validates records, throttles each (asset, metric) series and buffers
// records while the store is unavailable.
type IngestPipeline struct {
	proc     Proc
	metrics  domrepo.Metrics
	l        *applogger.Logger
	maxRPS   int
	bufSize  int
	bufCh    chan models.MetricRecord
	stopCh   chan struct{}
	doneCh   chan struct{}
	started  bool
	mu       sync.Mutex
	lastSeen map[string]time.Time
	now      func() time.Time
}

type PipelineOption func(*IngestPipeline)

// WithMaxRPS sets the max records per second per series. Zero disables
// throttling.
func WithMaxRPS(n int) PipelineOption {
	return func(p *IngestPipeline) {
		if n >= 0 {
			p.maxRPS = n
		}
	}
}

// WithBufferSize sets how many records are held while downstream fails.
func WithBufferSize(n int) PipelineOption {
	return func(p *IngestPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

func WithPipelineLogger(l *applogger.Logger) PipelineOption {
	return func(p *IngestPipeline) {
		if l != nil {
			p.l = l
		}
	}
}

func NewIngestPipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *IngestPipeline {
	p := &IngestPipeline{
		proc:     proc,
		metrics:  metrics,
		l:        applogger.Nop(),
		maxRPS:   1,
		bufSize:  1000,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		lastSeen: make(map[string]time.Time),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan models.MetricRecord, p.bufSize)
	return p
}

// Start launches background flushing of buffered records.
func (p *IngestPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go p.flush(ctx)
}

func (p *IngestPipeline) flush(ctx context.Context) {
	defer close(p.doneCh)
	backoff := 50 * time.Millisecond
	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case r := <-p.bufCh:
			if err := p.proc.Process(ctx, r); err != nil {
				if backoff < 2*time.Second {
					backoff *= 2
				}
				p.recordError("ingest_flush")
				select {
				case <-time.After(backoff):
				case <-p.stopCh:
					return
				}
				select {
				case p.bufCh <- r:
				default:
					p.recordError("ingest_buffer_drop")
				}
				continue
			}
			backoff = 50 * time.Millisecond
		}
	}
}

// Stop ends background flushing. Records still buffered are dropped and
// counted.
func (p *IngestPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
	<-p.doneCh
	if n := len(p.bufCh); n > 0 {
		p.l.Warn("ingest pipeline stopped with buffered records", applogger.Int("dropped", n))
	}
}

// Buffered reports how many records wait for a retry.
func (p *IngestPipeline) Buffered() int { return len(p.bufCh) }

// Process validates, throttles and forwards r. Throttled records are
// dropped without error; a downstream failure buffers r and returns the
// error.
func (p *IngestPipeline) Process(ctx context.Context, r models.MetricRecord) error {
	start := p.now()
	if err := validateRecord(r); err != nil {
		p.recordError("ingest_validate")
		return err
	}
	if !p.allow(r.AssetSlug+"/"+r.MetricType, start) {
		p.recordError("ingest_throttle")
		return nil
	}

	if err := p.proc.Process(ctx, r); err != nil {
		p.recordError("ingest_process")
		select {
		case p.bufCh <- r:
		default:
			p.recordError("ingest_buffer_full")
			return fmt.Errorf("ingest downstream: %w: %w", ErrBufferFull, err)
		}
		return fmt.Errorf("ingest downstream: %w", err)
	}
	if p.metrics != nil {
		p.metrics.RecordLatency("ingest_process", p.now().Sub(start).Seconds())
	}
	return nil
}

func validateRecord(r models.MetricRecord) error {
	switch {
	case r.AssetSlug == "":
		return fmt.Errorf("%w: asset empty", ErrInvalidRecord)
	case r.MetricType == "":
		return fmt.Errorf("%w: metric type empty", ErrInvalidRecord)
	case r.Datetime.IsZero():
		return fmt.Errorf("%w: datetime missing", ErrInvalidRecord)
	case r.Value == nil:
		return fmt.Errorf("%w: value missing", ErrInvalidRecord)
	case math.IsNaN(*r.Value) || math.IsInf(*r.Value, 0) || *r.Value < 0:
		return fmt.Errorf("%w: value %v", ErrInvalidRecord, *r.Value)
	}
	return nil
}

func (p *IngestPipeline) allow(key string, now time.Time) bool {
	if p.maxRPS <= 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	last := p.lastSeen[key]
	if !last.IsZero() && now.Sub(last) < time.Second/time.Duration(p.maxRPS) {
		return false
	}
	p.lastSeen[key] = now
	return true
}

func (p *IngestPipeline) recordError(kind string) {
	if p.metrics != nil {
		p.metrics.RecordError(kind)
	}
}
