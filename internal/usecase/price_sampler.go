package usecase

import (
	"context"
	"sync"
	"time"

	"CoinPulse/internal/domain/models"
	drepo "CoinPulse/internal/domain/repository"
	applogger "CoinPulse/pkg/logger"
)

// SampledPriceMetric is the metric type written by the live price feed.
const SampledPriceMetric = "price_usd_5m"

// RecordSink accepts sampled records, normally the ingest pipeline.
type RecordSink interface {
	Process(ctx context.Context, r models.MetricRecord) error
}

// PriceSampler reads the live trade stream and writes the last traded price
// of each asset once per interval.
type PriceSampler struct {
	stream   drepo.PriceStream
	sink     RecordSink
	metrics  drepo.Metrics
	symbols  map[string]string
	interval time.Duration
	l        *applogger.Logger
	now      func() time.Time

	mu     sync.Mutex
	latest map[string]models.PriceTick
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPriceSampler maps feed symbols to asset slugs through symbols.
func NewPriceSampler(stream drepo.PriceStream, sink RecordSink, metrics drepo.Metrics, symbols map[string]string, interval time.Duration, l *applogger.Logger) *PriceSampler {
	if l == nil {
		l = applogger.Nop()
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &PriceSampler{
		stream:   stream,
		sink:     sink,
		metrics:  metrics,
		symbols:  symbols,
		interval: interval,
		l:        l.With(applogger.String("component", "price_sampler")),
		now:      time.Now,
		latest:   make(map[string]models.PriceTick),
	}
}

func (s *PriceSampler) IsConnected() bool {
	return s.stream.IsConnected()
}

// Start connects the stream and runs the read and flush loops until Stop.
func (s *PriceSampler) Start(ctx context.Context) error {
	if err := s.stream.Connect(ctx); err != nil {
		return err
	}
	if err := s.stream.Subscribe(ctx); err != nil {
		_ = s.stream.Close()
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	s.wg.Add(2)
	go s.consume(ctx)
	go s.flushLoop(ctx)
	return nil
}

func (s *PriceSampler) consume(ctx context.Context) {
	defer s.wg.Done()
	for {
		ticks, errs := s.stream.Read(ctx)
		err := s.drain(ctx, ticks, errs)
		if ctx.Err() != nil {
			return
		}
		s.recordError("price_feed")
		s.l.Warn("price feed interrupted, reconnecting", applogger.Error(err))
		for {
			err := s.stream.Reconnect(ctx)
			if err == nil {
				break
			}
			if ctx.Err() != nil {
				return
			}
			s.recordError("price_feed_reconnect")
			s.l.Error("price feed reconnect failed", applogger.Error(err))
		}
	}
}

// drain consumes one connection's channels until they close.
func (s *PriceSampler) drain(ctx context.Context, ticks <-chan *models.PriceTick, errs <-chan error) error {
	var readErr error
	for ticks != nil || errs != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			readErr = err
		case t, ok := <-ticks:
			if !ok {
				ticks = nil
				continue
			}
			s.Observe(t)
		}
	}
	return readErr
}

// Observe keeps t if it is the newest tick of a tracked symbol.
func (s *PriceSampler) Observe(t *models.PriceTick) {
	if t == nil {
		return
	}
	slug, ok := s.symbols[t.Symbol]
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.latest[slug]; ok && prev.Timestamp.After(t.Timestamp) {
		return
	}
	s.latest[slug] = *t
}

func (s *PriceSampler) flushLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Flush(ctx)
		}
	}
}

// Flush writes one record per asset seen since the last flush, stamped
// with the start of the current interval. It returns how many were
// accepted downstream.
func (s *PriceSampler) Flush(ctx context.Context) int {
	s.mu.Lock()
	batch := s.latest
	s.latest = make(map[string]models.PriceTick, len(batch))
	s.mu.Unlock()

	if len(batch) == 0 {
		return 0
	}
	at := s.now().UTC().Truncate(s.interval)
	var n int
	for slug, t := range batch {
		price := t.Price
		r := models.MetricRecord{AssetSlug: slug, MetricType: SampledPriceMetric, Datetime: at, Value: &price}
		if err := s.sink.Process(ctx, r); err != nil {
			s.l.Warn("sampled price not stored", applogger.String("asset", slug), applogger.Error(err))
			continue
		}
		n++
	}
	if s.metrics != nil && n > 0 {
		s.metrics.RecordIngested("price_feed", n)
	}
	return n
}

// Stop ends the loops and closes the stream.
func (s *PriceSampler) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	err := s.stream.Close()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *PriceSampler) recordError(kind string) {
	if s.metrics != nil {
		s.metrics.RecordError(kind)
	}
}
