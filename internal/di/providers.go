package di

import (
	"context"
	"fmt"
	"time"

	"CoinPulse/internal/domain/repository"
	domsvc "CoinPulse/internal/domain/service"
	"CoinPulse/internal/handler/api"
	mid "CoinPulse/internal/middleware"
	internalrepo "CoinPulse/internal/repository"
	"CoinPulse/internal/service/pricefeed"
	"CoinPulse/internal/services/chart"
	"CoinPulse/internal/services/document"
	"CoinPulse/internal/services/mailer"
	"CoinPulse/internal/services/narrative"
	"CoinPulse/internal/usecase"
	"CoinPulse/pkg/cache"
	pkgch "CoinPulse/pkg/clickhouse"
	"CoinPulse/pkg/config"
	"CoinPulse/pkg/database"
	pkgkafka "CoinPulse/pkg/kafka"
	applogger "CoinPulse/pkg/logger"
	"CoinPulse/pkg/metrics"
	"CoinPulse/pkg/queue"
	"CoinPulse/pkg/scheduler"
	"CoinPulse/pkg/server"

	kafkago "github.com/segmentio/kafka-go"
	"gorm.io/gorm"
)

// ProvideLogger builds the application logger. When the log collector is
// enabled, aggregated error batches go to the logs topic.
func ProvideLogger(cfg *config.Config, pub *internalrepo.KafkaPublisher) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	if cfg.Log.Collector.Enabled && pub != nil {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   cfg.Log.Collector.Interval,
			CountThreshold: cfg.Log.Collector.Threshold,
			Topic:          cfg.Kafka.Topics.Logs,
			Service:        "coinpulse",
			Publisher:      pub,
		})
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client and makes sure the
// metric table exists.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	client, err := pkgch.NewClient(ctx,
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	if err := client.InitSchema(ctx, internalrepo.MetricSchema(cfg.ClickHouse.Database, cfg.ClickHouse.Table)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideMetricStore creates the ClickHouse metric store used for reads and
// ingest writes.
func ProvideMetricStore(ch *pkgch.Client, cfg *config.Config, l *applogger.Logger) *internalrepo.ClickHouseMetricStore {
	store := internalrepo.NewClickHouseMetricStore(ch, cfg.ClickHouse.Database+"."+cfg.ClickHouse.Table)
	store.SetLogger(l)
	return store
}

// ProvideDatabase opens PostgreSQL and migrates the score and directory
// tables when enabled.
func ProvideDatabase(cfg *config.Config, l *applogger.Logger) (*gorm.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Postgres.ConnectTimeout+10*time.Second)
	defer cancel()

	db, err := database.Open(ctx, cfg.Postgres.DSN, l,
		database.WithPool(cfg.Postgres.MaxOpenConns, cfg.Postgres.MaxIdleConns, cfg.Postgres.ConnMaxLifetime),
		database.WithConnectTimeout(cfg.Postgres.ConnectTimeout),
	)
	if err != nil {
		return nil, err
	}
	if cfg.Postgres.AutoMigrate {
		if err := database.Migrate(db, internalrepo.Models()...); err != nil {
			_ = database.Close(db)
			return nil, err
		}
	}
	return db, nil
}

func ProvideDirectory(db *gorm.DB) repository.Directory {
	return internalrepo.NewDirectoryRepository(db)
}

// ProvideCache returns the Redis cache, or an in-process cache when Redis is
// disabled.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	if !cfg.Redis.Enabled {
		return cache.NewMemoryCache(), nil
	}
	c, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Redis.Host),
		cache.WithRedisPort(cfg.Redis.Port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return c, nil
}

// ProvideQueue shares the cache's Redis client with the job queue. It
// returns nil when Redis is disabled.
func ProvideQueue(cfg *config.Config, c cache.Service, l *applogger.Logger) *queue.RedisQueue {
	rc, ok := c.(*cache.RedisCache)
	if !ok {
		return nil
	}
	return queue.NewRedisQueue(l, &queue.QueueConfig{
		Workers:    cfg.Queue.Workers,
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
	}, rc.Client(), queue.ModeProducerConsumer, queue.WithKeyPrefix(cfg.Queue.KeyPrefix))
}

// ProvideQueueService exposes the queue to use cases. A missing queue is a
// nil interface so callers fall back to in-process runs.
func ProvideQueueService(q *queue.RedisQueue) queue.QueueService {
	if q == nil {
		return nil
	}
	return q
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is
// disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

func ProvideKafkaPublisher(producer *pkgkafka.Producer, cfg *config.Config) *internalrepo.KafkaPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topics.Events)
}

// ProvideEventPublisher returns a nil interface when Kafka is disabled.
func ProvideEventPublisher(pub *internalrepo.KafkaPublisher) repository.EventPublisher {
	if pub == nil {
		return nil
	}
	return pub
}

// ProvideKafkaConsumer creates the ingest consumer, or nil when Kafka is
// disabled.
func ProvideKafkaConsumer(cfg *config.Config, m repository.Metrics, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.HookFuncs{
		After: func(_ context.Context, topic string, km kafkago.Message, _ []byte, err error) {
			if !km.Time.IsZero() {
				m.RecordLatency("ingest_lag", time.Since(km.Time).Seconds())
			}
			if err != nil {
				l.Warn("ingest message failed",
					applogger.String("topic", topic),
					applogger.Int("partition", km.Partition),
					applogger.Int64("offset", km.Offset),
					applogger.Error(err))
			}
		},
	})
	return consumer, nil
}

// ProvideIngestHandler handles metric sync messages on the ingest topic.
func ProvideIngestHandler(store *internalrepo.ClickHouseMetricStore, m repository.Metrics, cfg *config.Config, l *applogger.Logger) *usecase.MetricsIngestHandler {
	return usecase.NewMetricsIngestHandler(cfg.Kafka.Topics.Ingest, store, m, l)
}

func ProvideTextModel(cfg *config.Config) (domsvc.TextModel, error) {
	model, err := narrative.NewGeminiModel(context.Background(), cfg.LLM.APIKey,
		narrative.WithModel(cfg.LLM.Model),
		narrative.WithTemperature(cfg.LLM.Temperature),
		narrative.WithMaxOutputTokens(cfg.LLM.MaxOutputTokens),
		narrative.WithTimeout(cfg.LLM.Timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	return model, nil
}

func ProvideNarrator(model domsvc.TextModel, cfg *config.Config, l *applogger.Logger) *narrative.Generator {
	return narrative.NewGenerator(model, cfg.LLM.Concurrency, l)
}

func ProvideChartRenderer() *chart.Renderer {
	return chart.NewRenderer()
}

func ProvidePDFClient(cfg *config.Config) *document.PDFClient {
	return document.NewPDFClient(document.PDFConfig{
		Endpoint:   cfg.PDF.Endpoint,
		APIKey:     cfg.PDF.APIKey,
		AuthHeader: cfg.PDF.AuthHeader,
		PageFormat: cfg.PDF.PageFormat,
		Timeout:    cfg.PDF.Timeout,
	})
}

func ProvideComposer(pdf *document.PDFClient, cfg *config.Config) *document.Composer {
	return document.NewComposer(pdf, cfg.Report.DashboardURL)
}

func ProvideMailer(cfg *config.Config) *mailer.Client {
	return mailer.New(mailer.Config{
		Endpoint:     cfg.Email.Endpoint,
		APIKey:       cfg.Email.APIKey,
		From:         cfg.Email.From,
		ChunkSize:    cfg.Email.ChunkSize,
		Timeout:      cfg.Email.Timeout,
		DashboardURL: cfg.Report.DashboardURL,
	})
}

// ProvideScoreHistory puts the read-through cache in front of the score
// table.
func ProvideScoreHistory(db *gorm.DB, c cache.Service, cfg *config.Config, l *applogger.Logger) *usecase.ScoreHistory {
	return usecase.NewScoreHistory(internalrepo.NewScoreRepository(db), c, cfg.Report.HistoryCacheTTL, l)
}

func ProvideReportPipeline(
	store *internalrepo.ClickHouseMetricStore,
	scores *usecase.ScoreHistory,
	narrator *narrative.Generator,
	charts *chart.Renderer,
	composer *document.Composer,
	mail *mailer.Client,
	events repository.EventPublisher,
	m repository.Metrics,
	cfg *config.Config,
	l *applogger.Logger,
) *usecase.ReportPipeline {
	return usecase.NewReportPipeline(usecase.PipelineDeps{
		Store:    store,
		Scores:   scores,
		Narrator: narrator,
		Charts:   charts,
		Composer: composer,
		Mailer:   mail,
		Events:   events,
		Metrics:  m,
	}, cfg.Report.Lookback, l)
}

func ProvideWelcomeReport(p *usecase.ReportPipeline, dir repository.Directory, q queue.QueueService, cfg *config.Config, l *applogger.Logger) *usecase.WelcomeReport {
	return usecase.NewWelcomeReport(p, dir, q, cfg.Report.WelcomeLookback, cfg.Report.RunTimeout, l)
}

// ProvideReportJobs lists the queue jobs this process handles.
func ProvideReportJobs(p *usecase.ReportPipeline, w *usecase.WelcomeReport, cfg *config.Config) []queue.Job {
	return []queue.Job{
		usecase.NewReportJob(p, cfg.Report.RunTimeout),
		usecase.NewWelcomeJob(w, cfg.Report.RunTimeout),
	}
}

func ProvideReportScheduler(dir repository.Directory, q queue.QueueService, c cache.Service, cfg *config.Config, l *applogger.Logger) *usecase.ReportScheduler {
	return usecase.NewReportScheduler(dir, q, c, cfg.Scheduler.LockTTL, l)
}

func ProvideScheduler(cfg *config.Config, l *applogger.Logger) *scheduler.Scheduler {
	return scheduler.New(l, scheduler.WithJobTimeout(cfg.Report.RunTimeout))
}

// ProvideIngestPipeline throttles and buffers live price samples on their
// way to ClickHouse. It is nil when the price feed is disabled.
func ProvideIngestPipeline(store *internalrepo.ClickHouseMetricStore, m repository.Metrics, cfg *config.Config, l *applogger.Logger) *mid.IngestPipeline {
	if !cfg.Ingest.PriceFeed.Enabled {
		return nil
	}
	return mid.NewIngestPipeline(mid.WriterProc{W: store}, m,
		mid.WithMaxRPS(cfg.Ingest.MaxRPS),
		mid.WithBufferSize(cfg.Ingest.BufferSize),
		mid.WithPipelineLogger(l),
	)
}

// ProvidePriceSampler is nil when the price feed is disabled.
func ProvidePriceSampler(pipe *mid.IngestPipeline, m repository.Metrics, cfg *config.Config, l *applogger.Logger) *usecase.PriceSampler {
	if pipe == nil {
		return nil
	}
	feed := cfg.Ingest.PriceFeed
	symbols := make([]string, 0, len(feed.Symbols))
	for s := range feed.Symbols {
		symbols = append(symbols, s)
	}
	stream := pricefeed.New(feed.APIKey, feed.WebSocketURL, symbols, feed.ReconnectDelay, feed.PingInterval, l)
	return usecase.NewPriceSampler(stream, pipe, m, feed.Symbols, feed.SampleInterval, l)
}

func ProvideReportsHandler(
	p *usecase.ReportPipeline,
	w *usecase.WelcomeReport,
	scores *usecase.ScoreHistory,
	cfg *config.Config,
	l *applogger.Logger,
) *api.ReportsHandler {
	rate := api.RateLimit{
		Capacity:     cfg.Server.RateLimit.Capacity,
		RefillPerSec: cfg.Server.RateLimit.RefillPerSec,
	}
	return api.NewReportsHandler(p, w, scores, rate, cfg.Report.RunTimeout, l)
}

// ProvideApp assembles the application lifecycle.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	handler *api.ReportsHandler,
	ch *pkgch.Client,
	db *gorm.DB,
	c cache.Service,
	q *queue.RedisQueue,
	jobs []queue.Job,
	sched *scheduler.Scheduler,
	reports *usecase.ReportScheduler,
	producer *pkgkafka.Producer,
	consumer *pkgkafka.Consumer,
	ingest *usecase.MetricsIngestHandler,
	pipe *mid.IngestPipeline,
	sampler *usecase.PriceSampler,
) *server.App {
	return server.New(server.Components{
		Config:     cfg,
		Logger:     l,
		Handler:    handler,
		ClickHouse: ch,
		DB:         db,
		Cache:      c,
		Queue:      q,
		Jobs:       jobs,
		Scheduler:  sched,
		Reports:    reports,
		Producer:   producer,
		Consumer:   consumer,
		Ingest:     ingest,
		Pipeline:   pipe,
		Sampler:    sampler,
	})
}

// Reporting is the part of the graph a one-shot report run needs.
type Reporting struct {
	Pipeline  *usecase.ReportPipeline
	Directory repository.Directory
	Logger    *applogger.Logger
	closers   []func() error
}

func ProvideReporting(
	p *usecase.ReportPipeline,
	dir repository.Directory,
	l *applogger.Logger,
	ch *pkgch.Client,
	db *gorm.DB,
	c cache.Service,
	producer *pkgkafka.Producer,
) *Reporting {
	r := &Reporting{Pipeline: p, Directory: dir, Logger: l}
	if producer != nil {
		r.closers = append(r.closers, producer.Close)
	}
	r.closers = append(r.closers, ch.Close, func() error { return database.Close(db) }, c.Close)
	return r
}

// Close releases the clients in reverse order of creation.
func (r *Reporting) Close() {
	r.Logger.RemoveCollector()
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			r.Logger.Warn("close error", applogger.Error(err))
		}
	}
}
