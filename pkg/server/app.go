package server

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"CoinPulse/internal/middleware"
	"CoinPulse/internal/usecase"
	"CoinPulse/pkg/cache"
	pkgch "CoinPulse/pkg/clickhouse"
	"CoinPulse/pkg/config"
	"CoinPulse/pkg/database"
	xhttp "CoinPulse/pkg/http"
	pkgkafka "CoinPulse/pkg/kafka"
	applogger "CoinPulse/pkg/logger"
	"CoinPulse/pkg/queue"
	"CoinPulse/pkg/scheduler"

	"gorm.io/gorm"
)

// Components are the long-lived parts the App starts and stops. Queue,
// Producer, Consumer, Pipeline and Sampler may be nil when their backend is
// disabled.
type Components struct {
	Config     *config.Config
	Logger     *applogger.Logger
	Handler    xhttp.Handler
	ClickHouse *pkgch.Client
	DB         *gorm.DB
	Cache      cache.Service
	Queue      *queue.RedisQueue
	Jobs       []queue.Job
	Scheduler  *scheduler.Scheduler
	Reports    *usecase.ReportScheduler
	Producer   *pkgkafka.Producer
	Consumer   *pkgkafka.Consumer
	Ingest     *usecase.MetricsIngestHandler
	Pipeline   *middleware.IngestPipeline
	Sampler    *usecase.PriceSampler
}

var errFeedDisconnected = errors.New("price feed disconnected")

// App encapsulates the entire application lifecycle.
type App struct {
	Components
	cfg        *config.Config
	l          *applogger.Logger
	httpServer *xhttp.Server
}

func New(c Components) *App {
	l := c.Logger
	if l == nil {
		l = applogger.Nop()
	}
	return &App{Components: c, cfg: c.Config, l: l}
}

// Run starts every component and blocks until SIGINT or SIGTERM.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx); err != nil {
		_ = a.Shutdown(context.Background())
		return err
	}

	<-ctx.Done()
	a.l.Info("shutdown signal received")
	return a.Shutdown(context.Background())
}

// Start launches the workers and the HTTP server. It does not block.
func (a *App) Start(ctx context.Context) error {
	if a.Queue != nil {
		a.Queue.RegisterJobs(a.Jobs)
		if err := a.Queue.Start(); err != nil {
			a.l.Error("job queue start error", applogger.Error(err))
			return err
		}
		a.l.Info("job queue started", applogger.Int("jobs", len(a.Jobs)))
	}

	if a.cfg.Scheduler.Enabled && a.Scheduler != nil && a.Reports != nil {
		id, err := a.Scheduler.AddJob(a.cfg.Scheduler.Cron, a.Reports)
		if err != nil {
			a.l.Error("scheduler setup error", applogger.Error(err))
			return err
		}
		a.Scheduler.Start()
		a.l.Info("report scheduler started",
			applogger.String("cron", a.cfg.Scheduler.Cron),
			applogger.Time("next", a.Scheduler.Next(id)))
	}

	if a.Consumer != nil && a.Ingest != nil {
		a.Consumer.RegisterHandler(a.Ingest)
		go func() {
			if err := a.Consumer.Start(); err != nil {
				a.l.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.l.Info("kafka consumer started", applogger.String("topic", a.Ingest.Topic()))
	}

	if a.Sampler != nil {
		if a.Pipeline != nil {
			a.Pipeline.Start(ctx)
		}
		// a feed outage must not keep the report API down
		if err := a.Sampler.Start(ctx); err != nil {
			a.l.Error("price feed start error", applogger.Error(err))
		} else {
			a.l.Info("price feed started", applogger.Int("symbols", len(a.cfg.Ingest.PriceFeed.Symbols)))
		}
	}

	opts := []xhttp.ServerOption{
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithSlowRequest(a.cfg.Server.SlowRequest),
		xhttp.WithLogger(a.l),
	}
	if a.cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetricsPath(a.cfg.Metrics.Path))
	}
	for name, check := range a.healthChecks() {
		opts = append(opts, xhttp.WithHealthCheck(name, check))
	}
	a.httpServer = xhttp.NewServer(a.Handler, opts...)

	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		return err
	}
	return nil
}

func (a *App) healthChecks() map[string]xhttp.HealthCheck {
	checks := make(map[string]xhttp.HealthCheck)
	if a.ClickHouse != nil {
		checks["clickhouse"] = a.ClickHouse.Health
	}
	if a.DB != nil {
		checks["postgres"] = func(ctx context.Context) error {
			sqlDB, err := a.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}
	}
	if rc, ok := a.Cache.(*cache.RedisCache); ok {
		checks["redis"] = func(ctx context.Context) error {
			return rc.Client().Ping(ctx).Err()
		}
	}
	if a.Sampler != nil {
		checks["price_feed"] = func(context.Context) error {
			if !a.Sampler.IsConnected() {
				return errFeedDisconnected
			}
			return nil
		}
	}
	return checks
}

// Shutdown stops intake first, then workers, then closes clients.
func (a *App) Shutdown(ctx context.Context) error {
	a.l.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if a.httpServer != nil {
		if err := a.httpServer.Stop(shutdownCtx); err != nil {
			a.l.Error("http shutdown error", applogger.Error(err))
		}
	}

	if a.Scheduler != nil {
		if err := a.Scheduler.Stop(shutdownCtx); err != nil {
			a.l.Warn("scheduler stop error", applogger.Error(err))
		}
	}

	if a.Sampler != nil {
		if err := a.Sampler.Stop(shutdownCtx); err != nil {
			a.l.Warn("price feed stop error", applogger.Error(err))
		}
	}
	if a.Pipeline != nil {
		a.Pipeline.Stop()
	}

	if a.Consumer != nil {
		if err := a.Consumer.Stop(shutdownCtx); err != nil {
			a.l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if a.Queue != nil {
		if err := a.Queue.Stop(shutdownCtx); err != nil {
			a.l.Warn("job queue stop error", applogger.Error(err))
		}
	}

	// the collector publishes through the producer, so it goes first
	a.l.RemoveCollector()
	if a.Producer != nil {
		if err := a.Producer.Close(); err != nil {
			a.l.Warn("kafka producer close error", applogger.Error(err))
		}
	}

	if a.ClickHouse != nil {
		if err := a.ClickHouse.Close(); err != nil {
			a.l.Warn("clickhouse close error", applogger.Error(err))
		}
	}
	if err := database.Close(a.DB); err != nil {
		a.l.Warn("postgres close error", applogger.Error(err))
	}
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			a.l.Warn("cache close error", applogger.Error(err))
		}
	}

	a.l.Info("shutdown complete")
	return nil
}
