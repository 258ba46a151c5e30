package server

import (
	"context"
	"testing"
	"time"

	"CoinPulse/internal/usecase"
	"CoinPulse/pkg/cache"
	"CoinPulse/pkg/config"
	"CoinPulse/pkg/scheduler"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.Port = 0
	cfg.Server.ShutdownTimeout = 2 * time.Second
	return cfg
}

func TestApp_HealthChecksFollowComponents(t *testing.T) {
	app := New(Components{Config: testConfig(), Cache: cache.NewMemoryCache()})
	assert.Empty(t, app.healthChecks())

	client, mock := redismock.NewClientMock()
	app = New(Components{Config: testConfig(), Cache: cache.NewRedisCacheWithClient(client, "coinpulse")})
	checks := app.healthChecks()
	require.Contains(t, checks, "redis")

	mock.ExpectPing().SetVal("PONG")
	assert.NoError(t, checks["redis"](context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApp_StartAndShutdown(t *testing.T) {
	app := New(Components{Config: testConfig(), Cache: cache.NewMemoryCache()})

	require.NoError(t, app.Start(context.Background()))
	assert.NotNil(t, app.httpServer)
	assert.NoError(t, app.Shutdown(context.Background()))
}

func TestApp_StartRejectsBadSchedule(t *testing.T) {
	cfg := testConfig()
	cfg.Scheduler.Enabled = true
	cfg.Scheduler.Cron = "every monday"

	app := New(Components{
		Config:    cfg,
		Scheduler: scheduler.New(nil),
		Reports:   usecase.NewReportScheduler(nil, nil, nil, time.Minute, nil),
	})
	assert.Error(t, app.Start(context.Background()))
	assert.Nil(t, app.httpServer, "http server is not started after a setup error")
}
