package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"CoinPulse/internal/domain/models"
	"CoinPulse/internal/service/metrics"
	"CoinPulse/internal/service/ratelimit"
	"CoinPulse/internal/usecase"
	xhttp "CoinPulse/pkg/http"
	applogger "CoinPulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

type ReportRunner interface {
	Run(ctx context.Context, req usecase.ReportRequest) (models.RunResult, error)
}

type WelcomeRunner interface {
	Run(ctx context.Context, userID string, slugs []string) (models.RunResult, error)
	Enqueue(ctx context.Context, userID string, slugs []string) (string, error)
}

type ScoreReader interface {
	Latest(ctx context.Context, assetSlug string, limit int) (models.ScoreHistory, error)
}

// RateLimit is the per-client token bucket applied to every /api route.
type RateLimit struct {
	Capacity     float64
	RefillPerSec float64
}

// ReportsHandler serves the report and score history endpoints.
type ReportsHandler struct {
	reports ReportRunner
	welcome WelcomeRunner
	scores  ScoreReader
	rl      *ratelimit.Limiter
	rate    RateLimit
	timeout time.Duration
	l       *applogger.Logger
}

var _ xhttp.Handler = (*ReportsHandler)(nil)

func NewReportsHandler(reports ReportRunner, welcome WelcomeRunner, scores ScoreReader, rate RateLimit, timeout time.Duration, l *applogger.Logger) *ReportsHandler {
	if l == nil {
		l = applogger.Nop()
	}
	metrics.Register(nil)
	return &ReportsHandler{
		reports: reports,
		welcome: welcome,
		scores:  scores,
		rl:      ratelimit.New(),
		rate:    rate,
		timeout: timeout,
		l:       l,
	}
}

func (h *ReportsHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api", h.rateLimit)
	g.POST("/reports/generate", h.Generate)
	g.POST("/reports/welcome", h.Welcome)
	g.GET("/scores/:asset", h.Scores)
}

func (h *ReportsHandler) rateLimit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if h.rate.Capacity <= 0 {
			return next(c)
		}
		if !h.rl.Allow(c.RealIP(), h.rate.Capacity, h.rate.RefillPerSec) {
			metrics.RateLimited.WithLabelValues(c.Path()).Inc()
			h.l.Warn("api rate limited",
				applogger.String("remote", c.RealIP()),
				applogger.String("route", c.Path()))
			return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("too many requests, slow down"))
		}
		return next(c)
	}
}

// Generate runs the full pipeline for one asset within the request.
func (h *ReportsHandler) Generate(c echo.Context) error {
	req := &models.GenerateReportRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return h.badRequest(c, "generate", verr)
	}

	ctx, cancel := h.runContext(c)
	defer cancel()

	asset := models.Asset{
		Slug:   strings.ToLower(strings.TrimSpace(req.AssetSlug)),
		Name:   req.AssetName,
		Symbol: req.AssetSymbol,
	}
	res, err := h.reports.Run(ctx, usecase.ReportRequest{Asset: asset, Recipients: req.UserEmails})
	if err != nil {
		h.l.Error("generate report failed", applogger.String("asset", asset.Slug), applogger.Error(err))
		return h.failure(c, "generate", res, err)
	}
	return h.result(c, "generate", res)
}

// Welcome runs the welcome report, or queues it when async is set.
func (h *ReportsHandler) Welcome(c echo.Context) error {
	req := &models.WelcomeReportRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return h.badRequest(c, "welcome", verr)
	}

	if req.Async {
		id, err := h.welcome.Enqueue(c.Request().Context(), req.UserID, req.AssetSlugs)
		if err != nil {
			h.l.Error("enqueue welcome report failed", applogger.String("user_id", req.UserID), applogger.Error(err))
			return h.failure(c, "welcome", models.RunResult{}, err)
		}
		return h.respond(c, "welcome", http.StatusAccepted, models.ReportResponse{Success: true, Queued: true, JobID: id})
	}

	ctx, cancel := h.runContext(c)
	defer cancel()

	res, err := h.welcome.Run(ctx, req.UserID, req.AssetSlugs)
	if err != nil {
		h.l.Error("welcome report failed", applogger.String("user_id", req.UserID), applogger.Error(err))
		return h.failure(c, "welcome", res, err)
	}
	return h.result(c, "welcome", res)
}

// Scores returns the score history of an asset with the latest delta.
func (h *ReportsHandler) Scores(c echo.Context) error {
	req := &models.ScoreHistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.scores.Latest(c.Request().Context(), strings.ToLower(req.Asset), req.Limit)
	if err != nil {
		h.l.Error("score history failed", applogger.String("asset", req.Asset), applogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalErrorf("could not load score history").WithError(err))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=60")
	return xhttp.SuccessResponse(c, res)
}

func (h *ReportsHandler) runContext(c echo.Context) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return context.WithCancel(c.Request().Context())
	}
	return context.WithTimeout(c.Request().Context(), h.timeout)
}

func (h *ReportsHandler) result(c echo.Context, endpoint string, res models.RunResult) error {
	return h.respond(c, endpoint, http.StatusOK, models.NewReportResponse(res, nil))
}

// failure maps unknown assets or recipients to 404 and everything else to
// 500. The debug block is kept so callers can see the stage reached.
func (h *ReportsHandler) failure(c echo.Context, endpoint string, res models.RunResult, err error) error {
	status := http.StatusInternalServerError
	if usecase.IsClientError(err) {
		status = http.StatusNotFound
	}
	return h.respond(c, endpoint, status, models.NewReportResponse(res, err))
}

func (h *ReportsHandler) badRequest(c echo.Context, endpoint string, verr []xhttp.ValidationError) error {
	metrics.ReportRequests.WithLabelValues(endpoint, strconv.Itoa(http.StatusBadRequest)).Inc()
	return xhttp.BadRequestResponse(c, verr)
}

func (h *ReportsHandler) respond(c echo.Context, endpoint string, status int, body models.ReportResponse) error {
	metrics.ReportRequests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	return c.JSON(status, body)
}
