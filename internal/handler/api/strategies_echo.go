package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	models "OptionScan/internal/domain/models"
	"OptionScan/internal/usecase"
	xhttp "OptionScan/pkg/http"
	xlogger "OptionScan/pkg/logger"

	"github.com/labstack/echo/v4"
)

// Screener is the scan use case behind POST /api/scan.
type Screener interface {
	Screen(ctx context.Context, p usecase.ScanParams) (*models.ScanResult, error)
}

// StrategiesEchoHandler serves the scan, quote, strategy and export routes.
type StrategiesEchoHandler struct {
	logger     *xlogger.Logger
	screener   Screener
	quotes     *usecase.QuoteService
	strategies *usecase.StrategyService
	health     *usecase.HealthService
	scanMW     []echo.MiddlewareFunc
}

func NewStrategiesEchoHandler(
	logger *xlogger.Logger,
	screener Screener,
	quotes *usecase.QuoteService,
	strategies *usecase.StrategyService,
	health *usecase.HealthService,
	scanMW ...echo.MiddlewareFunc,
) *StrategiesEchoHandler {
	return &StrategiesEchoHandler{
		logger:     logger,
		screener:   screener,
		quotes:     quotes,
		strategies: strategies,
		health:     health,
		scanMW:     scanMW,
	}
}

func (h *StrategiesEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)

	g := e.Group("/api")
	g.POST("/scan", h.Scan, h.scanMW...)
	g.GET("/quote/:ticker", h.Quote)
	g.GET("/strategy/:id", h.Strategy)
	g.POST("/export", h.Export)
}

func (h *StrategiesEchoHandler) Scan(c echo.Context) error {
	req := &models.ScanRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	profile := models.RiskProfile(req.RiskProfile)

	res, err := h.screener.Screen(c.Request().Context(), usecase.ScanParams{
		Ticker:        req.Ticker,
		RiskProfile:   profile,
		MinDTE:        req.MinDTE,
		MaxDTE:        req.MaxDTE,
		MaxStrategies: req.MaxStrategies,
	})
	if err != nil {
		if errors.Is(err, models.ErrInvalidArgument) {
			return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_REQUIRED", "ticker", "ticker is required", http.StatusBadRequest))
		}
		return fmt.Errorf("scan %s: %w", req.Ticker, err)
	}
	return xhttp.SuccessResponse(c, models.NewScanResponse(res))
}

func (h *StrategiesEchoHandler) Quote(c echo.Context) error {
	req := &models.QuoteRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	q, err := h.quotes.Quote(c.Request().Context(), req.Ticker)
	switch {
	case err == nil:
		c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
		return xhttp.SuccessResponse(c, q)
	case errors.Is(err, models.ErrQuoteNotFound):
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no quote for %s", req.Ticker))
	case errors.Is(err, models.ErrInvalidArgument):
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("ticker is required"))
	default:
		return fmt.Errorf("quote %s: %w", req.Ticker, err)
	}
}

func (h *StrategiesEchoHandler) Strategy(c echo.Context) error {
	req := &models.StrategyRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	s, err := h.strategies.Get(c.Request().Context(), req.ID)
	if err != nil {
		if errors.Is(err, models.ErrStrategyNotFound) {
			return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("strategy %s not found", req.ID))
		}
		return fmt.Errorf("strategy %s: %w", req.ID, err)
	}
	return xhttp.SuccessResponse(c, s)
}

func (h *StrategiesEchoHandler) Export(c echo.Context) error {
	req := &models.ExportRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	out := h.strategies.Export(req.Strategies)
	name := fmt.Sprintf("optionscan-strategies-%s.json", out.GeneratedAt.Format(time.DateOnly))
	return xhttp.AttachmentJSONResponse(c, name, out)
}

func (h *StrategiesEchoHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.health.Check(c.Request().Context()))
}

var _ xhttp.Handler = (*StrategiesEchoHandler)(nil)
