package api

import (
	models "ChartPulse/internal/domain/models"
	"ChartPulse/internal/usecase"
	xhttp "ChartPulse/pkg/http"
	xlogger "ChartPulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

// ChartsEchoHandler exposes the chart-session engine over HTTP.
type ChartsEchoHandler struct {
	logger *xlogger.Logger
	engine *usecase.ChartEngine
}

func NewChartsEchoHandler(logger *xlogger.Logger, engine *usecase.ChartEngine) *ChartsEchoHandler {
	return &ChartsEchoHandler{logger: logger, engine: engine}
}

func (h *ChartsEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)

	g := e.Group("/api")
	g.POST("/sessions", h.StartSession)
	g.GET("/sessions/:id/snapshot", h.Snapshot)
	g.DELETE("/sessions/:id", h.StopSession)
	g.POST("/sessions/refresh", h.Refresh)
	g.POST("/watches", h.AddWatch)
	g.POST("/cache/clear", h.ClearCache)
	g.GET("/cache/telemetry", h.Telemetry)
}

func (h *ChartsEchoHandler) StartSession(c echo.Context) error {
	req := &models.StartSessionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.engine.StartSession(req.Symbol, req.Timeframe, req.BackfillBars)
	if err != nil {
		h.logger.Error("start session error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}
	return xhttp.CreatedResponse(c, res)
}

func (h *ChartsEchoHandler) Snapshot(c echo.Context) error {
	req := &models.SnapshotRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	snap, err := h.engine.GetSnapshot(c.Param("id"), req.Bars)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError(err.Error()))
	}
	return xhttp.SuccessResponse(c, snap)
}

func (h *ChartsEchoHandler) StopSession(c echo.Context) error {
	if !h.engine.StopSession(c.Param("id")) {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("unknown session %q", c.Param("id")))
	}
	return xhttp.NoContentResponse(c)
}

func (h *ChartsEchoHandler) Refresh(c echo.Context) error {
	req := &models.RefreshRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	h.engine.RefreshSessionsForSymbol(req.Symbol, req.Timeframes, req.Force)
	return xhttp.SuccessResponse(c, map[string]bool{"scheduled": true})
}

func (h *ChartsEchoHandler) AddWatch(c echo.Context) error {
	req := &models.AddWatchRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	h.engine.AddWatch(req.Symbol, req.Timeframe, req.BackfillBars)
	return xhttp.CreatedResponse(c, map[string]bool{"watched": true})
}

func (h *ChartsEchoHandler) ClearCache(c echo.Context) error {
	req := &models.ClearCacheRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res := h.engine.ClearPersistedFrameCache(c.Request().Context(), req.DropSessionBars)
	return xhttp.SuccessResponse(c, res)
}

func (h *ChartsEchoHandler) Telemetry(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.engine.FrameCacheTelemetry())
}

func (h *ChartsEchoHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"status":    "ok",
		"partition": h.engine.Partition(),
		"sessions":  h.engine.SessionCount(),
	})
}
