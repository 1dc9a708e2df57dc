package api

import (
	"time"

	"MacroPulse/internal/bridge"
	"MacroPulse/internal/domain/models"
	"MacroPulse/internal/hub"
	"MacroPulse/internal/registry"
	"MacroPulse/internal/usecase"
	xhttp "MacroPulse/pkg/http"
	xlogger "MacroPulse/pkg/logger"
	"MacroPulse/pkg/util"

	"github.com/labstack/echo/v4"
)

// DashboardHandler exposes the computation core over HTTP: bridged
// engine payloads, system health, stored reports and a manual trigger.
type DashboardHandler struct {
	logger   *xlogger.Logger
	hub      *hub.Hub
	bridge   *bridge.Bridge
	registry *registry.Registry
	proc     *usecase.ReportProcessor
	runner   *usecase.PipelineRunner
}

func NewDashboardHandler(
	logger *xlogger.Logger,
	h *hub.Hub,
	br *bridge.Bridge,
	reg *registry.Registry,
	proc *usecase.ReportProcessor,
	runner *usecase.PipelineRunner,
) *DashboardHandler {
	return &DashboardHandler{logger: logger, hub: h, bridge: br, registry: reg, proc: proc, runner: runner}
}

func (h *DashboardHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/engines", h.Engines)
	g.GET("/data/:engine", h.BridgedData)
	g.GET("/reports", h.Reports)
	g.GET("/health", h.Health)
	g.GET("/performance", h.Performance)
	g.POST("/pipeline/run", h.TriggerPipeline)
}

// Engines lists registered engine metadata in execution order.
func (h *DashboardHandler) Engines(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.registry.AllMetadata())
}

// BridgedData serves the cached payload for one engine and format.
// Expired or missing entries return 404.
func (h *DashboardHandler) BridgedData(c echo.Context) error {
	req := &models.BridgedDataRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	data := h.bridge.Get(req.Engine, models.Format(req.Format))
	if data == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no %s data for engine %s", req.Format, req.Engine))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.SuccessResponse(c, data)
}

// Reports returns stored reports for one engine. The range defaults to
// the last 30 days when from/to are absent.
func (h *DashboardHandler) Reports(c echo.Context) error {
	req := &models.ReportsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	to := util.ParseTimeDefault(req.To, time.Now())
	from := util.ParseTimeDefault(req.From, to.Add(-30*24*time.Hour))
	if !from.Before(to) {
		return xhttp.BadRequestResponse(c, "from must precede to")
	}
	reports, err := h.proc.Query(c.Request().Context(), req.Engine, from, to, req.N)
	if err != nil {
		h.logger.Error("reports query failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, reports)
}

// Health returns the aggregated system health snapshot.
func (h *DashboardHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.hub.Health())
}

// Performance returns per-engine performance records.
func (h *DashboardHandler) Performance(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.hub.Performance().All())
}

// TriggerPipeline runs the pipeline once outside the normal cadence.
func (h *DashboardHandler) TriggerPipeline(c echo.Context) error {
	h.runner.RunOnce(c.Request().Context())
	return xhttp.SuccessResponse(c, map[string]string{"status": "triggered"})
}
