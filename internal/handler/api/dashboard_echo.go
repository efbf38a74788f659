package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	"FinCast/internal/service/ratelimit"
	"FinCast/internal/services/chart"
	"FinCast/internal/usecase"
	xhttp "FinCast/pkg/http"
	xlogger "FinCast/pkg/logger"
)

// DashboardHandler serves the forecast dashboard API.
type DashboardHandler struct {
	logger  *xlogger.Logger
	uc      *usecase.DashboardUseCase
	runs    *usecase.RunDispatcher
	limiter *ratelimit.Limiter
}

func NewDashboardHandler(
	logger *xlogger.Logger,
	uc *usecase.DashboardUseCase,
	runs *usecase.RunDispatcher,
	limiter *ratelimit.Limiter,
) *DashboardHandler {
	return &DashboardHandler{logger: logger, uc: uc, runs: runs, limiter: limiter}
}

func (h *DashboardHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/versions", h.Versions)
	g.GET("/forecasts/:version", h.Forecasts)
	g.GET("/forecasts/:version/summary", h.Summary)
	g.GET("/forecasts/:version/insight", h.Insight)
	g.GET("/forecasts/:version/chart/:kind", h.Chart)
	g.POST("/runs", h.SubmitRun)
}

func (h *DashboardHandler) Versions(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.uc.Versions())
}

func (h *DashboardHandler) Forecasts(c echo.Context) error {
	req := &models.ForecastsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	rows, total, err := h.uc.Forecasts(c.Request().Context(), req.Version, req.Limit)
	if err != nil {
		return h.fail(c, "forecasts", err)
	}
	return xhttp.ListResponse(c, rows, int64(total))
}

func (h *DashboardHandler) Summary(c echo.Context) error {
	req := &models.VersionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.uc.Summary(c.Request().Context(), req.Version)
	if err != nil {
		return h.fail(c, "summary", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *DashboardHandler) Insight(c echo.Context) error {
	req := &models.VersionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if h.limiter != nil && !h.limiter.Allow(c.RealIP()) {
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("insight rate limit exceeded, retry later"))
	}

	res, err := h.uc.Insight(c.Request().Context(), req.Version)
	if err != nil {
		return h.fail(c, "insight", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *DashboardHandler) Chart(c echo.Context) error {
	req := &models.ChartRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	png, err := h.uc.Chart(c.Request().Context(), req.Version, chart.Kind(req.Kind))
	if err != nil {
		return h.fail(c, "chart", err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=60")
	return c.Blob(http.StatusOK, "image/png", png)
}

func (h *DashboardHandler) SubmitRun(c echo.Context) error {
	req := &models.RunRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.runs.Submit(c.Request().Context(), req.Versions)
	if err != nil {
		return h.fail(c, "submit run", err)
	}
	return xhttp.AcceptedResponse(c, res)
}

// fail maps use case errors to AppErrors; unknown ones are logged as 500s.
func (h *DashboardHandler) fail(c echo.Context, op string, err error) error {
	switch {
	case errors.Is(err, domrepo.ErrResultsNotFound):
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no predictions yet for version %q", c.Param("version")).WithError(err))
	case errors.Is(err, chart.ErrNoData):
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no plottable records for version %q", c.Param("version")).WithError(err))
	case errors.Is(err, usecase.ErrUnknownVersion), errors.Is(err, chart.ErrUnknownKind):
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("%s", err.Error()).WithError(err))
	case errors.Is(err, context.DeadlineExceeded):
		return xhttp.AppErrorResponse(c, xhttp.UnavailableErrorf("%s timed out", op).WithError(err))
	}
	h.logger.Error(op+" usecase error", xlogger.Error(err))
	return xhttp.AppErrorResponse(c, xhttp.InternalErrorf("%s failed", op).WithError(err))
}

var _ xhttp.Handler = (*DashboardHandler)(nil)
