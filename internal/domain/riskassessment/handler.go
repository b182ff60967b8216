package riskassessment

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const mimeMarkdown = "text/markdown; charset=UTF-8"

type Handler struct {
	engine *Engine
}

func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/assessments", h.CreateAssessment)
	api.POST("/assessments/markdown", h.CreateAssessmentMarkdown)
	api.POST("/assessments/adjust", h.AdjustAssessment)
}

func (h *Handler) bindInput(c echo.Context) (Input, error) {
	var in Input
	if err := c.Bind(&in); err != nil {
		return in, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(in.CarePlanText) == "" && strings.TrimSpace(in.LogText) == "" {
		return in, echo.NewHTTPError(http.StatusBadRequest, "care_plan_text or log_text is required")
	}
	return in, nil
}

func (h *Handler) CreateAssessment(c echo.Context) error {
	in, err := h.bindInput(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.engine.Run(in))
}

func (h *Handler) CreateAssessmentMarkdown(c echo.Context) error {
	in, err := h.bindInput(c)
	if err != nil {
		return err
	}
	return c.Blob(http.StatusOK, mimeMarkdown, []byte(RenderMarkdown(h.engine.Run(in))))
}

// AdjustRequest carries a previously returned report and the manager's
// overrides keyed by instrument.
type AdjustRequest struct {
	Report      AssessmentReport            `json:"report"`
	Adjustments map[string]ManualAdjustment `json:"adjustments"`
	Format      string                      `json:"format,omitempty"`
}

func (h *Handler) AdjustAssessment(c echo.Context) error {
	var req AdjustRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if len(req.Report.Assessments) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "report is required")
	}
	if len(req.Adjustments) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "adjustments are required")
	}
	out, err := h.engine.ApplyAdjustments(req.Report, req.Adjustments)
	if err != nil {
		if errors.Is(err, ErrInvalidAdjustment) {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if req.Format == "markdown" {
		return c.Blob(http.StatusOK, mimeMarkdown, []byte(RenderMarkdown(out)))
	}
	return c.JSON(http.StatusOK, out)
}
