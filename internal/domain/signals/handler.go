package signals

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ehr/careassess/internal/platform/keywords"
)

type Handler struct {
	extractor *Extractor
	table     *keywords.Table
}

func NewHandler(table *keywords.Table) *Handler {
	return &Handler{extractor: NewExtractor(table), table: table}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/signals", h.ExtractSignals)
}

// ExtractRequest is the body accepted by POST /signals.
type ExtractRequest struct {
	LogText string `json:"log_text"`
}

// ExtractResponse pairs the raw signals with their summary.
type ExtractResponse struct {
	Signals StructuredSignals `json:"signals"`
	Summary Summary           `json:"summary"`
}

func (h *Handler) ExtractSignals(c echo.Context) error {
	var req ExtractRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.LogText == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "log_text is required")
	}
	s := h.extractor.Extract(req.LogText)
	return c.JSON(http.StatusOK, ExtractResponse{Signals: s, Summary: Summarize(s, h.table)})
}
