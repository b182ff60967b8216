package reducer

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// ---------------------------------------------------------------------------
// HTTP handlers
// ---------------------------------------------------------------------------

// Handler exposes document profiling and reduction over HTTP.
type Handler struct {
	reducer *Reducer
}

func NewHandler(r *Reducer) *Handler {
	return &Handler{reducer: r}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/documents/profile", h.handleProfile)
	g.POST("/documents/reduce", h.handleReduce)
	g.POST("/documents/optimize", h.handleOptimize)
}

type documentRequest struct {
	Text      string `json:"text"`
	Kind      string `json:"kind,omitempty"`
	MaxLength int    `json:"max_length,omitempty"`
}

type profileResponse struct {
	IsLarge bool              `json:"is_large"`
	Profile *StructureProfile `json:"profile,omitempty"`
	Error   string            `json:"error,omitempty"`
}

type reduceResponse struct {
	Text  string `json:"text"`
	Stats Stats  `json:"stats"`
}

type optimizeResponse struct {
	Text            string `json:"text"`
	OriginalLength  int    `json:"original_length"`
	OptimizedLength int    `json:"optimized_length"`
}

func bindDocument(c echo.Context) (documentRequest, error) {
	var req documentRequest
	if err := c.Bind(&req); err != nil {
		return req, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Text == "" {
		return req, echo.NewHTTPError(http.StatusBadRequest, "text is required")
	}
	return req, nil
}

func (h *Handler) handleProfile(c echo.Context) error {
	req, err := bindDocument(c)
	if err != nil {
		return err
	}
	resp := profileResponse{IsLarge: h.reducer.IsLarge(req.Text)}
	p, err := h.reducer.Profile(req.Text)
	switch {
	case errors.Is(err, ErrNotTabular), errors.Is(err, ErrEmptyDocument):
		resp.Error = err.Error()
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	default:
		resp.Profile = &p
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) handleReduce(c echo.Context) error {
	req, err := bindDocument(c)
	if err != nil {
		return err
	}
	text, stats := h.reducer.Prepare(req.Text)
	return c.JSON(http.StatusOK, reduceResponse{Text: text, Stats: stats})
}

func (h *Handler) handleOptimize(c echo.Context) error {
	req, err := bindDocument(c)
	if err != nil {
		return err
	}
	var out string
	switch req.Kind {
	case "", "log":
		out = h.reducer.OptimizeLog(req.Text, req.MaxLength)
	case "care_plan":
		out = h.reducer.SummarizeCarePlan(req.Text, req.MaxLength)
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "kind must be log or care_plan")
	}
	return c.JSON(http.StatusOK, optimizeResponse{
		Text:            out,
		OriginalLength:  len([]rune(req.Text)),
		OptimizedLength: len([]rune(out)),
	})
}
