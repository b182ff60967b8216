// Package analytics keeps in-memory usage counters for the assessment API:
// per-route request statistics and per-instrument scoring outcomes.
package analytics

import (
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
)

// ---------------------------------------------------------------------------
// Core metric type
// ---------------------------------------------------------------------------

// RequestMetric captures a single API request.
type RequestMetric struct {
	Timestamp    time.Time     `json:"timestamp"`
	Method       string        `json:"method"`
	Route        string        `json:"route"`
	StatusCode   int           `json:"status_code"`
	Duration     time.Duration `json:"duration"`
	RequestSize  int64         `json:"request_size"`
	ResponseSize int64         `json:"response_size"`
}

// ---------------------------------------------------------------------------
// Internal counter types
// ---------------------------------------------------------------------------

type routeStats struct {
	Route         string
	TotalRequests int64
	TotalErrors   int64
	TotalDuration int64 // nanoseconds
	StatusCounts  map[int]int64
	mu            sync.Mutex
}

type instrumentStats struct {
	Key           string
	Runs          int64
	Failures      int64
	TotalDuration int64 // nanoseconds
	RiskLevels    map[string]int64
	mu            sync.Mutex
}

// ---------------------------------------------------------------------------
// Summary types (returned by query methods)
// ---------------------------------------------------------------------------

// RouteSummary aggregates statistics for one route.
type RouteSummary struct {
	Route           string        `json:"route"`
	TotalRequests   int64         `json:"total_requests"`
	ErrorRate       float64       `json:"error_rate"`
	AvgLatency      time.Duration `json:"avg_latency"`
	P95Latency      time.Duration `json:"p95_latency"`
	StatusBreakdown map[int]int64 `json:"status_breakdown"`
}

// InstrumentSummary aggregates scoring outcomes for one instrument.
type InstrumentSummary struct {
	Key         string           `json:"key"`
	Runs        int64            `json:"runs"`
	Failures    int64            `json:"failures"`
	AvgDuration time.Duration    `json:"avg_duration"`
	RiskLevels  map[string]int64 `json:"risk_levels"`
}

// UsageOverview is a high-level summary of API usage.
type UsageOverview struct {
	TotalRequests int64                `json:"total_requests"`
	TotalErrors   int64                `json:"total_errors"`
	ErrorRate     float64              `json:"error_rate"`
	AvgLatency    time.Duration        `json:"avg_latency"`
	TopRoutes     []*RouteSummary      `json:"top_routes"`
	Instruments   []*InstrumentSummary `json:"instruments"`
}

// TimeSeriesBucket holds aggregated metrics for a single time bucket.
type TimeSeriesBucket struct {
	Timestamp    time.Time     `json:"timestamp"`
	RequestCount int64         `json:"request_count"`
	ErrorCount   int64         `json:"error_count"`
	AvgLatency   time.Duration `json:"avg_latency"`
}

// ---------------------------------------------------------------------------
// UsageTracker
// ---------------------------------------------------------------------------

// UsageTracker is safe for concurrent use. Recent requests are kept in a
// ring buffer for percentile and time-series queries.
type UsageTracker struct {
	metrics     []*RequestMetric
	maxMetrics  int
	writePos    int
	full        bool
	routes      map[string]*routeStats
	instruments map[string]*instrumentStats
	mu          sync.RWMutex

	totalRequests int64
	totalErrors   int64
	totalDuration int64 // nanoseconds
}

// NewUsageTracker creates a tracker with the given ring buffer capacity.
func NewUsageTracker(maxMetrics int) *UsageTracker {
	if maxMetrics <= 0 {
		maxMetrics = 10000
	}
	return &UsageTracker{
		metrics:     make([]*RequestMetric, 0, maxMetrics),
		maxMetrics:  maxMetrics,
		routes:      make(map[string]*routeStats),
		instruments: make(map[string]*instrumentStats),
	}
}

// Record appends a request metric and updates the route counters.
func (ut *UsageTracker) Record(metric *RequestMetric) {
	isError := metric.StatusCode >= 400

	atomic.AddInt64(&ut.totalRequests, 1)
	if isError {
		atomic.AddInt64(&ut.totalErrors, 1)
	}
	atomic.AddInt64(&ut.totalDuration, int64(metric.Duration))

	ut.mu.Lock()
	if ut.full {
		ut.metrics[ut.writePos] = metric
	} else {
		ut.metrics = append(ut.metrics, metric)
	}
	ut.writePos++
	if ut.writePos >= ut.maxMetrics {
		ut.writePos = 0
		ut.full = true
	}

	rs, ok := ut.routes[metric.Route]
	if !ok {
		rs = &routeStats{Route: metric.Route, StatusCounts: make(map[int]int64)}
		ut.routes[metric.Route] = rs
	}
	ut.mu.Unlock()

	rs.mu.Lock()
	rs.TotalRequests++
	if isError {
		rs.TotalErrors++
	}
	rs.TotalDuration += int64(metric.Duration)
	rs.StatusCounts[metric.StatusCode]++
	rs.mu.Unlock()
}

// ObserveInstrument records one instrument outcome. It satisfies the
// assessment engine's observer hook.
func (ut *UsageTracker) ObserveInstrument(key, riskLevel string, failed bool, elapsed time.Duration) {
	ut.mu.Lock()
	is, ok := ut.instruments[key]
	if !ok {
		is = &instrumentStats{Key: key, RiskLevels: make(map[string]int64)}
		ut.instruments[key] = is
	}
	ut.mu.Unlock()

	is.mu.Lock()
	is.Runs++
	if failed {
		is.Failures++
	}
	is.TotalDuration += int64(elapsed)
	is.RiskLevels[riskLevel]++
	is.mu.Unlock()
}

// ---------------------------------------------------------------------------
// Query methods
// ---------------------------------------------------------------------------

// GetRouteStats returns stats for one route, or nil if never seen.
func (ut *UsageTracker) GetRouteStats(route string) *RouteSummary {
	ut.mu.RLock()
	rs, ok := ut.routes[route]
	ut.mu.RUnlock()
	if !ok {
		return nil
	}
	return ut.buildRouteSummary(rs)
}

// GetInstrumentStats returns outcome counts for every instrument, sorted by
// key.
func (ut *UsageTracker) GetInstrumentStats() []*InstrumentSummary {
	ut.mu.RLock()
	all := make([]*instrumentStats, 0, len(ut.instruments))
	for _, is := range ut.instruments {
		all = append(all, is)
	}
	ut.mu.RUnlock()

	out := make([]*InstrumentSummary, 0, len(all))
	for _, is := range all {
		is.mu.Lock()
		s := &InstrumentSummary{
			Key:        is.Key,
			Runs:       is.Runs,
			Failures:   is.Failures,
			RiskLevels: make(map[string]int64, len(is.RiskLevels)),
		}
		if is.Runs > 0 {
			s.AvgDuration = time.Duration(is.TotalDuration / is.Runs)
		}
		for level, n := range is.RiskLevels {
			s.RiskLevels[level] = n
		}
		is.mu.Unlock()
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// GetOverview returns a high-level usage summary.
func (ut *UsageTracker) GetOverview() *UsageOverview {
	total := atomic.LoadInt64(&ut.totalRequests)
	errs := atomic.LoadInt64(&ut.totalErrors)
	dur := atomic.LoadInt64(&ut.totalDuration)

	o := &UsageOverview{
		TotalRequests: total,
		TotalErrors:   errs,
		TopRoutes:     ut.GetTopRoutes(5),
		Instruments:   ut.GetInstrumentStats(),
	}
	if total > 0 {
		o.ErrorRate = float64(errs) / float64(total)
		o.AvgLatency = time.Duration(dur / total)
	}
	return o
}

// GetTopRoutes returns up to limit routes by request count, descending.
func (ut *UsageTracker) GetTopRoutes(limit int) []*RouteSummary {
	ut.mu.RLock()
	all := make([]*routeStats, 0, len(ut.routes))
	for _, rs := range ut.routes {
		all = append(all, rs)
	}
	ut.mu.RUnlock()

	summaries := make([]*RouteSummary, 0, len(all))
	for _, rs := range all {
		summaries = append(summaries, ut.buildRouteSummary(rs))
	}
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].TotalRequests != summaries[j].TotalRequests {
			return summaries[i].TotalRequests > summaries[j].TotalRequests
		}
		return summaries[i].Route < summaries[j].Route
	})
	if limit > len(summaries) {
		limit = len(summaries)
	}
	return summaries[:limit]
}

// GetTimeSeries buckets buffered requests by interval over the lookback
// duration ending now.
func (ut *UsageTracker) GetTimeSeries(interval, duration time.Duration, now time.Time) []*TimeSeriesBucket {
	start := now.Add(-duration).Truncate(interval)
	numBuckets := int(duration/interval) + 1

	buckets := make([]*TimeSeriesBucket, numBuckets)
	for i := range buckets {
		buckets[i] = &TimeSeriesBucket{Timestamp: start.Add(time.Duration(i) * interval)}
	}

	ut.mu.RLock()
	snapshot := make([]*RequestMetric, len(ut.metrics))
	copy(snapshot, ut.metrics)
	ut.mu.RUnlock()

	for _, m := range snapshot {
		if m.Timestamp.Before(start) || m.Timestamp.After(now) {
			continue
		}
		idx := int(m.Timestamp.Sub(start) / interval)
		if idx < 0 || idx >= numBuckets {
			continue
		}
		buckets[idx].RequestCount++
		if m.StatusCode >= 400 {
			buckets[idx].ErrorCount++
		}
		buckets[idx].AvgLatency += m.Duration
	}
	for _, b := range buckets {
		if b.RequestCount > 0 {
			b.AvgLatency = time.Duration(int64(b.AvgLatency) / b.RequestCount)
		}
	}
	return buckets
}

// ---------------------------------------------------------------------------
// Internal helpers
// ---------------------------------------------------------------------------

func (ut *UsageTracker) buildRouteSummary(rs *routeStats) *RouteSummary {
	rs.mu.Lock()
	s := &RouteSummary{
		Route:           rs.Route,
		TotalRequests:   rs.TotalRequests,
		StatusBreakdown: make(map[int]int64, len(rs.StatusCounts)),
	}
	if rs.TotalRequests > 0 {
		s.ErrorRate = float64(rs.TotalErrors) / float64(rs.TotalRequests)
		s.AvgLatency = time.Duration(rs.TotalDuration / rs.TotalRequests)
	}
	for code, n := range rs.StatusCounts {
		s.StatusBreakdown[code] = n
	}
	rs.mu.Unlock()

	s.P95Latency = ut.p95(rs.Route)
	return s
}

func (ut *UsageTracker) p95(route string) time.Duration {
	ut.mu.RLock()
	var durations []time.Duration
	for _, m := range ut.metrics {
		if m.Route == route {
			durations = append(durations, m.Duration)
		}
	}
	ut.mu.RUnlock()

	if len(durations) == 0 {
		return 0
	}
	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })
	idx := min(int(float64(len(durations))*0.95), len(durations)-1)
	return durations[idx]
}

// ---------------------------------------------------------------------------
// Echo middleware
// ---------------------------------------------------------------------------

// UsageMiddleware records every request into tracker, keyed by the matched
// route pattern rather than the raw path.
func UsageMiddleware(tracker *UsageTracker) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			req := c.Request()
			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			route := c.Path()
			if route == "" {
				route = req.URL.Path
			}
			tracker.Record(&RequestMetric{
				Timestamp:    start,
				Method:       req.Method,
				Route:        route,
				StatusCode:   status,
				Duration:     time.Since(start),
				RequestSize:  max(req.ContentLength, 0),
				ResponseSize: c.Response().Size,
			})
			return err
		}
	}
}

// ---------------------------------------------------------------------------
// Echo HTTP handler
// ---------------------------------------------------------------------------

// UsageHandler serves usage queries.
type UsageHandler struct {
	tracker *UsageTracker
	now     func() time.Time
}

func NewUsageHandler(tracker *UsageTracker) *UsageHandler {
	return &UsageHandler{tracker: tracker, now: time.Now}
}

func (h *UsageHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/usage", h.HandleOverview)
	g.GET("/usage/routes", h.HandleTopRoutes)
	g.GET("/usage/routes/*", h.HandleRouteStats)
	g.GET("/usage/instruments", h.HandleInstruments)
	g.GET("/usage/timeseries", h.HandleTimeSeries)
}

func (h *UsageHandler) HandleOverview(c echo.Context) error {
	return c.JSON(http.StatusOK, h.tracker.GetOverview())
}

func (h *UsageHandler) HandleTopRoutes(c echo.Context) error {
	limit := 20
	if l := c.QueryParam("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	return c.JSON(http.StatusOK, h.tracker.GetTopRoutes(limit))
}

// HandleRouteStats reports one route pattern, given after the prefix with its
// leading slash dropped: /usage/routes/api/v1/assessments.
func (h *UsageHandler) HandleRouteStats(c echo.Context) error {
	route := "/" + strings.TrimPrefix(c.Param("*"), "/")
	rs := h.tracker.GetRouteStats(route)
	if rs == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no requests recorded for route "+route)
	}
	return c.JSON(http.StatusOK, rs)
}

func (h *UsageHandler) HandleInstruments(c echo.Context) error {
	return c.JSON(http.StatusOK, h.tracker.GetInstrumentStats())
}

func (h *UsageHandler) HandleTimeSeries(c echo.Context) error {
	interval := parseDurationParam(c.QueryParam("interval"), time.Minute)
	duration := parseDurationParam(c.QueryParam("duration"), time.Hour)
	if interval <= 0 || duration <= 0 || duration/interval > 10000 {
		return echo.NewHTTPError(http.StatusBadRequest, "interval and duration must be positive and yield at most 10000 buckets")
	}
	return c.JSON(http.StatusOK, h.tracker.GetTimeSeries(interval, duration, h.now()))
}

// parseDurationParam parses "5m", "1h" or "7d".
func parseDurationParam(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	if days, ok := strings.CutSuffix(s, "d"); ok {
		if n, err := strconv.Atoi(days); err == nil {
			return time.Duration(n) * 24 * time.Hour
		}
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}
