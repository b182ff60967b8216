package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ehr/careassess/internal/config"
	"github.com/ehr/careassess/internal/domain/riskassessment"
	"github.com/ehr/careassess/internal/domain/signals"
	"github.com/ehr/careassess/internal/platform/analytics"
	"github.com/ehr/careassess/internal/platform/evidence"
	"github.com/ehr/careassess/internal/platform/keywords"
	"github.com/ehr/careassess/internal/platform/middleware"
	"github.com/ehr/careassess/internal/platform/reducer"
)

const version = "0.1.0"

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "careassess",
		Short:        "Care-home evidence extraction and risk scoring",
		SilenceUsage: true,
	}

	root.AddCommand(serveCmd())
	root.AddCommand(assessCmd())
	root.AddCommand(extractCmd())
	root.AddCommand(reduceCmd())
	root.AddCommand(keywordsCmd())
	return root
}

// newLogger builds the process logger: JSON in deployed environments,
// console output in development.
func newLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	return logger.Level(level)
}

// deps is everything a command needs, built once from config.
type deps struct {
	cfg     *config.Config
	table   *keywords.Table
	matcher *evidence.Matcher
	engine  *riskassessment.Engine
	reducer *reducer.Reducer
	usage   *analytics.UsageTracker

	// engineOpts rebuilds engines that differ only in their clock.
	engineOpts []riskassessment.Option
}

func loadDeps(logger zerolog.Logger) (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return buildDeps(cfg, logger)
}

func buildDeps(cfg *config.Config, logger zerolog.Logger) (*deps, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	table, err := keywords.Load(cfg.KeywordTablePath)
	if err != nil {
		return nil, fmt.Errorf("load keyword table: %w", err)
	}
	matcher := evidence.NewMatcher(cfg.MaxEvidenceLines)
	usage := analytics.NewUsageTracker(10000)
	opts := []riskassessment.Option{
		riskassessment.WithLogger(logger),
		riskassessment.WithMatcher(matcher),
		riskassessment.WithObserver(usage),
	}
	return &deps{
		cfg:        cfg,
		table:      table,
		matcher:    matcher,
		engine:     riskassessment.NewEngine(table, opts...),
		reducer:    reducer.New(cfg.LargeDocumentThreshold, cfg.CompressionRatio, table),
		usage:      usage,
		engineOpts: opts,
	}, nil
}

// ---------------------------------------------------------------------------
// serve
// ---------------------------------------------------------------------------

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the assessment API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	d, err := buildDeps(cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to start")
		return err
	}
	logger.Info().
		Str("keyword_table_version", d.table.Version).
		Int("max_evidence_lines", cfg.MaxEvidenceLines).
		Msg("keyword table loaded")

	e := newServer(d, logger)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}

func newServer(d *deps, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(analytics.UsageMiddleware(d.usage))
	e.Use(middleware.SecurityHeaders(d.cfg.IsProduction()))
	e.Use(middleware.BodyLimit(d.cfg.BodyLimit))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: d.cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Content-Type", middleware.RequestIDHeader},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":                "ok",
			"version":               version,
			"keyword_table_version": d.table.Version,
		})
	})

	apiV1 := e.Group("/api/v1")
	apiV1.Use(echomw.RateLimiter(echomw.NewRateLimiterMemoryStore(20)))

	riskassessment.NewHandler(d.engine).RegisterRoutes(apiV1)
	signals.NewHandler(d.table).RegisterRoutes(apiV1)
	reducer.NewHandler(d.reducer).RegisterRoutes(apiV1)
	analytics.NewUsageHandler(d.usage).RegisterRoutes(apiV1)

	return e
}
