package app

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/harvest/internal/common"
	"github.com/ternarybob/harvest/internal/handlers"
	"github.com/ternarybob/harvest/internal/interfaces"
	"github.com/ternarybob/harvest/internal/jazzhr"
	"github.com/ternarybob/harvest/internal/services/events"
	"github.com/ternarybob/harvest/internal/services/manager"
	"github.com/ternarybob/harvest/internal/services/report"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	// Services
	EventService    interfaces.EventService
	DownloadService interfaces.DownloadService
	ReportService   *report.Service
	JazzHRClient    *jazzhr.Client

	// HTTP handlers
	APIHandler      *handlers.APIHandler
	DownloadHandler *handlers.DownloadHandler
	ProgressHandler *handlers.ProgressHandler
	JazzHRHandler   *handlers.JazzHRHandler
	WSHandler       *handlers.WebSocketHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	app.EventService = events.NewService(logger)
	app.ReportService = report.NewService(logger)

	downloadManager := manager.NewService(cfg, app.EventService, logger)
	if err := downloadManager.StartJanitor(); err != nil {
		return nil, err
	}
	app.DownloadService = downloadManager

	if cfg.JazzHR.APIKey != "" {
		retry := jazzhr.NewRetryPolicy()
		if cfg.JazzHR.MaxAttempts > 0 {
			retry.MaxAttempts = cfg.JazzHR.MaxAttempts
		}
		app.JazzHRClient = jazzhr.NewClient(cfg.JazzHR.APIKey,
			jazzhr.WithBaseURL(cfg.JazzHR.BaseURL),
			jazzhr.WithRateLimit(cfg.JazzHR.RequestsPerMinute),
			jazzhr.WithHTTPClient(&http.Client{Timeout: cfg.JazzHR.RequestTimeout}),
			jazzhr.WithRetryPolicy(retry),
			jazzhr.WithLogger(logger),
		)
		logger.Info().
			Str("base_url", cfg.JazzHR.BaseURL).
			Int("max_attempts", retry.MaxAttempts).
			Dur("timeout", cfg.JazzHR.RequestTimeout).
			Msg("JazzHR API client initialized")
	} else {
		logger.Warn().Msg("No JazzHR API key configured, REST API endpoints disabled")
	}

	app.APIHandler = handlers.NewAPIHandler(app.DownloadService)
	app.DownloadHandler = handlers.NewDownloadHandler(app.DownloadService, app.ReportService, logger)
	app.ProgressHandler = handlers.NewProgressHandler(app.DownloadService, app.EventService, logger)
	app.JazzHRHandler = handlers.NewJazzHRHandler(app.JazzHRClient, cfg.Downloads.OutputDir, logger)
	app.WSHandler = handlers.NewWebSocketHandler(app.EventService, logger)

	logger.Info().
		Str("output_dir", cfg.Downloads.OutputDir).
		Bool("headless", cfg.Browser.Headless).
		Msg("Application initialization complete")

	return app, nil
}

// Shutdown stops background work and releases resources
func (a *App) Shutdown() {
	a.DownloadService.Stop()
	a.EventService.Close()
}
