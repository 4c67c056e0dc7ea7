package application

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/CherryPod/sentinel-sub000/internal/domain/classifier"
	"github.com/CherryPod/sentinel-sub000/internal/domain/conversation"
	"github.com/CherryPod/sentinel-sub000/internal/domain/eventbus"
	"github.com/CherryPod/sentinel-sub000/internal/domain/orchestrator"
	"github.com/CherryPod/sentinel-sub000/internal/domain/scanner"
	"github.com/CherryPod/sentinel-sub000/internal/domain/scanpipeline"
	"github.com/CherryPod/sentinel-sub000/internal/domain/service"
	"github.com/CherryPod/sentinel-sub000/internal/infrastructure/config"
	httpclassifier "github.com/CherryPod/sentinel-sub000/internal/infrastructure/classifier"
	"github.com/CherryPod/sentinel-sub000/internal/infrastructure/llm"
	"github.com/CherryPod/sentinel-sub000/internal/infrastructure/monitoring"
	_ "github.com/CherryPod/sentinel-sub000/internal/infrastructure/llm/anthropic" // register anthropic provider factory
	_ "github.com/CherryPod/sentinel-sub000/internal/infrastructure/llm/gemini"    // register gemini provider factory
	_ "github.com/CherryPod/sentinel-sub000/internal/infrastructure/llm/openai"    // register openai provider factory
	"github.com/CherryPod/sentinel-sub000/internal/infrastructure/persistence"
	"github.com/CherryPod/sentinel-sub000/internal/infrastructure/policyfile"
	"github.com/CherryPod/sentinel-sub000/internal/infrastructure/sandbox"
	"github.com/CherryPod/sentinel-sub000/internal/infrastructure/sidecar"
	httpServer "github.com/CherryPod/sentinel-sub000/internal/interfaces/http"
)

// App is the gateway's dependency-injection container: it builds the scan
// pipeline, policy engine, provenance tracker and orchestrator and exposes
// them over HTTP. handle_task (orchestrator.Orchestrator.HandleTask) is the
// single entry point every transport ultimately calls.
type App struct {
	config *config.Config
	logger *zap.Logger
	db     *gorm.DB

	policyLoader *policyfile.Loader
	orch         *orchestrator.Orchestrator
	approvals    *service.ApprovalManager
	bus          *eventbus.Bus
	monitor      *monitoring.Monitor
	tracer       *monitoring.Tracer
	httpServer   *httpServer.Server
}

// NewApp builds the full gateway: persistence, policy engine, scan
// pipeline, LLM router and the orchestrator, then wraps it in an HTTP
// server. Safe to call once per process.
func NewApp(cfg *config.Config, logger *zap.Logger) (*App, error) {
	if err := config.Bootstrap(logger); err != nil {
		logger.Warn("bootstrap failed (non-fatal)", zap.Error(err))
	}

	app := &App{config: cfg, logger: logger}

	db, err := persistence.NewDBConnection(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	app.db = db

	orch, approvals, policyLoader, bus, err := buildOrchestrator(cfg, db, logger)
	if err != nil {
		return nil, err
	}
	app.orch = orch
	app.approvals = approvals
	app.policyLoader = policyLoader
	app.bus = bus
	app.monitor = monitoring.NewMonitor(logger)
	app.tracer = monitoring.NewTracer("sentinelgate", logger)

	app.httpServer = httpServer.NewServer(
		httpServer.Config{
			Host: cfg.Gateway.Host,
			Port: cfg.Gateway.Port,
			Mode: cfg.Gateway.Mode,
		},
		orch,
		approvals,
		bus,
		app.monitor,
		app.tracer,
		logger,
	)

	return app, nil
}

// buildOrchestrator wires scanners, the policy engine, the provenance
// tracker, the conversation analyser, the LLM router and the sandbox-backed
// tool executor into a single orchestrator.Orchestrator.
func buildOrchestrator(cfg *config.Config, db *gorm.DB, logger *zap.Logger) (*orchestrator.Orchestrator, *service.ApprovalManager, *policyfile.Loader, *eventbus.Bus, error) {
	credPatterns := make([]scanner.CredentialPattern, 0, len(cfg.Scanners.CredentialPatterns))
	for _, p := range cfg.Scanners.CredentialPatterns {
		credPatterns = append(credPatterns, scanner.CredentialPattern{Name: p.Name, Pattern: p.Pattern})
	}
	credScanner, err := scanner.NewCredentialScanner(credPatterns)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("compile credential scanner: %w", err)
	}

	pathScanner := scanner.NewSensitivePathScanner(cfg.Scanners.SensitivePathPatterns)

	cmdExtra := make([]scanner.CredentialPattern, 0, len(cfg.Scanners.CommandExtraPatterns))
	for _, p := range cfg.Scanners.CommandExtraPatterns {
		cmdExtra = append(cmdExtra, scanner.CredentialPattern{Name: p.Name, Pattern: p.Pattern})
	}
	cmdScanner, err := scanner.NewCommandPatternScanner(cmdExtra)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("compile command scanner: %w", err)
	}

	echoScanner := scanner.NewVulnerabilityEchoScanner()
	encodingScanner := scanner.NewEncodingNormalizationScanner(credScanner, pathScanner, cmdScanner)

	var injectionClassifier classifier.InjectionClassifier
	if cfg.Classifier.Enabled {
		injectionClassifier = httpclassifier.NewHTTPClassifier(context.Background(), cfg.Classifier.Endpoint, logger)
	} else {
		injectionClassifier = classifier.NewNoopClassifier()
	}

	policyLoader := policyfile.New(cfg.Policy.DocumentPath, cfg.Policy.WorkspacePath, logger)
	if _, err := policyLoader.Load(); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("load policy document: %w", err)
	}
	if cfg.Policy.HotReload {
		if err := policyLoader.Watch(); err != nil {
			logger.Warn("policy hot-reload watch failed, continuing without it", zap.Error(err))
		}
	}

	provenance := service.NewProvenanceTracker(persistence.NewGormProvenanceRepository(db))

	var analyzer *conversation.Analyzer
	if cfg.Conversation.Enabled {
		analyzer = conversation.NewAnalyzer(cfg.Conversation.WarnThreshold, cfg.Conversation.BlockThreshold)
	} else {
		analyzer = conversation.NewDefaultAnalyzer()
	}

	sessions := service.NewSessionStore(cfg.Session.TTL, cfg.Session.MaxCount)
	approvals := service.NewApprovalManager(persistence.NewGormApprovalRepository(db), cfg.Approval.Timeout)
	bus := eventbus.New()

	sbxCfg := sandbox.DefaultConfig()
	sbxCfg.Timeout = cfg.Sandbox.Timeout
	sbxCfg.EnableNetwork = cfg.Sandbox.EnableNetwork
	if cfg.Sandbox.WorkDir != "" {
		sbxCfg.WorkDir = cfg.Sandbox.WorkDir
	}
	if cfg.Sandbox.TempDir != "" {
		sbxCfg.TempDir = cfg.Sandbox.TempDir
	}
	if len(cfg.Sandbox.AllowedBins) > 0 {
		sbxCfg.AllowedBins = cfg.Sandbox.AllowedBins
	}
	sbx, err := sandbox.NewProcessSandbox(sbxCfg, logger)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("init sandbox: %w", err)
	}
	toolExecutor := sidecar.NewExecutor(sbx, policyLoader, logger)

	router := llm.NewRouter(logger)
	for _, p := range cfg.Providers {
		provider, err := llm.CreateProvider(llm.ProviderConfig{
			Name: p.Name, Type: p.Type, BaseURL: p.BaseURL,
			APIKey: p.APIKey, Models: p.Models, Priority: p.Priority,
		}, logger)
		if err != nil {
			logger.Error("failed to create LLM provider", zap.String("name", p.Name), zap.Error(err))
			continue
		}
		router.AddProvider(provider)
	}
	logger.Info("LLM router initialized", zap.Int("providers", len(cfg.Providers)))

	worker := llm.NewWorker(router, logger)
	planner := llm.NewPlanner(router, cfg.PlannerModel, logger)

	pipeline := scanpipeline.New(
		credScanner, pathScanner, cmdScanner, echoScanner, encodingScanner,
		injectionClassifier, worker, provenance,
		scanpipeline.Config{
			SpotlightingEnabled: cfg.Scanners.SpotlightingEnabled,
			ClassifierEnabled:   cfg.Classifier.Enabled,
			RequireClassifier:   cfg.Classifier.Required,
			ClassifierThreshold: cfg.Classifier.ConfidenceThresh,
			WorkerModel:         cfg.WorkerModel,
		},
		logger,
	)

	orch := orchestrator.New(
		planner, pipeline, sessions, analyzer, approvals, toolExecutor, bus,
		orchestrator.Config{ConversationEnabled: cfg.Conversation.Enabled},
		logger,
	)

	return orch, approvals, policyLoader, bus, nil
}

// Orchestrator returns the gateway's single task entry point.
func (app *App) Orchestrator() *orchestrator.Orchestrator {
	return app.orch
}

// Approvals returns the human-approval queue.
func (app *App) Approvals() *service.ApprovalManager {
	return app.approvals
}

// EventBus returns the task event bus, used by the websocket transport.
func (app *App) EventBus() *eventbus.Bus {
	return app.bus
}

// Logger returns the application logger.
func (app *App) Logger() *zap.Logger {
	return app.logger
}

// AppConfig returns the loaded configuration.
func (app *App) AppConfig() *config.Config {
	return app.config
}

// Monitor returns the in-process metrics collector backing /metrics.
func (app *App) Monitor() *monitoring.Monitor {
	return app.monitor
}

// Tracer returns the in-process span tracer backing /api/v1/traces.
func (app *App) Tracer() *monitoring.Tracer {
	return app.tracer
}

// Start starts the HTTP transport and the periodic metrics collector.
func (app *App) Start(ctx context.Context) error {
	app.logger.Info("starting gateway")
	if err := app.httpServer.Start(ctx); err != nil {
		return fmt.Errorf("start HTTP server: %w", err)
	}
	go app.monitor.StartCollector(ctx, 15*time.Second)
	app.logger.Info("gateway started")
	return nil
}

// Stop stops the HTTP transport, the policy watcher and the database.
func (app *App) Stop(ctx context.Context) error {
	app.logger.Info("stopping gateway")

	if app.policyLoader != nil {
		_ = app.policyLoader.Close()
	}

	if err := app.httpServer.Stop(ctx); err != nil {
		app.logger.Error("failed to stop HTTP server", zap.Error(err))
	}

	if app.db != nil {
		if sqlDB, err := app.db.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				app.logger.Error("failed to close database connection", zap.Error(err))
			}
		}
	}

	app.logger.Info("gateway stopped")
	return nil
}
