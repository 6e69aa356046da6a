// Copyright (C) 2025 Cascadia Health (dev@cascadiahealth.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package gateway provides the HIPAA-aware chat gateway service. It
// coordinates the redaction engine, the model backend, the document index,
// the browser action controller, and the observability stack behind one
// HTTP surface.
//
// # Enterprise Integration
//
// The gateway supports dependency injection via extensions.ServiceOptions,
// enabling deployments to provide custom implementations of:
//   - AuthProvider: API keys, JWT, SSO
//   - AuthzProvider: Role-based access control
//   - AuditLogger: Durable compliance trails
//   - MessageFilter: Additional content screening
//
// # Usage
//
// Open source (uses no-op defaults):
//
//	cfg := gateway.Config{Port: 12280}
//	svc, err := gateway.New(cfg, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	svc.Run()
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/CascadiaHealth/CascadiaGate/pkg/extensions"
	"github.com/CascadiaHealth/CascadiaGate/services/browser"
	"github.com/CascadiaHealth/CascadiaGate/services/docindex"
	"github.com/CascadiaHealth/CascadiaGate/services/gateway/datatypes"
	"github.com/CascadiaHealth/CascadiaGate/services/gateway/expiry"
	"github.com/CascadiaHealth/CascadiaGate/services/gateway/handlers"
	"github.com/CascadiaHealth/CascadiaGate/services/gateway/middleware"
	"github.com/CascadiaHealth/CascadiaGate/services/gateway/observability"
	"github.com/CascadiaHealth/CascadiaGate/services/gateway/routes"
	"github.com/CascadiaHealth/CascadiaGate/services/ingest"
	"github.com/CascadiaHealth/CascadiaGate/services/llm"
	"github.com/CascadiaHealth/CascadiaGate/services/redaction"
	storage "github.com/CascadiaHealth/CascadiaGate/services/storage/badger"
	"github.com/CascadiaHealth/CascadiaGate/services/websearch"
)

// defaultSystemPrompt frames every new session. It never reaches clients.
const defaultSystemPrompt = "You are a helpful assistant for a medical " +
	"clinic. You help with scheduling, general health questions, and " +
	"administrative tasks. Never ask for or repeat social security numbers, " +
	"medical record numbers, or other identifying details."

// Service defines the gateway lifecycle. Run blocks; Router exposes the
// engine for integration tests.
type Service interface {
	Run() error
	Router() *gin.Engine
}

// Config holds gateway configuration. Zero values use defaults applied by
// New.
type Config struct {
	// Port is the HTTP server port. Default: 12280
	Port int

	// ModelBackend selects the LLM provider: "ollama", "openai", "local".
	// Default: "ollama"
	ModelBackend string

	// WeaviateURL enables conversation archiving when set.
	// Example: "http://localhost:8080"
	WeaviateURL string

	// OTelEndpoint is the OTLP collector endpoint. Default:
	// "cascadia-otel-collector:4317". The literal "stdout" writes spans
	// to stdout instead, for development.
	OTelEndpoint string

	// IndexPath is the BadgerDB directory backing the document index.
	// Empty runs the index purely in memory.
	IndexPath string

	// WatchDir, when set, is a drop directory whose files are ingested
	// automatically.
	WatchDir string

	// SeedDir, when set, is a directory of reference documents indexed
	// whole at startup.
	SeedDir string

	// SystemPrompt overrides the default session system prompt.
	SystemPrompt string

	// GinMode sets the Gin framework mode: "debug", "release", "test".
	GinMode string

	// Development switches metric export from Prometheus to periodic
	// stdout dumps.
	Development bool

	// SweepInterval is how often expired action plans are dropped.
	// Default: 1 minute.
	SweepInterval time.Duration

	// RateLimit bounds per-client request rates on /v1 routes.
	RateLimit middleware.RateLimitConfig
}

var _ Service = (*service)(nil)

type service struct {
	config           Config
	opts             extensions.ServiceOptions
	router           *gin.Engine
	env              *handlers.Env
	weaviateClient   *weaviate.Client
	indexDB          *storage.DB
	sweeper          *expiry.Sweeper
	watcher          *ingest.Watcher
	tracerCleanup    func(context.Context)
	meterCleanup     func(context.Context) error
	cancelBackground context.CancelFunc
}

// New builds a gateway Service. If opts is nil, no-op extensions are used.
// Weaviate and the OTLP collector are optional: failures there degrade the
// service instead of stopping it.
func New(cfg Config, opts *extensions.ServiceOptions) (Service, error) {
	s := &service{
		config: applyConfigDefaults(cfg),
	}
	if opts != nil {
		s.opts = *opts
	} else {
		s.opts = extensions.DefaultOptions()
	}

	cleanup, err := s.initTracer()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	s.tracerCleanup = cleanup

	if observability.DefaultMetrics == nil {
		observability.InitMetrics()
	}
	meterCleanup, err := observability.InitMeterProvider(s.config.Development)
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize metrics export: %w", err)
	}
	s.meterCleanup = meterCleanup

	if err := s.initWeaviate(); err != nil {
		slog.Warn("archive initialization failed, conversations will not be archived",
			"error", err)
	}

	redactor, err := redaction.NewEngine()
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize the redaction engine: %w", err)
	}
	slog.Info("redaction engine initialized", "policy_version", redactor.PolicyVersion())

	index, err := s.initIndex()
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize the document index: %w", err)
	}
	s.seedIndex(index)

	model, err := newModelClient(s.config.ModelBackend)
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize the model backend: %w", err)
	}

	plans := browser.NewController(nil)

	s.env = handlers.NewEnv(handlers.Env{
		Redactor: redactor,
		Sessions: datatypes.NewSessionStore(s.config.SystemPrompt),
		Model:    model,
		Index:    index,
		Plans:    plans,
		Search:   websearch.NewTool(redactor, websearch.NewStubProvider()),
		Metrics:  observability.DefaultMetrics,
		Audit:    s.opts.AuditLogger,
		Filter:   s.opts.MessageFilter,
		Archive:  s.weaviateClient,
	})

	ctx, cancel := context.WithCancel(context.Background())
	s.cancelBackground = cancel

	s.sweeper = expiry.NewSweeper(plans,
		expiry.SweeperConfig{Interval: s.config.SweepInterval},
		func(count int) {
			observability.DefaultMetrics.RecordPlansExpired(count)
		})
	if err := s.sweeper.Start(ctx); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to start the plan sweeper: %w", err)
	}

	if s.config.WatchDir != "" {
		if err := s.initWatcher(ctx, redactor, index); err != nil {
			slog.Warn("ingestion watcher initialization failed", "error", err)
		}
	}

	s.initRouter()
	return s, nil
}

// Run starts the HTTP server and blocks until it stops.
func (s *service) Run() error {
	defer s.cleanup()

	addr := fmt.Sprintf(":%d", s.config.Port)
	slog.Info("starting gateway server",
		"port", s.config.Port,
		"model_backend", s.config.ModelBackend,
		"archive", s.weaviateClient != nil)
	return s.router.Run(addr)
}

// Router returns the underlying Gin engine for testing. Callers must not
// modify the route table.
func (s *service) Router() *gin.Engine {
	return s.router
}

func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 12280
	}
	if cfg.ModelBackend == "" {
		cfg.ModelBackend = "ollama"
	}
	if cfg.OTelEndpoint == "" {
		cfg.OTelEndpoint = "cascadia-otel-collector:4317"
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = defaultSystemPrompt
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = time.Minute
	}
	if cfg.RateLimit == (middleware.RateLimitConfig{}) {
		cfg.RateLimit = middleware.DefaultRateLimitConfig()
	}
	return cfg
}

// initTracer sets up span export: OTLP over gRPC for deployments, stdout
// when the endpoint is the literal "stdout".
func (s *service) initTracer() (func(context.Context), error) {
	ctx := context.Background()

	var exporter sdktrace.SpanExporter
	if s.config.OTelEndpoint == "stdout" {
		stdoutExporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout trace exporter: %w", err)
		}
		exporter = stdoutExporter
	} else {
		conn, err := grpc.NewClient(s.config.OTelEndpoint,
			grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
		}
		otlpExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
		if err != nil {
			return nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}
		exporter = otlpExporter
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("cascadia-gateway")))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(exporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	cleanup := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := exporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown the trace exporter", "error", err)
		}
	}
	return cleanup, nil
}

// initWeaviate connects the conversation archive if a URL is configured.
func (s *service) initWeaviate() error {
	weaviateURL := strings.Trim(s.config.WeaviateURL, "\"' ")
	if weaviateURL == "" {
		slog.Info("archive URL not configured, conversations stay in memory only")
		return nil
	}

	parsedURL, err := url.Parse(weaviateURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return fmt.Errorf("invalid archive URL: %s", weaviateURL)
	}

	client, err := weaviate.NewClient(weaviate.Config{
		Host:   parsedURL.Host,
		Scheme: parsedURL.Scheme,
	})
	if err != nil {
		return fmt.Errorf("failed to create the archive client: %w", err)
	}
	s.weaviateClient = client

	datatypes.EnsureArchiveSchema(client)
	slog.Info("conversation archive initialized", "url", weaviateURL)
	return nil
}

// initIndex opens the document index, durable when a path is configured.
func (s *service) initIndex() (*docindex.Store, error) {
	if s.config.IndexPath == "" {
		slog.Info("document index running in memory")
		return docindex.New(), nil
	}

	cfg := storage.DefaultConfig()
	cfg.Path = s.config.IndexPath
	db, err := storage.OpenDB(cfg)
	if err != nil {
		return nil, err
	}
	s.indexDB = db

	index, err := docindex.NewWithDB(db.DB)
	if err != nil {
		db.Close()
		s.indexDB = nil
		return nil, err
	}
	slog.Info("document index opened", "path", s.config.IndexPath, "documents", index.Len())
	return index, nil
}

// seedIndex loads startup content: whole files from SeedDir, then the
// development sample set when the index is still empty. Seeding is best
// effort; an unreadable seed file is logged and skipped.
func (s *service) seedIndex(index *docindex.Store) {
	if s.config.SeedDir != "" {
		entries, err := os.ReadDir(s.config.SeedDir)
		if err != nil {
			slog.Warn("failed to read the seed directory",
				"dir", s.config.SeedDir, "error", err)
		} else {
			indexed := 0
			for _, entry := range entries {
				if entry.IsDir() {
					continue
				}
				path := filepath.Join(s.config.SeedDir, entry.Name())
				if _, err := docindex.IndexFile(index, path, "seed", nil); err != nil {
					slog.Warn("failed to index a seed document",
						"file", entry.Name(), "error", err)
					continue
				}
				indexed++
			}
			observability.DefaultMetrics.RecordDocumentsIndexed(observability.DocSourceSeed, indexed)
			slog.Info("seed directory indexed", "dir", s.config.SeedDir, "documents", indexed)
		}
	}

	if s.config.Development && index.Len() == 0 {
		if err := docindex.SeedSampleDocuments(index); err != nil {
			slog.Warn("failed to seed the sample documents", "error", err)
			return
		}
		observability.DefaultMetrics.RecordDocumentsIndexed(observability.DocSourceSeed, index.Len())
		slog.Info("sample documents seeded", "documents", index.Len())
	}
}

func (s *service) initWatcher(ctx context.Context, redactor *redaction.Engine, index *docindex.Store) error {
	pipeline := ingest.NewPipeline(index, redactor, s.opts.AuditLogger)
	watcher, err := ingest.NewWatcher(s.config.WatchDir, pipeline)
	if err != nil {
		return err
	}
	watcher.OnIngested = func(ingest.Result) {
		observability.DefaultMetrics.RecordDocumentIndexed(observability.DocSourceIngest)
	}
	if err := watcher.Start(ctx); err != nil {
		return err
	}
	s.watcher = watcher
	return nil
}

func newModelClient(backend string) (llm.Client, error) {
	switch backend {
	case "ollama":
		return llm.NewOllamaClient()
	case "openai":
		return llm.NewOpenAIClient()
	case "local":
		return llm.NewLocalLlamaCppClient()
	default:
		return nil, fmt.Errorf("unknown model backend %q (want ollama, openai, or local)", backend)
	}
}

func (s *service) initRouter() {
	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}
	s.router = gin.Default()
	s.router.Use(otelgin.Middleware("cascadia-gateway"))

	routes.SetupRoutes(s.router, s.env, s.opts, s.config.RateLimit)
}

// cleanup releases every resource the service holds. Safe to call on a
// partially constructed service.
func (s *service) cleanup() {
	if s.cancelBackground != nil {
		s.cancelBackground()
	}
	if s.watcher != nil {
		s.watcher.Stop()
	}
	if s.sweeper != nil {
		s.sweeper.Stop()
	}
	if s.indexDB != nil {
		if err := s.indexDB.Close(); err != nil {
			slog.Warn("failed to close the index database", "error", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if s.meterCleanup != nil {
		if err := s.meterCleanup(ctx); err != nil {
			slog.Warn("failed to shut down metric export", "error", err)
		}
	}
	if s.tracerCleanup != nil {
		s.tracerCleanup(ctx)
	}

	handlers.PurgeSecureMemory()
}
