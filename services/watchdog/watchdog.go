// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package watchdog provides the vehicle watchdog service for AleutianVehicle.
//
// This package contains the main service type that coordinates the I/O
// overuse configuration engine, the latest-config file watcher, the admin
// HTTP API, and observability infrastructure.
//
// # Usage
//
//	cfg := watchdog.Config{Port: 12220}
//	svc, err := watchdog.New(cfg, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run())
package watchdog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/AleutianAI/AleutianVehicle/services/watchdog/ioconfig"
	"github.com/AleutianAI/AleutianVehicle/services/watchdog/observability"
	"github.com/AleutianAI/AleutianVehicle/services/watchdog/routes"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Service defines the contract for the watchdog service.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. Run() blocks and should
// only be called once per instance.
type Service interface {
	// Run starts the HTTP server (and the latest-config watcher when
	// enabled) and blocks until shutdown or error.
	Run() error

	// Router returns the underlying Gin engine for testing.
	Router() *gin.Engine

	// Configs returns the live configuration engine, for callers embedding
	// the service (the resource accounting pipeline resolves thresholds
	// against it directly).
	Configs() *ioconfig.IoOveruseConfigs
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds watchdog service configuration options. All fields are
// optional with defaults applied by New().
type Config struct {
	// Port is the HTTP server port. Default: 12220
	Port int

	// BuildConfigDir holds the read-only build configuration files.
	// Default: /etc/carwatchdog
	BuildConfigDir string

	// LatestConfigDir holds OEM-pushed latest configuration files.
	// Default: /var/lib/carwatchdog
	LatestConfigDir string

	// WatchLatest enables the fsnotify watcher over LatestConfigDir.
	// Default: false (updates arrive through the admin API only).
	WatchLatest bool

	// OTelEndpoint is the OpenTelemetry collector endpoint.
	// Default: "aleutian-otel-collector:4317"
	OTelEndpoint string

	// EnableMetrics enables the Prometheus /metrics endpoint. Always on
	// today; kept for parity with the other services.
	EnableMetrics bool

	// GinMode sets the Gin framework mode.
	// Valid values: "debug", "release", "test"
	GinMode string
}

// =============================================================================
// Implementation
// =============================================================================

type service struct {
	config        Config
	router        *gin.Engine
	engine        *ioconfig.IoOveruseConfigs
	watcher       *ioconfig.Watcher
	metrics       *observability.WatchdogMetrics
	tracerCleanup func(context.Context)
}

// New creates a watchdog Service with the given configuration.
//
// # Description
//
// New initializes all components:
//  1. Applies default configuration for missing values
//  2. Initializes OpenTelemetry tracing
//  3. Initializes Prometheus metrics
//  4. Builds the configuration engine from the build/latest files
//  5. Creates the latest-config watcher when enabled
//  6. Sets up the HTTP routes
//
// If parser is nil, the production YAML parser is used; tests inject their
// own to avoid the filesystem.
//
// # Outputs
//
//   - Service: ready-to-run watchdog service
//   - error: non-nil if initialization fails
func New(cfg Config, parser ioconfig.ConfigParser) (Service, error) {
	s := &service{config: applyConfigDefaults(cfg)}

	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}

	cleanup, err := s.initTracer()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	s.tracerCleanup = cleanup

	if s.config.EnableMetrics {
		s.metrics = observability.InitMetrics()
		slog.Info("Initialized Prometheus metrics for watchdog")
	}

	if parser == nil {
		parser = ioconfig.NewYAMLParser()
	}
	paths := ioconfig.ConfigPaths{
		BuildDir:  s.config.BuildConfigDir,
		LatestDir: s.config.LatestConfigDir,
	}
	s.engine = ioconfig.NewIoOveruseConfigs(parser, paths)
	s.metrics.SetConfiguredComponents(len(s.engine.Get()))

	if s.config.WatchLatest {
		s.watcher, err = ioconfig.NewWatcher(s.engine, parser, paths)
		if err != nil {
			s.cleanup()
			return nil, fmt.Errorf("failed to create config watcher: %w", err)
		}
		s.watcher.OnUpdate = func(success bool) {
			s.metrics.RecordUpdate(observability.SourceWatcher, success)
			if success {
				s.metrics.SetConfiguredComponents(len(s.engine.Get()))
			}
		}
	}

	s.initRouter()
	return s, nil
}

// Run starts the HTTP server and blocks until shutdown or error. When the
// watcher is enabled it runs alongside the server; either one failing stops
// the other.
func (s *service) Run() error {
	defer s.cleanup()

	g, ctx := errgroup.WithContext(context.Background())

	if s.watcher != nil {
		g.Go(func() error {
			return s.watcher.Run(ctx)
		})
	}

	g.Go(func() error {
		addr := fmt.Sprintf(":%d", s.config.Port)
		slog.Info("Starting watchdog server", "port", s.config.Port)
		return s.router.Run(addr)
	})

	return g.Wait()
}

// Router returns the underlying Gin engine for testing.
func (s *service) Router() *gin.Engine {
	return s.router
}

// Configs returns the live configuration engine.
func (s *service) Configs() *ioconfig.IoOveruseConfigs {
	return s.engine
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

// applyConfigDefaults fills in missing configuration values.
func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 12220
	}
	if cfg.BuildConfigDir == "" {
		cfg.BuildConfigDir = ioconfig.DefaultBuildConfigDir
	}
	if cfg.LatestConfigDir == "" {
		cfg.LatestConfigDir = ioconfig.DefaultLatestConfigDir
	}
	if cfg.OTelEndpoint == "" {
		cfg.OTelEndpoint = "aleutian-otel-collector:4317"
	}
	cfg.EnableMetrics = true
	return cfg
}

// initTracer initializes OpenTelemetry distributed tracing.
//
// Uses an insecure gRPC connection, appropriate for internal networks. The
// connection is lazy; an unreachable collector does not fail startup.
func (s *service) initTracer() (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(s.config.OTelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("watchdog-service")))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
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
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}

	return cleanup, nil
}

// initRouter sets up the Gin HTTP router with all routes.
func (s *service) initRouter() {
	s.router = gin.Default()
	s.router.Use(otelgin.Middleware("watchdog-service"))

	routes.SetupRoutes(s.router, s.engine, s.metrics)
}

// cleanup releases all resources held by the service.
func (s *service) cleanup() {
	if s.watcher != nil {
		s.watcher.Stop()
	}
	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
}

// =============================================================================
// Compile-time Interface Compliance
// =============================================================================

var _ Service = (*service)(nil)
