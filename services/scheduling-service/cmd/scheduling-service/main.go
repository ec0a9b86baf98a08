package main

import (
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/md-rashed-zaman/apptscheduler/libs/config"
	"github.com/md-rashed-zaman/apptscheduler/libs/httpx"
	otelx "github.com/md-rashed-zaman/apptscheduler/libs/otel"
	"github.com/md-rashed-zaman/apptscheduler/libs/runtime"
	"github.com/md-rashed-zaman/apptscheduler/services/scheduling-service/internal/admission"
	"github.com/md-rashed-zaman/apptscheduler/services/scheduling-service/internal/availability"
	"github.com/md-rashed-zaman/apptscheduler/services/scheduling-service/internal/handlers"
	"github.com/md-rashed-zaman/apptscheduler/services/scheduling-service/internal/lifecycle"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func main() {
	service := config.String("SERVICE_NAME", "scheduling-service")
	logger := runtime.NewLogger(service)
	if err := run(service, logger); err != nil {
		logger.Error("scheduling service exited", "err", err)
		os.Exit(1)
	}
}

func run(service string, logger *slog.Logger) error {
	port, err := config.Port("PORT", "8083")
	if err != nil {
		return err
	}
	step, err := config.Int("SLOT_STEP_MINUTES", availability.DefaultStepMinutes)
	if err != nil {
		return err
	}
	limitPerMinute, err := config.Int("RATE_LIMIT_PER_MINUTE", 60)
	if err != nil {
		return err
	}
	requestTimeout, err := config.Duration("REQUEST_TIMEOUT", 10*time.Second)
	if err != nil {
		return err
	}

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
		otelShutdown = nil
	}

	backend, err := openBackend(ctx, logger)
	if err != nil {
		return err
	}
	defer backend.Close()

	if err := backend.seedCatalog(ctx, logger); err != nil {
		return err
	}
	backend.startWorkers(ctx, logger)

	engine := availability.NewEngine(backend.store, step)
	guard := admission.NewGuard(backend.store, logger)
	machine := lifecycle.NewMachine(backend.store, logger, lifecycle.ServiceHistory(logger))

	mux := runtime.NewBaseMuxWithReady(backend.readyChecks...)
	handlers.Register(mux,
		handlers.NewPublicHandler(engine, guard, logger),
		handlers.NewAppointmentHandler(backend.store, machine, logger),
		handlers.NewScheduleHandler(backend.store, logger),
	)

	rateLimit, closeLimiter := newRateLimit(logger, limitPerMinute)
	defer closeLimiter()

	httpHandler := httpx.Chain(mux,
		httpx.WithRecover(logger),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins:   config.List("CORS_ALLOWED_ORIGINS", ""),
			AllowCredentials: config.Bool("CORS_ALLOW_CREDENTIALS", false),
			MaxAge:           10 * time.Minute,
		}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(requestTimeout),
		httpx.OnlyPaths(rateLimit, handlers.PublicPaths...),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "scheduling")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	health, err := startGrpcServer(ctx, logger, service)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", "addr", srv.Addr, "storage", backend.driver, "slot_step_minutes", engine.StepMinutes())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	health.SetServingStatus(service, healthpb.HealthCheckResponse_SERVING)
	health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.Error("http server error", "err", err)
		stop()
	}

	health.Shutdown()
	if err := runtime.Shutdown(10*time.Second, srv.Shutdown, otelShutdown); err != nil {
		logger.Error("shutdown error", "err", err)
	}
	logger.Info("http server stopped")
	return nil
}

func driverFromEnv() string {
	return strings.ToLower(strings.TrimSpace(config.String("STORAGE_DRIVER", "postgres")))
}
