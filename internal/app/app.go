package app

import (
	"context"
	"net/http"
	"time"
	_ "time/tzdata" // edit window zones must resolve on minimal images

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xenking/procurement-portal/internal/domain/order"
	"github.com/xenking/procurement-portal/internal/handler"
	"github.com/xenking/procurement-portal/internal/repository"
	"github.com/xenking/procurement-portal/pkg/health"
	"github.com/xenking/procurement-portal/pkg/httpmiddleware"
)

// NewAPI wires repositories, the order engine and the HTTP handlers on top
// of pool. The returned handler serves everything under /api.
func NewAPI(
	ctx context.Context,
	lg *zap.Logger,
	pool *pgxpool.Pool,
	cfg *Config,
	tel httpmiddleware.Telemetry,
) (http.Handler, *order.Service, error) {
	productRepo := repository.NewProductRepository(pool)
	orderRepo := repository.NewOrderRepository(pool)
	unitRepo := repository.NewUnitRepository(pool)
	apikeyRepo := repository.NewAPIKeyRepository(pool)

	orderCfg := cfg.OrderConfig()
	if orderCfg.Window.Location == nil {
		lg.Warn("No edit window time zone could be loaded, using UTC",
			zap.Strings("candidates", cfg.EditWindow.TimeZones))
	}
	orderService, err := order.NewService(orderCfg, orderRepo, orderRepo, productRepo, unitRepo,
		order.WithMeterProvider(tel.MeterProvider()),
		order.WithTracerProvider(tel.TracerProvider()),
	)
	if err != nil {
		return nil, nil, errors.Wrap(err, "create order service")
	}

	h := handler.NewHandler(orderService, productRepo)
	securityHandler := handler.NewSecurityHandler(apikeyRepo, []byte(cfg.APIKeyPepper))

	api := h.Routes(securityHandler,
		httpmiddleware.Recovery(),
		httpmiddleware.InjectLogger(zctx.From(ctx)),
		httpmiddleware.RequestID(),
		httpmiddleware.Instrument("portal-api", tel),
		httpmiddleware.LogRequests(),
	)
	return api, orderService, nil
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	api, orderService, err := NewAPI(ctx, lg, pool, cfg, m)
	if err != nil {
		return err
	}

	// Health endpoints and API routes on one server.
	mux := chi.NewRouter()
	mux.Get("/livez", healthSvc.LiveEndpoint)
	mux.Get("/readyz", healthSvc.ReadyEndpoint)
	mux.Mount("/", api)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           mux,
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening",
		zap.String("addr", cfg.Addr),
		zap.Stringer("monthly_limit_kg", orderService.LimitKg()),
	)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
