package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/pharmacy-pos/internal/domain/auth"
	"github.com/xenking/pharmacy-pos/internal/domain/sale"
	"github.com/xenking/pharmacy-pos/internal/handler"
	"github.com/xenking/pharmacy-pos/internal/storage/postgres"
	"github.com/xenking/pharmacy-pos/pkg/health"
	"github.com/xenking/pharmacy-pos/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application. m is usually
// the *app.Telemetry handed out by the go-faster/sdk runner.
func Run(ctx context.Context, lg *zap.Logger, m httpmiddleware.Telemetry, cfg *Config) error {
	saleCfg, err := cfg.Sales.saleConfig()
	if err != nil {
		return errors.Wrap(err, "sales config")
	}
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("tax_rate", saleCfg.TaxRate.String()),
		zap.String("stock_policy", string(saleCfg.StockPolicy)),
		zap.String("timezone", saleCfg.Location.String()),
	)

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddLivenessCheck("gc-pause", time.Second, health.GCMaxPauseCheck(time.Second))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	medicines := postgres.NewMedicineRepository(pool)
	sales := postgres.NewSaleStore(pool, cfg.Sales.LockTimeout)

	saleService, err := sale.NewService(sales, saleCfg,
		sale.WithTracerProvider(m.TracerProvider()),
		sale.WithMeterProvider(m.MeterProvider()),
	)
	if err != nil {
		return errors.Wrap(err, "create sale service")
	}
	tokens, err := auth.NewTokens([]byte(cfg.JWTSecret), cfg.TokenTTL)
	if err != nil {
		return errors.Wrap(err, "create token verifier")
	}

	h := handler.NewHandler(
		handler.Config{Location: saleCfg.Location},
		saleService,
		sales,
		medicines,
		tokens,
	)

	router := chi.NewRouter()
	router.Get("/livez", healthSvc.LiveEndpoint)
	router.Get("/readyz", healthSvc.ReadyEndpoint)
	h.Mount(router)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      cfg.Sales.LockTimeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(router,
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(lg),
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", httpmiddleware.HeaderRequestID},
				ExposeHeaders:    []string{httpmiddleware.HeaderRequestID},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.Route(),
			httpmiddleware.Instrument("pharmacy-api", m),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
