package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/xenking/luxe-store/internal/domain/cart"
	"github.com/xenking/luxe-store/internal/domain/checkout"
	"github.com/xenking/luxe-store/internal/domain/order"
	"github.com/xenking/luxe-store/internal/domain/product"
	"github.com/xenking/luxe-store/internal/domain/promo"
	"github.com/xenking/luxe-store/internal/domain/review"
	"github.com/xenking/luxe-store/internal/domain/wishlist"
	"github.com/xenking/luxe-store/internal/handler"
	redisstore "github.com/xenking/luxe-store/internal/storage/redis"
	"github.com/xenking/luxe-store/pkg/health"
	"github.com/xenking/luxe-store/pkg/httpmiddleware"
)

// ServiceName identifies the storefront API in telemetry.
const ServiceName = "luxe-api"

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("storage", cfg.Storage.Driver),
	)

	srv, err := newServer(ctx, lg, m, cfg)
	if err != nil {
		return err
	}
	defer srv.Close()

	srv.health.Start(ctx, 10*time.Second)
	srv.health.SetReady(true)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           srv.handler,
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		srv.health.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		srv.health.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// server is the assembled HTTP surface with its dependencies.
type server struct {
	handler http.Handler
	health  *health.Health
	repos   *repositories
}

// Close stops health checks and releases storage connections.
func (s *server) Close() {
	s.health.Stop()
	s.repos.Close()
}

// newServer opens storage, builds the services and wraps the router in the
// middleware chain. Health checks are registered but not started.
func newServer(ctx context.Context, lg *zap.Logger, t httpmiddleware.Telemetry, cfg *Config) (*server, error) {
	healthSvc := health.New()
	healthSvc.Add(health.Liveness, "goroutines", health.GoroutineCountCheck(10000),
		health.WithTimeout(time.Second),
	)

	repos, err := openStorage(ctx, lg, cfg, healthSvc)
	if err != nil {
		return nil, err
	}

	h, err := newHandler(t, cfg, repos)
	if err != nil {
		repos.Close()
		return nil, err
	}

	router := mux.NewRouter()
	router.HandleFunc("/livez", healthSvc.LiveEndpoint).Methods(http.MethodGet)
	router.HandleFunc("/readyz", healthSvc.ReadyEndpoint).Methods(http.MethodGet)
	h.Register(router)
	routeFinder := httpmiddleware.MakeRouteFinder(router)

	return &server{
		health: healthSvc,
		repos:  repos,
		handler: httpmiddleware.Wrap(router,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization"},
				ExposeHeaders:    []string{httpmiddleware.RequestIDHeader},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(lg),
			httpmiddleware.Instrument(ServiceName, routeFinder, t),
			httpmiddleware.LogRequests(routeFinder),
			handler.Authenticate(handler.NewJWTGateway([]byte(cfg.Auth.JWTSecret), cfg.Auth.Issuer)),
			httpmiddleware.RateLimit(httpmiddleware.RateLimitConfig{
				Limiter: newLimiter(ctx, cfg, repos),
				KeyFunc: handler.RateLimitKey,
			}),
		),
	}, nil
}

// newHandler builds the domain services on top of repos.
func newHandler(t httpmiddleware.Telemetry, cfg *Config, repos *repositories) (*handler.Handler, error) {
	calc, err := cfg.Pricing.Calculator()
	if err != nil {
		return nil, err
	}

	rules := promo.DefaultRules()
	if cfg.Promo.File != "" {
		if rules, err = promo.LoadFile(cfg.Promo.File); err != nil {
			return nil, errors.Wrap(err, "load promotions")
		}
	}
	engine, err := promo.NewEngine(rules)
	if err != nil {
		return nil, errors.Wrap(err, "build promo engine")
	}

	carts := cart.NewStore(repos.carts, repos.products,
		cart.WithMeter(t.MeterProvider().Meter("luxe/cart")),
	)
	ledger := order.NewLedger(repos.orders, calc, cfg.Orders.Ledger(),
		order.WithTracerProvider(t.TracerProvider()),
		order.WithMeterProvider(t.MeterProvider()),
	)

	var reviewOpts []review.Option
	if repos.cache != nil {
		reviewOpts = append(reviewOpts, review.WithInvalidator(repos.cache))
	}

	return handler.New(handler.Config{ImageBaseURL: cfg.ImageBaseURL}, handler.Services{
		Products:  product.NewService(repos.products),
		Carts:     carts,
		Wishlists: wishlist.NewService(repos.wishlists, repos.products),
		Reviews:   review.NewService(repos.reviews, repos.products, reviewOpts...),
		Checkout:  checkout.NewService(carts, engine, calc, ledger),
		Orders:    ledger,
	}), nil
}

// newLimiter shares rate limit state through redis when it is configured and
// falls back to a per-process sliding window.
func newLimiter(ctx context.Context, cfg *Config, repos *repositories) httpmiddleware.Limiter {
	if repos.redis != nil {
		return redisstore.NewLimiter(repos.redis, cfg.RateLimit.Max, cfg.RateLimit.Window)
	}
	sw := httpmiddleware.NewSlidingWindow(cfg.RateLimit.Max, cfg.RateLimit.Window)
	go sw.RunSweeper(ctx)
	return sw
}
