// Package app wires configuration, storage, domain services, and the HTTP
// server together.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/juicyshop/backend/internal/domain/client"
	"github.com/juicyshop/backend/internal/domain/discount"
	"github.com/juicyshop/backend/internal/domain/order"
	"github.com/juicyshop/backend/internal/domain/referral"
	"github.com/juicyshop/backend/internal/domain/wallet"
	"github.com/juicyshop/backend/internal/handler"
	"github.com/juicyshop/backend/internal/hintcache"
	"github.com/juicyshop/backend/internal/notify"
	"github.com/juicyshop/backend/internal/repository"
	"github.com/juicyshop/backend/internal/telegram"
	"github.com/juicyshop/backend/pkg/health"
	"github.com/juicyshop/backend/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, cfg *Config) error {
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

	// Optional Redis-backed UI hint cache. A nil cache is a permanent miss.
	var hints *hintcache.Cache
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return errors.Wrap(err, "parse redis url")
		}
		rdb := redis.NewClient(opt)
		defer func() { _ = rdb.Close() }()

		hints = hintcache.New(rdb)
		healthSvc.AddReadinessCheck("redis", 5*time.Second, func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
	}

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Repositories.
	productRepo := repository.NewProductRepository(pool)
	clientRepo := repository.NewClientRepository(pool)
	walletRepo := repository.NewWalletRepository(pool)
	orderRepo := repository.NewOrderRepository(pool)
	discountRepo := repository.NewDiscountRepository(pool)
	apikeyRepo := repository.NewAPIKeyRepository(pool)

	// Notification transport: Telegram when configured, no-op otherwise.
	var dispatcher notify.Dispatcher = notify.Nop{}
	var bot *telegram.Client
	if cfg.Telegram.BotToken != "" {
		bot = telegram.NewClient(cfg.Telegram.BotToken)
		dispatcher = notify.NewTelegram(bot, cfg.Telegram.AdminChatID)
	}

	// Domain services.
	engine := discount.NewEngine(discountRepo, orderRepo)
	ledger := wallet.NewLedger(walletRepo)
	graph := referral.NewGraph(clientRepo)
	clientService := client.NewService(clientRepo, dispatcher)
	orderService := order.NewService(productRepo, clientRepo, engine, ledger, orderRepo, dispatcher)

	// HTTP handlers.
	security := handler.NewSecurity(apikeyRepo, []byte(cfg.APIKeyPepper))
	h := handler.NewHandler(
		handler.Config{
			Hints:       hints,
			Bot:         bot,
			AdminChatID: cfg.Telegram.AdminChatID,
		},
		productRepo,
		clientRepo,
		clientService,
		orderService,
		orderRepo,
		discountRepo,
		engine,
		ledger,
		graph,
		security,
	)

	mux := chi.NewRouter()
	mux.Get("/livez", healthSvc.LiveEndpoint)
	mux.Get("/readyz", healthSvc.ReadyEndpoint)
	h.Routes(mux)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", "X-API-Key"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
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

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
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
