package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/SantoDelgado/krizo-backend/internal/auth"
	"github.com/SantoDelgado/krizo-backend/internal/config"
	"github.com/SantoDelgado/krizo-backend/internal/identity"
	"github.com/SantoDelgado/krizo-backend/internal/ledger"
	"github.com/SantoDelgado/krizo-backend/internal/middleware"
	"github.com/SantoDelgado/krizo-backend/internal/notification"
	"github.com/SantoDelgado/krizo-backend/internal/paymethod"
	"github.com/SantoDelgado/krizo-backend/internal/payments"
	"github.com/SantoDelgado/krizo-backend/internal/promotion"
	"github.com/SantoDelgado/krizo-backend/internal/provider"
	"github.com/SantoDelgado/krizo-backend/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes. In development the
// service runs on in-memory stores when Postgres or Redis is absent.
func Setup(app *fiber.App, d Deps) error {
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)

	// Storage backends.
	var (
		ledgerStore   ledger.Store
		walletRepo    wallet.Repository
		identityRepo  identity.Repository
		paymentRepo   payments.Repository
		methodRepo    paymethod.Repository
		promotionRepo promotion.Repository
	)
	if d.DB != nil {
		ledgerStore = ledger.NewPostgresStore(d.DB)
		walletRepo = wallet.NewPostgresRepository(d.DB)
		identityRepo = identity.NewPostgresRepository(d.DB)
		paymentRepo = payments.NewPostgresRepository(d.DB)
		methodRepo = paymethod.NewPostgresRepository(d.DB)
		promotionRepo = promotion.NewPostgresRepository(d.DB)
	} else {
		ledgerStore = ledger.NewInMemory()
		walletRepo = wallet.NewMemoryRepository()
		identityRepo = identity.NewMemoryRepository()
		paymentRepo = payments.NewMemoryRepository()
		methodRepo = paymethod.NewMemoryRepository()
		promotionRepo = promotion.NewMemoryRepository()
	}

	prov, err := buildProvider(d.Cfg)
	if err != nil {
		return err
	}

	var notifier notification.Notifier
	if d.Cache != nil {
		notifier = notification.NewRedisNotifier(d.Cache, d.Cfg.NotificationChannel, d.Logger)
	} else {
		notifier = notification.NewLoggerNotifier(d.Logger)
	}

	// Services and handlers.
	walletSvc := wallet.NewService(walletRepo, ledgerStore)
	identitySvc := identity.NewService(identityRepo)
	authSvc := auth.NewService(identitySvc, d.Cfg.JWTSecret, d.Cfg.RefreshSecret, d.Cfg.AccessTokenTTL, d.Cfg.RefreshTokenTTL)
	promotionSvc := promotion.NewService(promotionRepo)
	methodSvc := paymethod.NewService(methodRepo)
	paymentSvc := payments.NewService(ledgerStore, walletSvc, paymentRepo, prov, promotionSvc, notifier, d.Logger, d.Cfg.OrderExpiry)

	authHandler := auth.NewHandler(authSvc, identitySvc)
	walletHandler := wallet.NewHandler(walletSvc)
	paymentHandler := payments.NewHandler(paymentSvc, walletSvc, d.Cfg.Currency)
	methodHandler := paymethod.NewHandler(methodSvc)
	promotionHandler := promotion.NewHandler(promotionSvc)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Public routes.
	rateLimiter := middleware.LoginRateLimit(d.Cache, 5)
	RegisterAuthRoutes(api, authHandler, rateLimiter)
	// Provider settlement reports arrive unauthenticated.
	api.Post("/payments/webhook", paymentHandler.Webhook)

	// Protected routes.
	protected := api.Group("", middleware.JWTAuth(authSvc))
	if d.Cache != nil {
		protected.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}
	protected.Get("/me", authHandler.Me)
	protected.Post("/logout", authHandler.Logout)
	RegisterWalletRoutes(protected, walletHandler)
	RegisterPaymentRoutes(protected, paymentHandler)
	RegisterPaymentMethodRoutes(protected, methodHandler)
	RegisterPromotionRoutes(protected, promotionHandler)

	return nil
}

func buildProvider(cfg config.Config) (provider.Provider, error) {
	switch cfg.PaymentProvider {
	case "paypal":
		return provider.NewPayPal(cfg.PayPalBaseURL, cfg.PayPalClientID, cfg.PayPalClientSecret), nil
	case "binance":
		return provider.NewBinancePay(cfg.BinanceBaseURL, cfg.BinanceAPIKey, cfg.BinanceSecretKey), nil
	case "static", "":
		return provider.NewStatic(), nil
	default:
		return nil, fmt.Errorf("unknown payment provider %q", cfg.PaymentProvider)
	}
}
