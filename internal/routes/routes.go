package routes

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/bookswap/bookswap/internal/auth"
	"github.com/bookswap/bookswap/internal/book"
	"github.com/bookswap/bookswap/internal/cdek"
	"github.com/bookswap/bookswap/internal/config"
	"github.com/bookswap/bookswap/internal/deal"
	"github.com/bookswap/bookswap/internal/identity"
	"github.com/bookswap/bookswap/internal/middleware"
	"github.com/bookswap/bookswap/internal/notification"
	"github.com/bookswap/bookswap/internal/shipping"
	"github.com/bookswap/bookswap/internal/store"
	"github.com/bookswap/bookswap/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Enforce DB/Redis presence outside of dev, even though main also checks.
	if !d.Cfg.Dev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Audit(d.Logger))

	// Health
	RegisterHealthRoutes(app, d)

	// Storage
	var st store.Store
	if d.DB != nil {
		pg := store.NewPostgres(d.DB)
		if err := pg.Migrate(context.Background()); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		st = pg
	} else {
		st = store.NewMemory()
	}

	// Shipping gateway
	provider, err := shippingProvider(d.Cfg)
	if err != nil {
		return err
	}

	// Services and handlers
	notifier := notification.NewLoggerNotifier(d.Logger)
	walletSvc := wallet.NewService(st)
	bookSvc := book.NewService(st)
	dealSvc := deal.NewService(st, provider, notifier)

	var identityRepo identity.Repository
	if d.DB != nil {
		identityRepo = identity.NewPostgresRepository(d.DB)
	} else {
		identityRepo = identity.NewMemoryRepository(st)
	}
	identitySvc := identity.NewService(identityRepo)
	authSvc := auth.NewService(d.Cfg)

	authHandler := auth.NewHandler(identitySvc, authSvc)
	identityHandler := identity.NewHandler(identitySvc)
	walletHandler := wallet.NewHandler(walletSvc)
	bookHandler := book.NewHandler(bookSvc)
	dealHandler := deal.NewHandler(dealSvc)
	shippingHandler := shipping.NewHandler(provider)

	// API routes
	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Public routes
	rateLimiter := middleware.LoginRateLimit(d.Cache, 5)
	RegisterAuthRoutes(api, authHandler, rateLimiter)

	// Mixed public/protected route sets take the auth middleware directly so
	// literal paths register ahead of parameterised ones.
	jwtmw := middleware.JWTAuth(authSvc)
	RegisterBookRoutes(api, bookHandler, jwtmw)
	RegisterUserRoutes(api, identityHandler, jwtmw)

	// Protected routes
	protected := api.Group("", jwtmw)
	RegisterDealRoutes(protected, dealHandler, middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	RegisterWalletRoutes(protected, walletHandler)
	RegisterShippingRoutes(protected, shippingHandler)

	return nil
}

func shippingProvider(cfg config.Config) (shipping.Provider, error) {
	switch cfg.ShippingMode {
	case "cdek":
		client := cdek.NewClient(cfg.CdekBaseURL, cfg.CdekClientID, cfg.CdekClientSecret)
		return cdek.NewProvider(client), nil
	default:
		return shipping.NewMock(), nil
	}
}
