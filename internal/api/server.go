package api

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/SundayYogurt/ims_service/config"
	"github.com/SundayYogurt/ims_service/infra/queue"
	"github.com/SundayYogurt/ims_service/internal/api/rest/handlers"
	"github.com/SundayYogurt/ims_service/internal/api/rest/middleware"
	"github.com/SundayYogurt/ims_service/internal/db"
	"github.com/SundayYogurt/ims_service/internal/helper"
	"github.com/SundayYogurt/ims_service/internal/interfaces"
	"github.com/SundayYogurt/ims_service/internal/metrics"
	"github.com/SundayYogurt/ims_service/internal/repository"
	"github.com/SundayYogurt/ims_service/internal/services"
	"github.com/SundayYogurt/ims_service/pkg/cardtoken"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

// Deps is everything the HTTP app needs. Producer may be nil. Metrics
// are built on Registry unless given.
type Deps struct {
	Config   config.Config
	DB       *gorm.DB
	Signer   *cardtoken.Signer
	Producer interfaces.ProducerHandler
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	Logger   *logrus.Logger
}

// NewApp wires repositories, services and handlers onto a fiber app.
func NewApp(d Deps) *fiber.App {
	cfg := d.Config
	logger := d.Logger

	app := fiber.New(fiber.Config{
		AppName:      "ims-card-service",
		ErrorHandler: errorHandler(logger),
	})

	// ---------- Middleware ----------
	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{Output: logger.Out}))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.BaseURL,
		AllowHeaders:     "Content-Type, Accept, Authorization, X-Device-Id",
		AllowMethods:     "GET, POST, OPTIONS",
		AllowCredentials: cfg.BaseURL != "*",
	}))

	// ---------- Metrics ----------
	m := d.Metrics
	if d.Registry != nil {
		if m == nil {
			m = metrics.New(d.Registry)
		}
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{})))
	}

	authHelper := helper.SetupAuth(cfg.AccessSecret, cfg.AccessTTL)

	// ---------- Repositories ----------
	userRepo := repository.NewUserRepository(d.DB)
	roleRepo := repository.NewRoleRepository(d.DB)
	userRoleRepo := repository.NewUserRoleRepository(d.DB)
	institutionRepo := repository.NewInstitutionRepository(d.DB)
	studentRepo := repository.NewStudentRepository(d.DB)
	cardRepo := repository.NewCardRepository(d.DB)
	ledgerRepo := repository.NewLedgerRepository(d.DB)
	verificationRepo := repository.NewVerificationRepository(d.DB)

	// ---------- Services ----------
	userSvc := services.NewUserService(userRepo, roleRepo, userRoleRepo, institutionRepo, authHelper)
	tokenSvc := services.NewTokenService(
		cardRepo,
		d.Signer,
		services.TokenServiceConfig{EnforceOwnership: cfg.EnforceCardOwnership},
		m,
		logger,
	)
	cardSvc := services.NewCardService(cardRepo, ledgerRepo, studentRepo, d.Producer, m, logger)
	auditSvc := services.NewAuditService(verificationRepo, m, logger)
	verifySvc := services.NewVerifyService(cardRepo, ledgerRepo, auditSvc, d.Signer, d.Producer, m, logger)

	// ---------- Handlers ----------
	authMw := middleware.AuthMiddleware(authHelper, userSvc)

	handlers.NewUserHandler(userSvc, authHelper).SetupRoutes(app, authMw)
	handlers.NewCardHandler(tokenSvc, cardSvc, authHelper).SetupRoutes(app, authMw)
	handlers.NewVerificationHandler(auditSvc, authHelper).SetupRoutes(app, authMw)

	var guards []fiber.Handler
	if cfg.VerifyRateLimit > 0 {
		guards = append(guards, verifyLimiter(cfg.VerifyRateLimit))
	}
	handlers.NewVerifyHandler(verifySvc).SetupRoutes(app, guards...)

	// ---------- Health ----------
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	return app
}

// StartServer opens the database, migrates, connects the event broker
// and serves until SIGINT or SIGTERM.
func StartServer(cfg config.Config, logger *logrus.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("refusing to serve: %w", err)
	}

	signer, err := cardtoken.New(cfg.VerifyJWTSecret)
	if err != nil {
		return err
	}

	// ---------- DB ----------
	gdb, err := db.Open(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close(gdb) }()
	logger.WithField("driver", cfg.DatabaseDriver).Info("database connected")

	if err := db.Migrate(gdb); err != nil {
		return err
	}
	logger.Info("migration successful")

	// ---------- Infra ----------
	registry := metrics.NewRegistry()
	m := metrics.New(registry)

	publisher, err := queue.NewPublisher(cfg, func(n int, _ error) { m.EventsUndelivered(n) })
	if err != nil {
		return err
	}
	var producer interfaces.ProducerHandler
	if publisher != nil {
		producer = publisher
		defer func() { _ = publisher.Close() }()
		logger.WithField("broker", cfg.EventBroker).Info("event publishing enabled")
	}

	app := NewApp(Deps{
		Config:   cfg,
		DB:       gdb,
		Signer:   signer,
		Producer: producer,
		Registry: registry,
		Metrics:  m,
		Logger:   logger,
	})

	// ---------- Listen ----------
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", cfg.ServerPort).Info("listening")
		errCh <- app.Listen(cfg.ServerPort)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("shutting down")
		return app.ShutdownWithTimeout(shutdownTimeout)
	}
}

func verifyLimiter(perMinute int) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        perMinute,
		Expiration: time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"valid":  false,
				"reason": "rate_limited",
			})
		},
	})
}

func errorHandler(logger logrus.FieldLogger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
		}
		if code >= fiber.StatusInternalServerError {
			logger.WithError(err).WithField("path", c.Path()).Error("unhandled error")
			return c.Status(code).JSON(fiber.Map{"error": "Server error"})
		}
		return c.Status(code).JSON(fiber.Map{"error": err.Error()})
	}
}
