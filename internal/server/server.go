package server

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/storage/redis/v3"
	"go.uber.org/zap"

	"bluecarbon/internal/config"
)

// Server wraps the Fiber app and configuration.
type Server struct {
	App     *fiber.App
	Cfg     *config.Config
	logger  *zap.Logger
	storage fiber.Storage
}

// New creates a new server with middleware configured. When REDIS_URL is set
// the rate limiter and dashboard cache share their counters through Redis.
func New(cfg *config.Config, log *zap.Logger) *Server {
	app := fiber.New(fiber.Config{
		AppName:   cfg.SiteTitle,
		BodyLimit: cfg.BodyLimitMB << 20,
		ErrorHandler: func(c fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			message := "Internal Server Error"

			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
				message = e.Message
			} else {
				log.Error("unhandled request error", zap.String("path", c.Path()), zap.Error(err))
			}

			return c.Status(code).JSON(fiber.Map{
				"success": false,
				"error":   message,
			})
		},
	})

	var storage fiber.Storage
	if cfg.RedisURL != "" {
		storage = redis.New(redis.Config{URL: cfg.RedisURL})
		log.Info("using redis for rate limiting and response cache")
	}

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New())

	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Split(cfg.CORSOrigins, ","),
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"},
		MaxAge:       86400,
	}))

	// Rate limiting middleware, per IP
	app.Use(limiter.New(limiter.Config{
		Max:        cfg.RateLimitPerMinute,
		Expiration: 1 * time.Minute,
		Storage:    storage,
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP()
		},
		Next: func(c fiber.Ctx) bool {
			// Probes and scrapes are never limited.
			p := c.Path()
			return p == "/healthz" || p == "/readyz" || p == "/metrics"
		},
		LimitReached: func(c fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"success": false,
				"error":   "Rate limit exceeded. Please try again later.",
			})
		},
	}))

	return &Server{
		App:     app,
		Cfg:     cfg,
		logger:  log,
		storage: storage,
	}
}

// Start starts the server on the configured address.
func (s *Server) Start() error {
	s.logger.Info("starting server", zap.String("addr", s.Cfg.ServerAddr))
	return s.App.Listen(s.Cfg.ServerAddr, fiber.ListenConfig{DisableStartupMessage: !s.Cfg.IsDev()})
}

// Shutdown gracefully shuts down the server and closes the shared storage.
func (s *Server) Shutdown() error {
	err := s.App.Shutdown()
	if s.storage != nil {
		if cerr := s.storage.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
