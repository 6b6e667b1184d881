package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/reelty/clipper-api/internal/auth"
	"github.com/reelty/clipper-api/internal/client"
	"github.com/reelty/clipper-api/internal/config"
	"github.com/reelty/clipper-api/internal/handler"
	"github.com/reelty/clipper-api/internal/media"
	"github.com/reelty/clipper-api/internal/middleware"
	"github.com/reelty/clipper-api/internal/registry"
	"github.com/reelty/clipper-api/internal/service"
	"github.com/reelty/clipper-api/internal/worker"
	ws "github.com/reelty/clipper-api/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Redis backs the task queue and the rate limiter
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available: %v", err)
	}

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer asynqClient.Close()

	languages, err := service.LoadLanguages(filepath.Join(cfg.Server.DataDir, "language.json"))
	if err != nil {
		log.Printf("Warning: language list unavailable: %v", err)
		languages = service.NewLanguageIndex(nil)
	}

	// Shared job state
	reg := registry.New()
	hub := ws.NewHub()

	// Outbound clients
	vizardClient := client.NewVizardClient(&cfg.Provider)
	if !vizardClient.IsConfigured() {
		log.Println("Warning: Vizard API key not configured")
	}
	backendClient := client.NewBackendClient(&cfg.Backend)
	r2Client, err := client.NewR2Client(&cfg.R2)
	if err != nil {
		log.Fatalf("Failed to initialize R2 client: %v", err)
	}
	embedClient := client.NewEmbedClient(&cfg.Embedding)
	engine := media.NewFFmpeg()

	clipService := service.NewClipService(cfg, reg, hub, vizardClient, backendClient, engine, asynqClient, languages)

	clipHandler := handler.NewClipHandler(clipService)
	refHandler := handler.NewReferenceHandler(cfg.Server.DataDir)

	authenticate := buildAuthenticator(cfg)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    10 * 1024 * 1024, // 10MB
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"service":   "clipper-api",
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "activeJobs": reg.Len()})
	})

	ai := app.Group("/ai")
	ai.Post("/generate", authenticate, rateLimiter.GenerateLimit(cfg.RateLimit.GeneratePerHour), clipHandler.Generate)
	ai.Post("/cancel/:projectId", authenticate, clipHandler.Cancel)
	// The provider calls this back directly; it carries no user credential
	ai.Post("/webhook/vizard", clipHandler.Webhook)
	ai.Get("/supported-language", refHandler.SupportedLanguages)
	ai.Get("/supported-param", refHandler.SupportedParams)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/clip-generation/:projectId", websocket.New(func(c *websocket.Conn) {
		projectID := registry.CanonicalID(c.Params("projectId"))
		hub.HandleConnection(c, projectID)
	}))

	// In-process render workers share the registry and hub with the API
	go startWorkerServer(cfg, reg, hub, backendClient, r2Client, embedClient, engine)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		log.Println("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	addr := ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func buildAuthenticator(cfg *config.Config) fiber.Handler {
	switch {
	case cfg.Auth.JWKSURL != "":
		verifier, err := auth.NewJWKSVerifier(&cfg.Auth)
		if err != nil {
			log.Fatalf("Failed to initialize JWKS verifier: %v", err)
		}
		return middleware.NewAuthMiddleware(verifier).Authenticate()
	case cfg.Auth.JWTSecret != "":
		return middleware.NewAuthMiddleware(auth.NewHMACVerifier(cfg.Auth.JWTSecret)).Authenticate()
	default:
		log.Println("Warning: auth disabled, no JWKS URL or JWT secret configured")
		return func(c *fiber.Ctx) error { return c.Next() }
	}
}

func startWorkerServer(
	cfg *config.Config,
	reg *registry.Registry,
	hub *ws.Hub,
	clips client.ClipStore,
	storage client.StorageClient,
	scorer client.ClipScorer,
	engine media.Engine,
) {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: 4,
			Queues: map[string]int{
				"render": 10,
			},
		},
	)

	renderWorker := worker.NewRenderWorker(cfg, reg, hub, clips, storage, scorer, engine)

	mux := asynq.NewServeMux()
	mux.HandleFunc(service.TaskTypeRender, renderWorker.ProcessTask)

	if err := srv.Run(mux); err != nil {
		log.Printf("Asynq worker error: %v", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
