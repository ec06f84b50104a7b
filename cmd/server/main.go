package main

import (
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/robfig/cron/v3"

	"github.com/dreamtools/dream-background-remover/internal/client"
	"github.com/dreamtools/dream-background-remover/internal/config"
	"github.com/dreamtools/dream-background-remover/internal/controller"
	"github.com/dreamtools/dream-background-remover/internal/dispatch"
	"github.com/dreamtools/dream-background-remover/internal/handler"
	"github.com/dreamtools/dream-background-remover/internal/history"
	"github.com/dreamtools/dream-background-remover/internal/i18n"
	"github.com/dreamtools/dream-background-remover/internal/integrator"
	"github.com/dreamtools/dream-background-remover/internal/settings"
	ws "github.com/dreamtools/dream-background-remover/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	lang := i18n.Parse(cfg.Server.Language)

	// Settings store (GIMP user config dir)
	settingsStore := settings.NewStore("")

	// History store lives next to the settings file unless configured
	historyPath := cfg.History.Path
	if historyPath == "" {
		historyPath = filepath.Join(filepath.Dir(settingsStore.Path()), "dream-background-remover-history.db")
	}
	historyStore, err := history.Open(historyPath)
	if err != nil {
		log.Fatalf("Failed to open history store: %v", err)
	}
	defer historyStore.Close()

	// Initialize validator
	validate := validator.New()

	// WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Dispatch loop: the single delivery context for all job events
	loop := dispatch.NewLoop(256)
	go loop.Run()
	defer loop.Close()

	// Remote API client and host integration
	replicateClient := client.NewReplicateClient(&cfg.Replicate)
	fileIntegrator := integrator.NewFileIntegrator(cfg.Output.Dir)

	// Job controller with hub + history delivery
	sink := controller.MultiSink{
		ws.NewSink(hub, lang),
		history.NewSink(historyStore, lang),
	}
	ctrl := controller.New(controller.Config{
		PollInitial:    cfg.Poll.InitialInterval,
		PollMax:        cfg.Poll.MaxInterval,
		PollMultiplier: cfg.Poll.Multiplier,
		Timeout:        cfg.Poll.Timeout,
		AbortTimeout:   cfg.Poll.AbortTimeout,
	}, replicateClient, fileIntegrator, sink, loop)

	// Handlers
	jobsHandler := handler.NewJobsHandler(ctrl, settingsStore, historyStore, validate, lang, cfg.Replicate.APIToken)
	settingsHandler := handler.NewSettingsHandler(settingsStore)

	// Fiber app. Body limit leaves room for a base64 PNG of a large layer.
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    100 * 1024 * 1024,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		st := settingsStore.Load()
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"replicate": st.APIKey != "" || cfg.Replicate.APIToken != "",
				"history":   true,
			},
		})
	})

	// API routes
	api := app.Group("/api")
	api.Post("/jobs", jobsHandler.Start)
	api.Get("/jobs/history", jobsHandler.History)
	api.Get("/jobs/:jobId", jobsHandler.Status)
	api.Post("/jobs/:jobId/cancel", jobsHandler.Cancel)
	api.Get("/settings", settingsHandler.Get)
	api.Put("/settings", settingsHandler.Update)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/jobs/:jobId", websocket.New(func(c *websocket.Conn) {
		hub.HandleConnection(c, c.Params("jobId"))
	}))

	// Hourly history janitor
	janitor := cron.New()
	_, err = janitor.AddFunc("@hourly", func() {
		n, err := historyStore.Prune(cfg.History.Retention)
		if err != nil {
			log.Printf("[Janitor] History prune failed: %v", err)
			return
		}
		if n > 0 {
			log.Printf("[Janitor] Pruned %d history entries", n)
		}
	})
	if err != nil {
		log.Printf("Warning: janitor not scheduled: %v", err)
	}
	janitor.Start()
	defer janitor.Stop()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	addr := cfg.Server.Host + ":" + cfg.Server.Port
	log.Printf("Background remover daemon listening on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
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
