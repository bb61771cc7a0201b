package cmd

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"hpl3-export/core/config"
	"hpl3-export/core/loader"
	"hpl3-export/core/logger"
	"hpl3-export/core/middleware/auth"
	"hpl3-export/core/middleware/rayid"
	"hpl3-export/core/storage"
	"hpl3-export/feature/export"
	"hpl3-export/feature/publish"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the export server",
	Long:  `Starts the HTTP server exposing the export, reconcile and publish endpoints.`,
	Run: func(cmd *cobra.Command, args []string) {
		// 1. Load Configuration
		cfg, err := config.LoadConfig(".")
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}

		// 2. Initialize Logger
		logg, err := logger.New(&cfg.Log)
		if err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
		defer logg.Sync()
		zap.ReplaceGlobals(logg)

		// 3. Initialize Fiber App
		app := fiber.New(fiber.Config{
			DisableStartupMessage: true, // We will log our own startup message
		})

		// 4. Initialize Storage (optional; publish stays disabled without it)
		var store storage.Client
		if cfg.Storage.Endpoint != "" {
			if client, err := storage.NewClient(cfg.Storage); err != nil {
				logg.Warn("Optional storage connection failed", zap.Error(err))
			} else {
				store = client
			}
		}

		// 5. Build the export service
		exportSvc, err := export.NewService(cfg.Export, cfg.Transform,
			export.ToolCollaborators(cfg.Export, logg), logg)
		if err != nil {
			logg.Fatal("Failed to create export service", zap.Error(err))
		}

		// 6. Initialize Feature Loader
		mgr := loader.NewManager()
		mgr.Register(export.NewFeature(exportSvc))
		mgr.Register(publish.NewFeature(publish.NewService(store, cfg.Storage.Bucket, cfg.Export, logg)))

		// Middleware Registration
		// RayID must be first to trace everything.
		app.Use(rayid.New())

		// Logging Middleware (Zap + RayID)
		app.Use(func(c *fiber.Ctx) error {
			l := logger.WithRayID(logg, c)
			l.Info("Request started",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.String("ip", c.IP()),
			)
			err := c.Next()
			if err != nil {
				l.Error("Request error", zap.Error(err))
			}
			return err
		})

		// Auth (protect the API)
		app.Use(auth.New(auth.Config{ApiKey: cfg.Server.ApiKey}))

		// 7. Load Features
		if err := mgr.LoadAll(app); err != nil {
			logg.Fatal("Failed to load features", zap.Error(err))
		}

		// 8. Start Server
		go func() {
			logg.Info("Starting server", zap.String("port", cfg.Server.Port))
			if err := app.Listen(":" + cfg.Server.Port); err != nil {
				logg.Fatal("Server failed to start", zap.Error(err))
			}
		}()

		// 9. Graceful Shutdown
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c
		logg.Info("Shutting down server...")
		_ = app.Shutdown()
	},
}

func init() {
	RootCmd.AddCommand(startCmd)
}
