package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go-inventory-tree/internal/handler"
	"go-inventory-tree/internal/middleware"
	"go-inventory-tree/internal/service"
	"go-inventory-tree/internal/ws"
	"go-inventory-tree/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var skipSeed bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and websocket feed",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		hub := ws.NewHub()
		rt, err := bootstrap(ctx, hub)
		if err != nil {
			return err
		}
		defer rt.close()
		cfg := rt.cfg

		if !skipSeed && (cfg.Seed.EntityTypes || cfg.Seed.Admin) {
			report, err := rt.container.Seeder.Seed(ctx, service.SeedOptions{
				EntityTypes:   cfg.Seed.EntityTypes,
				Admin:         cfg.Seed.Admin,
				AdminUsername: cfg.Auth.AdminUsername,
				AdminEmail:    cfg.Auth.AdminEmail,
				AdminPassword: cfg.Auth.AdminPassword,
			})
			if err != nil {
				return fmt.Errorf("seed: %w", err)
			}
			logger.Info("seed finished",
				zap.Int64("entity_types_inserted", report.EntityTypesInserted),
				zap.Bool("admin_created", report.AdminCreated))
		}

		hubCtx, stopHub := context.WithCancel(context.Background())
		defer stopHub()
		go hub.Run(hubCtx)

		app := fiber.New(fiber.Config{
			AppName:      cfg.Server.AppName,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			ErrorHandler: middleware.ErrorHandler,
		})
		app.Use(fiberlogger.New(fiberlogger.Config{Output: logger.StdLog().Writer()}))
		app.Use(recover.New())
		app.Use(cors.New())

		sqlDB, err := rt.db.DB()
		if err != nil {
			return err
		}
		handler.RegisterRoutes(app, rt.container.Handlers(hub, handler.NewHealthHandler(sqlDB, hub)))

		listenErr := make(chan error, 1)
		go func() {
			addr := fmt.Sprintf(":%d", cfg.Server.Port)
			logger.Info("listening", zap.String("addr", addr))
			listenErr <- app.Listen(addr)
		}()

		select {
		case err := <-listenErr:
			return err
		case <-ctx.Done():
		}

		logger.Info("shutting down server")
		if err := app.ShutdownWithTimeout(cfg.Server.ShutdownTimeout); err != nil {
			logger.Error("server forced to shutdown", zap.Error(err))
		}
		stopHub()
		logger.Info("server exited")
		return nil
	},
}

func init() {
	serveCmd.Flags().BoolVar(&skipSeed, "skip-seed", false, "Do not run the startup seed")
	rootCmd.AddCommand(serveCmd)
}
