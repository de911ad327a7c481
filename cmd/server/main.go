// main.go
//
// Form builder data service
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of formsdb.
// formsdb is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// formsdb is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with formsdb.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	swagger "github.com/gofiber/swagger"

	"github.com/localnerve/formsdb/data"
	"github.com/localnerve/formsdb/internal/config"
	"github.com/localnerve/formsdb/internal/database"
	"github.com/localnerve/formsdb/internal/handlers"
	"github.com/localnerve/formsdb/internal/logging"
	"github.com/localnerve/formsdb/internal/middleware"
	"github.com/localnerve/formsdb/internal/routes"
	"github.com/localnerve/formsdb/internal/services"

	_ "github.com/localnerve/formsdb/docs/api" // Swagger docs
)

// @title FormsDB API
// @version 1.0.0
// @description Form builder service: forms, conditional fields, validated responses and dashboards
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url https://github.com/localnerve/formsdb
// @contact.email info@localnerve.com

// @license.name AGPL-3.0
// @license.url https://www.gnu.org/licenses/agpl-3.0.html

// @host localhost:3000
// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey CookieAuth
// @in cookie
// @name cookie_session

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logging.Logger.Fatalf("Failed to load configuration: %v", err)
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	flush, err := logging.InitSentry(cfg.SentryDSN, cfg.Environment)
	if err != nil {
		logging.Logger.Warnf("Sentry disabled: %v", err)
	}
	defer flush()

	ctx := context.Background()

	// Connect to database (app pool)
	appDB, err := database.Connect(cfg)
	if err != nil {
		logging.Logger.Fatalf("Failed to connect to app database: %v", err)
	}
	defer database.Close(appDB)

	// Connect to database (public pool); sqlite shares the single app connection
	publicDB := appDB
	if cfg.DBType != "sqlite" {
		publicDB, err = database.ConnectPublic(cfg)
		if err != nil {
			logging.Logger.Fatalf("Failed to connect to public database: %v", err)
		}
		defer database.Close(publicDB)
	}

	// Run auto-migrations
	if err := database.AutoMigrate(appDB); err != nil {
		logging.Logger.Fatalf("Failed to run migrations: %v", err)
	}

	seed, err := services.ParseAccessSeed(data.AccessSeed)
	if err != nil {
		logging.Logger.Fatalf("Failed to parse access seed: %v", err)
	}
	if err := services.SeedAccessControl(ctx, appDB, seed); err != nil {
		logging.Logger.Fatalf("Failed to seed access control: %v", err)
	}

	// Redis is optional: without it permissions are not cached, revalidation
	// signals are only logged and rate limit counters stay in memory
	var (
		rdb         *redis.Client
		cache       services.PermissionCache
		revalidator services.Revalidator = services.LogRevalidator{}
		storage     fiber.Storage
	)
	if cfg.RedisURL != "" {
		rdb, err = services.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logging.Logger.Fatalf("Failed to connect to redis: %v", err)
		}
		defer rdb.Close()

		cache = services.NewRedisPermissionCache(rdb, cfg.PermissionCacheTTL)
		revalidator = services.NewRedisRevalidator(rdb)
		storage = middleware.NewRedisStorage(rdb)
	}

	access := services.NewAccessService(appDB, cache, revalidator)
	if cfg.BootstrapAdmin != "" {
		if _, err := access.AssignRole(ctx, cfg.BootstrapAdmin, "admin"); err != nil {
			logging.Logger.Fatalf("Failed to bootstrap admin %s: %v", cfg.BootstrapAdmin, err)
		}
		logging.Logger.Infof("Granted admin role to %s", cfg.BootstrapAdmin)
	}

	authenticator, err := services.NewAuthenticator(cfg)
	if err != nil {
		logging.Logger.Fatalf("Failed to configure authentication: %v", err)
	}

	app := newApp(cfg, routes.Deps{
		Auth: &middleware.Auth{
			Authenticator: authenticator,
			Access:        access,
			Redirects: middleware.Redirects{
				LoginURL:     cfg.LoginURL,
				ForbiddenURL: cfg.ForbiddenURL,
			},
		},
		Access:        access,
		Forms:         services.NewFormService(appDB, revalidator),
		Fields:        services.NewFieldService(appDB, revalidator),
		Responses:     services.NewResponseService(appDB, revalidator),
		Public:        services.NewResponseService(publicDB, revalidator),
		Dashboards:    services.NewDashboardService(appDB, revalidator),
		Health:        &handlers.HealthHandler{Config: cfg, DB: appDB, Redis: rdb},
		SubmitLimit:   cfg.SubmitRateLimit,
		SubmitWindow:  cfg.SubmitRateWindow,
		SubmitStorage: storage,
	})

	// Graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		logging.Logger.Info("Gracefully shutting down...")
		_ = app.Shutdown()
	}()

	// Start server
	port := cfg.Port
	logging.Logger.Infof("Starting server on port %s", port)
	if err := app.Listen(":" + port); err != nil {
		logging.Logger.Fatalf("Failed to start server: %v", err)
	}

	logging.Logger.Info("Server stopped")
}

func newApp(cfg *config.Config, deps routes.Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler,
		AppName:      "formsdb",
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{Output: logging.Writer()}))
	app.Use(compress.New())
	if cfg.CORSOrigins != "" {
		app.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORSOrigins,
			AllowCredentials: true,
			AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Api-Version",
		}))
	}

	// Prometheus metrics
	prometheus := fiberprometheus.New("formsdb")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	routes.Register(app, deps)
	return app
}
