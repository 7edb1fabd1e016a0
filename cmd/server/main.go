package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/pec-cloud/server/internal/config"
	"github.com/pec-cloud/server/internal/database"
	"github.com/pec-cloud/server/internal/handlers"
	"github.com/pec-cloud/server/internal/middleware"
	"github.com/pec-cloud/server/internal/services"
	"github.com/pec-cloud/server/internal/storage"
	"github.com/pec-cloud/server/pkg/logger"
	"github.com/pec-cloud/server/pkg/utils"
)

func main() {
	logger.Init()

	cfg := config.Load()
	utils.ConfigureSessionSigning(cfg.Session.Secret)

	db, err := database.Connect(cfg.DB)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}

	blobs, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		log.Fatalf("minio initialization failed: %v", err)
	}
	if err := blobs.EnsureBucket(context.Background()); err != nil {
		log.Fatalf("failed ensuring minio bucket: %v", err)
	}

	staging, err := storage.NewStaging(cfg.Staging, blobs)
	if err != nil {
		log.Fatalf("staging initialization failed: %v", err)
	}
	// Anything left over from a previous run is unreferenced by now.
	if err := staging.PurgeAll(); err != nil {
		log.Fatalf("failed purging staging area: %v", err)
	}
	staging.StartSweep()
	defer staging.Stop()

	sessionService := services.NewSessionService(db, cfg.Session.Validity)
	filesystemService := services.NewFilesystemService(db, blobs, staging)
	accessService := services.NewAccessService(db)
	linkService := services.NewLinkService(db, filesystemService)
	shareService := services.NewShareService(db, filesystemService)
	auditService := services.NewAuditService(db)
	mailer := services.NewLogMailer(cfg.Mail.Sender)

	authHandler := handlers.NewAuthHandler(db, sessionService, mailer, auditService)
	userHandler := handlers.NewUserHandler(db, auditService)
	filesystemHandler := handlers.NewFilesystemHandler(filesystemService, accessService, linkService, staging, blobs, auditService)
	linkHandler := handlers.NewLinkHandler(linkService, filesystemService, accessService, blobs, auditService)
	shareHandler := handlers.NewShareHandler(shareService, filesystemService, accessService, auditService)
	logHandler := handlers.NewLogHandler(auditService)

	authMiddleware := middleware.NewAuthMiddleware(sessionService)

	app := fiber.New(fiber.Config{BodyLimit: 100 * 1024 * 1024})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS())
	app.Use(middleware.RequestLogger())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	authRoutes := api.Group("/auth")
	authRoutes.Post("/register", authHandler.Register)
	authRoutes.Post("/validate", authHandler.Validate)
	authRoutes.Post("/login", authHandler.Login)
	authRoutes.Post("/logout", authMiddleware.RequireAuth, authHandler.Logout)
	authRoutes.Get("/me", authMiddleware.RequireAuth, authHandler.Me)

	api.Get("/users/:username/public-key", authMiddleware.RequireAuth, userHandler.GetPublicKey)

	userRoutes := api.Group("/users", authMiddleware.RequireAuth, middleware.AdminOnly)
	userRoutes.Get("/", userHandler.ListUsers)
	userRoutes.Post("/:username/suspend", userHandler.Suspend)
	userRoutes.Delete("/:username", userHandler.Delete)

	fsRoutes := api.Group("/filesystem", authMiddleware.RequireAuth)
	fsRoutes.Get("/", filesystemHandler.GetTree)
	fsRoutes.Post("/upload", filesystemHandler.Upload)
	fsRoutes.Post("/file", filesystemHandler.CreateFile)
	fsRoutes.Post("/folder", filesystemHandler.CreateFolder)
	fsRoutes.Get("/:nodeId", filesystemHandler.GetSubtree)
	fsRoutes.Get("/:nodeId/path", filesystemHandler.GetPath)
	fsRoutes.Get("/:nodeId/links", filesystemHandler.GetLinks)
	fsRoutes.Get("/:nodeId/shares", shareHandler.SharesByNode)
	fsRoutes.Get("/:nodeId/download", filesystemHandler.Download)
	fsRoutes.Patch("/:nodeId/parent", filesystemHandler.Move)
	fsRoutes.Patch("/:nodeId/metadata", filesystemHandler.UpdateMetadata)
	fsRoutes.Patch("/:nodeId/ref", filesystemHandler.UpdateRef)
	fsRoutes.Delete("/:nodeId", filesystemHandler.Delete)

	linkRoutes := api.Group("/links")
	linkRoutes.Post("/", authMiddleware.RequireAuth, linkHandler.CreateLink)
	linkRoutes.Get("/:shareId", linkHandler.ResolveLink)
	linkRoutes.Get("/:shareId/download", linkHandler.DownloadByLink)

	shareRoutes := api.Group("/shares", authMiddleware.RequireAuth)
	shareRoutes.Post("/", shareHandler.CreateShare)
	shareRoutes.Get("/", shareHandler.SharesReceived)

	logRoutes := api.Group("/logs", authMiddleware.RequireAuth, middleware.AdminOnly)
	logRoutes.Get("/nodes/:nodeId", logHandler.NodeLogsByNode)
	logRoutes.Get("/nodes/activity/:activity", logHandler.NodeLogsByActivity)
	logRoutes.Get("/nodes/performer/:username", logHandler.NodeLogsByPerformer)
	logRoutes.Get("/users/:username", logHandler.UserLogsBySubject)
	logRoutes.Get("/users/activity/:activity", logHandler.UserLogsByActivity)
	logRoutes.Get("/users/performer/:username", logHandler.UserLogsByPerformer)

	listenAddr := fmt.Sprintf(":%s", cfg.Server.Port)

	logger.Info("server_starting", map[string]interface{}{
		"port":    cfg.Server.Port,
		"address": listenAddr,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(listenAddr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Printf("shutting down server due to signal: %s", sig)
		shutdownDone := make(chan struct{})
		go func() {
			_ = app.Shutdown()
			close(shutdownDone)
		}()
		select {
		case <-shutdownDone:
		case <-time.After(10 * time.Second):
			log.Print("forced shutdown timeout reached")
		}
		auditService.Flush()
	case err := <-errCh:
		if err != nil {
			log.Fatalf("server error: %v", err)
		}
	}
}
