package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	config "github.com/maheshrc27/postflow/configs"
	"github.com/maheshrc27/postflow/internal/api/handlers"
	"github.com/maheshrc27/postflow/internal/api/middleware"
	job "github.com/maheshrc27/postflow/internal/jobs"
	"github.com/maheshrc27/postflow/internal/loading"
	"github.com/maheshrc27/postflow/internal/queue"
	"github.com/maheshrc27/postflow/internal/repository"
	"github.com/maheshrc27/postflow/internal/service"
	"github.com/robfig/cron"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer closeDB(db)

	lc := loading.NewCoordinator()
	doneDB := lc.Track("database")

	redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
	client := asynq.NewClient(redisConn)
	defer client.Close()

	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		BodyLimit:    service.MaxUploadSize + 1<<20,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			slog.Error("request failed", "path", c.Path(), "error", err)
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.FrontendURL,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	mediaRepo := repository.NewPublicationMediaRepository(db)
	platformRepo := repository.NewPublicationPlatformRepository(db)
	publicationRepo := repository.NewPublicationRepository(db, mediaRepo, platformRepo)
	deliveryAttemptRepo := repository.NewDeliveryAttemptRepository(db)
	socialAccountRepo := repository.NewSocialAccountRepository(db)
	userRepo := repository.NewUserRepository(db)

	scheduler := queue.NewScheduler(client)
	publicationService := service.NewPublicationService(*cfg, publicationRepo, deliveryAttemptRepo, scheduler)
	platformService := service.NewPlatformService(*cfg, socialAccountRepo, nil)
	mediaService := service.NewMediaService(service.NewR2Service(*cfg))
	publisher := service.NewGraphPublisher(*cfg, nil)
	authService := service.NewAuthService(*cfg, userRepo, nil)
	userService := service.NewUserService(userRepo)

	authMiddleware := middleware.NewAuthMiddleware(*cfg)

	health := handlers.NewHealthHandler(lc)
	app.Get("/healthz", health.Health)

	auth := handlers.NewAuthHandler(*cfg, authService)
	app.Get("/login", auth.Login)
	app.Get("/login/callback", auth.LoginCallbackHandler)
	app.Post("/logout", auth.Logout)

	platform := handlers.NewPlatformHandler(platformService, *cfg)
	app.Get("/auth/:platform", platform.AddSocialAccount)
	app.Get("/auth/:platform/callback", platform.CallbackHandler)

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	user := handlers.NewUserHandler(userService)
	api.Get("/user/info", user.GetUserInfo)
	api.Delete("/user", user.DeleteUser)

	publication := handlers.NewPublicationHandler(publicationService)
	api.Get("/publications", publication.ListPublications)
	api.Post("/publications", publication.CreatePublication)
	api.Get("/publications/:id", publication.GetPublication)
	api.Delete("/publications/:id", publication.RemovePublication)
	api.Put("/publications/:id/content", publication.UpdateContent)
	api.Post("/publications/:id/schedule", publication.Schedule)
	api.Post("/publications/:id/unschedule", publication.Unschedule)
	api.Post("/publications/:id/publish-now", publication.PublishNow)
	api.Post("/publications/:id/cancel", publication.Cancel)
	api.Post("/publications/:id/duplicate", publication.Duplicate)
	api.Post("/publications/:id/reschedule", publication.Reschedule)
	api.Get("/publications/:id/deliveries", publication.Deliveries)
	api.Get("/calendar", publication.Calendar)
	api.Post("/validate", publication.Validate)

	media := handlers.NewMediaHandler(mediaService)
	api.Post("/media", media.Upload)

	// social accounts api routes
	api.Get("/accounts", platform.ListSocialAccounts)
	api.Delete("/accounts/:id", platform.DeleteSocialAccount)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	slog.Info("Server is running", "port", cfg.Port)

	if err := prepareDatabase(db, cfg.AutoMigrate); err != nil {
		log.Fatalf("Database is not ready: %v", err)
	}
	doneDB()

	// cron jobs
	refreshTokenJob := job.NewTokenRefreshJob(socialAccountRepo, platformService)
	sweeperJob := job.NewSweeperJob(publicationRepo, scheduler, cfg.ProcessingTimeout)

	c := cron.New()
	c.AddFunc("@every 12h", refreshTokenJob.RefreshTokens)
	c.AddFunc("@every 1m", sweeperJob.Sweep)
	c.Start()

	//queue
	queueW := queue.NewQueue(publicationRepo, socialAccountRepo, deliveryAttemptRepo, publisher, cfg.WorkerConcurrency, cfg.IsDevelopment())

	server := asynq.NewServer(redisConn, asynq.Config{
		Concurrency: cfg.WorkerConcurrency,
	})
	go func() {
		mux := asynq.NewServeMux()
		mux.HandleFunc(queue.TaskTypeDeliverPublication, queueW.HandleDeliverTask)

		slog.Info("Starting the Asynq server...")
		if err := server.Run(mux); err != nil {
			log.Fatalf("Could not start Asynq server: %v", err)
		}
	}()

	gracefulShutdown(app, server, c)
}

func prepareDatabase(db *sql.DB, migrate bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database is unreachable: %w", err)
	}
	if migrate {
		if err := repository.Migrate(ctx, db); err != nil {
			return fmt.Errorf("failed to migrate: %w", err)
		}
	}
	return nil
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, server *asynq.Server, c *cron.Cron) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	slog.Info("Shutting down server...")

	c.Stop()
	server.Shutdown()

	if err := app.Shutdown(); err != nil {
		log.Fatalf("Failed to shut down server: %v", err)
	}

	slog.Info("Server shutdown complete.")
}
