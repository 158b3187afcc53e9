package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	config "github.com/maheshrc27/scheduled-publisher/configs"
	"github.com/maheshrc27/scheduled-publisher/internal/api/handlers"
	"github.com/maheshrc27/scheduled-publisher/internal/api/middleware"
	job "github.com/maheshrc27/scheduled-publisher/internal/jobs"
	"github.com/maheshrc27/scheduled-publisher/internal/queue"
	"github.com/maheshrc27/scheduled-publisher/internal/repository"
	"github.com/maheshrc27/scheduled-publisher/internal/service"
	"github.com/redis/go-redis/v9"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer closeDB(db)

	if err := db.Ping(); err != nil {
		log.Fatalf("Database is unreachable: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisURI})
	defer rdb.Close()

	redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
	client := asynq.NewClient(redisConn)
	defer client.Close()

	mediaStore, err := newMediaStore(cfg)
	if err != nil {
		log.Fatalf("Failed to configure media store: %v", err)
	}

	txManager := repository.NewTxManager(db)
	postRepo := repository.NewPostRepository(db)
	platformRepo := repository.NewPlatformRepository(db)
	postPlatformRepo := repository.NewPostPlatformRepository(db)

	validator := service.NewPostValidator(platformRepo, postRepo, cfg.DailyScheduleLimit, cfg.InstagramMarker)
	ingestor := service.NewMediaIngestor(mediaStore, cfg.Media.Folder, cfg.Media.UploadTimeout, cfg.Media.MaxConcurrency)
	postService := service.NewPostService(txManager, postRepo, platformRepo, postPlatformRepo, validator, ingestor)
	platformService := service.NewPlatformService(txManager, platformRepo)

	scanner := service.NewDueScanner(postRepo, platformRepo, postPlatformRepo, cfg.Dispatch.StaleAfter)
	publishingService := service.NewPublishingService(scanner, postRepo, postPlatformRepo, service.NewStubPublisher(),
		cfg.Dispatch.Concurrency, cfg.Dispatch.PlatformTimeout)

	// jobs
	lease := job.NewRedisLease(rdb, "scheduled-publisher:lease:")
	if cfg.Dispatch.Lease == "local" {
		lease = job.NewLocalLease()
	}
	dispatchJob := job.NewDispatchJob(publishingService, lease, cfg.Dispatch.LeaseTTL)
	trigger := job.NewTrigger(cfg.Dispatch.Schedule, dispatchJob)
	if err := trigger.Start(); err != nil {
		log.Fatalf("Invalid dispatch schedule %q: %v", cfg.Dispatch.Schedule, err)
	}

	//queue
	queueW := queue.NewQueue(dispatchJob)
	server := asynq.NewServer(redisConn, asynq.Config{
		Concurrency: 1,
	})
	mux := asynq.NewServeMux()
	queueW.Register(mux)

	log.Println("Starting the Asynq server...")
	if err := server.Start(mux); err != nil {
		log.Fatalf("Could not start Asynq server: %v", err)
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Minute,
		WriteTimeout: time.Minute,
		BodyLimit:    20 * 1024 * 1024, // inline images
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.FrontendURL,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	authMiddleware := middleware.NewAuthMiddleware(*cfg)

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	post := handlers.NewPostHandler(postService, client)
	api.Post("/posts", post.CreatePost)
	api.Get("/posts", post.ListPosts)
	api.Get("/posts/analytics", post.Analytics)
	api.Post("/posts/process-scheduled", post.ProcessScheduled)
	api.Get("/posts/:id", post.GetPost)
	api.Put("/posts/:id", post.UpdatePost)
	api.Delete("/posts/:id", post.DeletePost)

	platform := handlers.NewPlatformHandler(platformService)
	api.Get("/platforms", platform.ListPlatforms)
	api.Post("/platforms/toggle", platform.TogglePlatforms)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Printf("Server is running on http://localhost:%s", cfg.Port)

	gracefulShutdown(app, trigger, server)
}

func newMediaStore(cfg *config.Config) (service.MediaStore, error) {
	switch cfg.Media.Store {
	case "r2":
		return service.NewR2Store(context.Background(), cfg.R2)
	case "cloudinary":
		return service.NewCloudinaryStore(cfg.Cloudinary), nil
	}
	return nil, fmt.Errorf("unknown media store %q", cfg.Media.Store)
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, trigger *job.Trigger, server *asynq.Server) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	trigger.Stop()
	server.Shutdown()

	if err := app.Shutdown(); err != nil {
		log.Printf("Failed to shut down server: %v", err)
	}

	log.Println("Server shutdown complete.")
}
