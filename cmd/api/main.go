package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/markwise-go-api/internal/config"
	"github.com/noah-isme/markwise-go-api/internal/database"
	"github.com/noah-isme/markwise-go-api/internal/handler"
	"github.com/noah-isme/markwise-go-api/internal/middleware"
	"github.com/noah-isme/markwise-go-api/internal/models"
	"github.com/noah-isme/markwise-go-api/internal/repository"
	"github.com/noah-isme/markwise-go-api/internal/router"
	"github.com/noah-isme/markwise-go-api/internal/service"
	"github.com/noah-isme/markwise-go-api/internal/store"
	cloud "github.com/noah-isme/markwise-go-api/pkg/cloudinary"
	"github.com/noah-isme/markwise-go-api/pkg/gradebook"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.CourseGroup{},
		&models.GroupMembership{},
		&models.Enrolment{},
		&models.Marker{},
		&models.Coursework{},
		&models.Submission{},
		&models.Feedback{},
		&models.Allocation{},
		&models.PersonalDeadline{},
		&models.DeadlineExtension{},
		&models.SampleRule{},
		&models.SampleMembership{},
		&models.PlagiarismFlag{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	natsConn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName)
	if err != nil {
		log.Fatalf("failed to connect to nats: %v", err)
	}
	if natsConn != nil {
		defer natsConn.Close()
	}

	uploader, err := cloud.New(cloud.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryUploadFolder,
	}, logger)
	if err != nil {
		log.Fatalf("failed to create cloudinary client: %v", err)
	}

	gradebookClient, err := gradebook.New(gradebook.Config{
		BaseURL: cfg.GradebookURL,
		APIKey:  cfg.GradebookAPIKey,
		Timeout: cfg.GradebookTimeout,
	}, logger)
	if err != nil {
		log.Fatalf("failed to create gradebook client: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	cache := store.NewCourseworkCache(redisClient, cfg.CourseworkCacheTTL, logger)
	permissions := service.NewRolePermissionChecker()
	notifier := service.NewNATSNotifier(natsConn, cfg.EventSubjectPrefix, logger)
	registry := service.NewStrategyRegistry()

	courseworkRepo := repository.NewCourseworkRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	feedbackRepo := repository.NewFeedbackRepository(db)
	allocationRepo := repository.NewAllocationRepository(db)
	allocatableRepo := repository.NewAllocatableRepository(db)
	markerRepo := repository.NewMarkerRepository(db)
	deadlineRepo := repository.NewDeadlineRepository(db)
	sampleRepo := repository.NewSampleRepository(db)
	plagiarismRepo := repository.NewPlagiarismRepository(db)

	courseworkService := service.NewCourseworkService(courseworkRepo, registry, cache, permissions, validate, logger)
	deadlineService := service.NewDeadlineService(deadlineRepo, cache, permissions, notifier, validate, logger)
	allocationService := service.NewAllocationService(allocationRepo, allocatableRepo, markerRepo, feedbackRepo, submissionRepo, registry, cache, permissions, logger)
	samplingService := service.NewSamplingService(sampleRepo, submissionRepo, feedbackRepo, allocationRepo, cache, permissions, logger)
	stateService := service.NewStateService(feedbackRepo, sampleRepo, logger)
	feedbackService := service.NewFeedbackService(feedbackRepo, submissionRepo, allocationRepo, samplingService, cache, permissions, validate, logger)
	aggregationService := service.NewAggregationService(feedbackRepo, submissionRepo, stateService, cache, logger)
	publishService := service.NewPublishService(submissionRepo, feedbackRepo, plagiarismRepo, allocatableRepo, samplingService, gradebookClient, notifier, cache, permissions, logger)
	submissionService := service.NewSubmissionService(submissionRepo, allocatableRepo, deadlineService, allocationService, stateService, uploader, cache, permissions, logger)

	courseworkHandler := handler.NewCourseworkHandler(courseworkService, logger)
	submissionHandler := handler.NewSubmissionHandler(courseworkService, submissionService, stateService, logger)
	feedbackHandler := handler.NewFeedbackHandler(courseworkService, feedbackService, logger)
	allocationHandler := handler.NewAllocationHandler(courseworkService, allocationService, allocationRepo, validate, logger)
	samplingHandler := handler.NewSamplingHandler(courseworkService, samplingService, validate, logger)
	deadlineHandler := handler.NewDeadlineHandler(courseworkService, deadlineService, logger)
	gradingHandler := handler.NewGradingHandler(courseworkService, aggregationService, publishService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AllowOrigins: cfg.CORSAllowOrigins})
	router.Register(app, cfg, router.Dependencies{
		CourseworkHandler: courseworkHandler,
		SubmissionHandler: submissionHandler,
		FeedbackHandler:   feedbackHandler,
		AllocationHandler: allocationHandler,
		SamplingHandler:   samplingHandler,
		DeadlineHandler:   deadlineHandler,
		GradingHandler:    gradingHandler,
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret),
		UploadLimiter:     middleware.RateLimit("submission-upload", cfg.UploadRateLimit, cfg.UploadRateWindow),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
