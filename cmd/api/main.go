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

	"github.com/arketa-lab/gradeflow-api/internal/config"
	"github.com/arketa-lab/gradeflow-api/internal/database"
	"github.com/arketa-lab/gradeflow-api/internal/handler"
	"github.com/arketa-lab/gradeflow-api/internal/middleware"
	"github.com/arketa-lab/gradeflow-api/internal/models"
	"github.com/arketa-lab/gradeflow-api/internal/pricing"
	"github.com/arketa-lab/gradeflow-api/internal/repository"
	"github.com/arketa-lab/gradeflow-api/internal/router"
	"github.com/arketa-lab/gradeflow-api/internal/service"
	"github.com/arketa-lab/gradeflow-api/pkg/ai"
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
		&models.Task{}, &models.Criterion{},
		&models.Solution{},
		&models.AutoAssessment{},
		&models.Review{}, &models.ReviewCriterionScore{},
		&models.BatchOperation{}, &models.BatchItemError{},
		&models.UsageRecord{},
		&models.ActivityLog{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, cost report caching disabled")
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	natsConn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName)
	if err != nil {
		logger.Warn().Err(err).Msg("nats unavailable, audit events kept local only")
		natsConn = nil
	}
	if natsConn != nil {
		defer natsConn.Close()
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	taskRepo := repository.NewTaskRepository(db)
	solutionRepo := repository.NewSolutionRepository(db)
	assessmentRepo := repository.NewAssessmentRepository(db)
	reviewRepo := repository.NewReviewRepository(db)
	batchRepo := repository.NewBatchOperationRepository(db)
	usageRepo := repository.NewUsageRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)

	var provider ai.Provider = ai.NewOpenAIProvider(ai.OpenAIConfig{
		APIKey:         cfg.OpenAIAPIKey,
		DefaultModel:   cfg.AIModel,
		MaxTokens:      cfg.AIMaxTokens,
		Temperature:    cfg.AITemperature,
		RequestTimeout: cfg.AITimeout,
		Logger:         logger,
	})
	if cfg.AIRetryAttempts > 1 {
		provider = ai.NewRetryProvider(provider, ai.RetryConfig{
			MaxAttempts: cfg.AIRetryAttempts,
			Logger:      logger,
		})
	}

	activityService := service.NewActivityService(activityRepo, natsConn, "gradeflow", validate, logger)
	batchService := service.NewBatchService(batchRepo, logger)
	costService := service.NewCostService(usageRepo, pricing.DefaultTable(), redisClient, cfg.CostCacheTTL, logger)
	taskService := service.NewTaskService(taskRepo, validate, activityService, logger)
	solutionService := service.NewSolutionService(solutionRepo, taskRepo, batchService, activityService, validate, logger)
	reviewService := service.NewReviewService(reviewRepo, solutionRepo, taskRepo, validate, activityService, logger)
	assessmentService := service.NewAssessmentService(
		assessmentRepo, solutionRepo, taskRepo,
		provider, costService, reviewService, batchService, activityService, validate,
		service.AssessmentConfig{
			DefaultModel: cfg.AIModel,
			Temperature:  cfg.AITemperature,
			MaxTokens:    cfg.AIMaxTokens,
			Workers:      cfg.AssessWorkers,
		},
		logger,
	)

	taskHandler := handler.NewTaskHandler(taskService, logger)
	solutionHandler := handler.NewSolutionHandler(solutionService, assessmentService, logger)
	assessmentHandler := handler.NewAssessmentHandler(assessmentService, logger)
	reviewHandler := handler.NewReviewHandler(reviewService, logger)
	operationHandler := handler.NewOperationHandler(batchService, assessmentService, logger)
	costHandler := handler.NewCostHandler(costService, logger)
	activityHandler := handler.NewActivityHandler(activityService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		TaskHandler:       taskHandler,
		SolutionHandler:   solutionHandler,
		AssessmentHandler: assessmentHandler,
		ReviewHandler:     reviewHandler,
		OperationHandler:  operationHandler,
		CostHandler:       costHandler,
		ActivityHandler:   activityHandler,
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret),
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
