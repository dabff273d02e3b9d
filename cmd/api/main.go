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

	"github.com/hackstage/hackstage-api/internal/config"
	"github.com/hackstage/hackstage-api/internal/database"
	"github.com/hackstage/hackstage-api/internal/handler"
	"github.com/hackstage/hackstage-api/internal/middleware"
	"github.com/hackstage/hackstage-api/internal/models"
	"github.com/hackstage/hackstage-api/internal/observability"
	"github.com/hackstage/hackstage-api/internal/pipeline"
	"github.com/hackstage/hackstage-api/internal/repository"
	"github.com/hackstage/hackstage-api/internal/router"
	"github.com/hackstage/hackstage-api/internal/service"
	"github.com/hackstage/hackstage-api/pkg/ai"
	"github.com/hackstage/hackstage-api/pkg/aisearch"
	cloud "github.com/hackstage/hackstage-api/pkg/cloudinary"
	"github.com/hackstage/hackstage-api/pkg/github"
	"github.com/hackstage/hackstage-api/pkg/objectstore"
	"github.com/hackstage/hackstage-api/pkg/screenshot"
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

	if err := db.AutoMigrate(&models.Hackathon{}, &models.Submission{}, &models.Screenshot{}, &models.Rating{}); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	natsConn, js, err := database.ConnectNATS(cfg.NATSURL)
	if err != nil {
		log.Fatalf("failed to connect to nats: %v", err)
	}
	defer natsConn.Drain()

	uploader, err := cloud.New(cloud.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryFolder,
	}, logger)
	if err != nil {
		log.Fatalf("failed to create cloudinary client: %v", err)
	}

	githubClient := github.New(github.Config{
		APIBase: cfg.GitHubAPIBase,
		Token:   cfg.GitHubToken,
	}, logger)

	// Optional backends degrade to diagnostics in the pipeline instead of
	// refusing to boot, so local development works without cloud credentials.
	var store *objectstore.Store
	if cfg.ObjectStoreConfigured() {
		store, err = objectstore.New(objectstore.Config{
			Endpoint:  cfg.ObjectStoreEndpoint,
			AccessKey: cfg.ObjectStoreAccessKey,
			SecretKey: cfg.ObjectStoreSecretKey,
			Bucket:    cfg.ObjectStoreBucket,
			UseSSL:    cfg.ObjectStoreUseSSL,
			PublicURL: cfg.ObjectStorePublicURL,
		}, logger)
		if err != nil {
			log.Fatalf("failed to create object store client: %v", err)
		}
	} else {
		logger.Warn().Msg("object store is not configured; submission processing will report a configuration problem")
	}

	var searchClient *aisearch.Client
	if cfg.AISearchConfigured() {
		searchClient, err = aisearch.New(aisearch.Config{
			BaseURL:   cfg.AISearchBaseURL,
			AccountID: cfg.AISearchAccountID,
			Instance:  cfg.AISearchInstance,
			Token:     cfg.AISearchToken,
			Model:     cfg.AISearchModel,
		}, logger)
		if err != nil {
			log.Fatalf("failed to create ai search client: %v", err)
		}
	} else {
		logger.Warn().Msg("ai search is not configured; summaries will report a configuration problem")
	}

	var scorer ai.Scorer
	if cfg.OpenAIAPIKey != "" {
		openAIScorer, err := ai.NewOpenAIScorer(ai.OpenAIConfig{
			APIKey: cfg.OpenAIAPIKey,
			Model:  cfg.ScoringModel,
			Logger: logger,
		})
		if err != nil {
			log.Fatalf("failed to create scorer: %v", err)
		}
		scorer = openAIScorer
	} else {
		logger.Warn().Msg("openai is not configured; submissions will not be scored")
	}

	var capturer service.PageCapturer
	if cfg.ScreenshotAPIURL != "" {
		screenshotClient, err := screenshot.New(screenshot.Config{
			BaseURL: cfg.ScreenshotAPIURL,
			APIKey:  cfg.ScreenshotAPIKey,
		}, logger)
		if err != nil {
			log.Fatalf("failed to create screenshot client: %v", err)
		}
		capturer = screenshotClient
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	hackathonRepo := repository.NewHackathonRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	ratingRepo := repository.NewRatingRepository(db)

	var pipelineStore pipeline.ObjectStore
	var cleaner service.ObjectCleaner
	var screenshotStore service.ScreenshotStore
	if store != nil {
		pipelineStore = store
		cleaner = store
		screenshotStore = store
	}
	var pipelineSearch pipeline.SearchClient
	if searchClient != nil {
		pipelineSearch = searchClient
	}

	processor := pipeline.NewProcessor(
		submissionRepo,
		hackathonRepo,
		githubClient,
		pipelineStore,
		pipelineSearch,
		scorer,
		pipeline.Policy{
			MaxAttempts:      cfg.Pipeline.MaxAttempts,
			InitialPollDelay: cfg.Pipeline.InitialPollDelay,
			MaxPollDelay:     cfg.Pipeline.MaxPollDelay,
			SettleDelay:      cfg.Pipeline.SettleDelay,
			ForceIndexAfter:  cfg.Pipeline.ForceIndexAfter,
			MinProbeAttempts: cfg.Pipeline.MinProbeAttempts,
			MaxFileBytes:     cfg.Pipeline.MaxFileBytes,
		},
		logger,
	)

	scheduler, err := pipeline.NewScheduler(js, processor, logger)
	if err != nil {
		log.Fatalf("failed to create pipeline scheduler: %v", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := scheduler.Start(runCtx); err != nil {
		log.Fatalf("failed to start pipeline scheduler: %v", err)
	}
	defer scheduler.Stop()

	hackathonService := service.NewHackathonService(hackathonRepo, validate, uploader, logger)
	submissionService := service.NewSubmissionService(submissionRepo, hackathonRepo, scheduler, cleaner, validate, logger)
	ratingService := service.NewRatingService(ratingRepo, submissionRepo, hackathonRepo, validate, logger)
	revealService := service.NewRevealService(submissionRepo, hackathonRepo, ratingRepo, redisClient, cfg.RevealCacheTTL, logger)
	screenshotService := service.NewScreenshotService(submissionRepo, capturer, screenshotStore, validate, logger)

	revealService.StartRelay(runCtx)

	hackathonHandler := handler.NewHackathonHandler(hackathonService, validate, logger)
	submissionHandler := handler.NewSubmissionHandler(submissionService, screenshotService, validate, logger)
	ratingHandler := handler.NewRatingHandler(ratingService, validate, logger)
	revealHandler := handler.NewRevealHandler(revealService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{
		Logger:       &logger,
		AllowOrigins: cfg.CORSAllowOrigins,
	})
	app.Get("/metrics", observability.MetricsHandler())
	router.Register(app, cfg, router.Dependencies{
		HackathonHandler:  hackathonHandler,
		SubmissionHandler: submissionHandler,
		RatingHandler:     ratingHandler,
		RevealHandler:     revealHandler,
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
