package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/tributewall/tribute-backend/internal/clients/gcp"
	"github.com/tributewall/tribute-backend/internal/clients/linkmeta"
	"github.com/tributewall/tribute-backend/internal/clients/redis"
	"github.com/tributewall/tribute-backend/internal/clients/transcribe"
	"github.com/tributewall/tribute-backend/internal/db"
	"github.com/tributewall/tribute-backend/internal/feed"
	"github.com/tributewall/tribute-backend/internal/handlers"
	"github.com/tributewall/tribute-backend/internal/logger"
	"github.com/tributewall/tribute-backend/internal/middleware"
	"github.com/tributewall/tribute-backend/internal/repos"
	"github.com/tributewall/tribute-backend/internal/server"
	"github.com/tributewall/tribute-backend/internal/services"
	"github.com/tributewall/tribute-backend/internal/sse"
	"github.com/tributewall/tribute-backend/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Env
	log.Info("Loading environment variables from main...")
	uploadChunkBytes := utils.GetEnvAsInt("UPLOAD_CHUNK_BYTES", 6<<20, log)
	uploadMaxBytes := utils.GetEnvAsInt64("UPLOAD_MAX_BYTES", 500<<20, log)

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Warn("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up Repos from main...")
	mediaAssetRepo := repos.NewMediaAssetRepo(thePG, log)
	eventRepo := repos.NewEventRepo(thePG, log)
	eventMediaRepo := repos.NewEventMediaRepo(thePG, log)
	articleRepo := repos.NewArticleRepo(thePG, log)

	// SSE
	log.Info("Setting up SSE hub now...")
	sseHub := sse.NewSSEHub(log)
	sseBus, err := redis.NewBus(log)
	if err != nil {
		log.Warn("Redis bus unavailable; running single-replica", "error", err)
		sseBus = nil
	} else {
		if err := sseBus.StartForwarder(context.Background(), sseHub.Broadcast); err != nil {
			log.Warn("Redis forwarder failed to start", "error", err)
		}
	}

	// Clients
	objectStore, err := gcp.NewObjectStore(log, uploadChunkBytes)
	if err != nil {
		log.Error("Could not init ObjectStore", "error", err)
		os.Exit(1)
	}
	transcribeClient := transcribe.NewClient(log)
	linkMetaClient := linkmeta.NewClient(log)

	// Services
	log.Info("Setting up Services from main...")
	progressRegistry := services.NewUploadProgressRegistry()
	frameService := services.NewFrameExtractorService(log)
	placeholderService := services.NewPlaceholderService()
	transcodeService := services.NewTranscodeService(log, frameService)
	uploaderService := services.NewUploaderService(log, objectStore, uploadMaxBytes)
	transcriptionService := services.NewTranscriptionService(log, transcribeClient, objectStore, mediaAssetRepo, sseHub, sseBus)
	mediaService := services.NewMediaService(
		log,
		mediaAssetRepo,
		uploaderService,
		frameService,
		placeholderService,
		transcodeService,
		transcriptionService,
		objectStore,
		progressRegistry,
		sseHub,
		sseBus,
	)
	eventService := services.NewEventService(
		log,
		eventRepo,
		eventMediaRepo,
		uploaderService,
		frameService,
		placeholderService,
		objectStore,
		progressRegistry,
		thePG,
	)
	articleService := services.NewArticleService(log, articleRepo, linkMetaClient)
	gateService, err := services.NewGateService(log)
	if err != nil {
		log.Error("Could not init GateService", "error", err)
		os.Exit(1)
	}

	// Feed sessions
	feedSessions := feed.NewSessionManager(log)
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			if n := feedSessions.Reap(); n > 0 {
				log.Debug("Reaped idle feed sessions", "count", n)
			}
		}
	}()

	// Handlers
	log.Info("Setting up handlers from main...")
	gateHandler := handlers.NewGateHandler(log, gateService)
	mediaHandler := handlers.NewMediaHandler(log, mediaService)
	eventHandler := handlers.NewEventHandler(log, eventService)
	articleHandler := handlers.NewArticleHandler(log, articleService)
	uploadHandler := handlers.NewUploadHandler(log, progressRegistry)
	feedHandler := handlers.NewFeedHandler(log, feedSessions, mediaService)
	sseHandler := handlers.NewSSEHandler(log, sseHub)

	// Middleware
	gateMiddleware := middleware.NewGateMiddleware(log, gateService)

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		GateHandler:    gateHandler,
		GateMiddleware: gateMiddleware,
		MediaHandler:   mediaHandler,
		EventHandler:   eventHandler,
		ArticleHandler: articleHandler,
		UploadHandler:  uploadHandler,
		FeedHandler:    feedHandler,
		SSEHandler:     sseHandler,
	})

	port := utils.GetEnv("PORT", "8080", log)
	fmt.Printf("Server listening on :%s\n", port)
	if err := router.Run(":" + port); err != nil {
		log.Warn("Server failed", "error", err)
	}
}
