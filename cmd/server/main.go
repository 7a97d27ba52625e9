// @title           Creative Studio API
// @version         1.0.0
// @description     Backend for an AI creative studio: prompt-driven image generation and editing, 4K enhancement, background removal, video generation, and a credit-metered account plan.

// @BasePath  /api/v1

// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"creative-studio-backend/internal/config"
	"creative-studio-backend/internal/credits"
	"creative-studio-backend/internal/database"
	"creative-studio-backend/internal/gate"
	"creative-studio-backend/internal/gemini"
	"creative-studio-backend/internal/handlers"
	"creative-studio-backend/internal/middleware"
	"creative-studio-backend/internal/notify"
	"creative-studio-backend/internal/services"
	"creative-studio-backend/internal/stores"
	"creative-studio-backend/internal/studio"
	"creative-studio-backend/internal/supabase"
	"creative-studio-backend/internal/video"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	setupLogging(cfg)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	if cfg.StorageType == config.StoragePostgres {
		runMigrations(cfg.DatabaseURL)
	}

	repo, err := stores.NewProfileRepository(cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialize profile storage: %v", err)
	}
	if closer, ok := repo.(stores.Closer); ok {
		defer closer.Close()
	}

	geminiClient, err := gemini.NewClient(context.Background(), cfg.GeminiAPIBaseURL, cfg.GeminiAPIKey)
	if err != nil {
		logrus.Fatalf("Failed to initialize Gemini client: %v", err)
	}

	supabaseClient, err := supabase.NewClient(cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialize Supabase client: %v", err)
	}

	storageClient, err := supabase.NewStorageClient(cfg.SupabaseURL, cfg.SupabasePublishableKey, cfg.SupabaseStorageBucket)
	if err != nil {
		logrus.Fatalf("Failed to initialize storage client: %v", err)
	}

	ledger := credits.NewLedger(repo, credits.WithTracker(supabase.NewUsageTracker(supabaseClient.Supabase)))
	studioGate := gate.New(ledger)
	broker := notify.NewBroker()

	workspaces := studio.NewManager(func(userID string) *studio.Workspace {
		notifier := broker.For(userID)
		session := studio.NewSession(geminiClient,
			studio.WithNotifier(notifier),
			studio.WithOwner(userID),
		)
		jobs := video.NewController(geminiClient,
			video.WithInterval(cfg.VideoPollInterval),
			video.WithTimeout(cfg.VideoPollTimeout),
			video.WithNotifier(notifier),
			video.WithErrorMessages(studio.UserMessage),
			video.WithOwner(userID),
		)
		return studio.NewWorkspace(session, jobs, notifier)
	}, studio.WithIdleTimeout(cfg.SessionIdleTimeout))
	workspaces.Start()

	router := setupRouter(cfg, routes{
		auth:    handlers.NewAuthHandler(supabaseClient, ledger, workspaces, broker),
		studio:  handlers.NewStudioHandler(workspaces, studioGate, services.NewExportService(storageClient), broker),
		video:   handlers.NewVideoHandler(workspaces, studioGate),
		account: handlers.NewAccountHandler(ledger, cfg.AdminCredentialHash),
		admin:   handlers.NewAdminHandler(ledger),
		events:  handlers.NewEventsHandler(broker),
		limiter: middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
	})

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logrus.WithField("port", cfg.Port).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logrus.WithError(err).Error("Server forced to shutdown")
	}
	workspaces.Shutdown()
	logrus.Info("Server exited gracefully")
}

func setupLogging(cfg *config.Config) {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %v", err)
	}
	logrus.SetLevel(level)

	if cfg.IsProduction() {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		return
	}
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
}

func runMigrations(dbURL string) {
	migrator, err := database.NewMigrator(dbURL)
	if err != nil {
		logrus.Fatalf("Failed to initialize migrator: %v", err)
	}
	defer migrator.Close()

	if err := migrator.Run(context.Background()); err != nil {
		logrus.Fatalf("Migration failed: %v", err)
	}
	logrus.Info("Migrations completed successfully")
}
