package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/campusride/api-go/config"
	"github.com/campusride/api-go/middleware"
	"github.com/campusride/api-go/realtime"
	"github.com/campusride/api-go/routes"
	"github.com/campusride/api-go/services"
	"github.com/campusride/api-go/utils"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
)

func main() {
	// Set up logging to stdout
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using process environment")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatal(err)
	}

	// Verification tokens live in Redis when it is configured
	var redisClient *redis.Client
	var store services.VerificationStore = services.NewMemoryVerificationStore()
	if cfg.RedisURL != "" {
		redisClient, err = config.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Printf("Redis unavailable, using in-memory verification store: %v", err)
		} else {
			store = services.NewRedisVerificationStore(redisClient)
		}
	}

	var events services.EventPublisher
	var natsPublisher *services.NATSPublisher
	if cfg.NATSURL != "" {
		natsPublisher, err = services.NewNATSPublisher(cfg.NATSURL)
		if err != nil {
			log.Printf("NATS unavailable, domain events disabled: %v", err)
		} else {
			events = natsPublisher
		}
	}

	// The hub stops only after the HTTP server has drained.
	hub := realtime.NewHub(logger)
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go hub.Run(hubCtx)

	mailer := services.NewSendGridMailer(cfg.SendGridAPIKey, cfg.MailFrom, cfg.MailFromName)
	tokens := utils.NewTokenManager(cfg.JWTSecret, cfg.JWTExpiresIn, cfg.JWTRefreshExpiry)

	var google services.GoogleVerifier
	if cfg.Google.Enabled() {
		google = config.NewGoogleConfig(cfg.Google)
	}

	var storage services.ObjectStorage
	if cfg.R2.Enabled() {
		storage = services.NewR2Storage(cfg.R2)
	}

	notifications := services.NewNotificationService(db, hub, mailer, events, logger)
	points := services.NewPointsService(db, notifications, hub, events, logger)
	activities := services.NewActivityService(db, points, notifications, hub, logger)
	auth := services.NewAuthService(db, tokens, store, mailer, google, services.AuthSettings{
		EmailDomain:    cfg.EmailDomain,
		UniversityName: cfg.UniversityName,
		FrontendURL:    cfg.FrontendURL,
		BcryptCost:     services.DefaultBcryptCost,
	}, logger)

	scheduler, err := services.NewScheduler(activities, store, logger)
	if err != nil {
		log.Fatal(err)
	}
	scheduler.Start()

	limiter := middleware.NewRateLimiter(cfg.RateLimitMax, cfg.RateLimitWindow)
	limiter.StartSweeper(ctx)

	// Create a new Gin router
	r := gin.Default()
	routes.SetupRoutes(r, routes.Dependencies{
		DB:             db,
		AllowedOrigins: cfg.AllowedOrigins,
		RateLimiter:    limiter,
		Auth:           auth,
		Users:          services.NewUserService(db, points, logger),
		Points:         points,
		Activities:     activities,
		Rides:          services.NewRideshareService(db, points, notifications, hub, events, logger),
		Market:         services.NewMarketplaceService(db, points, hub, logger),
		Notifications:  notifications,
		Uploads:        services.NewUploadService(storage),
		Hub:            hub,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("Starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}
	if err := scheduler.Shutdown(); err != nil {
		log.Printf("Scheduler shutdown: %v", err)
	}
	hub.Shutdown()
	stopHub()
	if err := store.Close(); err != nil {
		log.Printf("Verification store close: %v", err)
	}
	if natsPublisher != nil {
		natsPublisher.Close()
	}
	if redisClient != nil {
		redisClient.Close()
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	log.Println("Server stopped")
}
