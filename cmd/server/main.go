package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/zeroverse/zeroverse/internal/auth"
	"github.com/zeroverse/zeroverse/internal/config"
	"github.com/zeroverse/zeroverse/internal/confession"
	"github.com/zeroverse/zeroverse/internal/db"
	routes "github.com/zeroverse/zeroverse/internal/http"
	"github.com/zeroverse/zeroverse/internal/mail"
	"github.com/zeroverse/zeroverse/internal/moderation"
	"github.com/zeroverse/zeroverse/internal/ws"
)

func main() {
	// Allow running without a .env file in production, where env vars are
	// set directly.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if cfg.JWTSecret == "" {
		logger.Fatal("JWT_SECRET must be set")
	}

	database, err := db.Init(cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatal("database init failed", zap.Error(err))
	}

	logger.Info("running migrations")
	if err := db.Migrate(database); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}

	hub := ws.NewHub(logger)
	go hub.Run()

	classifier := moderation.NewGeminiClassifier(cfg.GeminiBaseURL, cfg.GeminiModel, cfg.GeminiAPIKey, logger)

	mailer, err := mail.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.MailFrom, logger)
	if err != nil {
		logger.Fatal("mailer init failed", zap.Error(err))
	}

	env := &routes.Env{
		DB:          database,
		Hub:         hub,
		Log:         logger,
		Tokens:      auth.NewTokens(cfg.JWTSecret, cfg.JWTTTL),
		Mailer:      mailer,
		Confessions: confession.NewService(database, classifier, logger),
		CollegeMail: cfg.CollegeMail,
	}

	router := gin.New()
	router.Use(gin.Logger())
	routes.SetupRoutes(router, env, cfg.CORSOrigin)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("forced shutdown", zap.Error(err))
	}
	logger.Info("server exiting")
}
