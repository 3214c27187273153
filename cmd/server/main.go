package main

import (
	"context"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/opensocial/backend/internal/api"
	"github.com/opensocial/backend/internal/auth"
	"github.com/opensocial/backend/internal/cache"
	"github.com/opensocial/backend/internal/config"
	"github.com/opensocial/backend/internal/db"
	"github.com/opensocial/backend/internal/health"
	"github.com/opensocial/backend/internal/logger"
	"github.com/opensocial/backend/internal/middleware"
	"github.com/opensocial/backend/internal/realtime"
	"github.com/opensocial/backend/internal/storage"
)

const version = "1.0.0"

func main() {
	cfg := config.Load()
	log := logger.Default().WithComponent("server")
	ctx := context.Background()

	database, err := db.New(cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName)
	if err != nil {
		log.Error(ctx, "failed to connect to database", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		log.Error(ctx, "failed to run migrations", err)
		os.Exit(1)
	}

	userRepo := db.NewUserRepository(database)
	postRepo := db.NewPostRepository(database)
	commentRepo := db.NewCommentRepository(database)
	messageRepo := db.NewMessageRepository(database)

	googleOAuth := &oauth2.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
		Endpoint:     google.Endpoint,
		Scopes: []string{
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
	}

	authService := auth.NewService(userRepo, auth.NewTokenIssuer(cfg.JWTSecret), googleOAuth)
	authHandlers := auth.NewHandlers(authService)

	// The cache is an accelerator; the server runs without it.
	redisCache, err := cache.New(cfg.RedisAddr)
	if err != nil {
		log.Warn(ctx, "redis unavailable, running without cache", map[string]interface{}{
			"error": err.Error(),
		})
		redisCache = nil
	} else {
		defer redisCache.Close()
	}

	mediaStore, err := storage.New(cfg)
	if err != nil {
		log.Error(ctx, "failed to create storage client", err)
		os.Exit(1)
	}
	if err := mediaStore.EnsureBucket(ctx); err != nil {
		log.Error(ctx, "failed to ensure storage bucket", err)
		os.Exit(1)
	}
	imageStore, err := storage.NewImageStore(cfg)
	if err != nil {
		log.Error(ctx, "failed to create image store", err)
		os.Exit(1)
	}

	hub := realtime.NewHub()
	wsHandler := realtime.NewHandler(hub, authService, cfg.AllowedOrigins)

	checkerCfg := &health.CheckerConfig{
		DB:           database.DB,
		StorageCheck: mediaStore.Ping,
		Version:      version,
	}
	if redisCache != nil {
		checkerCfg.Redis = redisCache.Client()
	}
	healthHandler := health.NewHandler(health.NewChecker(checkerCfg))

	router := api.NewRouter(&api.RouterConfig{
		AuthHandlers:    authHandlers,
		AuthService:     authService,
		UserHandlers:    api.NewUserHandlers(userRepo, authService, redisCache),
		PostHandlers:    api.NewPostHandlers(postRepo, imageStore, redisCache),
		CommentHandlers: api.NewCommentHandlers(commentRepo, postRepo),
		MessageHandlers: api.NewMessageHandlers(messageRepo, userRepo, hub),
		MediaHandlers:   api.NewMediaHandlers(mediaStore),
		WSHandler:       wsHandler,
		HealthHandler:   healthHandler,
	})

	handler := middleware.Chain(router,
		middleware.RequestID,
		middleware.Logging(logger.Default().WithComponent("http")),
		middleware.CORS(cfg.AllowedOrigins),
		middleware.Recoverer(logger.Default().WithComponent("http")),
	)

	log.Info(ctx, "starting server", map[string]interface{}{
		"addr":    cfg.ServerAddr,
		"version": version,
	})
	if err := http.ListenAndServe(cfg.ServerAddr, handler); err != nil {
		log.Error(ctx, "server failed", err)
		os.Exit(1)
	}
}
