package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/recordshelf/apiserver/config"
	"github.com/recordshelf/apiserver/internal/catalog"
	"github.com/recordshelf/apiserver/internal/db"
	"github.com/recordshelf/apiserver/internal/handlers"
	"github.com/recordshelf/apiserver/internal/mq"
	"github.com/recordshelf/apiserver/internal/services"
	"github.com/recordshelf/apiserver/internal/storage"
	"github.com/recordshelf/apiserver/internal/store"
	"go.uber.org/zap"
)

// Server wraps the HTTP server, router, and shared resources.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	queue      *mq.MQ
	logger     *zap.Logger
}

// New constructs a Server with all routes and dependencies wired.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	logger, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}

	jwtSecret := strings.TrimSpace(cfg.Auth.JWTSecret)
	if jwtSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	secret := []byte(jwtSecret)

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	userRepo := store.NewUserRepository(dbConn)
	statusRepo := store.NewStatusRepository(dbConn)
	reviewRepo := store.NewReviewRepository(dbConn)
	followRepo := store.NewFollowRepository(dbConn)

	avatars, err := newAvatarStorage(ctx, cfg.Storage)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	queue, err := newQueue(ctx, cfg.MQ)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}
	var publisher services.Publisher
	if queue != nil {
		publisher = queue
	} else {
		logger.Warn("no message queue configured, verification emails will not be sent")
	}

	catalogClient, err := catalog.New(ctx, cfg.Spotify)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	authService := services.NewAuthService(userRepo, publisher, cfg.Auth, cfg.FrontendURL, logger)
	userService := services.NewUserService(userRepo, avatars)
	statusService := services.NewStatusService(statusRepo)
	reviewService := services.NewReviewService(reviewRepo)
	followService := services.NewFollowService(followRepo, userRepo)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	handlers.AuthRouter(router, authService, userService, secret, logger)
	handlers.UserRouter(router, userService, followService, statusService, reviewService, secret, logger)
	handlers.StatusRouter(router, statusService, secret, logger)
	handlers.ReviewRouter(router, reviewService, secret, logger)
	handlers.CatalogRouter(router, catalogClient, logger)

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		queue:      queue,
		logger:     logger,
	}, nil
}

// newAvatarStorage wires the configured object storage backend and makes
// sure the avatar bucket exists.
func newAvatarStorage(ctx context.Context, cfg config.StorageConfig) (*storage.Storage, error) {
	var backend storage.ObjectStorage
	var err error

	switch cfg.Backend {
	case "minio":
		backend, err = storage.NewMinioClient(cfg.Minio)
	case "gcs":
		backend, err = storage.NewGCSClient(ctx, cfg.GCS)
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	avatars := storage.NewStorage(backend)
	if err := avatars.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure avatar bucket: %w", err)
	}
	return avatars, nil
}

// newQueue wires the configured broker backend. An empty backend disables
// publishing; registration still succeeds without verification emails.
func newQueue(ctx context.Context, cfg config.MQConfig) (*mq.MQ, error) {
	switch cfg.Backend {
	case "":
		return nil, nil
	case "rabbitmq":
		backend, err := mq.NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, err
		}
		return mq.New(backend), nil
	case "pubsub":
		backend, err := mq.NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, err
		}
		return mq.New(backend), nil
	default:
		return nil, fmt.Errorf("unsupported mq backend %q", cfg.Backend)
	}
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("server listening", zap.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown.
func (s *Server) Shutdown() error {
	if s.db != nil {
		_ = s.db.Close()
	}
	if s.queue != nil {
		_ = s.queue.Close()
	}
	_ = s.logger.Sync()
	return s.httpServer.Close()
}
