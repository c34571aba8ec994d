package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"sosalert/internal/config"
	handlers "sosalert/internal/handlers/shared"
	"sosalert/internal/middleware"
	"sosalert/internal/repositories/interfaces"
	"sosalert/internal/services"
	"sosalert/pkg/cache"
	"sosalert/pkg/logger"
	"sosalert/pkg/metrics"
	"sosalert/pkg/scheduler"
	"sosalert/pkg/storage"
	"sosalert/pkg/websocket"
	"sosalert/routes"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger, err := logger.NewLogger(&logger.Config{
		Level:      logger.LogLevel(cfg.App.LogLevel),
		Format:     cfg.App.LogFormat,
		Output:     cfg.App.LogOutput,
		TimeFormat: time.RFC3339,
		AppName:    cfg.App.Name,
		Version:    cfg.App.Version,
		MaxSizeMB:  cfg.App.LogMaxSizeMB,
		MaxBackups: cfg.App.LogMaxBackups,
		MaxAgeDays: cfg.App.LogMaxAgeDays,
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg, appLogger); err != nil {
		appLogger.WithError(err).Fatal("Server stopped with error")
	}
}

func run(cfg *config.Config, appLogger *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	// Persistence
	store, err := newStore(ctx, cfg, m, appLogger)
	if err != nil {
		return err
	}
	defer store.Close(context.Background())

	redisCache, err := newRedis(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	if redisCache != nil {
		defer redisCache.Close()
	}

	// External providers
	media, err := newStorage(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	smsProvider, err := newSMS(ctx, cfg.SMS)
	if err != nil {
		return fmt.Errorf("failed to initialize sms: %w", err)
	}
	pushProvider, err := newPush(ctx, cfg.Push)
	if err != nil {
		return fmt.Errorf("failed to initialize push: %w", err)
	}
	geocoder, err := newGeocoder(cfg.Maps)
	if err != nil {
		return fmt.Errorf("failed to initialize maps: %w", err)
	}

	// Realtime
	hub := websocket.NewHub(appLogger, m)
	go hub.Run(ctx)

	var publisher websocket.Publisher = hub
	if redisCache != nil {
		relay := websocket.NewRedisRelay(hub, redisCache, cfg.Redis.RelayChannel, appLogger)
		go func() {
			if err := relay.Run(ctx); err != nil {
				appLogger.WithError(err).Error("Realtime relay stopped")
			}
		}()
		publisher = relay
	}

	// Services
	principals := services.NewCacheService(
		cache.NewLocalCache(cfg.Security.PrincipalCacheTTL, 10*time.Minute),
		redisCache,
		cfg.Security.PrincipalCacheTTL,
		m,
		appLogger,
	)
	authService := services.NewAuthService(store, principals, cfg.Security, appLogger)
	notifier := services.NewNotificationService(publisher, services.NotificationOptions{
		SMS:            smsProvider,
		Push:           pushProvider,
		VolunteerTopic: cfg.Push.FCM.VolunteerTopic,
		Timeout:        cfg.Dispatch.OperationTimeout,
		Metrics:        m,
	}, appLogger)
	matcher := services.NewMatcherService(store, cfg.Dispatch.MatchDelta, cfg.Dispatch.MaxCandidates)
	alertService := services.NewAlertService(store, matcher, notifier, media, geocoder, cfg.Dispatch, m, appLogger)
	mediaService := services.NewMediaService(store, alertService, media, services.MediaOptions{
		MaxSize:          cfg.Dispatch.MaxUploadSize,
		OperationTimeout: cfg.Dispatch.OperationTimeout,
		UploadTimeout:    cfg.Dispatch.UploadTimeout,
	}, appLogger)

	if cfg.App.SeedDemoData && store.Backend() == interfaces.BackendMemory {
		if err := authService.SeedDemoUsers(ctx); err != nil {
			appLogger.WithError(err).Warn("Failed to seed demo accounts")
		}
	}

	// Scheduled jobs
	jobs := scheduler.NewCron(time.UTC)
	if cfg.Cleanup.Enabled {
		cleanup := services.NewCleanupService(media, store, services.CleanupOptions{
			MediaRetention:  cfg.Cleanup.MediaRetention,
			RecordRetention: cfg.Cleanup.RecordRetention,
		}, appLogger)
		if _, err := jobs.Add(cfg.Cleanup.Schedule, cleanup); err != nil {
			return fmt.Errorf("invalid CLEANUP_SCHEDULE: %w", err)
		}
	}
	jobs.Start()
	defer jobs.Stop()

	// HTTP
	limiter, err := middleware.NewRateLimiter(middleware.RateLimitConfig{
		Rate: cfg.Security.RateLimit,
		PerRoute: map[string]string{
			http.MethodPost + " /api/emergency/alert": cfg.Security.AlertRateLimit,
		},
		SkipPaths: []string{"/api/health", "/metrics", cfg.WebSocket.Path},
	}, nil, m)
	if err != nil {
		return err
	}

	deps := routes.Dependencies{
		Logger:        appLogger,
		Metrics:       m,
		Auth:          authService,
		AlertHandler:  handlers.NewAlertHandler(alertService, mediaService),
		AuthHandler:   handlers.NewAuthHandler(authService),
		HealthHandler: handlers.NewHealthHandler(store, cfg.App.Environment, cfg.App.Version),
		WebSocket: websocket.NewHandler(hub, handlers.WebSocketAuthenticator(authService), websocket.HandlerConfig{
			ReadBufferSize:  cfg.WebSocket.ReadBufferSize,
			WriteBufferSize: cfg.WebSocket.WriteBufferSize,
			AllowedOrigins:  cfg.WebSocket.AllowedOrigins,
			Client: websocket.ClientConfig{
				WriteTimeout:   cfg.WebSocket.WriteTimeout,
				PongTimeout:    cfg.WebSocket.PongTimeout,
				PingInterval:   cfg.WebSocket.PingInterval,
				MaxMessageSize: cfg.WebSocket.MaxMessageSize,
				SendBufferSize: cfg.WebSocket.SendBufferSize,
			},
		}),
		WebSocketPath:      cfg.WebSocket.Path,
		RateLimiter:        limiter,
		CORSAllowedOrigins: cfg.Security.CORSAllowedOrigins,
		TrustedProxies:     cfg.Security.TrustedProxies,
		MaxUploadSize:      cfg.Dispatch.MaxUploadSize,
	}
	if local, ok := media.(*storage.LocalStorage); ok {
		deps.UploadsDir = local.BasePath()
	}

	router, err := routes.NewRouter(deps)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.App.Host, cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLogger.WithFields(map[string]interface{}{
			"addr":        server.Addr,
			"environment": cfg.App.Environment,
			"backend":     store.Backend(),
			"storage":     media.Name(),
		}).Info("Starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	appLogger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	notifier.Wait()
	return nil
}
