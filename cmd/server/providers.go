package main

import (
	"context"
	"fmt"

	"sosalert/internal/config"
	"sosalert/internal/repositories/interfaces"
	"sosalert/internal/repositories/memory"
	"sosalert/internal/repositories/mongodb"
	"sosalert/pkg/cache"
	"sosalert/pkg/database"
	"sosalert/pkg/logger"
	"sosalert/pkg/maps"
	"sosalert/pkg/metrics"
	"sosalert/pkg/push"
	"sosalert/pkg/sms"
	"sosalert/pkg/storage"
)

// newStore opens MongoDB and falls back to the memory store outside
// production when it is unreachable.
func newStore(ctx context.Context, cfg *config.Config, m *metrics.Metrics, log *logger.Logger) (interfaces.Store, error) {
	if cfg.Database.URI == "" {
		log.Warn("MONGODB_URI is empty, using in-memory store")
		return memory.NewStore(), nil
	}

	db, err := database.NewMongoDB(ctx, &database.DatabaseConfig{
		URI:            cfg.Database.URI,
		Database:       cfg.Database.Database,
		MaxPoolSize:    cfg.Database.MaxPoolSize,
		MinPoolSize:    cfg.Database.MinPoolSize,
		ConnectTimeout: cfg.Database.ConnectTimeout,
		SocketTimeout:  cfg.Database.SocketTimeout,
	})
	if err == nil {
		var store *mongodb.Store
		store, err = mongodb.NewStore(ctx, db, cfg.Dispatch.ConflictRetries, m.StoreConflict, log)
		if err == nil {
			log.WithField("database", cfg.Database.Database).Info("Connected to MongoDB")
			return store, nil
		}
		_ = db.Close(ctx)
	}

	if cfg.IsProduction() {
		return nil, fmt.Errorf("mongodb unavailable: %w", err)
	}
	log.WithError(err).Warn("MongoDB unavailable, falling back to in-memory store")
	return memory.NewStore(), nil
}

// newRedis returns nil when Redis is disabled.
func newRedis(ctx context.Context, cfg *config.RedisConfig) (*cache.RedisCache, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	return cache.NewRedisCache(ctx, &cache.RedisConfig{
		Host:         cfg.Host,
		Port:         cfg.Port,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
}

func newStorage(ctx context.Context, cfg *config.StorageConfig) (storage.Provider, error) {
	switch cfg.Provider {
	case "s3":
		return storage.NewAWSS3Storage(ctx, cfg.AWS.Region, cfg.AWS.Bucket, cfg.AWS.CDNDomain)
	case "gcs":
		return storage.NewGCPStorage(ctx, cfg.GCP.Bucket, cfg.GCP.CredentialsFile, cfg.GCP.CDNDomain)
	case "local", "":
		return storage.NewLocalStorage(cfg.Local.BasePath, cfg.Local.BaseURL)
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Provider)
	}
}

// The constructors below return a nil interface for "none".

func newSMS(ctx context.Context, cfg *config.SMSConfig) (sms.SMSProvider, error) {
	switch cfg.Provider {
	case "twilio":
		return sms.NewTwilioProvider(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.FromNumber), nil
	case "sns":
		p, err := sms.NewAWSSNSProvider(ctx, cfg.AWS.Region, cfg.AWS.SenderID)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown sms provider %q", cfg.Provider)
	}
}

func newPush(ctx context.Context, cfg *config.PushConfig) (push.PushProvider, error) {
	switch cfg.Provider {
	case "fcm":
		p, err := push.NewFCMProvider(ctx, cfg.FCM.ProjectID, cfg.FCM.Credentials)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown push provider %q", cfg.Provider)
	}
}

func newGeocoder(cfg *config.MapsConfig) (maps.Geocoder, error) {
	switch cfg.Provider {
	case "google":
		p, err := maps.NewGoogleMapsProvider(cfg.GoogleMaps.APIKey)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown maps provider %q", cfg.Provider)
	}
}
