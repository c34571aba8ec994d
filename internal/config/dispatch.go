package config

import (
	"time"
)

// DispatchConfig tunes volunteer matching and the alert lifecycle.
type DispatchConfig struct {
	MatchDelta        float64       `yaml:"match_delta"`
	MaxCandidates     int           `yaml:"max_candidates"`
	ActiveAlertsLimit int           `yaml:"active_alerts_limit"`
	ArrivalWindow     time.Duration `yaml:"arrival_window"`
	OperationTimeout  time.Duration `yaml:"operation_timeout"`
	ConflictRetries   int           `yaml:"conflict_retries"`
	MaxUploadSize     int64         `yaml:"max_upload_size"`
	// UploadTimeout bounds a single media upload to the storage provider.
	UploadTimeout     time.Duration `yaml:"upload_timeout"`
}

func loadDispatchConfig() *DispatchConfig {
	return &DispatchConfig{
		MatchDelta:        getEnvAsFloat64("DISPATCH_MATCH_DELTA", 0.45),
		MaxCandidates:     getEnvAsInt("DISPATCH_MAX_CANDIDATES", 20),
		ActiveAlertsLimit: getEnvAsInt("DISPATCH_ACTIVE_ALERTS_LIMIT", 50),
		ArrivalWindow:     getEnvAsDuration("DISPATCH_ARRIVAL_WINDOW", 15*time.Minute),
		OperationTimeout:  getEnvAsDuration("DISPATCH_OPERATION_TIMEOUT", 5*time.Second),
		ConflictRetries:   getEnvAsInt("DISPATCH_CONFLICT_RETRIES", 5),
		MaxUploadSize:     getEnvAsInt64("MAX_UPLOAD_SIZE", 50*1024*1024),
		UploadTimeout:     getEnvAsDuration("MEDIA_UPLOAD_TIMEOUT", 2*time.Minute),
	}
}

type CleanupConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Schedule        string        `yaml:"schedule"`
	MediaRetention  time.Duration `yaml:"media_retention"`
	// RecordRetention applies to resolved and cancelled alerts only. Zero
	// keeps records forever.
	RecordRetention time.Duration `yaml:"record_retention"`
}

func loadCleanupConfig() *CleanupConfig {
	return &CleanupConfig{
		Enabled:         getEnvAsBool("CLEANUP_ENABLED", true),
		Schedule:        getEnv("CLEANUP_SCHEDULE", "0 2 * * *"),
		MediaRetention:  getEnvAsDuration("CLEANUP_MEDIA_RETENTION", 30*24*time.Hour),
		RecordRetention: getEnvAsDuration("CLEANUP_RECORD_RETENTION", 90*24*time.Hour),
	}
}
