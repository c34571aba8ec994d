package services

import (
	"context"
	"time"

	"sosalert/internal/repositories/interfaces"
	"sosalert/internal/utils"
	"sosalert/pkg/apperrors"
	"sosalert/pkg/logger"
	"sosalert/pkg/storage"
)

// CleanupService removes uploaded media and closed alert records once they
// pass their retention periods. Active and accepted alerts are never purged.
type CleanupService interface {
	PurgeExpiredMedia(ctx context.Context) (int, error)
	PurgeClosedAlerts(ctx context.Context) (int64, error)
	// Run is the scheduler entry point; it logs instead of returning errors.
	Run(ctx context.Context)
}

// CleanupOptions holds retention periods. A zero MediaRetention falls back
// to 30 days; a zero RecordRetention disables record purging.
type CleanupOptions struct {
	MediaRetention  time.Duration
	RecordRetention time.Duration
}

type cleanupService struct {
	storage storage.Provider
	alerts  interfaces.AlertRepository
	opts    CleanupOptions
	logger  *logger.Logger
	now     func() time.Time
}

func NewCleanupService(provider storage.Provider, alerts interfaces.AlertRepository, opts CleanupOptions, log *logger.Logger) CleanupService {
	if opts.MediaRetention <= 0 {
		opts.MediaRetention = 30 * 24 * time.Hour
	}
	return &cleanupService{
		storage: provider,
		alerts:  alerts,
		opts:    opts,
		logger:  log,
		now:     time.Now,
	}
}

func (s *cleanupService) PurgeExpiredMedia(ctx context.Context) (int, error) {
	files, err := s.storage.ListFiles(ctx, utils.EmergencyMediaDir+"/")
	if err != nil {
		return 0, err
	}

	cutoff := s.now().Add(-s.opts.MediaRetention)
	removed := 0
	for _, f := range files {
		if ctx.Err() != nil {
			return removed, ctx.Err()
		}
		if !f.LastModified.Before(cutoff) {
			continue
		}
		if err := s.storage.Delete(ctx, f.Key); err != nil {
			s.logger.WithError(err).WithField("key", f.Key).Warn("Failed to delete expired media")
			continue
		}
		removed++
	}
	return removed, nil
}

func (s *cleanupService) PurgeClosedAlerts(ctx context.Context) (int64, error) {
	if s.alerts == nil || s.opts.RecordRetention <= 0 {
		return 0, nil
	}
	removed, err := s.alerts.DeleteClosedAlertsBefore(ctx, s.now().Add(-s.opts.RecordRetention))
	return removed, apperrors.FromContext(err)
}

func (s *cleanupService) Run(ctx context.Context) {
	start := s.now()

	records, err := s.PurgeClosedAlerts(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Alert record cleanup failed")
	}

	files, err := s.PurgeExpiredMedia(ctx)
	log := s.logger.WithFields(map[string]interface{}{
		"records_removed": records,
		"media_removed":   files,
		"provider":        s.storage.Name(),
		"duration":        time.Since(start).String(),
	})
	if err != nil {
		log.WithError(err).Error("Media cleanup failed")
		return
	}
	log.Info("Cleanup finished")
}
