package services

import (
	"context"
	"io"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"sosalert/internal/models"
	"sosalert/internal/repositories/interfaces"
	"sosalert/internal/utils"
	"sosalert/pkg/apperrors"
	"sosalert/pkg/logger"
	"sosalert/pkg/storage"
)

// MediaUpload is one file received from a client.
type MediaUpload struct {
	OriginalName string
	ContentType  string
	Size         int64
	Reader       io.Reader
}

// MediaService stores evidence recorded during an emergency and attaches it
// to the alert. Only the alert's raiser may upload.
type MediaService interface {
	Upload(ctx context.Context, uploader *models.User, alertID primitive.ObjectID, upload *MediaUpload) (*models.MediaFile, error)
}

type mediaService struct {
	alerts        interfaces.AlertRepository
	alertSvc      AlertService
	storage       storage.Provider
	maxSize       int64
	timeout       time.Duration
	uploadTimeout time.Duration
	logger        *logger.Logger
	now           func() time.Time
}

// MediaOptions bounds uploads. Zero values take the package defaults.
type MediaOptions struct {
	MaxSize          int64
	OperationTimeout time.Duration
	UploadTimeout    time.Duration
}

func NewMediaService(alerts interfaces.AlertRepository, alertService AlertService, provider storage.Provider, opts MediaOptions, log *logger.Logger) MediaService {
	if opts.MaxSize <= 0 {
		opts.MaxSize = utils.MaxMediaSize
	}
	if opts.OperationTimeout <= 0 {
		opts.OperationTimeout = utils.DefaultOperationTimeout
	}
	if opts.UploadTimeout <= 0 {
		opts.UploadTimeout = utils.DefaultUploadTimeout
	}
	return &mediaService{
		alerts:        alerts,
		alertSvc:      alertService,
		storage:       provider,
		maxSize:       opts.MaxSize,
		timeout:       opts.OperationTimeout,
		uploadTimeout: opts.UploadTimeout,
		logger:        log,
		now:           time.Now,
	}
}

func (s *mediaService) Upload(ctx context.Context, uploader *models.User, alertID primitive.ObjectID, upload *MediaUpload) (*models.MediaFile, error) {
	kind, ok := utils.MediaKind(upload.ContentType)
	if !ok {
		return nil, apperrors.Validation("Invalid file type. Only video, audio, and image files are allowed.")
	}
	if upload.Size > s.maxSize {
		return nil, apperrors.Validation("File is too large")
	}

	// Ownership is checked before any bytes are stored; AttachMedia checks
	// again under the alert's write lock.
	alert, err := s.findAlert(ctx, alertID)
	if err != nil {
		return nil, err
	}
	if alert.UserID != uploader.ID {
		return nil, apperrors.Forbidden("Access denied")
	}

	now := s.now()
	filename := utils.GenerateMediaFilename(upload.OriginalName, now)
	key := utils.MediaObjectKey(filename)

	uploadCtx, cancel := context.WithTimeout(ctx, s.uploadTimeout)
	defer cancel()

	stored, err := s.storage.Upload(uploadCtx, &storage.UploadRequest{
		Key:         key,
		Reader:      io.LimitReader(upload.Reader, s.maxSize+1),
		ContentType: upload.ContentType,
		Size:        upload.Size,
		Metadata: map[string]string{
			"alert_id": alertID.Hex(),
			"user_id":  uploader.ID.Hex(),
		},
	})
	if err != nil {
		if uploadCtx.Err() != nil {
			s.discard(key)
			return nil, apperrors.FromContext(uploadCtx.Err())
		}
		return nil, apperrors.Wrap(err, apperrors.KindInternal, "Failed to upload media")
	}
	if stored.Size > s.maxSize {
		s.discard(key)
		return nil, apperrors.Validation("File is too large")
	}

	media, err := s.alertSvc.AttachMedia(ctx, uploader, alertID, models.MediaFile{
		Type:         models.MediaType(kind),
		Filename:     filename,
		OriginalName: upload.OriginalName,
		Path:         key,
		Size:         stored.Size,
		MimeType:     upload.ContentType,
		UploadedAt:   now,
	})
	if err != nil {
		s.discard(key)
		return nil, err
	}
	return media, nil
}

func (s *mediaService) findAlert(ctx context.Context, id primitive.ObjectID) (*models.EmergencyAlert, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	alert, err := s.alerts.FindAlertByID(ctx, id)
	return alert, apperrors.FromContext(err)
}

// discard removes an object that could not be attached.
func (s *mediaService) discard(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.storage.Delete(ctx, key); err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("Failed to remove orphaned media")
	}
}
