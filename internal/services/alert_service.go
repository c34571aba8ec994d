package services

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"sosalert/internal/config"
	"sosalert/internal/lifecycle"
	"sosalert/internal/models"
	"sosalert/internal/repositories/interfaces"
	"sosalert/internal/utils"
	"sosalert/internal/validators"
	"sosalert/pkg/apperrors"
	"sosalert/pkg/logger"
	"sosalert/pkg/maps"
	"sosalert/pkg/metrics"
	"sosalert/pkg/storage"
)

// AlertService drives an alert through its lifecycle. Every mutation goes
// through the store's UpdateAlert so that concurrent accepters are
// serialized per alert.
type AlertService interface {
	// Raising
	CreateAlert(ctx context.Context, raiser *models.User, req *validators.CreateAlertRequest) (*models.EmergencyAlert, error)
	AttachMedia(ctx context.Context, uploader *models.User, alertID primitive.ObjectID, media models.MediaFile) (*models.MediaFile, error)
	CancelAlert(ctx context.Context, actor *models.User, alertID primitive.ObjectID) (*models.EmergencyAlert, error)
	SubmitFeedback(ctx context.Context, actor *models.User, alertID primitive.ObjectID, req *validators.FeedbackRequest) (*models.EmergencyAlert, error)

	// Responding
	AcceptAlert(ctx context.Context, volunteer *models.User, alertID primitive.ObjectID, estimatedArrival *time.Time) (*models.EmergencyAlert, error)
	DeclineAlert(ctx context.Context, volunteer *models.User, alertID primitive.ObjectID) error
	MarkArrived(ctx context.Context, volunteer *models.User, alertID primitive.ObjectID) (*models.EmergencyAlert, error)
	ResolveAlert(ctx context.Context, actor *models.User, alertID primitive.ObjectID, req *validators.ResolveAlertRequest) (*models.EmergencyAlert, error)

	// Queries
	GetActiveAlerts(ctx context.Context) ([]*models.EmergencyAlert, error)
	GetAlert(ctx context.Context, viewer *models.User, alertID primitive.ObjectID) (*models.EmergencyAlert, error)
	GetHistory(ctx context.Context, user *models.User, params utils.PaginationParams) ([]*models.EmergencyAlert, int64, error)
}

type alertService struct {
	store    interfaces.Store
	matcher  MatcherService
	notifier NotificationService
	media    storage.Provider
	geocoder maps.Geocoder
	config   *config.DispatchConfig
	metrics  *metrics.Metrics
	logger   *logger.Logger
	now      func() time.Time
}

// errUnchanged aborts an UpdateAlert whose mutator found nothing to do.
var errUnchanged = errors.New("alert unchanged")

// NewAlertService wires the lifecycle. media and geocoder may be nil.
func NewAlertService(
	store interfaces.Store,
	matcher MatcherService,
	notifier NotificationService,
	media storage.Provider,
	geocoder maps.Geocoder,
	cfg *config.DispatchConfig,
	m *metrics.Metrics,
	log *logger.Logger,
) AlertService {
	return &alertService{
		store:    store,
		matcher:  matcher,
		notifier: notifier,
		media:    media,
		geocoder: geocoder,
		config:   cfg,
		metrics:  m,
		logger:   log,
		now:      time.Now,
	}
}

func (s *alertService) CreateAlert(ctx context.Context, raiser *models.User, req *validators.CreateAlertRequest) (*models.EmergencyAlert, error) {
	description := req.Description
	if description == "" {
		description = utils.DefaultDescription
	}

	alert := &models.EmergencyAlert{
		UserID: raiser.ID,
		UserDetails: models.ContactSnapshot{
			Name:    req.UserDetails.Name,
			Phone:   req.UserDetails.Phone,
			Address: req.UserDetails.Address,
		},
		Location: models.Coordinates{
			Latitude:  *req.Location.Latitude,
			Longitude: *req.Location.Longitude,
			Address:   req.Location.Address,
		},
		Priority:    models.AlertPriority(req.Priority),
		Description: description,
	}
	if alert.Location.Address == "" {
		alert.Location.Address = s.reverseGeocode(ctx, alert.Location)
	}

	created, err := s.createAlert(ctx, alert)
	if err != nil {
		return nil, err
	}
	log := s.logger.WithAlertID(created.ID).WithUserID(raiser.ID)

	if err := s.incrementStat(ctx, raiser.ID, models.StatEmergencyAlerts); err != nil {
		log.WithError(err).Warn("Failed to increment emergency alert counter")
	}

	// The alert exists from here on; matching problems only shrink the fan-out.
	candidates, err := s.findCandidates(ctx, created)
	if err != nil {
		log.WithError(err).Warn("Volunteer matching failed")
		candidates = nil
	}

	notified, err := s.update(ctx, created.ID, func(a *models.EmergencyAlert) error {
		return lifecycle.NotifyVolunteers(a, candidates, s.now())
	})
	if err != nil {
		log.WithError(err).Warn("Failed to record notified volunteers")
		notified = created
	}
	s.withMediaURLs(notified)

	s.notifier.NewEmergency(ctx, notified)
	s.notifier.NotifyEmergencyContacts(ctx, raiser, notified)
	s.metrics.AlertCreated(len(candidates))

	log.LogAlertEvent(notified.ID, string(models.TimelineCreated), map[string]interface{}{
		"volunteers_notified": len(candidates),
		"priority":            notified.Priority,
	})
	return notified, nil
}

func (s *alertService) AttachMedia(ctx context.Context, uploader *models.User, alertID primitive.ObjectID, media models.MediaFile) (*models.MediaFile, error) {
	updated, err := s.update(ctx, alertID, func(a *models.EmergencyAlert) error {
		if a.UserID != uploader.ID {
			return apperrors.Forbidden("Access denied")
		}
		lifecycle.AttachMedia(a, media, s.now())
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.withMediaURLs(updated)

	attached := updated.MediaFiles[len(updated.MediaFiles)-1]
	s.notifier.MediaUploaded(ctx, updated, &attached)
	s.logger.LogAlertEvent(alertID, "media_uploaded", map[string]interface{}{
		"media_type": attached.Type,
		"size":       attached.Size,
	})
	return &attached, nil
}

func (s *alertService) AcceptAlert(ctx context.Context, volunteer *models.User, alertID primitive.ObjectID, estimatedArrival *time.Time) (*models.EmergencyAlert, error) {
	var eta time.Time
	if estimatedArrival != nil {
		eta = *estimatedArrival
	}

	accepted, err := s.update(ctx, alertID, func(a *models.EmergencyAlert) error {
		return lifecycle.Accept(a, volunteer.ID, eta, s.config.ArrivalWindow, s.now())
	})
	s.metrics.AlertTransition("accept", err)
	if err != nil {
		return nil, err
	}

	if err := s.incrementStat(ctx, volunteer.ID, models.StatHelpedCount); err != nil {
		s.logger.WithError(err).WithUserID(volunteer.ID).Warn("Failed to increment helped counter")
	}

	s.notifier.AlertAccepted(ctx, accepted, volunteer)
	s.logger.LogAlertEvent(alertID, string(models.TimelineVolunteerAccepted), map[string]interface{}{
		"volunteer_id":      volunteer.ID.Hex(),
		"estimated_arrival": accepted.AcceptedBy.EstimatedArrival,
	})
	return accepted, nil
}

func (s *alertService) DeclineAlert(ctx context.Context, volunteer *models.User, alertID primitive.ObjectID) error {
	declined, err := s.update(ctx, alertID, func(a *models.EmergencyAlert) error {
		if err := lifecycle.Decline(a, volunteer.ID, s.now()); err != nil {
			return err
		}
		if a.ResponseFor(volunteer.ID) == nil {
			return errUnchanged
		}
		return nil
	})
	if errors.Is(err, errUnchanged) {
		s.metrics.AlertTransition("decline", nil)
		return nil
	}
	s.metrics.AlertTransition("decline", err)
	if err != nil {
		return err
	}

	s.notifier.StatusUpdate(ctx, declined, "A volunteer declined the alert")
	s.logger.LogAlertEvent(alertID, "volunteer_declined", map[string]interface{}{
		"volunteer_id": volunteer.ID.Hex(),
	})
	return nil
}

func (s *alertService) MarkArrived(ctx context.Context, volunteer *models.User, alertID primitive.ObjectID) (*models.EmergencyAlert, error) {
	arrived, err := s.update(ctx, alertID, func(a *models.EmergencyAlert) error {
		return lifecycle.HelpArrived(a, volunteer.ID, s.now())
	})
	s.metrics.AlertTransition("arrive", err)
	if err != nil {
		return nil, err
	}

	s.notifier.StatusUpdate(ctx, arrived, "Help has arrived")
	s.logger.LogAlertEvent(alertID, string(models.TimelineHelpArrived), nil)
	return arrived, nil
}

// ResolveAlert may be called by the raiser or by the accepting volunteer.
func (s *alertService) ResolveAlert(ctx context.Context, actor *models.User, alertID primitive.ObjectID, req *validators.ResolveAlertRequest) (*models.EmergencyAlert, error) {
	resolved, err := s.update(ctx, alertID, func(a *models.EmergencyAlert) error {
		isAccepter := a.AcceptedBy != nil && a.AcceptedBy.VolunteerID == actor.ID
		if a.UserID != actor.ID && !isAccepter {
			return apperrors.Forbidden("Only the alert owner or the accepting volunteer can resolve it")
		}
		return lifecycle.Resolve(a, actor.ID, models.ResolutionOutcome(req.Outcome), req.Notes, s.now())
	})
	s.metrics.AlertTransition("resolve", err)
	if err != nil {
		return nil, err
	}

	s.notifier.StatusUpdate(ctx, resolved, "Alert resolved")
	s.logger.LogAlertEvent(alertID, string(models.TimelineResolved), map[string]interface{}{
		"resolved_by": actor.ID.Hex(),
		"outcome":     req.Outcome,
	})
	return resolved, nil
}

func (s *alertService) CancelAlert(ctx context.Context, actor *models.User, alertID primitive.ObjectID) (*models.EmergencyAlert, error) {
	cancelled, err := s.update(ctx, alertID, func(a *models.EmergencyAlert) error {
		if a.UserID != actor.ID {
			return apperrors.Forbidden("Only the alert owner can cancel it")
		}
		return lifecycle.Cancel(a, actor.ID, s.now())
	})
	s.metrics.AlertTransition("cancel", err)
	if err != nil {
		return nil, err
	}

	s.notifier.StatusUpdate(ctx, cancelled, "Alert cancelled")
	s.logger.LogAlertEvent(alertID, string(models.TimelineCancelled), nil)
	return cancelled, nil
}

func (s *alertService) SubmitFeedback(ctx context.Context, actor *models.User, alertID primitive.ObjectID, req *validators.FeedbackRequest) (*models.EmergencyAlert, error) {
	updated, err := s.update(ctx, alertID, func(a *models.EmergencyAlert) error {
		if a.UserID != actor.ID {
			return apperrors.Forbidden("Only the alert owner can leave feedback")
		}
		return lifecycle.SubmitFeedback(a, req.Rating, req.Comment, s.now())
	})
	s.metrics.AlertTransition("feedback", err)
	if err != nil {
		return nil, err
	}

	s.notifier.StatusUpdate(ctx, updated, "Feedback received")
	return updated, nil
}

func (s *alertService) GetActiveAlerts(ctx context.Context) ([]*models.EmergencyAlert, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	alerts, err := s.store.FindActiveAlerts(ctx, s.config.ActiveAlertsLimit)
	if err != nil {
		return nil, apperrors.FromContext(err)
	}
	for _, a := range alerts {
		s.withMediaURLs(a)
	}
	return alerts, nil
}

// GetAlert is open to the raiser and to any volunteer. A notified volunteer
// opening the alert moves their ledger entry to seen.
func (s *alertService) GetAlert(ctx context.Context, viewer *models.User, alertID primitive.ObjectID) (*models.EmergencyAlert, error) {
	alert, err := s.findAlert(ctx, alertID)
	if err != nil {
		return nil, err
	}
	if alert.UserID != viewer.ID && !viewer.IsVolunteer() {
		return nil, apperrors.Forbidden("Access denied")
	}

	if viewer.IsVolunteer() && !alert.IsTerminal() {
		seen, err := s.update(ctx, alertID, func(a *models.EmergencyAlert) error {
			if !lifecycle.MarkSeen(a, viewer.ID, s.now()) {
				return errUnchanged
			}
			return nil
		})
		switch {
		case err == nil:
			alert = seen
		case !errors.Is(err, errUnchanged):
			s.logger.WithError(err).WithAlertID(alertID).Warn("Failed to mark alert as seen")
		}
	}

	s.withMediaURLs(alert)
	return alert, nil
}

func (s *alertService) GetHistory(ctx context.Context, user *models.User, params utils.PaginationParams) ([]*models.EmergencyAlert, int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	alerts, total, err := s.store.FindAlertsByUser(ctx, user.ID, params)
	if err != nil {
		return nil, 0, apperrors.FromContext(err)
	}
	for _, a := range alerts {
		s.withMediaURLs(a)
	}
	return alerts, total, nil
}

func (s *alertService) createAlert(ctx context.Context, alert *models.EmergencyAlert) (*models.EmergencyAlert, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	created, err := s.store.CreateAlert(ctx, alert)
	return created, apperrors.FromContext(err)
}

func (s *alertService) findAlert(ctx context.Context, id primitive.ObjectID) (*models.EmergencyAlert, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	alert, err := s.store.FindAlertByID(ctx, id)
	return alert, apperrors.FromContext(err)
}

func (s *alertService) findCandidates(ctx context.Context, alert *models.EmergencyAlert) ([]lifecycle.Candidate, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	candidates, err := s.matcher.FindCandidates(ctx, alert)
	return candidates, apperrors.FromContext(err)
}

func (s *alertService) update(ctx context.Context, id primitive.ObjectID, mutate interfaces.AlertMutator) (*models.EmergencyAlert, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	alert, err := s.store.UpdateAlert(ctx, id, mutate)
	return alert, apperrors.FromContext(err)
}

func (s *alertService) incrementStat(ctx context.Context, userID primitive.ObjectID, field models.UserStatField) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	return apperrors.FromContext(s.store.IncrementStat(ctx, userID, field))
}

// reverseGeocode returns "" when no geocoder is configured or the lookup fails.
func (s *alertService) reverseGeocode(ctx context.Context, loc models.Coordinates) string {
	if s.geocoder == nil {
		return ""
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	result, err := s.geocoder.ReverseGeocode(ctx, loc.Latitude, loc.Longitude)
	if err != nil {
		if !errors.Is(err, maps.ErrNoResults) {
			s.logger.WithError(err).WithField("provider", s.geocoder.Name()).Warn("Reverse geocoding failed")
		}
		return ""
	}
	return result.Address
}

func (s *alertService) withMediaURLs(alert *models.EmergencyAlert) {
	if alert == nil || s.media == nil {
		return
	}
	for i := range alert.MediaFiles {
		key := alert.MediaFiles[i].Path
		if key == "" {
			key = utils.MediaObjectKey(alert.MediaFiles[i].Filename)
		}
		alert.MediaFiles[i].URL = s.media.URL(key)
	}
}

func (s *alertService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := s.config.OperationTimeout
	if timeout <= 0 {
		timeout = utils.DefaultOperationTimeout
	}
	return context.WithTimeout(ctx, timeout)
}
