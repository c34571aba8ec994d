package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sosalert/internal/models"
	"sosalert/internal/utils"
	"sosalert/pkg/logger"
	"sosalert/pkg/metrics"
	"sosalert/pkg/push"
	"sosalert/pkg/sms"
	"sosalert/pkg/websocket"
)

// NotificationService fans alert events out over the realtime channel, push
// and SMS. Every method is best-effort: failures are logged and counted,
// never returned.
//
// Realtime events are published before the method returns. Push and SMS
// deliveries run in the background; Wait blocks until they finish.
type NotificationService interface {
	NewEmergency(ctx context.Context, alert *models.EmergencyAlert)
	MediaUploaded(ctx context.Context, alert *models.EmergencyAlert, media *models.MediaFile)
	AlertAccepted(ctx context.Context, alert *models.EmergencyAlert, volunteer *models.User)
	StatusUpdate(ctx context.Context, alert *models.EmergencyAlert, message string)
	NotifyEmergencyContacts(ctx context.Context, raiser *models.User, alert *models.EmergencyAlert)
	Wait()
}

type notificationService struct {
	publisher websocket.Publisher
	sms       sms.SMSProvider
	push      push.PushProvider
	topic     string
	timeout   time.Duration
	metrics   *metrics.Metrics
	logger    *logger.Logger
	pending   sync.WaitGroup
}

type NotificationOptions struct {
	SMS            sms.SMSProvider
	Push           push.PushProvider
	VolunteerTopic string
	Timeout        time.Duration
	Metrics        *metrics.Metrics
}

func NewNotificationService(publisher websocket.Publisher, opts NotificationOptions, log *logger.Logger) NotificationService {
	if opts.Timeout <= 0 {
		opts.Timeout = utils.DefaultOperationTimeout
	}
	if opts.VolunteerTopic == "" {
		opts.VolunteerTopic = utils.RoomVolunteers
	}
	return &notificationService{
		publisher: publisher,
		sms:       opts.SMS,
		push:      opts.Push,
		topic:     opts.VolunteerTopic,
		timeout:   opts.Timeout,
		metrics:   opts.Metrics,
		logger:    log,
	}
}

func (s *notificationService) NewEmergency(ctx context.Context, alert *models.EmergencyAlert) {
	s.publish(ctx, utils.RoomVolunteers, utils.EventNewEmergency, alert)

	if s.push == nil {
		return
	}
	req := &push.NotificationRequest{
		Topic: s.topic,
		Title: "Emergency nearby",
		Body:  fmt.Sprintf("%s needs help: %s", alert.UserDetails.Name, alert.Description),
		Data: map[string]string{
			"event":    utils.EventNewEmergency,
			"alertId":  alert.ID.Hex(),
			"priority": string(alert.Priority),
		},
		Sound: "default",
	}
	s.background(ctx, func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		if _, err := s.push.SendNotification(ctx, req); err != nil {
			s.failed("push", alert, err)
		}
	})
}

func (s *notificationService) MediaUploaded(ctx context.Context, alert *models.EmergencyAlert, media *models.MediaFile) {
	s.publish(ctx, utils.RoomVolunteers, utils.EventMediaUploaded, payload{
		"alertId":   alert.ID.Hex(),
		"mediaType": media.Type,
		"filename":  media.Filename,
		"url":       media.URL,
	})
}

func (s *notificationService) AlertAccepted(ctx context.Context, alert *models.EmergencyAlert, volunteer *models.User) {
	if alert.AcceptedBy == nil {
		return
	}
	data := payload{
		"alertId":          alert.ID.Hex(),
		"volunteerId":      alert.AcceptedBy.VolunteerID.Hex(),
		"estimatedArrival": alert.AcceptedBy.EstimatedArrival,
		"message":          "Help is on the way!",
	}
	if volunteer != nil {
		data["volunteerName"] = volunteer.Name
	}
	s.publish(ctx, "", utils.EventAlertAccepted, data)
}

func (s *notificationService) StatusUpdate(ctx context.Context, alert *models.EmergencyAlert, message string) {
	data := payload{
		"alertId": alert.ID.Hex(),
		"status":  alert.Status,
		"message": message,
	}
	if alert.AcceptedBy != nil {
		data["volunteerId"] = alert.AcceptedBy.VolunteerID.Hex()
	}
	s.publish(ctx, "", utils.EventAlertStatusUpdate, data)
}

func (s *notificationService) NotifyEmergencyContacts(ctx context.Context, raiser *models.User, alert *models.EmergencyAlert) {
	if s.sms == nil || raiser == nil || len(raiser.EmergencyContacts) == 0 {
		return
	}

	body := emergencyContactMessage(raiser.Name, alert)
	contacts := append([]models.EmergencyContact(nil), raiser.EmergencyContacts...)

	s.background(ctx, func(ctx context.Context) {
		for _, contact := range contacts {
			to := utils.NormalizePhone(contact.Phone)
			if to == "" {
				continue
			}
			sendCtx, cancel := context.WithTimeout(ctx, s.timeout)
			_, err := s.sms.SendSMS(sendCtx, &sms.SMSRequest{To: to, Message: body})
			cancel()
			if err != nil {
				s.failed("sms", alert, err)
			}
		}
	})
}

func (s *notificationService) Wait() {
	s.pending.Wait()
}

func emergencyContactMessage(name string, alert *models.EmergencyAlert) string {
	where := alert.Location.String()
	if alert.Location.Address != "" {
		where = alert.Location.Address
	}
	return fmt.Sprintf("%s: %s has raised an SOS at %s. https://maps.google.com/?q=%f,%f",
		utils.AppName, name, where, alert.Location.Latitude, alert.Location.Longitude)
}

// background runs fn detached from the request's cancellation.
func (s *notificationService) background(ctx context.Context, fn func(ctx context.Context)) {
	ctx = context.WithoutCancel(ctx)
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		fn(ctx)
	}()
}

func (s *notificationService) publish(ctx context.Context, room, event string, data interface{}) {
	if s.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.publisher.Publish(ctx, room, event, data); err != nil {
		s.metrics.NotificationFailed("realtime")
		s.logger.WithError(err).WithField("event", event).Warn("Failed to publish realtime event")
	}
}

func (s *notificationService) failed(channel string, alert *models.EmergencyAlert, err error) {
	s.metrics.NotificationFailed(channel)
	s.logger.WithError(err).WithAlertID(alert.ID).WithField("channel", channel).Warn("Notification delivery failed")
}

type payload = map[string]interface{}
