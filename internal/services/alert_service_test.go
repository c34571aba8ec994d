package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"sosalert/internal/models"
	"sosalert/internal/utils"
	"sosalert/internal/validators"
	"sosalert/pkg/apperrors"
	"sosalert/pkg/push"
	"sosalert/pkg/sms"
	"sosalert/pkg/storage"
)

func TestAcceptRaceScenario(t *testing.T) {
	ctx := context.Background()
	f := newAlertFixture(t)

	asha := f.victim(t, "Asha")
	ravi := f.volunteerAt(t, "Ravi", 12.99, 77.60)
	maya := f.volunteerAt(t, "Maya", 12.98, 77.58)

	alert := f.raise(t, asha, 12.97, 77.59)

	ledger := alert.ResponseFor(ravi.ID)
	require.NotNil(t, ledger, "Ravi should have been notified")
	assert.Equal(t, models.ResponseNotified, ledger.Response)
	assert.InDelta(t, 2.47, ledger.Distance, 0.01)

	accepted, err := f.service.AcceptAlert(ctx, ravi, alert.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.AlertStatusAccepted, accepted.Status)
	require.NotNil(t, accepted.AcceptedBy)
	assert.Equal(t, ravi.ID, accepted.AcceptedBy.VolunteerID)

	_, err = f.service.AcceptAlert(ctx, maya, alert.ID, nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)

	stored, err := f.store.FindAlertByID(ctx, alert.ID)
	require.NoError(t, err)
	assert.Equal(t, ravi.ID, stored.AcceptedBy.VolunteerID)

	events := f.publisher.named(utils.EventAlertAccepted)
	require.Len(t, events, 1)
	assert.Equal(t, "", events[0].Room)
}

func TestCreateAlertWithoutVolunteersInRange(t *testing.T) {
	ctx := context.Background()
	f := newAlertFixture(t)

	asha := f.victim(t, "Asha")
	f.volunteerAt(t, "Far", 40.7128, -74.0060)
	f.createUser(t, &models.User{Name: "Nowhere", Role: models.UserRoleVolunteer, IsActive: true})

	alert := f.raise(t, asha, 12.97, 77.59)
	assert.Equal(t, models.AlertStatusActive, alert.Status)
	assert.Empty(t, alert.Responses)

	active, err := f.service.GetActiveAlerts(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, alert.ID, active[0].ID)
	assert.Empty(t, active[0].Responses)

	assert.Len(t, f.publisher.named(utils.EventNewEmergency), 1)
}

func TestCreateAlertInitializesLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newAlertFixture(t)
	asha := f.victim(t, "Asha")
	f.volunteerAt(t, "Ravi", 12.99, 77.60)

	alert := f.raise(t, asha, 12.97, 77.59)

	assert.Equal(t, utils.DefaultDescription, alert.Description)
	assert.Equal(t, models.AlertPriorityHigh, alert.Priority)
	require.Len(t, alert.Timeline, 2)
	assert.Equal(t, models.TimelineCreated, alert.Timeline[0].Event)
	assert.Equal(t, models.TimelineNotifiedVolunteers, alert.Timeline[1].Event)

	raiser, err := f.store.FindUserByID(ctx, asha.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, raiser.Stats.EmergencyAlerts)

	fetched, err := f.store.FindAlertByID(ctx, alert.ID)
	require.NoError(t, err)
	assert.Equal(t, alert.UserDetails, fetched.UserDetails)
	assert.Equal(t, alert.Location, fetched.Location)
	assert.Equal(t, alert.Status, fetched.Status)

	events := f.publisher.named(utils.EventNewEmergency)
	require.Len(t, events, 1)
	assert.Equal(t, utils.RoomVolunteers, events[0].Room)
}

func TestConcurrentAcceptHasSingleWinner(t *testing.T) {
	ctx := context.Background()
	f := newAlertFixture(t)
	asha := f.victim(t, "Asha")

	const n = 16
	volunteers := make([]*models.User, n)
	for i := range volunteers {
		volunteers[i] = f.volunteerAt(t, "v", 12.97+float64(i)*0.001, 77.59)
	}
	alert := f.raise(t, asha, 12.97, 77.59)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []primitive.ObjectID
		losers  int
	)
	start := make(chan struct{})
	for _, v := range volunteers {
		wg.Add(1)
		go func(v *models.User) {
			defer wg.Done()
			<-start
			_, err := f.service.AcceptAlert(ctx, v, alert.ID, nil)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, v.ID)
			case errors.Is(err, apperrors.ErrInvalidTransition):
				losers++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(v)
	}
	close(start)
	wg.Wait()

	require.Len(t, winners, 1)
	assert.Equal(t, n-1, losers)

	stored, err := f.store.FindAlertByID(ctx, alert.ID)
	require.NoError(t, err)
	assert.Equal(t, winners[0], stored.AcceptedBy.VolunteerID)

	accepted := 0
	for _, r := range stored.Responses {
		if r.Response == models.ResponseAccepted {
			accepted++
		}
	}
	assert.Equal(t, 1, accepted)

	winner, err := f.store.FindUserByID(ctx, winners[0])
	require.NoError(t, err)
	assert.EqualValues(t, 1, winner.Stats.HelpedCount)
}

func TestAcceptUnknownAlert(t *testing.T) {
	f := newAlertFixture(t)
	ravi := f.volunteerAt(t, "Ravi", 12.99, 77.60)

	_, err := f.service.AcceptAlert(context.Background(), ravi, primitive.NewObjectID(), nil)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestAcceptUsesEstimatedArrival(t *testing.T) {
	f := newAlertFixture(t)
	asha := f.victim(t, "Asha")
	ravi := f.volunteerAt(t, "Ravi", 12.99, 77.60)
	alert := f.raise(t, asha, 12.97, 77.59)

	eta := time.Now().Add(7 * time.Minute).UTC().Truncate(time.Second)
	accepted, err := f.service.AcceptAlert(context.Background(), ravi, alert.ID, &eta)
	require.NoError(t, err)
	assert.True(t, eta.Equal(accepted.AcceptedBy.EstimatedArrival))
}

func TestDeclineAlert(t *testing.T) {
	ctx := context.Background()
	f := newAlertFixture(t)
	asha := f.victim(t, "Asha")
	ravi := f.volunteerAt(t, "Ravi", 12.99, 77.60)
	alert := f.raise(t, asha, 12.97, 77.59)

	require.NoError(t, f.service.DeclineAlert(ctx, ravi, alert.ID))

	stored, err := f.store.FindAlertByID(ctx, alert.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AlertStatusActive, stored.Status)
	assert.Equal(t, models.ResponseDeclined, stored.ResponseFor(ravi.ID).Response)
	assert.Len(t, f.publisher.named(utils.EventAlertStatusUpdate), 1)

	t.Run("volunteer never notified", func(t *testing.T) {
		stranger := f.volunteerAt(t, "Stranger", 40.7, -74.0)
		before, err := f.store.FindAlertByID(ctx, alert.ID)
		require.NoError(t, err)

		require.NoError(t, f.service.DeclineAlert(ctx, stranger, alert.ID))

		after, err := f.store.FindAlertByID(ctx, alert.ID)
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})

	t.Run("terminal alert", func(t *testing.T) {
		_, err := f.service.CancelAlert(ctx, asha, alert.ID)
		require.NoError(t, err)
		assert.ErrorIs(t, f.service.DeclineAlert(ctx, ravi, alert.ID), apperrors.ErrInvalidTransition)
	})
}

func TestResolveAlert(t *testing.T) {
	ctx := context.Background()
	f := newAlertFixture(t)
	asha := f.victim(t, "Asha")
	ravi := f.volunteerAt(t, "Ravi", 12.99, 77.60)
	maya := f.volunteerAt(t, "Maya", 12.98, 77.58)
	alert := f.raise(t, asha, 12.97, 77.59)

	_, err := f.service.AcceptAlert(ctx, ravi, alert.ID, nil)
	require.NoError(t, err)

	req := &validators.ResolveAlertRequest{Outcome: string(models.OutcomeSafe), Notes: "escorted home"}

	_, err = f.service.ResolveAlert(ctx, maya, alert.ID, req)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	arrived, err := f.service.MarkArrived(ctx, ravi, alert.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TimelineHelpArrived, arrived.Timeline[len(arrived.Timeline)-1].Event)

	resolved, err := f.service.ResolveAlert(ctx, ravi, alert.ID, req)
	require.NoError(t, err)
	assert.Equal(t, models.AlertStatusResolved, resolved.Status)
	require.NotNil(t, resolved.Resolution)
	assert.Equal(t, ravi.ID, resolved.Resolution.ResolvedBy)
	assert.Equal(t, "escorted home", resolved.Resolution.Notes)

	_, err = f.service.ResolveAlert(ctx, asha, alert.ID, req)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)

	_, err = f.service.CancelAlert(ctx, asha, alert.ID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
}

func TestCancelAlertOwnerOnly(t *testing.T) {
	ctx := context.Background()
	f := newAlertFixture(t)
	asha := f.victim(t, "Asha")
	other := f.victim(t, "Other")
	alert := f.raise(t, asha, 12.97, 77.59)

	_, err := f.service.CancelAlert(ctx, other, alert.ID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	cancelled, err := f.service.CancelAlert(ctx, asha, alert.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AlertStatusCancelled, cancelled.Status)

	active, err := f.service.GetActiveAlerts(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestSubmitFeedback(t *testing.T) {
	ctx := context.Background()
	f := newAlertFixture(t)
	asha := f.victim(t, "Asha")
	alert := f.raise(t, asha, 12.97, 77.59)
	req := &validators.FeedbackRequest{Rating: 5, Comment: "thank you"}

	_, err := f.service.SubmitFeedback(ctx, asha, alert.ID, req)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)

	_, err = f.service.ResolveAlert(ctx, asha, alert.ID, &validators.ResolveAlertRequest{Outcome: string(models.OutcomeFalseAlarm)})
	require.NoError(t, err)

	updated, err := f.service.SubmitFeedback(ctx, asha, alert.ID, req)
	require.NoError(t, err)
	require.NotNil(t, updated.Feedback)
	assert.Equal(t, 5, updated.Feedback.Rating)
}

func TestGetAlertMarksSeen(t *testing.T) {
	ctx := context.Background()
	f := newAlertFixture(t)
	asha := f.victim(t, "Asha")
	other := f.victim(t, "Other")
	ravi := f.volunteerAt(t, "Ravi", 12.99, 77.60)
	alert := f.raise(t, asha, 12.97, 77.59)

	viewed, err := f.service.GetAlert(ctx, ravi, alert.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ResponseSeen, viewed.ResponseFor(ravi.ID).Response)

	own, err := f.service.GetAlert(ctx, asha, alert.ID)
	require.NoError(t, err)
	assert.Equal(t, alert.ID, own.ID)

	_, err = f.service.GetAlert(ctx, other, alert.ID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = f.service.GetAlert(ctx, asha, primitive.NewObjectID())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestGetHistoryPaginates(t *testing.T) {
	f := newAlertFixture(t)
	asha := f.victim(t, "Asha")
	other := f.victim(t, "Other")
	for i := 0; i < 3; i++ {
		f.raise(t, asha, 12.97, 77.59)
	}
	f.raise(t, other, 12.97, 77.59)

	alerts, total, err := f.service.GetHistory(context.Background(), asha, utils.PaginationParams{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, alerts, 2)
	for _, a := range alerts {
		assert.Equal(t, asha.ID, a.UserID)
	}
}

func TestAttachMedia(t *testing.T) {
	ctx := context.Background()
	local, err := storage.NewLocalStorage(t.TempDir(), "http://localhost:5000/uploads")
	require.NoError(t, err)
	f := newAlertFixture(t, fixtureOptions{media: local})

	asha := f.victim(t, "Asha")
	other := f.victim(t, "Other")
	alert := f.raise(t, asha, 12.97, 77.59)

	media := models.MediaFile{
		Type:     models.MediaTypeVideo,
		Filename: "emergency-1700000000000-42.mp4",
		Path:     "emergency/emergency-1700000000000-42.mp4",
		Size:     1024,
		MimeType: "video/mp4",
	}

	_, err = f.service.AttachMedia(ctx, other, alert.ID, media)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	attached, err := f.service.AttachMedia(ctx, asha, alert.ID, media)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:5000/uploads/emergency/emergency-1700000000000-42.mp4", attached.URL)

	events := f.publisher.named(utils.EventMediaUploaded)
	require.Len(t, events, 1)
	assert.Equal(t, utils.RoomVolunteers, events[0].Room)

	active, err := f.service.GetActiveAlerts(ctx)
	require.NoError(t, err)
	require.Len(t, active[0].MediaFiles, 1)
	assert.Equal(t, attached.URL, active[0].MediaFiles[0].URL)
}

func TestPublishFailureDoesNotFailCreate(t *testing.T) {
	f := newAlertFixture(t)
	f.publisher.err = errors.New("socket gone")
	asha := f.victim(t, "Asha")

	_, err := f.service.CreateAlert(context.Background(), asha, alertRequest(12.97, 77.59))
	assert.NoError(t, err)
}

func TestCreateAlertNotifiesContactsAndTopic(t *testing.T) {
	smsProvider := &mockSMS{}
	smsProvider.On("SendSMS", mock.Anything, mock.MatchedBy(func(r *sms.SMSRequest) bool {
		return r.To == "+919845011111" && strings.Contains(r.Message, "Asha")
	})).Return(&sms.SMSResponse{MessageID: "SM1"}, nil).Once()

	pushProvider := &mockPush{}
	pushProvider.On("SendNotification", mock.Anything, mock.MatchedBy(func(r *push.NotificationRequest) bool {
		return r.Topic == utils.RoomVolunteers && r.Data["event"] == utils.EventNewEmergency
	})).Return(&push.NotificationResponse{Success: true}, nil).Once()

	f := newAlertFixture(t, fixtureOptions{notifications: NotificationOptions{SMS: smsProvider, Push: pushProvider}})
	asha := f.createUser(t, &models.User{
		Name:     "Asha",
		Role:     models.UserRoleVictim,
		IsActive: true,
		EmergencyContacts: []models.EmergencyContact{
			{Name: "Mother", Phone: "+91 98450-11111", Relationship: "mother"},
			{Name: "Unreachable", Phone: ""},
		},
	})

	f.raise(t, asha, 12.97, 77.59)
	f.notifier.Wait()

	smsProvider.AssertExpectations(t)
	pushProvider.AssertExpectations(t)
}
