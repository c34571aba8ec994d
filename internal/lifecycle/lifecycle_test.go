package lifecycle

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"sosalert/internal/models"
	"sosalert/pkg/apperrors"
)

var t0 = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func newAlert() *models.EmergencyAlert {
	a := &models.EmergencyAlert{
		ID:       primitive.NewObjectID(),
		UserID:   primitive.NewObjectID(),
		Location: models.Coordinates{Latitude: 12.97, Longitude: 77.59},
	}
	Initialize(a, t0)
	return a
}

func volunteer() *models.User {
	return &models.User{ID: primitive.NewObjectID(), Role: models.UserRoleVolunteer, IsActive: true}
}

func TestInitialize(t *testing.T) {
	a := &models.EmergencyAlert{
		Status:     models.AlertStatusResolved,
		AcceptedBy: &models.Acceptance{VolunteerID: primitive.NewObjectID()},
		Timeline:   []models.TimelineEntry{{Event: models.TimelineResolved}},
	}
	Initialize(a, t0)

	assert.Equal(t, models.AlertStatusActive, a.Status)
	assert.Equal(t, models.AlertPriorityHigh, a.Priority)
	assert.Nil(t, a.AcceptedBy)
	assert.NotNil(t, a.Responses)
	assert.Empty(t, a.Responses)
	assert.NotNil(t, a.MediaFiles)
	require.Len(t, a.Timeline, 1)
	assert.Equal(t, models.TimelineCreated, a.Timeline[0].Event)
	assert.Equal(t, t0, a.Timeline[0].Timestamp)
}

func TestInitializeKeepsValidPriority(t *testing.T) {
	a := &models.EmergencyAlert{Priority: models.AlertPriorityLow}
	Initialize(a, t0)
	assert.Equal(t, models.AlertPriorityLow, a.Priority)
}

func TestNotifyVolunteers(t *testing.T) {
	a := newAlert()
	v1, v2 := volunteer(), volunteer()

	require.NoError(t, NotifyVolunteers(a, []Candidate{{v1, 1.5}, {v2, 3.2}}, t0.Add(time.Second)))

	assert.Equal(t, models.AlertStatusActive, a.Status)
	require.Len(t, a.Responses, 2)
	assert.Equal(t, models.ResponseNotified, a.Responses[0].Response)
	assert.Equal(t, 3.2, a.Responses[1].Distance)
	assert.Equal(t, models.TimelineNotifiedVolunteers, a.Timeline[len(a.Timeline)-1].Event)
}

func TestNotifyVolunteersTwiceDuplicatesEntries(t *testing.T) {
	a := newAlert()
	v := volunteer()

	require.NoError(t, NotifyVolunteers(a, []Candidate{{v, 1}}, t0))
	require.NoError(t, NotifyVolunteers(a, []Candidate{{v, 1}}, t0))

	assert.Len(t, a.Responses, 2)
}

func TestAccept(t *testing.T) {
	a := newAlert()
	v := volunteer()
	require.NoError(t, NotifyVolunteers(a, []Candidate{{v, 2}}, t0))

	now := t0.Add(time.Minute)
	require.NoError(t, Accept(a, v.ID, time.Time{}, 15*time.Minute, now))

	assert.Equal(t, models.AlertStatusAccepted, a.Status)
	require.NotNil(t, a.AcceptedBy)
	assert.Equal(t, v.ID, a.AcceptedBy.VolunteerID)
	assert.Equal(t, now, a.AcceptedBy.AcceptedAt)
	assert.Equal(t, now.Add(15*time.Minute), a.AcceptedBy.EstimatedArrival)
	assert.Equal(t, models.ResponseAccepted, a.Responses[0].Response)
	require.NotNil(t, a.Responses[0].ResponseTime)
	assert.Equal(t, models.TimelineVolunteerAccepted, a.Timeline[len(a.Timeline)-1].Event)
}

func TestAcceptUsesCallerEstimate(t *testing.T) {
	a := newAlert()
	eta := t0.Add(7 * time.Minute)
	require.NoError(t, Accept(a, primitive.NewObjectID(), eta, 15*time.Minute, t0))
	assert.Equal(t, eta, a.AcceptedBy.EstimatedArrival)
}

func TestSecondAcceptFails(t *testing.T) {
	a := newAlert()
	first, second := primitive.NewObjectID(), primitive.NewObjectID()

	require.NoError(t, Accept(a, first, time.Time{}, 15*time.Minute, t0))
	err := Accept(a, second, time.Time{}, 15*time.Minute, t0)

	assert.True(t, errors.Is(err, apperrors.ErrInvalidTransition))
	assert.Equal(t, first, a.AcceptedBy.VolunteerID)
}

func TestDeclineNeverChangesStatus(t *testing.T) {
	for _, status := range []models.AlertStatus{models.AlertStatusActive, models.AlertStatusAccepted} {
		t.Run(string(status), func(t *testing.T) {
			a := newAlert()
			v := volunteer()
			require.NoError(t, NotifyVolunteers(a, []Candidate{{v, 1}}, t0))
			a.Status = status

			require.NoError(t, Decline(a, v.ID, t0))

			assert.Equal(t, status, a.Status)
			assert.Equal(t, models.ResponseDeclined, a.Responses[0].Response)
		})
	}
}

func TestDeclineWithoutLedgerEntryIsNoop(t *testing.T) {
	a := newAlert()
	before := a.Clone()

	require.NoError(t, Decline(a, primitive.NewObjectID(), t0.Add(time.Hour)))

	assert.Equal(t, before, a)
}

func TestDeclineTerminalFails(t *testing.T) {
	a := newAlert()
	require.NoError(t, Cancel(a, a.UserID, t0))
	assert.ErrorIs(t, Decline(a, primitive.NewObjectID(), t0), apperrors.ErrInvalidTransition)
}

func TestResolve(t *testing.T) {
	t.Run("from accepted", func(t *testing.T) {
		a := newAlert()
		v := primitive.NewObjectID()
		require.NoError(t, Accept(a, v, time.Time{}, time.Minute, t0))
		require.NoError(t, Resolve(a, v, models.OutcomeSafe, "all good", t0))

		assert.Equal(t, models.AlertStatusResolved, a.Status)
		require.NotNil(t, a.Resolution)
		assert.Equal(t, v, a.Resolution.ResolvedBy)
		assert.Equal(t, models.TimelineResolved, a.Timeline[len(a.Timeline)-1].Event)
	})

	t.Run("from active", func(t *testing.T) {
		a := newAlert()
		require.NoError(t, Resolve(a, a.UserID, models.OutcomeFalseAlarm, "", t0))
		assert.Equal(t, models.AlertStatusResolved, a.Status)
	})

	t.Run("twice", func(t *testing.T) {
		a := newAlert()
		require.NoError(t, Resolve(a, a.UserID, models.OutcomeSafe, "", t0))
		assert.ErrorIs(t, Resolve(a, a.UserID, models.OutcomeSafe, "", t0), apperrors.ErrInvalidTransition)
	})

	t.Run("bad outcome", func(t *testing.T) {
		a := newAlert()
		assert.ErrorIs(t, Resolve(a, a.UserID, "unknown", "", t0), apperrors.ErrValidationFailed)
		assert.Equal(t, models.AlertStatusActive, a.Status)
	})
}

func TestCancel(t *testing.T) {
	a := newAlert()
	require.NoError(t, Cancel(a, a.UserID, t0))
	assert.Equal(t, models.AlertStatusCancelled, a.Status)

	accepted := newAlert()
	require.NoError(t, Accept(accepted, primitive.NewObjectID(), time.Time{}, time.Minute, t0))
	require.NoError(t, Cancel(accepted, accepted.UserID, t0))
	assert.Equal(t, models.AlertStatusCancelled, accepted.Status)
}

func TestCancelFromResolvedFails(t *testing.T) {
	a := newAlert()
	require.NoError(t, Resolve(a, a.UserID, models.OutcomeSafe, "", t0))

	err := Cancel(a, a.UserID, t0)

	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
	assert.Equal(t, models.AlertStatusResolved, a.Status)
}

func TestTimelineIsOrdered(t *testing.T) {
	a := newAlert()
	v := volunteer()
	require.NoError(t, NotifyVolunteers(a, []Candidate{{v, 1}}, t0.Add(time.Second)))
	require.NoError(t, Accept(a, v.ID, time.Time{}, time.Minute, t0.Add(2*time.Second)))
	require.NoError(t, HelpArrived(a, v.ID, t0.Add(3*time.Second)))
	require.NoError(t, Resolve(a, v.ID, models.OutcomeSafe, "", t0.Add(4*time.Second)))

	require.Len(t, a.Timeline, 5)
	assert.Equal(t, models.TimelineCreated, a.Timeline[0].Event)
	for i := 1; i < len(a.Timeline); i++ {
		assert.False(t, a.Timeline[i].Timestamp.Before(a.Timeline[i-1].Timestamp))
	}
}

func TestHelpArrivedOnlyByAccepter(t *testing.T) {
	a := newAlert()
	v := primitive.NewObjectID()
	assert.ErrorIs(t, HelpArrived(a, v, t0), apperrors.ErrInvalidTransition)

	require.NoError(t, Accept(a, v, time.Time{}, time.Minute, t0))
	assert.ErrorIs(t, HelpArrived(a, primitive.NewObjectID(), t0), apperrors.ErrForbidden)
}

func TestMarkSeen(t *testing.T) {
	a := newAlert()
	v := volunteer()
	require.NoError(t, NotifyVolunteers(a, []Candidate{{v, 1}}, t0))

	assert.True(t, MarkSeen(a, v.ID, t0))
	assert.Equal(t, models.ResponseSeen, a.Responses[0].Response)
	assert.False(t, MarkSeen(a, v.ID, t0))
	assert.False(t, MarkSeen(a, primitive.NewObjectID(), t0))
}

func TestSubmitFeedback(t *testing.T) {
	a := newAlert()
	assert.ErrorIs(t, SubmitFeedback(a, 5, "", t0), apperrors.ErrInvalidTransition)

	require.NoError(t, Resolve(a, a.UserID, models.OutcomeSafe, "", t0))
	require.NoError(t, SubmitFeedback(a, 5, "thank you", t0))
	assert.Equal(t, 5, a.Feedback.Rating)

	assert.ErrorIs(t, SubmitFeedback(a, 4, "", t0), apperrors.ErrInvalidTransition)
}

func TestAttachMedia(t *testing.T) {
	a := newAlert()
	AttachMedia(a, models.MediaFile{Type: models.MediaTypeVideo, Filename: "emergency-1-2.mp4"}, t0)
	require.Len(t, a.MediaFiles, 1)
	assert.Equal(t, "emergency-1-2.mp4", a.MediaFiles[0].Filename)
}
