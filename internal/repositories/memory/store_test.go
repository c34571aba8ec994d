package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"sosalert/internal/lifecycle"
	"sosalert/internal/models"
	"sosalert/internal/utils"
	"sosalert/pkg/apperrors"
)

func newVolunteer(name string, lat, lng float64, active bool) *models.User {
	return &models.User{
		Name:     name,
		Email:    name + "@example.com",
		Role:     models.UserRoleVolunteer,
		IsActive: active,
		Location: &models.Coordinates{Latitude: lat, Longitude: lng},
	}
}

func newAlertInput(userID primitive.ObjectID) *models.EmergencyAlert {
	return &models.EmergencyAlert{
		UserID:      userID,
		UserDetails: models.ContactSnapshot{Name: "Asha", Phone: "+919845000000", Address: "MG Road"},
		Location:    models.Coordinates{Latitude: 12.97, Longitude: 77.59},
		Description: "help",
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	_, err := s.CreateUser(ctx, &models.User{Email: "asha@example.com", Role: models.UserRoleVictim})
	require.NoError(t, err)

	_, err = s.CreateUser(ctx, &models.User{Email: " ASHA@example.com", Role: models.UserRoleVictim})
	assert.ErrorIs(t, err, apperrors.ErrDuplicateEmail)
}

func TestFindUser(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	created, err := s.CreateUser(ctx, &models.User{Name: "Asha", Email: "Asha@Example.com", Role: models.UserRoleVictim})
	require.NoError(t, err)
	assert.False(t, created.ID.IsZero())
	assert.Nil(t, created.Location)

	byEmail, err := s.FindUserByEmail(ctx, "asha@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)

	byID, err := s.FindUserByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Asha", byID.Name)

	_, err = s.FindUserByID(ctx, primitive.NewObjectID())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = s.FindUserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestUpdateUserLocation(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	u, err := s.CreateUser(ctx, &models.User{Email: "ravi@example.com", Role: models.UserRoleVolunteer})
	require.NoError(t, err)

	updated, err := s.UpdateUserLocation(ctx, u.ID, 12.99, 77.60)
	require.NoError(t, err)
	require.NotNil(t, updated.Location)
	assert.Equal(t, 12.99, updated.Location.Latitude)

	_, err = s.UpdateUserLocation(ctx, primitive.NewObjectID(), 1, 1)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestUpdateUserKeepsRole(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	u, err := s.CreateUser(ctx, &models.User{Email: "ravi@example.com", Role: models.UserRoleVolunteer})
	require.NoError(t, err)

	updated, err := s.UpdateUser(ctx, u.ID, func(u *models.User) error {
		u.Role = models.UserRoleVictim
		u.Name = "Ravi K"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, models.UserRoleVolunteer, updated.Role)
	assert.Equal(t, "Ravi K", updated.Name)
}

func TestReturnedUsersAreCopies(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	u, err := s.CreateUser(ctx, newVolunteer("ravi", 1, 1, true))
	require.NoError(t, err)
	u.Location.Latitude = 50
	u.IsActive = false

	stored, err := s.FindUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 1.0, stored.Location.Latitude)
	assert.True(t, stored.IsActive)
}

func TestIncrementStat(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	u, err := s.CreateUser(ctx, &models.User{Email: "ravi@example.com", Role: models.UserRoleVolunteer})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.IncrementStat(ctx, u.ID, models.StatHelpedCount))
		}()
	}
	wg.Wait()

	stored, err := s.FindUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(25), stored.Stats.HelpedCount)
	assert.Equal(t, int64(0), stored.Stats.EmergencyAlerts)
}

func TestFindVolunteers(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	_, _ = s.CreateUser(ctx, newVolunteer("a", 1, 1, true))
	_, _ = s.CreateUser(ctx, newVolunteer("b", 1, 1, false))
	_, _ = s.CreateUser(ctx, &models.User{Email: "victim@example.com", Role: models.UserRoleVictim, IsActive: true})

	all, err := s.FindVolunteers(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	active, err := s.FindVolunteers(ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "a", active[0].Name)
}

func TestFindVolunteersInBox(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	_, _ = s.CreateUser(ctx, newVolunteer("near", 12.99, 77.60, true))
	_, _ = s.CreateUser(ctx, newVolunteer("inactive", 12.99, 77.60, false))
	_, _ = s.CreateUser(ctx, newVolunteer("far", 28.61, 77.20, true))
	_, _ = s.CreateUser(ctx, &models.User{Email: "nolocation@example.com", Role: models.UserRoleVolunteer, IsActive: true})

	box := utils.BoxAround(12.97, 77.59, 0.45)
	found, err := s.FindVolunteersInBox(ctx, box, 20)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "near", found[0].Name)
}

func TestFindVolunteersInBoxHonoursLimit(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	for i := 0; i < 30; i++ {
		_, err := s.CreateUser(ctx, newVolunteer(primitive.NewObjectID().Hex(), 12.97, 77.59, true))
		require.NoError(t, err)
	}

	found, err := s.FindVolunteersInBox(ctx, utils.BoxAround(12.97, 77.59, 0.45), 20)
	require.NoError(t, err)
	assert.Len(t, found, 20)
}

func TestCreateAlertInitializesLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	input := newAlertInput(primitive.NewObjectID())
	input.Status = models.AlertStatusResolved
	input.Timeline = []models.TimelineEntry{{Event: models.TimelineResolved}}

	alert, err := s.CreateAlert(ctx, input)
	require.NoError(t, err)

	assert.False(t, alert.ID.IsZero())
	assert.Equal(t, models.AlertStatusActive, alert.Status)
	require.NotEmpty(t, alert.Timeline)
	assert.Equal(t, models.TimelineCreated, alert.Timeline[0].Event)
	assert.Empty(t, alert.Responses)
	assert.Empty(t, alert.MediaFiles)
	assert.Nil(t, alert.AcceptedBy)
}

func TestAlertRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	input := newAlertInput(primitive.NewObjectID())
	created, err := s.CreateAlert(ctx, input)
	require.NoError(t, err)

	fetched, err := s.FindAlertByID(ctx, created.ID)
	require.NoError(t, err)

	assert.Equal(t, input.UserDetails, fetched.UserDetails)
	assert.Equal(t, input.Location, fetched.Location)
	assert.Equal(t, models.AlertStatusActive, fetched.Status)
	assert.Equal(t, created, fetched)

	_, err = s.FindAlertByID(ctx, primitive.NewObjectID())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestFindActiveAlertsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	userID := primitive.NewObjectID()
	first, _ := s.CreateAlert(ctx, newAlertInput(userID))
	second, _ := s.CreateAlert(ctx, newAlertInput(userID))
	third, _ := s.CreateAlert(ctx, newAlertInput(userID))

	_, err := s.UpdateAlert(ctx, second.ID, func(a *models.EmergencyAlert) error {
		return lifecycle.Cancel(a, userID, base)
	})
	require.NoError(t, err)

	active, err := s.FindActiveAlerts(ctx, 50)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, third.ID, active[0].ID)
	assert.Equal(t, first.ID, active[1].ID)

	limited, err := s.FindActiveAlerts(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestFindAlertsByUserPaginates(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	userID := primitive.NewObjectID()
	for i := 0; i < 5; i++ {
		_, err := s.CreateAlert(ctx, newAlertInput(userID))
		require.NoError(t, err)
	}
	_, _ = s.CreateAlert(ctx, newAlertInput(primitive.NewObjectID()))

	page, total, err := s.FindAlertsByUser(ctx, userID, utils.PaginationParams{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Len(t, page, 2)

	last, _, err := s.FindAlertsByUser(ctx, userID, utils.PaginationParams{Page: 3, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, last, 1)

	beyond, _, err := s.FindAlertsByUser(ctx, userID, utils.PaginationParams{Page: 9, Limit: 2})
	require.NoError(t, err)
	assert.Empty(t, beyond)
}

func TestFindAlertsByUserNegativeOffset(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	userID := primitive.NewObjectID()
	_, err := s.CreateAlert(ctx, newAlertInput(userID))
	require.NoError(t, err)

	page, total, err := s.FindAlertsByUser(ctx, userID, utils.PaginationParams{Page: -4, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Empty(t, page)
}

func TestUpdateAlertMutatorErrorLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	alert, err := s.CreateAlert(ctx, newAlertInput(primitive.NewObjectID()))
	require.NoError(t, err)

	_, err = s.UpdateAlert(ctx, alert.ID, func(a *models.EmergencyAlert) error {
		a.Status = models.AlertStatusCancelled
		return apperrors.InvalidTransition("nope")
	})
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)

	stored, err := s.FindAlertByID(ctx, alert.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AlertStatusActive, stored.Status)
}

func TestUpdateAlertUnknownID(t *testing.T) {
	_, err := NewStore().UpdateAlert(context.Background(), primitive.NewObjectID(), func(*models.EmergencyAlert) error {
		return nil
	})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestUpdateAlertHonoursCancelledContext(t *testing.T) {
	s := NewStore()
	alert, err := s.CreateAlert(context.Background(), newAlertInput(primitive.NewObjectID()))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	_, err = s.UpdateAlert(ctx, alert.ID, func(*models.EmergencyAlert) error { return nil })
	assert.ErrorIs(t, err, apperrors.ErrTimeout)
}

func TestConcurrentAcceptHasExactlyOneWinner(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	alert, err := s.CreateAlert(ctx, newAlertInput(primitive.NewObjectID()))
	require.NoError(t, err)

	const volunteers = 50
	var (
		wg        sync.WaitGroup
		start     = make(chan struct{})
		successes int32
		conflicts int32
		winner    atomic.Value
	)
	for i := 0; i < volunteers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := primitive.NewObjectID()
			<-start
			_, err := s.UpdateAlert(ctx, alert.ID, func(a *models.EmergencyAlert) error {
				// Widen the window between the guard check and the write.
				time.Sleep(time.Millisecond)
				return lifecycle.Accept(a, id, time.Time{}, 15*time.Minute, time.Now())
			})
			switch {
			case err == nil:
				atomic.AddInt32(&successes, 1)
				winner.Store(id)
			case errors.Is(err, apperrors.ErrInvalidTransition):
				atomic.AddInt32(&conflicts, 1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), successes)
	assert.Equal(t, int32(volunteers-1), conflicts)

	stored, err := s.FindAlertByID(ctx, alert.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AlertStatusAccepted, stored.Status)
	require.NotNil(t, stored.AcceptedBy)
	assert.Equal(t, winner.Load().(primitive.ObjectID), stored.AcceptedBy.VolunteerID)
	assert.Len(t, stored.Timeline, 2)
}

func TestDeleteClosedAlertsBefore(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	userID := primitive.NewObjectID()

	closeAs := func(id primitive.ObjectID, status models.AlertStatus) {
		_, err := s.UpdateAlert(ctx, id, func(a *models.EmergencyAlert) error {
			a.Status = status
			return nil
		})
		require.NoError(t, err)
	}

	s.now = func() time.Time { return time.Now().Add(-100 * 24 * time.Hour) }
	oldResolved, err := s.CreateAlert(ctx, newAlertInput(userID))
	require.NoError(t, err)
	closeAs(oldResolved.ID, models.AlertStatusResolved)
	oldCancelled, err := s.CreateAlert(ctx, newAlertInput(userID))
	require.NoError(t, err)
	closeAs(oldCancelled.ID, models.AlertStatusCancelled)
	oldActive, err := s.CreateAlert(ctx, newAlertInput(userID))
	require.NoError(t, err)

	s.now = time.Now
	recentResolved, err := s.CreateAlert(ctx, newAlertInput(userID))
	require.NoError(t, err)
	closeAs(recentResolved.ID, models.AlertStatusResolved)

	removed, err := s.DeleteClosedAlertsBefore(ctx, time.Now().Add(-90*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	for _, id := range []primitive.ObjectID{oldResolved.ID, oldCancelled.ID} {
		_, err := s.FindAlertByID(ctx, id)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	}
	_, total, err := s.FindAlertsByUser(ctx, userID, utils.PaginationParams{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	active, err := s.FindActiveAlerts(ctx, 10)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, oldActive.ID, active[0].ID)
}
