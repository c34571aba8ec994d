package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"sosalert/internal/config"
	"sosalert/internal/models"
	"sosalert/internal/repositories/memory"
	"sosalert/internal/validators"
	"sosalert/pkg/apperrors"
	"sosalert/pkg/cache"
	"sosalert/pkg/logger"
)

func newAuthFixture(t *testing.T) (AuthService, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	log := logger.NewNop()
	security := &config.SecurityConfig{
		JWTSecret:         "test-secret",
		JWTAccessTokenTTL: time.Hour,
		BcryptCost:        bcrypt.MinCost,
	}
	principals := NewCacheService(cache.NewLocalCache(time.Minute, time.Minute), nil, time.Minute, nil, log)
	return NewAuthService(store, principals, security, log), store
}

func registration(email, role string) *validators.UserRegistrationRequest {
	lat, lng := 12.99, 77.60
	return &validators.UserRegistrationRequest{
		Name:     "Ravi",
		Email:    email,
		Password: "secret123",
		Phone:    "+919845000001",
		Address:  "Indiranagar, Bengaluru",
		Role:     role,
		Location: &validators.LocationRequest{Latitude: &lat, Longitude: &lng},
	}
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	auth, _ := newAuthFixture(t)

	registered, err := auth.Register(ctx, registration("ravi@example.com", "volunteer"))
	require.NoError(t, err)
	assert.NotEmpty(t, registered.Token)
	assert.Equal(t, models.UserRoleVolunteer, registered.User.Role)
	require.NotNil(t, registered.User.Location)
	assert.NotEqual(t, "secret123", registered.User.Password)

	_, err = auth.Register(ctx, registration("ravi@example.com", "volunteer"))
	assert.ErrorIs(t, err, apperrors.ErrDuplicateEmail)

	loggedIn, err := auth.Login(ctx, &validators.UserLoginRequest{Email: "ravi@example.com", Password: "secret123", Role: "volunteer"})
	require.NoError(t, err)
	assert.NotNil(t, loggedIn.User.LastLoginAt)

	user, err := auth.Authenticate(ctx, loggedIn.Token)
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, user.ID)
}

func TestRegisterVictimIgnoresLocation(t *testing.T) {
	auth, _ := newAuthFixture(t)

	resp, err := auth.Register(context.Background(), registration("asha@example.com", "woman"))
	require.NoError(t, err)
	assert.Equal(t, models.UserRoleVictim, resp.User.Role)
	assert.Nil(t, resp.User.Location)
}

func TestLoginFailures(t *testing.T) {
	ctx := context.Background()
	auth, _ := newAuthFixture(t)
	_, err := auth.Register(ctx, registration("asha@example.com", "victim"))
	require.NoError(t, err)

	tests := []struct {
		name string
		req  validators.UserLoginRequest
	}{
		{"unknown email", validators.UserLoginRequest{Email: "nobody@example.com", Password: "secret123", Role: "victim"}},
		{"wrong password", validators.UserLoginRequest{Email: "asha@example.com", Password: "nope", Role: "victim"}},
		{"wrong role", validators.UserLoginRequest{Email: "asha@example.com", Password: "secret123", Role: "volunteer"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.Login(ctx, &tt.req)
			assert.ErrorIs(t, err, apperrors.ErrUnauthenticated)
		})
	}

	t.Run("legacy role name", func(t *testing.T) {
		_, err := auth.Login(ctx, &validators.UserLoginRequest{Email: "asha@example.com", Password: "secret123", Role: "woman"})
		assert.NoError(t, err)
	})
}

func TestAuthenticateRejectsBadTokens(t *testing.T) {
	ctx := context.Background()
	auth, _ := newAuthFixture(t)

	_, err := auth.Authenticate(ctx, "not-a-token")
	assert.ErrorIs(t, err, apperrors.ErrUnauthenticated)

	resp, err := auth.Register(ctx, registration("ravi@example.com", "volunteer"))
	require.NoError(t, err)

	require.NoError(t, auth.Logout(ctx, resp.Token))
	_, err = auth.Authenticate(ctx, resp.Token)
	assert.ErrorIs(t, err, apperrors.ErrUnauthenticated)
}

func TestDeactivateAccount(t *testing.T) {
	ctx := context.Background()
	auth, store := newAuthFixture(t)

	resp, err := auth.Register(ctx, registration("ravi@example.com", "volunteer"))
	require.NoError(t, err)

	// Prime the principal cache so deactivation has to invalidate it.
	_, err = auth.Authenticate(ctx, resp.Token)
	require.NoError(t, err)

	require.NoError(t, auth.DeactivateAccount(ctx, resp.User.ID))

	_, err = auth.Authenticate(ctx, resp.Token)
	assert.ErrorIs(t, err, apperrors.ErrUnauthenticated)

	stored, err := store.FindUserByID(ctx, resp.User.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)

	volunteers, err := store.FindVolunteers(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, volunteers)
}

func TestUpdateProfileAndLocation(t *testing.T) {
	ctx := context.Background()
	auth, _ := newAuthFixture(t)

	victim, err := auth.Register(ctx, registration("asha@example.com", "victim"))
	require.NoError(t, err)

	name := "Asha R"
	lat, lng := 1.0, 2.0
	updated, err := auth.UpdateProfile(ctx, victim.User, &validators.ProfileUpdateRequest{
		Name:              &name,
		Location:          &validators.LocationRequest{Latitude: &lat, Longitude: &lng},
		EmergencyContacts: []validators.EmergencyContactRequest{{Name: "Mother", Phone: "+919845011111"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Asha R", updated.Name)
	assert.Nil(t, updated.Location)
	require.Len(t, updated.EmergencyContacts, 1)
	assert.Equal(t, models.UserRoleVictim, updated.Role)

	volunteer, err := auth.Register(ctx, registration("ravi@example.com", "volunteer"))
	require.NoError(t, err)
	moved, err := auth.UpdateLocation(ctx, volunteer.User.ID, &validators.LocationRequest{Latitude: &lat, Longitude: &lng})
	require.NoError(t, err)
	assert.Equal(t, 1.0, moved.Location.Latitude)
	assert.Equal(t, 2.0, moved.Location.Longitude)
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	auth, _ := newAuthFixture(t)
	resp, err := auth.Register(ctx, registration("asha@example.com", "victim"))
	require.NoError(t, err)

	err = auth.ChangePassword(ctx, resp.User.ID, &validators.ChangePasswordRequest{CurrentPassword: "wrong", NewPassword: "another123"})
	assert.ErrorIs(t, err, apperrors.ErrUnauthenticated)

	require.NoError(t, auth.ChangePassword(ctx, resp.User.ID, &validators.ChangePasswordRequest{CurrentPassword: "secret123", NewPassword: "another123"}))

	_, err = auth.Login(ctx, &validators.UserLoginRequest{Email: "asha@example.com", Password: "another123", Role: "victim"})
	assert.NoError(t, err)
}

func TestSeedDemoUsersIsIdempotent(t *testing.T) {
	ctx := context.Background()
	auth, store := newAuthFixture(t)

	require.NoError(t, auth.SeedDemoUsers(ctx))
	require.NoError(t, auth.SeedDemoUsers(ctx))

	volunteers, err := store.FindVolunteers(ctx, true)
	require.NoError(t, err)
	require.Len(t, volunteers, 1)
	assert.Equal(t, 40.7128, volunteers[0].Location.Latitude)

	_, err = auth.Login(ctx, &validators.UserLoginRequest{Email: "woman@demo.com", Password: "password123", Role: "woman"})
	assert.NoError(t, err)
}
