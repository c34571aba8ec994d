package services

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"sosalert/internal/config"
	"sosalert/internal/models"
	"sosalert/internal/repositories/interfaces"
	"sosalert/internal/utils"
	"sosalert/internal/validators"
	"sosalert/pkg/apperrors"
	"sosalert/pkg/logger"
)

type AuthService interface {
	// Authentication
	Register(ctx context.Context, req *validators.UserRegistrationRequest) (*AuthResponse, error)
	Login(ctx context.Context, req *validators.UserLoginRequest) (*AuthResponse, error)
	Logout(ctx context.Context, token string) error
	// Authenticate resolves a bearer token to an active user.
	Authenticate(ctx context.Context, token string) (*models.User, error)

	// Profile
	GetProfile(ctx context.Context, userID primitive.ObjectID) (*models.User, error)
	UpdateProfile(ctx context.Context, user *models.User, req *validators.ProfileUpdateRequest) (*models.User, error)
	UpdateLocation(ctx context.Context, userID primitive.ObjectID, req *validators.LocationRequest) (*models.User, error)
	ChangePassword(ctx context.Context, userID primitive.ObjectID, req *validators.ChangePasswordRequest) error
	DeactivateAccount(ctx context.Context, userID primitive.ObjectID) error

	SeedDemoUsers(ctx context.Context) error
}

type AuthResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

type authService struct {
	users    interfaces.UserRepository
	cache    CacheService
	security *config.SecurityConfig
	logger   *logger.Logger
	now      func() time.Time
}

var errInvalidCredentials = apperrors.New(apperrors.KindUnauthenticated, "Invalid email or password")

func NewAuthService(users interfaces.UserRepository, cache CacheService, security *config.SecurityConfig, log *logger.Logger) AuthService {
	return &authService{
		users:    users,
		cache:    cache,
		security: security,
		logger:   log,
		now:      time.Now,
	}
}

func (s *authService) Register(ctx context.Context, req *validators.UserRegistrationRequest) (*AuthResponse, error) {
	role, ok := models.ParseUserRole(req.Role)
	if !ok {
		return nil, apperrors.Validation(`Role must be either "victim" or "volunteer"`)
	}

	hash, err := s.hashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Name:              req.Name,
		Email:             req.Email,
		Password:          hash,
		Phone:             req.Phone,
		Address:           req.Address,
		Role:              role,
		IsActive:          true,
		EmergencyContacts: toEmergencyContacts(req.EmergencyContacts),
	}
	if req.Location != nil && role == models.UserRoleVolunteer {
		user.Location = toCoordinates(req.Location)
	}

	created, err := s.users.CreateUser(ctx, user)
	if err != nil {
		return nil, err
	}

	token, err := s.issueToken(created)
	if err != nil {
		return nil, err
	}

	s.logger.LogUserAction(created.ID, "register", map[string]interface{}{"role": created.Role})
	return &AuthResponse{Token: token, User: created}, nil
}

func (s *authService) Login(ctx context.Context, req *validators.UserLoginRequest) (*AuthResponse, error) {
	user, err := s.users.FindUserByEmail(ctx, req.Email)
	if errors.Is(err, apperrors.ErrNotFound) {
		s.logger.LogSecurityEvent("login_failed", "low", map[string]interface{}{"reason": "unknown_email"})
		return nil, errInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if !user.IsActive {
		return nil, apperrors.New(apperrors.KindUnauthenticated, "Account is deactivated. Please contact support.")
	}
	role, _ := models.ParseUserRole(req.Role)
	if user.Role != role {
		return nil, apperrors.Newf(apperrors.KindUnauthenticated, "Invalid credentials for %s account", req.Role)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		s.logger.LogSecurityEvent("login_failed", "medium", map[string]interface{}{"user_id": user.ID.Hex()})
		return nil, errInvalidCredentials
	}

	now := s.now()
	updated, err := s.users.UpdateUser(ctx, user.ID, func(u *models.User) error {
		u.LastLoginAt = &now
		return nil
	})
	if err != nil {
		s.logger.WithError(err).WithUserID(user.ID).Warn("Failed to record last login")
		updated = user
	}

	token, err := s.issueToken(updated)
	if err != nil {
		return nil, err
	}

	s.logger.LogUserAction(updated.ID, "login", nil)
	return &AuthResponse{Token: token, User: updated}, nil
}

func (s *authService) Logout(ctx context.Context, token string) error {
	claims, err := utils.ValidateToken(token, s.security.JWTSecret)
	if err != nil {
		return apperrors.Wrap(err, apperrors.KindUnauthenticated, "Invalid or expired token")
	}
	if claims.ExpiresAt != nil {
		s.cache.RevokeToken(ctx, token, claims.ExpiresAt.Time)
	}
	s.logger.LogUserAction(claims.UserID, "logout", nil)
	return nil
}

func (s *authService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	claims, err := utils.ValidateToken(token, s.security.JWTSecret)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindUnauthenticated, "Invalid or expired token")
	}
	if s.cache.IsTokenRevoked(ctx, token) {
		return nil, apperrors.New(apperrors.KindUnauthenticated, "Token has been revoked")
	}

	user, ok := s.cache.GetUser(ctx, claims.UserID)
	if !ok {
		user, err = s.users.FindUserByID(ctx, claims.UserID)
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.New(apperrors.KindUnauthenticated, "User not found")
		}
		if err != nil {
			return nil, err
		}
		s.cache.SetUser(ctx, user)
	}

	if !user.IsActive {
		return nil, apperrors.New(apperrors.KindUnauthenticated, "Account is deactivated")
	}
	return user, nil
}

func (s *authService) GetProfile(ctx context.Context, userID primitive.ObjectID) (*models.User, error) {
	return s.users.FindUserByID(ctx, userID)
}

// UpdateProfile ignores a location sent by a victim.
func (s *authService) UpdateProfile(ctx context.Context, user *models.User, req *validators.ProfileUpdateRequest) (*models.User, error) {
	updated, err := s.users.UpdateUser(ctx, user.ID, func(u *models.User) error {
		if req.Name != nil {
			u.Name = *req.Name
		}
		if req.Phone != nil {
			u.Phone = *req.Phone
		}
		if req.Address != nil {
			u.Address = *req.Address
		}
		if req.EmergencyContacts != nil {
			u.EmergencyContacts = toEmergencyContacts(req.EmergencyContacts)
		}
		if req.Location != nil && u.IsVolunteer() {
			u.Location = toCoordinates(req.Location)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.InvalidateUser(ctx, user.ID)
	return updated, nil
}

func (s *authService) UpdateLocation(ctx context.Context, userID primitive.ObjectID, req *validators.LocationRequest) (*models.User, error) {
	updated, err := s.users.UpdateUserLocation(ctx, userID, *req.Latitude, *req.Longitude)
	if err != nil {
		return nil, err
	}
	s.cache.InvalidateUser(ctx, userID)
	return updated, nil
}

func (s *authService) ChangePassword(ctx context.Context, userID primitive.ObjectID, req *validators.ChangePasswordRequest) error {
	user, err := s.users.FindUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.CurrentPassword)) != nil {
		return apperrors.New(apperrors.KindUnauthenticated, "Current password is incorrect")
	}

	hash, err := s.hashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	if _, err := s.users.UpdateUser(ctx, userID, func(u *models.User) error {
		u.Password = hash
		return nil
	}); err != nil {
		return err
	}

	s.logger.LogUserAction(userID, "change_password", nil)
	return nil
}

// DeactivateAccount soft-deletes the user. The record is kept so that alert
// references stay resolvable.
func (s *authService) DeactivateAccount(ctx context.Context, userID primitive.ObjectID) error {
	if _, err := s.users.UpdateUser(ctx, userID, func(u *models.User) error {
		u.IsActive = false
		return nil
	}); err != nil {
		return err
	}

	s.cache.InvalidateUser(ctx, userID)
	s.logger.LogUserAction(userID, "deactivate_account", nil)
	return nil
}

// Demo accounts share one password.
const demoPassword = "password123"

func (s *authService) SeedDemoUsers(ctx context.Context) error {
	hash, err := s.hashPassword(demoPassword)
	if err != nil {
		return err
	}

	demo := []*models.User{
		{
			Name:     "Demo Victim",
			Email:    "woman@demo.com",
			Password: hash,
			Phone:    "+1234567890",
			Address:  "123 Demo Street, Demo City",
			Role:     models.UserRoleVictim,
			IsActive: true,
		},
		{
			Name:     "Demo Volunteer",
			Email:    "volunteer@demo.com",
			Password: hash,
			Phone:    "+1234567891",
			Address:  "456 Helper Avenue, Demo City",
			Role:     models.UserRoleVolunteer,
			IsActive: true,
			Location: &models.Coordinates{Latitude: 40.7128, Longitude: -74.0060},
		},
	}

	for _, u := range demo {
		if _, err := s.users.CreateUser(ctx, u); err != nil && !errors.Is(err, apperrors.ErrDuplicateEmail) {
			return err
		}
		s.logger.WithField("email", u.Email).WithField("role", u.Role).Info("Demo account ready")
	}
	return nil
}

func (s *authService) hashPassword(password string) (string, error) {
	cost := s.security.BcryptCost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.KindInternal, "failed to hash password")
	}
	return string(hash), nil
}

func (s *authService) issueToken(user *models.User) (string, error) {
	token, err := utils.GenerateToken(user.ID, string(user.Role), s.security.JWTSecret, s.security.JWTAccessTokenTTL)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.KindInternal, "failed to generate token")
	}
	return token, nil
}

func toEmergencyContacts(in []validators.EmergencyContactRequest) []models.EmergencyContact {
	contacts := make([]models.EmergencyContact, 0, len(in))
	for _, c := range in {
		contacts = append(contacts, models.EmergencyContact{
			Name:         c.Name,
			Phone:        c.Phone,
			Relationship: c.Relationship,
		})
	}
	return contacts
}

func toCoordinates(req *validators.LocationRequest) *models.Coordinates {
	return &models.Coordinates{
		Latitude:  *req.Latitude,
		Longitude: *req.Longitude,
		Address:   req.Address,
	}
}
