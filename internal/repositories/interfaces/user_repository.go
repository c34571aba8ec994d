package interfaces

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"sosalert/internal/models"
	"sosalert/internal/utils"
)

// UserRepository persists victims and volunteers.
//
// Lookups return apperrors.ErrNotFound for unknown ids. CreateUser returns
// apperrors.ErrDuplicateEmail when the email is taken.
type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) (*models.User, error)
	FindUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)

	// UpdateUser applies mutate to the current record and persists the result.
	// Role and email changes made by mutate are ignored.
	UpdateUser(ctx context.Context, id primitive.ObjectID, mutate func(*models.User) error) (*models.User, error)
	UpdateUserLocation(ctx context.Context, id primitive.ObjectID, lat, lng float64) (*models.User, error)
	IncrementStat(ctx context.Context, id primitive.ObjectID, field models.UserStatField) error

	// Volunteer queries
	FindVolunteers(ctx context.Context, activeOnly bool) ([]*models.User, error)
	// FindVolunteersInBox returns active volunteers whose last known location
	// lies inside box, in store iteration order, at most limit of them.
	FindVolunteersInBox(ctx context.Context, box utils.BoundingBox, limit int) ([]*models.User, error)
}
