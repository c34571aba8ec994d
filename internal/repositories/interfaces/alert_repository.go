package interfaces

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"sosalert/internal/models"
	"sosalert/internal/utils"
)

// AlertMutator changes an alert in place. Returning an error aborts the update
// and leaves the stored alert untouched.
type AlertMutator func(alert *models.EmergencyAlert) error

type AlertRepository interface {
	// CreateAlert assigns an id and initializes the lifecycle fields.
	CreateAlert(ctx context.Context, alert *models.EmergencyAlert) (*models.EmergencyAlert, error)
	FindAlertByID(ctx context.Context, id primitive.ObjectID) (*models.EmergencyAlert, error)
	// FindActiveAlerts returns active alerts, newest first.
	FindActiveAlerts(ctx context.Context, limit int) ([]*models.EmergencyAlert, error)
	FindAlertsByUser(ctx context.Context, userID primitive.ObjectID, params utils.PaginationParams) ([]*models.EmergencyAlert, int64, error)

	// UpdateAlert runs mutate against the latest stored state and persists the
	// result. Concurrent calls for the same id are serialized so that each
	// mutator observes every previously committed change.
	UpdateAlert(ctx context.Context, id primitive.ObjectID, mutate AlertMutator) (*models.EmergencyAlert, error)

	// DeleteClosedAlertsBefore removes resolved and cancelled alerts created
	// before cutoff and reports how many were removed.
	DeleteClosedAlertsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
