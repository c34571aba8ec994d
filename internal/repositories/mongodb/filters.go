package mongodb

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"sosalert/internal/models"
	"sosalert/internal/utils"
)

func volunteersFilter(activeOnly bool) bson.M {
	filter := bson.M{"role": models.UserRoleVolunteer}
	if activeOnly {
		filter["is_active"] = true
	}
	return filter
}

func volunteersInBoxFilter(box utils.BoundingBox) bson.M {
	return bson.M{
		"role":      models.UserRoleVolunteer,
		"is_active": true,
		"location.latitude": bson.M{
			"$gte": box.MinLat,
			"$lte": box.MaxLat,
		},
		"location.longitude": bson.M{
			"$gte": box.MinLng,
			"$lte": box.MaxLng,
		},
	}
}

// versionFilter matches the alert only while it still carries version.
// Documents written before versioning have no field and count as version 0.
func versionFilter(id primitive.ObjectID, version int64) bson.M {
	if version == 0 {
		return bson.M{"_id": id, "version": bson.M{"$in": bson.A{0, nil}}}
	}
	return bson.M{"_id": id, "version": version}
}

// closedAlertsBeforeFilter matches terminal alerts created before cutoff.
func closedAlertsBeforeFilter(cutoff time.Time) bson.M {
	return bson.M{
		"status":     bson.M{"$in": bson.A{models.AlertStatusResolved, models.AlertStatusCancelled}},
		"created_at": bson.M{"$lt": cutoff},
	}
}

// userMutableFields lists what UpdateUser may write. Role, email and the
// stats counters are excluded; counters only move through $inc.
func userMutableFields(u *models.User) bson.M {
	return bson.M{
		"name":               u.Name,
		"phone":              u.Phone,
		"address":            u.Address,
		"password":           u.Password,
		"is_active":          u.IsActive,
		"location":           u.Location,
		"emergency_contacts": u.EmergencyContacts,
		"last_login_at":      u.LastLoginAt,
		"updated_at":         u.UpdatedAt,
	}
}

func statField(field models.UserStatField) (string, bool) {
	switch field {
	case models.StatEmergencyAlerts, models.StatHelpedCount:
		return "stats." + string(field), true
	}
	return "", false
}
