package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type UserRole string

const (
	UserRoleVictim    UserRole = "victim"
	UserRoleVolunteer UserRole = "volunteer"
)

// ParseUserRole accepts the canonical role names plus "woman", which older
// clients send for the victim role.
func ParseUserRole(s string) (UserRole, bool) {
	switch s {
	case string(UserRoleVictim), "woman":
		return UserRoleVictim, true
	case string(UserRoleVolunteer):
		return UserRoleVolunteer, true
	}
	return "", false
}

type User struct {
	ID                primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Name              string             `json:"name" bson:"name"`
	Email             string             `json:"email" bson:"email"`
	Password          string             `json:"-" bson:"password"`
	Phone             string             `json:"phone" bson:"phone"`
	Address           string             `json:"address" bson:"address"`
	Role              UserRole           `json:"role" bson:"role"`
	IsActive          bool               `json:"isActive" bson:"is_active"`
	Location          *Coordinates       `json:"location" bson:"location"`
	EmergencyContacts []EmergencyContact `json:"emergencyContacts" bson:"emergency_contacts"`
	Stats             UserStats          `json:"stats" bson:"stats"`
	LastLoginAt       *time.Time         `json:"lastLoginAt" bson:"last_login_at"`
	CreatedAt         time.Time          `json:"createdAt" bson:"created_at"`
	UpdatedAt         time.Time          `json:"updatedAt" bson:"updated_at"`
}

type EmergencyContact struct {
	Name         string `json:"name" bson:"name"`
	Phone        string `json:"phone" bson:"phone"`
	Relationship string `json:"relationship" bson:"relationship"`
}

type UserStats struct {
	EmergencyAlerts int64 `json:"emergencyAlerts" bson:"emergency_alerts"`
	HelpedCount     int64 `json:"helpedCount" bson:"helped_count"`
}

// UserStatField names a counter in UserStats for IncrementStat.
type UserStatField string

const (
	StatEmergencyAlerts UserStatField = "emergency_alerts"
	StatHelpedCount     UserStatField = "helped_count"
)

func (u *User) IsVolunteer() bool {
	return u.Role == UserRoleVolunteer
}

// Clone returns a deep copy so callers never share mutable state with a store.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.Location != nil {
		loc := *u.Location
		c.Location = &loc
	}
	if u.LastLoginAt != nil {
		t := *u.LastLoginAt
		c.LastLoginAt = &t
	}
	if u.EmergencyContacts != nil {
		c.EmergencyContacts = make([]EmergencyContact, len(u.EmergencyContacts))
		copy(c.EmergencyContacts, u.EmergencyContacts)
	}
	return &c
}
