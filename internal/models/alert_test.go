package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestEmergencyAlertCloneIsDeep(t *testing.T) {
	now := time.Now()
	actor := primitive.NewObjectID()
	a := &EmergencyAlert{
		ID:         primitive.NewObjectID(),
		Status:     AlertStatusAccepted,
		MediaFiles: []MediaFile{},
		AcceptedBy: &Acceptance{VolunteerID: actor, AcceptedAt: now},
		Responses:  []VolunteerResponse{{VolunteerID: actor, Response: ResponseAccepted, ResponseTime: &now}},
		Timeline:   []TimelineEntry{{Event: TimelineCreated, Timestamp: now, ActorID: &actor}},
	}

	c := a.Clone()
	assert.Equal(t, a, c)

	c.AcceptedBy.VolunteerID = primitive.NewObjectID()
	c.Responses[0].Response = ResponseDeclined
	*c.Responses[0].ResponseTime = now.Add(time.Hour)
	*c.Timeline[0].ActorID = primitive.NewObjectID()
	c.MediaFiles = append(c.MediaFiles, MediaFile{Filename: "x"})

	assert.Equal(t, actor, a.AcceptedBy.VolunteerID)
	assert.Equal(t, ResponseAccepted, a.Responses[0].Response)
	assert.Equal(t, now, *a.Responses[0].ResponseTime)
	assert.Equal(t, actor, *a.Timeline[0].ActorID)
	assert.Empty(t, a.MediaFiles)
}

func TestParseUserRole(t *testing.T) {
	role, ok := ParseUserRole("woman")
	assert.True(t, ok)
	assert.Equal(t, UserRoleVictim, role)

	role, ok = ParseUserRole("volunteer")
	assert.True(t, ok)
	assert.Equal(t, UserRoleVolunteer, role)

	_, ok = ParseUserRole("admin")
	assert.False(t, ok)
}
