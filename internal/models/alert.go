package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type AlertStatus string
type AlertPriority string
type ResponseState string
type TimelineEvent string
type ResolutionOutcome string
type MediaType string

const (
	AlertStatusActive    AlertStatus = "active"
	AlertStatusAccepted  AlertStatus = "accepted"
	AlertStatusResolved  AlertStatus = "resolved"
	AlertStatusCancelled AlertStatus = "cancelled"

	AlertPriorityLow      AlertPriority = "low"
	AlertPriorityMedium   AlertPriority = "medium"
	AlertPriorityHigh     AlertPriority = "high"
	AlertPriorityCritical AlertPriority = "critical"

	ResponseNotified ResponseState = "notified"
	ResponseSeen     ResponseState = "seen"
	ResponseAccepted ResponseState = "accepted"
	ResponseDeclined ResponseState = "declined"

	TimelineCreated            TimelineEvent = "created"
	TimelineNotifiedVolunteers TimelineEvent = "notified_volunteers"
	TimelineVolunteerAccepted  TimelineEvent = "volunteer_accepted"
	TimelineHelpArrived        TimelineEvent = "help_arrived"
	TimelineResolved           TimelineEvent = "resolved"
	TimelineCancelled          TimelineEvent = "cancelled"

	OutcomeSafe             ResolutionOutcome = "safe"
	OutcomePoliceInvolved   ResolutionOutcome = "police_involved"
	OutcomeMedicalAttention ResolutionOutcome = "medical_attention"
	OutcomeFalseAlarm       ResolutionOutcome = "false_alarm"
	OutcomeOther            ResolutionOutcome = "other"

	MediaTypeVideo MediaType = "video"
	MediaTypeAudio MediaType = "audio"
	MediaTypeImage MediaType = "image"
)

func (p AlertPriority) Valid() bool {
	switch p {
	case AlertPriorityLow, AlertPriorityMedium, AlertPriorityHigh, AlertPriorityCritical:
		return true
	}
	return false
}

func (o ResolutionOutcome) Valid() bool {
	switch o {
	case OutcomeSafe, OutcomePoliceInvolved, OutcomeMedicalAttention, OutcomeFalseAlarm, OutcomeOther:
		return true
	}
	return false
}

// ContactSnapshot is the raiser's contact data as it was when the alert was created.
type ContactSnapshot struct {
	Name    string `json:"name" bson:"name"`
	Phone   string `json:"phone" bson:"phone"`
	Address string `json:"address" bson:"address"`
}

type MediaFile struct {
	Type         MediaType `json:"type" bson:"type"`
	Filename     string    `json:"filename" bson:"filename"`
	OriginalName string    `json:"originalName" bson:"original_name"`
	Path         string    `json:"path" bson:"path"`
	Size         int64     `json:"size" bson:"size"`
	MimeType     string    `json:"mimeType" bson:"mime_type"`
	UploadedAt   time.Time `json:"uploadedAt" bson:"uploaded_at"`
	// URL is derived on read and never stored.
	URL string `json:"url,omitempty" bson:"-"`
}

type Acceptance struct {
	VolunteerID      primitive.ObjectID `json:"volunteerId" bson:"volunteer_id"`
	AcceptedAt       time.Time          `json:"acceptedAt" bson:"accepted_at"`
	EstimatedArrival time.Time          `json:"estimatedArrival" bson:"estimated_arrival"`
}

type VolunteerResponse struct {
	VolunteerID  primitive.ObjectID `json:"volunteerId" bson:"volunteer_id"`
	Response     ResponseState      `json:"response" bson:"response"`
	ResponseTime *time.Time         `json:"responseTime,omitempty" bson:"response_time,omitempty"`
	Distance     float64            `json:"distance" bson:"distance"`
}

type TimelineEntry struct {
	Event     TimelineEvent       `json:"event" bson:"event"`
	Timestamp time.Time           `json:"timestamp" bson:"timestamp"`
	ActorID   *primitive.ObjectID `json:"actorId,omitempty" bson:"actor_id,omitempty"`
	Details   string              `json:"details,omitempty" bson:"details,omitempty"`
}

type Resolution struct {
	ResolvedBy primitive.ObjectID `json:"resolvedBy" bson:"resolved_by"`
	Outcome    ResolutionOutcome  `json:"outcome" bson:"outcome"`
	Notes      string             `json:"notes,omitempty" bson:"notes,omitempty"`
	ResolvedAt time.Time          `json:"resolvedAt" bson:"resolved_at"`
}

type Feedback struct {
	Rating      int       `json:"rating" bson:"rating"`
	Comment     string    `json:"comment,omitempty" bson:"comment,omitempty"`
	SubmittedAt time.Time `json:"submittedAt" bson:"submitted_at"`
}

type EmergencyAlert struct {
	ID          primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	UserID      primitive.ObjectID  `json:"userId" bson:"user_id"`
	UserDetails ContactSnapshot     `json:"userDetails" bson:"user_details"`
	Location    Coordinates         `json:"location" bson:"location"`
	Status      AlertStatus         `json:"status" bson:"status"`
	Priority    AlertPriority       `json:"priority" bson:"priority"`
	Description string              `json:"description" bson:"description"`
	MediaFiles  []MediaFile         `json:"mediaFiles" bson:"media_files"`
	AcceptedBy  *Acceptance         `json:"acceptedBy" bson:"accepted_by"`
	Responses   []VolunteerResponse `json:"responses" bson:"responses"`
	Timeline    []TimelineEntry     `json:"timeline" bson:"timeline"`
	Resolution  *Resolution         `json:"resolution,omitempty" bson:"resolution,omitempty"`
	Feedback    *Feedback           `json:"feedback,omitempty" bson:"feedback,omitempty"`
	// Version is bumped on every persisted mutation and guards concurrent writers.
	Version   int64     `json:"-" bson:"version"`
	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updated_at"`
}

func (a *EmergencyAlert) IsTerminal() bool {
	return a.Status == AlertStatusResolved || a.Status == AlertStatusCancelled
}

// ResponseFor returns the ledger entry of volunteerID, or nil.
func (a *EmergencyAlert) ResponseFor(volunteerID primitive.ObjectID) *VolunteerResponse {
	for i := range a.Responses {
		if a.Responses[i].VolunteerID == volunteerID {
			return &a.Responses[i]
		}
	}
	return nil
}

func (a *EmergencyAlert) AppendTimeline(event TimelineEvent, at time.Time, actor *primitive.ObjectID, details string) {
	entry := TimelineEntry{Event: event, Timestamp: at, Details: details}
	if actor != nil {
		id := *actor
		entry.ActorID = &id
	}
	a.Timeline = append(a.Timeline, entry)
}

// Clone returns a deep copy of the alert.
func (a *EmergencyAlert) Clone() *EmergencyAlert {
	if a == nil {
		return nil
	}
	c := *a
	if a.MediaFiles != nil {
		c.MediaFiles = make([]MediaFile, len(a.MediaFiles))
		copy(c.MediaFiles, a.MediaFiles)
	}
	if a.AcceptedBy != nil {
		acc := *a.AcceptedBy
		c.AcceptedBy = &acc
	}
	if a.Responses != nil {
		c.Responses = make([]VolunteerResponse, len(a.Responses))
		for i, r := range a.Responses {
			if r.ResponseTime != nil {
				t := *r.ResponseTime
				r.ResponseTime = &t
			}
			c.Responses[i] = r
		}
	}
	if a.Timeline != nil {
		c.Timeline = make([]TimelineEntry, len(a.Timeline))
		for i, e := range a.Timeline {
			if e.ActorID != nil {
				id := *e.ActorID
				e.ActorID = &id
			}
			c.Timeline[i] = e
		}
	}
	if a.Resolution != nil {
		r := *a.Resolution
		c.Resolution = &r
	}
	if a.Feedback != nil {
		f := *a.Feedback
		c.Feedback = &f
	}
	return &c
}
