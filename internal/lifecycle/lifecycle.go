// Package lifecycle holds the state transitions of an emergency alert.
//
// Every transition is a pure function over *models.EmergencyAlert. The store
// runs them inside UpdateAlert, which guarantees the alert passed in is the
// latest persisted state and that no other writer interleaves.
package lifecycle

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"sosalert/internal/models"
	"sosalert/pkg/apperrors"
)

// Candidate is a matched volunteer and their distance to the alert.
type Candidate struct {
	Volunteer  *models.User
	DistanceKm float64
}

// Initialize prepares a new alert for insertion. Any caller-supplied timeline,
// ledger, acceptance or resolution is discarded.
func Initialize(alert *models.EmergencyAlert, now time.Time) {
	alert.Status = models.AlertStatusActive
	if !alert.Priority.Valid() {
		alert.Priority = models.AlertPriorityHigh
	}
	alert.AcceptedBy = nil
	alert.Resolution = nil
	alert.Feedback = nil
	alert.Responses = []models.VolunteerResponse{}
	alert.MediaFiles = []models.MediaFile{}
	alert.Timeline = nil
	raiser := alert.UserID
	alert.AppendTimeline(models.TimelineCreated, now, &raiser, "Emergency alert created")
	alert.Version = 1
	alert.CreatedAt = now
	alert.UpdatedAt = now
}

// NotifyVolunteers records one notified ledger entry per candidate. Calling it
// twice with the same candidates appends duplicate entries.
func NotifyVolunteers(alert *models.EmergencyAlert, candidates []Candidate, now time.Time) error {
	if alert.IsTerminal() {
		return apperrors.InvalidTransition("cannot notify volunteers for a %s alert", alert.Status)
	}
	for _, c := range candidates {
		alert.Responses = append(alert.Responses, models.VolunteerResponse{
			VolunteerID: c.Volunteer.ID,
			Response:    models.ResponseNotified,
			Distance:    c.DistanceKm,
		})
	}
	alert.AppendTimeline(models.TimelineNotifiedVolunteers, now, nil, fmt.Sprintf("Notified %d nearby volunteers", len(candidates)))
	touch(alert, now)
	return nil
}

// Accept assigns the alert to volunteerID. A zero estimatedArrival defaults
// to now plus window.
func Accept(alert *models.EmergencyAlert, volunteerID primitive.ObjectID, estimatedArrival time.Time, window time.Duration, now time.Time) error {
	if alert.Status != models.AlertStatusActive || alert.AcceptedBy != nil {
		return apperrors.InvalidTransition("Alert is no longer active")
	}
	if estimatedArrival.IsZero() {
		estimatedArrival = now.Add(window)
	}

	alert.Status = models.AlertStatusAccepted
	alert.AcceptedBy = &models.Acceptance{
		VolunteerID:      volunteerID,
		AcceptedAt:       now,
		EstimatedArrival: estimatedArrival,
	}
	if r := alert.ResponseFor(volunteerID); r != nil {
		t := now
		r.Response = models.ResponseAccepted
		r.ResponseTime = &t
	}
	alert.AppendTimeline(models.TimelineVolunteerAccepted, now, &volunteerID, "Volunteer accepted the alert")
	touch(alert, now)
	return nil
}

// Decline marks the volunteer's ledger entry as declined. It never changes
// status, and is a no-op when the volunteer was never notified.
func Decline(alert *models.EmergencyAlert, volunteerID primitive.ObjectID, now time.Time) error {
	if alert.IsTerminal() {
		return apperrors.InvalidTransition("Alert is already %s", alert.Status)
	}
	r := alert.ResponseFor(volunteerID)
	if r == nil {
		return nil
	}
	t := now
	r.Response = models.ResponseDeclined
	r.ResponseTime = &t
	touch(alert, now)
	return nil
}

// MarkSeen moves a notified ledger entry to seen. Other states are left alone.
func MarkSeen(alert *models.EmergencyAlert, volunteerID primitive.ObjectID, now time.Time) bool {
	r := alert.ResponseFor(volunteerID)
	if r == nil || r.Response != models.ResponseNotified {
		return false
	}
	t := now
	r.Response = models.ResponseSeen
	r.ResponseTime = &t
	touch(alert, now)
	return true
}

// HelpArrived records that the accepting volunteer reached the victim.
func HelpArrived(alert *models.EmergencyAlert, volunteerID primitive.ObjectID, now time.Time) error {
	if alert.Status != models.AlertStatusAccepted || alert.AcceptedBy == nil {
		return apperrors.InvalidTransition("Alert has not been accepted")
	}
	if alert.AcceptedBy.VolunteerID != volunteerID {
		return apperrors.Forbidden("Only the accepting volunteer can report arrival")
	}
	alert.AppendTimeline(models.TimelineHelpArrived, now, &volunteerID, "Volunteer arrived")
	touch(alert, now)
	return nil
}

// Resolve closes the alert from accepted, or directly from active.
func Resolve(alert *models.EmergencyAlert, resolverID primitive.ObjectID, outcome models.ResolutionOutcome, notes string, now time.Time) error {
	if alert.Status != models.AlertStatusActive && alert.Status != models.AlertStatusAccepted {
		return apperrors.InvalidTransition("Alert is already %s", alert.Status)
	}
	if !outcome.Valid() {
		return apperrors.Validation("invalid resolution outcome")
	}
	alert.Status = models.AlertStatusResolved
	alert.Resolution = &models.Resolution{
		ResolvedBy: resolverID,
		Outcome:    outcome,
		Notes:      notes,
		ResolvedAt: now,
	}
	alert.AppendTimeline(models.TimelineResolved, now, &resolverID, string(outcome))
	touch(alert, now)
	return nil
}

func Cancel(alert *models.EmergencyAlert, actorID primitive.ObjectID, now time.Time) error {
	if alert.Status != models.AlertStatusActive && alert.Status != models.AlertStatusAccepted {
		return apperrors.InvalidTransition("Alert is already %s", alert.Status)
	}
	alert.Status = models.AlertStatusCancelled
	alert.AppendTimeline(models.TimelineCancelled, now, &actorID, "Alert cancelled")
	touch(alert, now)
	return nil
}

// AttachMedia appends a media record. Terminal alerts still accept media so
// that evidence uploaded late is kept.
func AttachMedia(alert *models.EmergencyAlert, media models.MediaFile, now time.Time) {
	alert.MediaFiles = append(alert.MediaFiles, media)
	touch(alert, now)
}

// SubmitFeedback stores the raiser's rating once the alert is resolved.
func SubmitFeedback(alert *models.EmergencyAlert, rating int, comment string, now time.Time) error {
	if alert.Status != models.AlertStatusResolved {
		return apperrors.InvalidTransition("Feedback can only be given for resolved alerts")
	}
	if alert.Feedback != nil {
		return apperrors.InvalidTransition("Feedback has already been submitted")
	}
	if rating < 1 || rating > 5 {
		return apperrors.Validation("rating must be between 1 and 5")
	}
	alert.Feedback = &models.Feedback{Rating: rating, Comment: comment, SubmittedAt: now}
	touch(alert, now)
	return nil
}

func touch(alert *models.EmergencyAlert, now time.Time) {
	alert.UpdatedAt = now
}
