package validators

import "time"

type ContactDetailsRequest struct {
	Name    string `json:"name" validate:"required,max=100"`
	Phone   string `json:"phone" validate:"required"`
	Address string `json:"address" validate:"required,max=500"`
}

type CreateAlertRequest struct {
	Location    LocationRequest       `json:"location"`
	UserDetails ContactDetailsRequest `json:"userDetails"`
	Description string                `json:"description" validate:"omitempty,max=1000"`
	Priority    string                `json:"priority" validate:"omitempty,oneof=low medium high critical"`
}

type AcceptAlertRequest struct {
	EstimatedArrival *time.Time `json:"estimatedArrival"`
}

type ResolveAlertRequest struct {
	Outcome string `json:"outcome" validate:"required,oneof=safe police_involved medical_attention false_alarm other"`
	Notes   string `json:"notes" validate:"omitempty,max=1000"`
}

type FeedbackRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"omitempty,max=1000"`
}

func ValidateCreateAlert(req *CreateAlertRequest) ValidationErrors {
	req.UserDetails.Name = SanitizeInput(req.UserDetails.Name)
	req.UserDetails.Address = SanitizeInput(req.UserDetails.Address)
	req.Description = SanitizeInput(req.Description)
	return ValidateStruct(req)
}

func ValidateAccept(req *AcceptAlertRequest, now time.Time) ValidationErrors {
	if req.EstimatedArrival != nil && req.EstimatedArrival.Before(now.Add(-time.Minute)) {
		return ValidationErrors{{Field: "estimatedArrival", Tag: "future", Message: "estimatedArrival must not be in the past"}}
	}
	return nil
}

func ValidateResolve(req *ResolveAlertRequest) ValidationErrors {
	req.Notes = SanitizeInput(req.Notes)
	return ValidateStruct(req)
}

func ValidateFeedback(req *FeedbackRequest) ValidationErrors {
	req.Comment = SanitizeInput(req.Comment)
	return ValidateStruct(req)
}
