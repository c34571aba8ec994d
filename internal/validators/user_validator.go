package validators

import (
	"strings"
)

type EmergencyContactRequest struct {
	Name         string `json:"name" validate:"required,max=100"`
	Phone        string `json:"phone" validate:"required,phone_number"`
	Relationship string `json:"relationship" validate:"omitempty,max=50"`
}

type UserRegistrationRequest struct {
	Name              string                    `json:"name" validate:"required,min=2,max=100"`
	Email             string                    `json:"email" validate:"required,email"`
	Password          string                    `json:"password" validate:"required,min=6,max=128"`
	Phone             string                    `json:"phone" validate:"required,phone_number"`
	Address           string                    `json:"address" validate:"required,min=5,max=500"`
	Role              string                    `json:"role" validate:"required,user_role"`
	Location          *LocationRequest          `json:"location" validate:"omitempty"`
	EmergencyContacts []EmergencyContactRequest `json:"emergencyContacts" validate:"omitempty,max=5,dive"`
}

type UserLoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role" validate:"required,user_role"`
}

type ProfileUpdateRequest struct {
	Name              *string                   `json:"name" validate:"omitempty,min=2,max=100"`
	Phone             *string                   `json:"phone" validate:"omitempty,phone_number"`
	Address           *string                   `json:"address" validate:"omitempty,min=5,max=500"`
	Location          *LocationRequest          `json:"location" validate:"omitempty"`
	EmergencyContacts []EmergencyContactRequest `json:"emergencyContacts" validate:"omitempty,max=5,dive"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6,max=128"`
}

// LocationRequest uses pointers so that 0 is accepted as a coordinate.
type LocationRequest struct {
	Latitude  *float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
	Address   string   `json:"address" validate:"omitempty,max=500"`
}

func ValidateUserRegistration(req *UserRegistrationRequest) ValidationErrors {
	req.Email = NormalizeEmail(req.Email)
	req.Name = SanitizeInput(req.Name)
	req.Address = SanitizeInput(req.Address)
	return ValidateStruct(req)
}

func ValidateUserLogin(req *UserLoginRequest) ValidationErrors {
	req.Email = NormalizeEmail(req.Email)
	return ValidateStruct(req)
}

func ValidateProfileUpdate(req *ProfileUpdateRequest) ValidationErrors {
	if req.Name != nil {
		name := SanitizeInput(*req.Name)
		req.Name = &name
	}
	if req.Address != nil {
		address := SanitizeInput(*req.Address)
		req.Address = &address
	}
	return ValidateStruct(req)
}

func ValidateChangePassword(req *ChangePasswordRequest) ValidationErrors {
	return ValidateStruct(req)
}

func ValidateLocation(req *LocationRequest) ValidationErrors {
	return ValidateStruct(req)
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
