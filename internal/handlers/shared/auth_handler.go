package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"sosalert/internal/middleware"
	"sosalert/internal/services"
	"sosalert/internal/utils"
	"sosalert/internal/validators"
	"sosalert/pkg/websocket"
)

type AuthHandler struct {
	authService services.AuthService
}

func NewAuthHandler(authService services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var request validators.UserRegistrationRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}
	if errs := validators.ValidateUserRegistration(&request); len(errs) > 0 {
		utils.ValidationErrorResponse(c, errs.Map())
		return
	}

	resp, err := h.authService.Register(c.Request.Context(), &request)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.CreatedResponse(c, "User registered successfully", gin.H{"token": resp.Token, "user": resp.User})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var request validators.UserLoginRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}
	if errs := validators.ValidateUserLogin(&request); len(errs) > 0 {
		utils.ValidationErrorResponse(c, errs.Map())
		return
	}

	resp, err := h.authService.Login(c.Request.Context(), &request)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, "Login successful", gin.H{"token": resp.Token, "user": resp.User})
}

// Logout revokes the token the request was authenticated with
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.authService.Logout(c.Request.Context(), middleware.BearerToken(c)); err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, "Logged out successfully", nil)
}

func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.authService.GetProfile(c.Request.Context(), middleware.CurrentUser(c).ID)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, "Profile retrieved successfully", gin.H{"user": user})
}

func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	var request validators.ProfileUpdateRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}
	if errs := validators.ValidateProfileUpdate(&request); len(errs) > 0 {
		utils.ValidationErrorResponse(c, errs.Map())
		return
	}

	user, err := h.authService.UpdateProfile(c.Request.Context(), middleware.CurrentUser(c), &request)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, "Profile updated successfully", gin.H{"user": user})
}

func (h *AuthHandler) UpdateLocation(c *gin.Context) {
	var request validators.LocationRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}
	if errs := validators.ValidateLocation(&request); len(errs) > 0 {
		utils.ValidationErrorResponse(c, errs.Map())
		return
	}

	user, err := h.authService.UpdateLocation(c.Request.Context(), middleware.CurrentUser(c).ID, &request)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, "Location updated successfully", gin.H{"location": user.Location})
}

func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var request validators.ChangePasswordRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}
	if errs := validators.ValidateChangePassword(&request); len(errs) > 0 {
		utils.ValidationErrorResponse(c, errs.Map())
		return
	}

	if err := h.authService.ChangePassword(c.Request.Context(), middleware.CurrentUser(c).ID, &request); err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, "Password changed successfully", nil)
}

// DeleteAccount deactivates the caller's account
func (h *AuthHandler) DeleteAccount(c *gin.Context) {
	if err := h.authService.DeactivateAccount(c.Request.Context(), middleware.CurrentUser(c).ID); err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, "Account deactivated successfully", nil)
}

// WebSocketAuthenticator adapts the auth service for realtime connections.
func WebSocketAuthenticator(authService services.AuthService) websocket.Authenticator {
	return func(ctx context.Context, token string) (*websocket.Identity, error) {
		user, err := authService.Authenticate(ctx, token)
		if err != nil {
			return nil, err
		}
		return &websocket.Identity{UserID: user.ID.Hex(), Role: string(user.Role)}, nil
	}
}
