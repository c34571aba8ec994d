package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"sosalert/internal/middleware"
	"sosalert/internal/models"
	"sosalert/internal/services"
	"sosalert/internal/utils"
	"sosalert/internal/validators"
)

type AlertHandler struct {
	alertService services.AlertService
	mediaService services.MediaService
}

func NewAlertHandler(alertService services.AlertService, mediaService services.MediaService) *AlertHandler {
	return &AlertHandler{
		alertService: alertService,
		mediaService: mediaService,
	}
}

// CreateAlert raises an emergency for the authenticated victim
func (h *AlertHandler) CreateAlert(c *gin.Context) {
	var request validators.CreateAlertRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}
	if errs := validators.ValidateCreateAlert(&request); len(errs) > 0 {
		utils.ValidationErrorResponse(c, errs.Map())
		return
	}

	alert, err := h.alertService.CreateAlert(c.Request.Context(), middleware.CurrentUser(c), &request)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.CreatedResponse(c, "Emergency alert created successfully", gin.H{
		"alertId":            alert.ID.Hex(),
		"volunteersNotified": len(alert.Responses),
		"alert":              alert,
	})
}

// UploadMedia stores a recording for one of the caller's alerts
func (h *AlertHandler) UploadMedia(c *gin.Context) {
	header, err := c.FormFile("video")
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		utils.ErrorResponse(c, http.StatusRequestEntityTooLarge, "Uploaded file is too large")
		return
	}
	if err != nil {
		utils.BadRequestResponse(c, "No video file uploaded")
		return
	}
	alertID, err := primitive.ObjectIDFromHex(c.PostForm("alertId"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid alert ID")
		return
	}

	file, err := header.Open()
	if err != nil {
		utils.BadRequestResponse(c, "Unable to read uploaded file")
		return
	}
	defer file.Close()

	media, err := h.mediaService.Upload(c.Request.Context(), middleware.CurrentUser(c), alertID, &services.MediaUpload{
		OriginalName: header.Filename,
		ContentType:  header.Header.Get("Content-Type"),
		Size:         header.Size,
		Reader:       file,
	})
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, "Media uploaded successfully", gin.H{"mediaFile": media})
}

// GetActiveAlerts lists open alerts for volunteers
func (h *AlertHandler) GetActiveAlerts(c *gin.Context) {
	alerts, err := h.alertService.GetActiveAlerts(c.Request.Context())
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, "Active alerts retrieved successfully", gin.H{"alerts": alerts})
}

// AcceptAlert claims an active alert for the calling volunteer
func (h *AlertHandler) AcceptAlert(c *gin.Context) {
	alertID, ok := alertIDParam(c)
	if !ok {
		return
	}

	var request validators.AcceptAlertRequest
	if !bindOptionalJSON(c, &request) {
		return
	}
	if errs := validators.ValidateAccept(&request, time.Now()); len(errs) > 0 {
		utils.ValidationErrorResponse(c, errs.Map())
		return
	}

	alert, err := h.alertService.AcceptAlert(c.Request.Context(), middleware.CurrentUser(c), alertID, request.EstimatedArrival)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, "Alert accepted successfully", gin.H{
		"alert": gin.H{
			"id":         alert.ID,
			"status":     alert.Status,
			"acceptedBy": alert.AcceptedBy,
		},
	})
}

// RejectAlert records that the volunteer will not respond
func (h *AlertHandler) RejectAlert(c *gin.Context) {
	alertID, ok := alertIDParam(c)
	if !ok {
		return
	}

	if err := h.alertService.DeclineAlert(c.Request.Context(), middleware.CurrentUser(c), alertID); err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, "Alert declined", nil)
}

// MarkArrived records that the accepting volunteer reached the scene
func (h *AlertHandler) MarkArrived(c *gin.Context) {
	alertID, ok := alertIDParam(c)
	if !ok {
		return
	}

	alert, err := h.alertService.MarkArrived(c.Request.Context(), middleware.CurrentUser(c), alertID)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, "Arrival recorded", gin.H{"alert": alert})
}

func (h *AlertHandler) ResolveAlert(c *gin.Context) {
	alertID, ok := alertIDParam(c)
	if !ok {
		return
	}

	var request validators.ResolveAlertRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}
	if errs := validators.ValidateResolve(&request); len(errs) > 0 {
		utils.ValidationErrorResponse(c, errs.Map())
		return
	}

	alert, err := h.alertService.ResolveAlert(c.Request.Context(), middleware.CurrentUser(c), alertID, &request)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, "Alert resolved successfully", gin.H{"alert": alert})
}

func (h *AlertHandler) CancelAlert(c *gin.Context) {
	alertID, ok := alertIDParam(c)
	if !ok {
		return
	}

	alert, err := h.alertService.CancelAlert(c.Request.Context(), middleware.CurrentUser(c), alertID)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, "Alert cancelled successfully", gin.H{"alert": alert})
}

func (h *AlertHandler) SubmitFeedback(c *gin.Context) {
	alertID, ok := alertIDParam(c)
	if !ok {
		return
	}

	var request validators.FeedbackRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}
	if errs := validators.ValidateFeedback(&request); len(errs) > 0 {
		utils.ValidationErrorResponse(c, errs.Map())
		return
	}

	alert, err := h.alertService.SubmitFeedback(c.Request.Context(), middleware.CurrentUser(c), alertID, &request)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, "Feedback submitted successfully", gin.H{"alert": alert})
}

// GetAlert returns one alert to its raiser or to a volunteer
func (h *AlertHandler) GetAlert(c *gin.Context) {
	alertID, ok := alertIDParam(c)
	if !ok {
		return
	}

	alert, err := h.alertService.GetAlert(c.Request.Context(), middleware.CurrentUser(c), alertID)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, "Alert retrieved successfully", gin.H{"alert": alert})
}

// GetHistory pages through the alerts the caller raised, newest first
func (h *AlertHandler) GetHistory(c *gin.Context) {
	params := utils.GetPaginationParams(c)
	alerts, total, err := h.alertService.GetHistory(c.Request.Context(), middleware.CurrentUser(c), params)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	if alerts == nil {
		alerts = []*models.EmergencyAlert{}
	}

	utils.SuccessResponse(c, "Alert history retrieved successfully", gin.H{
		"alerts":     alerts,
		"pagination": utils.CreatePaginationMeta(params, total),
	})
}

func alertIDParam(c *gin.Context) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param("alertId"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid alert ID")
		return primitive.NilObjectID, false
	}
	return id, true
}

// bindOptionalJSON accepts an empty body.
func bindOptionalJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil && !errors.Is(err, io.EOF) {
		utils.BadRequestResponse(c, "Invalid request body")
		return false
	}
	return true
}
