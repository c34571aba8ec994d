package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"sosalert/pkg/apperrors"
)

// APIResponse is the envelope every endpoint writes. Payload fields are merged
// into the top level next to success and message.
type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func respond(c *gin.Context, status int, success bool, message string, fields gin.H) {
	body := gin.H{"success": success}
	if message != "" {
		body["message"] = message
	}
	for k, v := range fields {
		body[k] = v
	}
	c.JSON(status, body)
}

func SuccessResponse(c *gin.Context, message string, fields gin.H) {
	respond(c, http.StatusOK, true, message, fields)
}

func CreatedResponse(c *gin.Context, message string, fields gin.H) {
	respond(c, http.StatusCreated, true, message, fields)
}

func ErrorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, APIResponse{Success: false, Message: message})
}

func BadRequestResponse(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusBadRequest, message)
}

func ValidationErrorResponse(c *gin.Context, errors map[string]string) {
	respond(c, http.StatusBadRequest, false, "Validation failed", gin.H{"errors": errors})
}

func UnauthorizedResponse(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusUnauthorized, message)
}

func ForbiddenResponse(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusForbidden, message)
}

func NotFoundResponse(c *gin.Context, resource string) {
	ErrorResponse(c, http.StatusNotFound, resource+" not found")
}

func TooManyRequestsResponse(c *gin.Context) {
	ErrorResponse(c, http.StatusTooManyRequests, "Too many requests, please try again later")
}

// HandleError writes err using its apperrors kind. Raw error text is only
// exposed while gin runs in debug mode.
func HandleError(c *gin.Context, err error) {
	resp := APIResponse{Success: false, Message: apperrors.MessageOf(err)}
	if gin.IsDebugging() {
		resp.Error = err.Error()
	}
	c.JSON(apperrors.HTTPStatus(err), resp)
}
