package routes

import (
	"github.com/gin-gonic/gin"

	handlers "sosalert/internal/handlers/shared"
	"sosalert/internal/middleware"
)

// multipartOverhead leaves room for the form boundary and the alertId field.
const multipartOverhead = 64 << 10

// SetupEmergencyRoutes mounts the alert lifecycle. auth must run before
// any role check. maxUpload bounds the upload request body; zero disables it.
func SetupEmergencyRoutes(r *gin.RouterGroup, alertHandler *handlers.AlertHandler, auth gin.HandlerFunc, maxUpload int64) {
	uploadLimit := int64(0)
	if maxUpload > 0 {
		uploadLimit = maxUpload + multipartOverhead
	}

	emergency := r.Group("/emergency")
	emergency.Use(auth)
	{
		// Raising
		emergency.POST("/alert", middleware.VictimRequired(), alertHandler.CreateAlert)
		emergency.POST("/upload-video", middleware.BodyLimit(uploadLimit), alertHandler.UploadMedia)
		emergency.POST("/cancel/:alertId", alertHandler.CancelAlert)
		emergency.POST("/feedback/:alertId", alertHandler.SubmitFeedback)

		// Responding
		volunteer := emergency.Group("")
		volunteer.Use(middleware.VolunteerRequired())
		{
			volunteer.GET("/active-alerts", alertHandler.GetActiveAlerts)
			volunteer.POST("/accept/:alertId", alertHandler.AcceptAlert)
			volunteer.POST("/reject/:alertId", alertHandler.RejectAlert)
			volunteer.POST("/arrived/:alertId", alertHandler.MarkArrived)
		}

		// Either party
		emergency.POST("/resolve/:alertId", alertHandler.ResolveAlert)
		emergency.GET("/alerts/:alertId", alertHandler.GetAlert)
		emergency.GET("/history", alertHandler.GetHistory)
	}
}
