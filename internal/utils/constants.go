package utils

import "time"

// Application Constants
const (
	AppName    = "SOS Alert"
	AppVersion = "1.0.0"

	// Pagination
	DefaultPage     = 1
	DefaultPageSize = 10
	MaxPageSize     = 100

	// Authentication
	JWTAccessTokenTTL = 7 * 24 * time.Hour
	PasswordMinLength = 6
	PasswordMaxLength = 128

	// Dispatch
	DefaultMatchDelta        = 0.45
	DefaultMaxCandidates     = 20
	DefaultActiveAlertsLimit = 50
	DefaultArrivalWindow     = 15 * time.Minute
	DefaultOperationTimeout  = 5 * time.Second
	DefaultDescription       = "Emergency assistance needed"
	MaxDescriptionLength     = 1000

	// File Upload
	MaxMediaSize         = 50 * 1024 * 1024 // 50MB
	DefaultUploadTimeout = 2 * time.Minute
	EmergencyMediaDir    = "emergency"
	MediaFilePrefix      = "emergency-"
)

// Context keys set by the auth middleware.
const (
	ContextUserID    = "user_id"
	ContextUserRole  = "user_role"
	ContextUser      = "user"
	ContextRequestID = "request_id"
)

// Cache Keys
const (
	CacheUserPrefix      = "user:"
	CacheRateLimitPrefix = "rate_limit:"
)

// Realtime channel events
const (
	EventWelcome           = "welcome"
	EventJoinVolunteer     = "join-volunteer"
	EventLeaveVolunteer    = "leave-volunteer"
	EventNewEmergency      = "new-emergency"
	EventMediaUploaded     = "media-uploaded"
	EventAlertAccepted     = "alert-accepted"
	EventAlertStatusUpdate = "alert-status-update"
	EventError             = "error"

	RoomVolunteers = "volunteers"
)

// AllowedMediaTypes maps accepted upload MIME types to their media kind.
var AllowedMediaTypes = map[string]string{
	"video/mp4":  "video",
	"video/webm": "video",
	"video/mpeg": "video",
	"audio/mp3":  "audio",
	"audio/mpeg": "audio",
	"audio/wav":  "audio",
	"audio/webm": "audio",
	"image/jpeg": "image",
	"image/png":  "image",
}

// Geographic Constants
const (
	EarthRadiusKM = 6371.0
)
