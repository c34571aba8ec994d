package websocket

const (
	EventWelcome        = "welcome"
	EventJoinVolunteer  = "join-volunteer"
	EventLeaveVolunteer = "leave-volunteer"
	EventError          = "error"

	RoomVolunteers = "volunteers"
	RoleVolunteer  = "volunteer"
)
