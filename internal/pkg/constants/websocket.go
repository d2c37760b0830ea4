package constants

// WebSocket event types
const (
	// Common events
	EventError = "error"

	// Handshake events
	EventAuthProvider = "auth:provider"
	EventAuthUser     = "auth:user"

	// Room events
	EventJoinServiceRequest = "join:service_request"
	EventRoomJoined         = "room:joined"

	// Dispatch events
	EventNewRequest         = "new:request"
	EventRequestAccepted    = "request:accepted"
	EventRequestUnavailable = "request:unavailable"
	EventRequestUpdate      = "request:update"

	// Location events
	EventLocationUpdate  = "location:update"  // provider emits
	EventLocationUpdated = "location:updated" // requester receives
)

// WebSocket error codes
const (
	ErrorInvalidFormat   = "invalid_format"
	ErrorUnauthorized    = "unauthorized"
	ErrorInternalError   = "internal_error"
	ErrorInvalidLocation = "invalid_location"
)
