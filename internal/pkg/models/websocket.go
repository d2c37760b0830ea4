package models

import "encoding/json"

// WSMessage represents a WebSocket message structure
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// WSErrorMessage represents an error message sent over WebSocket
type WSErrorMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// JoinRoomPayload asks the gateway to add the sender to a session room.
type JoinRoomPayload struct {
	ServiceRequestID string `json:"serviceRequestId"`
	UserID           string `json:"userId"`
	UserType         string `json:"userType"`
}

// RoomJoinedPayload acknowledges room membership.
type RoomJoinedPayload struct {
	UserID   string `json:"userId"`
	UserType string `json:"userType"`
}

// LocationUpdatePayload is the provider-side location emission. Geohash is
// included so the gateway can route without decoding the coordinates.
type LocationUpdatePayload struct {
	SessionID string      `json:"sessionId"`
	Location  GeoLocation `json:"location"`
	Heading   *float64    `json:"heading,omitempty"`
	Accuracy  float64     `json:"accuracy,omitempty"`
	Geohash   string      `json:"geohash,omitempty"`
}

// LocationUpdatedPayload is the requester-side location event.
type LocationUpdatedPayload struct {
	Coordinates Coordinates `json:"coordinates"`
	Heading     *float64    `json:"heading,omitempty"`
}
