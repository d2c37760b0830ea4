package models

import "time"

// SessionState represents the dispatch request lifecycle state.
type SessionState string

const (
	StateIdle       SessionState = "IDLE"
	StateSearching  SessionState = "SEARCHING"
	StateOffered    SessionState = "OFFERED"
	StateNoProvider SessionState = "NO_PROVIDER"
	StateAccepted   SessionState = "ACCEPTED"
	StateExpired    SessionState = "EXPIRED"
	StateInProgress SessionState = "IN_PROGRESS"
	StateCompleted  SessionState = "COMPLETED"
	StateCancelled  SessionState = "CANCELLED"
)

// Terminal reports whether no further transitions are possible from s.
func (s SessionState) Terminal() bool {
	switch s {
	case StateCompleted, StateNoProvider, StateCancelled:
		return true
	}
	return false
}

// Request update statuses delivered by the gateway.
const (
	StatusAccepted   = "ACCEPTED"
	StatusNoProvider = "NO_PROVIDER"
)

// User types for room membership.
const (
	UserTypeProvider  = "provider"
	UserTypeRequester = "requester"
)

// DispatchRequest is a requester's submitted service request. Immutable; the
// server owns the terminal outcome, the client mirrors it as session state.
type DispatchRequest struct {
	RequestID       string      `json:"request_id"`
	RequesterID     string      `json:"requester_id"`
	Origin          Coordinates `json:"origin"`
	ServiceCategory string      `json:"service_category"`
	CreatedAt       time.Time   `json:"created_at"`
}

// Offer is a dispatch offer pushed to a provider. Distance is computed
// server-side and treated as an opaque display value.
type Offer struct {
	RequestID   string      `json:"requestId"`
	RequesterID string      `json:"userId"`
	Distance    string      `json:"distance"`
	ReqLocation GeoLocation `json:"reqLocation"`
	ReceivedAt  time.Time   `json:"-"`
}

// RequestUpdate is the asynchronous dispatch outcome sent to requesters.
type RequestUpdate struct {
	Status     string `json:"status"`
	RequestID  string `json:"requestId"`
	ProviderID string `json:"providerId,omitempty"`
}

// CounterpartInfo holds the matched party's contact details.
type CounterpartInfo struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	PhoneNo   string `json:"phoneNo"`
	Email     string `json:"email,omitempty"`
}

// CounterpartDetails is the post-match detail fetch: who to meet, where, and
// the one-time verification code shown to the requester.
type CounterpartDetails struct {
	UserInfo    CounterpartInfo `json:"userInfo"`
	ReqLocation GeoLocation     `json:"reqLocation"`
	OTP         string          `json:"otp,omitempty"`
}
