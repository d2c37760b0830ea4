package models

// TrackingSession is the live-tracking pairing created when a dispatch
// request is accepted. Exactly one may be active per request ID.
type TrackingSession struct {
	RequestID   string `json:"request_id"`
	ProviderID  string `json:"provider_id"`
	RequesterID string `json:"requester_id"`
	Active      bool   `json:"active"`
}
