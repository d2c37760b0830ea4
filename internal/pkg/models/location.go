package models

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Coordinates is an ordered (longitude, latitude) pair. It marshals to the
// two-element array the gateway uses on the wire.
type Coordinates struct {
	Longitude float64
	Latitude  float64
}

// Valid reports whether both axes are finite and within range.
func (c Coordinates) Valid() bool {
	if math.IsNaN(c.Longitude) || math.IsInf(c.Longitude, 0) {
		return false
	}
	if math.IsNaN(c.Latitude) || math.IsInf(c.Latitude, 0) {
		return false
	}
	return c.Longitude >= -180 && c.Longitude <= 180 &&
		c.Latitude >= -90 && c.Latitude <= 90
}

// MarshalJSON encodes the pair as [longitude, latitude].
func (c Coordinates) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{c.Longitude, c.Latitude})
}

// UnmarshalJSON decodes a [longitude, latitude] array.
func (c *Coordinates) UnmarshalJSON(data []byte) error {
	var pair [2]float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("invalid coordinates payload: %w", err)
	}
	c.Longitude = pair[0]
	c.Latitude = pair[1]
	return nil
}

// GeoLocation wraps coordinates the way the gateway nests them in payloads.
type GeoLocation struct {
	Coordinates Coordinates `json:"coordinates"`
}

// PositionSource identifies which capability produced a position sample.
type PositionSource string

const (
	SourceDevice  PositionSource = "DEVICE"
	SourceNetwork PositionSource = "NETWORK_APPROX"
	SourceIP      PositionSource = "IP_APPROX"
)

// PositionSample is a single position fix. Samples are never mutated after
// creation.
type PositionSample struct {
	Coordinates Coordinates    `json:"coordinates"`
	Accuracy    float64        `json:"accuracy,omitempty"` // meters, 0 when unknown
	Source      PositionSource `json:"source"`
	CapturedAt  time.Time      `json:"captured_at"`
}

// ProviderLocationUpdate is the most recent known provider position for a
// tracking session. Each update supersedes the prior one; no history is kept.
type ProviderLocationUpdate struct {
	SessionID   string      `json:"session_id"`
	Coordinates Coordinates `json:"coordinates"`
	Heading     *float64    `json:"heading,omitempty"` // degrees, [0, 360)
	CapturedAt  time.Time   `json:"captured_at"`
}
