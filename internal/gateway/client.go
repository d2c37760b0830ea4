package gateway

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/hirelocal/dispatch/internal/pkg/http"
	"github.com/hirelocal/dispatch/internal/pkg/logger"
	"github.com/hirelocal/dispatch/internal/pkg/models"
)

// Client talks to the gateway's REST surface. Reliable commands (request
// submission, tracking lifecycle) go through the retrying client; decision
// commits go through the once-only path because replaying an accept or
// reject after the offer window closed would be wrong.
type Client struct {
	baseURL string
	http    *http.EnhancedClient
}

// NewClient creates a gateway REST client.
func NewClient(cfg models.GatewayConfig, log *logger.ZapLogger) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		http:    http.NewEnhancedClient(log, time.Duration(cfg.TimeoutSeconds)*time.Second),
	}
}

// codePattern matches the exact shape of a verification code.
var codePattern = regexp.MustCompile(`^\d{4}$`)

// SubmitRequest submits a new service request. The returned flag reports
// whether any provider is available near the origin; the dispatch outcome
// itself arrives asynchronously over the realtime channel.
func (c *Client) SubmitRequest(ctx context.Context, req *models.DispatchRequest) (bool, error) {
	var out struct {
		Available bool   `json:"available"`
		RequestID string `json:"requestId"`
	}
	url := fmt.Sprintf("%s/v1/requests", c.baseURL)
	if err := c.http.PostJSON(ctx, url, req, &out); err != nil {
		return false, fmt.Errorf("failed to submit request: %w", err)
	}
	if out.RequestID != "" {
		req.RequestID = out.RequestID
	}

	logger.Info("service request submitted",
		logger.String("request_id", req.RequestID),
		logger.Bool("providers_available", out.Available))
	return out.Available, nil
}

// RespondToOffer commits the provider's accept or reject decision. Sent
// exactly once: a failure surfaces to the caller instead of being retried.
func (c *Client) RespondToOffer(ctx context.Context, requestID, providerID string, accept bool) error {
	body := map[string]interface{}{
		"providerId": providerID,
		"accepted":   accept,
	}
	url := fmt.Sprintf("%s/v1/requests/%s/response", c.baseURL, requestID)
	if err := c.http.PostJSONOnce(ctx, url, body, nil); err != nil {
		return fmt.Errorf("failed to respond to offer %s: %w", requestID, err)
	}

	logger.Info("offer decision committed",
		logger.String("request_id", requestID),
		logger.Bool("accepted", accept))
	return nil
}

// SetAvailability toggles the provider's duty state.
func (c *Client) SetAvailability(ctx context.Context, providerID string, available bool, location models.Coordinates) error {
	body := map[string]interface{}{
		"providerId": providerID,
		"available":  available,
		"location":   models.GeoLocation{Coordinates: location},
	}
	url := fmt.Sprintf("%s/v1/providers/%s/availability", c.baseURL, providerID)
	if err := c.http.PostJSON(ctx, url, body, nil); err != nil {
		return fmt.Errorf("failed to set availability: %w", err)
	}
	return nil
}

// StartTracking opens the live-tracking session for an accepted request.
func (c *Client) StartTracking(ctx context.Context, session *models.TrackingSession) error {
	url := fmt.Sprintf("%s/v1/tracking/start", c.baseURL)
	if err := c.http.PostJSON(ctx, url, session, nil); err != nil {
		return fmt.Errorf("failed to start tracking for %s: %w", session.RequestID, err)
	}
	logger.Info("tracking session started", logger.String("request_id", session.RequestID))
	return nil
}

// UpdateTracking records tracking progress server-side. The realtime
// location stream is separate; this is the durable record.
func (c *Client) UpdateTracking(ctx context.Context, requestID string, location models.Coordinates) error {
	body := map[string]interface{}{
		"location": models.GeoLocation{Coordinates: location},
	}
	url := fmt.Sprintf("%s/v1/tracking/%s", c.baseURL, requestID)
	if err := c.http.PatchJSON(ctx, url, body, nil); err != nil {
		return fmt.Errorf("failed to update tracking for %s: %w", requestID, err)
	}
	return nil
}

// StopTracking closes the live-tracking session.
func (c *Client) StopTracking(ctx context.Context, requestID string) error {
	url := fmt.Sprintf("%s/v1/tracking/%s/stop", c.baseURL, requestID)
	if err := c.http.PostJSON(ctx, url, nil, nil); err != nil {
		return fmt.Errorf("failed to stop tracking for %s: %w", requestID, err)
	}
	logger.Info("tracking session stopped", logger.String("request_id", requestID))
	return nil
}

// CounterpartDetails fetches the matched party's contact info, the request
// origin and the verification code for an accepted request.
func (c *Client) CounterpartDetails(ctx context.Context, requestID string) (*models.CounterpartDetails, error) {
	var out models.CounterpartDetails
	url := fmt.Sprintf("%s/v1/requests/%s/counterpart", c.baseURL, requestID)
	if err := c.http.GetJSON(ctx, url, &out); err != nil {
		return nil, fmt.Errorf("failed to fetch counterpart for %s: %w", requestID, err)
	}
	return &out, nil
}

// VerifyCode checks the four-digit arrival code with the gateway. Malformed
// codes are rejected locally without a round trip.
func (c *Client) VerifyCode(ctx context.Context, requestID, code string) (bool, error) {
	if !codePattern.MatchString(code) {
		return false, fmt.Errorf("verification code must be exactly 4 digits")
	}

	var out struct {
		Verified bool `json:"verified"`
	}
	body := map[string]string{"otp": code}
	url := fmt.Sprintf("%s/v1/requests/%s/verify", c.baseURL, requestID)
	if err := c.http.PostJSONOnce(ctx, url, body, &out); err != nil {
		return false, fmt.Errorf("failed to verify code for %s: %w", requestID, err)
	}
	return out.Verified, nil
}

// CancelRequest cancels an in-flight request on behalf of userID.
func (c *Client) CancelRequest(ctx context.Context, requestID, userID string) error {
	body := map[string]string{"userId": userID}
	url := fmt.Sprintf("%s/v1/requests/%s/cancel", c.baseURL, requestID)
	if err := c.http.PostJSON(ctx, url, body, nil); err != nil {
		return fmt.Errorf("failed to cancel request %s: %w", requestID, err)
	}
	logger.Info("request cancelled", logger.String("request_id", requestID))
	return nil
}
