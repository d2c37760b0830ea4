package dispatch

import (
	"context"

	"github.com/hirelocal/dispatch/internal/pkg/models"
	"github.com/hirelocal/dispatch/internal/realtime"
)

// EventChannel is the slice of the realtime channel the sessions consume.
type EventChannel interface {
	Emit(event string, payload interface{}) error
	On(event string, handler realtime.Handler) realtime.Subscription
}

// Gateway is the slice of the REST client the sessions consume.
type Gateway interface {
	SubmitRequest(ctx context.Context, req *models.DispatchRequest) (bool, error)
	RespondToOffer(ctx context.Context, requestID, providerID string, accept bool) error
	StartTracking(ctx context.Context, session *models.TrackingSession) error
	StopTracking(ctx context.Context, requestID string) error
	CancelRequest(ctx context.Context, requestID, userID string) error
}
