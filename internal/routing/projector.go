package routing

import (
	"context"
	"sync"
	"time"

	"github.com/hirelocal/dispatch/internal/pkg/logger"
	"github.com/hirelocal/dispatch/internal/pkg/models"
	"github.com/hirelocal/dispatch/internal/pkg/observability"
)

// Projector maintains the displayed route from the provider's moving
// position to a fixed destination. Recomputations are rate limited to the
// configured cadence; when one fails the previous path stays current rather
// than blanking the display.
type Projector struct {
	router      Router
	destination models.Coordinates
	minInterval time.Duration

	mu          sync.Mutex
	current     *Route
	lastAttempt time.Time
	inflight    bool
	onRoute     func(Route)
}

// NewProjector creates a projector toward destination.
func NewProjector(router Router, destination models.Coordinates, cfg models.RoutingConfig) *Projector {
	return &Projector{
		router:      router,
		destination: destination,
		minInterval: time.Duration(cfg.RecalcIntervalSecond) * time.Second,
	}
}

// OnRoute registers the callback invoked after each successful computation.
func (p *Projector) OnRoute(fn func(Route)) {
	p.mu.Lock()
	p.onRoute = fn
	p.mu.Unlock()
}

// Current returns the latest route and whether one exists.
func (p *Projector) Current() (*Route, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return nil, false
	}
	route := *p.current
	return &route, true
}

// Update feeds a new provider position. A recomputation starts only when the
// cadence allows and none is in flight; otherwise the position is absorbed
// silently and the next eligible update triggers the recalculation.
func (p *Projector) Update(ctx context.Context, from models.Coordinates) {
	p.mu.Lock()
	if p.inflight || time.Since(p.lastAttempt) < p.minInterval {
		p.mu.Unlock()
		observability.RouteRequests.WithLabelValues("throttled").Inc()
		return
	}
	p.inflight = true
	p.lastAttempt = time.Now()
	p.mu.Unlock()

	go p.compute(ctx, from)
}

func (p *Projector) compute(ctx context.Context, from models.Coordinates) {
	route, err := p.router.Route(ctx, from, p.destination)

	p.mu.Lock()
	p.inflight = false
	if err != nil {
		p.mu.Unlock()
		observability.RouteRequests.WithLabelValues("failure").Inc()
		logger.Warn("route recalculation failed, keeping previous path", logger.Err(err))
		return
	}
	p.current = route
	cb := p.onRoute
	p.mu.Unlock()

	observability.RouteRequests.WithLabelValues("success").Inc()
	if cb != nil {
		cb(*route)
	}
}
