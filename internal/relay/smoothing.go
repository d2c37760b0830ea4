package relay

import (
	"math"

	"github.com/hirelocal/dispatch/internal/pkg/models"
	"github.com/hirelocal/dispatch/internal/utils"
)

// Pose is the smoothed provider position shown to the requester.
type Pose struct {
	Coordinates models.Coordinates
	Heading     *float64
}

// Smoother folds raw location updates into a display pose. Large jumps snap
// so the marker never lags a genuinely moved provider; small jitter is
// blended away. Heading swings above the threshold are damped toward the
// new value instead of applied outright.
type Smoother struct {
	cfg  models.RelayConfig
	pose *Pose
}

// NewSmoother creates an empty smoother; the first update snaps directly.
func NewSmoother(cfg models.RelayConfig) *Smoother {
	return &Smoother{cfg: cfg}
}

// Apply folds one update into the pose and returns the result.
func (s *Smoother) Apply(update models.ProviderLocationUpdate) Pose {
	if s.pose == nil {
		pose := Pose{Coordinates: update.Coordinates}
		if update.Heading != nil {
			h := utils.NormalizeHeading(*update.Heading)
			pose.Heading = &h
		}
		s.pose = &pose
		return pose
	}

	s.pose.Coordinates = s.smoothPosition(update.Coordinates)
	if update.Heading != nil {
		h := s.smoothHeading(*update.Heading)
		s.pose.Heading = &h
	}
	return *s.pose
}

// Pose returns the current pose and whether any update has been applied.
func (s *Smoother) Pose() (Pose, bool) {
	if s.pose == nil {
		return Pose{}, false
	}
	return *s.pose, true
}

func (s *Smoother) smoothPosition(next models.Coordinates) models.Coordinates {
	prev := s.pose.Coordinates
	if utils.DistanceMeters(prev, next) > s.cfg.SnapThresholdMeters {
		return next
	}
	blend := s.cfg.PositionBlend
	return models.Coordinates{
		Longitude: prev.Longitude + blend*(next.Longitude-prev.Longitude),
		Latitude:  prev.Latitude + blend*(next.Latitude-prev.Latitude),
	}
}

func (s *Smoother) smoothHeading(next float64) float64 {
	next = utils.NormalizeHeading(next)
	if s.pose.Heading == nil {
		return next
	}
	prev := *s.pose.Heading
	delta := utils.HeadingDelta(prev, next)
	if math.Abs(delta) <= s.cfg.HeadingThresholdDegrees {
		return next
	}
	return utils.NormalizeHeading(prev + s.cfg.HeadingBlend*delta)
}
