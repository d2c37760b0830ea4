package relay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirelocal/dispatch/internal/pkg/models"
)

func smoothingConfig() models.RelayConfig {
	return models.RelayConfig{
		HeadingThresholdDegrees: 5,
		HeadingBlend:            0.3,
		SnapThresholdMeters:     8,
		PositionBlend:           0.3,
	}
}

func heading(v float64) *float64 { return &v }

func TestSmoother_FirstUpdateSnaps(t *testing.T) {
	// Arrange
	s := NewSmoother(smoothingConfig())

	// Act
	pose := s.Apply(models.ProviderLocationUpdate{
		Coordinates: models.Coordinates{Longitude: 106.8456, Latitude: -6.2088},
		Heading:     heading(42),
	})

	// Assert
	assert.Equal(t, 106.8456, pose.Coordinates.Longitude)
	assert.Equal(t, -6.2088, pose.Coordinates.Latitude)
	require.NotNil(t, pose.Heading)
	assert.Equal(t, 42.0, *pose.Heading)
}

func TestSmoother_LargeHeadingSwingIsDamped(t *testing.T) {
	// Arrange
	s := NewSmoother(smoothingConfig())
	s.Apply(models.ProviderLocationUpdate{
		Coordinates: models.Coordinates{Longitude: 106.8, Latitude: -6.2},
		Heading:     heading(10),
	})

	// Act: a swing from 10 to 200 degrees
	pose := s.Apply(models.ProviderLocationUpdate{
		Coordinates: models.Coordinates{Longitude: 106.8, Latitude: -6.2},
		Heading:     heading(200),
	})

	// Assert: shortest rotation is -170, damped to 10 + 0.3*(-170) = -41 -> 319
	require.NotNil(t, pose.Heading)
	assert.InDelta(t, 319.0, *pose.Heading, 1e-9)
}

func TestSmoother_SmallHeadingChangeAppliesDirectly(t *testing.T) {
	// Arrange
	s := NewSmoother(smoothingConfig())
	s.Apply(models.ProviderLocationUpdate{
		Coordinates: models.Coordinates{Longitude: 106.8, Latitude: -6.2},
		Heading:     heading(10),
	})

	// Act: within the 5 degree threshold
	pose := s.Apply(models.ProviderLocationUpdate{
		Coordinates: models.Coordinates{Longitude: 106.8, Latitude: -6.2},
		Heading:     heading(13),
	})

	// Assert
	require.NotNil(t, pose.Heading)
	assert.Equal(t, 13.0, *pose.Heading)
}

func TestSmoother_MissingHeadingKeepsPrevious(t *testing.T) {
	// Arrange
	s := NewSmoother(smoothingConfig())
	s.Apply(models.ProviderLocationUpdate{
		Coordinates: models.Coordinates{Longitude: 106.8, Latitude: -6.2},
		Heading:     heading(90),
	})

	// Act
	pose := s.Apply(models.ProviderLocationUpdate{
		Coordinates: models.Coordinates{Longitude: 106.8, Latitude: -6.2},
	})

	// Assert
	require.NotNil(t, pose.Heading)
	assert.Equal(t, 90.0, *pose.Heading)
}

func TestSmoother_SmallMoveIsBlended(t *testing.T) {
	// Arrange
	s := NewSmoother(smoothingConfig())
	start := models.Coordinates{Longitude: 106.80000, Latitude: -6.20000}
	s.Apply(models.ProviderLocationUpdate{Coordinates: start})

	// Act: about 5.5m north, inside the 8m snap threshold
	next := models.Coordinates{Longitude: 106.80000, Latitude: -6.19995}
	pose := s.Apply(models.ProviderLocationUpdate{Coordinates: next})

	// Assert: 30% of the way toward the new point
	expectedLat := start.Latitude + 0.3*(next.Latitude-start.Latitude)
	assert.InDelta(t, expectedLat, pose.Coordinates.Latitude, 1e-12)
	assert.Equal(t, start.Longitude, pose.Coordinates.Longitude)
}

func TestSmoother_LargeMoveSnaps(t *testing.T) {
	// Arrange
	s := NewSmoother(smoothingConfig())
	s.Apply(models.ProviderLocationUpdate{
		Coordinates: models.Coordinates{Longitude: 106.80000, Latitude: -6.20000},
	})

	// Act: about 111m north, far beyond the snap threshold
	next := models.Coordinates{Longitude: 106.80000, Latitude: -6.19900}
	pose := s.Apply(models.ProviderLocationUpdate{Coordinates: next})

	// Assert
	assert.Equal(t, next, pose.Coordinates)
}
