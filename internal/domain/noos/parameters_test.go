package noos_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assortlab/noos-go/internal/domain/noos"
)

func TestDefaultParameters(t *testing.T) {
	// Act
	p := noos.DefaultParameters()

	// Assert
	assert.Equal(t, "default", p.ParameterSet)
	assert.Equal(t, 0.20, p.LiquidationThreshold)
	assert.Equal(t, 1.50, p.BestsellerMultiplier)
	assert.Equal(t, 20.0, p.MinVolumeThreshold)
	assert.Equal(t, 0.65, p.ConsistencyThreshold)
	assert.Equal(t, noos.AvailabilityObserved, p.AvailabilityPolicy)
	assert.True(t, p.IsActive)
	require.NoError(t, p.Validate())
}

func TestParameters_NormalizeFillsZeroFields(t *testing.T) {
	// Arrange - a sparse request body that only overrides one knob
	p := &noos.Parameters{MinVolumeThreshold: 50}

	// Act
	p.Normalize()

	// Assert
	assert.Equal(t, 50.0, p.MinVolumeThreshold)
	assert.Equal(t, 0.20, p.LiquidationThreshold)
	assert.Equal(t, 1.50, p.BestsellerMultiplier)
	assert.Equal(t, 0.65, p.ConsistencyThreshold)
	assert.Equal(t, noos.AvailabilityObserved, p.AvailabilityPolicy)
	require.NoError(t, p.Validate())
}

func TestParameters_ValidateRanges(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*noos.Parameters)
	}{
		{"liquidation above one", func(p *noos.Parameters) { p.LiquidationThreshold = 1.5 }},
		{"liquidation negative", func(p *noos.Parameters) { p.LiquidationThreshold = -0.1 }},
		{"bestseller zero", func(p *noos.Parameters) { p.BestsellerMultiplier = 0 }},
		{"min volume negative", func(p *noos.Parameters) { p.MinVolumeThreshold = -1 }},
		{"consistency above one", func(p *noos.Parameters) { p.ConsistencyThreshold = 2 }},
		{"unknown policy", func(p *noos.Parameters) { p.AvailabilityPolicy = "lunar" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			p := noos.DefaultParameters()
			tt.mutate(p)

			// Act / Assert
			assert.Error(t, p.Validate())
		})
	}
}

func TestParameters_ValidateDateOrder(t *testing.T) {
	// Arrange
	p := noos.DefaultParameters()
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p.AnalysisStartDate = &start
	p.AnalysisEndDate = &end

	// Act
	err := p.Validate()

	// Assert
	require.Error(t, err)
	assert.Contains(t, err.Error(), "precedes")
}

func TestParameters_Encode(t *testing.T) {
	// Arrange
	p := noos.DefaultParameters()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p.AnalysisStartDate = &start

	// Act
	encoded := p.Encode()

	// Assert
	assert.Contains(t, encoded, "set=default")
	assert.Contains(t, encoded, "liquidationThreshold=0.20")
	assert.Contains(t, encoded, "minVolumeThreshold=20")
	assert.Contains(t, encoded, "startDate=2024-01-01")
	assert.NotContains(t, encoded, "endDate")
}

func TestParseType(t *testing.T) {
	// Act / Assert
	typ, ok := noos.ParseType("core")
	assert.True(t, ok)
	assert.Equal(t, noos.TypeCore, typ)

	_, ok = noos.ParseType("CORE")
	assert.False(t, ok, "classification types are stored lower-case")

	_, ok = noos.ParseType("seasonal")
	assert.False(t, ok)
}
