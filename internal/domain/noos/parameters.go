package noos

import (
	"fmt"
	"strings"
	"time"
)

// Availability policies for the daysAvailable denominator.
//
// The source system derived daysAvailable from the count of distinct sale
// days, which makes the consistency ratio identically 1 for any style with
// sales. That behaviour is preserved as the default, and the window policy
// is offered for runs that should measure consistency against the analysis
// date range instead.
const (
	// AvailabilityObserved - daysAvailable = max(daysWithSales, 1)
	AvailabilityObserved = "observed"

	// AvailabilityWindow - daysAvailable = days in [start, end] inclusive;
	// falls back to the span of the loaded sales when no range is set
	AvailabilityWindow = "window"
)

// Default parameter values for the "default" set seeded at startup
const (
	DefaultParameterSet          = "default"
	DefaultLiquidationThreshold  = 0.20
	DefaultBestsellerMultiplier  = 1.50
	DefaultMinVolumeThreshold    = 20.0
	DefaultConsistencyThreshold  = 0.65
	DefaultCoreDurationMonths    = 6
	DefaultBestsellerDurationDay = 90
)

// Parameters is a named, versioned set of algorithm inputs. Exactly zero
// or one set is active at a time.
type Parameters struct {
	ID                     int64
	ParameterSet           string // unique name
	LiquidationThreshold   float64
	BestsellerMultiplier   float64
	MinVolumeThreshold     float64
	ConsistencyThreshold   float64
	AnalysisStartDate      *time.Time
	AnalysisEndDate        *time.Time
	CoreDurationMonths     int
	BestsellerDurationDays int
	AvailabilityPolicy     string
	IsActive               bool
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// DefaultParameters returns the built-in "default" set
func DefaultParameters() *Parameters {
	return &Parameters{
		ParameterSet:           DefaultParameterSet,
		LiquidationThreshold:   DefaultLiquidationThreshold,
		BestsellerMultiplier:   DefaultBestsellerMultiplier,
		MinVolumeThreshold:     DefaultMinVolumeThreshold,
		ConsistencyThreshold:   DefaultConsistencyThreshold,
		CoreDurationMonths:     DefaultCoreDurationMonths,
		BestsellerDurationDays: DefaultBestsellerDurationDay,
		AvailabilityPolicy:     AvailabilityObserved,
		IsActive:               true,
	}
}

// Normalize fills zero-valued fields from the defaults so a sparse
// request body still yields a runnable set
func (p *Parameters) Normalize() {
	if p.LiquidationThreshold == 0 {
		p.LiquidationThreshold = DefaultLiquidationThreshold
	}
	if p.BestsellerMultiplier == 0 {
		p.BestsellerMultiplier = DefaultBestsellerMultiplier
	}
	if p.ConsistencyThreshold == 0 {
		p.ConsistencyThreshold = DefaultConsistencyThreshold
	}
	if p.CoreDurationMonths == 0 {
		p.CoreDurationMonths = DefaultCoreDurationMonths
	}
	if p.BestsellerDurationDays == 0 {
		p.BestsellerDurationDays = DefaultBestsellerDurationDay
	}
	if p.AvailabilityPolicy == "" {
		p.AvailabilityPolicy = AvailabilityObserved
	}
}

// Validate checks the documented ranges
func (p *Parameters) Validate() error {
	if p.LiquidationThreshold < 0 || p.LiquidationThreshold > 1 {
		return fmt.Errorf("liquidationThreshold must be within [0, 1], got %v", p.LiquidationThreshold)
	}
	if p.BestsellerMultiplier <= 0 {
		return fmt.Errorf("bestsellerMultiplier must be > 0, got %v", p.BestsellerMultiplier)
	}
	if p.MinVolumeThreshold < 0 {
		return fmt.Errorf("minVolumeThreshold must be >= 0, got %v", p.MinVolumeThreshold)
	}
	if p.ConsistencyThreshold < 0 || p.ConsistencyThreshold > 1 {
		return fmt.Errorf("consistencyThreshold must be within [0, 1], got %v", p.ConsistencyThreshold)
	}
	if p.AvailabilityPolicy != AvailabilityObserved && p.AvailabilityPolicy != AvailabilityWindow {
		return fmt.Errorf("availabilityPolicy must be %q or %q, got %q",
			AvailabilityObserved, AvailabilityWindow, p.AvailabilityPolicy)
	}
	if p.AnalysisStartDate != nil && p.AnalysisEndDate != nil &&
		p.AnalysisEndDate.Before(*p.AnalysisStartDate) {
		return fmt.Errorf("analysisEndDate precedes analysisStartDate")
	}
	return nil
}

// Encode renders the set as the opaque audit string persisted on the task
func (p *Parameters) Encode() string {
	parts := []string{
		fmt.Sprintf("set=%s", p.ParameterSet),
		fmt.Sprintf("liquidationThreshold=%.2f", p.LiquidationThreshold),
		fmt.Sprintf("bestsellerMultiplier=%.2f", p.BestsellerMultiplier),
		fmt.Sprintf("minVolumeThreshold=%.0f", p.MinVolumeThreshold),
		fmt.Sprintf("consistencyThreshold=%.2f", p.ConsistencyThreshold),
	}
	if p.AnalysisStartDate != nil {
		parts = append(parts, fmt.Sprintf("startDate=%s", p.AnalysisStartDate.Format("2006-01-02")))
	}
	if p.AnalysisEndDate != nil {
		parts = append(parts, fmt.Sprintf("endDate=%s", p.AnalysisEndDate.Format("2006-01-02")))
	}
	return strings.Join(parts, ", ")
}
