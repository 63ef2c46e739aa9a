// Package noos holds the classification output and the parameter sets
// that drive the algorithm. NOOS (Never Out Of Stock) splits styles into
// core (always keep in inventory), bestseller (revenue drivers) and
// fashion (seasonal).
package noos

import (
	"time"

	"github.com/shopspring/decimal"
)

// Type is the classification bucket for a style
type Type string

const (
	// TypeCore - consistent sellers a retailer should never run out of
	TypeCore Type = "core"

	// TypeBestseller - outsized revenue drivers within their category
	TypeBestseller Type = "bestseller"

	// TypeFashion - seasonal styles, everything that is neither core nor bestseller
	TypeFashion Type = "fashion"
)

// ParseType validates a raw classification string
func ParseType(raw string) (Type, bool) {
	t := Type(raw)
	switch t {
	case TypeCore, TypeBestseller, TypeFashion:
		return t, true
	}
	return "", false
}

// Result is the classification of one style produced by one algorithm run.
// AlgorithmRunID equals the id of the task that produced it.
type Result struct {
	ID                   int64
	AlgorithmRunID       int64
	Category             string
	StyleCode            string
	StyleROS             decimal.Decimal // units per available day, 4 decimals
	Type                 Type
	StyleRevContribution decimal.Decimal // percent of category revenue, 4 decimals
	TotalQuantitySold    int
	TotalRevenue         decimal.Decimal
	DaysAvailable        int
	DaysWithSales        int
	AvgDiscount          decimal.Decimal // discount share of gross, 4 decimals
	CalculatedAt         time.Time
}

// TypeCount is one row of the per-type result summary
type TypeCount struct {
	Type  Type
	Count int64
}

// CategoryRevenue is one row of the per-category result summary
type CategoryRevenue struct {
	Category string
	Revenue  decimal.Decimal
	Styles   int64
}

// Summary aggregates one run's results for the dashboard endpoints
type Summary struct {
	AlgorithmRunID int64
	TotalStyles    int64
	ByType         []TypeCount
	ByCategory     []CategoryRevenue
	CalculatedAt   *time.Time
}
