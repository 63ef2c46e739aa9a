// Package sales holds the transactional sales data the classification
// engine consumes. Uploads are complete replacements: a successful sales
// ingestion truncates the table and inserts the new rows in one
// transaction.
package sales

import (
	"time"

	"github.com/shopspring/decimal"
)

// Sale is one day-level sales line for a SKU at a store
type Sale struct {
	ID       int64
	Date     time.Time // day granularity, stored at midnight UTC
	SkuID    int64
	StoreID  int64
	Quantity int             // >= 1
	Discount decimal.Decimal // absolute discount value, >= 0
	Revenue  decimal.Decimal // realised revenue, >= 0
}

// DiscountShare returns discount / (discount + revenue), the clearance
// signal the liquidation filter thresholds on. Zero when both are zero.
func (s *Sale) DiscountShare() decimal.Decimal {
	denom := s.Discount.Add(s.Revenue)
	if denom.IsZero() {
		return decimal.Zero
	}
	return s.Discount.Div(denom)
}
