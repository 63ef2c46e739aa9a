// Package catalog holds the retail master data: styles, SKUs and stores.
// Rows are created and updated exclusively by master-data uploads; the
// natural keys (styleCode, sku, branch) are stored upper-cased and all
// lookups normalise the same way.
package catalog

import "github.com/shopspring/decimal"

// Style is one saleable design. SKUs reference it by id.
type Style struct {
	ID          int64
	StyleCode   string // natural key, unique
	Brand       string
	Category    string
	SubCategory string
	MRP         decimal.Decimal // maximum retail price, > 0
	Gender      string
}

// Diff lists the mutable fields whose values differ from other, formatted
// as "field: old -> new". Used to build audit details on upsert.
func (s *Style) Diff(other *Style) []string {
	var changes []string
	if s.Brand != other.Brand {
		changes = append(changes, "brand: "+s.Brand+" -> "+other.Brand)
	}
	if s.Category != other.Category {
		changes = append(changes, "category: "+s.Category+" -> "+other.Category)
	}
	if s.SubCategory != other.SubCategory {
		changes = append(changes, "sub_category: "+s.SubCategory+" -> "+other.SubCategory)
	}
	if !s.MRP.Equal(other.MRP) {
		changes = append(changes, "mrp: "+s.MRP.String()+" -> "+other.MRP.String())
	}
	if s.Gender != other.Gender {
		changes = append(changes, "gender: "+s.Gender+" -> "+other.Gender)
	}
	return changes
}

// ApplyFrom copies the mutable fields of other onto s, keeping id and key
func (s *Style) ApplyFrom(other *Style) {
	s.Brand = other.Brand
	s.Category = other.Category
	s.SubCategory = other.SubCategory
	s.MRP = other.MRP
	s.Gender = other.Gender
}

// SKU is one sellable unit of a style in a specific size
type SKU struct {
	ID      int64
	Code    string // natural key, unique; the "sku" column of upload files
	StyleID int64
	Size    string
}

// Diff lists mutable field changes against other
func (k *SKU) Diff(other *SKU) []string {
	var changes []string
	if k.StyleID != other.StyleID {
		changes = append(changes, "style: changed")
	}
	if k.Size != other.Size {
		changes = append(changes, "size: "+k.Size+" -> "+other.Size)
	}
	return changes
}

// ApplyFrom copies the mutable fields of other onto k
func (k *SKU) ApplyFrom(other *SKU) {
	k.StyleID = other.StyleID
	k.Size = other.Size
}

// Store is one sales location. Sales rows reference it through the
// upload file's "channel" column, which resolves to Branch.
type Store struct {
	ID     int64
	Branch string // natural key, unique
	City   string
}

// Diff lists mutable field changes against other
func (st *Store) Diff(other *Store) []string {
	var changes []string
	if st.City != other.City {
		changes = append(changes, "city: "+st.City+" -> "+other.City)
	}
	return changes
}

// ApplyFrom copies the mutable fields of other onto st
func (st *Store) ApplyFrom(other *Store) {
	st.City = other.City
}
