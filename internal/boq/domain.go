package boq

import (
	"math"
	"time"
)

// Category groups bill-of-quantities items.
type Category string

const (
	CategoryCivil      Category = "civil"
	CategoryElectrical Category = "electrical"
	CategoryMechanical Category = "mechanical"
	CategoryFinishing  Category = "finishing"
	CategoryFurniture  Category = "furniture"
	CategoryOther      Category = "other"
)

// Unit of measure for a BOQ line.
type Unit string

const (
	UnitPiece       Unit = "piece"
	UnitMeter       Unit = "m"
	UnitSquareMeter Unit = "m2"
	UnitCubicMeter  Unit = "m3"
	UnitKilogram    Unit = "kg"
	UnitTon         Unit = "ton"
	UnitLumpSum     Unit = "lump_sum"
)

// Item is one bill-of-quantities line owned by a request. TotalPrice is
// always derived from quantity and unit price, never entered.
type Item struct {
	ID          int64
	RequestID   int64
	Category    Category
	ItemName    string
	Description string
	Unit        Unit
	Quantity    float64
	UnitPrice   float64
	TotalPrice  float64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Round2 truncates monetary drift to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// LineTotal computes the derived item total.
func LineTotal(quantity, unitPrice float64) float64 {
	return Round2(quantity * unitPrice)
}

// ImportResult reports partial success of a bulk import.
type ImportResult struct {
	AddedCount int      `json:"added_count"`
	ErrorCount int      `json:"error_count"`
	Errors     []string `json:"errors,omitempty"`
}
