// Package completeness scores a sale against a fixed field checklist.
// The assessor is a pure query shared by the status state machine
// (completion gate) and by read-side completeness indicators.
package completeness

import (
	"math"
	"strings"

	"club19/internal/core/id"
	"club19/internal/domain/sale"
)

// Field is one checklist entry with its own missing-value predicate.
// Zero is a valid value for shipping cost and card fees, so those fields
// are never reported missing; "unknown" counts as missing for brand and
// category.
type Field struct {
	Key      string
	Required bool
	Missing  func(s *sale.Sale) bool
}

func missingString(v string) bool {
	return strings.TrimSpace(v) == ""
}

func missingOrUnknown(v string) bool {
	return missingString(v) || strings.EqualFold(strings.TrimSpace(v), "unknown")
}

// checklist is the fixed field set, required entries first.
var checklist = []Field{
	{Key: "supplier", Required: true, Missing: func(s *sale.Sale) bool {
		return s.SupplierID == nil || id.IsNil(*s.SupplierID)
	}},
	{Key: "brand", Required: true, Missing: func(s *sale.Sale) bool {
		return missingOrUnknown(s.Brand)
	}},
	{Key: "category", Required: true, Missing: func(s *sale.Sale) bool {
		return missingOrUnknown(s.Category)
	}},
	{Key: "buy_price", Required: true, Missing: func(s *sale.Sale) bool {
		return !s.BuyPrice.IsPositive()
	}},
	{Key: "sale_amount", Required: true, Missing: func(s *sale.Sale) bool {
		return !s.SaleAmountIncVat.IsPositive()
	}},
	{Key: "shopper", Required: true, Missing: func(s *sale.Sale) bool {
		return id.IsNil(s.ShopperID)
	}},
	{Key: "buyer", Required: true, Missing: func(s *sale.Sale) bool {
		return s.BuyerID == nil || id.IsNil(*s.BuyerID)
	}},
	{Key: "item_title", Required: true, Missing: func(s *sale.Sale) bool {
		return missingString(s.ItemTitle)
	}},

	{Key: "branding_theme", Missing: func(s *sale.Sale) bool {
		return missingString(s.BrandingTheme)
	}},
	{Key: "quantity", Missing: func(s *sale.Sale) bool {
		return s.Quantity <= 0
	}},
	{Key: "sale_date", Missing: func(s *sale.Sale) bool {
		return s.SaleDate == nil
	}},
	{Key: "shipping_cost", Missing: func(s *sale.Sale) bool {
		return false
	}},
	{Key: "card_fees", Missing: func(s *sale.Sale) bool {
		return false
	}},
}

// Assessment is the result of scoring one sale snapshot.
type Assessment struct {
	// IsComplete is true only when zero required fields are missing.
	IsComplete bool `json:"isComplete"`

	// CompletionPercentage covers the whole checklist, required and
	// recommended, rounded to the nearest whole percent.
	CompletionPercentage int `json:"completionPercentage"`

	// MissingFields lists missing required field keys in checklist order.
	MissingFields []string `json:"missingFields"`

	// MissingRecommended lists missing recommended field keys.
	MissingRecommended []string `json:"missingRecommended,omitempty"`
}

// Assess scores the sale against the checklist.
func Assess(s *sale.Sale) Assessment {
	a := Assessment{MissingFields: []string{}}
	present := 0
	for _, f := range checklist {
		if f.Missing(s) {
			if f.Required {
				a.MissingFields = append(a.MissingFields, f.Key)
			} else {
				a.MissingRecommended = append(a.MissingRecommended, f.Key)
			}
			continue
		}
		present++
	}
	a.IsComplete = len(a.MissingFields) == 0
	a.CompletionPercentage = int(math.Round(float64(present) / float64(len(checklist)) * 100))
	return a
}
