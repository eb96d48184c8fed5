package domain

import (
	"github.com/shopspring/decimal"
)

// LocationType classifies a stock location.
type LocationType string

const (
	LocationWarehouse    LocationType = "WAREHOUSE"
	LocationKitchen      LocationType = "KITCHEN"
	LocationDistribution LocationType = "DISTRIBUTION_POINT"
)

// Item is master data owned outside the ledger; the engine only reads it.
type Item struct {
	ID           string          `json:"id" db:"id"`
	SKU          string          `json:"sku" db:"sku"`
	Name         string          `json:"name" db:"name"`
	Unit         string          `json:"unit" db:"unit"`
	ReorderPoint decimal.Decimal `json:"reorder_point" db:"reorder_point"`
	UnitPrice    decimal.Decimal `json:"unit_price" db:"unit_price"`
}

// Location is a place stock is held.
type Location struct {
	ID     string       `json:"id" db:"id"`
	Name   string       `json:"name" db:"name"`
	Type   LocationType `json:"type" db:"type"`
	Active bool         `json:"active" db:"active"`
}

// Recipe describes how much of each ingredient one batch of Yield units of
// the output item consumes.
type Recipe struct {
	ID           string             `json:"id" db:"id"`
	OutputItemID string             `json:"output_item_id" db:"output_item_id"`
	Yield        decimal.Decimal    `json:"yield" db:"yield"`
	Ingredients  []RecipeIngredient `json:"ingredients" db:"-"`
}

// RecipeIngredient is one input line of a recipe.
type RecipeIngredient struct {
	ItemID   string          `json:"item_id" db:"item_id"`
	Quantity decimal.Decimal `json:"quantity" db:"quantity"`
}

// Scale returns the ingredient quantities needed to produce qty units of
// the output item.
func (r *Recipe) Scale(qty decimal.Decimal) []RecipeIngredient {
	factor := qty.Div(r.Yield)
	out := make([]RecipeIngredient, 0, len(r.Ingredients))
	for _, ing := range r.Ingredients {
		out = append(out, RecipeIngredient{
			ItemID:   ing.ItemID,
			Quantity: ing.Quantity.Mul(factor).Round(4),
		})
	}
	return out
}
