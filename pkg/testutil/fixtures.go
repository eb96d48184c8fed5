package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stockledger/stockledger-backend/internal/stock/domain"
)

// Fixtures inserts master data the ledger reads but never writes.
type Fixtures struct {
	db  *sqlx.DB
	seq atomic.Int64
}

// NewFixtures creates a fixture factory on db.
func NewFixtures(db *sqlx.DB) *Fixtures {
	return &Fixtures{db: db}
}

// Item inserts an item with the given reorder point.
func (f *Fixtures) Item(t *testing.T, reorderPoint string) domain.Item {
	t.Helper()
	n := f.seq.Add(1)
	item := domain.Item{
		ID:           uuid.NewString(),
		SKU:          fmt.Sprintf("SKU-%04d", n),
		Name:         fmt.Sprintf("Test item %d", n),
		Unit:         "kg",
		ReorderPoint: decimal.RequireFromString(reorderPoint),
		UnitPrice:    decimal.NewFromInt(1),
	}
	_, err := f.db.Exec(`
		INSERT INTO items (id, sku, name, unit, reorder_point, unit_price)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		item.ID, item.SKU, item.Name, item.Unit, item.ReorderPoint, item.UnitPrice)
	if err != nil {
		t.Fatalf("failed to insert item: %v", err)
	}
	return item
}

// Location inserts a location.
func (f *Fixtures) Location(t *testing.T, typ domain.LocationType, active bool) domain.Location {
	t.Helper()
	loc := domain.Location{
		ID:     uuid.NewString(),
		Name:   fmt.Sprintf("Test %s %d", typ, f.seq.Add(1)),
		Type:   typ,
		Active: active,
	}
	_, err := f.db.Exec(`INSERT INTO locations (id, name, type, active) VALUES ($1, $2, $3, $4)`,
		loc.ID, loc.Name, loc.Type, loc.Active)
	if err != nil {
		t.Fatalf("failed to insert location: %v", err)
	}
	return loc
}

// Recipe inserts a recipe and its ingredients, in order.
func (f *Fixtures) Recipe(t *testing.T, outputItemID, yield string, ingredients ...domain.RecipeIngredient) domain.Recipe {
	t.Helper()
	recipe := domain.Recipe{
		ID:           uuid.NewString(),
		OutputItemID: outputItemID,
		Yield:        decimal.RequireFromString(yield),
		Ingredients:  ingredients,
	}
	if _, err := f.db.Exec(`INSERT INTO recipes (id, output_item_id, yield) VALUES ($1, $2, $3)`,
		recipe.ID, recipe.OutputItemID, recipe.Yield); err != nil {
		t.Fatalf("failed to insert recipe: %v", err)
	}
	for i, ing := range ingredients {
		if _, err := f.db.Exec(`
			INSERT INTO recipe_ingredients (recipe_id, item_id, position, quantity)
			VALUES ($1, $2, $3, $4)`,
			recipe.ID, ing.ItemID, i, ing.Quantity); err != nil {
			t.Fatalf("failed to insert recipe ingredient: %v", err)
		}
	}
	return recipe
}
