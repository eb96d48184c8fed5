package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"

	"github.com/jmoiron/sqlx"
	"github.com/stockledger/stockledger-backend/internal/stock/domain"
	"github.com/stockledger/stockledger-backend/pkg/errors"
)

type catalogRepo struct{ s *store }

func (r catalogRepo) GetItem(ctx context.Context, id string) (*domain.Item, error) {
	var item domain.Item
	query := `SELECT id, sku, name, unit, reorder_point, unit_price FROM items WHERE id = $1`
	if err := sqlx.GetContext(ctx, r.s.q, &item, query, id); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("item")
		}
		return nil, mapErr(err)
	}
	return &item, nil
}

func (r catalogRepo) ListItems(ctx context.Context) ([]domain.Item, error) {
	items := make([]domain.Item, 0)
	query := `SELECT id, sku, name, unit, reorder_point, unit_price FROM items ORDER BY sku`
	if err := sqlx.SelectContext(ctx, r.s.q, &items, query); err != nil {
		return nil, mapErr(err)
	}
	return items, nil
}

func (r catalogRepo) GetLocation(ctx context.Context, id string) (*domain.Location, error) {
	var loc domain.Location
	query := `SELECT id, name, type, active FROM locations WHERE id = $1`
	if err := sqlx.GetContext(ctx, r.s.q, &loc, query, id); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("location")
		}
		return nil, mapErr(err)
	}
	return &loc, nil
}

func (r catalogRepo) GetRecipe(ctx context.Context, id string) (*domain.Recipe, error) {
	var recipe domain.Recipe
	query := `SELECT id, output_item_id, yield FROM recipes WHERE id = $1`
	if err := sqlx.GetContext(ctx, r.s.q, &recipe, query, id); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("recipe")
		}
		return nil, mapErr(err)
	}

	recipe.Ingredients = make([]domain.RecipeIngredient, 0)
	ingredients := `SELECT item_id, quantity FROM recipe_ingredients
		WHERE recipe_id = $1 ORDER BY position, item_id`
	if err := sqlx.SelectContext(ctx, r.s.q, &recipe.Ingredients, ingredients, id); err != nil {
		return nil, mapErr(err)
	}
	return &recipe, nil
}
