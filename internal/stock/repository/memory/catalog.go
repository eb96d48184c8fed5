package memory

import (
	"context"
	"sort"

	"github.com/stockledger/stockledger-backend/internal/stock/domain"
	"github.com/stockledger/stockledger-backend/pkg/errors"
)

type catalogRepo struct{ v *view }

func (r catalogRepo) GetItem(ctx context.Context, id string) (*domain.Item, error) {
	defer r.v.lock()()
	item, ok := r.v.state().items[id]
	if !ok {
		return nil, errors.NotFound("item")
	}
	return &item, nil
}

func (r catalogRepo) ListItems(ctx context.Context) ([]domain.Item, error) {
	defer r.v.lock()()
	out := make([]domain.Item, 0, len(r.v.state().items))
	for _, item := range r.v.state().items {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return out, nil
}

func (r catalogRepo) GetLocation(ctx context.Context, id string) (*domain.Location, error) {
	defer r.v.lock()()
	loc, ok := r.v.state().locations[id]
	if !ok {
		return nil, errors.NotFound("location")
	}
	return &loc, nil
}

func (r catalogRepo) GetRecipe(ctx context.Context, id string) (*domain.Recipe, error) {
	defer r.v.lock()()
	recipe, ok := r.v.state().recipes[id]
	if !ok {
		return nil, errors.NotFound("recipe")
	}
	recipe.Ingredients = append([]domain.RecipeIngredient(nil), recipe.Ingredients...)
	return &recipe, nil
}
