package catalog

import (
	"context"
	"fmt"

	"github.com/appetiteclub/apt"

	"github.com/appetiteclub/reconciler/internal/docstore"
)

// Reader loads the menu from the document store on every call.
type Reader struct {
	store  docstore.Store
	logger apt.Logger
}

func NewReader(store docstore.Store, logger apt.Logger) *Reader {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &Reader{
		store:  store,
		logger: logger,
	}
}

// LoadMenu walks dishes/{dish} and dishes/{dish}/ingredients/{group}.
// Documents with a wrong shape are skipped and logged: a dish that cannot be
// priced is left out of the menu instead of getting an invented price.
func (r *Reader) LoadMenu(ctx context.Context) (Menu, error) {
	docs, err := r.store.Query(ctx, DishesCollection)
	if err != nil {
		return Menu{}, fmt.Errorf("cannot list dishes: %w", err)
	}

	menu := Menu{Dishes: make([]Dish, 0, len(docs))}
	for _, doc := range docs {
		dish, err := decodeDish(doc)
		if err != nil {
			r.log().Info("skipping malformed dish", "path", doc.Path, "error", err)
			continue
		}

		groups, err := r.store.Query(ctx, docstore.Join(doc.Path, IngredientsCollection))
		if err != nil {
			return Menu{}, fmt.Errorf("cannot list ingredients of %s: %w", dish.Name, err)
		}
		for _, g := range groups {
			ing, err := decodeIngredient(g)
			if err != nil {
				r.log().Info("skipping malformed ingredient group", "path", g.Path, "error", err)
				continue
			}
			dish.Ingredients = append(dish.Ingredients, ing)
		}
		menu.Dishes = append(menu.Dishes, dish)
	}
	return menu, nil
}

func (r *Reader) LoadPriceSheet(ctx context.Context) (PriceSheet, error) {
	menu, err := r.LoadMenu(ctx)
	if err != nil {
		return nil, err
	}
	return menu.PriceSheet(), nil
}

func (r *Reader) log() apt.Logger {
	return r.logger.With("component", "CatalogReader")
}

func decodeDish(doc docstore.Document) (Dish, error) {
	price, ok := doc.Data["price"].(float64)
	if !ok {
		return Dish{}, fmt.Errorf("price must be a number, got %T", doc.Data["price"])
	}
	if price < 0 {
		return Dish{}, fmt.Errorf("price must not be negative, got %v", price)
	}
	return Dish{Name: doc.ID(), Price: price}, nil
}

func decodeIngredient(doc docstore.Document) (Ingredient, error) {
	ing := Ingredient{Name: doc.ID()}

	switch v := doc.Data["max"].(type) {
	case nil:
	case float64:
		if v < 0 || v != float64(int(v)) {
			return Ingredient{}, fmt.Errorf("max must be a non-negative integer, got %v", v)
		}
		ing.Max = int(v)
	default:
		return Ingredient{}, fmt.Errorf("max must be a number, got %T", v)
	}

	switch v := doc.Data["names"].(type) {
	case nil:
	case []any:
		for _, n := range v {
			name, ok := n.(string)
			if !ok {
				return Ingredient{}, fmt.Errorf("names must be strings, got %T", n)
			}
			ing.Choices = append(ing.Choices, name)
		}
	default:
		return Ingredient{}, fmt.Errorf("names must be a list, got %T", v)
	}

	switch v := doc.Data["charge"].(type) {
	case nil:
	case float64:
		ing.Charge = v
	default:
		return Ingredient{}, fmt.Errorf("charge must be a number, got %T", v)
	}
	return ing, nil
}

// Save writes the menu as dish and ingredient documents.
func Save(ctx context.Context, store docstore.Store, menu Menu) error {
	for _, dish := range menu.Dishes {
		dishPath := docstore.Join(DishesCollection, dish.Name)
		if err := store.Set(ctx, dishPath, map[string]any{"price": dish.Price}); err != nil {
			return fmt.Errorf("cannot save dish %s: %w", dish.Name, err)
		}
		for _, ing := range dish.Ingredients {
			names := ing.Choices
			if names == nil {
				names = []string{}
			}
			groupPath := docstore.Join(dishPath, IngredientsCollection, ing.Name)
			value := map[string]any{
				"max":    ing.Max,
				"names":  names,
				"charge": ing.Charge,
			}
			if err := store.Set(ctx, groupPath, value); err != nil {
				return fmt.Errorf("cannot save ingredient group %s/%s: %w", dish.Name, ing.Name, err)
			}
		}
	}
	return nil
}
