// Package catalog reads the menu (dishes and their ingredient groups) from the
// document store and turns it into a flat price lookup table.
package catalog

import "sort"

const (
	DishesCollection      = "dishes"
	IngredientsCollection = "ingredients"
)

// Ingredient is an option group of a dish. Max 0 means no selection limit.
type Ingredient struct {
	Name    string   `json:"name" yaml:"name"`
	Max     int      `json:"max" yaml:"max"`
	Choices []string `json:"names" yaml:"names"`
	Charge  float64  `json:"charge" yaml:"charge"`
}

// Allows reports whether choice is one of the group's names.
func (i Ingredient) Allows(choice string) bool {
	for _, c := range i.Choices {
		if c == choice {
			return true
		}
	}
	return false
}

type Dish struct {
	Name        string       `json:"name" yaml:"name"`
	Price       float64      `json:"price" yaml:"price"`
	Ingredients []Ingredient `json:"ingredients" yaml:"ingredients"`
}

func (d Dish) Ingredient(name string) (Ingredient, bool) {
	for _, ing := range d.Ingredients {
		if ing.Name == name {
			return ing, true
		}
	}
	return Ingredient{}, false
}

// Menu is the full catalog as loaded at one point in time.
type Menu struct {
	Dishes []Dish `json:"dishes" yaml:"dishes"`
}

// Dish looks a dish up by name. When names repeat the last dish wins, as it
// does in the price sheet.
func (m Menu) Dish(name string) (Dish, bool) {
	for i := len(m.Dishes) - 1; i >= 0; i-- {
		if m.Dishes[i].Name == name {
			return m.Dishes[i], true
		}
	}
	return Dish{}, false
}

func (m Menu) PriceSheet() PriceSheet {
	return BuildPriceSheet(m.Dishes)
}

// PriceSheet maps dish and choice names to prices.
type PriceSheet map[string]float64

// BuildPriceSheet records every dish price and, for ingredient groups with a
// surcharge, the surcharge of each choice. A later entry for the same name
// overwrites an earlier one.
func BuildPriceSheet(dishes []Dish) PriceSheet {
	sheet := make(PriceSheet)
	for _, dish := range dishes {
		sheet[dish.Name] = dish.Price
		for _, group := range dish.Ingredients {
			if group.Charge == 0 {
				continue
			}
			for _, choice := range group.Choices {
				sheet[choice] = group.Charge
			}
		}
	}
	return sheet
}

// Names returns the sheet keys in sorted order.
func (p PriceSheet) Names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
