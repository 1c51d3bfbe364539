package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFile reads a menu fixture:
//
//	dishes:
//	  - name: Burger
//	    price: 5
//	    ingredients:
//	      - name: Toppings
//	        max: 2
//	        names: [Cheese, Bacon]
//	        charge: 1
func LoadFile(path string) (Menu, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Menu{}, fmt.Errorf("cannot read catalog file: %w", err)
	}
	return ParseYAML(b)
}

func ParseYAML(b []byte) (Menu, error) {
	var menu Menu
	if err := yaml.Unmarshal(b, &menu); err != nil {
		return Menu{}, fmt.Errorf("cannot parse catalog file: %w", err)
	}
	for i, d := range menu.Dishes {
		if d.Name == "" {
			return Menu{}, fmt.Errorf("dish %d has no name", i)
		}
		if d.Price < 0 {
			return Menu{}, fmt.Errorf("dish %s has a negative price", d.Name)
		}
		for _, ing := range d.Ingredients {
			if ing.Name == "" {
				return Menu{}, fmt.Errorf("dish %s has an unnamed ingredient group", d.Name)
			}
		}
	}
	return menu, nil
}
