package menu

import (
	"fmt"
	"strings"

	"github.com/ariefcatur/go-orderwise/internal/cart"
)

const StandardRemarks = "Standard"

// Customise turns a menu item and the customer's choices into a cart line.
// kept lists the base ingredients left in; added lists additional option
// names. The unit price is the item price plus every added option.
func Customise(it Item, kept, added []string, qty int) (cart.Line, error) {
	if !it.Available() {
		return cart.Line{}, fmt.Errorf("%s: %w", it.Name, ErrUnavailable)
	}
	if qty < 1 {
		return cart.Line{}, fmt.Errorf("%s: %w", it.Name, ErrInvalidQuantity)
	}

	keep := set(kept)
	var removed []string
	for _, ing := range it.IngredientList() {
		if !keep[ing] {
			removed = append(removed, ing)
		}
	}

	want := set(added)
	known := map[string]bool{}
	price := it.Price
	var adds []string
	for _, o := range it.AdditionalOptions {
		known[o.Name] = true
		if want[o.Name] {
			price = price.Add(o.Price)
			adds = append(adds, o.Name)
		}
	}
	for name := range want {
		if !known[name] {
			return cart.Line{}, fmt.Errorf("%s: %q: %w", it.Name, name, ErrUnknownOption)
		}
	}

	return cart.Line{
		Name:      it.Name,
		Quantity:  qty,
		UnitPrice: price,
		Remarks:   Remarks(removed, adds),
		Category:  it.Category,
	}, nil
}

// Remarks renders "Remove: a, b; Add: c", or "Standard" when nothing changed.
func Remarks(removed, added []string) string {
	var parts []string
	if len(removed) > 0 {
		parts = append(parts, "Remove: "+strings.Join(removed, ", "))
	}
	if len(added) > 0 {
		parts = append(parts, "Add: "+strings.Join(added, ", "))
	}
	if len(parts) == 0 {
		return StandardRemarks
	}
	return strings.Join(parts, "; ")
}

func set(xs []string) map[string]bool {
	m := make(map[string]bool, len(xs))
	for _, x := range xs {
		if x = strings.TrimSpace(x); x != "" {
			m[x] = true
		}
	}
	return m
}
