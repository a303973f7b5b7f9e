package recipes

import "fmt"

// Preset recipe JSON builders, handy for seeding demos and tests.

// SimpleLoafJSON builds a single-product recipe with flour, water, and
// salt quantities per loaf.
func SimpleLoafJSON(productID, name, flourItemID string, flourKg string) string {
	return fmt.Sprintf(`{
		"product_id": %q,
		"name": %q,
		"ingredients": [
			{"item_id": %q, "quantity": %q},
			{"item_id": "salt", "quantity": "0.010"},
			{"item_id": "yeast", "quantity": "0.007"}
		]
	}`, productID, name, flourItemID, flourKg)
}

// BatchRecipeJSON builds a recipe whose ingredient quantities are given
// per batch, with the batch yield attached.
func BatchRecipeJSON(productID, name, yield string, ingredients map[string]string) string {
	lines := ""
	first := true
	for itemID, qty := range ingredients {
		if !first {
			lines += ","
		}
		lines += fmt.Sprintf(`{"item_id": %q, "quantity": %q}`, itemID, qty)
		first = false
	}
	return fmt.Sprintf(`{"product_id": %q, "name": %q, "yield": %q, "ingredients": [%s]}`,
		productID, name, yield, lines)
}
