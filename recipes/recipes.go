/*
Package recipes provides JSON to Go recipe conversion.

PURPOSE:
  Converts JSON recipe definitions into core ingredient requirements.
  This enables recipe configuration without code changes - bakery staff
  can define recipes in JSON, and the parser produces the proper Go
  structs for the production coordinator.

WHY JSON?
  - Non-developers can modify recipes
  - Easy integration with admin UI
  - Version control for recipe definitions
  - Database storage of recipe configs

JSON SCHEMA:
  {
    "product_id": "sourdough-loaf",
    "name": "Sourdough Loaf",
    "yield": "1",
    "ingredients": [
      {"item_id": "flour-bread", "quantity": "0.500"},
      {"item_id": "salt", "quantity": "0.010"},
      {"item_id": "starter", "quantity": "0.150"}
    ]
  }

  Quantities are decimal strings in the stock item's unit, per one unit
  of produced output (the optional yield scales them).

USAGE:
  recipe, err := recipes.Parse(jsonStr)
  reqs := recipe.RequirementsFor(decimal.NewFromInt(12)) // batch of 12

  book := recipes.NewStaticBook(recipe)
  eng.Production.RecordProduction(ctx, input)

SEE ALSO:
  - core/production.go: Two-phase recipe consumption
*/
package recipes

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/ovenworks/bakery-engine/core"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// RecipeJSON is the JSON representation of a recipe.
type RecipeJSON struct {
	ProductID   string           `json:"product_id"`
	Name        string           `json:"name"`
	Yield       string           `json:"yield,omitempty"` // Units produced per batch, default "1"
	Ingredients []IngredientJSON `json:"ingredients"`
}

// IngredientJSON represents one ingredient line.
type IngredientJSON struct {
	ItemID   string `json:"item_id"`
	Quantity string `json:"quantity"` // Decimal string, per unit of yield
}

// =============================================================================
// RECIPE
// =============================================================================

// Ingredient is a parsed ingredient line with a validated decimal quantity.
type Ingredient struct {
	ItemID   core.ItemID
	Quantity decimal.Decimal
}

// Recipe maps a finished product to the ingredient quantities one unit
// of it consumes.
type Recipe struct {
	ProductID   core.ProductID
	Name        string
	Yield       decimal.Decimal
	Ingredients []Ingredient
}

// RequirementsFor scales the per-unit ingredient quantities to the
// produced quantity, rounding each to the quantity scale.
func (r Recipe) RequirementsFor(produced decimal.Decimal) []core.IngredientRequirement {
	perUnit := produced
	if !r.Yield.IsZero() && !r.Yield.Equal(decimal.NewFromInt(1)) {
		perUnit = produced.Div(r.Yield)
	}

	reqs := make([]core.IngredientRequirement, 0, len(r.Ingredients))
	for _, ing := range r.Ingredients {
		reqs = append(reqs, core.IngredientRequirement{
			ItemID:   ing.ItemID,
			Quantity: ing.Quantity.Mul(perUnit).Round(core.QuantityScale),
		})
	}
	return reqs
}

// Parse parses a JSON string into a Recipe, validating structure and
// decimal quantities.
func Parse(jsonStr string) (Recipe, error) {
	var rj RecipeJSON
	if err := json.Unmarshal([]byte(jsonStr), &rj); err != nil {
		return Recipe{}, fmt.Errorf("failed to parse recipe JSON: %w", err)
	}
	return FromJSON(rj)
}

// FromJSON converts RecipeJSON to a Recipe.
func FromJSON(rj RecipeJSON) (Recipe, error) {
	if rj.ProductID == "" {
		return Recipe{}, &core.ValidationError{Field: "product_id", Message: "is required"}
	}
	if len(rj.Ingredients) == 0 {
		return Recipe{}, &core.ValidationError{Field: "ingredients", Message: "at least one ingredient is required"}
	}

	recipe := Recipe{
		ProductID: core.ProductID(rj.ProductID),
		Name:      rj.Name,
		Yield:     decimal.NewFromInt(1),
	}
	if rj.Yield != "" {
		y, err := decimal.NewFromString(rj.Yield)
		if err != nil || !y.IsPositive() {
			return Recipe{}, &core.ValidationError{Field: "yield", Message: "must be a positive decimal"}
		}
		recipe.Yield = y
	}

	seen := make(map[string]bool, len(rj.Ingredients))
	for _, ij := range rj.Ingredients {
		if ij.ItemID == "" {
			return Recipe{}, &core.ValidationError{Field: "ingredients.item_id", Message: "is required"}
		}
		if seen[ij.ItemID] {
			return Recipe{}, &core.ValidationError{
				Field:   "ingredients.item_id",
				Message: fmt.Sprintf("duplicate ingredient %q", ij.ItemID),
			}
		}
		seen[ij.ItemID] = true

		q, err := decimal.NewFromString(ij.Quantity)
		if err != nil || !q.IsPositive() {
			return Recipe{}, &core.ValidationError{
				Field:   "ingredients.quantity",
				Message: fmt.Sprintf("ingredient %q quantity must be a positive decimal", ij.ItemID),
			}
		}
		recipe.Ingredients = append(recipe.Ingredients, Ingredient{
			ItemID:   core.ItemID(ij.ItemID),
			Quantity: q,
		})
	}
	return recipe, nil
}

// ToJSON converts a Recipe back to its JSON representation.
func ToJSON(r Recipe) RecipeJSON {
	rj := RecipeJSON{
		ProductID: string(r.ProductID),
		Name:      r.Name,
	}
	if !r.Yield.Equal(decimal.NewFromInt(1)) {
		rj.Yield = r.Yield.String()
	}
	for _, ing := range r.Ingredients {
		rj.Ingredients = append(rj.Ingredients, IngredientJSON{
			ItemID:   string(ing.ItemID),
			Quantity: ing.Quantity.String(),
		})
	}
	return rj
}

// =============================================================================
// RECIPE BOOK
// =============================================================================

// Book resolves recipes by product. Implementations may be backed by a
// database or a static config file.
type Book interface {
	Resolve(ctx context.Context, productID core.ProductID) (Recipe, error)
	List(ctx context.Context) ([]Recipe, error)
}

// StaticBook is an in-memory Book, typically loaded from a JSON file at
// startup. Safe for concurrent use.
type StaticBook struct {
	mu      sync.RWMutex
	recipes map[core.ProductID]Recipe
}

// NewStaticBook creates a Book holding the given recipes.
func NewStaticBook(recipes ...Recipe) *StaticBook {
	b := &StaticBook{recipes: make(map[core.ProductID]Recipe, len(recipes))}
	for _, r := range recipes {
		b.recipes[r.ProductID] = r
	}
	return b
}

// Resolve returns the recipe for a product.
func (b *StaticBook) Resolve(_ context.Context, productID core.ProductID) (Recipe, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	r, ok := b.recipes[productID]
	if !ok {
		return Recipe{}, &core.NotFoundError{Kind: "recipe", ID: string(productID)}
	}
	return r, nil
}

// List returns all recipes sorted by product ID.
func (b *StaticBook) List(_ context.Context) ([]Recipe, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Recipe, 0, len(b.recipes))
	for _, r := range b.recipes {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

// Put adds or replaces a recipe.
func (b *StaticBook) Put(r Recipe) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.recipes[r.ProductID] = r
}

// Clear removes every recipe.
func (b *StaticBook) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.recipes = make(map[core.ProductID]Recipe)
}

// LoadFile reads a JSON file holding an array of recipes and returns a
// StaticBook.
func LoadFile(path string) (*StaticBook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read recipe file: %w", err)
	}

	var raw []RecipeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse recipe file: %w", err)
	}

	book := NewStaticBook()
	for _, rj := range raw {
		recipe, err := FromJSON(rj)
		if err != nil {
			return nil, fmt.Errorf("recipe %q: %w", rj.ProductID, err)
		}
		book.Put(recipe)
	}
	return book, nil
}
