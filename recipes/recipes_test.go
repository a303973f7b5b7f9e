package recipes_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovenworks/bakery-engine/core"
	"github.com/ovenworks/bakery-engine/recipes"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

// =============================================================================
// PARSING TESTS
// =============================================================================

func TestParse_ValidRecipe(t *testing.T) {
	recipe, err := recipes.Parse(recipes.SimpleLoafJSON("sourdough-loaf", "Sourdough Loaf", "flour-bread", "0.500"))
	require.NoError(t, err)

	assert.Equal(t, core.ProductID("sourdough-loaf"), recipe.ProductID)
	assert.Equal(t, "Sourdough Loaf", recipe.Name)
	assert.True(t, recipe.Yield.Equal(d("1")), "yield defaults to 1")
	require.Len(t, recipe.Ingredients, 3)
	assert.Equal(t, core.ItemID("flour-bread"), recipe.Ingredients[0].ItemID)
	assert.True(t, recipe.Ingredients[0].Quantity.Equal(d("0.500")))
}

func TestParse_InvalidJSON(t *testing.T) {
	_, err := recipes.Parse(`{not json`)
	assert.Error(t, err)
}

func TestFromJSON_Validation(t *testing.T) {
	cases := []struct {
		name string
		rj   recipes.RecipeJSON
	}{
		{"missing product id", recipes.RecipeJSON{
			Ingredients: []recipes.IngredientJSON{{ItemID: "flour", Quantity: "1"}},
		}},
		{"no ingredients", recipes.RecipeJSON{ProductID: "loaf"}},
		{"missing item id", recipes.RecipeJSON{
			ProductID:   "loaf",
			Ingredients: []recipes.IngredientJSON{{Quantity: "1"}},
		}},
		{"duplicate ingredient", recipes.RecipeJSON{
			ProductID: "loaf",
			Ingredients: []recipes.IngredientJSON{
				{ItemID: "flour", Quantity: "1"},
				{ItemID: "flour", Quantity: "2"},
			},
		}},
		{"non-decimal quantity", recipes.RecipeJSON{
			ProductID:   "loaf",
			Ingredients: []recipes.IngredientJSON{{ItemID: "flour", Quantity: "lots"}},
		}},
		{"zero quantity", recipes.RecipeJSON{
			ProductID:   "loaf",
			Ingredients: []recipes.IngredientJSON{{ItemID: "flour", Quantity: "0"}},
		}},
		{"negative yield", recipes.RecipeJSON{
			ProductID:   "loaf",
			Yield:       "-2",
			Ingredients: []recipes.IngredientJSON{{ItemID: "flour", Quantity: "1"}},
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := recipes.FromJSON(tc.rj)
			assert.ErrorIs(t, err, core.ErrValidation)
		})
	}
}

func TestToJSON_RoundTrip(t *testing.T) {
	original, err := recipes.Parse(recipes.BatchRecipeJSON("baguette", "Baguette", "20", map[string]string{
		"flour-bread": "12.000",
	}))
	require.NoError(t, err)

	back, err := recipes.FromJSON(recipes.ToJSON(original))
	require.NoError(t, err)
	assert.Equal(t, original.ProductID, back.ProductID)
	assert.True(t, original.Yield.Equal(back.Yield))
	require.Len(t, back.Ingredients, 1)
	assert.True(t, original.Ingredients[0].Quantity.Equal(back.Ingredients[0].Quantity))
}

// =============================================================================
// REQUIREMENT SCALING TESTS
// =============================================================================

func TestRequirementsFor_PerUnitScaling(t *testing.T) {
	// GIVEN: A per-unit recipe using 0.5 kg flour per loaf
	// WHEN: Producing 12 loaves
	// THEN: The requirement is 6 kg

	recipe, err := recipes.Parse(recipes.SimpleLoafJSON("loaf", "Loaf", "flour-bread", "0.500"))
	require.NoError(t, err)

	reqs := recipe.RequirementsFor(d("12"))
	require.Len(t, reqs, 3)
	assert.Equal(t, core.ItemID("flour-bread"), reqs[0].ItemID)
	assert.True(t, reqs[0].Quantity.Equal(d("6")))
}

func TestRequirementsFor_BatchYieldScaling(t *testing.T) {
	// GIVEN: A batch recipe using 12 kg flour per 20 baguettes
	// WHEN: Producing 5 baguettes
	// THEN: The requirement is 3 kg (12 * 5/20)

	recipe, err := recipes.Parse(recipes.BatchRecipeJSON("baguette", "Baguette", "20", map[string]string{
		"flour-bread": "12.000",
	}))
	require.NoError(t, err)

	reqs := recipe.RequirementsFor(d("5"))
	require.Len(t, reqs, 1)
	assert.True(t, reqs[0].Quantity.Equal(d("3")))
}

func TestRequirementsFor_RoundsToQuantityScale(t *testing.T) {
	recipe, err := recipes.FromJSON(recipes.RecipeJSON{
		ProductID:   "loaf",
		Ingredients: []recipes.IngredientJSON{{ItemID: "salt", Quantity: "0.0333"}},
	})
	require.NoError(t, err)

	reqs := recipe.RequirementsFor(d("1"))
	assert.True(t, reqs[0].Quantity.Equal(d("0.033")), "got %s", reqs[0].Quantity)
}

// =============================================================================
// BOOK TESTS
// =============================================================================

func TestStaticBook_ResolveAndList(t *testing.T) {
	loaf, err := recipes.Parse(recipes.SimpleLoafJSON("loaf", "Loaf", "flour-bread", "0.500"))
	require.NoError(t, err)
	baguette, err := recipes.Parse(recipes.SimpleLoafJSON("baguette", "Baguette", "flour-bread", "0.300"))
	require.NoError(t, err)

	book := recipes.NewStaticBook(loaf, baguette)
	ctx := context.Background()

	got, err := book.Resolve(ctx, "loaf")
	require.NoError(t, err)
	assert.Equal(t, "Loaf", got.Name)

	_, err = book.Resolve(ctx, "croissant")
	assert.ErrorIs(t, err, core.ErrNotFound)

	all, err := book.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, core.ProductID("baguette"), all[0].ProductID, "sorted by product id")
	assert.Equal(t, core.ProductID("loaf"), all[1].ProductID)
}

func TestStaticBook_PutReplaces(t *testing.T) {
	loaf, err := recipes.Parse(recipes.SimpleLoafJSON("loaf", "Loaf", "flour-bread", "0.500"))
	require.NoError(t, err)
	book := recipes.NewStaticBook(loaf)

	loaf.Name = "Country Loaf"
	book.Put(loaf)

	got, err := book.Resolve(context.Background(), "loaf")
	require.NoError(t, err)
	assert.Equal(t, "Country Loaf", got.Name)
}

// =============================================================================
// FILE LOADING TESTS
// =============================================================================

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recipes.json")
	content := `[
		{"product_id": "loaf", "name": "Loaf", "ingredients": [{"item_id": "flour", "quantity": "0.5"}]},
		{"product_id": "baguette", "name": "Baguette", "yield": "20", "ingredients": [{"item_id": "flour", "quantity": "12"}]}
	]`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	book, err := recipes.LoadFile(path)
	require.NoError(t, err)

	all, err := book.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestLoadFile_InvalidRecipeNamesTheProduct(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recipes.json")
	content := `[{"product_id": "loaf", "ingredients": []}]`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := recipes.LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loaf")
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := recipes.LoadFile(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
