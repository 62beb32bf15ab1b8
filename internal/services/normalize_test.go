package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lembas/internal/models"
)

func TestNormalizeRecipeInput(t *testing.T) {
	recipe, err := NormalizeRecipeInput(&RecipeInput{
		Title:       " Lembas ",
		Description: " keeps for months ",
		Author:      " galadriel ",
		Tags:        []string{" elvish ", "", "bread"},
		Ingredients: []IngredientInput{
			{Name: " flour ", Quantity: " 500 ", Unit: " g "},
			{Name: "", Quantity: "1", Unit: "cup"},
		},
		Steps:            []string{" Mix. ", "  ", "Wrap in leaves."},
		Notes:            "  as written  ",
		ServingsQuantity: " 8 ",
		ServingsUnit:     " pieces ",
	})
	require.NoError(t, err)

	assert.Equal(t, "Lembas", recipe.Title)
	assert.Equal(t, "keeps for months", recipe.Description)
	assert.Equal(t, "galadriel", recipe.Author)
	assert.Equal(t, models.StringList{"elvish", "bread"}, recipe.Tags)
	assert.Equal(t, models.StringList{"Mix.", "Wrap in leaves."}, recipe.Steps)
	require.Len(t, recipe.Ingredients, 1)
	assert.Equal(t, models.Ingredient{Name: "flour", Quantity: "500", Unit: "g"}, recipe.Ingredients[0])
	// Notes keep their whitespace; they may be free-form text.
	assert.Equal(t, "  as written  ", recipe.Notes)
	assert.Equal(t, "8", recipe.ServingsQuantity)
	assert.Equal(t, "pieces", recipe.ServingsUnit)
}

func TestNormalizeRecipeInput_TagCap(t *testing.T) {
	// Blank tags do not count against the cap.
	recipe, err := NormalizeRecipeInput(&RecipeInput{
		Title: "Lembas",
		Tags:  []string{"a", "b", "c", "d", "   "},
	})
	require.NoError(t, err)
	assert.Len(t, recipe.Tags, models.MaxRecipeTags)

	_, err = NormalizeRecipeInput(&RecipeInput{
		Title: "Lembas",
		Tags:  []string{"a", "b", "c", "d", "e"},
	})
	assert.ErrorIs(t, err, ErrTooManyTags)
}

func TestNormalizeRecipeInput_TitleRequired(t *testing.T) {
	_, err := NormalizeRecipeInput(&RecipeInput{Title: "\t \n"})
	assert.ErrorIs(t, err, ErrTitleRequired)
}
