package services

import (
	"errors"
	"fmt"
	"strings"

	"lembas/internal/models"
)

var (
	ErrTitleRequired = errors.New("recipe title is required")
	ErrTooManyTags   = fmt.Errorf("a recipe carries at most %d tags", models.MaxRecipeTags)
)

// IngredientInput is one ingredient line as submitted by a client.
type IngredientInput struct {
	Name     string `json:"name"`
	Quantity string `json:"quantity"`
	Unit     string `json:"unit"`
}

// RecipeInput is the typed boundary shape for recipe create/update payloads.
// Everything a client may set lives here; ownership and the public flag are
// managed server-side and deliberately absent.
type RecipeInput struct {
	ID               uint              `json:"id,omitempty"`
	Title            string            `json:"title"`
	Description      string            `json:"description"`
	Author           string            `json:"author"`
	Tags             []string          `json:"tags"`
	Ingredients      []IngredientInput `json:"ingredients"`
	Steps            []string          `json:"steps"`
	Notes            string            `json:"notes"`
	ServingsQuantity string            `json:"servingsQuantity"`
	ServingsUnit     string            `json:"servingsUnit"`
}

// NormalizeRecipeInput validates and coerces a RecipeInput into the fields
// it would set on a Recipe. Rejection beats guessing: a missing title or a
// tag overflow is an error, while blank steps and tags are simply dropped
// as "left blank on purpose".
func NormalizeRecipeInput(input *RecipeInput) (*models.Recipe, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, ErrTitleRequired
	}

	tags := make(models.StringList, 0, len(input.Tags))
	for _, tag := range input.Tags {
		tag = strings.TrimSpace(tag)
		if tag != "" {
			tags = append(tags, tag)
		}
	}
	if len(tags) > models.MaxRecipeTags {
		return nil, ErrTooManyTags
	}

	steps := make(models.StringList, 0, len(input.Steps))
	for _, step := range input.Steps {
		step = strings.TrimSpace(step)
		if step != "" {
			steps = append(steps, step)
		}
	}

	ingredients := make(models.IngredientList, 0, len(input.Ingredients))
	for _, ing := range input.Ingredients {
		name := strings.TrimSpace(ing.Name)
		if name == "" {
			continue
		}
		ingredients = append(ingredients, models.Ingredient{
			Name:     name,
			Quantity: strings.TrimSpace(ing.Quantity),
			Unit:     strings.TrimSpace(ing.Unit),
		})
	}

	return &models.Recipe{
		Title:            title,
		Description:      strings.TrimSpace(input.Description),
		Author:           strings.TrimSpace(input.Author),
		Tags:             tags,
		Ingredients:      ingredients,
		Steps:            steps,
		Notes:            input.Notes,
		ServingsQuantity: strings.TrimSpace(input.ServingsQuantity),
		ServingsUnit:     strings.TrimSpace(input.ServingsUnit),
	}, nil
}
