package importer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"lembas/internal/config"
	"lembas/internal/models"
	"lembas/internal/services"
)

// ErrNoText is returned when the pasted text is empty.
var ErrNoText = errors.New("no text provided for import")

const systemPrompt = `You are a careful recipe extraction assistant.
From the user's pasted text, return ONLY valid JSON with this shape:
{
  "title": string,
  "description": string,
  "author": string,
  "tags": string[],
  "ingredients": [{ "name": string, "quantity": string, "unit": string }],
  "steps": string[]
}
Rules:
- Include ALL ingredients you can find; do not omit items. If many exist, include them all.
- Include ALL preparation steps in the original order; short, direct instructions.
- Fill "quantity" and "unit" when possible; if unknown, keep them as empty strings.
- Standardized ingredients (remove brand names, etc.)
- If there is no title or description provided, choose one
- Provide 3-4 concise tags focused on meal type and main ingredients (e.g., "dinner", "dessert", "pumpkin", "chicken", "pasta"); omit dietary labels unless given.
- Units must be chosen ONLY from this list: ["cup","tbsp","tsp","g","kg","oz","ml","l","piece","pinch"]. Convert close variants (cups, tablespoons, tsp., etc.) to the closest allowed unit. If you cannot map it, leave unit as an empty string.
- Express customary measurements as simple fractions where applicable (e.g., 1/2, 1/3, 1/4, 3/4).
- Use empty strings/arrays when something is missing.
- Do NOT add extra fields beyond the JSON shape. Respond with JSON only, no prose.`

// Client extracts a draft recipe from pasted text through an
// OpenAI-compatible chat-completions endpoint. It only ever produces a
// RecipeInput draft; it never touches sharing or friend state.
type Client struct {
	httpClient *http.Client
	cfg        config.ImporterConfig
}

// NewClient creates an importer Client from config.
func NewClient(cfg config.ImporterConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		cfg:        cfg,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	MaxTokens      int           `json:"max_tokens"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// extractedRecipe is the JSON shape the model is instructed to produce.
type extractedRecipe struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Author      string   `json:"author"`
	Tags        []string `json:"tags"`
	Ingredients []struct {
		Name     string `json:"name"`
		Quantity string `json:"quantity"`
		Unit     string `json:"unit"`
	} `json:"ingredients"`
	Steps []string `json:"steps"`
}

// BuildRecipeFromText sends the pasted text to the extraction endpoint and
// returns a normalized draft recipe.
func (c *Client) BuildRecipeFromText(ctx context.Context, text string) (*services.RecipeInput, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrNoText
	}

	reqBody := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: "Extract the recipe details from the following pasted text. Respond with JSON only.\n\n" + text},
		},
		Temperature: 0.2,
		MaxTokens:   2000,
	}
	reqBody.ResponseFormat.Type = "json_object"

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal import request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build import request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("import request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("import request failed with status %d", resp.StatusCode)
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("failed to decode import response: %w", err)
	}
	var content string
	if len(chatResp.Choices) > 0 {
		content = chatResp.Choices[0].Message.Content
	}

	extracted := jsonFromText(content)
	return normalizeExtracted(extracted), nil
}

var jsonObjectPattern = regexp.MustCompile(`(?s)(\{.*\})`)

// jsonFromText parses the model reply, salvaging the first JSON object when
// the reply carries prose or code fences around it.
func jsonFromText(text string) *extractedRecipe {
	recipe := &extractedRecipe{}
	if text == "" {
		return recipe
	}
	if err := json.Unmarshal([]byte(text), recipe); err == nil {
		return recipe
	}
	if match := jsonObjectPattern.FindString(text); match != "" {
		_ = json.Unmarshal([]byte(match), recipe)
	}
	return recipe
}

var allowedUnits = map[string]string{
	"c": "cup", "cup": "cup", "cups": "cup",
	"tablespoon": "tbsp", "tablespoons": "tbsp", "tbsp": "tbsp", "tbs": "tbsp", "tablespoonful": "tbsp",
	"teaspoon": "tsp", "teaspoons": "tsp", "tsp": "tsp", "tsps": "tsp",
	"gram": "g", "grams": "g", "g": "g",
	"kilogram": "kg", "kilograms": "kg", "kg": "kg", "kgs": "kg",
	"ounce": "oz", "ounces": "oz", "oz": "oz",
	"milliliter": "ml", "milliliters": "ml", "ml": "ml",
	"liter": "l", "liters": "l", "litre": "l", "litres": "l", "l": "l",
	"piece": "piece", "pieces": "piece", "pc": "piece", "pcs": "piece",
	"pinch": "pinch", "pinches": "pinch",
}

// normalizeUnit maps unit spellings onto the allowed list; anything that
// cannot be mapped becomes an empty string.
func normalizeUnit(unit string) string {
	key := strings.TrimSpace(strings.ReplaceAll(strings.ToLower(unit), ".", ""))
	return allowedUnits[key]
}

func sentenceCase(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	_, size := utf8.DecodeRuneInString(value)
	return strings.ToUpper(value[:size]) + strings.ToLower(value[size:])
}

// normalizeExtracted coerces the model output into a RecipeInput draft:
// units mapped onto the allowed list, ingredient names sentence-cased,
// blank entries dropped and tags capped.
func normalizeExtracted(extracted *extractedRecipe) *services.RecipeInput {
	input := &services.RecipeInput{
		Title:       strings.TrimSpace(extracted.Title),
		Description: strings.TrimSpace(extracted.Description),
		Author:      strings.TrimSpace(extracted.Author),
	}

	for _, tag := range extracted.Tags {
		tag = strings.TrimSpace(strings.ToLower(tag))
		if tag == "" {
			continue
		}
		input.Tags = append(input.Tags, tag)
		if len(input.Tags) == models.MaxRecipeTags {
			break
		}
	}

	for _, ing := range extracted.Ingredients {
		name := sentenceCase(ing.Name)
		quantity := strings.TrimSpace(ing.Quantity)
		unit := normalizeUnit(ing.Unit)
		if name == "" && quantity == "" && unit == "" {
			continue
		}
		input.Ingredients = append(input.Ingredients, services.IngredientInput{
			Name:     name,
			Quantity: quantity,
			Unit:     unit,
		})
	}

	for _, step := range extracted.Steps {
		step = strings.TrimSpace(step)
		if step != "" {
			input.Steps = append(input.Steps, step)
		}
	}

	return input
}
