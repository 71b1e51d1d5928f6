package intent

import (
	"fmt"
	"strings"

	"github.com/meatwise/search-service/internal/models"
)

const promptTemplate = `You are a query parser for a meat product search engine.
Parse the user query into a single JSON object with exactly these keys:

  "meat_types": array of lowercase meat types (chicken, beef, pork, turkey, lamb)
  "nutritional_constraints": object mapping max_salt, min_protein, max_fat or max_carbohydrates to numeric thresholds
  "health_preferences": array drawn from organic, grass_fed, antibiotic_free, hormone_free, preservative_free, nitrite_free
  "product_types": array of product form words (jerky, snack, breast, patties, bacon, nugget, sausage, ground, sliced)
  "exclude_ingredients": array drawn from preservatives, nitrites, msg, sugar, phosphates
  "risk_preference": "Green" when the user asks for healthy or safe products, otherwise ""
  "keywords": array of the query's meaningful lowercase tokens

Use empty arrays and objects for anything the query does not mention.
Respond with the JSON object only, no prose.

Query: %q`

// buildPrompt embeds the raw query into the fixed parsing instruction.
func buildPrompt(query string) string {
	return fmt.Sprintf(promptTemplate, query)
}

// decodeIntentResponse parses the model's reply into an intent. The
// reply may arrive wrapped in a fenced code block; fences are stripped
// before unmarshaling. Anything that does not contain one JSON object is
// an error, which the caller treats as a degraded parse.
func decodeIntentResponse(raw string) (*models.SearchIntent, error) {
	text := strings.TrimSpace(raw)

	if strings.HasPrefix(text, "```") {
		if idx := strings.IndexByte(text, '\n'); idx >= 0 {
			text = text[idx+1:]
		} else {
			text = strings.TrimPrefix(text, "```")
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}

	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return nil, fmt.Errorf("no JSON object in completion response")
	}

	si, err := models.UnmarshalIntent([]byte(text[start : end+1]))
	if err != nil {
		return nil, fmt.Errorf("decoding completion response: %w", err)
	}
	normalizeAIIntent(si)
	return si, nil
}

// normalizeAIIntent lowercases and trims model output so downstream
// matching behaves identically to the rule path.
func normalizeAIIntent(si *models.SearchIntent) {
	lower := func(in []string) []string {
		out := in[:0]
		for _, s := range in {
			s = strings.ToLower(strings.TrimSpace(s))
			if s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	si.MeatTypes = lower(si.MeatTypes)
	si.HealthPreferences = lower(si.HealthPreferences)
	si.ProductTypes = lower(si.ProductTypes)
	si.ExcludeIngredients = lower(si.ExcludeIngredients)

	kept := si.Keywords[:0]
	for _, kw := range si.Keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if len(kw) >= minKeywordLen {
			kept = append(kept, kw)
		}
	}
	si.Keywords = kept

	// Risk rating keeps catalog casing.
	switch strings.ToLower(strings.TrimSpace(si.RiskPreference)) {
	case "green":
		si.RiskPreference = models.RiskGreen
	case "yellow":
		si.RiskPreference = models.RiskYellow
	case "red":
		si.RiskPreference = models.RiskRed
	default:
		si.RiskPreference = ""
	}
}
