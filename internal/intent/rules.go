package intent

import (
	"strings"

	"github.com/meatwise/search-service/internal/models"
)

// meatVocabulary is substring-tested against the query; hits append in
// vocabulary order, not query order.
var meatVocabulary = []string{"chicken", "beef", "pork", "turkey", "lamb"}

// nutritionTriggers maps phrase triggers to a constraint and threshold.
// Multiple triggers combine on one intent.
var nutritionTriggers = []struct {
	phrases    []string
	constraint string
	value      float64
}{
	{[]string{"low sodium", "low salt"}, models.ConstraintMaxSalt, 1.0},
	{[]string{"high protein"}, models.ConstraintMinProt, 20.0},
	{[]string{"low fat"}, models.ConstraintMaxFat, 10.0},
	{[]string{"no sugar", "sugar-free"}, models.ConstraintMaxCarbs, 5.0},
}

var productTypeVocabulary = []string{
	"jerky", "snack", "breast", "patty", "patties", "bacon",
	"nugget", "sausage", "ground", "sliced",
}

// exclusionTriggers maps explicit "no X" phrases to canonical exclusion
// tokens.
var exclusionTriggers = []struct {
	phrase string
	token  string
}{
	{"no preservative", "preservatives"},
	{"no nitrite", "nitrites"},
	{"no msg", "msg"},
	{"no sugar", "sugar"},
}

var riskTriggers = []string{"healthy", "safe", "green"}

const minKeywordLen = 3

// parseRules is the deterministic fallback parser. It never fails:
// absent triggers simply leave fields empty. The query is expected
// lowercased already.
func parseRules(query string) *models.SearchIntent {
	si := models.NewSearchIntent()

	for _, meat := range meatVocabulary {
		if strings.Contains(query, meat) {
			si.MeatTypes = append(si.MeatTypes, meat)
		}
	}

	for _, trig := range nutritionTriggers {
		for _, phrase := range trig.phrases {
			if strings.Contains(query, phrase) {
				si.NutritionalConstraints[trig.constraint] = trig.value
				break
			}
		}
	}

	addPref := func(pref string) {
		for _, existing := range si.HealthPreferences {
			if existing == pref {
				return
			}
		}
		si.HealthPreferences = append(si.HealthPreferences, pref)
	}
	if strings.Contains(query, "organic") {
		addPref(models.PrefOrganic)
	}
	if strings.Contains(query, "grass-fed") || strings.Contains(query, "grass fed") {
		addPref(models.PrefGrassFed)
	}
	if strings.Contains(query, "antibiotic") && strings.Contains(query, "free") {
		addPref(models.PrefAntibioticFree)
	}
	if strings.Contains(query, "preservative") && strings.Contains(query, "free") {
		addPref(models.PrefPreservativeFree)
	}
	if strings.Contains(query, "nitrite") && strings.Contains(query, "free") {
		addPref(models.PrefNitriteFree)
	}
	if strings.Contains(query, "hormone") && strings.Contains(query, "free") {
		addPref(models.PrefHormoneFree)
	}

	for _, pt := range productTypeVocabulary {
		if !strings.Contains(query, pt) {
			continue
		}
		canonical := pt
		if pt == "patty" {
			canonical = "patties"
		}
		dup := false
		for _, existing := range si.ProductTypes {
			if existing == canonical {
				dup = true
				break
			}
		}
		if !dup {
			si.ProductTypes = append(si.ProductTypes, canonical)
		}
	}

	for _, trig := range exclusionTriggers {
		if !strings.Contains(query, trig.phrase) {
			continue
		}
		dup := false
		for _, existing := range si.ExcludeIngredients {
			if existing == trig.token {
				dup = true
				break
			}
		}
		if !dup {
			si.ExcludeIngredients = append(si.ExcludeIngredients, trig.token)
		}
	}

	// Only Green is reachable from text. There is intentionally no
	// phrase mapping to Yellow or Red.
	for _, trig := range riskTriggers {
		if strings.Contains(query, trig) {
			si.RiskPreference = models.RiskGreen
			break
		}
	}

	for _, tok := range strings.Fields(query) {
		if len(tok) >= minKeywordLen {
			si.Keywords = append(si.Keywords, tok)
		}
	}

	return si
}
