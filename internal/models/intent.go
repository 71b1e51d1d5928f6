package models

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Nutritional constraint names accepted in SearchIntent.NutritionalConstraints.
const (
	ConstraintMaxSalt  = "max_salt"
	ConstraintMinProt  = "min_protein"
	ConstraintMaxFat   = "max_fat"
	ConstraintMaxCarbs = "max_carbohydrates"
)

// Health preference vocabulary.
const (
	PrefOrganic          = "organic"
	PrefGrassFed         = "grass_fed"
	PrefAntibioticFree   = "antibiotic_free"
	PrefHormoneFree      = "hormone_free"
	PrefPreservativeFree = "preservative_free"
	PrefNitriteFree      = "nitrite_free"
)

// Risk ratings as stored on products.
const (
	RiskGreen  = "Green"
	RiskYellow = "Yellow"
	RiskRed    = "Red"
)

// SearchIntent is the structured form of a free-text query. The JSON tags
// double as the output contract for the AI parsing path and as the cache
// serialization format. An intent with every field empty is valid and
// means an unfiltered search.
type SearchIntent struct {
	MeatTypes              []string           `json:"meat_types"`
	NutritionalConstraints map[string]float64 `json:"nutritional_constraints"`
	HealthPreferences      []string           `json:"health_preferences"`
	ProductTypes           []string           `json:"product_types"`
	Keywords               []string           `json:"keywords"`
	ExcludeIngredients     []string           `json:"exclude_ingredients"`
	RiskPreference         string             `json:"risk_preference,omitempty"`
}

// NewSearchIntent returns an intent with all collection fields allocated
// empty so callers can append without nil checks.
func NewSearchIntent() *SearchIntent {
	return &SearchIntent{
		MeatTypes:              []string{},
		NutritionalConstraints: map[string]float64{},
		HealthPreferences:      []string{},
		ProductTypes:           []string{},
		Keywords:               []string{},
		ExcludeIngredients:     []string{},
	}
}

// IsEmpty reports whether no field of the intent is populated.
func (si *SearchIntent) IsEmpty() bool {
	return len(si.MeatTypes) == 0 &&
		len(si.NutritionalConstraints) == 0 &&
		len(si.HealthPreferences) == 0 &&
		len(si.ProductTypes) == 0 &&
		len(si.Keywords) == 0 &&
		len(si.ExcludeIngredients) == 0 &&
		si.RiskPreference == ""
}

// GroupKey is the coarse clustering key used by the batch optimizer:
// sorted meat types joined with commas, then the risk preference (or
// "any" when unset). Intents sharing a group key share one catalog fetch.
func (si *SearchIntent) GroupKey() string {
	meats := make([]string, len(si.MeatTypes))
	copy(meats, si.MeatTypes)
	sort.Strings(meats)

	risk := si.RiskPreference
	if risk == "" {
		risk = "any"
	}
	return strings.Join(meats, ",") + "|" + risk
}

// Key is a stable content hash of the whole intent, used to address
// per-intent results in a batch response.
func (si *SearchIntent) Key() string {
	// Constraint map iteration order is not stable, so serialize the
	// keys sorted.
	names := make([]string, 0, len(si.NutritionalConstraints))
	for name := range si.NutritionalConstraints {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(strings.Join(si.MeatTypes, ","))
	b.WriteByte('|')
	for _, name := range names {
		fmt.Fprintf(&b, "%s=%g;", name, si.NutritionalConstraints[name])
	}
	b.WriteByte('|')
	b.WriteString(strings.Join(si.HealthPreferences, ","))
	b.WriteByte('|')
	b.WriteString(strings.Join(si.ProductTypes, ","))
	b.WriteByte('|')
	b.WriteString(strings.Join(si.Keywords, ","))
	b.WriteByte('|')
	b.WriteString(strings.Join(si.ExcludeIngredients, ","))
	b.WriteByte('|')
	b.WriteString(si.RiskPreference)

	h := sha256.Sum256([]byte(b.String()))
	return fmt.Sprintf("%x", h[:8])
}

// Marshal serializes the intent for cache storage.
func (si *SearchIntent) Marshal() ([]byte, error) {
	return json.Marshal(si)
}

// UnmarshalIntent reconstructs a cached intent, re-allocating any
// collection fields json left nil.
func UnmarshalIntent(data []byte) (*SearchIntent, error) {
	var si SearchIntent
	if err := json.Unmarshal(data, &si); err != nil {
		return nil, fmt.Errorf("unmarshaling intent: %w", err)
	}
	si.normalizeNil()
	return &si, nil
}

func (si *SearchIntent) normalizeNil() {
	if si.MeatTypes == nil {
		si.MeatTypes = []string{}
	}
	if si.NutritionalConstraints == nil {
		si.NutritionalConstraints = map[string]float64{}
	}
	if si.HealthPreferences == nil {
		si.HealthPreferences = []string{}
	}
	if si.ProductTypes == nil {
		si.ProductTypes = []string{}
	}
	if si.Keywords == nil {
		si.Keywords = []string{}
	}
	if si.ExcludeIngredients == nil {
		si.ExcludeIngredients = []string{}
	}
}

// Ranking factor names. A factor is set when the corresponding predicate
// was applied to the catalog query; the scorer checks them to decide
// which bonuses are eligible.
const (
	FactorMeatTypeMatch  = "meat_type_match"
	FactorLowSodium      = "low_sodium"
	FactorHighProtein    = "high_protein"
	FactorLowFat         = "low_fat"
	FactorLowCarbs       = "low_carbs"
	FactorExcludeIngr    = "exclude_ingredients"
	FactorRiskPreference = "risk_preference_match"
	FactorProductType    = "product_type_match"
	FactorKeywordMatch   = "keyword_match"
)

// RankingFactors maps factor names to "this predicate was active".
// It has no identity of its own and is recomputed per search.
type RankingFactors map[string]bool
