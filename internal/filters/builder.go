// Package filters translates a parsed search intent into SQL predicates
// over the product catalog, plus the ranking factors the scorer consults.
package filters

import (
	"strings"

	"github.com/meatwise/search-service/internal/models"
)

// Filter is a conjunction of predicate groups. Fragments use `?`
// placeholders; the store rebinds them for the live driver.
type Filter struct {
	conds []string
	args  []any
}

// WhereClause joins all groups with AND. An empty filter yields an empty
// clause and no args (unfiltered scan).
func (f *Filter) WhereClause() (string, []any) {
	if len(f.conds) == 0 {
		return "", nil
	}
	return strings.Join(f.conds, " AND "), f.args
}

// Empty reports whether no predicate was produced.
func (f *Filter) Empty() bool {
	return len(f.conds) == 0
}

func (f *Filter) add(cond string, args ...any) {
	f.conds = append(f.conds, cond)
	f.args = append(f.args, args...)
}

// likePattern wraps a user-supplied substring for ILIKE, escaping the
// pattern metacharacters so "100%" matches literally.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

// textMatch builds an OR of case-insensitive substring tests for term
// across the given columns.
func textMatch(term string, columns ...string) (string, []any) {
	parts := make([]string, len(columns))
	args := make([]any, len(columns))
	for i, col := range columns {
		parts[i] = col + " ILIKE ?"
		args[i] = likePattern(term)
	}
	return "(" + strings.Join(parts, " OR ") + ")", args
}

// Builder is pure and deterministic: the same intent and capabilities
// always produce the same filter and factors.
type Builder struct{}

func NewBuilder() *Builder {
	return &Builder{}
}

// Build produces the catalog filter for the intent. Each triggered rule
// contributes one top-level AND group and flips its ranking factor.
// Nutrition rules are skipped when the schema lacks the column.
func (b *Builder) Build(intent *models.SearchIntent, caps models.SchemaCapabilities) (*Filter, models.RankingFactors) {
	f := &Filter{}
	factors := models.RankingFactors{}

	b.addMeatTypes(f, factors, intent)
	b.addNutrition(f, factors, intent, caps)
	b.addHealthPreferences(f, factors, intent)
	b.addExclusions(f, factors, intent)
	b.addRisk(f, factors, intent)
	b.addProductTypes(f, factors, intent)
	b.addKeywords(f, factors, intent)

	return f, factors
}

func (b *Builder) addMeatTypes(f *Filter, factors models.RankingFactors, intent *models.SearchIntent) {
	if len(intent.MeatTypes) == 0 {
		return
	}
	placeholders := make([]string, len(intent.MeatTypes))
	args := make([]any, len(intent.MeatTypes))
	for i, mt := range intent.MeatTypes {
		placeholders[i] = "?"
		args[i] = strings.ToLower(mt)
	}
	f.add("LOWER(meat_type) IN ("+strings.Join(placeholders, ", ")+")", args...)
	factors[models.FactorMeatTypeMatch] = true
}

// nutritionRule ties a constraint name to its column, comparison and factor.
type nutritionRule struct {
	column string
	op     string
	factor string
	has    func(models.SchemaCapabilities) bool
}

// nutritionRules is ordered: the order fixes both predicate emission and
// the scorer's matched-term ordering for nutrition bonuses.
var nutritionRules = []struct {
	name string
	rule nutritionRule
}{
	{models.ConstraintMaxSalt, nutritionRule{"salt", "<=", models.FactorLowSodium, func(c models.SchemaCapabilities) bool { return c.HasSalt }}},
	{models.ConstraintMinProt, nutritionRule{"protein", ">=", models.FactorHighProtein, func(c models.SchemaCapabilities) bool { return c.HasProtein }}},
	{models.ConstraintMaxFat, nutritionRule{"fat", "<=", models.FactorLowFat, func(c models.SchemaCapabilities) bool { return c.HasFat }}},
	{models.ConstraintMaxCarbs, nutritionRule{"carbohydrates", "<=", models.FactorLowCarbs, func(c models.SchemaCapabilities) bool { return c.HasCarbohydrates }}},
}

func (b *Builder) addNutrition(f *Filter, factors models.RankingFactors, intent *models.SearchIntent, caps models.SchemaCapabilities) {
	for _, nr := range nutritionRules {
		value, ok := intent.NutritionalConstraints[nr.name]
		if !ok {
			continue
		}
		if !nr.rule.has(caps) {
			// Schema drift: the column is gone, so the constraint
			// silently becomes a no-op rather than a query error.
			continue
		}
		f.add(nr.rule.column+" "+nr.rule.op+" ?", value)
		factors[nr.rule.factor] = true
	}
}

// addHealthPreferences OR-combines every requested preference into one
// group: a product matching any preference passes. This is deliberately
// permissive filtering, not strict.
func (b *Builder) addHealthPreferences(f *Filter, factors models.RankingFactors, intent *models.SearchIntent) {
	var parts []string
	var args []any

	for _, pref := range intent.HealthPreferences {
		switch pref {
		case models.PrefOrganic:
			cond, a := textMatch("organic", "name", "description", "ingredients_text")
			parts = append(parts, cond)
			args = append(args, a...)
		case models.PrefGrassFed:
			cond, a := textMatch("grass-fed", "name", "description", "ingredients_text")
			parts = append(parts, cond)
			args = append(args, a...)
		case models.PrefAntibioticFree:
			cond, a := textMatch("antibiotic", "name", "description", "ingredients_text")
			parts = append(parts, cond)
			args = append(args, a...)
		case models.PrefHormoneFree:
			cond, a := textMatch("hormone", "name", "description", "ingredients_text")
			parts = append(parts, cond)
			args = append(args, a...)
		case models.PrefPreservativeFree:
			parts = append(parts, "(ingredients_text ILIKE ? OR COALESCE(ingredients_text, '') NOT ILIKE ?)")
			args = append(args, likePattern("no preservative"), likePattern("preservative"))
		case models.PrefNitriteFree:
			parts = append(parts, "COALESCE(ingredients_text, '') NOT ILIKE ?")
			args = append(args, likePattern("nitrite"))
		default:
			continue
		}
		factors[pref] = true
	}

	if len(parts) == 0 {
		return
	}
	f.add("("+strings.Join(parts, " OR ")+")", args...)
}

// exclusionAliases lists extra substrings an exclusion also rules out.
var exclusionAliases = map[string][]string{
	"sugar": {"corn syrup"},
	"msg":   {"monosodium glutamate"},
}

// addExclusions AND-combines negated substring tests: every requested
// exclusion must independently hold. Products with no ingredient list
// are not excluded.
func (b *Builder) addExclusions(f *Filter, factors models.RankingFactors, intent *models.SearchIntent) {
	if len(intent.ExcludeIngredients) == 0 {
		return
	}

	for _, ingr := range intent.ExcludeIngredients {
		terms := append([]string{ingr}, exclusionAliases[strings.ToLower(ingr)]...)
		for _, term := range terms {
			f.add("COALESCE(ingredients_text, '') NOT ILIKE ?", likePattern(term))
		}
	}
	factors[models.FactorExcludeIngr] = true
}

func (b *Builder) addRisk(f *Filter, factors models.RankingFactors, intent *models.SearchIntent) {
	if intent.RiskPreference == "" {
		return
	}
	f.add("risk_rating = ?", intent.RiskPreference)
	factors[models.FactorRiskPreference] = true
}

func (b *Builder) addProductTypes(f *Filter, factors models.RankingFactors, intent *models.SearchIntent) {
	if len(intent.ProductTypes) == 0 {
		return
	}
	parts := make([]string, len(intent.ProductTypes))
	args := make([]any, len(intent.ProductTypes))
	for i, pt := range intent.ProductTypes {
		parts[i] = "name ILIKE ?"
		args[i] = likePattern(pt)
	}
	f.add("("+strings.Join(parts, " OR ")+")", args...)
	factors[models.FactorProductType] = true
}

func (b *Builder) addKeywords(f *Filter, factors models.RankingFactors, intent *models.SearchIntent) {
	var parts []string
	var args []any

	for _, kw := range intent.Keywords {
		if len(kw) <= 2 {
			continue
		}
		cond, a := textMatch(kw, "name", "description", "ingredients_text")
		parts = append(parts, cond)
		args = append(args, a...)
	}

	if len(parts) == 0 {
		return
	}
	f.add("("+strings.Join(parts, " OR ")+")", args...)
	factors[models.FactorKeywordMatch] = true
}
