// Package scoring ranks fetched products against the intent that
// selected them. Scoring is pure and deterministic; bonuses only
// accumulate, never subtract.
package scoring

import (
	"strings"

	"github.com/meatwise/search-service/internal/models"
)

// Fixed bonus values. These are load-bearing for result ordering; change
// them and cached batch groups rank differently than fresh ones.
const (
	meatTypeBonus   = 20
	saltBonus       = 15
	proteinBonus    = 15
	fatBonus        = 10
	carbsBonus      = 10
	keywordBonus    = 10
	organicBonus    = 15
	grassFedBonus   = 15
	riskGreenBonus  = 5
	riskYellowBonus = 2
)

type Scorer struct{}

func NewScorer() *Scorer {
	return &Scorer{}
}

// Score computes the integer match score and the matched-term tags for
// one product. Tags are appended in fixed rule order: meat type, then
// nutrition constraints in declared order, then keywords, then health
// preferences, then the risk bonus. A ranking factor gates each bonus:
// constraints that never reached the query cannot award points. Nil
// nutrition values never satisfy a constraint.
func (s *Scorer) Score(p *models.Product, intent *models.SearchIntent, factors models.RankingFactors) (int, []string) {
	score := 0
	matched := []string{}

	if factors[models.FactorMeatTypeMatch] {
		meat := strings.ToLower(p.MeatType)
		for _, want := range intent.MeatTypes {
			if meat == strings.ToLower(want) {
				score += meatTypeBonus
				matched = append(matched, meat)
				break
			}
		}
	}

	if factors[models.FactorLowSodium] {
		if max, ok := intent.NutritionalConstraints[models.ConstraintMaxSalt]; ok && p.Salt != nil && *p.Salt <= max {
			score += saltBonus
			matched = append(matched, "low sodium")
		}
	}
	if factors[models.FactorHighProtein] {
		if min, ok := intent.NutritionalConstraints[models.ConstraintMinProt]; ok && p.Protein != nil && *p.Protein >= min {
			score += proteinBonus
			matched = append(matched, "high protein")
		}
	}
	if factors[models.FactorLowFat] {
		if max, ok := intent.NutritionalConstraints[models.ConstraintMaxFat]; ok && p.Fat != nil && *p.Fat <= max {
			score += fatBonus
			matched = append(matched, "low fat")
		}
	}
	if factors[models.FactorLowCarbs] {
		if max, ok := intent.NutritionalConstraints[models.ConstraintMaxCarbs]; ok && p.Carbohydrates != nil && *p.Carbohydrates <= max {
			score += carbsBonus
			matched = append(matched, "low carbs")
		}
	}

	if factors[models.FactorKeywordMatch] {
		name := strings.ToLower(p.Name)
		for _, kw := range intent.Keywords {
			if len(kw) <= 2 {
				continue
			}
			if strings.Contains(name, strings.ToLower(kw)) {
				score += keywordBonus
				matched = append(matched, kw)
			}
		}
	}

	desc := strings.ToLower(p.Description)
	for _, pref := range intent.HealthPreferences {
		switch pref {
		case models.PrefOrganic:
			if factors[models.PrefOrganic] && strings.Contains(desc, "organic") {
				score += organicBonus
				matched = append(matched, "organic")
			}
		case models.PrefGrassFed:
			if factors[models.PrefGrassFed] && strings.Contains(desc, "grass-fed") {
				score += grassFedBonus
				matched = append(matched, "grass-fed")
			}
		}
	}

	// Risk bonus applies unconditionally so an empty intent still ranks
	// Green products above Yellow ones. Red and unrated add nothing.
	if p.RiskRating != nil {
		switch *p.RiskRating {
		case models.RiskGreen:
			score += riskGreenBonus
			matched = append(matched, "low risk")
		case models.RiskYellow:
			score += riskYellowBonus
			matched = append(matched, "moderate risk")
		}
	}

	return score, matched
}
