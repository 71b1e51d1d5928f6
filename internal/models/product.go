package models

// Product is a read-only row from the product catalog. Nutrition fields
// and the boolean flags are nullable in the schema, so they are pointers
// here; a nil value never satisfies a numeric constraint.
type Product struct {
	Code            string `db:"code" json:"code"`
	Name            string `db:"name" json:"name"`
	Brand           string `db:"brand" json:"brand,omitempty"`
	Description     string `db:"description" json:"description,omitempty"`
	IngredientsText string `db:"ingredients_text" json:"ingredients_text,omitempty"`
	MeatType        string `db:"meat_type" json:"meat_type,omitempty"`

	Calories      *float64 `db:"calories" json:"calories,omitempty"`
	Protein       *float64 `db:"protein" json:"protein,omitempty"`
	Fat           *float64 `db:"fat" json:"fat,omitempty"`
	Carbohydrates *float64 `db:"carbohydrates" json:"carbohydrates,omitempty"`
	Salt          *float64 `db:"salt" json:"salt,omitempty"`

	// RiskRating is one of "Green", "Yellow", "Red" when set.
	RiskRating *string `db:"risk_rating" json:"risk_rating,omitempty"`

	AntibioticFree        *bool `db:"antibiotic_free" json:"antibiotic_free,omitempty"`
	HormoneFree           *bool `db:"hormone_free" json:"hormone_free,omitempty"`
	PastureRaised         *bool `db:"pasture_raised" json:"pasture_raised,omitempty"`
	ContainsPreservatives *bool `db:"contains_preservatives" json:"contains_preservatives,omitempty"`
}

// SchemaCapabilities records which optional nutrition columns the current
// product schema actually provides. The filter builder consults it before
// emitting a numeric predicate so a migration that drops a column degrades
// that constraint to a no-op instead of a query error.
type SchemaCapabilities struct {
	HasCalories      bool
	HasProtein       bool
	HasFat           bool
	HasCarbohydrates bool
	HasSalt          bool
}

// DefaultCapabilities describes the full reference schema.
func DefaultCapabilities() SchemaCapabilities {
	return SchemaCapabilities{
		HasCalories:      true,
		HasProtein:       true,
		HasFat:           true,
		HasCarbohydrates: true,
		HasSalt:          true,
	}
}

// ProductChangeEvent is published by catalog import jobs whenever a
// product row is created, updated or deleted.
type ProductChangeEvent struct {
	Type      string `json:"type"` // CREATE, UPDATE, DELETE
	Code      string `json:"code"`
	MeatType  string `json:"meat_type,omitempty"`
	Timestamp int64  `json:"timestamp"`
}
