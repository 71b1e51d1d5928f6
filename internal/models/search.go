package models

// SearchRequest is a single free-text search call.
type SearchRequest struct {
	Query     string `json:"query"`
	Limit     int    `json:"limit"`
	Skip      int    `json:"skip"`
	RequestID string `json:"request_id,omitempty"`
}

// BatchSearchRequest resolves many intents together. Raw queries are
// parsed into intents first and appended to Intents before grouping.
type BatchSearchRequest struct {
	Queries       []string        `json:"queries,omitempty"`
	Intents       []*SearchIntent `json:"intents,omitempty"`
	LimitPerQuery int             `json:"limit_per_query"`
}

// ScoredProduct is one ranked result: the product's display fields plus
// the match score and the human-readable reasons it matched.
type ScoredProduct struct {
	Code         string   `json:"code"`
	Name         string   `json:"name"`
	Brand        string   `json:"brand,omitempty"`
	Description  string   `json:"description,omitempty"`
	MeatType     string   `json:"meat_type,omitempty"`
	RiskRating   string   `json:"risk_rating,omitempty"`
	Score        int      `json:"score"`
	MatchedTerms []string `json:"matched_terms"`
}

// Scored converts a fetched product row into its response form.
func Scored(p *Product, score int, matched []string) ScoredProduct {
	sp := ScoredProduct{
		Code:         p.Code,
		Name:         p.Name,
		Brand:        p.Brand,
		Description:  p.Description,
		MeatType:     p.MeatType,
		Score:        score,
		MatchedTerms: matched,
	}
	if p.RiskRating != nil {
		sp.RiskRating = *p.RiskRating
	}
	return sp
}

// SearchResponse is the ranked answer to one SearchRequest.
type SearchResponse struct {
	Results []ScoredProduct  `json:"results"`
	Total   int64            `json:"total"`
	Limit   int              `json:"limit"`
	Skip    int              `json:"skip"`
	TookMs  int64            `json:"took_ms"`
	Intent  *SearchIntent    `json:"intent,omitempty"`
	Meta    ResponseMetadata `json:"metadata"`
}

// BatchSearchResponse maps each intent's content key to its ranked slice.
type BatchSearchResponse struct {
	Results map[string][]ScoredProduct `json:"results"`
	TookMs  int64                      `json:"took_ms"`
}

// ResponseMetadata carries bookkeeping the HTTP layer exposes to clients.
type ResponseMetadata struct {
	RequestID string `json:"request_id,omitempty"`
	ParsedBy  string `json:"parsed_by,omitempty"` // "ai", "rules" or "cache"
	Overfetch int    `json:"overfetch,omitempty"`
}
