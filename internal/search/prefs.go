package search

// SortBy enumerates result orderings.
type SortBy string

const (
	SortRelevance SortBy = "relevance"
	SortPriceLow  SortBy = "price_low"
	SortPriceHigh SortBy = "price_high"
	SortYearNew   SortBy = "year_new"
	SortKMLow     SortBy = "km_low"
)

// Result cap bounds.
const (
	DefaultMaxResults = 5
	MaxResultsCap     = 20
)

// Preferences filter and shape one catalog search. Make and Model are free
// text and are fuzzy-resolved against the catalog; every other field is an
// exact predicate. Nil bounds mean "no constraint".
type Preferences struct {
	BudgetMin  *float64 `json:"budget_min,omitempty"`
	BudgetMax  *float64 `json:"budget_max,omitempty"`
	Make       string   `json:"make,omitempty"`
	Model      string   `json:"model,omitempty"`
	KMMax      *int     `json:"km_max,omitempty"`
	YearMin    *int     `json:"year_min,omitempty"`
	YearMax    *int     `json:"year_max,omitempty"`
	Features   []string `json:"features,omitempty"`
	SortBy     SortBy   `json:"sort_by,omitempty"`
	MaxResults int      `json:"max_results,omitempty"`
}

// Limit returns the effective result cap: DefaultMaxResults when unset,
// never more than MaxResultsCap.
func (p Preferences) Limit() int {
	if p.MaxResults <= 0 {
		return DefaultMaxResults
	}
	if p.MaxResults > MaxResultsCap {
		return MaxResultsCap
	}
	return p.MaxResults
}
