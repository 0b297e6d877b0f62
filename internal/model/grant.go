package model

import (
	"strings"
	"time"
)

// Location restriction types.
const (
	LocationNational = "national"
	LocationState    = "state"
	LocationCounty   = "county"
	LocationCity     = "city"
)

// Grant statuses as reported by sources.
const (
	GrantStatusOpen       = "open"
	GrantStatusClosed     = "closed"
	GrantStatusForecasted = "forecasted"
)

// Location is one geographic restriction on a grant.
type Location struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Grant is one funding opportunity as seen by the matching engine. The
// engine only reads grants; ingestion owns mutation and must refresh
// UpdatedAt whenever a scoring-relevant field changes, since the match
// cache uses it as the freshness token.
type Grant struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Sponsor         string     `json:"sponsor,omitempty"`
	Summary         string     `json:"summary,omitempty"`
	Description     string     `json:"description,omitempty"`
	Categories      []string   `json:"categories,omitempty"`
	EligibilityTags []string   `json:"eligibilityTags,omitempty"`
	PurposeTags     []string   `json:"purposeTags,omitempty"`
	Locations       []Location `json:"locations,omitempty"`
	AmountMin       float64    `json:"amountMin,omitempty"`
	AmountMax       float64    `json:"amountMax,omitempty"`
	AmountText      string     `json:"amountText,omitempty"`
	DeadlineDate    *time.Time `json:"deadlineDate,omitempty"`
	URL             string     `json:"url,omitempty"`
	Status          string     `json:"status,omitempty"`
	QualityScore    float64    `json:"qualityScore,omitempty"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// SearchText returns the lowercased text blob used for keyword checks:
// title, summary, description, eligibility tags and categories.
func (g *Grant) SearchText() string {
	parts := make([]string, 0, 5+len(g.EligibilityTags)+len(g.Categories))
	parts = append(parts, g.Title, g.Summary, g.Description)
	parts = append(parts, g.EligibilityTags...)
	parts = append(parts, g.Categories...)
	return strings.ToLower(strings.Join(parts, " "))
}

// EligibilityText returns the lowercased eligibility-focused text used by
// the institution and exclusion filters: eligibility tags plus title and
// summary.
func (g *Grant) EligibilityText() string {
	parts := make([]string, 0, 2+len(g.EligibilityTags))
	parts = append(parts, g.EligibilityTags...)
	parts = append(parts, g.Title, g.Summary)
	return strings.ToLower(strings.Join(parts, " "))
}

// DaysUntilDeadline returns the whole days between now and the grant's
// deadline, or -1 when no deadline is set.
func (g *Grant) DaysUntilDeadline(now time.Time) int {
	if g.DeadlineDate == nil {
		return -1
	}
	d := g.DeadlineDate.Sub(now)
	if d < 0 {
		return 0
	}
	return int(d.Hours() / 24)
}
