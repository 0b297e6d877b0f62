package model

import (
	"encoding/json"
	"strings"
	"time"
)

// GrantRecord is the raw shape a grant arrives in from a source. The
// eligibility and locations fields are deliberately untyped: depending on
// the source they show up as a JSON string, an array of strings, or an
// object. Normalize is the single place that ambiguity is resolved; the
// filter and scoring code only ever sees the canonical Grant shape.
type GrantRecord struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	Sponsor      string          `json:"sponsor,omitempty"`
	Summary      string          `json:"summary,omitempty"`
	Description  string          `json:"description,omitempty"`
	Categories   []string        `json:"categories,omitempty"`
	Eligibility  json.RawMessage `json:"eligibility,omitempty"`
	PurposeTags  []string        `json:"purposeTags,omitempty"`
	Locations    json.RawMessage `json:"locations,omitempty"`
	AmountMin    float64         `json:"amountMin,omitempty"`
	AmountMax    float64         `json:"amountMax,omitempty"`
	AmountText   string          `json:"amountText,omitempty"`
	DeadlineDate string          `json:"deadlineDate,omitempty"`
	URL          string          `json:"url,omitempty"`
	Status       string          `json:"status,omitempty"`
	QualityScore float64         `json:"qualityScore,omitempty"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// Normalize converts a raw source record into the canonical Grant shape.
// Malformed eligibility or location payloads degrade to empty lists; a
// single bad grant must not abort scoring of the rest of the batch.
func (r *GrantRecord) Normalize() *Grant {
	g := &Grant{
		ID:           r.ID,
		Title:        r.Title,
		Sponsor:      r.Sponsor,
		Summary:      r.Summary,
		Description:  r.Description,
		Categories:   r.Categories,
		PurposeTags:  r.PurposeTags,
		AmountMin:    r.AmountMin,
		AmountMax:    r.AmountMax,
		AmountText:   r.AmountText,
		URL:          strings.TrimSpace(r.URL),
		Status:       r.Status,
		QualityScore: r.QualityScore,
		UpdatedAt:    r.UpdatedAt,
	}

	g.EligibilityTags = ParseEligibility(r.Eligibility)
	g.Locations = ParseLocations(r.Locations)

	if r.DeadlineDate != "" {
		if t, err := time.Parse(time.RFC3339, r.DeadlineDate); err == nil {
			g.DeadlineDate = &t
		} else if t, err := time.Parse("2006-01-02", r.DeadlineDate); err == nil {
			g.DeadlineDate = &t
		}
	}

	return g
}

// eligibilityObject is the object variant some sources use.
type eligibilityObject struct {
	Tags []string `json:"tags"`
}

// ParseEligibility resolves the three shapes eligibility arrives in:
// a plain string ("Nonprofits, Small businesses"), an array of strings,
// or an object with a tags field. Anything else yields an empty list.
func ParseEligibility(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}

	var tags []string
	if err := json.Unmarshal(raw, &tags); err == nil {
		return cleanStrings(tags)
	}

	var obj eligibilityObject
	if err := json.Unmarshal(raw, &obj); err == nil && len(obj.Tags) > 0 {
		return cleanStrings(obj.Tags)
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return cleanStrings(strings.Split(s, ","))
	}

	return nil
}

// ParseLocations resolves the location variants: an array of
// {type, value} objects, an array of plain state codes, or a single
// string. Anything else yields an empty list (no restriction).
func ParseLocations(raw json.RawMessage) []Location {
	if len(raw) == 0 {
		return nil
	}

	var locs []Location
	if err := json.Unmarshal(raw, &locs); err == nil {
		out := locs[:0]
		for _, l := range locs {
			if strings.TrimSpace(l.Value) == "" && !strings.EqualFold(l.Type, LocationNational) {
				continue
			}
			out = append(out, l)
		}
		return out
	}

	var values []string
	if err := json.Unmarshal(raw, &values); err == nil {
		return locationsFromStrings(values)
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return locationsFromStrings([]string{s})
	}

	return nil
}

func locationsFromStrings(values []string) []Location {
	out := make([]Location, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if strings.EqualFold(v, LocationNational) || strings.EqualFold(v, "nationwide") || strings.EqualFold(v, "us") {
			out = append(out, Location{Type: LocationNational})
			continue
		}
		out = append(out, Location{Type: LocationState, Value: v})
	}
	return out
}

func cleanStrings(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
