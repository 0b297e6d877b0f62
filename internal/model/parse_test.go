package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEligibility(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected []string
	}{
		{
			name:     "array of strings",
			raw:      `["Nonprofits", "Small businesses"]`,
			expected: []string{"Nonprofits", "Small businesses"},
		},
		{
			name:     "object with tags",
			raw:      `{"tags": ["501(c)(3)", "Universities"]}`,
			expected: []string{"501(c)(3)", "Universities"},
		},
		{
			name:     "comma separated string",
			raw:      `"Nonprofits, Small businesses, Farmers"`,
			expected: []string{"Nonprofits", "Small businesses", "Farmers"},
		},
		{
			name:     "array entries trimmed and blanks dropped",
			raw:      `["  Nonprofits ", "", "  "]`,
			expected: []string{"Nonprofits"},
		},
		{
			name:     "empty payload",
			raw:      "",
			expected: nil,
		},
		{
			name:     "malformed json",
			raw:      `{"tags": 42}`,
			expected: nil,
		},
		{
			name:     "number",
			raw:      `17`,
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseEligibility(json.RawMessage(tt.raw)))
		})
	}
}

func TestParseLocations(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected []Location
	}{
		{
			name:     "typed objects",
			raw:      `[{"type": "state", "value": "CA"}, {"type": "national"}]`,
			expected: []Location{{Type: LocationState, Value: "CA"}, {Type: LocationNational}},
		},
		{
			name:     "state entry without value dropped",
			raw:      `[{"type": "state", "value": "  "}, {"type": "state", "value": "TX"}]`,
			expected: []Location{{Type: LocationState, Value: "TX"}},
		},
		{
			name:     "array of plain codes",
			raw:      `["CA", "TX"]`,
			expected: []Location{{Type: LocationState, Value: "CA"}, {Type: LocationState, Value: "TX"}},
		},
		{
			name:     "nationwide string maps to national",
			raw:      `"Nationwide"`,
			expected: []Location{{Type: LocationNational}},
		},
		{
			name:     "us string maps to national",
			raw:      `["US"]`,
			expected: []Location{{Type: LocationNational}},
		},
		{
			name:     "single state string",
			raw:      `"OH"`,
			expected: []Location{{Type: LocationState, Value: "OH"}},
		},
		{
			name:     "empty payload",
			raw:      "",
			expected: nil,
		},
		{
			name:     "malformed json",
			raw:      `{"whatever": true}`,
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLocations(json.RawMessage(tt.raw)))
		})
	}
}

func TestGrantRecord_Normalize(t *testing.T) {
	updated := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

	rec := &GrantRecord{
		ID:           "grant-1",
		Title:        "Rural Broadband Expansion",
		Sponsor:      "USDA",
		Categories:   []string{"Infrastructure"},
		Eligibility:  json.RawMessage(`["Small businesses", "Municipalities"]`),
		Locations:    json.RawMessage(`["TX", "OK"]`),
		AmountMin:    50_000,
		AmountMax:    500_000,
		DeadlineDate: "2025-09-30",
		URL:          "  https://grants.example.gov/broadband  ",
		Status:       GrantStatusOpen,
		QualityScore: 0.9,
		UpdatedAt:    updated,
	}

	g := rec.Normalize()

	assert.Equal(t, "grant-1", g.ID)
	assert.Equal(t, []string{"Small businesses", "Municipalities"}, g.EligibilityTags)
	assert.Equal(t, []Location{{Type: LocationState, Value: "TX"}, {Type: LocationState, Value: "OK"}}, g.Locations)
	assert.Equal(t, "https://grants.example.gov/broadband", g.URL)
	assert.Equal(t, updated, g.UpdatedAt)

	require.NotNil(t, g.DeadlineDate)
	assert.Equal(t, time.Date(2025, 9, 30, 0, 0, 0, 0, time.UTC), *g.DeadlineDate)
}

func TestGrantRecord_Normalize_DeadlineFormats(t *testing.T) {
	tests := []struct {
		name     string
		deadline string
		want     *time.Time
	}{
		{
			name:     "rfc3339",
			deadline: "2025-09-30T23:59:59Z",
			want:     timePtr(time.Date(2025, 9, 30, 23, 59, 59, 0, time.UTC)),
		},
		{
			name:     "date only",
			deadline: "2025-09-30",
			want:     timePtr(time.Date(2025, 9, 30, 0, 0, 0, 0, time.UTC)),
		},
		{
			name:     "unparseable stays nil",
			deadline: "September 30, 2025",
			want:     nil,
		},
		{
			name:     "empty stays nil",
			deadline: "",
			want:     nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &GrantRecord{ID: "g", Title: "t", DeadlineDate: tt.deadline}
			g := rec.Normalize()
			if tt.want == nil {
				assert.Nil(t, g.DeadlineDate)
			} else {
				require.NotNil(t, g.DeadlineDate)
				assert.True(t, tt.want.Equal(*g.DeadlineDate))
			}
		})
	}
}

func TestGrantRecord_Normalize_MalformedPayloadsDegrade(t *testing.T) {
	rec := &GrantRecord{
		ID:          "grant-2",
		Title:       "Community Arts Fund",
		Eligibility: json.RawMessage(`{{not json`),
		Locations:   json.RawMessage(`{"oops": 1}`),
	}

	g := rec.Normalize()

	assert.Empty(t, g.EligibilityTags)
	assert.Empty(t, g.Locations)
}

func timePtr(t time.Time) *time.Time { return &t }
