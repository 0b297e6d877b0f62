package model

// EntityType is the canonical category of the applying organization.
type EntityType string

const (
	EntityIndividual     EntityType = "individual"
	EntityNonprofit      EntityType = "nonprofit"
	EntitySmallBusiness  EntityType = "small_business"
	EntityForProfit      EntityType = "for_profit"
	EntityFarm           EntityType = "farm"
	EntityMunicipality   EntityType = "municipality"
	EntityTribal         EntityType = "tribal_government"
	EntityStateGov       EntityType = "state_government"
	EntityUniversity     EntityType = "university"
	EntitySchoolDistrict EntityType = "school_district"
)

// Timeline preference values.
const (
	TimelineImmediate = "immediate"
	TimelineQuarter   = "quarter"
	TimelineYear      = "year"
	TimelineFlexible  = "flexible"
)

// GrantPreferences holds the user's stated preferences about the grants
// they want to see.
type GrantPreferences struct {
	PreferredSize string `json:"preferredSize,omitempty"` // micro|small|medium|large
	Timeline      string `json:"timeline,omitempty"`      // immediate|quarter|year|flexible
	Complexity    string `json:"complexity,omitempty"`    // simple|moderate|complex
}

// UserProfile is the scoring-relevant view of one user. ProfileVersion
// increments on every mutation to a scoring-relevant field; the match
// cache relies on it as its sole invalidation token, so it must never
// decrease or be reused.
type UserProfile struct {
	UserID              string            `json:"userId"`
	Email               string            `json:"email,omitempty"`
	Phone               string            `json:"phone,omitempty"`
	EntityType          EntityType        `json:"entityType,omitempty"`
	State               string            `json:"state,omitempty"`
	IndustryTags        []string          `json:"industryTags,omitempty"`
	Goals               []string          `json:"goals,omitempty"`
	SizeBand            string            `json:"sizeBand,omitempty"`
	Stage               string            `json:"stage,omitempty"`
	AnnualBudget        string            `json:"annualBudget,omitempty"`
	IndustryAttributes  map[string]string `json:"industryAttributes,omitempty"`
	Preferences         GrantPreferences  `json:"grantPreferences"`
	OnboardingCompleted bool              `json:"onboardingCompleted"`
	ProfileVersion      int64             `json:"profileVersion"`
}

// CompletenessCount reports how many of the five profile dimensions used
// for match confidence are filled in: entity type, state, industry tags,
// size band or budget, preferred grant size.
func (p *UserProfile) CompletenessCount() int {
	count := 0
	if p.EntityType != "" {
		count++
	}
	if p.State != "" {
		count++
	}
	if len(p.IndustryTags) > 0 {
		count++
	}
	if p.SizeBand != "" || p.AnnualBudget != "" {
		count++
	}
	if p.Preferences.PreferredSize != "" {
		count++
	}
	return count
}
