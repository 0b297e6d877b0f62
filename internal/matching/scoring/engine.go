// Package scoring computes the deterministic 0-100 fit score for a
// (profile, grant) pair that already passed hard filtering. The score is
// purely a function of its inputs: no randomness, no network I/O. That
// reproducibility is what makes cached scores valid across requests.
package scoring

import (
	"fmt"
	"math"
	"strings"
	"time"

	"grantmatch/internal/model"
	"grantmatch/internal/taxonomy"
)

// Component weights. The seven components sum to 100.
const (
	MaxEntityPoints      = 20.0
	MaxIndustryPoints    = 25.0
	MaxGeographyPoints   = 15.0
	MaxSizePoints        = 10.0
	MaxPurposePoints     = 15.0
	MaxPreferencesPoints = 10.0
	MaxQualityPoints     = 5.0
)

const maxReasons = 5

// Confidence reflects how complete the profile is, independent of any
// grant property.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Tier is the coarse human-facing label derived from the total score.
type Tier string

const (
	TierExcellent Tier = "excellent"
	TierGood      Tier = "good"
	TierFair      Tier = "fair"
	TierLow       Tier = "low"
)

// Breakdown holds the per-component points that sum to the total score.
type Breakdown struct {
	Entity      float64 `json:"entity"`
	Industry    float64 `json:"industry"`
	Geography   float64 `json:"geography"`
	Size        float64 `json:"size"`
	Purpose     float64 `json:"purpose"`
	Preferences float64 `json:"preferences"`
	Quality     float64 `json:"quality"`
}

// Result is the full scoring outcome for one (profile, grant) pair.
type Result struct {
	TotalScore int        `json:"totalScore"`
	Breakdown  Breakdown  `json:"breakdown"`
	Reasons    []string   `json:"matchReasons"`
	Warnings   []string   `json:"warnings,omitempty"`
	Confidence Confidence `json:"confidenceLevel"`
	Tier       Tier       `json:"tier"`
}

// ScoredGrant pairs a grant with its scoring result for batch operations.
type ScoredGrant struct {
	Grant  *model.Grant `json:"grant"`
	Result *Result      `json:"result"`
}

// Engine computes scores. The clock is injectable so deadline-relative
// scoring is reproducible in tests.
type Engine struct {
	now func() time.Time
}

func NewEngine() *Engine {
	return &Engine{now: time.Now}
}

// CalculateScore computes the weighted fit score for one pair. Identical
// inputs always produce an identical result, ordered reasons included.
func (e *Engine) CalculateScore(p *model.UserProfile, g *model.Grant) *Result {
	var reasons, warnings []string
	addReason := func(r string) {
		if r != "" {
			reasons = append(reasons, r)
		}
	}

	entity, reason := scoreEntity(p, g)
	addReason(reason)

	industry, industryReasons := scoreIndustry(p, g)
	for _, r := range industryReasons {
		addReason(r)
	}

	geography, reason := scoreGeography(p, g)
	addReason(reason)

	size, reason, warning := scoreSize(p, g)
	addReason(reason)
	if warning != "" {
		warnings = append(warnings, warning)
	}

	purpose, reason := scorePurpose(p, g)
	addReason(reason)

	prefs, reason := scorePreferences(p, g, e.now())
	addReason(reason)

	quality := scoreQuality(g)

	breakdown := Breakdown{
		Entity:      entity,
		Industry:    industry,
		Geography:   geography,
		Size:        size,
		Purpose:     purpose,
		Preferences: prefs,
		Quality:     quality,
	}

	total := int(math.Round(entity + industry + geography + size + purpose + prefs + quality))
	if total < 0 {
		total = 0
	}
	if total > 100 {
		total = 100
	}

	if len(reasons) > maxReasons {
		reasons = reasons[:maxReasons]
	}

	return &Result{
		TotalScore: total,
		Breakdown:  breakdown,
		Reasons:    reasons,
		Warnings:   warnings,
		Confidence: confidenceFor(p),
		Tier:       tierFor(total),
	}
}

func scoreEntity(p *model.UserProfile, g *model.Grant) (float64, string) {
	if p.EntityType == "" {
		return MaxEntityPoints * 0.5, ""
	}
	if len(g.EligibilityTags) == 0 {
		return MaxEntityPoints * 0.8, "Open eligibility means most applicant types can apply"
	}

	userTags := taxonomy.EntityToEligibilityTags[p.EntityType]
	substringMatch := false
	for _, grantTag := range g.EligibilityTags {
		gt := normalizeTag(grantTag)
		for _, userTag := range userTags {
			ut := normalizeTag(userTag)
			if gt == ut {
				return MaxEntityPoints, fmt.Sprintf("Explicitly open to %s applicants", entityLabel(p.EntityType))
			}
			if strings.Contains(gt, ut) || strings.Contains(ut, gt) {
				substringMatch = true
			}
		}
	}
	if substringMatch {
		return MaxEntityPoints * 0.75, fmt.Sprintf("Your organization type (%s) appears eligible", entityLabel(p.EntityType))
	}
	return MaxEntityPoints * 0.2, ""
}

// scoreIndustry counts, per user tag, either a category-table hit or a
// positive-keyword hit with at least two occurrences. It is the only
// component allowed more than one reason.
func scoreIndustry(p *model.UserProfile, g *model.Grant) (float64, []string) {
	if len(p.IndustryTags) == 0 {
		return MaxIndustryPoints * 0.5, nil
	}

	grantIndustries := make(map[string]bool)
	for _, category := range g.Categories {
		for _, industry := range taxonomy.IndustriesForCategory(category) {
			grantIndustries[industry] = true
		}
	}

	text := g.SearchText()
	matches := 0
	var matched []string
	for _, tag := range p.IndustryTags {
		if grantIndustries[tag] {
			matches++
			matched = append(matched, tag)
			continue
		}
		if taxonomy.CountKeywordMatches(text, taxonomy.IndustryPositiveKeywords[tag]) >= 2 {
			matches++
			matched = append(matched, tag)
		}
	}

	var points float64
	switch {
	case matches >= 3:
		points = MaxIndustryPoints
	case matches == 2:
		points = MaxIndustryPoints * 0.85
	case matches == 1:
		points = MaxIndustryPoints * 0.6
	default:
		points = MaxIndustryPoints * 0.1
	}

	var reasons []string
	if matches >= 1 {
		for _, tag := range matched {
			reasons = append(reasons, fmt.Sprintf("Strong fit with your %s focus", industryLabel(tag)))
		}
	}
	return points, reasons
}

func scoreGeography(p *model.UserProfile, g *model.Grant) (float64, string) {
	if len(g.Locations) == 0 {
		return MaxGeographyPoints * 0.8, ""
	}

	var states []string
	for _, loc := range g.Locations {
		if strings.EqualFold(loc.Type, model.LocationNational) {
			return MaxGeographyPoints * 0.85, "Available nationwide"
		}
		if code := taxonomy.NormalizeState(loc.Value); code != "" {
			states = append(states, code)
		}
	}
	if len(states) == 0 {
		return MaxGeographyPoints * 0.8, ""
	}

	if p.State == "" {
		return MaxGeographyPoints * 0.5, ""
	}

	userState := taxonomy.NormalizeState(p.State)
	for _, s := range states {
		if s == userState {
			return MaxGeographyPoints, fmt.Sprintf("Available in your state (%s)", userState)
		}
	}
	return MaxGeographyPoints * 0.4, ""
}

func scoreSize(p *model.UserProfile, g *model.Grant) (float64, string, string) {
	grantSize := taxonomy.GetGrantSizeCategory(g.AmountMin, g.AmountMax)

	if p.Preferences.PreferredSize != "" {
		if p.Preferences.PreferredSize == string(grantSize) {
			return MaxSizePoints, fmt.Sprintf("Grant size matches your preference (%s)", grantSize), ""
		}
		return MaxSizePoints * 0.5, "", ""
	}

	if p.AnnualBudget == "" {
		return MaxSizePoints * 0.5, "", ""
	}

	appropriate := taxonomy.BudgetToGrantSize[p.AnnualBudget]
	for _, s := range appropriate {
		if s == grantSize {
			return MaxSizePoints * 0.8, "Grant size fits your organization's budget", ""
		}
	}
	if grantSize == taxonomy.SizeLarge && taxonomy.SmallBudgetBands[p.AnnualBudget] {
		return MaxSizePoints * 0.4, "", "Large grants often require significant administrative capacity and matching funds"
	}
	return MaxSizePoints * 0.5, "", ""
}

func scorePurpose(p *model.UserProfile, g *model.Grant) (float64, string) {
	if len(g.PurposeTags) == 0 || len(p.Goals) == 0 {
		return MaxPurposePoints * 0.5, ""
	}

	userPurposes := taxonomy.PurposesForGoals(p.Goals)
	grantPurposes := make(map[string]bool, len(g.PurposeTags))
	for _, t := range g.PurposeTags {
		grantPurposes[normalizeTag(t)] = true
	}

	overlap := 0
	for _, purpose := range userPurposes {
		if grantPurposes[normalizeTag(purpose)] {
			overlap++
		}
	}

	switch {
	case overlap >= 2:
		return MaxPurposePoints, "Funds several of your stated goals"
	case overlap == 1:
		return MaxPurposePoints * 0.8, "Funds one of your stated goals"
	default:
		return MaxPurposePoints * 0.3, ""
	}
}

func scorePreferences(p *model.UserProfile, g *model.Grant, now time.Time) (float64, string) {
	points := MaxPreferencesPoints * 0.5
	reason := ""

	if p.Preferences.Timeline != "" && g.DeadlineDate != nil {
		days := g.DaysUntilDeadline(now)
		switch p.Preferences.Timeline {
		case model.TimelineImmediate:
			if days <= 60 {
				points += 3
				reason = "Deadline fits your immediate timeline"
			}
		case model.TimelineQuarter:
			if days <= 180 {
				points += 2
			}
		case model.TimelineFlexible:
			points += 2
		case model.TimelineYear:
			points += 1
		}
	}

	if points > MaxPreferencesPoints {
		points = MaxPreferencesPoints
	}
	return points, reason
}

func scoreQuality(g *model.Grant) float64 {
	q := g.QualityScore
	if q > 1 {
		q = q / 100
	}
	if q < 0 {
		q = 0
	}
	if q > 1 {
		q = 1
	}
	return math.Round(q * MaxQualityPoints)
}

func confidenceFor(p *model.UserProfile) Confidence {
	switch count := p.CompletenessCount(); {
	case count >= 4:
		return ConfidenceHigh
	case count >= 2:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

func tierFor(total int) Tier {
	switch {
	case total >= 80:
		return TierExcellent
	case total >= 60:
		return TierGood
	case total >= 40:
		return TierFair
	default:
		return TierLow
	}
}

func normalizeTag(tag string) string {
	return strings.Join(strings.Fields(strings.ToLower(tag)), " ")
}

func entityLabel(t model.EntityType) string {
	return strings.ReplaceAll(string(t), "_", " ")
}

func industryLabel(tag string) string {
	return strings.ReplaceAll(tag, "_", " ")
}
