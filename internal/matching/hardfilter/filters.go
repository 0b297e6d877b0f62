// Package hardfilter is the binary eligibility gate that runs before
// scoring. A grant that fails any filter is never scored or shown,
// regardless of how well it would have scored.
package hardfilter

import (
	"fmt"
	"strings"

	"grantmatch/internal/model"
	"grantmatch/internal/taxonomy"
)

// Result is the outcome of running the filters for one (profile, grant)
// pair. Reason is human-readable and suitable for direct display.
type Result struct {
	Passes bool   `json:"passes"`
	Filter string `json:"filter,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Options control which filters run. Strict discovery uses defaults;
// the orchestrator relaxes RequireURL as a fallback tier when the strict
// pass yields nothing.
type Options struct {
	RequireURL        bool
	InstitutionFilter bool
}

// DefaultOptions returns the strict filter configuration.
func DefaultOptions() Options {
	return Options{RequireURL: true, InstitutionFilter: true}
}

// Filter names, used for metrics and the result's Filter field.
const (
	FilterURL               = "url"
	FilterInstitutionOnly   = "institution_only"
	FilterExplicitExclusion = "explicit_exclusion"
	FilterEntityEligibility = "entity_eligibility"
	FilterGeography         = "geography"
	FilterIndustry          = "industry"
)

type check struct {
	name string
	run  func(p *model.UserProfile, g *model.Grant) (bool, string)
}

// Run applies the filters in fixed order, short-circuiting on the first
// failure. The order matters for the reason shown to the user, not for
// correctness.
func Run(p *model.UserProfile, g *model.Grant, opts Options) Result {
	for _, c := range checks(opts) {
		if pass, reason := c.run(p, g); !pass {
			return Result{Passes: false, Filter: c.name, Reason: reason}
		}
	}
	return Result{Passes: true}
}

func checks(opts Options) []check {
	out := make([]check, 0, 6)
	if opts.RequireURL {
		out = append(out, check{FilterURL, checkURL})
	}
	if opts.InstitutionFilter {
		out = append(out, check{FilterInstitutionOnly, checkInstitutionOnly})
	}
	out = append(out,
		check{FilterExplicitExclusion, checkExplicitExclusion},
		check{FilterEntityEligibility, checkEntityEligibility},
		check{FilterGeography, checkGeography},
		check{FilterIndustry, checkIndustry},
	)
	return out
}

func checkURL(_ *model.UserProfile, g *model.Grant) (bool, string) {
	if strings.TrimSpace(g.URL) == "" {
		return false, "This grant has no application link available"
	}
	return true, ""
}

// checkInstitutionOnly drops grants aimed exclusively at large
// institutions, but only for small-entity applicants. A small-entity
// positive keyword in the same text rescues the grant.
func checkInstitutionOnly(p *model.UserProfile, g *model.Grant) (bool, string) {
	if !taxonomy.SmallEntityTypes[p.EntityType] {
		return true, ""
	}

	text := g.EligibilityText()
	if !taxonomy.ContainsKeywords(text, taxonomy.InstitutionOnlyKeywords) {
		return true, ""
	}
	if taxonomy.ContainsKeywords(text, taxonomy.SmallEntityPositiveKeywords) {
		return true, ""
	}

	return false, "This grant appears limited to large institutions such as research universities or state agencies"
}

func checkExplicitExclusion(p *model.UserProfile, g *model.Grant) (bool, string) {
	if p.EntityType == "" {
		return true, ""
	}

	phrases := taxonomy.EntityExclusionPhrases[p.EntityType]
	if len(phrases) == 0 {
		return true, ""
	}

	text := g.EligibilityText()
	for _, phrase := range phrases {
		if strings.Contains(text, phrase) {
			return false, fmt.Sprintf("This grant explicitly excludes %s applicants (%q)", entityLabel(p.EntityType), phrase)
		}
	}
	return true, ""
}

// checkEntityEligibility requires overlap between the grant's declared
// eligibility tags and the tags the user's entity type maps to. Grants
// with no declared tags pass open.
func checkEntityEligibility(p *model.UserProfile, g *model.Grant) (bool, string) {
	if p.EntityType == "" || len(g.EligibilityTags) == 0 {
		return true, ""
	}

	userTags := taxonomy.EntityToEligibilityTags[p.EntityType]
	for _, grantTag := range g.EligibilityTags {
		gt := normalizeTag(grantTag)
		for _, userTag := range userTags {
			ut := normalizeTag(userTag)
			if gt == ut || strings.Contains(gt, ut) || strings.Contains(ut, gt) {
				return true, ""
			}
		}
	}

	return false, fmt.Sprintf("Eligibility is limited to %s, which doesn't include %s applicants",
		strings.Join(g.EligibilityTags, ", "), entityLabel(p.EntityType))
}

// checkGeography passes grants with no restriction or a national scope,
// and otherwise requires an exact state match. Users with no state set
// pass; scoring handles the uncertainty.
func checkGeography(p *model.UserProfile, g *model.Grant) (bool, string) {
	if len(g.Locations) == 0 {
		return true, ""
	}

	var states []string
	for _, loc := range g.Locations {
		if strings.EqualFold(loc.Type, model.LocationNational) {
			return true, ""
		}
		if code := taxonomy.NormalizeState(loc.Value); code != "" {
			states = append(states, code)
		}
	}
	if len(states) == 0 {
		return true, ""
	}

	if p.State == "" {
		return true, ""
	}

	userState := taxonomy.NormalizeState(p.State)
	for _, s := range states {
		if s == userState {
			return true, ""
		}
	}

	return false, fmt.Sprintf("This grant is limited to %s, but your profile is in %s",
		strings.Join(states, ", "), userState)
}

// checkIndustry requires some signal that the grant relates to at least
// one of the user's declared industries: category-table overlap or
// positive keywords. Exclusion phrases are masked out of the text before
// the keyword scan so "wind farm" never counts as an agriculture signal.
func checkIndustry(p *model.UserProfile, g *model.Grant) (bool, string) {
	if len(p.IndustryTags) == 0 {
		return true, ""
	}

	for _, category := range g.Categories {
		for _, industry := range taxonomy.IndustriesForCategory(category) {
			for _, tag := range p.IndustryTags {
				if industry == tag {
					return true, ""
				}
			}
		}
	}

	text := g.SearchText()
	excluded := false
	for _, tag := range p.IndustryTags {
		masked := text
		if exclusions := taxonomy.IndustryExclusionKeywords[tag]; len(exclusions) > 0 &&
			taxonomy.ContainsKeywords(text, exclusions) {
			excluded = true
			masked = maskPhrases(text, exclusions)
		}
		if taxonomy.ContainsKeywords(masked, taxonomy.IndustryPositiveKeywords[tag]) {
			return true, ""
		}
	}

	if excluded {
		return false, fmt.Sprintf("This grant mentions %s-adjacent terms but doesn't appear to be a %s grant",
			industryLabels(p.IndustryTags), industryLabels(p.IndustryTags))
	}
	return false, fmt.Sprintf("This grant doesn't appear related to %s", industryLabels(p.IndustryTags))
}

func maskPhrases(text string, phrases []string) string {
	for _, p := range phrases {
		text = strings.ReplaceAll(text, strings.ToLower(p), " ")
	}
	return text
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

func industryLabels(tags []string) string {
	labels := make([]string, len(tags))
	for i, t := range tags {
		labels[i] = industryLabel(t)
	}
	return strings.Join(labels, ", ")
}
