package taxonomy

import "strings"

// NormalizeToCanonical resolves a free-form input against a canonical
// list: case-insensitive exact match first, then the synonym table, then
// substring match in either direction. First match wins; no ambiguity
// resolution beyond that (a known simplification). Returns "" when
// nothing matches.
func NormalizeToCanonical(input string, canonical []string, synonyms map[string]string) string {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return ""
	}

	for _, c := range canonical {
		if normalized == strings.ToLower(c) {
			return c
		}
	}

	if synonyms != nil {
		if mapped, ok := synonyms[normalized]; ok {
			return mapped
		}
	}

	for _, c := range canonical {
		lc := strings.ToLower(c)
		if strings.Contains(normalized, lc) || strings.Contains(lc, normalized) {
			return c
		}
	}

	return ""
}

// CountKeywordMatches counts how many of the keywords occur in text.
// Case-insensitive substring tests with no stemming or tokenization, so
// multi-word phrases match verbatim only.
func CountKeywordMatches(text string, keywords []string) int {
	lower := strings.ToLower(text)
	count := 0
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(kw)) {
			count++
		}
	}
	return count
}

// ContainsKeywords reports whether any of the keywords occurs in text.
func ContainsKeywords(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// Grant size breakpoints in dollars.
const (
	microMax = 10_000
	smallMax = 50_000
	midMax   = 250_000
)

// GetGrantSizeCategory buckets a grant by award amount, preferring the
// maximum, falling back to the minimum, then to zero.
func GetGrantSizeCategory(amountMin, amountMax float64) GrantSize {
	amount := amountMax
	if amount == 0 {
		amount = amountMin
	}

	switch {
	case amount < microMax:
		return SizeMicro
	case amount < smallMax:
		return SizeSmall
	case amount < midMax:
		return SizeMedium
	default:
		return SizeLarge
	}
}

// NormalizeState resolves a state name or code to its USPS code.
// Returns "" when the input is not recognizable as a US state.
func NormalizeState(input string) string {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return ""
	}

	if len(normalized) == 2 {
		upper := strings.ToUpper(normalized)
		for _, code := range StateCodes {
			if code == upper {
				return upper
			}
		}
		return ""
	}

	if code, ok := StateCodes[normalized]; ok {
		return code
	}
	return ""
}

// IndustriesForCategory returns the canonical industry tags a source
// category maps to, or nil for unrecognized categories.
func IndustriesForCategory(category string) []string {
	normalized := strings.ToLower(strings.TrimSpace(category))
	if normalized == "" {
		return nil
	}
	if tags, ok := CategoryToIndustry[normalized]; ok {
		return tags
	}
	// Sources occasionally append qualifiers ("Education - Higher Ed");
	// fall back to a prefix match on the table keys.
	for key, tags := range CategoryToIndustry {
		if strings.HasPrefix(normalized, key) {
			return tags
		}
	}
	return nil
}

// PurposesForGoals expands user goals through the goals table into a
// deduplicated set of purpose tags. Unknown goals are skipped, not
// errors, so new onboarding goals degrade to neutral.
func PurposesForGoals(goals []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, goal := range goals {
		normalized := strings.ToLower(strings.TrimSpace(goal))
		for _, p := range GoalsToPurpose[normalized] {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	return out
}
