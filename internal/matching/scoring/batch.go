package scoring

import (
	"sort"

	"grantmatch/internal/model"
)

// ScoreAndSortGrants scores every grant and returns them sorted by total
// score descending. The sort is stable: ties keep their input order,
// which callers rely on because input order reflects source freshness.
func (e *Engine) ScoreAndSortGrants(p *model.UserProfile, grants []*model.Grant) []ScoredGrant {
	scored := make([]ScoredGrant, len(grants))
	for i, g := range grants {
		scored[i] = ScoredGrant{Grant: g, Result: e.CalculateScore(p, g)}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Result.TotalScore > scored[j].Result.TotalScore
	})
	return scored
}

// GetTopGrants scores, drops everything below minScore, and slices to
// limit. A limit of 0 or less means no limit.
func (e *Engine) GetTopGrants(p *model.UserProfile, grants []*model.Grant, minScore, limit int) []ScoredGrant {
	scored := e.ScoreAndSortGrants(p, grants)
	filtered := make([]ScoredGrant, 0, len(scored))
	for _, s := range scored {
		if s.Result.TotalScore >= minScore {
			filtered = append(filtered, s)
		}
	}
	if limit > 0 && len(filtered) > limit {
		filtered = filtered[:limit]
	}
	return filtered
}
