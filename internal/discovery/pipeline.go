// Package discovery composes the matching stages into one request path:
// hard filters over a candidate pool, deterministic scoring, the match
// cache, and the optional AI enrichment collaborator, producing a final
// ranked page. The product rule throughout is "always show something":
// a pipeline run returns an error only on invalid input, never because
// a collaborator was down or no grant fit well enough.
package discovery

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"grantmatch/internal/ai"
	"grantmatch/internal/cache"
	"grantmatch/internal/common/config"
	apperrors "grantmatch/internal/common/errors"
	"grantmatch/internal/common/logger"
	"grantmatch/internal/common/metrics"
	"grantmatch/internal/matching/hardfilter"
	"grantmatch/internal/matching/scoring"
	"grantmatch/internal/model"
)

// SortOrder is the caller's requested ranking.
type SortOrder string

const (
	SortBestMatch      SortOrder = "best_match"
	SortDeadlineSoon   SortOrder = "deadline_soon"
	SortHighestFunding SortOrder = "highest_funding"
	SortNewest         SortOrder = "newest"
)

// Outcome names the fallback rung a response was produced on.
type Outcome string

const (
	OutcomeStrict           Outcome = "strict"
	OutcomeRelaxedFilters   Outcome = "relaxed_filters"
	OutcomeRelaxedThreshold Outcome = "relaxed_threshold"
	OutcomeBelowThreshold   Outcome = "below_threshold"
	OutcomeEmpty            Outcome = "empty"
)

// Options control one discovery request.
type Options struct {
	Limit    int
	MinScore int
	SortBy   SortOrder
	UseCache bool
	UseAI    bool
}

const defaultPageLimit = 20

// RankedGrant is one entry of the final page. AI is nil when the entry
// was neither cached nor enriched; FromCache is instrumentation only.
type RankedGrant struct {
	Grant         *model.Grant     `json:"grant"`
	Score         *scoring.Result  `json:"score"`
	AI            *ai.Enrichment   `json:"ai,omitempty"`
	CombinedScore int              `json:"combinedScore"`
	FromCache     bool             `json:"fromCache"`
	Enriched      bool             `json:"enriched"`
}

// Stats summarizes what one run did, for logging and response metadata.
type Stats struct {
	Candidates int   `json:"candidates"`
	Eligible   int   `json:"eligible"`
	CacheHits  int   `json:"cacheHits"`
	Enriched   int   `json:"enriched"`
	TokensUsed int   `json:"tokensUsed"`
	DurationMs int64 `json:"durationMs"`
}

// Result is the final page plus its provenance.
type Result struct {
	Grants         []*RankedGrant `json:"grants"`
	Total          int            `json:"total"`
	Outcome        Outcome        `json:"outcome"`
	RelaxedFilters bool           `json:"relaxedFilters"`
	AIEnabled      bool           `json:"aiEnabled"`
	Message        string         `json:"message,omitempty"`
	Stats          Stats          `json:"stats"`
}

// Pipeline is safe for concurrent use. The cache and enricher are both
// optional; a nil collaborator just disables its stage.
type Pipeline struct {
	engine   *scoring.Engine
	cache    *cache.MatchCache
	enricher ai.Enricher
	cfg      config.MatchingConfig
	logger   logger.Logger
	now      func() time.Time
}

func NewPipeline(engine *scoring.Engine, matchCache *cache.MatchCache, enricher ai.Enricher, cfg config.MatchingConfig, log logger.Logger) *Pipeline {
	return &Pipeline{
		engine:   engine,
		cache:    matchCache,
		enricher: enricher,
		cfg:      cfg,
		logger:   log,
		now:      time.Now,
	}
}

// Discover runs the full pipeline for one request.
func (p *Pipeline) Discover(ctx context.Context, profile *model.UserProfile, candidates []*model.Grant, opts Options) (*Result, error) {
	if profile == nil || profile.UserID == "" {
		return nil, apperrors.NewInvalidProfileError("profile with userId is required")
	}
	start := p.now()
	requestID := uuid.NewString()
	opts = p.applyDefaults(opts)

	result := &Result{
		AIEnabled: opts.UseAI && p.enricher != nil,
		Stats:     Stats{Candidates: len(candidates)},
	}

	// Stage 1: hard filters, relaxing the URL requirement if the strict
	// pass eliminates everything.
	eligible := p.runFilters(profile, candidates, hardfilter.DefaultOptions())
	result.Outcome = OutcomeStrict
	if len(eligible) == 0 && len(candidates) > 0 {
		relaxed := hardfilter.DefaultOptions()
		relaxed.RequireURL = false
		eligible = p.runFilters(profile, candidates, relaxed)
		result.Outcome = OutcomeRelaxedFilters
		result.RelaxedFilters = true
	}
	result.Stats.Eligible = len(eligible)

	if len(eligible) == 0 {
		result.Outcome = OutcomeEmpty
		result.Grants = []*RankedGrant{}
		if len(candidates) == 0 {
			result.Message = "No open grants are available right now. Check back soon."
		} else {
			result.Message = "No grants currently match your profile. Broadening your industries or goals may help."
		}
		p.finish(result, start)
		return result, nil
	}

	// Stage 2: deterministic scoring, then the threshold ladder.
	scored := p.engine.ScoreAndSortGrants(profile, eligible)
	metrics.GrantsScored.Add(float64(len(scored)))

	kept := aboveThreshold(scored, opts.MinScore)
	if len(kept) == 0 {
		kept = aboveThreshold(scored, p.cfg.RelaxedMinScore)
		if len(kept) > 0 {
			result.Outcome = OutcomeRelaxedThreshold
		}
	}
	if len(kept) == 0 {
		topN := p.cfg.FallbackTopN
		if topN <= 0 || topN > len(scored) {
			topN = len(scored)
		}
		kept = scored[:topN]
		result.Outcome = OutcomeBelowThreshold
		result.Message = "These are the closest available grants, though none scored as a strong match."
	}
	result.Total = len(kept)

	ranked := make([]*RankedGrant, len(kept))
	for i, s := range kept {
		ranked[i] = &RankedGrant{Grant: s.Grant, Score: s.Result, CombinedScore: s.Result.TotalScore}
	}

	// Stage 3: cache consult and AI enrichment for the head of the list.
	p.enrich(ctx, profile, ranked, opts, &result.Stats)

	// Stage 4: final ordering and pagination.
	sortRanked(ranked, opts.SortBy)
	if len(ranked) > opts.Limit {
		ranked = ranked[:opts.Limit]
	}
	result.Grants = ranked

	p.finish(result, start)
	p.logger.Info("discovery completed", map[string]interface{}{
		"requestId":  requestID,
		"userId":     profile.UserID,
		"outcome":    string(result.Outcome),
		"candidates": result.Stats.Candidates,
		"eligible":   result.Stats.Eligible,
		"returned":   len(result.Grants),
		"cacheHits":  result.Stats.CacheHits,
		"enriched":   result.Stats.Enriched,
	})
	return result, nil
}

func (p *Pipeline) applyDefaults(opts Options) Options {
	if opts.Limit <= 0 {
		opts.Limit = defaultPageLimit
	}
	if opts.MinScore <= 0 {
		opts.MinScore = p.cfg.MinScore
	}
	if opts.SortBy == "" {
		opts.SortBy = SortBestMatch
	}
	return opts
}

func (p *Pipeline) runFilters(profile *model.UserProfile, candidates []*model.Grant, opts hardfilter.Options) []*model.Grant {
	eligible := make([]*model.Grant, 0, len(candidates))
	for _, g := range candidates {
		if res := hardfilter.Run(profile, g, opts); !res.Passes {
			metrics.HardFilterDrops.WithLabelValues(res.Filter).Inc()
			continue
		}
		eligible = append(eligible, g)
	}
	return eligible
}

func aboveThreshold(scored []scoring.ScoredGrant, minScore int) []scoring.ScoredGrant {
	kept := make([]scoring.ScoredGrant, 0, len(scored))
	for _, s := range scored {
		if s.Result.TotalScore >= minScore {
			kept = append(kept, s)
		}
	}
	return kept
}

// enrich attaches cached or freshly generated AI explanations to the
// top of the ranked list. Every failure here degrades to deterministic
// results; nothing propagates.
func (p *Pipeline) enrich(ctx context.Context, profile *model.UserProfile, ranked []*RankedGrant, opts Options, stats *Stats) {
	head := ranked
	if limit := p.cfg.EnrichLimit; limit > 0 && len(head) > limit {
		head = head[:limit]
	}
	if len(head) == 0 {
		return
	}

	pending := head
	if opts.UseCache && p.cache != nil {
		grantIDs := make([]string, len(head))
		byID := make(map[string]*RankedGrant, len(head))
		for i, r := range head {
			grantIDs[i] = r.Grant.ID
			byID[r.Grant.ID] = r
		}

		hits := p.cache.GetBatch(ctx, profile.UserID, grantIDs, profile.ProfileVersion)
		pending = make([]*RankedGrant, 0, len(head))
		for _, r := range head {
			data, ok := hits[r.Grant.ID]
			if ok && !r.Grant.UpdatedAt.After(data.GrantUpdatedAt) {
				r.AI = enrichmentFromCache(r.Grant.ID, data)
				r.FromCache = true
				r.CombinedScore = combineScores(r.Score.TotalScore, r.AI.FitScore)
				stats.CacheHits++
				continue
			}
			pending = append(pending, r)
		}
	}

	if !opts.UseAI || p.enricher == nil || len(pending) == 0 {
		return
	}

	enrichCtx := ctx
	if p.cfg.EnrichTimeout > 0 {
		var cancel context.CancelFunc
		enrichCtx, cancel = context.WithTimeout(ctx, time.Duration(p.cfg.EnrichTimeout)*time.Millisecond)
		defer cancel()
	}

	grants := make([]*model.Grant, len(pending))
	for i, r := range pending {
		grants[i] = r.Grant
	}

	aiResult, err := p.enricher.Enrich(enrichCtx, profile, grants)
	if err != nil {
		code := apperrors.ErrCodeEnrichmentFailed
		if enrichCtx.Err() == context.DeadlineExceeded {
			code = apperrors.ErrCodeEnrichmentTimeout
		}
		cerr := apperrors.NewCollaboratorError(apperrors.CollaboratorEnricher, code, err)
		p.logger.WithError(cerr).Warn("ai enrichment degraded to deterministic results", map[string]interface{}{
			"userId": profile.UserID,
			"grants": len(pending),
		})
		return
	}
	stats.TokensUsed = aiResult.Usage.TotalTokens

	writeback := make(map[string]*cache.MatchData, len(aiResult.Matches))
	for _, r := range pending {
		enrichment, ok := aiResult.Matches[r.Grant.ID]
		if !ok {
			continue
		}
		r.AI = enrichment
		r.Enriched = true
		r.CombinedScore = combineScores(r.Score.TotalScore, enrichment.FitScore)
		stats.Enriched++

		writeback[r.Grant.ID] = &cache.MatchData{
			ProfileVersion:    profile.ProfileVersion,
			GrantUpdatedAt:    r.Grant.UpdatedAt,
			FitScore:          enrichment.FitScore,
			FitSummary:        enrichment.FitSummary,
			FitExplanation:    enrichment.FitExplanation,
			EligibilityStatus: enrichment.EligibilityStatus,
			NextSteps:         enrichment.NextSteps,
			WhatYouCanFund:    enrichment.WhatYouCanFund,
			ApplicationTips:   enrichment.ApplicationTips,
			Urgency:           enrichment.Urgency,
		}
	}
	if opts.UseCache && p.cache != nil && len(writeback) > 0 {
		p.cache.SetBatch(ctx, profile.UserID, writeback)
	}
}

func enrichmentFromCache(grantID string, data *cache.MatchData) *ai.Enrichment {
	return &ai.Enrichment{
		GrantID:           grantID,
		FitScore:          data.FitScore,
		FitSummary:        data.FitSummary,
		FitExplanation:    data.FitExplanation,
		EligibilityStatus: data.EligibilityStatus,
		NextSteps:         data.NextSteps,
		WhatYouCanFund:    data.WhatYouCanFund,
		ApplicationTips:   data.ApplicationTips,
		Urgency:           data.Urgency,
	}
}

func combineScores(deterministic, aiScore int) int {
	return (deterministic + aiScore) / 2
}

// sortRanked orders the page. Every order is a stable sort so equal keys
// keep their score-descending arrangement from the threshold stage.
func sortRanked(ranked []*RankedGrant, order SortOrder) {
	switch order {
	case SortDeadlineSoon:
		sort.SliceStable(ranked, func(i, j int) bool {
			di, dj := ranked[i].Grant.DeadlineDate, ranked[j].Grant.DeadlineDate
			if di == nil {
				return false
			}
			if dj == nil {
				return true
			}
			return di.Before(*dj)
		})
	case SortHighestFunding:
		sort.SliceStable(ranked, func(i, j int) bool {
			return ranked[i].Grant.AmountMax > ranked[j].Grant.AmountMax
		})
	case SortNewest:
		sort.SliceStable(ranked, func(i, j int) bool {
			return ranked[i].Grant.UpdatedAt.After(ranked[j].Grant.UpdatedAt)
		})
	default: // best_match
		sort.SliceStable(ranked, func(i, j int) bool {
			return ranked[i].CombinedScore > ranked[j].CombinedScore
		})
	}
}

func (p *Pipeline) finish(result *Result, start time.Time) {
	elapsed := p.now().Sub(start)
	result.Stats.DurationMs = elapsed.Milliseconds()
	metrics.DiscoveryRequests.WithLabelValues(string(result.Outcome)).Inc()
	metrics.DiscoveryDuration.Observe(elapsed.Seconds())
}
