package discovery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grantmatch/internal/ai"
	"grantmatch/internal/cache"
	"grantmatch/internal/common/config"
	"grantmatch/internal/common/logger"
	"grantmatch/internal/matching/scoring"
	"grantmatch/internal/model"
)

type fakeEnricher struct {
	result *ai.Result
	err    error
	calls  int
	sent   []string
}

func (f *fakeEnricher) Enrich(_ context.Context, _ *model.UserProfile, grants []*model.Grant) (*ai.Result, error) {
	f.calls++
	f.sent = nil
	for _, g := range grants {
		f.sent = append(f.sent, g.ID)
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &ai.Result{Matches: map[string]*ai.Enrichment{}}, nil
}

func testMatchingConfig() config.MatchingConfig {
	return config.MatchingConfig{
		MinScore:        30,
		RelaxedMinScore: 25,
		FallbackTopN:    10,
		CandidateLimit:  500,
		EnrichLimit:     50,
		EnrichTimeout:   45000,
		CacheTTLDays:    7,
	}
}

func newTestPipeline(t *testing.T, matchCache *cache.MatchCache, enricher ai.Enricher) *Pipeline {
	return NewPipeline(scoring.NewEngine(), matchCache, enricher, testMatchingConfig(), logger.NewTestLogger(t))
}

func newTestCache(t *testing.T) *cache.MatchCache {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cache.NewMatchCache(client, 7, logger.NewTestLogger(t))
}

func createTestProfile() *model.UserProfile {
	return &model.UserProfile{
		UserID:         "user-123",
		EntityType:     model.EntityNonprofit,
		State:          "CA",
		IndustryTags:   []string{"agriculture"},
		Goals:          []string{"buy_equipment"},
		AnnualBudget:   "under_100k",
		ProfileVersion: 3,
	}
}

func createStrongGrant(id string) *model.Grant {
	deadline := time.Now().AddDate(0, 2, 0)
	return &model.Grant{
		ID:              id,
		Title:           "Sustainable Agriculture Fund",
		Summary:         "Supports farm equipment and soil conservation projects",
		Categories:      []string{"agriculture"},
		EligibilityTags: []string{"nonprofits"},
		PurposeTags:     []string{"equipment", "operations"},
		Locations:       []model.Location{{Type: model.LocationState, Value: "CA"}},
		AmountMin:       5000,
		AmountMax:       25000,
		DeadlineDate:    &deadline,
		URL:             "https://grants.example.gov/" + id,
		Status:          model.GrantStatusOpen,
		QualityScore:    0.8,
		UpdatedAt:       time.Now(),
	}
}

func TestDiscover_StrictPath(t *testing.T) {
	pipeline := newTestPipeline(t, nil, nil)

	result, err := pipeline.Discover(context.Background(), createTestProfile(),
		[]*model.Grant{createStrongGrant("grant-1"), createStrongGrant("grant-2")}, Options{})

	require.NoError(t, err)
	assert.Equal(t, OutcomeStrict, result.Outcome)
	assert.False(t, result.RelaxedFilters)
	assert.Len(t, result.Grants, 2)
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 2, result.Stats.Eligible)
	assert.GreaterOrEqual(t, result.Grants[0].Score.TotalScore, 60)
	assert.Nil(t, result.Grants[0].AI)
}

func TestDiscover_RequiresProfile(t *testing.T) {
	pipeline := newTestPipeline(t, nil, nil)

	_, err := pipeline.Discover(context.Background(), nil, nil, Options{})
	assert.Error(t, err)

	_, err = pipeline.Discover(context.Background(), &model.UserProfile{}, nil, Options{})
	assert.Error(t, err)
}

func TestDiscover_RelaxedFilters(t *testing.T) {
	pipeline := newTestPipeline(t, nil, nil)

	// Every candidate lacks a URL, so the strict pass drops them all.
	grant := createStrongGrant("grant-1")
	grant.URL = ""

	result, err := pipeline.Discover(context.Background(), createTestProfile(), []*model.Grant{grant}, Options{})

	require.NoError(t, err)
	assert.Equal(t, OutcomeRelaxedFilters, result.Outcome)
	assert.True(t, result.RelaxedFilters)
	assert.Len(t, result.Grants, 1)
}

func TestDiscover_EmptyCandidatePool(t *testing.T) {
	pipeline := newTestPipeline(t, nil, nil)

	result, err := pipeline.Discover(context.Background(), createTestProfile(), nil, Options{})

	require.NoError(t, err)
	assert.Equal(t, OutcomeEmpty, result.Outcome)
	assert.Empty(t, result.Grants)
	assert.Contains(t, result.Message, "No open grants")
}

func TestDiscover_NothingEligible(t *testing.T) {
	pipeline := newTestPipeline(t, nil, nil)

	// Geography mismatch fails even relaxed filters.
	grant := createStrongGrant("grant-1")
	grant.Locations = []model.Location{{Type: model.LocationState, Value: "TX"}}

	result, err := pipeline.Discover(context.Background(), createTestProfile(), []*model.Grant{grant}, Options{})

	require.NoError(t, err)
	assert.Equal(t, OutcomeEmpty, result.Outcome)
	assert.Contains(t, result.Message, "match your profile")
}

func TestDiscover_RelaxedThreshold(t *testing.T) {
	pipeline := newTestPipeline(t, nil, nil)

	// A sparse profile scores in the 50s: below a strict threshold of
	// 60, above the relaxed floor of 25.
	profile := &model.UserProfile{UserID: "user-123"}
	grant := &model.Grant{
		ID:    "grant-plain",
		Title: "General Support Fund",
		URL:   "https://example.gov/general",
	}

	result, err := pipeline.Discover(context.Background(), profile, []*model.Grant{grant},
		Options{MinScore: 60})

	require.NoError(t, err)
	assert.Equal(t, OutcomeRelaxedThreshold, result.Outcome)
	assert.Len(t, result.Grants, 1)
}

func TestDiscover_BelowThresholdFallback(t *testing.T) {
	pipeline := newTestPipeline(t, nil, nil)
	pipeline.cfg.RelaxedMinScore = 95

	// Eligible but scoring poorly: open eligibility, wrong industry
	// signals everywhere except a bare keyword.
	profile := createTestProfile()
	profile.IndustryTags = nil
	profile.Goals = nil
	profile.AnnualBudget = ""
	profile.EntityType = ""
	profile.State = ""
	grant := &model.Grant{
		ID:    "grant-weak",
		Title: "Community Theater Restoration",
		URL:   "https://example.gov/theater",
	}

	result, err := pipeline.Discover(context.Background(), profile, []*model.Grant{grant},
		Options{MinScore: 90})

	require.NoError(t, err)
	assert.Equal(t, OutcomeBelowThreshold, result.Outcome)
	require.Len(t, result.Grants, 1)
	assert.NotEmpty(t, result.Message)
}

func TestDiscover_EnrichmentAttachesAndCaches(t *testing.T) {
	matchCache := newTestCache(t)
	enricher := &fakeEnricher{
		result: &ai.Result{
			Matches: map[string]*ai.Enrichment{
				"grant-1": {GrantID: "grant-1", FitScore: 90, FitSummary: "Great fit", Urgency: "high"},
			},
			Usage: ai.Usage{TotalTokens: 1200},
		},
	}
	pipeline := newTestPipeline(t, matchCache, enricher)
	profile := createTestProfile()
	grant := createStrongGrant("grant-1")

	result, err := pipeline.Discover(context.Background(), profile,
		[]*model.Grant{grant}, Options{UseCache: true, UseAI: true})

	require.NoError(t, err)
	require.Len(t, result.Grants, 1)
	entry := result.Grants[0]
	assert.True(t, entry.Enriched)
	assert.False(t, entry.FromCache)
	require.NotNil(t, entry.AI)
	assert.Equal(t, 90, entry.AI.FitScore)
	assert.Equal(t, (entry.Score.TotalScore+90)/2, entry.CombinedScore)
	assert.Equal(t, 1200, result.Stats.TokensUsed)

	// Second run with the unchanged grant: served from cache, enricher
	// not called again.
	result, err = pipeline.Discover(context.Background(), profile,
		[]*model.Grant{grant}, Options{UseCache: true, UseAI: true})

	require.NoError(t, err)
	require.Len(t, result.Grants, 1)
	assert.True(t, result.Grants[0].FromCache)
	assert.Equal(t, 1, result.Stats.CacheHits)
	assert.Equal(t, 1, enricher.calls)
}

func TestDiscover_GrantUpdateForcesReenrichment(t *testing.T) {
	matchCache := newTestCache(t)
	enricher := &fakeEnricher{
		result: &ai.Result{
			Matches: map[string]*ai.Enrichment{
				"grant-1": {GrantID: "grant-1", FitScore: 85},
			},
		},
	}
	pipeline := newTestPipeline(t, matchCache, enricher)
	profile := createTestProfile()
	grant := createStrongGrant("grant-1")

	_, err := pipeline.Discover(context.Background(), profile,
		[]*model.Grant{grant}, Options{UseCache: true, UseAI: true})
	require.NoError(t, err)
	require.Equal(t, 1, enricher.calls)

	// The sponsor edits the grant after the entry was cached: the entry
	// is stale and must not be served.
	grant.UpdatedAt = grant.UpdatedAt.Add(time.Hour)

	result, err := pipeline.Discover(context.Background(), profile,
		[]*model.Grant{grant}, Options{UseCache: true, UseAI: true})

	require.NoError(t, err)
	require.Len(t, result.Grants, 1)
	assert.False(t, result.Grants[0].FromCache)
	assert.Equal(t, 0, result.Stats.CacheHits)
	assert.Equal(t, 2, enricher.calls)
}

func TestDiscover_StaleProfileVersionSkipsCache(t *testing.T) {
	matchCache := newTestCache(t)
	enricher := &fakeEnricher{
		result: &ai.Result{
			Matches: map[string]*ai.Enrichment{
				"grant-1": {GrantID: "grant-1", FitScore: 70},
			},
		},
	}
	pipeline := newTestPipeline(t, matchCache, enricher)

	profile := createTestProfile()
	_, err := pipeline.Discover(context.Background(), profile,
		[]*model.Grant{createStrongGrant("grant-1")}, Options{UseCache: true, UseAI: true})
	require.NoError(t, err)

	// A profile edit bumps the version; the cached entry no longer applies.
	profile.ProfileVersion = 4
	result, err := pipeline.Discover(context.Background(), profile,
		[]*model.Grant{createStrongGrant("grant-1")}, Options{UseCache: true, UseAI: true})

	require.NoError(t, err)
	assert.Equal(t, 0, result.Stats.CacheHits)
	assert.Equal(t, 2, enricher.calls)
}

func TestDiscover_EnricherFailureDegrades(t *testing.T) {
	enricher := &fakeEnricher{err: errors.New("model unavailable")}
	pipeline := newTestPipeline(t, nil, enricher)

	result, err := pipeline.Discover(context.Background(), createTestProfile(),
		[]*model.Grant{createStrongGrant("grant-1")}, Options{UseAI: true})

	require.NoError(t, err)
	require.Len(t, result.Grants, 1)
	assert.Nil(t, result.Grants[0].AI)
	assert.False(t, result.Grants[0].Enriched)
	assert.Equal(t, result.Grants[0].Score.TotalScore, result.Grants[0].CombinedScore)
}

func TestDiscover_EnrichLimitBoundsAICall(t *testing.T) {
	enricher := &fakeEnricher{}
	pipeline := newTestPipeline(t, nil, enricher)
	pipeline.cfg.EnrichLimit = 2

	candidates := []*model.Grant{
		createStrongGrant("grant-1"),
		createStrongGrant("grant-2"),
		createStrongGrant("grant-3"),
	}
	_, err := pipeline.Discover(context.Background(), createTestProfile(), candidates, Options{UseAI: true})

	require.NoError(t, err)
	assert.Len(t, enricher.sent, 2)
}

func TestDiscover_SortOrders(t *testing.T) {
	pipeline := newTestPipeline(t, nil, nil)
	profile := createTestProfile()

	early := time.Now().AddDate(0, 0, 10)
	late := time.Now().AddDate(0, 6, 0)

	first := createStrongGrant("grant-early")
	first.DeadlineDate = &early
	first.AmountMax = 10000
	second := createStrongGrant("grant-late")
	second.DeadlineDate = &late
	second.AmountMax = 500000
	second.UpdatedAt = time.Now().Add(time.Hour)
	third := createStrongGrant("grant-nodeadline")
	third.DeadlineDate = nil
	third.AmountMax = 50000

	candidates := []*model.Grant{second, third, first}

	byDeadline, err := pipeline.Discover(context.Background(), profile, candidates, Options{SortBy: SortDeadlineSoon})
	require.NoError(t, err)
	require.Len(t, byDeadline.Grants, 3)
	assert.Equal(t, "grant-early", byDeadline.Grants[0].Grant.ID)
	assert.Equal(t, "grant-nodeadline", byDeadline.Grants[2].Grant.ID)

	byFunding, err := pipeline.Discover(context.Background(), profile, candidates, Options{SortBy: SortHighestFunding})
	require.NoError(t, err)
	assert.Equal(t, "grant-late", byFunding.Grants[0].Grant.ID)

	byNewest, err := pipeline.Discover(context.Background(), profile, candidates, Options{SortBy: SortNewest})
	require.NoError(t, err)
	assert.Equal(t, "grant-late", byNewest.Grants[0].Grant.ID)
}

func TestDiscover_Pagination(t *testing.T) {
	pipeline := newTestPipeline(t, nil, nil)

	candidates := make([]*model.Grant, 5)
	for i := range candidates {
		candidates[i] = createStrongGrant("grant-" + string(rune('a'+i)))
	}

	result, err := pipeline.Discover(context.Background(), createTestProfile(), candidates, Options{Limit: 2})

	require.NoError(t, err)
	assert.Len(t, result.Grants, 2)
	assert.Equal(t, 5, result.Total)
}
