package gemini

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grantmatch/internal/ai"
	"grantmatch/internal/common/logger"
	"grantmatch/internal/model"
)

type fakeGenerator struct {
	response string
	usage    ai.Usage
	err      error
	prompt   string
}

func (f *fakeGenerator) GenerateContent(_ context.Context, prompt string) (string, ai.Usage, error) {
	f.prompt = prompt
	return f.response, f.usage, f.err
}

func createTestProfile() *model.UserProfile {
	return &model.UserProfile{
		UserID:       "user-123",
		EntityType:   model.EntityNonprofit,
		State:        "CA",
		IndustryTags: []string{"agriculture"},
	}
}

func createTestGrants() []*model.Grant {
	return []*model.Grant{
		{ID: "grant-1", Title: "Sustainable Agriculture Fund", Summary: "Farm equipment support"},
		{ID: "grant-2", Title: "Rural Broadband Initiative"},
	}
}

func TestEnrich_ParsesArrayResponse(t *testing.T) {
	gen := &fakeGenerator{
		response: `[
			{"grantId": "grant-1", "fitScore": 85, "fitSummary": "Strong fit", "eligibilityStatus": "likely_eligible", "nextSteps": ["Review checklist"], "urgency": "high"},
			{"grantId": "grant-2", "fitScore": 40, "fitSummary": "Weak fit", "urgency": "low"}
		]`,
		usage: ai.Usage{PromptTokens: 900, CompletionTokens: 200, TotalTokens: 1100},
	}
	enricher := NewEnricher(gen, logger.NewTestLogger(t))

	result, err := enricher.Enrich(context.Background(), createTestProfile(), createTestGrants())

	require.NoError(t, err)
	require.Len(t, result.Matches, 2)
	assert.Equal(t, 85, result.Matches["grant-1"].FitScore)
	assert.Equal(t, "Strong fit", result.Matches["grant-1"].FitSummary)
	assert.Equal(t, 1100, result.Usage.TotalTokens)
}

func TestEnrich_StripsCodeFences(t *testing.T) {
	gen := &fakeGenerator{
		response: "```json\n[{\"grantId\": \"grant-1\", \"fitScore\": 70}]\n```",
	}
	enricher := NewEnricher(gen, logger.NewTestLogger(t))

	result, err := enricher.Enrich(context.Background(), createTestProfile(), createTestGrants())

	require.NoError(t, err)
	require.Len(t, result.Matches, 1)
	assert.Equal(t, 70, result.Matches["grant-1"].FitScore)
}

func TestEnrich_DropsUnknownGrantIDs(t *testing.T) {
	gen := &fakeGenerator{
		response: `[
			{"grantId": "grant-1", "fitScore": 70},
			{"grantId": "grant-invented", "fitScore": 95}
		]`,
	}
	enricher := NewEnricher(gen, logger.NewTestLogger(t))

	result, err := enricher.Enrich(context.Background(), createTestProfile(), createTestGrants())

	require.NoError(t, err)
	assert.Len(t, result.Matches, 1)
	assert.NotContains(t, result.Matches, "grant-invented")
}

func TestEnrich_ClampsScores(t *testing.T) {
	gen := &fakeGenerator{
		response: `[{"grantId": "grant-1", "fitScore": 250}, {"grantId": "grant-2", "fitScore": -10}]`,
	}
	enricher := NewEnricher(gen, logger.NewTestLogger(t))

	result, err := enricher.Enrich(context.Background(), createTestProfile(), createTestGrants())

	require.NoError(t, err)
	assert.Equal(t, 100, result.Matches["grant-1"].FitScore)
	assert.Equal(t, 0, result.Matches["grant-2"].FitScore)
}

func TestEnrich_WrappedObjectResponse(t *testing.T) {
	gen := &fakeGenerator{
		response: `{"matches": [{"grantId": "grant-1", "fitScore": 60}]}`,
	}
	enricher := NewEnricher(gen, logger.NewTestLogger(t))

	result, err := enricher.Enrich(context.Background(), createTestProfile(), createTestGrants())

	require.NoError(t, err)
	assert.Len(t, result.Matches, 1)
}

func TestEnrich_GeneratorError(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("rate limited")}
	enricher := NewEnricher(gen, logger.NewTestLogger(t))

	_, err := enricher.Enrich(context.Background(), createTestProfile(), createTestGrants())

	assert.Error(t, err)
}

func TestEnrich_UnparseableResponse(t *testing.T) {
	gen := &fakeGenerator{response: "I cannot help with that."}
	enricher := NewEnricher(gen, logger.NewTestLogger(t))

	_, err := enricher.Enrich(context.Background(), createTestProfile(), createTestGrants())

	assert.Error(t, err)
}

func TestEnrich_EmptyGrantList(t *testing.T) {
	gen := &fakeGenerator{}
	enricher := NewEnricher(gen, logger.NewTestLogger(t))

	result, err := enricher.Enrich(context.Background(), createTestProfile(), nil)

	require.NoError(t, err)
	assert.Empty(t, result.Matches)
	assert.Empty(t, gen.prompt)
}

func TestBuildPrompt_OmitsContactDetails(t *testing.T) {
	gen := &fakeGenerator{response: `[]`}
	enricher := NewEnricher(gen, logger.NewTestLogger(t))

	profile := createTestProfile()
	profile.Email = "person@example.com"
	profile.Phone = "+15551234567"

	_, err := enricher.Enrich(context.Background(), profile, createTestGrants())

	require.NoError(t, err)
	assert.NotContains(t, gen.prompt, "person@example.com")
	assert.NotContains(t, gen.prompt, "+15551234567")
	assert.Contains(t, gen.prompt, "grant-1")
}
