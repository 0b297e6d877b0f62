package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	_ "embed"

	"grantmatch/internal/ai"
	"grantmatch/internal/common/logger"
	"grantmatch/internal/common/metrics"
	"grantmatch/internal/model"
)

//go:embed prompt.md
var promptTemplate string

type contentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, ai.Usage, error)
}

// Enricher implements ai.Enricher on top of a Gemini content generator.
type Enricher struct {
	generator contentGenerator
	logger    logger.Logger
}

func NewEnricher(generator contentGenerator, log logger.Logger) *Enricher {
	return &Enricher{generator: generator, logger: log}
}

// profileView and grantView bound what the prompt sees: scoring-relevant
// fields only, no contact details.
type profileView struct {
	EntityType   string                 `json:"entityType,omitempty"`
	State        string                 `json:"state,omitempty"`
	IndustryTags []string               `json:"industryTags,omitempty"`
	Goals        []string               `json:"goals,omitempty"`
	AnnualBudget string                 `json:"annualBudget,omitempty"`
	Stage        string                 `json:"stage,omitempty"`
	Preferences  model.GrantPreferences `json:"preferences"`
}

type grantView struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Sponsor    string   `json:"sponsor,omitempty"`
	Summary    string   `json:"summary,omitempty"`
	AmountMin  float64  `json:"amountMin,omitempty"`
	AmountMax  float64  `json:"amountMax,omitempty"`
	AmountText string   `json:"amountText,omitempty"`
	Deadline   string   `json:"deadline,omitempty"`
	Categories []string `json:"categories,omitempty"`
}

// Enrich asks the model to assess every grant in one call and returns
// the per-grant enrichments it could parse. Entries with IDs not in the
// request are dropped.
func (e *Enricher) Enrich(ctx context.Context, profile *model.UserProfile, grants []*model.Grant) (*ai.Result, error) {
	if len(grants) == 0 {
		return &ai.Result{Matches: map[string]*ai.Enrichment{}}, nil
	}

	prompt, err := e.buildPrompt(profile, grants)
	if err != nil {
		return nil, err
	}

	raw, usage, err := e.generator.GenerateContent(ctx, prompt)
	if err != nil {
		metrics.EnrichmentRequests.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.EnrichmentRequests.WithLabelValues("success").Inc()
	metrics.EnrichmentTokens.WithLabelValues("prompt").Add(float64(usage.PromptTokens))
	metrics.EnrichmentTokens.WithLabelValues("completion").Add(float64(usage.CompletionTokens))

	known := make(map[string]bool, len(grants))
	for _, g := range grants {
		known[g.ID] = true
	}

	entries, err := parseResponse(raw)
	if err != nil {
		return nil, err
	}

	matches := make(map[string]*ai.Enrichment, len(entries))
	for _, entry := range entries {
		if entry == nil || !known[entry.GrantID] {
			continue
		}
		if entry.FitScore < 0 {
			entry.FitScore = 0
		}
		if entry.FitScore > 100 {
			entry.FitScore = 100
		}
		matches[entry.GrantID] = entry
	}

	e.logger.Debug("gemini enrichment parsed", map[string]interface{}{
		"requested": len(grants),
		"returned":  len(entries),
		"usable":    len(matches),
		"tokens":    usage.TotalTokens,
	})

	return &ai.Result{Matches: matches, Usage: usage}, nil
}

func (e *Enricher) buildPrompt(profile *model.UserProfile, grants []*model.Grant) (string, error) {
	view := profileView{
		EntityType:   string(profile.EntityType),
		State:        profile.State,
		IndustryTags: profile.IndustryTags,
		Goals:        profile.Goals,
		AnnualBudget: profile.AnnualBudget,
		Stage:        profile.Stage,
		Preferences:  profile.Preferences,
	}
	profileJSON, err := json.MarshalIndent(view, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal profile payload: %w", err)
	}

	views := make([]grantView, len(grants))
	for i, g := range grants {
		views[i] = grantView{
			ID:         g.ID,
			Title:      g.Title,
			Sponsor:    g.Sponsor,
			Summary:    g.Summary,
			AmountMin:  g.AmountMin,
			AmountMax:  g.AmountMax,
			AmountText: g.AmountText,
			Categories: g.Categories,
		}
		if g.DeadlineDate != nil {
			views[i].Deadline = g.DeadlineDate.Format("2006-01-02")
		}
	}
	grantsJSON, err := json.MarshalIndent(views, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal grants payload: %w", err)
	}

	prompt := strings.ReplaceAll(promptTemplate, "{{PROFILE_JSON}}", string(profileJSON))
	prompt = strings.ReplaceAll(prompt, "{{GRANTS_JSON}}", string(grantsJSON))
	return prompt, nil
}

func parseResponse(raw string) ([]*ai.Enrichment, error) {
	cleaned := extractJSON(raw)

	var entries []*ai.Enrichment
	if err := json.Unmarshal([]byte(cleaned), &entries); err == nil {
		return entries, nil
	}

	// Some model replies wrap the array in an object.
	var wrapped struct {
		Matches []*ai.Enrichment `json:"matches"`
	}
	if err := json.Unmarshal([]byte(cleaned), &wrapped); err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}
	return wrapped.Matches, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}
