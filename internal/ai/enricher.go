// Package ai defines the enrichment collaborator boundary. The matching
// pipeline depends only on the Enricher interface; a concrete backend
// (Gemini today) lives in a subpackage. The pipeline must keep working,
// degraded to deterministic scores, when the enricher is absent or
// erroring.
package ai

import (
	"context"

	"grantmatch/internal/model"
)

// Usage is the token accounting for one enrichment call.
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

func (u Usage) Add(other Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens + other.PromptTokens,
		CompletionTokens: u.CompletionTokens + other.CompletionTokens,
		TotalTokens:      u.TotalTokens + other.TotalTokens,
	}
}

// Enrichment is the model-generated explanation for one (profile, grant)
// match. FitScore is the model's own 0-100 judgement, kept separate from
// the deterministic score.
type Enrichment struct {
	GrantID           string   `json:"grantId"`
	FitScore          int      `json:"fitScore"`
	FitSummary        string   `json:"fitSummary"`
	FitExplanation    string   `json:"fitExplanation"`
	EligibilityStatus string   `json:"eligibilityStatus"`
	NextSteps         []string `json:"nextSteps"`
	WhatYouCanFund    []string `json:"whatYouCanFund"`
	ApplicationTips   []string `json:"applicationTips"`
	Urgency           string   `json:"urgency"`
}

// Result maps grant IDs to their enrichments. Grants the model skipped
// or answered unusably are simply absent from the map.
type Result struct {
	Matches map[string]*Enrichment `json:"matches"`
	Usage   Usage                  `json:"usage"`
}

// Enricher produces explanations for a batch of grants against one
// profile. Implementations must honor ctx cancellation; the caller wraps
// the call in a timeout and falls back to deterministic-only results.
type Enricher interface {
	Enrich(ctx context.Context, profile *model.UserProfile, grants []*model.Grant) (*Result, error)
}
