package discovergrants

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/xeipuuv/gojsonschema"

	"grantmatch/internal/alerts"
	"grantmatch/internal/common/logger"
	"grantmatch/internal/discovery"
	"grantmatch/internal/model"
	"grantmatch/internal/store"
)

const TaskType = "discover-grants"

var ErrDiscoveryFailed = errors.New("DISCOVERY_FAILED")

type profileSource interface {
	Get(ctx context.Context, userID string) (*model.UserProfile, error)
}

type grantLister interface {
	ListOpen(ctx context.Context, limit int) ([]*model.Grant, error)
}

type grantSearcher interface {
	Search(ctx context.Context, q store.SearchQuery) ([]*model.Grant, error)
}

type Handler struct {
	config   *Config
	profiles profileSource
	grants   grantLister
	search   grantSearcher
	pipeline *discovery.Pipeline
	notifier *alerts.Notifier
	logger   logger.Logger
}

// NewHandler wires the worker. search and notifier may be nil; free-text
// requests then fall back to the Postgres listing and alerting is off.
func NewHandler(config *Config, profiles profileSource, grants grantLister, search grantSearcher,
	pipeline *discovery.Pipeline, notifier *alerts.Notifier, log logger.Logger) *Handler {
	return &Handler{
		config:   config,
		profiles: profiles,
		grants:   grants,
		search:   search,
		pipeline: pipeline,
		notifier: notifier,
		logger:   log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

var inputSchema = map[string]interface{}{
	"type":     "object",
	"required": []string{"userId"},
	"properties": map[string]interface{}{
		"userId":     map[string]interface{}{"type": "string", "minLength": 1},
		"searchText": map[string]interface{}{"type": "string"},
		"limit":      map[string]interface{}{"type": "integer", "minimum": 1, "maximum": 100},
		"minScore":   map[string]interface{}{"type": "integer", "minimum": 0, "maximum": 100},
		"sortBy": map[string]interface{}{
			"type": "string",
			"enum": []string{"best_match", "deadline_soon", "highest_funding", "newest"},
		},
		"useCache": map[string]interface{}{"type": "boolean"},
		"useAI":    map[string]interface{}{"type": "boolean"},
		"notify":   map[string]interface{}{"type": "boolean"},
	},
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(job.Variables), &raw); err != nil {
		h.failJob(client, job, "PARSE_ERROR", fmt.Sprintf("parse input: %v", err))
		return
	}
	if err := validateInput(raw); err != nil {
		h.failJob(client, job, "INVALID_INPUT", err.Error())
		return
	}

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(client, job, "PARSE_ERROR", fmt.Sprintf("parse input: %v", err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.failJob(client, job, ErrDiscoveryFailed.Error(), err.Error())
		return
	}

	h.completeJob(client, job, output)
}

func validateInput(data map[string]interface{}) error {
	schemaLoader := gojsonschema.NewGoLoader(inputSchema)
	documentLoader := gojsonschema.NewGoLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return fmt.Errorf("input validation failed: %v", errs)
	}
	return nil
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	profile, err := h.profiles.Get(ctx, input.UserID)
	if err != nil {
		return nil, fmt.Errorf("load profile %s: %w", input.UserID, err)
	}

	candidates, err := h.loadCandidates(ctx, profile, input)
	if err != nil {
		return nil, err
	}

	opts := discovery.Options{
		Limit:    input.Limit,
		MinScore: input.MinScore,
		SortBy:   discovery.SortOrder(input.SortBy),
		UseCache: input.UseCache == nil || *input.UseCache,
		UseAI:    input.UseAI == nil || *input.UseAI,
	}
	if opts.Limit <= 0 {
		opts.Limit = h.config.DefaultLimit
	}

	result, err := h.pipeline.Discover(ctx, profile, candidates, opts)
	if err != nil {
		return nil, err
	}

	output := &Output{
		Grants:         make([]MatchView, len(result.Grants)),
		Total:          result.Total,
		Outcome:        string(result.Outcome),
		RelaxedFilters: result.RelaxedFilters,
		AIEnabled:      result.AIEnabled,
		Message:        result.Message,
	}
	for i, r := range result.Grants {
		output.Grants[i] = matchView(r)
	}

	if input.Notify && h.notifier != nil {
		output.AlertsSent = h.notifier.NotifyMatches(ctx, profile, result.Grants)
	}

	h.logger.Info("discovery job completed", map[string]interface{}{
		"userId":   input.UserID,
		"outcome":  output.Outcome,
		"returned": len(output.Grants),
		"total":    output.Total,
	})
	return output, nil
}

func (h *Handler) loadCandidates(ctx context.Context, profile *model.UserProfile, input *Input) ([]*model.Grant, error) {
	if h.search != nil && input.SearchText != "" {
		grants, err := h.search.Search(ctx, store.SearchQuery{
			Text:       input.SearchText,
			State:      profile.State,
			Categories: profile.IndustryTags,
			Limit:      h.config.CandidateLimit,
		})
		if err == nil {
			return grants, nil
		}
		// Search source down: fall back to the full open listing rather
		// than failing the job.
		h.logger.WithError(err).Warn("grant search degraded to open listing", map[string]interface{}{
			"userId": input.UserID,
		})
	}
	return h.grants.ListOpen(ctx, h.config.CandidateLimit)
}

func matchView(r *discovery.RankedGrant) MatchView {
	view := MatchView{
		GrantID:       r.Grant.ID,
		Title:         r.Grant.Title,
		Sponsor:       r.Grant.Sponsor,
		URL:           r.Grant.URL,
		AmountText:    r.Grant.AmountText,
		Score:         r.Score.TotalScore,
		CombinedScore: r.CombinedScore,
		Tier:          string(r.Score.Tier),
		Confidence:    string(r.Score.Confidence),
		MatchReasons:  r.Score.Reasons,
		Warnings:      r.Score.Warnings,
		FromCache:     r.FromCache,
	}
	if r.Grant.DeadlineDate != nil {
		view.Deadline = r.Grant.DeadlineDate.Format("2006-01-02")
	}
	if r.AI != nil {
		score := r.AI.FitScore
		view.AIScore = &score
		view.FitSummary = r.AI.FitSummary
		view.Urgency = r.AI.Urgency
	}
	return view
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	_, err = cmd.Send(context.Background())
	if err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
	}
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, errorCode, errorMessage string) {
	h.logger.Error("job failed", map[string]interface{}{
		"jobKey":       job.Key,
		"errorCode":    errorCode,
		"errorMessage": errorMessage,
	})

	_, err := client.NewThrowErrorCommand().
		JobKey(job.Key).
		ErrorCode(errorCode).
		ErrorMessage(errorMessage).
		Send(context.Background())
	if err != nil {
		h.logger.Error("failed to throw error", map[string]interface{}{
			"error": err,
		})
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
