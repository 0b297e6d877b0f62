package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"grantmatch/internal/common/database"
	apperrors "grantmatch/internal/common/errors"
	"grantmatch/internal/common/logger"
	"grantmatch/internal/model"
)

const defaultSearchLimit = 100

// SearchQuery describes one grant search. Empty fields are skipped.
type SearchQuery struct {
	Text       string
	State      string
	Categories []string
	Limit      int
}

// GrantSearch finds candidate grants in Elasticsearch. It is a candidate
// source only: results still go through hard filtering and scoring.
type GrantSearch struct {
	es     *database.ElasticsearchClient
	index  string
	logger logger.Logger
}

func NewGrantSearch(es *database.ElasticsearchClient, index string, log logger.Logger) *GrantSearch {
	if index == "" {
		index = "grants"
	}
	return &GrantSearch{es: es, index: index, logger: log}
}

// Search runs the query and returns normalized grants, relevance order
// preserved. Unparseable hits are skipped.
func (s *GrantSearch) Search(ctx context.Context, q SearchQuery) ([]*model.Grant, error) {
	body, err := buildSearchBody(q)
	if err != nil {
		return nil, err
	}

	client := s.es.Client
	res, err := client.Search(
		client.Search.WithContext(ctx),
		client.Search.WithIndex(s.index),
		client.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, apperrors.NewCollaboratorError(apperrors.CollaboratorGrantSource, apperrors.ErrCodeSearchQueryFailed,
			fmt.Errorf("search grants: %w", err))
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, apperrors.NewCollaboratorError(apperrors.CollaboratorGrantSource, apperrors.ErrCodeSearchQueryFailed,
			fmt.Errorf("search grants: %s", res.Status()))
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source json.RawMessage `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, apperrors.NewCollaboratorError(apperrors.CollaboratorGrantSource, apperrors.ErrCodeSearchQueryFailed,
			fmt.Errorf("decode search response: %w", err))
	}

	grants := make([]*model.Grant, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		var rec model.GrantRecord
		if err := json.Unmarshal(hit.Source, &rec); err != nil {
			s.logger.WithError(err).Warn("skipping unreadable search hit", nil)
			continue
		}
		grants = append(grants, rec.Normalize())
	}
	return grants, nil
}

func buildSearchBody(q SearchQuery) ([]byte, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	must := []map[string]interface{}{}
	if q.Text != "" {
		must = append(must, map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  q.Text,
				"fields": []string{"title^3", "summary^2", "description", "categories"},
			},
		})
	}

	filter := []map[string]interface{}{
		{"term": map[string]interface{}{"status": model.GrantStatusOpen}},
	}
	if len(q.Categories) > 0 {
		filter = append(filter, map[string]interface{}{
			"terms": map[string]interface{}{"categories": q.Categories},
		})
	}

	boolQuery := map[string]interface{}{
		"must":   must,
		"filter": filter,
	}

	// State-restricted grants outside the user's state are dropped later
	// by the geography filter; here we only boost in-state and national.
	if q.State != "" {
		boolQuery["should"] = []map[string]interface{}{
			{"term": map[string]interface{}{"locations.value": q.State}},
			{"term": map[string]interface{}{"locations.type": model.LocationNational}},
		}
	}

	body := map[string]interface{}{
		"size":  limit,
		"query": map[string]interface{}{"bool": boolQuery},
	}
	return json.Marshal(body)
}
