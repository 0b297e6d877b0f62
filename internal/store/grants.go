package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"grantmatch/internal/cache"
	"grantmatch/internal/common/database"
	apperrors "grantmatch/internal/common/errors"
	"grantmatch/internal/common/logger"
	"grantmatch/internal/model"
)

// GrantStore reads and writes grants in Postgres. Ingestion goes through
// Upsert, which refreshes updated_at and invalidates cached matches so
// stale AI explanations never survive a content change.
type GrantStore struct {
	db     *database.PostgresClient
	cache  *cache.MatchCache
	logger logger.Logger
}

func NewGrantStore(db *database.PostgresClient, matchCache *cache.MatchCache, log logger.Logger) *GrantStore {
	return &GrantStore{db: db, cache: matchCache, logger: log}
}

const selectGrantColumns = `
	SELECT id, title, sponsor, summary, description, categories, eligibility, purpose_tags,
	       locations, amount_min, amount_max, amount_text, deadline_date, url, status,
	       quality_score, updated_at
	FROM grants`

// ListOpen returns up to limit open grants, newest first. Rows with
// malformed eligibility or location payloads are kept with those fields
// empty; one bad row never aborts the batch.
func (s *GrantStore) ListOpen(ctx context.Context, limit int) ([]*model.Grant, error) {
	query := selectGrantColumns + `
	WHERE status = $1
	ORDER BY updated_at DESC
	LIMIT $2`

	rows, err := s.db.Query(ctx, query, model.GrantStatusOpen, limit)
	if err != nil {
		return nil, apperrors.NewCollaboratorError(apperrors.CollaboratorGrantSource, apperrors.ErrCodeQueryExecutionFailed,
			fmt.Errorf("list open grants: %w", err))
	}
	defer rows.Close()

	var grants []*model.Grant
	for rows.Next() {
		grant, err := scanGrant(rows)
		if err != nil {
			s.logger.WithError(err).Warn("skipping unreadable grant row", nil)
			continue
		}
		grants = append(grants, grant)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewCollaboratorError(apperrors.CollaboratorGrantSource, apperrors.ErrCodeQueryExecutionFailed,
			fmt.Errorf("iterate grants: %w", err))
	}
	return grants, nil
}

// Get loads one grant by ID, or nil when absent.
func (s *GrantStore) Get(ctx context.Context, grantID string) (*model.Grant, error) {
	rows, err := s.db.Query(ctx, selectGrantColumns+` WHERE id = $1`, grantID)
	if err != nil {
		return nil, apperrors.NewCollaboratorError(apperrors.CollaboratorGrantSource, apperrors.ErrCodeQueryExecutionFailed,
			fmt.Errorf("get grant %s: %w", grantID, err))
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanGrant(rows)
}

func scanGrant(rows *sql.Rows) (*model.Grant, error) {
	var (
		rec                         model.GrantRecord
		sponsor, summary, desc      sql.NullString
		amountText, url, status     sql.NullString
		amountMin, amountMax, score sql.NullFloat64
		deadline                    sql.NullTime
		categories, purposeTags     []byte
		eligibility, locations      []byte
	)

	err := rows.Scan(&rec.ID, &rec.Title, &sponsor, &summary, &desc, &categories, &eligibility,
		&purposeTags, &locations, &amountMin, &amountMax, &amountText, &deadline, &url, &status,
		&score, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}

	rec.Sponsor = sponsor.String
	rec.Summary = summary.String
	rec.Description = desc.String
	rec.AmountMin = amountMin.Float64
	rec.AmountMax = amountMax.Float64
	rec.AmountText = amountText.String
	rec.URL = url.String
	rec.Status = status.String
	rec.QualityScore = score.Float64
	rec.Eligibility = eligibility
	rec.Locations = locations
	if deadline.Valid {
		rec.DeadlineDate = deadline.Time.Format(time.RFC3339)
	}
	if len(categories) > 0 {
		_ = json.Unmarshal(categories, &rec.Categories)
	}
	if len(purposeTags) > 0 {
		_ = json.Unmarshal(purposeTags, &rec.PurposeTags)
	}

	return rec.Normalize(), nil
}

const upsertGrantQuery = `
	INSERT INTO grants (id, title, sponsor, summary, description, categories, eligibility,
	                    purpose_tags, locations, amount_min, amount_max, amount_text,
	                    deadline_date, url, status, quality_score, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, NOW())
	ON CONFLICT (id) DO UPDATE SET
		title = EXCLUDED.title,
		sponsor = EXCLUDED.sponsor,
		summary = EXCLUDED.summary,
		description = EXCLUDED.description,
		categories = EXCLUDED.categories,
		eligibility = EXCLUDED.eligibility,
		purpose_tags = EXCLUDED.purpose_tags,
		locations = EXCLUDED.locations,
		amount_min = EXCLUDED.amount_min,
		amount_max = EXCLUDED.amount_max,
		amount_text = EXCLUDED.amount_text,
		deadline_date = EXCLUDED.deadline_date,
		url = EXCLUDED.url,
		status = EXCLUDED.status,
		quality_score = EXCLUDED.quality_score,
		updated_at = NOW()`

// Upsert writes one grant record and invalidates every user's cached
// match for it.
func (s *GrantStore) Upsert(ctx context.Context, rec *model.GrantRecord) error {
	if rec.ID == "" || rec.Title == "" {
		return apperrors.NewInvalidGrantDataError("grant id and title are required")
	}

	categories, _ := json.Marshal(rec.Categories)
	purposeTags, _ := json.Marshal(rec.PurposeTags)

	var deadline interface{}
	if rec.DeadlineDate != "" {
		if grant := rec.Normalize(); grant.DeadlineDate != nil {
			deadline = *grant.DeadlineDate
		}
	}

	_, err := s.db.Exec(ctx, upsertGrantQuery,
		rec.ID, rec.Title, nullable(rec.Sponsor), nullable(rec.Summary), nullable(rec.Description),
		categories, []byte(rec.Eligibility), purposeTags, []byte(rec.Locations),
		rec.AmountMin, rec.AmountMax, nullable(rec.AmountText), deadline,
		nullable(rec.URL), nullable(rec.Status), rec.QualityScore)
	if err != nil {
		return apperrors.NewCollaboratorError(apperrors.CollaboratorGrantSource, apperrors.ErrCodeQueryExecutionFailed,
			fmt.Errorf("upsert grant %s: %w", rec.ID, err))
	}

	if s.cache != nil {
		deleted := s.cache.InvalidateGrant(ctx, rec.ID)
		s.logger.Info("grant updated, cached matches invalidated", map[string]interface{}{
			"grantId":     rec.ID,
			"invalidated": deleted,
		})
	}
	return nil
}
