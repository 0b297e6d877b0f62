// Package store provides the persistence layer: user profiles and
// grants in Postgres, full-text grant search in Elasticsearch. Stores
// own the cache-invalidation hooks that mutations trigger; the match
// cache itself only exposes the deletion primitives.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"grantmatch/internal/cache"
	"grantmatch/internal/common/database"
	apperrors "grantmatch/internal/common/errors"
	"grantmatch/internal/common/logger"
	"grantmatch/internal/model"
)

// ErrProfileNotFound reports a lookup for a user with no stored profile.
var ErrProfileNotFound = fmt.Errorf("profile not found")

// ProfileStore reads and writes user profiles. Every scoring-relevant
// mutation bumps profile_version and invalidates the user's cached
// matches; the version is the cache's sole invalidation token.
type ProfileStore struct {
	db     *database.PostgresClient
	cache  *cache.MatchCache
	logger logger.Logger
}

func NewProfileStore(db *database.PostgresClient, matchCache *cache.MatchCache, log logger.Logger) *ProfileStore {
	return &ProfileStore{db: db, cache: matchCache, logger: log}
}

const selectProfileQuery = `
	SELECT user_id, email, phone, entity_type, state, industry_tags, goals,
	       size_band, stage, annual_budget, preferences, onboarding_completed, profile_version
	FROM user_profiles
	WHERE user_id = $1`

// Get loads one profile. Returns ErrProfileNotFound when the user has
// never completed onboarding.
func (s *ProfileStore) Get(ctx context.Context, userID string) (*model.UserProfile, error) {
	var (
		p                         model.UserProfile
		email, phone              sql.NullString
		entityType, state         sql.NullString
		sizeBand, stage, budget   sql.NullString
		industryTags, goals, pref []byte
	)

	row := s.db.QueryRow(ctx, selectProfileQuery, userID)
	err := row.Scan(&p.UserID, &email, &phone, &entityType, &state, &industryTags, &goals,
		&sizeBand, &stage, &budget, &pref, &p.OnboardingCompleted, &p.ProfileVersion)
	if err == sql.ErrNoRows {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, apperrors.NewCollaboratorError(apperrors.CollaboratorGrantSource, apperrors.ErrCodeProfileStoreFailed,
			fmt.Errorf("query profile %s: %w", userID, err))
	}

	p.Email = email.String
	p.Phone = phone.String
	p.EntityType = model.EntityType(entityType.String)
	p.State = state.String
	p.SizeBand = sizeBand.String
	p.Stage = stage.String
	p.AnnualBudget = budget.String

	if len(industryTags) > 0 {
		if err := json.Unmarshal(industryTags, &p.IndustryTags); err != nil {
			s.logger.WithError(err).Warn("profile industry tags unreadable", map[string]interface{}{"userId": userID})
		}
	}
	if len(goals) > 0 {
		if err := json.Unmarshal(goals, &p.Goals); err != nil {
			s.logger.WithError(err).Warn("profile goals unreadable", map[string]interface{}{"userId": userID})
		}
	}
	if len(pref) > 0 {
		if err := json.Unmarshal(pref, &p.Preferences); err != nil {
			s.logger.WithError(err).Warn("profile preferences unreadable", map[string]interface{}{"userId": userID})
		}
	}

	return &p, nil
}

const upsertProfileQuery = `
	INSERT INTO user_profiles (user_id, email, phone, entity_type, state, industry_tags, goals,
	                           size_band, stage, annual_budget, preferences, onboarding_completed,
	                           profile_version, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 1, NOW())
	ON CONFLICT (user_id) DO UPDATE SET
		email = EXCLUDED.email,
		phone = EXCLUDED.phone,
		entity_type = EXCLUDED.entity_type,
		state = EXCLUDED.state,
		industry_tags = EXCLUDED.industry_tags,
		goals = EXCLUDED.goals,
		size_band = EXCLUDED.size_band,
		stage = EXCLUDED.stage,
		annual_budget = EXCLUDED.annual_budget,
		preferences = EXCLUDED.preferences,
		onboarding_completed = EXCLUDED.onboarding_completed,
		profile_version = user_profiles.profile_version + 1,
		updated_at = NOW()
	RETURNING profile_version`

// Upsert writes the profile, bumps its version, and invalidates the
// user's cached matches. Returns the new version.
func (s *ProfileStore) Upsert(ctx context.Context, p *model.UserProfile) (int64, error) {
	if p.UserID == "" {
		return 0, apperrors.NewInvalidProfileError("userId is required")
	}

	industryTags, err := json.Marshal(p.IndustryTags)
	if err != nil {
		return 0, apperrors.NewInvalidProfileError(fmt.Sprintf("industry tags: %v", err))
	}
	goals, err := json.Marshal(p.Goals)
	if err != nil {
		return 0, apperrors.NewInvalidProfileError(fmt.Sprintf("goals: %v", err))
	}
	pref, err := json.Marshal(p.Preferences)
	if err != nil {
		return 0, apperrors.NewInvalidProfileError(fmt.Sprintf("preferences: %v", err))
	}

	var version int64
	row := s.db.QueryRow(ctx, upsertProfileQuery,
		p.UserID, nullable(p.Email), nullable(p.Phone), nullable(string(p.EntityType)), nullable(p.State),
		industryTags, goals, nullable(p.SizeBand), nullable(p.Stage), nullable(p.AnnualBudget),
		pref, p.OnboardingCompleted)
	if err := row.Scan(&version); err != nil {
		return 0, apperrors.NewCollaboratorError(apperrors.CollaboratorGrantSource, apperrors.ErrCodeProfileStoreFailed,
			fmt.Errorf("upsert profile %s: %w", p.UserID, err))
	}

	p.ProfileVersion = version
	if s.cache != nil {
		deleted := s.cache.InvalidateUser(ctx, p.UserID)
		s.logger.Info("profile updated, cached matches invalidated", map[string]interface{}{
			"userId":         p.UserID,
			"profileVersion": version,
			"invalidated":    deleted,
		})
	}
	return version, nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
