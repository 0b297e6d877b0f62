package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grantmatch/internal/common/database"
	"grantmatch/internal/common/logger"
	"grantmatch/internal/model"
)

func newTestGrantStore(t *testing.T) (*GrantStore, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	client := &database.PostgresClient{DB: db}
	return NewGrantStore(client, nil, logger.NewTestLogger(t)), mock
}

func grantColumns() []string {
	return []string{"id", "title", "sponsor", "summary", "description", "categories", "eligibility",
		"purpose_tags", "locations", "amount_min", "amount_max", "amount_text", "deadline_date",
		"url", "status", "quality_score", "updated_at"}
}

func TestGrantStore_ListOpen(t *testing.T) {
	store, mock := newTestGrantStore(t)
	updatedAt := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	deadline := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(grantColumns()).
		AddRow("grant-1", "Sustainable Agriculture Fund", "USDA", "Farm support", nil,
			[]byte(`["agriculture"]`), []byte(`["nonprofits"]`), []byte(`["equipment"]`),
			[]byte(`[{"type":"state","value":"CA"}]`), 5000.0, 25000.0, nil, deadline,
			"https://grants.example.gov/agri", "open", 0.8, updatedAt).
		AddRow("grant-2", "Open Grant", nil, nil, nil, nil, nil, nil, nil,
			0.0, 0.0, nil, nil, "https://grants.example.gov/open", "open", 0.0, updatedAt)
	mock.ExpectQuery("SELECT id, title, sponsor").
		WithArgs(model.GrantStatusOpen, 100).
		WillReturnRows(rows)

	grants, err := store.ListOpen(context.Background(), 100)

	require.NoError(t, err)
	require.Len(t, grants, 2)
	assert.Equal(t, "grant-1", grants[0].ID)
	assert.Equal(t, []string{"nonprofits"}, grants[0].EligibilityTags)
	require.Len(t, grants[0].Locations, 1)
	assert.Equal(t, "CA", grants[0].Locations[0].Value)
	require.NotNil(t, grants[0].DeadlineDate)
	assert.Nil(t, grants[1].DeadlineDate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGrantStore_ListOpenSkipsBadRow(t *testing.T) {
	store, mock := newTestGrantStore(t)
	updatedAt := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	// Malformed eligibility JSON degrades to an empty tag list.
	rows := sqlmock.NewRows(grantColumns()).
		AddRow("grant-1", "Fund", nil, nil, nil, nil, []byte(`{{broken`), nil, nil,
			0.0, 0.0, nil, nil, "https://example.gov", "open", 0.0, updatedAt)
	mock.ExpectQuery("SELECT id, title, sponsor").WillReturnRows(rows)

	grants, err := store.ListOpen(context.Background(), 100)

	require.NoError(t, err)
	require.Len(t, grants, 1)
	assert.Empty(t, grants[0].EligibilityTags)
}

func TestGrantStore_Get(t *testing.T) {
	store, mock := newTestGrantStore(t)
	updatedAt := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(grantColumns()).
		AddRow("grant-1", "Fund", nil, nil, nil, nil, nil, nil, nil,
			0.0, 0.0, nil, nil, "https://example.gov", "open", 0.0, updatedAt)
	mock.ExpectQuery("SELECT id, title, sponsor").WithArgs("grant-1").WillReturnRows(rows)

	grant, err := store.Get(context.Background(), "grant-1")

	require.NoError(t, err)
	require.NotNil(t, grant)
	assert.Equal(t, "grant-1", grant.ID)
}

func TestGrantStore_GetAbsent(t *testing.T) {
	store, mock := newTestGrantStore(t)

	mock.ExpectQuery("SELECT id, title, sponsor").
		WithArgs("grant-missing").
		WillReturnRows(sqlmock.NewRows(grantColumns()))

	grant, err := store.Get(context.Background(), "grant-missing")

	require.NoError(t, err)
	assert.Nil(t, grant)
}

func TestGrantStore_Upsert(t *testing.T) {
	store, mock := newTestGrantStore(t)

	mock.ExpectExec("INSERT INTO grants").WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Upsert(context.Background(), &model.GrantRecord{
		ID:    "grant-1",
		Title: "Sustainable Agriculture Fund",
		URL:   "https://grants.example.gov/agri",
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGrantStore_UpsertRequiresIDAndTitle(t *testing.T) {
	store, _ := newTestGrantStore(t)

	assert.Error(t, store.Upsert(context.Background(), &model.GrantRecord{Title: "No ID"}))
	assert.Error(t, store.Upsert(context.Background(), &model.GrantRecord{ID: "no-title"}))
}
