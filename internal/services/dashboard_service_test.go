package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localnerve/formsdb/internal/fields"
	"github.com/localnerve/formsdb/internal/models"
	"github.com/localnerve/formsdb/internal/services"
	"github.com/localnerve/formsdb/internal/types"
	"github.com/localnerve/formsdb/tests/helpers"
)

func TestDashboardWidgets(t *testing.T) {
	db := helpers.SetupTestDB(t)
	rv := &helpers.RecordingRevalidator{}
	dashboards := services.NewDashboardService(db, rv)
	responses := services.NewResponseService(db, rv)
	ctx := context.Background()

	form := helpers.CreateTestForm(t, db, "owner", "Scores")
	helpers.CreateTestFields(t, db, form.ID,
		helpers.Field("score", fields.TypeNumber, false),
		helpers.WithOptions(helpers.Field("team", fields.TypeSelect, false), "red", "blue"),
	)
	for _, answers := range []map[string]any{
		{"score": 10, "team": "red"},
		{"score": 20, "team": "blue"},
		{"score": 30, "team": "red"},
		{"team": "blue"},
	} {
		_, err := responses.Submit(ctx, services.SubmitInput{FormID: form.ID, Answers: answers})
		require.NoError(t, err)
	}

	dashboard, err := dashboards.CreateDashboard(ctx, "owner", services.DashboardInput{
		Name: "Scores",
		Widgets: []models.Widget{
			{Title: "Responses", FormID: form.ID, Kind: models.WidgetCount},
			{Title: "Teams", FormID: form.ID, FieldID: "team", Kind: models.WidgetDistribution},
			{Title: "Average", FormID: form.ID, FieldID: "score", Kind: models.WidgetAverage},
			{Title: "Total", FormID: form.ID, FieldID: "score", Kind: models.WidgetSum},
		},
	})
	require.NoError(t, err)
	for _, w := range dashboard.Widgets.Data {
		assert.NotEmpty(t, w.ID, "widgets get an id")
	}

	data, err := dashboards.DashboardData(ctx, "owner", dashboard.ID)
	require.NoError(t, err)
	require.Len(t, data, 4)

	assert.Equal(t, int64(4), data[0].Count)
	assert.Equal(t, []services.Bucket{{Value: "blue", Count: 2}, {Value: "red", Count: 2}}, data[1].Distribution)
	require.NotNil(t, data[2].Value)
	assert.Equal(t, 20.0, *data[2].Value)
	assert.Equal(t, int64(3), data[2].Count)
	require.NotNil(t, data[3].Value)
	assert.Equal(t, 60.0, *data[3].Value)
}

func TestDashboardValidation(t *testing.T) {
	db := helpers.SetupTestDB(t)
	dashboards := services.NewDashboardService(db, &helpers.RecordingRevalidator{})
	ctx := context.Background()

	mine := helpers.CreateTestForm(t, db, "owner", "Mine")
	theirs := helpers.CreateTestForm(t, db, "other", "Theirs")

	_, err := dashboards.CreateDashboard(ctx, "owner", services.DashboardInput{
		Name:    "Bad kind",
		Widgets: []models.Widget{{FormID: mine.ID, Kind: "median"}},
	})
	assert.ErrorAs(t, err, new(*types.ConfigurationError))

	_, err = dashboards.CreateDashboard(ctx, "owner", services.DashboardInput{
		Name:    "No field",
		Widgets: []models.Widget{{FormID: mine.ID, Kind: models.WidgetAverage}},
	})
	assert.ErrorAs(t, err, new(*types.ConfigurationError))

	_, err = dashboards.CreateDashboard(ctx, "owner", services.DashboardInput{
		Name:    "Not mine",
		Widgets: []models.Widget{{FormID: theirs.ID, Kind: models.WidgetCount}},
	})
	assert.ErrorAs(t, err, new(*types.NotFoundError))

	dashboard, err := dashboards.CreateDashboard(ctx, "owner", services.DashboardInput{Name: "Empty"})
	require.NoError(t, err)

	_, err = dashboards.GetDashboard(ctx, "other", dashboard.ID)
	assert.ErrorAs(t, err, new(*types.NotFoundError))

	updated, err := dashboards.UpdateDashboard(ctx, "owner", dashboard.ID, services.DashboardInput{Name: "Renamed"})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)

	require.NoError(t, dashboards.DeleteDashboard(ctx, "owner", dashboard.ID))
	list, err := dashboards.ListDashboards(ctx, "owner")
	require.NoError(t, err)
	assert.Empty(t, list)
}
