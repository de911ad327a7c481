package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localnerve/formsdb/internal/conditions"
	"github.com/localnerve/formsdb/internal/fields"
	"github.com/localnerve/formsdb/internal/models"
	"github.com/localnerve/formsdb/internal/services"
	"github.com/localnerve/formsdb/internal/types"
	"github.com/localnerve/formsdb/tests/helpers"
)

func TestSaveFieldsMergesById(t *testing.T) {
	db := helpers.SetupTestDB(t)
	rv := &helpers.RecordingRevalidator{}
	svc := services.NewFieldService(db, rv)
	ctx := context.Background()

	form := helpers.CreateTestForm(t, db, "owner", "Merge")

	saved, version, err := svc.SaveFields(ctx, "owner", form.ID, nil, []services.FieldInput{
		{ID: "first", Type: "text", Label: "First"},
		{ID: "second", Type: "tel", Label: "Second"},
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), version)
	require.Len(t, saved, 2)
	assert.Equal(t, fields.TypePhone, saved[1].Type, "legacy alias is canonicalized")

	// a later save touching one field keeps the other
	pos := 5
	saved, version, err = svc.SaveFields(ctx, "owner", form.ID, &version, []services.FieldInput{
		{ID: "first", Type: "textarea", Label: "First, longer", Position: &pos},
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), version)
	require.Len(t, saved, 2)
	assert.Equal(t, "second", saved[0].ID)
	assert.Equal(t, fields.TypeTextarea, saved[1].Type)

	assert.Contains(t, rv.Signals(), "FORM_FIELDS:"+form.ID)
	assert.Contains(t, rv.Signals(), "PUBLIC_FORM:"+form.ID)
}

func TestSaveFieldsRejectsBadDefinitions(t *testing.T) {
	db := helpers.SetupTestDB(t)
	svc := services.NewFieldService(db, &helpers.RecordingRevalidator{})
	ctx := context.Background()

	form := helpers.CreateTestForm(t, db, "owner", "Bad")
	helpers.CreateTestFields(t, db, form.ID, helpers.Field("a", fields.TypeText, false))

	rule := func(dependsOn string, c conditions.Condition) *conditions.Rule {
		return &conditions.Rule{DependsOn: dependsOn, Condition: c}
	}

	cases := []struct {
		name string
		defs []services.FieldInput
	}{
		{"unknown type", []services.FieldInput{
			{ID: "x", Type: "hologram", Label: "X"},
		}},
		{"options on text", []services.FieldInput{
			{ID: "x", Type: "text", Label: "X", Options: []fields.Option{{Label: "a", Value: "a"}}},
		}},
		{"duplicate ids", []services.FieldInput{
			{ID: "x", Type: "text", Label: "X"},
			{ID: "x", Type: "text", Label: "Y"},
		}},
		{"unknown condition", []services.FieldInput{
			{ID: "x", Type: "text", Label: "X", ConditionalLogic: rule("a", "like")},
		}},
		{"self dependency", []services.FieldInput{
			{ID: "x", Type: "text", Label: "X", ConditionalLogic: rule("x", conditions.Equals)},
		}},
		{"unknown dependency", []services.FieldInput{
			{ID: "x", Type: "text", Label: "X", ConditionalLogic: rule("ghost", conditions.Equals)},
		}},
		// redefines the stored field a
		{"cycle", []services.FieldInput{
			{ID: "a", Type: "text", Label: "A", ConditionalLogic: rule("x", conditions.Equals)},
			{ID: "x", Type: "text", Label: "X", ConditionalLogic: rule("a", conditions.Equals)},
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := svc.SaveFields(ctx, "owner", form.ID, nil, tc.defs)
			var cfgErr *types.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
		})
	}

	assert.Equal(t, int64(1), helpers.CountRows(t, db, &models.FormField{}, "form_id = ?", form.ID))

	var stored models.Form
	require.NoError(t, db.First(&stored, "id = ?", form.ID).Error)
	assert.Zero(t, stored.Version, "rejected saves leave the version alone")
}

func TestSaveFieldsOwnerAndVersion(t *testing.T) {
	db := helpers.SetupTestDB(t)
	svc := services.NewFieldService(db, &helpers.RecordingRevalidator{})
	ctx := context.Background()

	form := helpers.CreateTestForm(t, db, "owner", "Owned")
	defs := []services.FieldInput{{ID: "q", Type: "text", Label: "Q"}}

	_, _, err := svc.SaveFields(ctx, "stranger", form.ID, nil, defs)
	var notFound *types.NotFoundError
	require.ErrorAs(t, err, &notFound)

	stale := uint64(3)
	_, _, err = svc.SaveFields(ctx, "owner", form.ID, &stale, defs)
	var verr *types.VersionError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, uint64(0), verr.Actual)
}

func TestCheckForm(t *testing.T) {
	db := helpers.SetupTestDB(t)
	svc := services.NewFieldService(db, &helpers.RecordingRevalidator{})
	ctx := context.Background()

	form := helpers.CreateTestForm(t, db, "owner", "Check")
	helpers.CreateTestFields(t, db, form.ID,
		helpers.WithOptions(helpers.Field("pick", fields.TypeSelect, false), "a"),
		helpers.WithRule(helpers.Field("more", fields.TypeText, false), "pick", conditions.Equals, "a"),
	)
	require.NoError(t, svc.CheckForm(ctx, form.ID))

	// a select whose options were lost is reported
	helpers.CreateTestFields(t, db, form.ID, helpers.Field("broken", fields.TypeRadio, false))
	var cfgErr *types.ConfigurationError
	require.ErrorAs(t, svc.CheckForm(ctx, form.ID), &cfgErr)
	assert.Equal(t, []string{"broken"}, cfgErr.FieldIDs)
}
