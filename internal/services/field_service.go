package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/hints"

	"github.com/localnerve/formsdb/internal/conditions"
	"github.com/localnerve/formsdb/internal/fields"
	"github.com/localnerve/formsdb/internal/models"
	"github.com/localnerve/formsdb/internal/types"
)

// FieldInput is one field definition as sent by the form editor.
type FieldInput struct {
	ID               string           `json:"id" validate:"omitempty,max=64"`
	Type             string           `json:"type" validate:"required"`
	Label            string           `json:"label" validate:"required,max=255"`
	Required         bool             `json:"required"`
	Options          []fields.Option  `json:"options"`
	Settings         fields.Settings  `json:"settings"`
	Placeholder      string           `json:"placeholder" validate:"max=255"`
	Position         *int             `json:"position"`
	ConditionalLogic *conditions.Rule `json:"conditional_logic"`
	Active           *bool            `json:"active"`
}

type FieldService struct {
	db          *gorm.DB
	revalidator Revalidator
}

func NewFieldService(db *gorm.DB, revalidator Revalidator) *FieldService {
	return &FieldService{db: db, revalidator: revalidator}
}

// GetFields returns a form's fields ordered by position, then id.
func (s *FieldService) GetFields(ctx context.Context, formID string, activeOnly bool) ([]models.FormField, error) {
	return loadFields(s.db.WithContext(ctx), formID, activeOnly)
}

// ListFields returns every field of a form owned by ownerID.
func (s *FieldService) ListFields(ctx context.Context, ownerID, formID string) ([]models.FormField, error) {
	db := s.db.WithContext(ctx)
	if _, err := findOwnedForm(db, ownerID, formID); err != nil {
		return nil, err
	}
	return loadFields(db, formID, false)
}

// SaveFields validates and upserts field definitions of a form in one
// transaction and bumps the form version. When version is non-nil it must
// match the stored form version.
func (s *FieldService) SaveFields(ctx context.Context, ownerID, formID string, version *uint64, defs []FieldInput) ([]models.FormField, uint64, error) {
	incoming, err := buildFields(formID, defs)
	if err != nil {
		return nil, 0, err
	}

	var (
		saved      []models.FormField
		newVersion uint64
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		form, err := findOwnedForm(tx, ownerID, formID)
		if err != nil {
			return err
		}
		if version != nil && *version != form.Version {
			return &types.VersionError{Entity: "form", ID: formID, Expected: *version, Actual: form.Version}
		}

		existing, err := loadFields(tx, formID, false)
		if err != nil {
			return err
		}
		if err := conditions.ValidateGraph(models.ConditionFields(mergeFields(existing, incoming))); err != nil {
			return err
		}

		if len(incoming) > 0 {
			err = tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "form_id"}, {Name: "id"}},
				UpdateAll: true,
			}).Create(&incoming).Error
			if err != nil {
				return fmt.Errorf("save fields: %w", err)
			}
		}

		newVersion = form.Version + 1
		err = tx.Model(&models.Form{}).
			Where("id = ?", formID).
			Update("version", newVersion).Error
		if err != nil {
			return fmt.Errorf("bump form version: %w", err)
		}

		saved, err = loadFields(tx, formID, false)
		return err
	})
	if err != nil {
		return nil, 0, err
	}

	s.revalidator.Emit(ctx, Of(TagFormFields, formID), Of(TagForm, formID), Of(TagPublicForm, formID))
	return saved, newVersion, nil
}

// CheckForm validates the stored field set of a form without changing it.
func (s *FieldService) CheckForm(ctx context.Context, formID string) error {
	list, err := loadFields(s.db.WithContext(ctx), formID, false)
	if err != nil {
		return err
	}
	for _, f := range list {
		if err := f.Spec().Validate(); err != nil {
			return &types.ConfigurationError{FieldIDs: []string{f.ID}, Reason: err.Error()}
		}
	}
	return conditions.ValidateGraph(models.ConditionFields(list))
}

func loadFields(db *gorm.DB, formID string, activeOnly bool) ([]models.FormField, error) {
	q := db.Clauses(hints.Comment("select", "formsdb:fields")).Where("form_id = ?", formID)
	if activeOnly {
		q = q.Where("active = ?", true)
	}

	var list []models.FormField
	if err := q.Order("position ASC").Order("id ASC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("load fields: %w", err)
	}
	return list, nil
}

// buildFields turns definitions into rows, rejecting invalid payloads.
func buildFields(formID string, defs []FieldInput) ([]models.FormField, error) {
	out := make([]models.FormField, 0, len(defs))
	seen := make(map[string]struct{}, len(defs))

	for i, def := range defs {
		id := def.ID
		if id == "" {
			id = uuid.NewString()
		}
		if _, dup := seen[id]; dup {
			return nil, &types.ConfigurationError{FieldIDs: []string{id}, Reason: "duplicate field id"}
		}
		seen[id] = struct{}{}

		typ, err := fields.ParseType(def.Type)
		if err != nil {
			return nil, &types.ConfigurationError{FieldIDs: []string{id}, Reason: err.Error()}
		}

		spec := fields.Spec{Type: typ, Options: def.Options, Settings: def.Settings}
		if err := spec.Validate(); err != nil {
			return nil, &types.ConfigurationError{FieldIDs: []string{id}, Reason: err.Error()}
		}

		position := i
		if def.Position != nil {
			position = *def.Position
		}
		active := true
		if def.Active != nil {
			active = *def.Active
		}

		out = append(out, models.FormField{
			FormID:           formID,
			ID:               id,
			Type:             typ,
			Label:            def.Label,
			Required:         def.Required,
			Options:          models.NewJSON(def.Options),
			Settings:         models.NewJSON(def.Settings),
			Placeholder:      def.Placeholder,
			Position:         position,
			ConditionalLogic: models.NewJSON(def.ConditionalLogic),
			Active:           active,
		})
	}
	return out, nil
}

// mergeFields overlays incoming definitions on the stored set, by id.
func mergeFields(existing, incoming []models.FormField) []models.FormField {
	byID := make(map[string]models.FormField, len(existing)+len(incoming))
	for _, f := range existing {
		byID[f.ID] = f
	}
	for _, f := range incoming {
		byID[f.ID] = f
	}

	merged := make([]models.FormField, 0, len(byID))
	for _, f := range byID {
		merged = append(merged, f)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Position != merged[j].Position {
			return merged[i].Position < merged[j].Position
		}
		return merged[i].ID < merged[j].ID
	})
	return merged
}
