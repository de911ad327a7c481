package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/localnerve/formsdb/internal/models"
	"github.com/localnerve/formsdb/internal/types"
)

// FormInput is the editable part of a form. Nil pointers keep the current
// value on update and take the default on create.
type FormInput struct {
	Title            string `json:"title" validate:"required,max=255"`
	Description      string `json:"description"`
	Active           *bool  `json:"active"`
	RequireLogin     *bool  `json:"require_login"`
	LimitSubmissions *bool  `json:"limit_submissions"`
	MaxResponses     *int   `json:"max_responses" validate:"omitempty,min=0"`
}

type FormService struct {
	db          *gorm.DB
	revalidator Revalidator
}

func NewFormService(db *gorm.DB, revalidator Revalidator) *FormService {
	return &FormService{db: db, revalidator: revalidator}
}

func (s *FormService) CreateForm(ctx context.Context, ownerID string, in FormInput) (*models.Form, error) {
	form := &models.Form{
		OwnerID:     ownerID,
		Title:       in.Title,
		Description: in.Description,
		Active:      true,
	}
	applyFormInput(form, in)

	if err := s.db.WithContext(ctx).Create(form).Error; err != nil {
		return nil, fmt.Errorf("create form: %w", err)
	}

	s.revalidator.Emit(ctx, All(TagForms), Of(TagForm, form.ID))
	return form, nil
}

func (s *FormService) ListForms(ctx context.Context, ownerID string) ([]models.Form, error) {
	var forms []models.Form
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&forms).Error
	if err != nil {
		return nil, fmt.Errorf("list forms: %w", err)
	}
	return forms, nil
}

func (s *FormService) GetForm(ctx context.Context, ownerID, id string) (*models.Form, error) {
	return findOwnedForm(s.db.WithContext(ctx), ownerID, id)
}

// UpdateForm applies in when version matches the stored version, and returns
// the form at its new version.
func (s *FormService) UpdateForm(ctx context.Context, ownerID, id string, version uint64, in FormInput) (*models.Form, error) {
	var updated *models.Form

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		form, err := findOwnedForm(tx, ownerID, id)
		if err != nil {
			return err
		}
		if form.Version != version {
			return &types.VersionError{Entity: "form", ID: id, Expected: version, Actual: form.Version}
		}

		form.Title = in.Title
		form.Description = in.Description
		applyFormInput(form, in)

		result := tx.Model(&models.Form{}).
			Where("id = ? AND version = ?", id, version).
			Updates(map[string]interface{}{
				"title":             form.Title,
				"description":       form.Description,
				"active":            form.Active,
				"require_login":     form.RequireLogin,
				"limit_submissions": form.LimitSubmissions,
				"max_responses":     form.MaxResponses,
				"version":           version + 1,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return &types.VersionError{Entity: "form", ID: id, Expected: version, Actual: version + 1}
		}

		updated, err = findOwnedForm(tx, ownerID, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.revalidator.Emit(ctx, All(TagForms), Of(TagForm, id), Of(TagPublicForm, id))
	return updated, nil
}

// DeleteForm removes the form with its fields, responses and values.
func (s *FormService) DeleteForm(ctx context.Context, ownerID, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := findOwnedForm(tx, ownerID, id); err != nil {
			return err
		}
		if err := tx.Where("form_id = ?", id).Delete(&models.FormResponseValue{}).Error; err != nil {
			return err
		}
		if err := tx.Where("form_id = ?", id).Delete(&models.FormResponse{}).Error; err != nil {
			return err
		}
		if err := tx.Where("form_id = ?", id).Delete(&models.FormField{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&models.Form{}).Error
	})
	if err != nil {
		return err
	}

	s.revalidator.Emit(ctx,
		All(TagForms), Of(TagForm, id), Of(TagPublicForm, id),
		Of(TagFormFields, id), Of(TagFormResponses, id), All(TagDashboards),
	)
	return nil
}

func applyFormInput(form *models.Form, in FormInput) {
	if in.Active != nil {
		form.Active = *in.Active
	}
	if in.RequireLogin != nil {
		form.RequireLogin = *in.RequireLogin
	}
	if in.LimitSubmissions != nil {
		form.LimitSubmissions = *in.LimitSubmissions
	}
	if in.MaxResponses != nil {
		form.MaxResponses = *in.MaxResponses
	}
}

// findOwnedForm loads a form visible to ownerID. Forms of other owners are reported as missing.
func findOwnedForm(db *gorm.DB, ownerID, id string) (*models.Form, error) {
	var form models.Form
	err := db.Where("id = ? AND owner_id = ?", id, ownerID).First(&form).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &types.NotFoundError{Entity: "form", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("load form: %w", err)
	}
	return &form, nil
}
