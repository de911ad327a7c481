package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/hints"

	"github.com/localnerve/formsdb/internal/conditions"
	"github.com/localnerve/formsdb/internal/fields"
	"github.com/localnerve/formsdb/internal/logging"
	"github.com/localnerve/formsdb/internal/metrics"
	"github.com/localnerve/formsdb/internal/models"
	"github.com/localnerve/formsdb/internal/types"
)

// SubmitInput is one submission of answers keyed by field id.
type SubmitInput struct {
	FormID   string
	Answers  map[string]any
	UserID   *string
	Metadata models.ResponseMetadata
}

// Receipt identifies a persisted response.
type Receipt struct {
	ResponseID    string    `json:"id"`
	FormID        string    `json:"form_id"`
	UserID        *string   `json:"user_id"`
	CompletedAt   time.Time `json:"completed_at"`
	SkippedFields []string  `json:"skipped_fields,omitempty"`
}

type ResponseService struct {
	db          *gorm.DB
	revalidator Revalidator
	now         func() time.Time
}

func NewResponseService(db *gorm.DB, revalidator Revalidator) *ResponseService {
	return &ResponseService{
		db:          db,
		revalidator: revalidator,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// PublicForm is what an anonymous visitor needs to render a form.
type PublicForm struct {
	Form   models.Form        `json:"form"`
	Fields []models.FormField `json:"fields"`
}

// GetPublicForm returns an active form with its active fields in position
// order. Missing and inactive forms are both reported as missing.
func (s *ResponseService) GetPublicForm(ctx context.Context, formID string) (*PublicForm, error) {
	db := s.db.WithContext(ctx)

	form, err := loadForm(db, formID)
	if err != nil {
		return nil, err
	}
	if !form.Active {
		return nil, &types.NotFoundError{Entity: "form", ID: formID}
	}

	list, err := loadFields(db, formID, true)
	if err != nil {
		return nil, err
	}
	return &PublicForm{Form: *form, Fields: list}, nil
}

// Visibility evaluates the active fields of a form against partial answers.
func (s *ResponseService) Visibility(ctx context.Context, formID string, answers map[string]any) (conditions.Result, error) {
	public, err := s.GetPublicForm(ctx, formID)
	if err != nil {
		return nil, err
	}
	return conditions.Evaluate(models.ConditionFields(public.Fields), answers)
}

// Submit validates answers against the form's current fields and persists
// the response with one value row per normalized answer. Nothing is stored
// unless every answer is valid.
func (s *ResponseService) Submit(ctx context.Context, in SubmitInput) (*Receipt, error) {
	db := s.db.WithContext(ctx)

	form, err := loadForm(db, in.FormID)
	if err != nil {
		return nil, rejected(err)
	}
	if !form.Active {
		return nil, rejected(&types.InactiveFormError{FormID: form.ID})
	}
	if err := s.checkIdentity(form, in.UserID); err != nil {
		return nil, rejected(err)
	}
	if err := s.checkLimits(db, form, in.UserID); err != nil {
		return nil, rejected(err)
	}

	active, err := loadFields(db, form.ID, true)
	if err != nil {
		return nil, err
	}

	values, skipped, err := normalizeAnswers(form.ID, active, in.Answers)
	if err != nil {
		return nil, rejected(err)
	}

	meta := in.Metadata
	if meta.SubmittedAt.IsZero() {
		meta.SubmittedAt = s.now()
	}
	meta.SkippedFields = skipped

	response := models.FormResponse{
		FormID:      form.ID,
		UserID:      in.UserID,
		CompletedAt: s.now(),
		Data:        models.NewJSON(in.Answers),
		Metadata:    models.NewJSON(meta),
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		// re-check under the transaction so concurrent submissions cannot both take the last slot
		if err := s.checkLimits(tx, form, in.UserID); err != nil {
			return err
		}
		if err := tx.Create(&response).Error; err != nil {
			return fmt.Errorf("insert response: %w", err)
		}
		if len(values) == 0 {
			return nil
		}
		for i := range values {
			values[i].ResponseID = response.ID
		}
		if err := tx.Create(&values).Error; err != nil {
			return fmt.Errorf("insert response values: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, rejected(err)
	}

	metrics.ResponsesAccepted.Inc()
	s.revalidator.Emit(ctx, Of(TagFormResponses, form.ID), All(TagDashboard))

	return &Receipt{
		ResponseID:    response.ID,
		FormID:        form.ID,
		UserID:        response.UserID,
		CompletedAt:   response.CompletedAt,
		SkippedFields: skipped,
	}, nil
}

func (s *ResponseService) checkIdentity(form *models.Form, userID *string) error {
	hasUser := userID != nil && *userID != ""
	if form.RequireLogin && !hasUser {
		return &types.AuthenticationRequiredError{Reason: "this form requires login"}
	}
	if form.LimitSubmissions && !hasUser {
		return &types.AuthenticationRequiredError{Reason: "this form accepts one response per user"}
	}
	return nil
}

func (s *ResponseService) checkLimits(db *gorm.DB, form *models.Form, userID *string) error {
	if form.LimitSubmissions && userID != nil {
		var n int64
		err := db.Model(&models.FormResponse{}).
			Where("form_id = ? AND user_id = ?", form.ID, *userID).
			Count(&n).Error
		if err != nil {
			return fmt.Errorf("count user responses: %w", err)
		}
		if n > 0 {
			return &types.SubmissionLimitError{FormID: form.ID, Reason: "already submitted"}
		}
	}

	if form.MaxResponses > 0 {
		var n int64
		err := db.Model(&models.FormResponse{}).Where("form_id = ?", form.ID).Count(&n).Error
		if err != nil {
			return fmt.Errorf("count responses: %w", err)
		}
		if n >= int64(form.MaxResponses) {
			return &types.SubmissionLimitError{FormID: form.ID, Reason: "response limit reached"}
		}
	}
	return nil
}

// normalizeAnswers coerces every answer to a visible field. It returns the
// value rows, the sorted ids of answers that match no active field, and a
// ValidationError listing every invalid or missing required field.
func normalizeAnswers(formID string, active []models.FormField, answers map[string]any) ([]models.FormResponseValue, []string, error) {
	visibility, err := conditions.Evaluate(models.ConditionFields(active), answers)
	if err != nil {
		return nil, nil, err
	}

	var (
		values []models.FormResponseValue
		verr   types.ValidationError
	)
	known := make(map[string]struct{}, len(active))

	for _, f := range active {
		known[f.ID] = struct{}{}

		vis := visibility[f.ID]
		if !vis.Visible {
			continue
		}

		normalized, err := fields.Normalize(f.Spec(), answers[f.ID])
		if err != nil {
			verr.Add(f.ID, err.Error())
			continue
		}
		if len(normalized) == 0 {
			if vis.Required {
				verr.Add(f.ID, "required")
			}
			continue
		}

		for _, v := range normalized {
			values = append(values, models.FormResponseValue{
				FormID:       formID,
				FieldID:      f.ID,
				StringValue:  v.String,
				NumericValue: v.Numeric,
				BooleanValue: v.Boolean,
				IsMultiValue: v.Multi,
			})
		}
	}

	var skipped []string
	for id, raw := range answers {
		if _, ok := known[id]; ok || fields.IsEmpty(raw) {
			continue
		}
		skipped = append(skipped, id)
	}
	sort.Strings(skipped)
	for _, id := range skipped {
		metrics.UnknownFieldsSkipped.Inc()
		logging.Logger.WithFields(logrus.Fields{
			"form_id":  formID,
			"field_id": id,
		}).Warn("skipping answer for unknown field")
	}

	if err := verr.Err(); err != nil {
		return nil, skipped, err
	}
	return values, skipped, nil
}

// ListResponses returns a form's responses, newest first, with their values.
func (s *ResponseService) ListResponses(ctx context.Context, ownerID, formID string) ([]models.FormResponse, error) {
	db := s.db.WithContext(ctx)
	if _, err := findOwnedForm(db, ownerID, formID); err != nil {
		return nil, err
	}

	var list []models.FormResponse
	err := db.Preload("Values", func(db *gorm.DB) *gorm.DB {
		return db.Order("id ASC")
	}).
		Where("form_id = ?", formID).
		Order("completed_at DESC").
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	return list, nil
}

func (s *ResponseService) GetResponse(ctx context.Context, ownerID, formID, responseID string) (*models.FormResponse, error) {
	db := s.db.WithContext(ctx)
	if _, err := findOwnedForm(db, ownerID, formID); err != nil {
		return nil, err
	}

	var response models.FormResponse
	err := db.Preload("Values", func(db *gorm.DB) *gorm.DB {
		return db.Order("id ASC")
	}).
		Where("id = ? AND form_id = ?", responseID, formID).
		First(&response).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &types.NotFoundError{Entity: "response", ID: responseID}
	}
	if err != nil {
		return nil, fmt.Errorf("load response: %w", err)
	}
	return &response, nil
}

// loadForm loads a form regardless of owner, for the public paths.
func loadForm(db *gorm.DB, id string) (*models.Form, error) {
	var form models.Form
	err := db.Clauses(hints.Comment("select", "formsdb:public")).Where("id = ?", id).First(&form).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &types.NotFoundError{Entity: "form", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("load form: %w", err)
	}
	return &form, nil
}

// rejected counts a refused submission by reason. Other errors pass through uncounted.
func rejected(err error) error {
	var reason string
	switch {
	case errors.As(err, new(*types.NotFoundError)):
		reason = "not_found"
	case errors.As(err, new(*types.InactiveFormError)):
		reason = "inactive"
	case errors.As(err, new(*types.AuthenticationRequiredError)):
		reason = "login_required"
	case errors.As(err, new(*types.SubmissionLimitError)):
		reason = "limit"
	case errors.As(err, new(*types.ValidationError)):
		reason = "invalid"
	case errors.As(err, new(*types.ConfigurationError)):
		reason = "configuration"
	}
	if reason != "" {
		metrics.ResponsesRejected.WithLabelValues(reason).Inc()
	}
	return err
}
