package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ResponseMetadata is request context recorded alongside a submission.
type ResponseMetadata struct {
	UserAgent     string    `json:"user_agent,omitempty"`
	IP            string    `json:"ip,omitempty"`
	SubmittedAt   time.Time `json:"submitted_at"`
	SkippedFields []string  `json:"skipped_fields,omitempty"`
}

// FormResponse is one immutable submission of a form.
type FormResponse struct {
	ID          string                       `gorm:"type:char(36);primaryKey" json:"id"`
	FormID      string                       `gorm:"type:char(36);not null;index" json:"form_id"`
	UserID      *string                      `gorm:"size:191;index" json:"user_id"`
	CompletedAt time.Time                    `gorm:"not null" json:"completed_at"`
	Data        JSONColumn[map[string]any]   `json:"data"`
	Metadata    JSONColumn[ResponseMetadata] `json:"metadata"`
	Values      []FormResponseValue          `gorm:"foreignKey:ResponseID" json:"values,omitempty"`
}

// BeforeCreate assigns a uuid when none was given.
func (r *FormResponse) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// FormResponseValue is one normalized answer. Multi-value answers are stored
// as one row per selected value.
type FormResponseValue struct {
	ID           uint64   `gorm:"primaryKey;autoIncrement" json:"id"`
	ResponseID   string   `gorm:"type:char(36);not null;index" json:"response_id"`
	FormID       string   `gorm:"type:char(36);not null;index:idx_value_form_field" json:"form_id"`
	FieldID      string   `gorm:"size:64;not null;index:idx_value_form_field" json:"field_id"`
	StringValue  string   `gorm:"type:text" json:"stringValue"`
	NumericValue *float64 `json:"numericValue"`
	BooleanValue *bool    `json:"booleanValue"`
	IsMultiValue bool     `gorm:"not null" json:"isMultiValue"`
}
