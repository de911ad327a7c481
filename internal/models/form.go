package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/localnerve/formsdb/internal/conditions"
	"github.com/localnerve/formsdb/internal/fields"
)

// Form is a named container of fields that collects responses.
type Form struct {
	ID               string    `gorm:"type:char(36);primaryKey" json:"id"`
	OwnerID          string    `gorm:"size:191;not null;index" json:"owner_id"`
	Title            string    `gorm:"size:255;not null" json:"title"`
	Description      string    `gorm:"type:text" json:"description"`
	Active           bool      `gorm:"not null" json:"active"`
	RequireLogin     bool      `gorm:"not null" json:"require_login"`
	LimitSubmissions bool      `gorm:"not null" json:"limit_submissions"`
	MaxResponses     int       `gorm:"not null;default:0" json:"max_responses"`
	Version          uint64    `gorm:"not null;default:0" json:"version"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// BeforeCreate assigns a uuid when none was given.
func (f *Form) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	return nil
}

// FormField is one input of a form. Its id is unique within the form.
type FormField struct {
	FormID           string                       `gorm:"type:char(36);primaryKey" json:"form_id"`
	ID               string                       `gorm:"size:64;primaryKey" json:"id"`
	Type             fields.Type                  `gorm:"size:32;not null" json:"type"`
	Label            string                       `gorm:"size:255;not null" json:"label"`
	Required         bool                         `gorm:"not null" json:"required"`
	Options          JSONColumn[[]fields.Option]  `json:"options"`
	Settings         JSONColumn[fields.Settings]  `json:"settings"`
	Placeholder      string                       `gorm:"size:255" json:"placeholder"`
	Position         int                          `gorm:"not null;index" json:"position"`
	ConditionalLogic JSONColumn[*conditions.Rule] `json:"conditional_logic"`
	Active           bool                         `gorm:"not null" json:"active"`
	CreatedAt        time.Time                    `json:"created_at"`
	UpdatedAt        time.Time                    `json:"updated_at"`
}

// Spec returns the type payload of the field.
func (f FormField) Spec() fields.Spec {
	return fields.Spec{Type: f.Type, Options: f.Options.Data, Settings: f.Settings.Data}
}

// Condition returns the field as seen by the visibility evaluator.
func (f FormField) Condition() conditions.Field {
	return conditions.Field{ID: f.ID, Required: f.Required, Rule: f.ConditionalLogic.Data}
}

// ConditionFields maps a field list for the visibility evaluator.
func ConditionFields(list []FormField) []conditions.Field {
	out := make([]conditions.Field, len(list))
	for i, f := range list {
		out[i] = f.Condition()
	}
	return out
}
