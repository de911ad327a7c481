package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WidgetKind is the aggregate a dashboard widget computes.
type WidgetKind string

const (
	WidgetCount        WidgetKind = "count"
	WidgetDistribution WidgetKind = "distribution"
	WidgetAverage      WidgetKind = "average"
	WidgetSum          WidgetKind = "sum"
)

// NeedsField reports whether the widget aggregates one field's values.
func (k WidgetKind) NeedsField() bool {
	return k == WidgetDistribution || k == WidgetAverage || k == WidgetSum
}

// Valid reports whether k is a known kind.
func (k WidgetKind) Valid() bool {
	return k == WidgetCount || k.NeedsField()
}

// Widget is one tile of a dashboard.
type Widget struct {
	ID      string     `json:"id"`
	Title   string     `json:"title"`
	FormID  string     `json:"form_id"`
	FieldID string     `json:"field_id,omitempty"`
	Kind    WidgetKind `json:"kind"`
}

// Dashboard is an owner's collection of widgets over response data.
type Dashboard struct {
	ID          string               `gorm:"type:char(36);primaryKey" json:"id"`
	OwnerID     string               `gorm:"size:191;not null;index" json:"owner_id"`
	Name        string               `gorm:"size:255;not null" json:"name"`
	Description string               `gorm:"type:text" json:"description"`
	Widgets     JSONColumn[[]Widget] `json:"widgets"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

// BeforeCreate assigns a uuid when none was given.
func (d *Dashboard) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}

// All lists every model for migration, parents first.
func All() []interface{} {
	return []interface{}{
		&Role{},
		&Permission{},
		&RolePermission{},
		&User{},
		&Form{},
		&FormField{},
		&FormResponse{},
		&FormResponseValue{},
		&Dashboard{},
	}
}
