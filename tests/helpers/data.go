// data.go
//
// Form builder data service
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of formsdb.
// formsdb is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// formsdb is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with formsdb.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package helpers

import (
	"context"
	"sync"
	"testing"

	"gorm.io/gorm"

	"github.com/localnerve/formsdb/data"
	"github.com/localnerve/formsdb/internal/conditions"
	"github.com/localnerve/formsdb/internal/config"
	"github.com/localnerve/formsdb/internal/database"
	"github.com/localnerve/formsdb/internal/fields"
	"github.com/localnerve/formsdb/internal/logging"
	"github.com/localnerve/formsdb/internal/models"
	"github.com/localnerve/formsdb/internal/services"
)

// SetupTestDB creates a migrated in-memory SQLite database for testing.
// The pool is held to one connection so every query sees the same database.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	cfg := &config.Config{DBType: "sqlite", DBAppDatabase: ":memory:"}
	dialector, err := database.Dialector(cfg, "", "")
	if err != nil {
		t.Fatalf("Failed to build dialector: %v", err)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logging.GormLogger("silent")})
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get test database handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return db
}

// SeedAccess loads the embedded roles and permissions
func SeedAccess(t *testing.T, db *gorm.DB) {
	t.Helper()
	seed, err := services.ParseAccessSeed(data.AccessSeed)
	if err != nil {
		t.Fatalf("Failed to parse access seed: %v", err)
	}
	if err := services.SeedAccessControl(context.Background(), db, seed); err != nil {
		t.Fatalf("Failed to seed access control: %v", err)
	}
}

// GrantRole assigns a seeded role to userID
func GrantRole(t *testing.T, db *gorm.DB, userID, roleSlug string) {
	t.Helper()
	access := services.NewAccessService(db, nil, services.LogRevalidator{})
	if _, err := access.AssignRole(context.Background(), userID, roleSlug); err != nil {
		t.Fatalf("Failed to grant role %s to %s: %v", roleSlug, userID, err)
	}
}

// CreateTestForm creates an active form owned by ownerID
func CreateTestForm(t *testing.T, db *gorm.DB, ownerID, title string) *models.Form {
	t.Helper()
	form := models.Form{
		OwnerID: ownerID,
		Title:   title,
		Active:  true,
	}
	if err := db.Create(&form).Error; err != nil {
		t.Fatalf("Failed to create form: %v", err)
	}
	return &form
}

// UpdateTestForm sets columns on a form directly
func UpdateTestForm(t *testing.T, db *gorm.DB, formID string, columns map[string]interface{}) {
	t.Helper()
	if err := db.Model(&models.Form{}).Where("id = ?", formID).Updates(columns).Error; err != nil {
		t.Fatalf("Failed to update form %s: %v", formID, err)
	}
}

// Field builds an active field definition for CreateTestFields
func Field(id string, fieldType fields.Type, required bool) models.FormField {
	return models.FormField{
		ID:       id,
		Type:     fieldType,
		Label:    id,
		Required: required,
		Active:   true,
	}
}

// WithOptions sets the choice list of a field
func WithOptions(f models.FormField, values ...string) models.FormField {
	options := make([]fields.Option, len(values))
	for i, v := range values {
		options[i] = fields.Option{Label: v, Value: v}
	}
	f.Options = models.NewJSON(options)
	return f
}

// WithRule makes a field conditional on another
func WithRule(f models.FormField, dependsOn string, condition conditions.Condition, value any) models.FormField {
	f.ConditionalLogic = models.NewJSON(&conditions.Rule{
		DependsOn: dependsOn,
		Condition: condition,
		Value:     value,
	})
	return f
}

// CreateTestFields stores fields on a form, positioned in the given order
func CreateTestFields(t *testing.T, db *gorm.DB, formID string, list ...models.FormField) {
	t.Helper()
	for i := range list {
		list[i].FormID = formID
		list[i].Position = i
	}
	if err := db.Create(&list).Error; err != nil {
		t.Fatalf("Failed to create fields: %v", err)
	}
}

// CountRows counts the rows of model matching query and args
func CountRows(t *testing.T, db *gorm.DB, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	if err := db.Model(model).Where(query, args...).Count(&n).Error; err != nil {
		t.Fatalf("Failed to count rows: %v", err)
	}
	return n
}

// RecordingRevalidator keeps every emitted signal for assertions
type RecordingRevalidator struct {
	mu      sync.Mutex
	signals []services.Signal
}

func (r *RecordingRevalidator) Emit(_ context.Context, signals ...services.Signal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signals = append(r.signals, signals...)
}

// Signals returns the emitted signals in their string form
func (r *RecordingRevalidator) Signals() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.signals))
	for i, s := range r.signals {
		out[i] = s.String()
	}
	return out
}
