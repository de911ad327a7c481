package services

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"github.com/localnerve/formsdb/internal/logging"
	"github.com/localnerve/formsdb/internal/models"
)

// AccessSeed is the default set of permissions and roles.
type AccessSeed struct {
	Permissions []SeedPermission `yaml:"permissions"`
	Roles       []SeedRole       `yaml:"roles"`
}

type SeedPermission struct {
	Slug        string `yaml:"slug"`
	Description string `yaml:"description"`
}

type SeedRole struct {
	Slug        string   `yaml:"slug"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

// ParseAccessSeed decodes a seed document.
func ParseAccessSeed(data []byte) (*AccessSeed, error) {
	var seed AccessSeed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse access seed: %w", err)
	}
	for _, p := range seed.Permissions {
		if p.Slug == "" {
			return nil, fmt.Errorf("parse access seed: permission without slug")
		}
	}
	for _, r := range seed.Roles {
		if r.Slug == "" {
			return nil, fmt.Errorf("parse access seed: role without slug")
		}
	}
	return &seed, nil
}

// SeedAccessControl creates missing permissions and roles, updates their
// descriptions and names, and sets each seeded role's permissions.
func SeedAccessControl(ctx context.Context, db *gorm.DB, seed *AccessSeed) error {
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, p := range seed.Permissions {
			var perm models.Permission
			err := tx.Where(models.Permission{Slug: p.Slug}).
				Assign(models.Permission{Description: p.Description}).
				FirstOrCreate(&perm).Error
			if err != nil {
				return fmt.Errorf("seed permission %s: %w", p.Slug, err)
			}
		}

		for _, r := range seed.Roles {
			name := r.Name
			if name == "" {
				name = r.Slug
			}
			var role models.Role
			err := tx.Where(models.Role{Slug: r.Slug}).
				Assign(models.Role{Name: name}).
				FirstOrCreate(&role).Error
			if err != nil {
				return fmt.Errorf("seed role %s: %w", r.Slug, err)
			}
			if err := setRolePermissions(tx, role.ID, r.Permissions); err != nil {
				return fmt.Errorf("seed role %s permissions: %w", r.Slug, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	logging.LogEvent("access_seeded", map[string]interface{}{
		"permissions": len(seed.Permissions),
		"roles":       len(seed.Roles),
	})
	return nil
}
