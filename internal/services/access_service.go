package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/localnerve/formsdb/internal/logging"
	"github.com/localnerve/formsdb/internal/metrics"
	"github.com/localnerve/formsdb/internal/models"
	"github.com/localnerve/formsdb/internal/types"
)

// Permission slugs checked by the admin routes.
const (
	PermAdminAccess     = "admin.access"
	PermFormsRead       = "forms.read"
	PermFormsWrite      = "forms.write"
	PermFormsDelete     = "forms.delete"
	PermResponsesRead   = "responses.read"
	PermRolesManage     = "roles.manage"
	PermUsersManage     = "users.manage"
	PermDashboardsRead  = "dashboards.read"
	PermDashboardsWrite = "dashboards.write"
)

// RoleInput creates or renames a role.
type RoleInput struct {
	Name string `json:"name" validate:"required,max=255"`
	Slug string `json:"slug" validate:"required,max=100"`
}

// PermissionInput creates a permission.
type PermissionInput struct {
	Slug        string `json:"slug" validate:"required,max=100"`
	Description string `json:"description" validate:"max=255"`
}

// AccessService resolves and manages role based permissions. A user holds a
// permission only through a role_permissions row of the user's role.
type AccessService struct {
	db          *gorm.DB
	cache       PermissionCache
	revalidator Revalidator
}

// NewAccessService builds the service. cache may be nil.
func NewAccessService(db *gorm.DB, cache PermissionCache, revalidator Revalidator) *AccessService {
	return &AccessService{db: db, cache: cache, revalidator: revalidator}
}

// Authorize reports whether userID holds the permission slug. Any failure to
// resolve denies; the error is returned for logging only.
func (s *AccessService) Authorize(ctx context.Context, userID, slug string) (bool, error) {
	if userID == "" || slug == "" {
		return false, nil
	}

	// decisions are written under the generation seen before the query
	cacheable := false
	var generation int64
	if s.cache != nil {
		decision, err := s.cache.Get(ctx, userID, slug)
		switch {
		case err != nil:
			metrics.PermissionCacheLookups.WithLabelValues("error").Inc()
			logging.Logger.WithField("error", err.Error()).Warn("permission cache read failed")
		case decision.Found:
			metrics.PermissionCacheLookups.WithLabelValues("hit").Inc()
			return decision.Allowed, nil
		default:
			metrics.PermissionCacheLookups.WithLabelValues("miss").Inc()
			cacheable = true
			generation = decision.Generation
		}
	}

	var count int64
	err := s.permissionQuery(ctx, userID).
		Where("permissions.slug = ?", slug).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("resolve permission %s for %s: %w", slug, userID, err)
	}
	allowed := count > 0

	if cacheable {
		if err := s.cache.Set(ctx, generation, userID, slug, allowed); err != nil {
			logging.Logger.WithField("error", err.Error()).Warn("permission cache write failed")
		}
	}
	return allowed, nil
}

// Require returns an AuthorizationError unless userID holds slug.
func (s *AccessService) Require(ctx context.Context, userID, slug string) error {
	allowed, err := s.Authorize(ctx, userID, slug)
	if err != nil {
		logging.Logger.WithFields(logrus.Fields{
			"user_id":    userID,
			"permission": slug,
			"error":      err.Error(),
		}).Error("permission check failed, denying")
	}
	if !allowed {
		return &types.AuthorizationError{UserID: userID, Permission: slug}
	}
	return nil
}

// Permissions lists the permission slugs userID holds.
func (s *AccessService) Permissions(ctx context.Context, userID string) ([]string, error) {
	var slugs []string
	err := s.permissionQuery(ctx, userID).
		Order("permissions.slug").
		Pluck("permissions.slug", &slugs).Error
	if err != nil {
		return nil, fmt.Errorf("list permissions for %s: %w", userID, err)
	}
	if slugs == nil {
		slugs = []string{}
	}
	return slugs, nil
}

func (s *AccessService) permissionQuery(ctx context.Context, userID string) *gorm.DB {
	return s.db.WithContext(ctx).
		Table("users").
		Joins("JOIN role_permissions ON role_permissions.role_id = users.role_id").
		Joins("JOIN permissions ON permissions.id = role_permissions.permission_id").
		Where("users.id = ?", userID)
}

// EnsureUser records an authenticated identity, keeping its email current.
// New users have no role.
func (s *AccessService) EnsureUser(ctx context.Context, identity Identity) (*models.User, error) {
	db := s.db.WithContext(ctx)

	var user models.User
	err := db.Where(models.User{ID: identity.ID}).
		Attrs(models.User{Email: identity.Email}).
		FirstOrCreate(&user).Error
	if err != nil {
		return nil, fmt.Errorf("ensure user: %w", err)
	}

	if identity.Email != "" && user.Email != identity.Email {
		if err := db.Model(&user).Update("email", identity.Email).Error; err != nil {
			return nil, fmt.Errorf("update user email: %w", err)
		}
	}
	return &user, nil
}

func (s *AccessService) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).Preload("Role").Order("id").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// AssignRole gives userID the role with roleSlug, creating the user if it is
// not known yet. An empty slug removes the user's role.
func (s *AccessService) AssignRole(ctx context.Context, userID, roleSlug string) (*models.User, error) {
	var user models.User

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var roleID *uint64
		if roleSlug != "" {
			var role models.Role
			err := tx.Where("slug = ?", roleSlug).First(&role).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &types.NotFoundError{Entity: "role", ID: roleSlug}
			}
			if err != nil {
				return err
			}
			roleID = &role.ID
		}

		if err := tx.Where(models.User{ID: userID}).FirstOrCreate(&user).Error; err != nil {
			return err
		}
		if err := tx.Model(&user).Update("role_id", roleID).Error; err != nil {
			return err
		}
		user.RoleID = roleID
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	return &user, nil
}

func (s *AccessService) ListRoles(ctx context.Context) ([]models.Role, error) {
	db := s.db.WithContext(ctx)

	var roles []models.Role
	if err := db.Order("slug").Find(&roles).Error; err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	for i := range roles {
		perms, err := rolePermissions(db, roles[i].ID)
		if err != nil {
			return nil, err
		}
		roles[i].Permissions = perms
	}
	return roles, nil
}

func (s *AccessService) GetRole(ctx context.Context, id uint64) (*models.Role, error) {
	db := s.db.WithContext(ctx)
	role, err := findRole(db, id)
	if err != nil {
		return nil, err
	}
	if role.Permissions, err = rolePermissions(db, id); err != nil {
		return nil, err
	}
	return role, nil
}

func (s *AccessService) CreateRole(ctx context.Context, in RoleInput) (*models.Role, error) {
	db := s.db.WithContext(ctx)
	if err := uniqueSlug(db, &models.Role{}, in.Slug, 0); err != nil {
		return nil, err
	}

	role := &models.Role{Name: in.Name, Slug: in.Slug}
	if err := db.Create(role).Error; err != nil {
		return nil, fmt.Errorf("create role: %w", err)
	}

	s.revalidator.Emit(ctx, All(TagRoles), Of(TagRole, fmt.Sprint(role.ID)))
	return role, nil
}

func (s *AccessService) UpdateRole(ctx context.Context, id uint64, in RoleInput) (*models.Role, error) {
	db := s.db.WithContext(ctx)
	role, err := findRole(db, id)
	if err != nil {
		return nil, err
	}
	if err := uniqueSlug(db, &models.Role{}, in.Slug, id); err != nil {
		return nil, err
	}

	role.Name = in.Name
	role.Slug = in.Slug
	if err := db.Model(role).Updates(map[string]interface{}{"name": in.Name, "slug": in.Slug}).Error; err != nil {
		return nil, fmt.Errorf("update role: %w", err)
	}

	s.revalidator.Emit(ctx, All(TagRoles), Of(TagRole, fmt.Sprint(id)))
	return role, nil
}

// DeleteRole removes a role. Its users keep no role.
func (s *AccessService) DeleteRole(ctx context.Context, id uint64) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := findRole(tx, id); err != nil {
			return err
		}
		if err := tx.Where("role_id = ?", id).Delete(&models.RolePermission{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.User{}).Where("role_id = ?", id).Update("role_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Role{}, id).Error
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx)
	s.revalidator.Emit(ctx, All(TagRoles), Of(TagRole, fmt.Sprint(id)), Of(TagRolePermissions, fmt.Sprint(id)))
	return nil
}

// SetRolePermissions replaces the permissions of a role with slugs.
func (s *AccessService) SetRolePermissions(ctx context.Context, roleID uint64, slugs []string) (*models.Role, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return setRolePermissions(tx, roleID, slugs)
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	s.revalidator.Emit(ctx, Of(TagRolePermissions, fmt.Sprint(roleID)), Of(TagRole, fmt.Sprint(roleID)))
	return s.GetRole(ctx, roleID)
}

func (s *AccessService) ListPermissions(ctx context.Context) ([]models.Permission, error) {
	var perms []models.Permission
	if err := s.db.WithContext(ctx).Order("slug").Find(&perms).Error; err != nil {
		return nil, fmt.Errorf("list permissions: %w", err)
	}
	return perms, nil
}

func (s *AccessService) CreatePermission(ctx context.Context, in PermissionInput) (*models.Permission, error) {
	db := s.db.WithContext(ctx)
	if err := uniqueSlug(db, &models.Permission{}, in.Slug, 0); err != nil {
		return nil, err
	}

	perm := &models.Permission{Slug: in.Slug, Description: in.Description}
	if err := db.Create(perm).Error; err != nil {
		return nil, fmt.Errorf("create permission: %w", err)
	}

	s.revalidator.Emit(ctx, All(TagPermissions))
	return perm, nil
}

func (s *AccessService) DeletePermission(ctx context.Context, id uint64) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var perm models.Permission
		err := tx.First(&perm, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &types.NotFoundError{Entity: "permission", ID: fmt.Sprint(id)}
		}
		if err != nil {
			return err
		}
		if err := tx.Where("permission_id = ?", id).Delete(&models.RolePermission{}).Error; err != nil {
			return err
		}
		return tx.Delete(&perm).Error
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx)
	s.revalidator.Emit(ctx, All(TagPermissions), All(TagRolePermissions))
	return nil
}

func (s *AccessService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		logging.LogError("permission_cache_invalidate", err, nil)
	}
}

func findRole(db *gorm.DB, id uint64) (*models.Role, error) {
	var role models.Role
	err := db.First(&role, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &types.NotFoundError{Entity: "role", ID: fmt.Sprint(id)}
	}
	if err != nil {
		return nil, fmt.Errorf("load role: %w", err)
	}
	return &role, nil
}

func rolePermissions(db *gorm.DB, roleID uint64) ([]models.Permission, error) {
	var perms []models.Permission
	err := db.Joins("JOIN role_permissions ON role_permissions.permission_id = permissions.id").
		Where("role_permissions.role_id = ?", roleID).
		Order("permissions.slug").
		Find(&perms).Error
	if err != nil {
		return nil, fmt.Errorf("load role permissions: %w", err)
	}
	return perms, nil
}

func setRolePermissions(tx *gorm.DB, roleID uint64, slugs []string) error {
	if _, err := findRole(tx, roleID); err != nil {
		return err
	}

	unique := dedupe(slugs)
	var perms []models.Permission
	if len(unique) > 0 {
		if err := tx.Where("slug IN ?", unique).Find(&perms).Error; err != nil {
			return err
		}
	}
	if len(perms) != len(unique) {
		found := make(map[string]struct{}, len(perms))
		for _, p := range perms {
			found[p.Slug] = struct{}{}
		}
		for _, slug := range unique {
			if _, ok := found[slug]; !ok {
				return &types.NotFoundError{Entity: "permission", ID: slug}
			}
		}
	}

	if err := tx.Where("role_id = ?", roleID).Delete(&models.RolePermission{}).Error; err != nil {
		return err
	}
	if len(perms) == 0 {
		return nil
	}

	rows := make([]models.RolePermission, len(perms))
	for i, p := range perms {
		rows[i] = models.RolePermission{RoleID: roleID, PermissionID: p.ID}
	}
	return tx.Create(&rows).Error
}

// uniqueSlug fails with a 409 when another row of model already uses slug.
func uniqueSlug(db *gorm.DB, model interface{}, slug string, exceptID uint64) error {
	var count int64
	q := db.Model(model).Where("slug = ?", slug)
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return &types.CustomError{Code: 409, Message: fmt.Sprintf("slug %q is already in use", slug), Type: "access.conflict"}
	}
	return nil
}

func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	sort.Strings(out)
	return out
}
