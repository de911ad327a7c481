package services_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localnerve/formsdb/internal/models"
	"github.com/localnerve/formsdb/internal/services"
	"github.com/localnerve/formsdb/internal/types"
	"github.com/localnerve/formsdb/tests/helpers"
)

// memoryCache is a PermissionCache keyed by generation, like the redis one.
// beforeSet, when set, runs ahead of every write.
type memoryCache struct {
	mu          sync.Mutex
	generation  int64
	entries     map[string]bool
	invalidated int
	beforeSet   func()
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string]bool{}}
}

func memoryKey(gen int64, userID, slug string) string {
	return fmt.Sprintf("%d|%s|%s", gen, userID, slug)
}

func (m *memoryCache) Get(_ context.Context, userID, slug string) (services.CachedDecision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	allowed, ok := m.entries[memoryKey(m.generation, userID, slug)]
	return services.CachedDecision{Allowed: allowed, Found: ok, Generation: m.generation}, nil
}

func (m *memoryCache) Set(_ context.Context, gen int64, userID, slug string, allowed bool) error {
	if m.beforeSet != nil {
		m.beforeSet()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[memoryKey(gen, userID, slug)] = allowed
	return nil
}

func (m *memoryCache) Invalidate(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generation++
	m.invalidated++
	return nil
}

func TestAuthorizeUsesCache(t *testing.T) {
	db := helpers.SetupTestDB(t)
	helpers.SeedAccess(t, db)
	cache := newMemoryCache()
	access := services.NewAccessService(db, cache, &helpers.RecordingRevalidator{})
	ctx := context.Background()

	_, err := access.AssignRole(ctx, "u1", "analyst")
	require.NoError(t, err)
	assert.Equal(t, 1, cache.invalidated)

	allowed, err := access.Authorize(ctx, "u1", services.PermResponsesRead)
	require.NoError(t, err)
	assert.True(t, allowed)

	// a cached decision wins over the database until invalidated
	require.NoError(t, db.Where("1 = 1").Delete(&models.RolePermission{}).Error)
	allowed, err = access.Authorize(ctx, "u1", services.PermResponsesRead)
	require.NoError(t, err)
	assert.True(t, allowed)

	require.NoError(t, cache.Invalidate(ctx))
	allowed, err = access.Authorize(ctx, "u1", services.PermResponsesRead)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestAuthorizeDropsDecisionRacingRevocation(t *testing.T) {
	db := helpers.SetupTestDB(t)
	helpers.SeedAccess(t, db)
	cache := newMemoryCache()
	access := services.NewAccessService(db, cache, &helpers.RecordingRevalidator{})
	ctx := context.Background()

	_, err := access.AssignRole(ctx, "u1", "admin")
	require.NoError(t, err)
	var admin models.Role
	require.NoError(t, db.First(&admin, "slug = ?", "admin").Error)

	// the grant is read from the database, then revoked before it is cached
	cache.beforeSet = func() {
		cache.beforeSet = nil
		_, err := access.SetRolePermissions(ctx, admin.ID, nil)
		require.NoError(t, err)
	}
	allowed, err := access.Authorize(ctx, "u1", services.PermAdminAccess)
	require.NoError(t, err)
	assert.True(t, allowed)

	assert.Zero(t, helpers.CountRows(t, db, &models.RolePermission{}, "role_id = ?", admin.ID))
	allowed, err = access.Authorize(ctx, "u1", services.PermAdminAccess)
	require.NoError(t, err)
	assert.False(t, allowed, "a revoked grant must not survive in the cache")
}

func TestAuthorizeDeniesUnknown(t *testing.T) {
	db := helpers.SetupTestDB(t)
	helpers.SeedAccess(t, db)
	access := services.NewAccessService(db, nil, &helpers.RecordingRevalidator{})
	ctx := context.Background()

	for _, tc := range []struct{ user, slug string }{
		{"", services.PermFormsRead},
		{"ghost", services.PermFormsRead},
		{"ghost", ""},
	} {
		allowed, err := access.Authorize(ctx, tc.user, tc.slug)
		assert.NoError(t, err)
		assert.False(t, allowed, "%q/%q", tc.user, tc.slug)
	}

	err := access.Require(ctx, "ghost", services.PermFormsRead)
	var forbidden *types.AuthorizationError
	require.ErrorAs(t, err, &forbidden)
	assert.Equal(t, services.PermFormsRead, forbidden.Permission)
}

func TestRoleManagement(t *testing.T) {
	db := helpers.SetupTestDB(t)
	helpers.SeedAccess(t, db)
	cache := newMemoryCache()
	rv := &helpers.RecordingRevalidator{}
	access := services.NewAccessService(db, cache, rv)
	ctx := context.Background()

	role, err := access.CreateRole(ctx, services.RoleInput{Name: "Viewer", Slug: "viewer"})
	require.NoError(t, err)

	_, err = access.CreateRole(ctx, services.RoleInput{Name: "Again", Slug: "viewer"})
	var conflict *types.CustomError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, 409, conflict.Code)

	_, err = access.SetRolePermissions(ctx, role.ID, []string{"forms.read", "no.such"})
	var notFound *types.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "no.such", notFound.ID)

	role, err = access.SetRolePermissions(ctx, role.ID, []string{"forms.read", "admin.access", "forms.read"})
	require.NoError(t, err)
	require.Len(t, role.Permissions, 2)
	assert.Equal(t, "admin.access", role.Permissions[0].Slug)

	_, err = access.AssignRole(ctx, "viewer-1", "viewer")
	require.NoError(t, err)
	perms, err := access.Permissions(ctx, "viewer-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"admin.access", "forms.read"}, perms)

	invalidations := cache.invalidated
	require.NoError(t, access.DeleteRole(ctx, role.ID))
	assert.Greater(t, cache.invalidated, invalidations)

	perms, err = access.Permissions(ctx, "viewer-1")
	require.NoError(t, err)
	assert.Empty(t, perms)
	assert.Contains(t, rv.Signals(), "ROLES")

	_, err = access.GetRole(ctx, role.ID)
	assert.ErrorAs(t, err, &notFound)
}

func TestEnsureUserKeepsRole(t *testing.T) {
	db := helpers.SetupTestDB(t)
	helpers.SeedAccess(t, db)
	access := services.NewAccessService(db, nil, &helpers.RecordingRevalidator{})
	ctx := context.Background()

	_, err := access.AssignRole(ctx, "u1", "editor")
	require.NoError(t, err)

	user, err := access.EnsureUser(ctx, services.Identity{ID: "u1", Email: "new@example.com"})
	require.NoError(t, err)
	require.NotNil(t, user.RoleID)

	var stored models.User
	require.NoError(t, db.First(&stored, "id = ?", "u1").Error)
	assert.Equal(t, "new@example.com", stored.Email)
	assert.NotNil(t, stored.RoleID)
}

func TestSeedAccessControlIsIdempotent(t *testing.T) {
	db := helpers.SetupTestDB(t)
	helpers.SeedAccess(t, db)
	helpers.SeedAccess(t, db)

	assert.Equal(t, int64(3), helpers.CountRows(t, db, &models.Role{}, "1 = 1"))
	assert.Equal(t, int64(9), helpers.CountRows(t, db, &models.Permission{}, "1 = 1"))
	assert.Equal(t, int64(9+6+4), helpers.CountRows(t, db, &models.RolePermission{}, "1 = 1"))

	_, err := services.ParseAccessSeed([]byte("roles:\n  - name: Nameless\n"))
	assert.Error(t, err)
}
