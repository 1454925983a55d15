package repository

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	posdomain "github.com/smallbiznis/tindahan/internal/pos/domain"
	"github.com/smallbiznis/tindahan/internal/store/domain"
	dbpkg "github.com/smallbiznis/tindahan/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupRepo(t *testing.T) (domain.Repository, *gorm.DB) {
	t.Helper()
	conn, err := dbpkg.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&domain.Store{}, &posdomain.User{}))
	return NewRepository(conn), conn
}

func strptr(s string) *string { return &s }

func seedStores(t *testing.T, repo domain.Repository) {
	t.Helper()
	ctx := context.Background()
	stores := []domain.Store{
		{ID: 1, Name: "Main Branch", Code: "MAIN", City: "Manila", IsMainStore: true, Status: domain.StatusActive},
		{ID: 2, Name: "East Branch", Code: "east", City: "Pasig", Status: domain.StatusActive,
			DatabaseName: strptr("pos_branch_east"), DatabaseCreated: true},
		{ID: 3, Name: "Closed Branch", Code: "closed", City: "Cebu", Status: domain.StatusInactive},
	}
	for i := range stores {
		require.NoError(t, repo.Create(ctx, &stores[i]))
	}
}

func TestGetUnknownStoreReturnsNil(t *testing.T) {
	repo, _ := setupRepo(t)

	store, err := repo.Get(context.Background(), snowflake.ID(404))
	require.NoError(t, err)
	assert.Nil(t, store)
}

func TestGetMain(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	main, err := repo.GetMain(ctx)
	require.NoError(t, err)
	assert.Nil(t, main, "no main store before seeding")

	seedStores(t, repo)

	main, err = repo.GetMain(ctx)
	require.NoError(t, err)
	require.NotNil(t, main)
	assert.Equal(t, "MAIN", main.Code)
}

func TestListFilters(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()
	seedStores(t, repo)

	active, err := repo.List(ctx, domain.ListFilter{ActiveOnly: true})
	require.NoError(t, err)
	assert.Len(t, active, 2)

	provisioned, err := repo.List(ctx, domain.ListFilter{ProvisionedOnly: true})
	require.NoError(t, err)
	require.Len(t, provisioned, 1)
	assert.Equal(t, "east", provisioned[0].Code)

	byStatus, err := repo.List(ctx, domain.ListFilter{Status: domain.StatusInactive})
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	assert.Equal(t, "closed", byStatus[0].Code)

	byQuery, err := repo.List(ctx, domain.ListFilter{Query: "Pasig"})
	require.NoError(t, err)
	require.Len(t, byQuery, 1)
	assert.Equal(t, "east", byQuery[0].Code)
}

func TestListPagination(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()
	seedStores(t, repo)

	total, err := repo.Count(ctx, domain.ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)

	page, err := repo.List(ctx, domain.ListFilter{Page: 1, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	// Newest first.
	assert.Equal(t, snowflake.ID(3), page[0].ID)

	page, err = repo.List(ctx, domain.ListFilter{Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, page, 1)
}

func TestUpdateFieldsUnknownStore(t *testing.T) {
	repo, _ := setupRepo(t)

	err := repo.UpdateFields(context.Background(), snowflake.ID(404), map[string]any{"name": "x"})
	assert.ErrorIs(t, err, domain.ErrStoreNotFound)
}

func TestUnsetMainExcept(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()
	seedStores(t, repo)

	require.NoError(t, repo.UnsetMainExcept(ctx, snowflake.ID(2)))

	main, err := repo.GetMain(ctx)
	require.NoError(t, err)
	assert.Nil(t, main, "expected every other main flag cleared")
}

func TestHasAssignedUsers(t *testing.T) {
	repo, conn := setupRepo(t)
	ctx := context.Background()
	seedStores(t, repo)

	has, err := repo.HasAssignedUsers(ctx, snowflake.ID(2))
	require.NoError(t, err)
	assert.False(t, has)

	storeID := snowflake.ID(2)
	require.NoError(t, conn.Create(&posdomain.User{
		ID: 50, Email: "clerk@example.com", Role: "staff", StoreID: &storeID,
	}).Error)

	has, err = repo.HasAssignedUsers(ctx, snowflake.ID(2))
	require.NoError(t, err)
	assert.True(t, has)
}
