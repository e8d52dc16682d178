package cache

import (
	"context"
	"testing"

	"akinmueble/internal/models"
	"akinmueble/internal/repository"
	"akinmueble/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestReferenceKey(t *testing.T) {
	assert.Equal(t, "ref:departments:20:40", ReferenceKey("departments", 20, 40))
}

func TestReferenceRepository_CachesAndInvalidates(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewSQLiteDB(t)
	mr, rdb := newMiniredis(t)

	repo := NewReferenceRepository(repository.NewCRUDRepository[models.Department](db, "Department"), rdb, "departments")
	require.NoError(t, repo.Create(ctx, &models.Department{Name: "Caldas"}))

	rows, total, err := repo.List(ctx, repository.ListOptions{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, rows, 1)
	assert.True(t, mr.Exists("ref:departments:10:0"))

	// A row written behind the cache's back stays invisible until a write
	// through the repository invalidates the page.
	require.NoError(t, db.Create(&models.Department{Name: "Antioquia"}).Error)
	rows, _, err = repo.List(ctx, repository.ListOptions{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	_, err = repo.Update(ctx, rows[0].ID, map[string]any{"name": "Caldas Norte"})
	require.NoError(t, err)
	assert.False(t, mr.Exists("ref:departments:10:0"))

	rows, total, err = repo.List(ctx, repository.ListOptions{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, "Caldas Norte", rows[0].Name)
}

func TestReferenceRepository_FilteredListsBypassCache(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewSQLiteDB(t)
	mr, rdb := newMiniredis(t)
	f := testutil.Seed(t, db)

	repo := NewReferenceRepository(repository.NewCRUDRepository[models.City](db, "City"), rdb, "cities")
	rows, _, err := repo.List(ctx, repository.ListOptions{Where: map[string]any{"department_id": f.Department.ID}})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Empty(t, mr.Keys())
}

func TestAside_FallsThroughWithoutRedis(t *testing.T) {
	ctx := context.Background()
	calls := 0
	var out []string
	fetch := func() error {
		calls++
		out = []string{"a"}
		return nil
	}

	require.NoError(t, Aside(ctx, nil, "k", &out, ReferenceTTL, fetch))
	require.NoError(t, Aside(ctx, nil, "k", &out, ReferenceTTL, fetch))
	assert.Equal(t, 2, calls)

	mr, rdb := newMiniredis(t)
	mr.Close()
	require.NoError(t, Aside(ctx, rdb, "k", &out, ReferenceTTL, fetch))
	assert.Equal(t, 3, calls)
	assert.Equal(t, []string{"a"}, out)
}

func TestAside_ReturnsFetchError(t *testing.T) {
	_, rdb := newMiniredis(t)
	var out int
	err := Aside(context.Background(), rdb, "k", &out, ReferenceTTL, func() error {
		return models.NewNotFoundError("Department", 1)
	})
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestInitRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	rdb := InitRedis("redis://" + mr.Addr())
	require.NotNil(t, rdb)
	require.NoError(t, rdb.Set(context.Background(), "probe", "1", 0).Err())
	assert.True(t, mr.Exists("probe"))
	require.NoError(t, rdb.Close())

	assert.Nil(t, InitRedis(""))
	assert.Nil(t, InitRedis("redis://%zz"))
}
