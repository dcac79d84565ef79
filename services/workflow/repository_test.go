package workflow

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping repository tests")
	}

	pool, err := pgxpool.New(context.Background(), dbURL)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })
	return pool
}

func TestRepository_InitSchema(t *testing.T) {
	pool := getTestPool(t)
	repo := NewRepository(pool)

	require.NoError(t, repo.InitSchema(context.Background()))
	// Running again should be idempotent
	require.NoError(t, repo.InitSchema(context.Background()))
}

func TestRepository_Seed_Idempotent(t *testing.T) {
	pool := getTestPool(t)
	repo := NewRepository(pool)

	ctx := context.Background()
	require.NoError(t, repo.InitSchema(ctx))

	require.NoError(t, repo.Seed(ctx, DefaultBlueprint()))
	require.NoError(t, repo.Seed(ctx, DefaultBlueprint()))
}

func TestRepository_Get(t *testing.T) {
	pool := getTestPool(t)
	ctx := context.Background()
	require.NoError(t, InitDB(ctx, pool, DefaultBlueprint()))
	repo := NewRepository(pool)

	bp, err := repo.Get(ctx, DefaultBlueprintID)
	require.NoError(t, err)
	require.NotNil(t, bp)

	assert.Equal(t, DefaultBlueprintID, bp.ID)
	assert.Len(t, bp.Nodes, 3)
	assert.Len(t, bp.Edges, 2)
	assert.Equal(t, "Analyze high-limit AI trends.", bp.Nodes[0].Config["prompt"])
	assert.False(t, bp.CreatedAt.IsZero())
}

func TestRepository_Get_NotFound(t *testing.T) {
	pool := getTestPool(t)
	ctx := context.Background()
	repo := NewRepository(pool)
	require.NoError(t, repo.InitSchema(ctx))

	for _, id := range []string{"00000000-0000-0000-0000-000000000000", "missing"} {
		bp, err := repo.Get(ctx, id)
		require.NoError(t, err, id)
		assert.Nil(t, bp, id)
	}
}

func TestInitDB_SeedsGivenBlueprint(t *testing.T) {
	pool := getTestPool(t)
	ctx := context.Background()

	seed, err := ParseBlueprint([]byte(researchBlueprint))
	require.NoError(t, err)
	require.NoError(t, InitDB(ctx, pool, seed))

	bp, err := NewRepository(pool).Get(ctx, "research")
	require.NoError(t, err)
	require.NotNil(t, bp)
	assert.Equal(t, "Research", bp.Name)
	assert.Len(t, bp.Nodes, 3)
}
