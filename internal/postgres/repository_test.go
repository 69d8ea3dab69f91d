package postgres

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pokewar-server/internal/domain"
	"github.com/pokewar-server/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests need a disposable database; set POKEWAR_TEST_POSTGRES_DSN to run them.
func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	dsn := os.Getenv("POKEWAR_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("POKEWAR_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	repo := &Repository{pool: pool, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	require.NoError(t, repo.RunMigrations(ctx))

	_, err = pool.Exec(ctx, `TRUNCATE kv_entries, match_archive`)
	require.NoError(t, err)
	return repo
}

func TestRepository_VersionedPut(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	entry, err := repo.Get(ctx, "pokewar_servers_v1")
	require.NoError(t, err)
	assert.Nil(t, entry.Data)

	v, err := repo.Put(ctx, "pokewar_servers_v1", []byte(`[]`), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	_, err = repo.Put(ctx, "pokewar_servers_v1", []byte(`[1]`), 0)
	assert.ErrorIs(t, err, store.ErrVersionConflict)

	_, err = repo.Put(ctx, "pokewar_servers_v1", []byte(`[1]`), 7)
	assert.ErrorIs(t, err, store.ErrVersionConflict)

	v, err = repo.Put(ctx, "pokewar_servers_v1", []byte(`[1]`), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)

	entry, err = repo.Get(ctx, "pokewar_servers_v1")
	require.NoError(t, err)
	assert.JSONEq(t, `[1]`, string(entry.Data))

	require.NoError(t, repo.Delete(ctx, "pokewar_servers_v1"))
	entry, err = repo.Get(ctx, "pokewar_servers_v1")
	require.NoError(t, err)
	assert.Nil(t, entry.Data)
}

func TestRepository_ArchiveMatchesIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	match := domain.MatchRecord{
		ID: "m1", ServerID: "s1",
		Player1ID: "a", Player2ID: "b",
		Player1PokemonID: "25", Player1PokemonName: "pikachu",
		Player2PokemonID: "1", Player2PokemonName: "bulbasaur",
		WinnerID: "a", CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}

	require.NoError(t, repo.ArchiveMatches(ctx, []domain.MatchRecord{match}))
	require.NoError(t, repo.ArchiveMatches(ctx, []domain.MatchRecord{match}))

	got, err := repo.ListArchivedMatches(ctx, "b", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, match.ID, got[0].ID)
	assert.Equal(t, "pikachu", got[0].Player1PokemonName)
	assert.True(t, match.CreatedAt.Equal(got[0].CreatedAt))
}
