package service

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/pokewar-server/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pick(serverID, userID, id, name string) domain.SelectionRequest {
	return domain.SelectionRequest{ServerID: serverID, UserID: userID, PokemonID: id, PokemonName: name}
}

func TestSetServerSelectionUpserts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, b, server := f.duo(t)

	first, err := f.game.Matches.SetServerSelection(ctx, pick(server.ID, a.ID, "25", "pikachu"))
	require.NoError(t, err)
	_, err = f.game.Matches.SetServerSelection(ctx, pick(server.ID, b.ID, "1", "bulbasaur"))
	require.NoError(t, err)

	replaced, err := f.game.Matches.SetServerSelection(ctx, pick(server.ID, a.ID, "4", "charmander"))
	require.NoError(t, err)
	assert.Equal(t, first.ID, replaced.ID)

	selections := f.game.Matches.GetSelectionsForServer(ctx, server.ID)
	require.Len(t, selections, 2)
	assert.Equal(t, "charmander", selections[0].PokemonName)
	assert.Equal(t, a.ID, selections[0].UserID)
	assert.Equal(t, "bulbasaur", selections[1].PokemonName)

	_, err = f.game.Matches.SetServerSelection(ctx, pick(server.ID, a.ID, "", ""))
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestClearSelectionsForServer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, b, server := f.duo(t)
	other, err := f.game.Rooms.CreateServer(ctx, domain.CreateServerRequest{OwnerID: a.ID})
	require.NoError(t, err)

	_, err = f.game.Matches.SetServerSelection(ctx, pick(server.ID, a.ID, "25", "pikachu"))
	require.NoError(t, err)
	_, err = f.game.Matches.SetServerSelection(ctx, pick(server.ID, b.ID, "1", "bulbasaur"))
	require.NoError(t, err)
	_, err = f.game.Matches.SetServerSelection(ctx, pick(other.ID, a.ID, "7", "squirtle"))
	require.NoError(t, err)

	require.NoError(t, f.game.Matches.ClearSelectionsForServer(ctx, server.ID))

	assert.Empty(t, f.game.Matches.GetSelectionsForServer(ctx, server.ID))
	assert.Len(t, f.game.Matches.GetSelectionsForServer(ctx, other.ID), 1)
}

func TestCreateMatchFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, _, server := f.duo(t)

	_, err := f.game.Matches.CreateMatchFromSelections(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrServerNotFound)

	_, err = f.game.Matches.CreateMatchFromSelections(ctx, server.ID)
	assert.ErrorIs(t, err, domain.ErrInsufficientSelections)

	_, err = f.game.Matches.SetServerSelection(ctx, pick(server.ID, a.ID, "25", "pikachu"))
	require.NoError(t, err)

	_, err = f.game.Matches.CreateMatchFromSelections(ctx, server.ID)
	assert.ErrorIs(t, err, domain.ErrInsufficientSelections)

	assert.Empty(t, f.game.Matches.GetMatchHistoryForServer(ctx, server.ID))
	assert.Len(t, f.game.Matches.GetSelectionsForServer(ctx, server.ID), 1)
}

func TestCreateMatchRejectsSameUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, _, server := f.duo(t)

	// Upserts cannot produce two picks by one trainer, so write them directly.
	f.kv.Write(ctx, SelectionsKey, []domain.ServerSelection{
		{ID: "s1", ServerID: server.ID, UserID: a.ID, PokemonID: "25", PokemonName: "pikachu"},
		{ID: "s2", ServerID: server.ID, UserID: a.ID, PokemonID: "1", PokemonName: "bulbasaur"},
	})

	_, err := f.game.Matches.CreateMatchFromSelections(ctx, server.ID)
	assert.ErrorIs(t, err, domain.ErrSameUser)
	assert.Len(t, f.game.Matches.GetSelectionsForServer(ctx, server.ID), 2)
}

func TestCreateMatchWinnerFollowsCoin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, b, server := f.duo(t)

	tests := []struct {
		coin float64
		want string
	}{
		{0.9, a.ID},
		{0.5, b.ID},
		{0.1, b.ID},
	}
	for _, tt := range tests {
		f.coin = tt.coin
		_, err := f.game.Matches.SetServerSelection(ctx, pick(server.ID, a.ID, "25", "pikachu"))
		require.NoError(t, err)
		_, err = f.game.Matches.SetServerSelection(ctx, pick(server.ID, b.ID, "1", "bulbasaur"))
		require.NoError(t, err)

		match, err := f.game.Matches.CreateMatchFromSelections(ctx, server.ID)
		require.NoError(t, err)
		assert.Equal(t, tt.want, match.WinnerID, "coin %v", tt.coin)
	}

	assert.Len(t, f.game.Matches.GetMatchesForUser(ctx, a.ID), len(tests))
	assert.Empty(t, f.game.Matches.GetMatchesForUser(ctx, "stranger"))

	assert.Equal(t, domain.MatchStats{Played: 3, Wins: 1, Losses: 2}, f.game.Matches.GetStatsForUser(ctx, a.ID))
	assert.Equal(t, domain.MatchStats{Played: 3, Wins: 2, Losses: 1}, f.game.Matches.GetStatsForUser(ctx, b.ID))
	assert.Equal(t, domain.MatchStats{}, f.game.Matches.GetStatsForUser(ctx, "stranger"))
}

func TestCreateMatchIsFair(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, b, server := f.duo(t)

	rng := rand.New(rand.NewPCG(1, 2))
	const trials = 400
	wins := map[string]int{}
	for i := 0; i < trials; i++ {
		f.coin = rng.Float64()
		_, err := f.game.Matches.SetServerSelection(ctx, pick(server.ID, a.ID, "25", "pikachu"))
		require.NoError(t, err)
		_, err = f.game.Matches.SetServerSelection(ctx, pick(server.ID, b.ID, "1", "bulbasaur"))
		require.NoError(t, err)

		match, err := f.game.Matches.CreateMatchFromSelections(ctx, server.ID)
		require.NoError(t, err)
		wins[match.WinnerID]++
	}

	assert.Equal(t, trials, wins[a.ID]+wins[b.ID])
	assert.InDelta(t, trials/2, wins[a.ID], trials*0.1)
	assert.Len(t, f.game.Matches.GetMatchHistoryForServer(ctx, server.ID), trials)
}

func TestPublishFailureKeepsMatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.publisher.err = errors.New("broker down")

	a, b, server := f.duo(t)
	_, err := f.game.Matches.SetServerSelection(ctx, pick(server.ID, a.ID, "25", "pikachu"))
	require.NoError(t, err)
	_, err = f.game.Matches.SetServerSelection(ctx, pick(server.ID, b.ID, "1", "bulbasaur"))
	require.NoError(t, err)

	match, err := f.game.Matches.CreateMatchFromSelections(ctx, server.ID)
	require.NoError(t, err)
	assert.Equal(t, []domain.MatchRecord{*match}, f.game.Matches.GetMatchHistoryForServer(ctx, server.ID))
	assert.Len(t, f.publisher.matches, 1)
}
