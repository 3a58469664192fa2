/*
Copyright © 2025 WildSphee <wildsphee@proton.me>
*/

package main

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seededBoard(t *testing.T, profiles []Profile) *Leaderboard {
	t.Helper()

	store := newMemoryStore()
	ctx := context.Background()
	for _, p := range profiles {
		_, err := store.GetOrCreate(ctx, p.UID, p.Name, p.Country)
		require.NoError(t, err)
		require.NoError(t, store.Update(ctx, p.UID, map[string]any{"elo": p.Rating, "total_won": p.Wins}))
	}

	cfg := &Config{leaderboardInterval: time.Hour}
	board := NewLeaderboard(cfg, store)
	require.NoError(t, board.Refresh(ctx))
	return board
}

func TestLeaderboardGlobalRanking(t *testing.T) {
	board := seededBoard(t, []Profile{
		{UID: "a", Name: "a", Rating: 1500, Country: "SG"},
		{UID: "b", Name: "b", Rating: 1300, Country: "TW"},
		{UID: "c", Name: "c", Rating: 1400, Country: "SG"},
	})

	resp := board.Response("b", "TW")

	require.Len(t, resp.GlobalTop10, 3)
	assert.Equal(t, "a", resp.GlobalTop10[0].UID)
	assert.Equal(t, 1, resp.GlobalTop10[0].Rank)
	assert.Equal(t, "c", resp.GlobalTop10[1].UID)
	assert.Equal(t, "b", resp.GlobalTop10[2].UID)

	require.NotNil(t, resp.GlobalRank)
	assert.Equal(t, 3, *resp.GlobalRank)
	assert.Equal(t, 0, resp.LastUpdate)
}

func TestLeaderboardRegionalRanking(t *testing.T) {
	board := seededBoard(t, []Profile{
		{UID: "a", Name: "a", Rating: 1500, Country: "SG"},
		{UID: "b", Name: "b", Rating: 1300, Country: "TW"},
		{UID: "c", Name: "c", Rating: 1400, Country: "SG"},
		{UID: "d", Name: "d", Rating: 1200, Country: "TW"},
	})

	resp := board.Response("d", "TW")

	require.Len(t, resp.RegionalTop10, 2)
	assert.Equal(t, "b", resp.RegionalTop10[0].UID)
	assert.Equal(t, 1, resp.RegionalTop10[0].Rank, "regional rank restarts at 1")
	assert.Equal(t, "TW", resp.Region)

	require.NotNil(t, resp.RegionalRank)
	assert.Equal(t, 2, *resp.RegionalRank)
	require.NotNil(t, resp.GlobalRank)
	assert.Equal(t, 4, *resp.GlobalRank)
}

func TestLeaderboardUnrankedCaller(t *testing.T) {
	board := seededBoard(t, []Profile{
		{UID: "a", Name: "a", Rating: 1500, Country: "SG"},
	})

	resp := board.Response("ghost", "TW")

	assert.Nil(t, resp.GlobalRank)
	assert.Nil(t, resp.RegionalRank)
	assert.Empty(t, resp.RegionalTop10)
}

func TestLeaderboardTopTenCutoff(t *testing.T) {
	profiles := make([]Profile, 15)
	for i := range profiles {
		profiles[i] = Profile{
			UID:     fmt.Sprintf("p%02d", i),
			Name:    fmt.Sprintf("p%02d", i),
			Rating:  1000 + i*10,
			Country: "SG",
		}
	}
	board := seededBoard(t, profiles)

	resp := board.Response("p00", "SG")

	assert.Len(t, resp.GlobalTop10, 10)
	assert.Len(t, resp.RegionalTop10, 10)
	require.NotNil(t, resp.GlobalRank)
	assert.Equal(t, 15, *resp.GlobalRank, "lowest rating ranks last despite the top-10 cutoff")
}

func TestLeaderboardEmptyStore(t *testing.T) {
	board := seededBoard(t, nil)

	resp := board.Response("anyone", "SG")

	assert.NotNil(t, resp.GlobalTop10)
	assert.Empty(t, resp.GlobalTop10)
	assert.Nil(t, resp.GlobalRank)
}
