/*
Copyright © 2025 WildSphee <wildsphee@proton.me>
*/

package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreGetOrCreateDefaults(t *testing.T) {
	s := newMemoryStore()

	p, err := s.GetOrCreate(context.Background(), "u1", "Dana", "SG")
	require.NoError(t, err)

	assert.Equal(t, "u1", p.UID)
	assert.Equal(t, "Dana", p.Name)
	assert.Equal(t, defaultRating, p.Rating)
	assert.Zero(t, p.Wins)
	assert.Equal(t, "SG", p.Country)
	assert.Contains(t, playerKinds, p.Kind)
}

func TestMemoryStoreGetOrCreateIsIdempotent(t *testing.T) {
	s := newMemoryStore()

	first, err := s.GetOrCreate(context.Background(), "u1", "Dana", "SG")
	require.NoError(t, err)
	require.NoError(t, s.Update(context.Background(), "u1", map[string]any{"elo": 1400}))

	again, err := s.GetOrCreate(context.Background(), "u1", "Dana", "SG")
	require.NoError(t, err)
	assert.Equal(t, 1400, again.Rating, "existing record must not be reset")
	assert.Equal(t, first.Kind, again.Kind)
}

func TestMemoryStoreUpdateMergesFields(t *testing.T) {
	s := newMemoryStore()
	ctx := context.Background()

	_, err := s.GetOrCreate(ctx, "u1", "Dana", "SG")
	require.NoError(t, err)
	require.NoError(t, s.Update(ctx, "u1", map[string]any{"elo": 1333, "total_won": 7}))

	p, err := s.GetOrCreate(ctx, "u1", "Dana", "SG")
	require.NoError(t, err)
	assert.Equal(t, 1333, p.Rating)
	assert.Equal(t, 7, p.Wins)
	assert.Equal(t, "Dana", p.Name, "untouched fields survive a partial update")
}

func TestMemoryStoreAllSortedByRating(t *testing.T) {
	s := newMemoryStore()
	ctx := context.Background()

	for uid, rating := range map[string]int{"a": 900, "b": 1500, "c": 1200} {
		_, err := s.GetOrCreate(ctx, uid, uid, "SG")
		require.NoError(t, err)
		require.NoError(t, s.Update(ctx, uid, map[string]any{"elo": rating}))
	}

	all, err := s.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "b", all[0].UID)
	assert.Equal(t, "c", all[1].UID)
	assert.Equal(t, "a", all[2].UID)
}

func TestReconcileBackfillsMissingFields(t *testing.T) {
	p := Profile{UID: "u1", Name: "Dana", Rating: 1250}

	patch := reconcile(&p, "TW")

	assert.Equal(t, "TW", p.Country)
	assert.Contains(t, playerKinds, p.Kind)
	assert.Equal(t, "TW", patch["country"])
	assert.Equal(t, p.Kind, patch["type"])
}

func TestReconcileLeavesCompleteProfilesAlone(t *testing.T) {
	p := Profile{UID: "u1", Name: "Dana", Rating: 1250, Country: "SG", Kind: "wizard"}

	patch := reconcile(&p, "TW")

	assert.Empty(t, patch)
	assert.Equal(t, "SG", p.Country, "existing country must not be overwritten")
	assert.Equal(t, "wizard", p.Kind)
}
