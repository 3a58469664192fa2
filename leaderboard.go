/*
Copyright © 2025 WildSphee <wildsphee@proton.me>
*/

package main

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"
)

// Leaderboard serves ranking reads from a periodically refreshed
// snapshot of the player store, so the hot read path never touches
// Redis.
type Leaderboard struct {
	cfg   *Config
	store PlayerStore

	mu      sync.RWMutex
	rows    []Profile // sorted by rating descending
	updated time.Time
}

func NewLeaderboard(cfg *Config, store PlayerStore) *Leaderboard {
	return &Leaderboard{cfg: cfg, store: store}
}

// Run refreshes the snapshot immediately and then on the configured
// interval until ctx is cancelled.
func (l *Leaderboard) Run(ctx context.Context) {
	if err := l.Refresh(ctx); err != nil {
		log.Printf("ERROR: leaderboard refresh: %v", err)
	}

	ticker := time.NewTicker(l.cfg.leaderboardInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := l.Refresh(ctx); err != nil {
				log.Printf("ERROR: leaderboard refresh: %v", err)
			}
		}
	}
}

func (l *Leaderboard) Refresh(ctx context.Context) error {
	rows, err := l.store.All(ctx)
	if err != nil {
		return err
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Rating > rows[j].Rating })

	l.mu.Lock()
	l.rows = rows
	l.updated = time.Now()
	l.mu.Unlock()

	logf(l.cfg, "BOARD: refreshed leaderboard snapshot (%d players)", len(rows))
	return nil
}

type RankedProfile struct {
	UID     string `json:"uid"`
	Name    string `json:"display_name"`
	Rating  int    `json:"elo"`
	Wins    int    `json:"total_won"`
	Country string `json:"country,omitempty"`
	Rank    int    `json:"rank"`
}

type LeaderboardResponse struct {
	GlobalTop10   []RankedProfile `json:"global_top10"`
	GlobalRank    *int            `json:"global_rank"`
	RegionalTop10 []RankedProfile `json:"regional_top10"`
	RegionalRank  *int            `json:"regional_rank"`
	Region        string          `json:"region"`
	LastUpdate    int             `json:"last_update"` // minutes since refresh
}

// Response builds the caller's view: global and regional top-10 plus
// the caller's own ranks, nil when unranked.
func (l *Leaderboard) Response(uid, country string) LeaderboardResponse {
	l.mu.RLock()
	rows := l.rows
	updated := l.updated
	l.mu.RUnlock()

	resp := LeaderboardResponse{
		GlobalTop10:   []RankedProfile{},
		RegionalTop10: []RankedProfile{},
		Region:        country,
	}
	if !updated.IsZero() {
		resp.LastUpdate = int(time.Since(updated) / time.Minute)
	}

	regionalRank := 0
	for i, p := range rows {
		rank := i + 1
		if len(resp.GlobalTop10) < 10 {
			resp.GlobalTop10 = append(resp.GlobalTop10, rankedProfile(p, rank, true))
		}
		if p.UID == uid {
			r := rank
			resp.GlobalRank = &r
		}

		if p.Country != country {
			continue
		}
		regionalRank++
		if len(resp.RegionalTop10) < 10 {
			resp.RegionalTop10 = append(resp.RegionalTop10, rankedProfile(p, regionalRank, false))
		}
		if p.UID == uid {
			r := regionalRank
			resp.RegionalRank = &r
		}
	}
	return resp
}

func rankedProfile(p Profile, rank int, withCountry bool) RankedProfile {
	rp := RankedProfile{
		UID:    p.UID,
		Name:   p.Name,
		Rating: p.Rating,
		Wins:   p.Wins,
		Rank:   rank,
	}
	if withCountry {
		rp.Country = p.Country
	}
	return rp
}
