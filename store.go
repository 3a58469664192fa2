/*
Copyright © 2025 WildSphee <wildsphee@proton.me>
*/

package main

import (
	"context"
	"math/rand"
	"sort"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"
)

const defaultRating = 1200

// playerKinds is the fixed set of cosmetic types a profile can carry.
var playerKinds = []string{
	"businessman",
	"skeleton",
	"wizard",
	"astronaut",
	"pirate",
	"robot",
}

func randomKind() string {
	return playerKinds[rand.Intn(len(playerKinds))]
}

// Profile is the persisted per-player record.
type Profile struct {
	UID     string `json:"uid"`
	Name    string `json:"display_name"`
	Rating  int    `json:"elo"`
	Wins    int    `json:"total_won"`
	Country string `json:"country"`
	Kind    string `json:"type"`
}

// PlayerStore is the durable profile store. Updates must be atomic per
// record; cross-player atomicity is not required (a match end issues
// two independent single-player writes).
type PlayerStore interface {
	// GetOrCreate fetches a profile, creating it with defaults when
	// missing. Older records are reconciled to the current schema once
	// here, not ad hoc by callers.
	GetOrCreate(ctx context.Context, uid, name, country string) (Profile, error)

	// Update applies a merge-style partial update.
	Update(ctx context.Context, uid string, fields map[string]any) error

	// All returns every profile, for leaderboard snapshots.
	All(ctx context.Context) ([]Profile, error)
}

// reconcile backfills fields added after a profile was first written.
// Returns the patch to persist, empty when the record is current.
func reconcile(p *Profile, country string) map[string]any {
	patch := map[string]any{}
	if p.Country == "" {
		p.Country = country
		patch["country"] = country
	}
	if p.Kind == "" {
		p.Kind = randomKind()
		patch["type"] = p.Kind
	}
	return patch
}

// RedisPlayerStore keeps one hash per player under player:<uid> and
// mirrors ratings into the "ratings" sorted set.
type RedisPlayerStore struct {
	rdb *redis.Client
}

func NewRedisPlayerStore(rdb *redis.Client) *RedisPlayerStore {
	return &RedisPlayerStore{rdb: rdb}
}

func playerKey(uid string) string { return "player:" + uid }

const ratingsKey = "ratings"

func (s *RedisPlayerStore) GetOrCreate(ctx context.Context, uid, name, country string) (Profile, error) {
	fields, err := s.rdb.HGetAll(ctx, playerKey(uid)).Result()
	if err != nil {
		return Profile{}, err
	}

	if len(fields) == 0 {
		p := Profile{
			UID:     uid,
			Name:    name,
			Rating:  defaultRating,
			Country: country,
			Kind:    randomKind(),
		}
		if err := s.write(ctx, p); err != nil {
			return Profile{}, err
		}
		return p, nil
	}

	p := Profile{
		UID:     uid,
		Name:    fields["display_name"],
		Country: fields["country"],
		Kind:    fields["type"],
	}
	p.Rating, _ = strconv.Atoi(fields["elo"])
	p.Wins, _ = strconv.Atoi(fields["total_won"])
	if p.Name == "" {
		p.Name = name
	}

	if patch := reconcile(&p, country); len(patch) > 0 {
		if err := s.Update(ctx, uid, patch); err != nil {
			return Profile{}, err
		}
	}
	return p, nil
}

func (s *RedisPlayerStore) write(ctx context.Context, p Profile) error {
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, playerKey(p.UID), map[string]any{
		"display_name": p.Name,
		"elo":          p.Rating,
		"total_won":    p.Wins,
		"country":      p.Country,
		"type":         p.Kind,
	})
	pipe.ZAdd(ctx, ratingsKey, redis.Z{Score: float64(p.Rating), Member: p.UID})
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisPlayerStore) Update(ctx context.Context, uid string, fields map[string]any) error {
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, playerKey(uid), fields)
	if rating, ok := fields["elo"]; ok {
		if r, ok := rating.(int); ok {
			pipe.ZAdd(ctx, ratingsKey, redis.Z{Score: float64(r), Member: uid})
		}
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisPlayerStore) All(ctx context.Context) ([]Profile, error) {
	uids, err := s.rdb.ZRevRange(ctx, ratingsKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	pipe := s.rdb.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(uids))
	for i, uid := range uids {
		cmds[i] = pipe.HGetAll(ctx, playerKey(uid))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	profiles := make([]Profile, 0, len(uids))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		p := Profile{
			UID:     uids[i],
			Name:    fields["display_name"],
			Country: fields["country"],
			Kind:    fields["type"],
		}
		p.Rating, _ = strconv.Atoi(fields["elo"])
		p.Wins, _ = strconv.Atoi(fields["total_won"])
		profiles = append(profiles, p)
	}
	return profiles, nil
}

// memoryStore backs tests and --dev runs with the same contract as the
// Redis store.
type memoryStore struct {
	mu       sync.Mutex
	profiles map[string]Profile
}

func newMemoryStore() *memoryStore {
	return &memoryStore{profiles: make(map[string]Profile)}
}

func (s *memoryStore) GetOrCreate(_ context.Context, uid, name, country string) (Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[uid]
	if !ok {
		p = Profile{
			UID:     uid,
			Name:    name,
			Rating:  defaultRating,
			Country: country,
			Kind:    randomKind(),
		}
	} else {
		reconcile(&p, country)
	}
	s.profiles[uid] = p
	return p, nil
}

func (s *memoryStore) Update(_ context.Context, uid string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.profiles[uid]
	p.UID = uid
	for k, v := range fields {
		switch k {
		case "display_name":
			p.Name = v.(string)
		case "elo":
			p.Rating = v.(int)
		case "total_won":
			p.Wins = v.(int)
		case "country":
			p.Country = v.(string)
		case "type":
			p.Kind = v.(string)
		}
	}
	s.profiles[uid] = p
	return nil
}

func (s *memoryStore) All(_ context.Context) ([]Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rating > out[j].Rating })
	return out, nil
}
