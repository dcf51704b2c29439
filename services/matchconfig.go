package services

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MatchConfig is the game-session assignment for a duel or bracket match.
// Server and credentials stay empty when no pool is configured; the UI shows
// "server not configured" in that case.
type MatchConfig struct {
	Map         string
	Server      string
	Credentials string
	JoinURL     string
}

// MatchConfigProvider assigns maps, servers and credentials. Reserve runs at
// creation time (no credentials yet); Credentials runs when a match goes
// live. Isolated behind an interface so tests can pin deterministic values.
type MatchConfigProvider interface {
	Reserve(game string) MatchConfig
	Credentials(server string) (password, joinURL string)
}

var defaultMaps = map[string][]string{
	"cs16":  {"de_dust2", "de_inferno", "de_train", "de_nuke"},
	"csgo":  {"de_dust2", "de_mirage", "de_overpass"},
	"quake": {"q3dm6", "q3dm17"},
}

// PoolConfigProvider picks a random map per game and round-robins a
// configured server pool, synthesizing a per-match password and connect link.
type PoolConfigProvider struct {
	Servers []string

	mu   sync.Mutex
	next int
	rng  *rand.Rand
}

func NewPoolConfigProvider(servers []string) *PoolConfigProvider {
	return &PoolConfigProvider{
		Servers: servers,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (p *PoolConfigProvider) Reserve(game string) MatchConfig {
	var cfg MatchConfig
	p.mu.Lock()
	defer p.mu.Unlock()
	if maps := defaultMaps[game]; len(maps) > 0 {
		cfg.Map = maps[p.rng.Intn(len(maps))]
	}
	if len(p.Servers) > 0 {
		cfg.Server = p.Servers[p.next%len(p.Servers)]
		p.next++
	}
	return cfg
}

func (p *PoolConfigProvider) Credentials(server string) (string, string) {
	if server == "" {
		return "", ""
	}
	password := strings.Split(uuid.NewString(), "-")[0]
	return password, fmt.Sprintf("steam://connect/%s/%s", server, password)
}

// Shuffle permutes items uniformly (Fisher-Yates), used for bracket seeding.
func (p *PoolConfigProvider) Shuffle(n int, swap func(i, j int)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rng.Shuffle(n, swap)
}

// Shuffler is the seeding permutation hook; the bracket manager takes it so
// tests can replace the random shuffle with an identity permutation.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}
