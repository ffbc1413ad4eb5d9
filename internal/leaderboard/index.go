package leaderboard

import (
	"errors"
	"sort"
	"sync"
)

var ErrNotRanked = errors.New("player not ranked")

// Ordering selects which key the index ranks by.
type Ordering int

const (
	ByBalance Ordering = iota
	ByRate
)

func (o Ordering) String() string {
	if o == ByRate {
		return "rate"
	}
	return "balance"
}

// Entry is the projection the engine pushes after every successful
// settlement or purchase. The index never derives these values itself;
// it is eventually consistent with the ledger and always rebuildable
// from a full ledger scan.
type Entry struct {
	PlayerID          string
	BalanceMicros     int64
	RatePerHourMicros int64
}

type Row struct {
	Rank      int    `json:"rank"`
	PlayerID  string `json:"player_id"`
	KeyMicros int64  `json:"key_micros"`
}

type keyed struct {
	key int64
	id  string
}

// Index keeps two sorted views over the same players: by balance and by
// production rate, both descending with player id as the deterministic
// tiebreak. Upsert repositions a single player; concurrent upserts for
// different players serialize on one mutex, which is the no-lost-updates
// discipline the callers need.
type Index struct {
	mu        sync.RWMutex
	entries   map[string]Entry
	byBalance []keyed
	byRate    []keyed
}

func NewIndex() *Index {
	return &Index{entries: make(map[string]Entry)}
}

// Upsert inserts or repositions a player. Idempotent: replaying the same
// entry leaves the index unchanged.
func (x *Index) Upsert(e Entry) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if old, ok := x.entries[e.PlayerID]; ok {
		x.byBalance = removeKeyed(x.byBalance, keyed{old.BalanceMicros, old.PlayerID})
		x.byRate = removeKeyed(x.byRate, keyed{old.RatePerHourMicros, old.PlayerID})
	}
	x.entries[e.PlayerID] = e
	x.byBalance = insertKeyed(x.byBalance, keyed{e.BalanceMicros, e.PlayerID})
	x.byRate = insertKeyed(x.byRate, keyed{e.RatePerHourMicros, e.PlayerID})
}

func (x *Index) Remove(playerID string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	old, ok := x.entries[playerID]
	if !ok {
		return
	}
	delete(x.entries, playerID)
	x.byBalance = removeKeyed(x.byBalance, keyed{old.BalanceMicros, old.PlayerID})
	x.byRate = removeKeyed(x.byRate, keyed{old.RatePerHourMicros, old.PlayerID})
}

// TopK returns the n highest entries under the ordering.
func (x *Index) TopK(by Ordering, n int) []Row {
	x.mu.RLock()
	defer x.mu.RUnlock()
	s := x.view(by)
	if n > len(s) {
		n = len(s)
	}
	out := make([]Row, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, Row{Rank: i + 1, PlayerID: s[i].id, KeyMicros: s[i].key})
	}
	return out
}

// TopKAmong restricts the ranking to an externally resolved membership set
// (group leaderboards). Ranks are 1-based within the restricted view.
func (x *Index) TopKAmong(by Ordering, n int, members map[string]struct{}) []Row {
	x.mu.RLock()
	defer x.mu.RUnlock()
	s := x.view(by)
	out := make([]Row, 0, n)
	for _, k := range s {
		if len(out) == n {
			break
		}
		if _, ok := members[k.id]; !ok {
			continue
		}
		out = append(out, Row{Rank: len(out) + 1, PlayerID: k.id, KeyMicros: k.key})
	}
	return out
}

// RankOf returns the 1-based rank or ErrNotRanked.
func (x *Index) RankOf(by Ordering, playerID string) (int, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	e, ok := x.entries[playerID]
	if !ok {
		return 0, ErrNotRanked
	}
	s := x.view(by)
	k := keyed{e.BalanceMicros, e.PlayerID}
	if by == ByRate {
		k = keyed{e.RatePerHourMicros, e.PlayerID}
	}
	pos := searchKeyed(s, k)
	if pos >= len(s) || s[pos] != k {
		return 0, ErrNotRanked
	}
	return pos + 1, nil
}

func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}

// Rebuild replaces the whole index with a fresh ledger projection.
func (x *Index) Rebuild(entries []Entry) {
	byBalance := make([]keyed, 0, len(entries))
	byRate := make([]keyed, 0, len(entries))
	m := make(map[string]Entry, len(entries))
	for _, e := range entries {
		m[e.PlayerID] = e
		byBalance = append(byBalance, keyed{e.BalanceMicros, e.PlayerID})
		byRate = append(byRate, keyed{e.RatePerHourMicros, e.PlayerID})
	}
	sortKeyed(byBalance)
	sortKeyed(byRate)

	x.mu.Lock()
	x.entries = m
	x.byBalance = byBalance
	x.byRate = byRate
	x.mu.Unlock()
}

func (x *Index) view(by Ordering) []keyed {
	if by == ByRate {
		return x.byRate
	}
	return x.byBalance
}

// keyedBefore orders descending by key, ascending by id on ties.
func keyedBefore(a, b keyed) bool {
	if a.key != b.key {
		return a.key > b.key
	}
	return a.id < b.id
}

func sortKeyed(s []keyed) {
	sort.Slice(s, func(i, j int) bool { return keyedBefore(s[i], s[j]) })
}

// searchKeyed returns the position where k belongs in the sorted slice.
func searchKeyed(s []keyed, k keyed) int {
	return sort.Search(len(s), func(i int) bool { return !keyedBefore(s[i], k) })
}

func insertKeyed(s []keyed, k keyed) []keyed {
	pos := searchKeyed(s, k)
	s = append(s, keyed{})
	copy(s[pos+1:], s[pos:])
	s[pos] = k
	return s
}

func removeKeyed(s []keyed, k keyed) []keyed {
	pos := searchKeyed(s, k)
	if pos >= len(s) || s[pos] != k {
		return s
	}
	return append(s[:pos], s[pos+1:]...)
}
