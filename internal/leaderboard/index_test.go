package leaderboard

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

func TestTopKOrderingAndTiebreak(t *testing.T) {
	x := NewIndex()
	x.Upsert(Entry{PlayerID: "bob", BalanceMicros: 100, RatePerHourMicros: 5})
	x.Upsert(Entry{PlayerID: "alice", BalanceMicros: 100, RatePerHourMicros: 30})
	x.Upsert(Entry{PlayerID: "cara", BalanceMicros: 250, RatePerHourMicros: 10})

	rows := x.TopK(ByBalance, 10)
	wantIDs := []string{"cara", "alice", "bob"}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	for i, id := range wantIDs {
		if rows[i].PlayerID != id || rows[i].Rank != i+1 {
			t.Fatalf("row %d = %+v, want %s at rank %d", i, rows[i], id, i+1)
		}
	}

	rows = x.TopK(ByRate, 2)
	if len(rows) != 2 || rows[0].PlayerID != "alice" || rows[1].PlayerID != "cara" {
		t.Fatalf("rate top 2 = %+v", rows)
	}
}

func TestUpsertRepositions(t *testing.T) {
	x := NewIndex()
	x.Upsert(Entry{PlayerID: "alice", BalanceMicros: 10})
	x.Upsert(Entry{PlayerID: "bob", BalanceMicros: 20})

	if rank, _ := x.RankOf(ByBalance, "alice"); rank != 2 {
		t.Fatalf("alice rank = %d, want 2", rank)
	}
	x.Upsert(Entry{PlayerID: "alice", BalanceMicros: 30})
	if rank, _ := x.RankOf(ByBalance, "alice"); rank != 1 {
		t.Fatalf("alice rank after upsert = %d, want 1", rank)
	}
	if x.Len() != 2 {
		t.Fatalf("len = %d, want 2", x.Len())
	}

	// Replaying the identical entry changes nothing.
	x.Upsert(Entry{PlayerID: "alice", BalanceMicros: 30})
	if x.Len() != 2 {
		t.Fatalf("len after replay = %d, want 2", x.Len())
	}
	if rank, _ := x.RankOf(ByBalance, "alice"); rank != 1 {
		t.Fatalf("rank after replay = %d, want 1", rank)
	}
}

func TestRankOfUnknown(t *testing.T) {
	x := NewIndex()
	if _, err := x.RankOf(ByBalance, "ghost"); !errors.Is(err, ErrNotRanked) {
		t.Fatalf("got %v, want ErrNotRanked", err)
	}
}

func TestRemove(t *testing.T) {
	x := NewIndex()
	x.Upsert(Entry{PlayerID: "alice", BalanceMicros: 10})
	x.Upsert(Entry{PlayerID: "bob", BalanceMicros: 20})
	x.Remove("bob")
	x.Remove("ghost") // no-op

	if x.Len() != 1 {
		t.Fatalf("len = %d, want 1", x.Len())
	}
	if rank, err := x.RankOf(ByBalance, "alice"); err != nil || rank != 1 {
		t.Fatalf("alice rank = %d, err %v", rank, err)
	}
	if _, err := x.RankOf(ByBalance, "bob"); !errors.Is(err, ErrNotRanked) {
		t.Fatalf("removed player still ranked")
	}
}

func TestTopKAmong(t *testing.T) {
	x := NewIndex()
	for i, id := range []string{"a", "b", "c", "d", "e"} {
		x.Upsert(Entry{PlayerID: id, BalanceMicros: int64(100 - i)})
	}
	members := map[string]struct{}{"b": {}, "d": {}, "ghost": {}}
	rows := x.TopKAmong(ByBalance, 10, members)
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	// Ranks are local to the group, not global positions.
	if rows[0].PlayerID != "b" || rows[0].Rank != 1 || rows[1].PlayerID != "d" || rows[1].Rank != 2 {
		t.Fatalf("group rows = %+v", rows)
	}
}

func TestRebuildReplaces(t *testing.T) {
	x := NewIndex()
	x.Upsert(Entry{PlayerID: "stale", BalanceMicros: 999})
	x.Rebuild([]Entry{
		{PlayerID: "alice", BalanceMicros: 10, RatePerHourMicros: 2},
		{PlayerID: "bob", BalanceMicros: 20, RatePerHourMicros: 1},
	})

	if x.Len() != 2 {
		t.Fatalf("len = %d, want 2", x.Len())
	}
	if _, err := x.RankOf(ByBalance, "stale"); !errors.Is(err, ErrNotRanked) {
		t.Fatalf("stale entry survived rebuild")
	}
	if rank, _ := x.RankOf(ByRate, "alice"); rank != 1 {
		t.Fatalf("alice rate rank = %d, want 1", rank)
	}
}

func TestConcurrentUpserts(t *testing.T) {
	x := NewIndex()
	const players = 16
	const rounds = 50

	var wg sync.WaitGroup
	for p := 0; p < players; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			id := fmt.Sprintf("player-%02d", p)
			for r := 0; r < rounds; r++ {
				x.Upsert(Entry{PlayerID: id, BalanceMicros: int64(r*players + p)})
			}
		}(p)
	}
	wg.Wait()

	if x.Len() != players {
		t.Fatalf("len = %d, want %d", x.Len(), players)
	}
	rows := x.TopK(ByBalance, players)
	if len(rows) != players {
		t.Fatalf("topk returned %d rows", len(rows))
	}
	for i := 1; i < len(rows); i++ {
		if rows[i].KeyMicros > rows[i-1].KeyMicros {
			t.Fatalf("rows out of order at %d: %+v > %+v", i, rows[i], rows[i-1])
		}
	}
	// Every player's final write must have won.
	for p := 0; p < players; p++ {
		id := fmt.Sprintf("player-%02d", p)
		if _, err := x.RankOf(ByBalance, id); err != nil {
			t.Fatalf("%s not ranked: %v", id, err)
		}
	}
}
