package ledger

import (
	"context"
	"errors"
	"testing"
	"time"
)

func seedPlayer(t *testing.T, m *MemoryStore, id string) PlayerState {
	t.Helper()
	st := PlayerState{
		PlayerID:      id,
		BalanceMicros: 100 * MicrosPerBuck,
		LastSettledAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Upgrades:      map[string]int32{},
		Achievements:  map[string]time.Time{},
	}
	created, err := m.Create(context.Background(), st)
	if err != nil || !created {
		t.Fatalf("create %s: created=%v err=%v", id, created, err)
	}
	loaded, err := m.Load(context.Background(), id)
	if err != nil {
		t.Fatalf("load %s: %v", id, err)
	}
	return loaded
}

func TestCreateIsIdempotent(t *testing.T) {
	m := NewMemoryStore()
	seedPlayer(t, m, "alice")

	created, err := m.Create(context.Background(), PlayerState{PlayerID: "alice"})
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if created {
		t.Fatalf("second create reported created=true")
	}
	st, err := m.Load(context.Background(), "alice")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if st.BalanceMicros != 100*MicrosPerBuck {
		t.Fatalf("second create clobbered state: balance=%d", st.BalanceMicros)
	}
}

func TestSaveVersionCheck(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	st := seedPlayer(t, m, "alice")
	if st.Version != 1 {
		t.Fatalf("fresh version = %d, want 1", st.Version)
	}

	st.BalanceMicros = 50 * MicrosPerBuck
	if err := m.Save(ctx, st, st.Version); err != nil {
		t.Fatalf("save: %v", err)
	}

	// The stale writer loses.
	st.BalanceMicros = 75 * MicrosPerBuck
	if err := m.Save(ctx, st, st.Version); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("stale save: got %v, want ErrVersionConflict", err)
	}

	fresh, err := m.Load(ctx, "alice")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if fresh.Version != 2 || fresh.BalanceMicros != 50*MicrosPerBuck {
		t.Fatalf("state = v%d balance %d, want v2 balance %d", fresh.Version, fresh.BalanceMicros, 50*MicrosPerBuck)
	}

	if err := m.Save(ctx, PlayerState{PlayerID: "ghost"}, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("save missing player: got %v, want ErrNotFound", err)
	}
}

func TestAuditCommitsWithSave(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	st := seedPlayer(t, m, "alice")

	entry := AuditEntry{TxGroupID: "tx-1", Action: "bonus", DeltaMicros: 5 * MicrosPerBuck}
	if err := m.Save(ctx, st, st.Version, entry); err != nil {
		t.Fatalf("save: %v", err)
	}
	// A conflicted save must not leak its journal rows.
	if err := m.Save(ctx, st, st.Version, AuditEntry{TxGroupID: "tx-2", Action: "bonus"}); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("stale save: %v", err)
	}

	entries := m.AuditEntries("alice")
	if len(entries) != 1 || entries[0].TxGroupID != "tx-1" {
		t.Fatalf("audit entries = %+v, want only tx-1", entries)
	}
}

func TestLoadReturnsCopy(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	st := seedPlayer(t, m, "alice")

	st.Upgrades["grill"] = 3
	again, err := m.Load(ctx, "alice")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if again.Upgrades["grill"] != 0 {
		t.Fatalf("caller mutation leaked into the store")
	}
}

func TestForEachAndDelete(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	seedPlayer(t, m, "bob")
	seedPlayer(t, m, "alice")

	var ids []string
	if err := m.ForEach(ctx, func(st PlayerState) error {
		ids = append(ids, st.PlayerID)
		return nil
	}); err != nil {
		t.Fatalf("foreach: %v", err)
	}
	if len(ids) != 2 || ids[0] != "alice" || ids[1] != "bob" {
		t.Fatalf("foreach order = %v, want deterministic [alice bob]", ids)
	}

	if err := m.Delete(ctx, "bob"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := m.Delete(ctx, "bob"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("double delete: got %v, want ErrNotFound", err)
	}
	if _, err := m.Load(ctx, "bob"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted player still loads")
	}
}

func TestFormatBucks(t *testing.T) {
	cases := []struct {
		micros int64
		want   string
	}{
		{0, "0.00"},
		{BucksToMicros(12.5), "12.50"},
		{BucksToMicros(999.99), "999.99"},
		{BucksToMicros(1_500), "1.5K"},
		{BucksToMicros(2_300_000), "2.3M"},
		{BucksToMicros(7_100_000_000), "7.1B"},
		{BucksToMicros(-42), "-42.00"},
	}
	for _, tc := range cases {
		if got := FormatBucks(tc.micros); got != tc.want {
			t.Fatalf("FormatBucks(%d) = %q, want %q", tc.micros, got, tc.want)
		}
	}
}
