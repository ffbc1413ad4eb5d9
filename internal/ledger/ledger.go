package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	MicrosPerBuck = int64(1_000_000)

	StarterBalanceMicros = int64(0)
	BaseRatePerHour      = int64(10) * MicrosPerBuck
	BaseGuestsPerHour    = int64(2)
)

var (
	ErrNotFound        = errors.New("player not found")
	ErrVersionConflict = errors.New("player version conflict")
)

func BucksToMicros(v float64) int64 {
	return int64(math.Round(v * float64(MicrosPerBuck)))
}

func MicrosToBucks(v int64) float64 {
	return float64(v) / float64(MicrosPerBuck)
}

// FormatBucks renders a micros amount the way the game UIs show money:
// exact below 1K, then compacted to K/M/B.
func FormatBucks(v int64) string {
	b := MicrosToBucks(v)
	abs := math.Abs(b)
	switch {
	case abs < 1_000:
		return fmt.Sprintf("%.2f", b)
	case abs < 1_000_000:
		return fmt.Sprintf("%.1fK", b/1_000)
	case abs < 1_000_000_000:
		return fmt.Sprintf("%.1fM", b/1_000_000)
	default:
		return fmt.Sprintf("%.1fB", b/1_000_000_000)
	}
}

// PlayerState is the durable per-player record. RatePerHourMicros and
// GuestsPerHour are caches: both must always equal the pure fold over
// Upgrades against the catalog, and are rewritten on every upgrade change.
type PlayerState struct {
	PlayerID          string
	DisplayName       string
	BalanceMicros     int64
	RatePerHourMicros int64
	GuestsPerHour     int64
	TotalEarnedMicros int64
	LastSettledAt     time.Time
	Upgrades          map[string]int32
	Achievements      map[string]time.Time
	Version           int64
	CreatedAt         time.Time
}

// Clone deep-copies the state so retry loops can mutate freely.
func (p PlayerState) Clone() PlayerState {
	out := p
	out.Upgrades = make(map[string]int32, len(p.Upgrades))
	for k, v := range p.Upgrades {
		out.Upgrades[k] = v
	}
	out.Achievements = make(map[string]time.Time, len(p.Achievements))
	for k, v := range p.Achievements {
		out.Achievements[k] = v
	}
	return out
}

func (p PlayerState) UpgradeLevel(upgradeID string) int32 {
	return p.Upgrades[upgradeID]
}

// OwnedUpgradeCount counts upgrades with at least one purchased level.
func (p PlayerState) OwnedUpgradeCount() int {
	n := 0
	for _, lvl := range p.Upgrades {
		if lvl > 0 {
			n++
		}
	}
	return n
}

// AuditEntry is an append-only journal row committed atomically with the
// state change that produced it.
type AuditEntry struct {
	TxGroupID   string
	Action      string
	DeltaMicros int64
	Metadata    map[string]any
}

// Store is the durable player ledger. Save uses optimistic concurrency:
// the stored version must still equal expectedVersion or the call fails
// with ErrVersionConflict and the caller re-runs its read-compute-write
// cycle against fresh state. Audit entries commit with the state row or
// not at all.
type Store interface {
	Load(ctx context.Context, playerID string) (PlayerState, error)
	Create(ctx context.Context, state PlayerState) (bool, error)
	Save(ctx context.Context, state PlayerState, expectedVersion int64, audit ...AuditEntry) error
	ForEach(ctx context.Context, fn func(PlayerState) error) error
	Delete(ctx context.Context, playerID string) error
}
