package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/big"
	"time"

	"github.com/google/uuid"

	"sizzle/internal/catalog"
	"sizzle/internal/ledger"
	"sizzle/internal/leaderboard"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrMaxLevelReached   = errors.New("upgrade is at max level")
	ErrInvalidAmount     = errors.New("bonus amount must be >= 0")
	ErrInvalidPlayerID   = errors.New("player id is required")
	// ErrBusy surfaces after version-conflict retries are exhausted; the
	// caller may retry the whole operation.
	ErrBusy = errors.New("player is busy, try again")
)

type Config struct {
	// OfflineCap bounds how much elapsed time a single settlement may
	// accrue; excess idle time is discarded.
	OfflineCap            time.Duration
	MaxAttempts           int
	RetryBackoff          time.Duration
	StarterBalanceMicros  int64
	BaseRatePerHourMicros int64
	BaseGuestsPerHour     int64
}

func (c Config) withDefaults() Config {
	if c.OfflineCap <= 0 {
		c.OfflineCap = 24 * time.Hour
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 25 * time.Millisecond
	}
	if c.BaseRatePerHourMicros <= 0 {
		c.BaseRatePerHourMicros = ledger.BaseRatePerHour
	}
	if c.BaseGuestsPerHour <= 0 {
		c.BaseGuestsPerHour = ledger.BaseGuestsPerHour
	}
	return c
}

// Engine owns all mutations of player state. Every operation takes an
// explicit `now` so the core never reads the process clock, and runs as a
// load-compute-save cycle under the ledger's optimistic version check.
type Engine struct {
	store ledger.Store
	cat   *catalog.Catalog
	board *leaderboard.Index
	log   *slog.Logger
	cfg   Config
}

func New(store ledger.Store, cat *catalog.Catalog, board *leaderboard.Index, logger *slog.Logger, cfg Config) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store: store,
		cat:   cat,
		board: board,
		log:   logger,
		cfg:   cfg.withDefaults(),
	}
}

func (e *Engine) Catalog() *catalog.Catalog { return e.cat }
func (e *Engine) Board() *leaderboard.Index { return e.board }
func (e *Engine) OfflineCap() time.Duration { return e.cfg.OfflineCap }

// EnsurePlayer creates the player if absent and returns a settled snapshot.
func (e *Engine) EnsurePlayer(ctx context.Context, playerID, displayName string, now time.Time) (Snapshot, error) {
	if playerID == "" {
		return Snapshot{}, ErrInvalidPlayerID
	}
	st := ledger.PlayerState{
		PlayerID:          playerID,
		DisplayName:       displayName,
		BalanceMicros:     e.cfg.StarterBalanceMicros,
		RatePerHourMicros: e.cfg.BaseRatePerHourMicros,
		GuestsPerHour:     e.cfg.BaseGuestsPerHour,
		LastSettledAt:     now,
		Upgrades:          map[string]int32{},
		Achievements:      map[string]time.Time{},
		CreatedAt:         now,
	}
	created, err := e.store.Create(ctx, st)
	if err != nil {
		return Snapshot{}, err
	}
	if created {
		e.log.Info("player created", "player_id", playerID)
	}
	return e.QueryState(ctx, playerID, now)
}

// Settle applies passive accrual since the last settlement.
func (e *Engine) Settle(ctx context.Context, playerID string, now time.Time) (Snapshot, error) {
	st, err := e.mutate(ctx, playerID, now, func(work *ledger.PlayerState, txGroup string) ([]ledger.AuditEntry, error) {
		entries := e.applyAccrual(work, now, txGroup)
		entries = append(entries, e.applyAchievements(work, now, txGroup)...)
		return entries, nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	return e.snapshot(st), nil
}

type PurchaseResult struct {
	UpgradeID  string
	NewLevel   int32
	CostMicros int64
	Snapshot   Snapshot
}

// PurchaseUpgrade settles, debits the level's cost, and recomputes the
// production rate from scratch over the full upgrade map. The recompute is
// deliberate: incremental rate updates would let rounding drift accumulate.
func (e *Engine) PurchaseUpgrade(ctx context.Context, playerID, upgradeID string, now time.Time) (PurchaseResult, error) {
	var out PurchaseResult
	st, err := e.mutate(ctx, playerID, now, func(work *ledger.PlayerState, txGroup string) ([]ledger.AuditEntry, error) {
		entries := e.applyAccrual(work, now, txGroup)

		u, err := e.cat.Upgrade(upgradeID)
		if err != nil {
			return nil, err
		}
		level := work.UpgradeLevel(upgradeID)
		if u.MaxLevel > 0 && level >= u.MaxLevel {
			return nil, fmt.Errorf("%w: %s level %d", ErrMaxLevelReached, upgradeID, level)
		}
		cost, err := e.cat.CostOf(upgradeID, level)
		if err != nil {
			return nil, err
		}
		if work.BalanceMicros < cost {
			return nil, fmt.Errorf("%w: %s costs %s, balance %s",
				ErrInsufficientFunds, upgradeID,
				ledger.FormatBucks(cost), ledger.FormatBucks(work.BalanceMicros))
		}

		work.BalanceMicros -= cost
		work.Upgrades[upgradeID] = level + 1
		e.recomputeDerived(work)

		out.UpgradeID = upgradeID
		out.NewLevel = level + 1
		out.CostMicros = cost

		entries = append(entries, ledger.AuditEntry{
			TxGroupID:   txGroup,
			Action:      "purchase",
			DeltaMicros: -cost,
			Metadata:    map[string]any{"upgrade_id": upgradeID, "level": level + 1},
		})
		entries = append(entries, e.applyAchievements(work, now, txGroup)...)
		return entries, nil
	})
	if err != nil {
		return PurchaseResult{}, err
	}
	out.Snapshot = e.snapshot(st)
	return out, nil
}

// GrantBonus settles, then credits a flat amount. Mini-games and rewards are
// external callers; source is an opaque audit tag the engine never interprets.
func (e *Engine) GrantBonus(ctx context.Context, playerID string, amountMicros int64, source string, now time.Time) (Snapshot, error) {
	if amountMicros < 0 {
		return Snapshot{}, fmt.Errorf("%w: %d", ErrInvalidAmount, amountMicros)
	}
	st, err := e.mutate(ctx, playerID, now, func(work *ledger.PlayerState, txGroup string) ([]ledger.AuditEntry, error) {
		entries := e.applyAccrual(work, now, txGroup)
		if amountMicros > 0 {
			work.BalanceMicros = satAdd(work.BalanceMicros, amountMicros)
			work.TotalEarnedMicros = satAdd(work.TotalEarnedMicros, amountMicros)
			entries = append(entries, ledger.AuditEntry{
				TxGroupID:   txGroup,
				Action:      "bonus",
				DeltaMicros: amountMicros,
				Metadata:    map[string]any{"source": source},
			})
		}
		entries = append(entries, e.applyAchievements(work, now, txGroup)...)
		return entries, nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	return e.snapshot(st), nil
}

// QueryState settles and returns a read-only snapshot. The settlement is its
// only side effect.
func (e *Engine) QueryState(ctx context.Context, playerID string, now time.Time) (Snapshot, error) {
	return e.Settle(ctx, playerID, now)
}

// DeletePlayer removes the ledger row and the index entries.
func (e *Engine) DeletePlayer(ctx context.Context, playerID string) error {
	if err := e.store.Delete(ctx, playerID); err != nil {
		return err
	}
	e.board.Remove(playerID)
	return nil
}

// RebuildLeaderboard reloads the index from a full ledger scan.
func (e *Engine) RebuildLeaderboard(ctx context.Context) (int, error) {
	var entries []leaderboard.Entry
	err := e.store.ForEach(ctx, func(st ledger.PlayerState) error {
		entries = append(entries, leaderboard.Entry{
			PlayerID:          st.PlayerID,
			BalanceMicros:     st.BalanceMicros,
			RatePerHourMicros: st.RatePerHourMicros,
		})
		return nil
	})
	if err != nil {
		return 0, err
	}
	e.board.Rebuild(entries)
	return len(entries), nil
}

// SettleAll sweeps every player once; used by the background worker so idle
// players still surface on the leaderboard. Per-player failures are logged
// and skipped.
func (e *Engine) SettleAll(ctx context.Context, now time.Time) (int, error) {
	var ids []string
	if err := e.store.ForEach(ctx, func(st ledger.PlayerState) error {
		ids = append(ids, st.PlayerID)
		return nil
	}); err != nil {
		return 0, err
	}
	settled := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return settled, err
		}
		if _, err := e.Settle(ctx, id, now); err != nil {
			e.log.Warn("sweep settle failed", "player_id", id, "err", err)
			continue
		}
		settled++
	}
	return settled, nil
}

// mutate is the per-operation retry coordinator: load, run op on a copy,
// save with the loaded version. Version conflicts re-run the whole cycle
// with a short backoff; domain errors abort immediately. A successful save
// pushes the fresh keys into the leaderboard index.
func (e *Engine) mutate(ctx context.Context, playerID string, now time.Time, op func(work *ledger.PlayerState, txGroup string) ([]ledger.AuditEntry, error)) (ledger.PlayerState, error) {
	if playerID == "" {
		return ledger.PlayerState{}, ErrInvalidPlayerID
	}
	for attempt := 0; attempt < e.cfg.MaxAttempts; attempt++ {
		st, err := e.store.Load(ctx, playerID)
		if err != nil {
			return ledger.PlayerState{}, err
		}
		work := st.Clone()
		txGroup := uuid.NewString()
		audit, err := op(&work, txGroup)
		if err != nil {
			return ledger.PlayerState{}, err
		}
		if !stateChanged(st, work) {
			// Nothing to persist, but keep the index covering this
			// player (fresh process, pre-rebuild reads).
			e.board.Upsert(leaderboard.Entry{
				PlayerID:          st.PlayerID,
				BalanceMicros:     st.BalanceMicros,
				RatePerHourMicros: st.RatePerHourMicros,
			})
			return st, nil
		}
		err = e.store.Save(ctx, work, st.Version, audit...)
		if err == nil {
			work.Version = st.Version + 1
			e.board.Upsert(leaderboard.Entry{
				PlayerID:          work.PlayerID,
				BalanceMicros:     work.BalanceMicros,
				RatePerHourMicros: work.RatePerHourMicros,
			})
			return work, nil
		}
		if !errors.Is(err, ledger.ErrVersionConflict) {
			return ledger.PlayerState{}, err
		}
		if err := sleepWithContext(ctx, e.cfg.RetryBackoff); err != nil {
			return ledger.PlayerState{}, err
		}
	}
	e.log.Warn("retries exhausted", "player_id", playerID, "attempts", e.cfg.MaxAttempts)
	return ledger.PlayerState{}, ErrBusy
}

// applyAccrual adds rate × elapsed to the balance, capped at the offline
// limit. A wall clock running backwards is recovered locally: zero accrual,
// last-settled timestamp untouched, so a later in-order call still settles
// the full span.
func (e *Engine) applyAccrual(work *ledger.PlayerState, now time.Time, txGroup string) []ledger.AuditEntry {
	elapsed := now.Sub(work.LastSettledAt)
	if elapsed < 0 {
		e.log.Debug("clock regression ignored", "player_id", work.PlayerID, "delta", elapsed)
		return nil
	}
	if elapsed == 0 {
		return nil
	}
	capped := elapsed
	if capped > e.cfg.OfflineCap {
		capped = e.cfg.OfflineCap
	}
	accrued := accrueMicros(work.RatePerHourMicros, capped)
	work.LastSettledAt = now
	if accrued == 0 {
		return nil
	}
	work.BalanceMicros = satAdd(work.BalanceMicros, accrued)
	work.TotalEarnedMicros = satAdd(work.TotalEarnedMicros, accrued)
	return []ledger.AuditEntry{{
		TxGroupID:   txGroup,
		Action:      "accrual",
		DeltaMicros: accrued,
		Metadata:    map[string]any{"elapsed_seconds": capped.Seconds()},
	}}
}

// applyAchievements unlocks any newly met thresholds and credits their
// rewards in the same save. One pass per operation, in ascending threshold
// order: a reward may cascade into thresholds later in the pass, but a
// threshold already behind the cursor waits for the next operation.
func (e *Engine) applyAchievements(work *ledger.PlayerState, now time.Time, txGroup string) []ledger.AuditEntry {
	var entries []ledger.AuditEntry
	for _, a := range e.cat.Achievements() {
		if _, done := work.Achievements[a.ID]; done {
			continue
		}
		var met bool
		switch a.ConditionType {
		case catalog.ConditionTotalEarned:
			met = work.TotalEarnedMicros >= a.ConditionValue
		case catalog.ConditionUpgradesCount:
			met = int64(work.OwnedUpgradeCount()) >= a.ConditionValue
		}
		if !met {
			continue
		}
		work.Achievements[a.ID] = now
		if a.RewardMicros > 0 {
			work.BalanceMicros = satAdd(work.BalanceMicros, a.RewardMicros)
			work.TotalEarnedMicros = satAdd(work.TotalEarnedMicros, a.RewardMicros)
		}
		entries = append(entries, ledger.AuditEntry{
			TxGroupID:   txGroup,
			Action:      "achievement",
			DeltaMicros: a.RewardMicros,
			Metadata:    map[string]any{"achievement_id": a.ID},
		})
	}
	return entries
}

// recomputeDerived rewrites the cached rate and guest figures as a pure fold
// over the owned upgrade map. An owned id missing from the catalog (removed
// by a reload) contributes nothing.
func (e *Engine) recomputeDerived(work *ledger.PlayerState) {
	rate := e.cfg.BaseRatePerHourMicros
	guests := e.cfg.BaseGuestsPerHour
	for id, level := range work.Upgrades {
		rc, err := e.cat.RateContributionOf(id, level)
		if err != nil {
			e.log.Warn("owned upgrade missing from catalog", "player_id", work.PlayerID, "upgrade_id", id)
			continue
		}
		gc, _ := e.cat.GuestsContributionOf(id, level)
		rate = satAdd(rate, rc)
		guests += gc
	}
	work.RatePerHourMicros = rate
	work.GuestsPerHour = guests
}

func stateChanged(before, after ledger.PlayerState) bool {
	if before.BalanceMicros != after.BalanceMicros ||
		before.RatePerHourMicros != after.RatePerHourMicros ||
		before.GuestsPerHour != after.GuestsPerHour ||
		before.TotalEarnedMicros != after.TotalEarnedMicros ||
		before.DisplayName != after.DisplayName ||
		!before.LastSettledAt.Equal(after.LastSettledAt) {
		return true
	}
	if len(before.Upgrades) != len(after.Upgrades) || len(before.Achievements) != len(after.Achievements) {
		return true
	}
	for id, lvl := range after.Upgrades {
		if before.Upgrades[id] != lvl {
			return true
		}
	}
	for id := range after.Achievements {
		if _, ok := before.Achievements[id]; !ok {
			return true
		}
	}
	return false
}

// accrueMicros computes ratePerHour × elapsed in micros without overflow:
// the product runs through big.Int and saturates at MaxInt64, so a
// months-long offline span degrades to a clamp instead of wrapping.
func accrueMicros(ratePerHourMicros int64, elapsed time.Duration) int64 {
	if ratePerHourMicros <= 0 || elapsed <= 0 {
		return 0
	}
	v := new(big.Int).Mul(big.NewInt(ratePerHourMicros), big.NewInt(elapsed.Milliseconds()))
	v.Div(v, big.NewInt(time.Hour.Milliseconds()))
	if !v.IsInt64() {
		return math.MaxInt64
	}
	return v.Int64()
}

func satAdd(a, b int64) int64 {
	sum := a + b
	if b > 0 && sum < a {
		return math.MaxInt64
	}
	if b < 0 && sum > a {
		return math.MinInt64
	}
	return sum
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
