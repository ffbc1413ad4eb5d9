package engine

import (
	"time"

	"sizzle/internal/leaderboard"
	"sizzle/internal/ledger"
)

// Snapshot is the read-only view handed to callers after a settlement.
type Snapshot struct {
	PlayerID          string              `json:"player_id"`
	DisplayName       string              `json:"display_name,omitempty"`
	BalanceMicros     int64               `json:"balance_micros"`
	RatePerHourMicros int64               `json:"rate_per_hour_micros"`
	GuestsPerHour     int64               `json:"guests_per_hour"`
	TotalEarnedMicros int64               `json:"total_earned_micros"`
	LastSettledAt     time.Time           `json:"last_settled_at"`
	Upgrades          []OwnedUpgrade      `json:"upgrades"`
	Achievements      []AchievementStatus `json:"achievements"`
	BalanceRank       int                 `json:"balance_rank,omitempty"`
	RateRank          int                 `json:"rate_rank,omitempty"`
}

// OwnedUpgrade pairs a catalog row with the player's level and the price of
// the next level (0 when capped).
type OwnedUpgrade struct {
	UpgradeID      string `json:"upgrade_id"`
	Name           string `json:"name"`
	Category       string `json:"category"`
	Level          int32  `json:"level"`
	NextCostMicros int64  `json:"next_cost_micros,omitempty"`
	MaxLevel       int32  `json:"max_level,omitempty"`
	AtCap          bool   `json:"at_cap,omitempty"`
}

type AchievementStatus struct {
	AchievementID string     `json:"achievement_id"`
	Name          string     `json:"name"`
	RewardMicros  int64      `json:"reward_micros"`
	Unlocked      bool       `json:"unlocked"`
	UnlockedAt    *time.Time `json:"unlocked_at,omitempty"`
}

func (e *Engine) snapshot(st ledger.PlayerState) Snapshot {
	out := Snapshot{
		PlayerID:          st.PlayerID,
		DisplayName:       st.DisplayName,
		BalanceMicros:     st.BalanceMicros,
		RatePerHourMicros: st.RatePerHourMicros,
		GuestsPerHour:     st.GuestsPerHour,
		TotalEarnedMicros: st.TotalEarnedMicros,
		LastSettledAt:     st.LastSettledAt,
	}
	for _, u := range e.cat.Upgrades() {
		level := st.UpgradeLevel(u.ID)
		owned := OwnedUpgrade{
			UpgradeID: u.ID,
			Name:      u.Name,
			Category:  u.Category,
			Level:     level,
			MaxLevel:  u.MaxLevel,
		}
		if u.MaxLevel > 0 && level >= u.MaxLevel {
			owned.AtCap = true
		} else if cost, err := e.cat.CostOf(u.ID, level); err == nil {
			owned.NextCostMicros = cost
		}
		out.Upgrades = append(out.Upgrades, owned)
	}
	for _, a := range e.cat.Achievements() {
		status := AchievementStatus{
			AchievementID: a.ID,
			Name:          a.Name,
			RewardMicros:  a.RewardMicros,
		}
		if at, ok := st.Achievements[a.ID]; ok {
			status.Unlocked = true
			t := at
			status.UnlockedAt = &t
		}
		out.Achievements = append(out.Achievements, status)
	}
	if rank, err := e.board.RankOf(leaderboard.ByBalance, st.PlayerID); err == nil {
		out.BalanceRank = rank
	}
	if rank, err := e.board.RankOf(leaderboard.ByRate, st.PlayerID); err == nil {
		out.RateRank = rank
	}
	return out
}
