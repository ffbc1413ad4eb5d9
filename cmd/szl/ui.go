package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"sizzle/internal/engine"
	"sizzle/internal/ledger"
)

var (
	accent  = color.New(color.FgCyan, color.Bold)
	success = color.New(color.FgGreen, color.Bold)
	warn    = color.New(color.FgYellow, color.Bold)
	danger  = color.New(color.FgRed, color.Bold)
	neutral = color.New(color.FgHiWhite)
)

type purchasePayload struct {
	UpgradeID   string          `json:"upgrade_id"`
	NewLevel    int32           `json:"new_level"`
	CostMicros  int64           `json:"cost_micros"`
	CostDisplay string          `json:"cost_display"`
	State       engine.Snapshot `json:"state"`
}

type shopPayload struct {
	Upgrades []shopUpgrade `json:"upgrades"`
}

type shopUpgrade struct {
	UpgradeID      string  `json:"upgrade_id"`
	Name           string  `json:"name"`
	Category       string  `json:"category"`
	BaseCostMicros int64   `json:"base_cost_micros"`
	CostGrowth     float64 `json:"cost_growth"`
	RatePerLevel   int64   `json:"rate_per_level_micros"`
	GuestsPerLevel int64   `json:"guests_per_level"`
	MaxLevel       int32   `json:"max_level"`
	Description    string  `json:"description"`
}

type achievementsPayload struct {
	Achievements  []engine.AchievementStatus `json:"achievements"`
	UnlockedCount int                        `json:"unlocked_count"`
	TotalCount    int                        `json:"total_count"`
}

type leaderboardPayload struct {
	By    string     `json:"by"`
	Scope string     `json:"scope"`
	Rows  []boardRow `json:"rows"`
}

type boardRow struct {
	Rank       int    `json:"rank"`
	PlayerID   string `json:"player_id"`
	KeyMicros  int64  `json:"key_micros"`
	KeyDisplay string `json:"key_display"`
}

type rankPayload struct {
	PlayerID string `json:"player_id"`
	By       string `json:"by"`
	Rank     int    `json:"rank"`
}

func printSuccess(msg string) {
	success.Println(msg)
}

func printWarn(msg string) {
	warn.Println(msg)
}

func printError(err error) {
	danger.Println(err.Error())
}

func printInfo(msg string) {
	neutral.Println(msg)
}

func printQueued(what string) {
	warn.Printf("API unreachable: queued %q for `szl sync`\n", what)
}

func printState(raw map[string]any) {
	snap, err := decodeInto[engine.Snapshot](raw)
	if err != nil {
		printError(err)
		return
	}
	accent.Printf("\n== %s ==\n", headerFor(snap))
	fmt.Printf("Balance:      %s bucks\n", formatMicros(snap.BalanceMicros))
	fmt.Printf("Income:       %s bucks/hour\n", formatMicros(snap.RatePerHourMicros))
	fmt.Printf("Guests:       %d/hour\n", snap.GuestsPerHour)
	fmt.Printf("Total earned: %s bucks\n", formatMicros(snap.TotalEarnedMicros))
	fmt.Printf("Settled at:   %s\n", snap.LastSettledAt.Local().Format("2006-01-02 15:04:05"))
	if snap.BalanceRank > 0 {
		fmt.Printf("Rank:         #%d by balance", snap.BalanceRank)
		if snap.RateRank > 0 {
			fmt.Printf(", #%d by income", snap.RateRank)
		}
		fmt.Println()
	}

	owned := 0
	for _, u := range snap.Upgrades {
		if u.Level > 0 {
			owned++
		}
	}
	fmt.Println()
	accent.Println("Upgrades")
	if owned == 0 {
		printInfo("No upgrades yet. Run `szl shop` to browse the catalog.")
	} else {
		fmt.Printf("%-22s %-12s %6s %14s\n", "UPGRADE", "CATEGORY", "LEVEL", "NEXT COST")
		for _, u := range snap.Upgrades {
			if u.Level == 0 {
				continue
			}
			next := "max"
			if !u.AtCap {
				next = formatMicros(u.NextCostMicros)
			}
			fmt.Printf("%-22s %-12s %6d %14s\n", truncate(u.Name, 22), u.Category, u.Level, next)
		}
	}
	fmt.Println()
}

func printPurchase(raw map[string]any) {
	out, err := decodeInto[purchasePayload](raw)
	if err != nil {
		printError(err)
		return
	}
	printSuccess(fmt.Sprintf("Bought %s level %d for %s bucks", out.UpgradeID, out.NewLevel, formatMicros(out.CostMicros)))
	fmt.Printf("Balance: %s bucks, income %s bucks/hour\n",
		formatMicros(out.State.BalanceMicros),
		formatMicros(out.State.RatePerHourMicros),
	)
}

func printShop(raw map[string]any) {
	out, err := decodeInto[shopPayload](raw)
	if err != nil {
		printError(err)
		return
	}
	accent.Println("\n== UPGRADE SHOP ==")
	if len(out.Upgrades) == 0 {
		printInfo("Catalog is empty.")
		return
	}
	fmt.Printf("%-22s %-22s %-12s %14s %14s %8s %6s\n", "ID", "NAME", "CATEGORY", "BASE COST", "INCOME/LVL", "GUESTS", "MAX")
	for _, u := range out.Upgrades {
		max := "-"
		if u.MaxLevel > 0 {
			max = strconv.Itoa(int(u.MaxLevel))
		}
		fmt.Printf("%-22s %-22s %-12s %14s %14s %8d %6s\n",
			u.UpgradeID,
			truncate(u.Name, 22),
			u.Category,
			formatMicros(u.BaseCostMicros),
			formatMicros(u.RatePerLevel),
			u.GuestsPerLevel,
			max,
		)
	}
	fmt.Println()
}

func printAchievements(raw map[string]any) {
	out, err := decodeInto[achievementsPayload](raw)
	if err != nil {
		printError(err)
		return
	}
	accent.Printf("\n== ACHIEVEMENTS (%d/%d) ==\n", out.UnlockedCount, out.TotalCount)
	for _, a := range out.Achievements {
		if a.Unlocked {
			when := ""
			if a.UnlockedAt != nil {
				when = a.UnlockedAt.Local().Format("2006-01-02")
			}
			success.Printf("[x] %-24s +%s bucks  %s\n", a.Name, formatMicros(a.RewardMicros), when)
		} else {
			fmt.Printf("[ ] %-24s +%s bucks\n", a.Name, formatMicros(a.RewardMicros))
		}
	}
	fmt.Println()
}

func printLeaderboard(raw map[string]any) {
	out, err := decodeInto[leaderboardPayload](raw)
	if err != nil {
		printError(err)
		return
	}
	title := "LEADERBOARD BY " + strings.ToUpper(out.By)
	if out.Scope == "group" {
		title = "GROUP " + title
	}
	accent.Printf("\n== %s ==\n", title)
	if len(out.Rows) == 0 {
		printInfo("No ranked players yet.")
		return
	}
	fmt.Printf("%-6s %-28s %16s\n", "RANK", "PLAYER", "BUCKS")
	for _, row := range out.Rows {
		fmt.Printf("%-6d %-28s %16s\n", row.Rank, truncate(row.PlayerID, 28), row.KeyDisplay)
	}
	fmt.Println()
}

func printRank(raw map[string]any) {
	out, err := decodeInto[rankPayload](raw)
	if err != nil {
		printError(err)
		return
	}
	printSuccess(fmt.Sprintf("#%d by %s", out.Rank, out.By))
}

func headerFor(snap engine.Snapshot) string {
	name := strings.TrimSpace(snap.DisplayName)
	if name == "" {
		name = snap.PlayerID
	}
	return strings.ToUpper(name) + "'S JOINT"
}

func decodeInto[T any](in any) (T, error) {
	var out T
	raw, err := json.Marshal(in)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, err
	}
	return out, nil
}

func formatMicros(v int64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	whole := v / ledger.MicrosPerBuck
	frac := (v % ledger.MicrosPerBuck) / 10_000
	return fmt.Sprintf("%s%s.%02d", sign, comma(whole), frac)
}

func comma(v int64) string {
	s := strconv.FormatInt(v, 10)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
		if len(s) > pre {
			b.WriteByte(',')
		}
	}
	for i := pre; i < len(s); i += 3 {
		b.WriteString(s[i : i+3])
		if i+3 < len(s) {
			b.WriteByte(',')
		}
	}
	return b.String()
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
