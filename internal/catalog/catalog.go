package catalog

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"sync/atomic"

	"github.com/pelletier/go-toml/v2"

	"sizzle/internal/ledger"
)

var (
	ErrUnknownUpgrade     = errors.New("unknown upgrade")
	ErrUnknownAchievement = errors.New("unknown achievement")
	ErrInvalidLevel       = errors.New("upgrade level must be >= 0")
)

const DefaultCostGrowth = 1.15

// Achievement condition kinds, matching the progress counters the ledger keeps.
const (
	ConditionTotalEarned   = "total_earned"
	ConditionUpgradesCount = "upgrades_count"
)

// Upgrade is an immutable catalog row. Cost and rate contributions are pure
// functions of level: cost(level) = ceil(baseCost * costGrowth^level),
// rate(level) = ratePerLevel * level. MaxLevel 0 means uncapped.
type Upgrade struct {
	ID                 string
	Name               string
	Category           string
	BaseCostMicros     int64
	CostGrowth         float64
	RatePerLevelMicros int64
	GuestsPerLevel     int64
	MaxLevel           int32
	Description        string
}

type Achievement struct {
	ID             string
	Name           string
	ConditionType  string
	ConditionValue int64 // micros for total_earned, plain count for upgrades_count
	RewardMicros   int64
	Description    string
}

type snapshot struct {
	upgrades        map[string]Upgrade
	upgradeOrder    []Upgrade
	achievements    map[string]Achievement
	achievementList []Achievement
}

// Catalog is loaded once at startup and swapped atomically on reload, so
// readers never observe a half-updated definition set.
type Catalog struct {
	snap atomic.Pointer[snapshot]
}

// Default returns the built-in burger-joint catalog.
func Default() *Catalog {
	c := &Catalog{}
	c.snap.Store(buildSnapshot(defaultUpgrades(), defaultAchievements()))
	return c
}

// LoadFile reads a TOML catalog. Amounts in the file are expressed in bucks
// and converted to micros here, at the boundary.
func LoadFile(path string) (*Catalog, error) {
	c := &Catalog{}
	if err := c.Reload(path); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload re-reads the file and swaps the snapshot in one step.
func (c *Catalog) Reload(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read catalog: %w", err)
	}
	var file catalogFile
	if err := toml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("decode catalog: %w", err)
	}
	upgrades, achievements, err := file.build()
	if err != nil {
		return err
	}
	c.snap.Store(buildSnapshot(upgrades, achievements))
	return nil
}

func (c *Catalog) Upgrade(id string) (Upgrade, error) {
	u, ok := c.snap.Load().upgrades[id]
	if !ok {
		return Upgrade{}, fmt.Errorf("%w: %s", ErrUnknownUpgrade, id)
	}
	return u, nil
}

// Upgrades returns the catalog in a stable (category, id) order.
func (c *Catalog) Upgrades() []Upgrade {
	src := c.snap.Load().upgradeOrder
	out := make([]Upgrade, len(src))
	copy(out, src)
	return out
}

// CostOf is the price of buying the next level when the player currently
// owns `level` levels.
func (c *Catalog) CostOf(id string, level int32) (int64, error) {
	u, err := c.Upgrade(id)
	if err != nil {
		return 0, err
	}
	if level < 0 {
		return 0, ErrInvalidLevel
	}
	return scaleCost(u.BaseCostMicros, u.CostGrowth, level), nil
}

// RateContributionOf is the upgrade's total contribution to the production
// rate at the given owned level.
func (c *Catalog) RateContributionOf(id string, level int32) (int64, error) {
	u, err := c.Upgrade(id)
	if err != nil {
		return 0, err
	}
	if level < 0 {
		return 0, ErrInvalidLevel
	}
	return satMulInt64(u.RatePerLevelMicros, int64(level)), nil
}

func (c *Catalog) GuestsContributionOf(id string, level int32) (int64, error) {
	u, err := c.Upgrade(id)
	if err != nil {
		return 0, err
	}
	if level < 0 {
		return 0, ErrInvalidLevel
	}
	return u.GuestsPerLevel * int64(level), nil
}

// MaxLevelOf returns the level cap, 0 meaning uncapped.
func (c *Catalog) MaxLevelOf(id string) (int32, error) {
	u, err := c.Upgrade(id)
	if err != nil {
		return 0, err
	}
	return u.MaxLevel, nil
}

func (c *Catalog) Achievement(id string) (Achievement, error) {
	a, ok := c.snap.Load().achievements[id]
	if !ok {
		return Achievement{}, fmt.Errorf("%w: %s", ErrUnknownAchievement, id)
	}
	return a, nil
}

func (c *Catalog) Achievements() []Achievement {
	src := c.snap.Load().achievementList
	out := make([]Achievement, len(src))
	copy(out, src)
	return out
}

func scaleCost(baseMicros int64, growth float64, level int32) int64 {
	if growth <= 0 {
		growth = DefaultCostGrowth
	}
	cost := float64(baseMicros) * math.Pow(growth, float64(level))
	if cost >= float64(math.MaxInt64) {
		return math.MaxInt64
	}
	return int64(math.Ceil(cost))
}

func satMulInt64(a, b int64) int64 {
	if a == 0 || b == 0 {
		return 0
	}
	v := a * b
	if v/b != a {
		if (a > 0) == (b > 0) {
			return math.MaxInt64
		}
		return math.MinInt64
	}
	return v
}

func buildSnapshot(upgrades []Upgrade, achievements []Achievement) *snapshot {
	snap := &snapshot{
		upgrades:        make(map[string]Upgrade, len(upgrades)),
		achievements:    make(map[string]Achievement, len(achievements)),
		achievementList: achievements,
	}
	for _, u := range upgrades {
		snap.upgrades[u.ID] = u
	}
	order := make([]Upgrade, len(upgrades))
	copy(order, upgrades)
	sort.Slice(order, func(i, j int) bool {
		if order[i].Category != order[j].Category {
			return order[i].Category < order[j].Category
		}
		return order[i].ID < order[j].ID
	})
	snap.upgradeOrder = order
	for _, a := range achievements {
		snap.achievements[a.ID] = a
	}
	sort.Slice(snap.achievementList, func(i, j int) bool {
		if snap.achievementList[i].ConditionType != snap.achievementList[j].ConditionType {
			return snap.achievementList[i].ConditionType < snap.achievementList[j].ConditionType
		}
		return snap.achievementList[i].ConditionValue < snap.achievementList[j].ConditionValue
	})
	return snap
}

type catalogFile struct {
	Upgrades []struct {
		ID             string  `toml:"id"`
		Name           string  `toml:"name"`
		Category       string  `toml:"category"`
		BaseCost       float64 `toml:"base_cost"`
		CostGrowth     float64 `toml:"cost_growth"`
		RatePerLevel   float64 `toml:"rate_per_level"`
		GuestsPerLevel int64   `toml:"guests_per_level"`
		MaxLevel       int32   `toml:"max_level"`
		Description    string  `toml:"description"`
	} `toml:"upgrades"`
	Achievements []struct {
		ID             string  `toml:"id"`
		Name           string  `toml:"name"`
		ConditionType  string  `toml:"condition_type"`
		ConditionValue float64 `toml:"condition_value"`
		Reward         float64 `toml:"reward"`
		Description    string  `toml:"description"`
	} `toml:"achievements"`
}

func (f catalogFile) build() ([]Upgrade, []Achievement, error) {
	if len(f.Upgrades) == 0 {
		return nil, nil, errors.New("catalog file defines no upgrades")
	}
	upgrades := make([]Upgrade, 0, len(f.Upgrades))
	seen := make(map[string]bool, len(f.Upgrades))
	for _, in := range f.Upgrades {
		if in.ID == "" {
			return nil, nil, errors.New("catalog upgrade missing id")
		}
		if seen[in.ID] {
			return nil, nil, fmt.Errorf("duplicate upgrade id %q", in.ID)
		}
		seen[in.ID] = true
		if in.BaseCost <= 0 {
			return nil, nil, fmt.Errorf("upgrade %q: base_cost must be > 0", in.ID)
		}
		if in.RatePerLevel < 0 || in.GuestsPerLevel < 0 {
			return nil, nil, fmt.Errorf("upgrade %q: contributions must be >= 0", in.ID)
		}
		growth := in.CostGrowth
		if growth == 0 {
			growth = DefaultCostGrowth
		}
		if growth < 1 {
			return nil, nil, fmt.Errorf("upgrade %q: cost_growth must be >= 1", in.ID)
		}
		upgrades = append(upgrades, Upgrade{
			ID:                 in.ID,
			Name:               in.Name,
			Category:           in.Category,
			BaseCostMicros:     ledger.BucksToMicros(in.BaseCost),
			CostGrowth:         growth,
			RatePerLevelMicros: ledger.BucksToMicros(in.RatePerLevel),
			GuestsPerLevel:     in.GuestsPerLevel,
			MaxLevel:           in.MaxLevel,
			Description:        in.Description,
		})
	}

	achievements := make([]Achievement, 0, len(f.Achievements))
	for _, in := range f.Achievements {
		if in.ID == "" {
			return nil, nil, errors.New("catalog achievement missing id")
		}
		var value int64
		switch in.ConditionType {
		case ConditionTotalEarned:
			value = ledger.BucksToMicros(in.ConditionValue)
		case ConditionUpgradesCount:
			value = int64(in.ConditionValue)
		default:
			return nil, nil, fmt.Errorf("achievement %q: unknown condition_type %q", in.ID, in.ConditionType)
		}
		achievements = append(achievements, Achievement{
			ID:             in.ID,
			Name:           in.Name,
			ConditionType:  in.ConditionType,
			ConditionValue: value,
			RewardMicros:   ledger.BucksToMicros(in.Reward),
			Description:    in.Description,
		})
	}
	return upgrades, achievements, nil
}
