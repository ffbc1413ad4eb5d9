package catalog

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"sizzle/internal/ledger"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()
	if len(c.Upgrades()) == 0 {
		t.Fatalf("default catalog has no upgrades")
	}
	if len(c.Achievements()) == 0 {
		t.Fatalf("default catalog has no achievements")
	}
	// Stable (category, id) presentation order.
	ups := c.Upgrades()
	for i := 1; i < len(ups); i++ {
		a, b := ups[i-1], ups[i]
		if a.Category > b.Category || (a.Category == b.Category && a.ID >= b.ID) {
			t.Fatalf("upgrades out of order: %s/%s before %s/%s", a.Category, a.ID, b.Category, b.ID)
		}
	}
	for _, u := range ups {
		if u.BaseCostMicros <= 0 {
			t.Fatalf("upgrade %s has non-positive base cost", u.ID)
		}
		if u.CostGrowth < 1 {
			t.Fatalf("upgrade %s has growth %f", u.ID, u.CostGrowth)
		}
	}
}

func TestCostOfCurve(t *testing.T) {
	c := Default()
	u := c.Upgrades()[0]

	for level := int32(0); level < 10; level++ {
		got, err := c.CostOf(u.ID, level)
		if err != nil {
			t.Fatalf("cost at level %d: %v", level, err)
		}
		want := int64(math.Ceil(float64(u.BaseCostMicros) * math.Pow(u.CostGrowth, float64(level))))
		if got != want {
			t.Fatalf("cost(%d) = %d, want %d", level, got, want)
		}
		if level > 0 {
			prev, _ := c.CostOf(u.ID, level-1)
			if got < prev {
				t.Fatalf("cost curve decreased at level %d: %d < %d", level, got, prev)
			}
		}
	}

	if _, err := c.CostOf(u.ID, -1); !errors.Is(err, ErrInvalidLevel) {
		t.Fatalf("negative level: got %v, want ErrInvalidLevel", err)
	}
	if _, err := c.CostOf("flux_capacitor", 0); !errors.Is(err, ErrUnknownUpgrade) {
		t.Fatalf("unknown id: got %v, want ErrUnknownUpgrade", err)
	}
}

func TestContributions(t *testing.T) {
	c := Default()
	u := c.Upgrades()[0]

	zero, err := c.RateContributionOf(u.ID, 0)
	if err != nil || zero != 0 {
		t.Fatalf("level 0 contribution = %d, err %v", zero, err)
	}
	three, err := c.RateContributionOf(u.ID, 3)
	if err != nil {
		t.Fatalf("contribution: %v", err)
	}
	if three != 3*u.RatePerLevelMicros {
		t.Fatalf("contribution(3) = %d, want %d", three, 3*u.RatePerLevelMicros)
	}
	guests, err := c.GuestsContributionOf(u.ID, 2)
	if err != nil || guests != 2*u.GuestsPerLevel {
		t.Fatalf("guests(2) = %d, err %v, want %d", guests, err, 2*u.GuestsPerLevel)
	}
}

func TestLoadFileAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.toml")
	write := func(body string) {
		t.Helper()
		if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	write(`
[[upgrades]]
id = "oven"
name = "Oven"
category = "kitchen"
base_cost = 12.5
rate_per_level = 3.0
guests_per_level = 1

[[achievements]]
id = "warm_up"
name = "Warm Up"
condition_type = "total_earned"
condition_value = 100.0
reward = 10.0
`)
	c, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	u, err := c.Upgrade("oven")
	if err != nil {
		t.Fatalf("upgrade: %v", err)
	}
	// Bucks in the file, micros in memory; omitted growth takes the default.
	if u.BaseCostMicros != ledger.BucksToMicros(12.5) {
		t.Fatalf("base cost = %d, want %d", u.BaseCostMicros, ledger.BucksToMicros(12.5))
	}
	if u.CostGrowth != DefaultCostGrowth {
		t.Fatalf("growth = %f, want default %f", u.CostGrowth, DefaultCostGrowth)
	}
	a, err := c.Achievement("warm_up")
	if err != nil {
		t.Fatalf("achievement: %v", err)
	}
	if a.ConditionValue != ledger.BucksToMicros(100) || a.RewardMicros != ledger.BucksToMicros(10) {
		t.Fatalf("achievement converted wrong: %+v", a)
	}

	write(`
[[upgrades]]
id = "oven"
name = "Oven"
category = "kitchen"
base_cost = 20.0
rate_per_level = 5.0
`)
	if err := c.Reload(path); err != nil {
		t.Fatalf("reload: %v", err)
	}
	u, err = c.Upgrade("oven")
	if err != nil {
		t.Fatalf("upgrade after reload: %v", err)
	}
	if u.BaseCostMicros != ledger.BucksToMicros(20) {
		t.Fatalf("reload kept old cost %d", u.BaseCostMicros)
	}
	if _, err := c.Achievement("warm_up"); !errors.Is(err, ErrUnknownAchievement) {
		t.Fatalf("dropped achievement survived reload")
	}

	// A bad file must not clobber the working snapshot.
	write(`
[[upgrades]]
id = "oven"
base_cost = -1.0
`)
	if err := c.Reload(path); err == nil {
		t.Fatalf("expected reload of invalid file to fail")
	}
	if _, err := c.Upgrade("oven"); err != nil {
		t.Fatalf("snapshot lost after failed reload: %v", err)
	}
}

func TestLoadFileValidation(t *testing.T) {
	dir := t.TempDir()
	cases := []struct {
		name string
		body string
	}{
		{"empty", ``},
		{"missing id", `
[[upgrades]]
name = "Nameless"
base_cost = 1.0
`},
		{"duplicate id", `
[[upgrades]]
id = "oven"
base_cost = 1.0
[[upgrades]]
id = "oven"
base_cost = 2.0
`},
		{"shrinking cost", `
[[upgrades]]
id = "oven"
base_cost = 1.0
cost_growth = 0.5
`},
		{"bad condition", `
[[upgrades]]
id = "oven"
base_cost = 1.0
[[achievements]]
id = "weird"
condition_type = "moon_phase"
condition_value = 1.0
`},
	}
	for _, tc := range cases {
		path := filepath.Join(dir, tc.name+".toml")
		if err := os.WriteFile(path, []byte(tc.body), 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
		if _, err := LoadFile(path); err == nil {
			t.Fatalf("%s: expected load to fail", tc.name)
		}
	}
}

func TestScaleCostSaturates(t *testing.T) {
	if got := scaleCost(math.MaxInt64/2, 4.0, 10); got != math.MaxInt64 {
		t.Fatalf("overflow cost = %d, want MaxInt64", got)
	}
}
