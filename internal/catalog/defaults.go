package catalog

import "sizzle/internal/ledger"

// Built-in burger-joint catalog. Costs and contributions are bucks-per-hour
// figures converted to micros once here.
func defaultUpgrades() []Upgrade {
	bucks := func(v float64) int64 { return ledger.BucksToMicros(v) }
	return []Upgrade{
		// Equipment
		{ID: "upgraded_grill", Name: "Upgraded Grill", Category: "equipment", BaseCostMicros: bucks(50), CostGrowth: DefaultCostGrowth, RatePerLevelMicros: bucks(1.0), Description: "Flips burgers 10% faster"},
		{ID: "pro_fryer", Name: "Professional Fryer", Category: "equipment", BaseCostMicros: bucks(100), CostGrowth: DefaultCostGrowth, RatePerLevelMicros: bucks(2.0), Description: "Premium-grade fries"},
		{ID: "auto_coffee_machine", Name: "Automatic Coffee Machine", Category: "equipment", BaseCostMicros: bucks(150), CostGrowth: DefaultCostGrowth, RatePerLevelMicros: bucks(1.5), GuestsPerLevel: 1, Description: "Brews without a barista"},
		{ID: "cold_storage", Name: "Cold Storage Room", Category: "equipment", BaseCostMicros: bucks(200), CostGrowth: DefaultCostGrowth, RatePerLevelMicros: bucks(0.5), Description: "Keeps ingredients fresh longer"},
		{ID: "conveyor_oven", Name: "Conveyor Oven", Category: "equipment", BaseCostMicros: bucks(500), CostGrowth: DefaultCostGrowth, RatePerLevelMicros: bucks(5.0), Description: "Bakes buns non-stop"},

		// Staff
		{ID: "cashier", Name: "Cashier", Category: "staff", BaseCostMicros: bucks(75), CostGrowth: DefaultCostGrowth, RatePerLevelMicros: bucks(0.5), GuestsPerLevel: 2, Description: "Serves customers faster"},
		{ID: "cook", Name: "Cook", Category: "staff", BaseCostMicros: bucks(120), CostGrowth: DefaultCostGrowth, RatePerLevelMicros: bucks(3.0), Description: "Better and faster cooking"},
		{ID: "janitor", Name: "Janitor", Category: "staff", BaseCostMicros: bucks(60), CostGrowth: DefaultCostGrowth, GuestsPerLevel: 1, Description: "Keeps the place clean"},
		{ID: "manager", Name: "Manager", Category: "staff", BaseCostMicros: bucks(300), CostGrowth: DefaultCostGrowth, RatePerLevelMicros: bucks(2.0), GuestsPerLevel: 3, Description: "Streamlines operations"},
		{ID: "marketer", Name: "Marketer", Category: "staff", BaseCostMicros: bucks(250), CostGrowth: DefaultCostGrowth, RatePerLevelMicros: bucks(1.0), GuestsPerLevel: 5, Description: "Brings in more customers"},

		// Interior
		{ID: "comfy_chairs", Name: "Comfy Chairs", Category: "interior", BaseCostMicros: bucks(80), CostGrowth: DefaultCostGrowth, GuestsPerLevel: 2, Description: "Customers linger longer"},
		{ID: "modern_design", Name: "Modern Design", Category: "interior", BaseCostMicros: bucks(200), CostGrowth: DefaultCostGrowth, RatePerLevelMicros: bucks(1.0), GuestsPerLevel: 3, Description: "Draws the younger crowd"},
		{ID: "kids_corner", Name: "Kids Corner", Category: "interior", BaseCostMicros: bucks(150), CostGrowth: DefaultCostGrowth, RatePerLevelMicros: bucks(0.5), GuestsPerLevel: 4, Description: "Families with children"},
		{ID: "wifi_zone", Name: "Wi-Fi Zone", Category: "interior", BaseCostMicros: bucks(100), CostGrowth: DefaultCostGrowth, GuestsPerLevel: 2, Description: "For the freelancers"},
		{ID: "summer_terrace", Name: "Summer Terrace", Category: "interior", BaseCostMicros: bucks(400), CostGrowth: DefaultCostGrowth, RatePerLevelMicros: bucks(2.0), GuestsPerLevel: 5, Description: "Extra seating outside"},
	}
}

func defaultAchievements() []Achievement {
	bucks := func(v float64) int64 { return ledger.BucksToMicros(v) }
	return []Achievement{
		{ID: "first_money", Name: "First Money", ConditionType: ConditionTotalEarned, ConditionValue: bucks(100), RewardMicros: bucks(10), Description: "Earn 100 bucks"},
		{ID: "small_business", Name: "Small Business", ConditionType: ConditionTotalEarned, ConditionValue: bucks(1_000), RewardMicros: bucks(50), Description: "Earn 1,000 bucks"},
		{ID: "medium_business", Name: "Medium Business", ConditionType: ConditionTotalEarned, ConditionValue: bucks(10_000), RewardMicros: bucks(200), Description: "Earn 10,000 bucks"},
		{ID: "corporation", Name: "Corporation", ConditionType: ConditionTotalEarned, ConditionValue: bucks(100_000), RewardMicros: bucks(1_000), Description: "Earn 100,000 bucks"},
		{ID: "tycoon", Name: "Tycoon", ConditionType: ConditionTotalEarned, ConditionValue: bucks(1_000_000), RewardMicros: bucks(5_000), Description: "Earn 1,000,000 bucks"},

		{ID: "first_upgrade", Name: "First Upgrade", ConditionType: ConditionUpgradesCount, ConditionValue: 1, RewardMicros: bucks(5), Description: "Buy any upgrade"},
		{ID: "enthusiast", Name: "Enthusiast", ConditionType: ConditionUpgradesCount, ConditionValue: 5, RewardMicros: bucks(25), Description: "Buy 5 different upgrades"},
		{ID: "modernizer", Name: "Modernizer", ConditionType: ConditionUpgradesCount, ConditionValue: 10, RewardMicros: bucks(100), Description: "Buy 10 different upgrades"},
		{ID: "perfectionist", Name: "Perfectionist", ConditionType: ConditionUpgradesCount, ConditionValue: 15, RewardMicros: bucks(500), Description: "Own every upgrade"},
	}
}
