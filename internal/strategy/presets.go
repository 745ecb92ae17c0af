package strategy

import (
	"github.com/shopspring/decimal"
)

var riskMultiple = ProfitPoint{Kind: ProfitPointRiskMultiple}

func percentGain(pct string) ProfitPoint {
	return ProfitPoint{
		Kind:    ProfitPointPercentGain,
		Percent: decimal.RequireFromString(pct),
	}
}

var presets = []Config{
	{
		Name:           "rr_3_advancing",
		Description:    "3 levels at 1R/2R/3R, stop follows the previous level",
		NumberOfLevels: 3,
		ProfitPoint:    riskMultiple,
		StopAdvance:    Advancing,
	},
	{
		Name:           "rr_4_advancing",
		Description:    "4 levels at 1R..4R, stop follows the previous level",
		NumberOfLevels: 4,
		ProfitPoint:    riskMultiple,
		StopAdvance:    Advancing,
	},
	{
		Name:           "rr_3_delayed",
		Description:    "3 levels at 1R/2R/3R, stop trails two levels behind",
		NumberOfLevels: 3,
		ProfitPoint:    riskMultiple,
		StopAdvance:    DelayedAdvancing,
	},
	{
		Name:           "rr_4_delayed",
		Description:    "4 levels at 1R..4R, stop trails two levels behind",
		NumberOfLevels: 4,
		ProfitPoint:    riskMultiple,
		StopAdvance:    DelayedAdvancing,
	},
	{
		Name:           "rr_3_advancing_downside",
		Description:    "rr_3_advancing, selling half once RR drops below -0.5",
		NumberOfLevels: 3,
		ProfitPoint:    riskMultiple,
		StopAdvance:    Advancing,
		DownsideProtection: &DownsideProtection{
			RRThreshold:  -0.5,
			SellFraction: decimal.RequireFromString("0.5"),
		},
	},
	{
		Name:           "rr_3_advancing_lowstop",
		Description:    "rr_3_advancing, stopping out on the bar low",
		NumberOfLevels: 3,
		ProfitPoint:    riskMultiple,
		StopAdvance:    Advancing,
		UseLowAsStop:   true,
	},
	{
		Name:           "pct_5_3_advancing",
		Description:    "3 levels every 5% above cost",
		NumberOfLevels: 3,
		ProfitPoint:    percentGain("0.05"),
		StopAdvance:    Advancing,
	},
	{
		Name:           "pct_10_3_advancing",
		Description:    "3 levels every 10% above cost",
		NumberOfLevels: 3,
		ProfitPoint:    percentGain("0.10"),
		StopAdvance:    Advancing,
	},
	{
		Name:           "pct_10_4_delayed",
		Description:    "4 levels every 10% above cost, stop trails two levels behind",
		NumberOfLevels: 4,
		ProfitPoint:    percentGain("0.10"),
		StopAdvance:    DelayedAdvancing,
	},
}

// Presets returns copies of the built-in strategies
func Presets() []Config {
	out := make([]Config, len(presets))
	for i, c := range presets {
		out[i] = c.clone()
	}
	return out
}

func ByName(name string) (Config, bool) {
	for _, c := range presets {
		if c.Name == name {
			return c.clone(), true
		}
	}
	return Config{}, false
}

func (c Config) clone() Config {
	if c.DownsideProtection != nil {
		dp := *c.DownsideProtection
		c.DownsideProtection = &dp
	}
	return c
}
