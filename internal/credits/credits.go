// Package credits estimates carbon credits from a claimed area.
package credits

import (
	"math"
	"strings"

	"bluecarbon/internal/config"
)

// Calculator converts an area in acres into credits using per-ecosystem multipliers.
type Calculator struct {
	multipliers map[string]int
	fallback    int
}

// NewCalculator creates a calculator. A nil map uses the built-in multipliers and a
// non-positive fallback uses config.DefaultMultiplier.
func NewCalculator(multipliers map[string]int, fallback int) *Calculator {
	if multipliers == nil {
		multipliers = config.DefaultMultipliers()
	}
	if fallback <= 0 {
		fallback = config.DefaultMultiplier
	}
	return &Calculator{multipliers: multipliers, fallback: fallback}
}

// FromYAML builds a calculator from the optional YAML config.
func FromYAML(cfg *config.YAMLConfig) *Calculator {
	return NewCalculator(cfg.Multipliers(), cfg.FallbackMultiplier())
}

// Multiplier returns the credits-per-acre factor for an ecosystem type.
// Unrecognized types get the fallback.
func (c *Calculator) Multiplier(ecosystemType string) int {
	if m, ok := c.multipliers[NormalizeType(ecosystemType)]; ok {
		return m
	}
	return c.fallback
}

// Known reports whether the type has its own multiplier.
func (c *Calculator) Known(ecosystemType string) bool {
	_, ok := c.multipliers[NormalizeType(ecosystemType)]
	return ok
}

// Estimate returns floor(area * multiplier(type)).
func (c *Calculator) Estimate(area float64, ecosystemType string) int64 {
	if area <= 0 || math.IsNaN(area) || math.IsInf(area, 0) {
		return 0
	}
	return int64(math.Floor(area * float64(c.Multiplier(ecosystemType))))
}

// NormalizeType lower-cases and trims an ecosystem type.
func NormalizeType(ecosystemType string) string {
	return strings.ToLower(strings.TrimSpace(ecosystemType))
}
