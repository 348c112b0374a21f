// Package genetics combines two parent trait records into offspring and
// computes the effective mutation probability applied during inheritance.
package genetics

// BaseMutationRate is the probability that any single inherited trait is
// replaced by a fresh draw.
const BaseMutationRate = 0.01

// RateContext carries the contextual inputs the rate calculation may consume.
// DifficultyMultiplier is an inert hook: the mapping from blockchain
// difficulty to mutation pressure has never been specified, so callers leave
// it at zero and the calculator treats it as 1.0. The field stays so the
// wiring point is explicit rather than rediscovered later.
type RateContext struct {
	DifficultyMultiplier float64
}

// RateCalculator produces effective mutation probabilities.
type RateCalculator struct {
	baseRate float64
}

// NewRateCalculator constructs a calculator with the canonical base rate.
func NewRateCalculator() *RateCalculator {
	return &RateCalculator{baseRate: BaseMutationRate}
}

// Rate returns baseRate scaled by the context multiplier, clamped to [0,1].
func (c *RateCalculator) Rate(ctx RateContext) float64 {
	multiplier := ctx.DifficultyMultiplier
	if multiplier <= 0 {
		multiplier = 1.0
	}
	rate := c.baseRate * multiplier
	if rate < 0 {
		return 0
	}
	if rate > 1 {
		return 1
	}
	return rate
}
