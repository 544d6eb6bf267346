// Package economics holds the cost formulas shared by the component builders.
package economics

import (
	"fmt"
	"math"
)

// KWToMW converts per-kW costs from the reference tables into per-MW costs.
const KWToMW = 1000

// Annuity returns the annualized equivalent of capex over lifetime years at
// discount rate wacc, using the capital recovery factor.
func Annuity(capex, lifetime, wacc float64) (float64, error) {
	if lifetime <= 0 {
		return 0, fmt.Errorf("annuity: lifetime must be positive, got %v", lifetime)
	}
	if wacc < 0 {
		return 0, fmt.Errorf("annuity: wacc must not be negative, got %v", wacc)
	}
	if wacc == 0 {
		return capex / lifetime, nil
	}
	q := math.Pow(1+wacc, lifetime)
	return capex * (wacc * q) / (q - 1), nil
}

// MarginalCost is (fuel + carbon price * emission factor) / efficiency.
func MarginalCost(fuel, co2Price, emissionFactor, efficiency float64) (float64, error) {
	if efficiency <= 0 {
		return 0, fmt.Errorf("marginal cost: efficiency must be positive, got %v", efficiency)
	}
	return (fuel + co2Price*emissionFactor) / efficiency, nil
}

// OneWay converts a roundtrip efficiency into the per-direction efficiency.
func OneWay(roundtrip float64) float64 {
	return math.Sqrt(roundtrip)
}
