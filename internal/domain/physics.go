package domain

import "math"

// Orifice hydraulics shared by the simulator and the drain
// synthesizer. The plate follows Q = K * sqrt(h) with h in metres.

// FlowFromHead returns the flow (L/s) for a given head (m). Head at or
// below zero produces zero flow.
func FlowFromHead(k, headM float64) float64 {
	if headM <= 0 {
		return 0
	}
	return k * math.Sqrt(headM)
}

// LogisticRise models the tank filling toward hMax along a logistic
// curve centred at midpoint with the given steepness.
func LogisticRise(hMax, rate, midpoint, t float64) float64 {
	return hMax / (1 + math.Exp(-rate*(t-midpoint)))
}

// LogisticDrain is the mirrored curve, head falling from hMax toward
// zero as t grows.
func LogisticDrain(hMax, rate, midpoint, t float64) float64 {
	return hMax / (1 + math.Exp(rate*(t-midpoint)))
}
