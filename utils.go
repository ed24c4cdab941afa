package main

import (
	"math"
	"strconv"
)

func clamp(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// interpolate mixes two 8-bit channel values, rounding to the nearest integer.
func interpolate(c1, c2 uint8, factor float64) uint8 {
	v := float64(c1)*(1-factor) + float64(c2)*factor
	return uint8(clamp(int(math.Round(v)), 0, 255))
}

// Shortest decimal form, so 5 becomes "5" and 7.5 stays "7.5".
func formatPercentage(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}
