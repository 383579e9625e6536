package shipping

import "math"

// SelectTariff returns the first preferred tariff present in available,
// or fallback when none of them is offered.
func SelectTariff(available, preferred []int, fallback int) int {
	offered := make(map[int]struct{}, len(available))
	for _, code := range available {
		offered[code] = struct{}{}
	}
	for _, code := range preferred {
		if _, ok := offered[code]; ok {
			return code
		}
	}
	return fallback
}

// ItemWeight spreads the parcel weight evenly across units, rounding half to even.
func ItemWeight(total, units int) int {
	if units <= 0 {
		return total
	}
	return int(math.RoundToEven(float64(total) / float64(units)))
}

// truncateRunes cuts s to at most n characters without splitting a rune
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
