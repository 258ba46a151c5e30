package util

import (
	"math"
	"strconv"
	"strings"
)

// Abbreviate formats v with a K, M or B suffix once it reaches a thousand.
// Smaller magnitudes keep up to two decimals.
func Abbreviate(v float64) string {
	a := math.Abs(v)
	switch {
	case a >= 1e9:
		return trim(v/1e9, 2) + "B"
	case a >= 1e6:
		return trim(v/1e6, 2) + "M"
	case a >= 1e3:
		return trim(v/1e3, 1) + "K"
	case a == 0:
		return "0"
	case a < 0.01:
		return strconv.FormatFloat(v, 'g', 3, 64)
	default:
		return trim(v, 2)
	}
}

// Percent renders a signed percentage such as "+4.25%".
func Percent(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	if v >= 0 {
		s = "+" + s
	}
	return s + "%"
}

func trim(v float64, prec int) string {
	s := strconv.FormatFloat(v, 'f', prec, 64)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	return s
}
