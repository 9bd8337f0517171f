package nvm

import (
	"math"
	"strconv"
	"strings"
)

// formatFloat renders f in shortest round-trip form. Values whose decimal
// exponent lies in [-4, 16) are written in positional notation and always
// carry a fractional part ("800.0"); others use an exponent with at least two
// digits ("1e-05", "1.5e+16").
func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}

	sci := strconv.FormatFloat(f, 'e', -1, 64)
	exp, err := strconv.Atoi(sci[strings.IndexByte(sci, 'e')+1:])
	if err == nil && (exp < -4 || exp >= 16) {
		return sci
	}

	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s
}

// denormalize maps a normalised feature coordinate to pixels and rounds half
// away from zero.
func denormalize(size int, v float64) int {
	return int(math.Round(float64(size) * (0.5 + v)))
}
