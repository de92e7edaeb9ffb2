package construction

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Size is the coarse project size classification used to pick crew bands
type Size string

const (
	// SizeS covers projects under $2M
	SizeS Size = "S"
	// SizeM covers projects from $2M up to $10M
	SizeM Size = "M"
	// SizeL covers projects from $10M up to $50M
	SizeL Size = "L"
	// SizeXL covers projects of $50M and above
	SizeXL Size = "XL"
)

// Contract value thresholds (upper bounds, exclusive)
const (
	smallProjectLimit  = 2_000_000
	mediumProjectLimit = 10_000_000
	largeProjectLimit  = 50_000_000
)

// DefaultSize is used when a contract value is missing or cannot be read
const DefaultSize = SizeM

// Sizes returns all sizes from smallest to largest
func Sizes() []Size {
	return []Size{SizeS, SizeM, SizeL, SizeXL}
}

// ParseSize parses a size label, case-insensitively
func ParseSize(s string) (Size, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "S", "SMALL":
		return SizeS, nil
	case "M", "MEDIUM":
		return SizeM, nil
	case "L", "LARGE":
		return SizeL, nil
	case "XL", "EXTRA LARGE", "EXTRA-LARGE":
		return SizeXL, nil
	default:
		return "", fmt.Errorf("unknown project size: %q", s)
	}
}

// String returns the size label
func (s Size) String() string {
	return string(s)
}

// Valid reports whether s is one of the four known sizes
func (s Size) Valid() bool {
	switch s {
	case SizeS, SizeM, SizeL, SizeXL:
		return true
	}
	return false
}

// DurationFactor scales nominal phase durations for the project size
func (s Size) DurationFactor() float64 {
	switch s {
	case SizeS:
		return 0.75
	case SizeL:
		return 1.5
	case SizeXL:
		return 2.0
	default:
		return 1.0
	}
}

// GetProjectSize classifies a free-text contract value such as "$12.5M",
// "850k" or "AUD 3,200,000". Missing or unreadable values fall back to
// DefaultSize.
func GetProjectSize(contractValue string) Size {
	value, err := ParseContractValue(contractValue)
	if err != nil {
		return DefaultSize
	}
	return SizeForValue(value)
}

// SizeForValue classifies a numeric contract value in dollars
func SizeForValue(value float64) Size {
	switch {
	case value < smallProjectLimit:
		return SizeS
	case value < mediumProjectLimit:
		return SizeM
	case value < largeProjectLimit:
		return SizeL
	default:
		return SizeXL
	}
}

var (
	valuePattern = regexp.MustCompile(`^([0-9]*\.?[0-9]+)([a-z]*)$`)

	currencyNoise = strings.NewReplacer(
		"$", "", "£", "", "€", "", ",", "", " ", "", "~", "", "+", "",
		"aud", "", "usd", "", "nzd", "", "gbp", "", "eur", "",
		"approx.", "", "approx", "", "circa", "", "ca.", "",
	)

	rangeSeparators = strings.NewReplacer("–", "-", "—", "-", "to", "-")
)

// ParseContractValue extracts a dollar amount from a free-text contract value.
// Ranges ("5-10m") resolve to their upper bound, which takes the lower bound's
// unit when it has none of its own ("5m-10"). Negative values are rejected.
func ParseContractValue(raw string) (float64, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return 0, fmt.Errorf("empty contract value")
	}

	s = rangeSeparators.Replace(s)
	s = currencyNoise.Replace(s)
	if strings.HasPrefix(s, "-") {
		return 0, fmt.Errorf("negative contract value: %q", raw)
	}

	parts := strings.Split(s, "-")
	m := valuePattern.FindStringSubmatch(parts[len(parts)-1])
	if m == nil {
		return 0, fmt.Errorf("unreadable contract value: %q", raw)
	}

	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("unreadable contract value: %q", raw)
	}

	unit := m[2]
	if unit == "" && len(parts) > 1 {
		if lower := valuePattern.FindStringSubmatch(parts[len(parts)-2]); lower != nil {
			unit = lower[2]
		}
	}
	multiplier, ok := valueSuffixes[unit]
	if !ok {
		return 0, fmt.Errorf("unknown unit %q in contract value %q", unit, raw)
	}

	return n * multiplier, nil
}

var valueSuffixes = map[string]float64{
	"":         1,
	"k":        1e3,
	"thousand": 1e3,
	"m":        1e6,
	"mn":       1e6,
	"mil":      1e6,
	"mill":     1e6,
	"million":  1e6,
	"b":        1e9,
	"bn":       1e9,
	"billion":  1e9,
}
