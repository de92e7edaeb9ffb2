package construction

import (
	"fmt"
	"strconv"
	"strings"
)

// Band is an expected crew-size range parsed from the workforce matrix
type Band struct {
	Raw       string `json:"raw"`
	Min       int    `json:"min"`
	Max       int    `json:"max"`
	OpenEnded bool   `json:"open_ended"`
}

// ParseBand parses free-text crew ranges: "3", "2-4" or "10+"
func ParseBand(raw string) (Band, error) {
	s := strings.TrimSpace(raw)
	s = strings.NewReplacer("–", "-", "—", "-", " ", "").Replace(s)
	if s == "" {
		return Band{}, fmt.Errorf("empty crew band")
	}

	band := Band{Raw: strings.TrimSpace(raw)}

	if strings.HasSuffix(s, "+") {
		n, err := strconv.Atoi(strings.TrimSuffix(s, "+"))
		if err != nil || n < 0 {
			return Band{}, fmt.Errorf("invalid crew band %q", raw)
		}
		band.Min, band.Max, band.OpenEnded = n, n, true
		return band, nil
	}

	lo, hi, isRange := strings.Cut(s, "-")
	minN, err := strconv.Atoi(lo)
	if err != nil || minN < 0 {
		return Band{}, fmt.Errorf("invalid crew band %q", raw)
	}
	maxN := minN
	if isRange {
		maxN, err = strconv.Atoi(hi)
		if err != nil {
			return Band{}, fmt.Errorf("invalid crew band %q", raw)
		}
	}
	if maxN < minN {
		return Band{}, fmt.Errorf("invalid crew band %q: max below min", raw)
	}

	band.Min, band.Max = minN, maxN
	return band, nil
}

// Midpoint is the expected headcount for planning purposes
func (b Band) Midpoint() float64 {
	return float64(b.Min+b.Max) / 2
}

// Add sums two bands; the result is open ended if either side is
func (b Band) Add(o Band) Band {
	sum := Band{
		Min:       b.Min + o.Min,
		Max:       b.Max + o.Max,
		OpenEnded: b.OpenEnded || o.OpenEnded,
	}
	sum.Raw = sum.String()
	return sum
}

// String formats the band the way the matrix writes it
func (b Band) String() string {
	switch {
	case b.OpenEnded:
		return fmt.Sprintf("%d+", b.Min)
	case b.Min == b.Max:
		return strconv.Itoa(b.Min)
	default:
		return fmt.Sprintf("%d-%d", b.Min, b.Max)
	}
}
