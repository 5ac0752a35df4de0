package reconcile

import (
	"math"
	"math/big"
	"strconv"
	"strings"
)

// Tier is a display bucket for a similarity score. Higher values rank better.
type Tier int

const (
	TierLow Tier = iota
	TierFair
	TierGood
	TierExcellent
)

// Color identifies the display color of a tier.
type Color string

const (
	ColorGreen  Color = "green"
	ColorBlue   Color = "blue"
	ColorYellow Color = "yellow"
	ColorOrange Color = "orange"
)

// tierTable is evaluated top-down; the first row whose minimum the score
// reaches wins. Scores are not clamped.
var tierTable = []struct {
	min  float64
	tier Tier
}{
	{0.8, TierExcellent},
	{0.6, TierGood},
	{0.4, TierFair},
}

// TierFor maps a score onto its tier. NaN and anything below the last row are Low.
func TierFor(score float64) Tier {
	for _, row := range tierTable {
		if score >= row.min {
			return row.tier
		}
	}
	return TierLow
}

func (t Tier) Label() string {
	switch t {
	case TierExcellent:
		return "Excellent"
	case TierGood:
		return "Good"
	case TierFair:
		return "Fair"
	default:
		return "Low"
	}
}

func (t Tier) Color() Color {
	switch t {
	case TierExcellent:
		return ColorGreen
	case TierGood:
		return ColorBlue
	case TierFair:
		return ColorYellow
	default:
		return ColorOrange
	}
}

func (t Tier) String() string { return t.Label() }

// FormatRelevance renders score as a percentage with one decimal, e.g. 0.8234 -> "82.3%".
// A percentage lying exactly halfway between two tenths rounds away from
// zero, so 0.8125 -> "81.3%".
func FormatRelevance(score float64) string {
	return fixedTenths(score*100) + "%"
}

var (
	bigTen  = big.NewFloat(10)
	bigHalf = big.NewFloat(0.5)
)

// fixedTenths formats x with one decimal. strconv already rounds to the
// nearest tenth using the exact binary value; only exact ties need handling,
// where strconv picks the even digit.
func fixedTenths(x float64) string {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return strconv.FormatFloat(x, 'f', 1, 64)
	}

	// 128 bits hold x*10 exactly.
	scaled := new(big.Float).SetPrec(128).SetFloat64(math.Abs(x))
	scaled.Mul(scaled, bigTen)
	whole, _ := scaled.Int(nil)
	frac := new(big.Float).SetPrec(128).Sub(scaled, new(big.Float).SetInt(whole))
	if frac.Cmp(bigHalf) != 0 {
		return strconv.FormatFloat(x, 'f', 1, 64)
	}

	digits := whole.Add(whole, big.NewInt(1)).String()
	if len(digits) == 1 {
		digits = "0" + digits
	}
	var b strings.Builder
	if x < 0 {
		b.WriteByte('-')
	}
	b.WriteString(digits[:len(digits)-1])
	b.WriteByte('.')
	b.WriteString(digits[len(digits)-1:])
	return b.String()
}

func RelevanceLabel(score float64) string { return TierFor(score).Label() }

func RelevanceColor(score float64) Color { return TierFor(score).Color() }

// RelevanceInfo bundles everything a result card shows about a score.
type RelevanceInfo struct {
	Percent string `json:"percent"`
	Label   string `json:"label"`
	Color   Color  `json:"color"`
	Tier    Tier   `json:"-"`
}

// Relevance describes score for display. The tier follows the raw score;
// only the percentage of a non-finite score is shown as 0.
func Relevance(score float64) RelevanceInfo {
	t := TierFor(score)
	return RelevanceInfo{
		Percent: FormatRelevance(displayScore(score)),
		Label:   t.Label(),
		Color:   t.Color(),
		Tier:    t,
	}
}

// displayScore zeroes scores that cannot be printed as a percentage.
func displayScore(score float64) float64 {
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0
	}
	return score
}
