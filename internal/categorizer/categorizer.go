// Package categorizer maps free-text product descriptions onto benefit
// categories and pulls package sizes out of label text.
package categorizer

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/fekuna/omnipos-benefits-service/internal/model"
)

// Describable is anything with the three text fields categorization looks at.
// Both catalog entries and external records satisfy it.
type Describable interface {
	DescriptionText() string
	CategoryText() string
	BrandText() string
}

type Categorizer struct {
	rules []Rule
}

// New copies the rules and orders them by priority. Equal priorities keep
// their given order.
func New(rules []Rule) *Categorizer {
	sorted := make([]Rule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority < sorted[j].Priority })

	for i := range sorted {
		kws := make([]string, len(sorted[i].Keywords))
		for k, kw := range sorted[i].Keywords {
			kws[k] = normalize(kw)
		}
		sorted[i].Keywords = kws
	}
	return &Categorizer{rules: sorted}
}

func NewDefault() *Categorizer {
	return New(DefaultRules)
}

// Rules returns the effective rule order.
func (c *Categorizer) Rules() []Rule {
	out := make([]Rule, len(c.rules))
	copy(out, c.rules)
	return out
}

func (c *Categorizer) Categorize(d Describable) model.Category {
	if d == nil {
		return model.CategoryUnknown
	}
	return c.CategorizeText(d.DescriptionText() + " " + d.CategoryText() + " " + d.BrandText())
}

func (c *Categorizer) CategorizeText(text string) model.Category {
	haystack := " " + normalize(text) + " "
	if strings.TrimSpace(haystack) == "" {
		return model.CategoryUnknown
	}
	for _, rule := range c.rules {
		for _, kw := range rule.Keywords {
			if kw == "" {
				continue
			}
			if strings.Contains(haystack, " "+kw+" ") {
				return rule.Category
			}
		}
	}
	return model.CategoryUnknown
}

// normalize lower-cases and turns every run of punctuation into one space so
// keywords only match on word boundaries. '%' is kept for "2%" style labels.
func normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := true
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '%' || r > 127 {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}

var (
	measureRe    = regexp.MustCompile(`(?i)(\d+\s*/\s*\d+|\d+(?:\.\d+)?|\.\d+)\s*-?\s*(fl\.?\s*oz|fluid\s+ounces?|oz|ounces?|gallons?|gal|quarts?|qt|pints?|pt|pounds?|lbs?)\b\.?`)
	halfGallonRe = regexp.MustCompile(`(?i)\bhalf[\s-]*gal(?:lon)?s?\b`)
)

// ExtractSizeOunces reads a package weight or volume from label text and
// converts it to ounces. Gallons count 128, quarts 32, pints 16 and pounds 16.
// It returns nil when no unit is present or when the text carries measures
// that disagree (for example "1 lb 4 oz"); it never guesses.
func ExtractSizeOunces(text string) *float64 {
	var found []float64

	if halfGallonRe.MatchString(text) {
		found = append(found, 64)
	}

	for _, m := range measureRe.FindAllStringSubmatch(text, -1) {
		n, ok := parseNumber(m[1])
		if !ok || n <= 0 {
			continue
		}
		factor, ok := unitFactor(m[2])
		if !ok {
			continue
		}
		found = append(found, round2(n*factor))
	}

	if len(found) == 0 {
		return nil
	}
	first := found[0]
	for _, v := range found[1:] {
		if math.Abs(v-first) > 0.5 {
			return nil
		}
	}
	return &first
}

func parseNumber(s string) (float64, bool) {
	s = strings.ReplaceAll(s, " ", "")
	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err1 := strconv.ParseFloat(num, 64)
		d, err2 := strconv.ParseFloat(den, 64)
		if err1 != nil || err2 != nil || d == 0 {
			return 0, false
		}
		return n / d, true
	}
	f, err := strconv.ParseFloat(s, 64)
	return f, err == nil
}

func unitFactor(unit string) (float64, bool) {
	u := strings.ToLower(strings.Join(strings.Fields(strings.ReplaceAll(unit, ".", "")), " "))
	switch {
	case u == "oz" || u == "fl oz" || u == "floz" || strings.HasPrefix(u, "ounce") || strings.HasPrefix(u, "fluid ounce"):
		return 1, true
	case u == "gal" || strings.HasPrefix(u, "gallon"):
		return 128, true
	case u == "qt" || strings.HasPrefix(u, "quart"):
		return 32, true
	case u == "pt" || strings.HasPrefix(u, "pint"):
		return 16, true
	case u == "lb" || u == "lbs" || strings.HasPrefix(u, "pound"):
		return 16, true
	}
	return 0, false
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
