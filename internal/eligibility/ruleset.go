package eligibility

import (
	"strings"

	"github.com/fekuna/omnipos-benefits-service/config"
	"github.com/fekuna/omnipos-benefits-service/internal/model"
)

// CategoryRule is the packaging and quantity policy of one category.
// Zero values mean "no constraint".
type CategoryRule struct {
	// AllowedSizesOz lists the only package sizes that may be approved.
	AllowedSizesOz []float64
	// DisallowedSizeReasons adds a category specific reason code after
	// package_size_not_allowed for well known wrong sizes.
	DisallowedSizeReasons map[float64]string
	// MonthlyCeilingOz caps the ounces bought per benefit period.
	MonthlyCeilingOz float64
	// BrandAllowList, when set, restricts approval to these brands.
	BrandAllowList []string
}

// HasSizeRule reports whether evaluating this category needs a package size.
func (r CategoryRule) HasSizeRule() bool {
	return len(r.AllowedSizesOz) > 0 || r.MonthlyCeilingOz > 0
}

func (r CategoryRule) sizeAllowed(size float64) bool {
	for _, s := range r.AllowedSizesOz {
		if sameSize(s, size) {
			return true
		}
	}
	return false
}

func (r CategoryRule) brandAllowed(brand string) bool {
	if len(r.BrandAllowList) == 0 {
		return true
	}
	b := strings.ToLower(strings.TrimSpace(brand))
	for _, allowed := range r.BrandAllowList {
		if strings.ToLower(strings.TrimSpace(allowed)) == b {
			return true
		}
	}
	return false
}

// RuleSet is the per-region/per-period rule configuration handed to the engine.
type RuleSet struct {
	Categories map[model.Category]CategoryRule
}

func (rs RuleSet) Rule(c model.Category) (CategoryRule, bool) {
	r, ok := rs.Categories[c]
	return r, ok
}

func DefaultRuleSet() RuleSet {
	return RuleSet{
		Categories: map[model.Category]CategoryRule{
			model.CategoryMilk: {
				AllowedSizesOz:        []float64{64},
				DisallowedSizeReasons: map[float64]string{128: model.ReasonMilkGallonNotAllowed},
			},
			model.CategoryBread: {
				AllowedSizesOz: []float64{16},
			},
			model.CategoryCereal: {
				MonthlyCeilingOz: 72,
			},
		},
	}
}

// RuleSetFromConfig starts from the defaults and applies the env overrides.
func RuleSetFromConfig(cfg config.EligibilityConfig) RuleSet {
	rs := DefaultRuleSet()

	if len(cfg.MilkSizesOz) > 0 {
		milk := rs.Categories[model.CategoryMilk]
		milk.AllowedSizesOz = cfg.MilkSizesOz
		rs.Categories[model.CategoryMilk] = milk
	}
	if len(cfg.BreadSizesOz) > 0 {
		bread := rs.Categories[model.CategoryBread]
		bread.AllowedSizesOz = cfg.BreadSizesOz
		rs.Categories[model.CategoryBread] = bread
	}

	cereal := rs.Categories[model.CategoryCereal]
	if cfg.CerealCeilingOz > 0 {
		cereal.MonthlyCeilingOz = cfg.CerealCeilingOz
	}
	cereal.BrandAllowList = cfg.CerealBrandAllow
	rs.Categories[model.CategoryCereal] = cereal

	return rs
}

func sameSize(a, b float64) bool {
	d := a - b
	return d < 0.5 && d > -0.5
}
