// Package eligibility decides whether a categorized, sized product may be
// bought with benefits.
package eligibility

import (
	"github.com/fekuna/omnipos-benefits-service/internal/model"
)

type EvaluateInput struct {
	Category     model.Category
	SizeOz       *float64
	CatalogMatch *model.CatalogEntry
	Brand        string
	// UsedThisPeriodOz is what the shopper already bought in the category this
	// period. Nil when unknown; the monthly ceiling then only checks the
	// package itself.
	UsedThisPeriodOz *float64
}

type Engine struct {
	rules RuleSet
}

func NewEngine(rules RuleSet) *Engine {
	return &Engine{rules: rules}
}

func (e *Engine) RuleSet() RuleSet {
	return e.rules
}

// Evaluate never fails: absence of data turns into reason codes.
// Alternatives are filled in later by the suggestion engine.
func (e *Engine) Evaluate(in EvaluateInput) model.EligibilityVerdict {
	verdict := model.EligibilityVerdict{
		Category:         in.Category,
		SizeOz:           in.SizeOz,
		RejectionReasons: []string{},
	}

	rule, hasRule := e.rules.Rule(in.Category)

	// A registry entry is authoritative for the product itself. Quantity
	// rules tied to the shopper still apply to an approved entry.
	if in.CatalogMatch != nil {
		if in.CatalogMatch.IsApproved {
			if hasRule {
				verdict.RejectionReasons = append(verdict.RejectionReasons, e.quantityReasons(rule, in)...)
			}
			verdict.IsApproved = len(verdict.RejectionReasons) == 0
			return verdict
		}

		if hasRule {
			verdict.RejectionReasons = append(verdict.RejectionReasons, e.packageReasons(rule, in)...)
		}
		verdict.RejectionReasons = appendUnique(verdict.RejectionReasons, model.ReasonNotApproved)
		return verdict
	}

	if in.Category == model.CategoryUnknown || !in.Category.IsKnown() {
		verdict.RejectionReasons = append(verdict.RejectionReasons, model.ReasonNotInCategory)
		return verdict
	}

	if hasRule {
		verdict.RejectionReasons = append(verdict.RejectionReasons, e.packageReasons(rule, in)...)
	}

	// Approval is opt-in: without a registry approval nothing passes.
	if len(verdict.RejectionReasons) == 0 {
		verdict.RejectionReasons = append(verdict.RejectionReasons, model.ReasonNotApproved)
	}
	return verdict
}

// packageReasons runs the size, ceiling and brand predicates in that order.
func (e *Engine) packageReasons(rule CategoryRule, in EvaluateInput) []string {
	var reasons []string

	if rule.HasSizeRule() && in.SizeOz == nil {
		return []string{model.ReasonCannotDetermineSize}
	}

	if len(rule.AllowedSizesOz) > 0 && !rule.sizeAllowed(*in.SizeOz) {
		reasons = append(reasons, model.ReasonPackageSizeNotAllowed)
		for size, code := range rule.DisallowedSizeReasons {
			if sameSize(size, *in.SizeOz) {
				reasons = append(reasons, code)
				break
			}
		}
	}

	reasons = append(reasons, e.quantityReasons(rule, in)...)

	if !rule.brandAllowed(in.Brand) {
		reasons = appendUnique(reasons, model.ReasonNotApproved)
	}
	return reasons
}

func appendUnique(reasons []string, code string) []string {
	for _, r := range reasons {
		if r == code {
			return reasons
		}
	}
	return append(reasons, code)
}

func (e *Engine) quantityReasons(rule CategoryRule, in EvaluateInput) []string {
	if rule.MonthlyCeilingOz <= 0 || in.SizeOz == nil {
		return nil
	}
	used := 0.0
	if in.UsedThisPeriodOz != nil {
		used = *in.UsedThisPeriodOz
	}
	if *in.SizeOz+used > rule.MonthlyCeilingOz {
		return []string{model.ReasonExceedsMonthlyLimit}
	}
	return nil
}

// RemainingAllowanceOz is the ceiling minus what was used, or nil when the
// category has no ceiling.
func (e *Engine) RemainingAllowanceOz(c model.Category, used *float64) *float64 {
	rule, ok := e.rules.Rule(c)
	if !ok || rule.MonthlyCeilingOz <= 0 {
		return nil
	}
	left := rule.MonthlyCeilingOz
	if used != nil {
		left -= *used
	}
	if left < 0 {
		left = 0
	}
	return &left
}
