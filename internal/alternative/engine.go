// Package alternative proposes approved substitutes for rejected products.
package alternative

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/fekuna/omnipos-benefits-service/internal/catalog"
	"github.com/fekuna/omnipos-benefits-service/internal/eligibility"
	"github.com/fekuna/omnipos-benefits-service/internal/model"
)

const (
	MaxSuggestions      = 3
	maxOverLimitEntries = 2
)

type SuggestInput struct {
	Category         model.Category
	SizeOz           *float64
	Reasons          []string
	ExcludeCode      string
	UsedThisPeriodOz *float64
}

type Engine struct {
	repo  catalog.Repository
	rules eligibility.RuleSet
}

func NewEngine(repo catalog.Repository, rules eligibility.RuleSet) *Engine {
	return &Engine{repo: repo, rules: rules}
}

// Suggest loads the approved entries of the category and ranks them.
// Unknown categories have nothing to offer and skip the store entirely.
func (e *Engine) Suggest(ctx context.Context, in SuggestInput) ([]model.AlternativeSuggestion, error) {
	if !in.Category.IsKnown() {
		return []model.AlternativeSuggestion{}, nil
	}
	entries, err := e.repo.ListApprovedByCategory(ctx, in.Category)
	if err != nil {
		return nil, fmt.Errorf("list approved %s: %w", in.Category, err)
	}
	return Rank(entries, e.rules, in), nil
}

// Rank is the pure part of Suggest. Strategies run most specific first and
// stop once MaxSuggestions are collected:
//  1. same size, different product, when the rejection is not about size
//  2. category remediation (allowed size, or fits the remaining allowance)
//  3. the first approved entry, only when 1 and 2 found nothing
func Rank(entries []model.CatalogEntry, rules eligibility.RuleSet, in SuggestInput) []model.AlternativeSuggestion {
	out := []model.AlternativeSuggestion{}
	seen := map[string]bool{in.ExcludeCode: true}

	candidates := make([]model.CatalogEntry, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsApproved || seen[entry.Code] {
			continue
		}
		if model.ParseCategory(entry.Category) != in.Category {
			continue
		}
		candidates = append(candidates, entry)
	}

	add := func(entry model.CatalogEntry, reason string) bool {
		if seen[entry.Code] || len(out) >= MaxSuggestions {
			return false
		}
		seen[entry.Code] = true
		out = append(out, model.AlternativeSuggestion{
			Code:       entry.Code,
			Suggestion: fmt.Sprintf("Try %s", displayName(entry)),
			Reason:     reason,
		})
		return true
	}

	rule, _ := rules.Rule(in.Category)

	// 1. Same size
	if in.SizeOz != nil && !sizeRelated(in.Reasons) {
		for _, entry := range candidates {
			if entry.SizeOz != nil && sameSize(*entry.SizeOz, *in.SizeOz) {
				add(entry, "Same size, approved brand")
				break
			}
		}
	}

	// 2. Remediation
	switch {
	case hasReason(in.Reasons, model.ReasonMilkGallonNotAllowed):
		sizes := rule.AllowedSizesOz
		if len(sizes) == 0 {
			sizes = []float64{64}
		}
		for _, size := range sizes {
			for _, entry := range candidates {
				if entry.SizeOz != nil && sameSize(*entry.SizeOz, size) {
					add(entry, fmt.Sprintf("Gallons are not covered, the %s oz size is", trimFloat(size)))
					break
				}
			}
		}
	case hasReason(in.Reasons, model.ReasonPackageSizeNotAllowed):
		for _, size := range rule.AllowedSizesOz {
			for _, entry := range candidates {
				if entry.SizeOz != nil && sameSize(*entry.SizeOz, size) {
					add(entry, fmt.Sprintf("%s oz is the approved package size", trimFloat(size)))
					break
				}
			}
		}
	case hasReason(in.Reasons, model.ReasonExceedsMonthlyLimit) && rule.MonthlyCeilingOz > 0:
		allowance := rule.MonthlyCeilingOz
		if in.UsedThisPeriodOz != nil {
			allowance -= *in.UsedThisPeriodOz
		}
		fits := make([]model.CatalogEntry, 0)
		for _, entry := range candidates {
			if entry.SizeOz != nil && *entry.SizeOz <= allowance+1e-9 {
				fits = append(fits, entry)
			}
		}
		sort.SliceStable(fits, func(i, j int) bool { return *fits[i].SizeOz > *fits[j].SizeOz })
		added := 0
		for _, entry := range fits {
			if added == maxOverLimitEntries {
				break
			}
			if add(entry, fmt.Sprintf("Fits your remaining %s oz this month", trimFloat(allowance))) {
				added++
			}
		}
	}

	// 3. Fallback
	if len(out) == 0 && len(candidates) > 0 {
		add(candidates[0], fmt.Sprintf("Approved %s option", humanCategory(in.Category)))
	}

	return out
}

func sizeRelated(reasons []string) bool {
	return hasReason(reasons, model.ReasonPackageSizeNotAllowed) ||
		hasReason(reasons, model.ReasonMilkGallonNotAllowed) ||
		hasReason(reasons, model.ReasonExceedsMonthlyLimit)
}

func hasReason(reasons []string, code string) bool {
	for _, r := range reasons {
		if r == code {
			return true
		}
	}
	return false
}

func displayName(e model.CatalogEntry) string {
	name := e.Name
	if e.Brand != "" {
		name = e.Brand + " " + name
	}
	if e.SizeDisplay != "" {
		name += " (" + e.SizeDisplay + ")"
	} else if e.SizeOz != nil {
		name += " (" + trimFloat(*e.SizeOz) + " oz)"
	}
	return name
}

func humanCategory(c model.Category) string {
	return strings.ReplaceAll(string(c), "_", " ")
}

func trimFloat(f float64) string {
	return fmt.Sprintf("%g", f)
}

func sameSize(a, b float64) bool {
	d := a - b
	return d < 0.5 && d > -0.5
}
