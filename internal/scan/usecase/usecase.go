package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fekuna/omnipos-benefits-service/internal/alternative"
	"github.com/fekuna/omnipos-benefits-service/internal/apperr"
	"github.com/fekuna/omnipos-benefits-service/internal/catalog"
	"github.com/fekuna/omnipos-benefits-service/internal/categorizer"
	"github.com/fekuna/omnipos-benefits-service/internal/eligibility"
	"github.com/fekuna/omnipos-benefits-service/internal/model"
	"github.com/fekuna/omnipos-benefits-service/internal/nutrition"
	"github.com/fekuna/omnipos-benefits-service/internal/scan"
	"github.com/fekuna/omnipos-benefits-service/internal/scan/dto"
	"github.com/fekuna/omnipos-benefits-service/pkg/logger"
	"go.uber.org/zap"
)

type Suggester interface {
	Suggest(ctx context.Context, in alternative.SuggestInput) ([]model.AlternativeSuggestion, error)
}

// Recorder receives scan outcomes for metrics. Optional.
type Recorder interface {
	ScanCompleted(outcome string)
	ExternalLookup(result string)
}

type Deps struct {
	Catalog         catalog.Repository
	External        nutrition.Lookup
	Categorizer     *categorizer.Categorizer
	Rules           *eligibility.Engine
	Alternatives    Suggester
	Logger          logger.ZapLogger
	ExternalTimeout time.Duration
	Recorder        Recorder
}

type scanUseCase struct {
	catalog         catalog.Repository
	external        nutrition.Lookup
	categorizer     *categorizer.Categorizer
	rules           *eligibility.Engine
	alternatives    Suggester
	logger          logger.ZapLogger
	externalTimeout time.Duration
	recorder        Recorder
}

func NewScanUseCase(d Deps) scan.UseCase {
	uc := &scanUseCase{
		catalog:         d.Catalog,
		external:        d.External,
		categorizer:     d.Categorizer,
		rules:           d.Rules,
		alternatives:    d.Alternatives,
		logger:          d.Logger,
		externalTimeout: d.ExternalTimeout,
		recorder:        d.Recorder,
	}
	if uc.categorizer == nil {
		uc.categorizer = categorizer.NewDefault()
	}
	if uc.rules == nil {
		uc.rules = eligibility.NewEngine(eligibility.DefaultRuleSet())
	}
	if uc.logger == nil {
		uc.logger = logger.NewNopLogger()
	}
	return uc
}

// InferKind treats 4 and 5 digit codes as produce PLUs, everything else as a
// barcode.
func InferKind(code string) model.CodeKind {
	if n := len(code); (n == 4 || n == 5) && allDigits(code) {
		return model.CodeKindPLU
	}
	return model.CodeKindUPC
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (uc *scanUseCase) Scan(ctx context.Context, input *dto.ScanInput) (*model.ScanResult, error) {
	code, err := validateCode(input)
	if err != nil {
		return nil, err
	}
	kind := input.Kind
	if kind == "" {
		kind = InferKind(code)
	}

	entry, external, err := uc.lookupBoth(ctx, code, kind)
	if err != nil {
		uc.recordScan("error")
		return nil, err
	}

	result := &model.ScanResult{
		Code:     code,
		CodeKind: kind,
		Verdict: model.EligibilityVerdict{
			Category:         model.CategoryUnknown,
			RejectionReasons: []string{},
			Alternatives:     []model.AlternativeSuggestion{},
		},
	}

	var in eligibility.EvaluateInput
	switch {
	case entry != nil:
		result.Found = true
		result.MatchedCatalogEntry = entry
		result.ExternalRecord = external
		result.ApprovalNotes = entry.Notes
		result.Name = entry.Name
		result.Brand = entry.Brand
		if external != nil {
			if result.Name == "" {
				result.Name = external.Description
			}
			if result.Brand == "" {
				result.Brand = external.BrandText()
			}
		}
		in = uc.fromCatalog(entry)

	case external != nil:
		result.Found = true
		result.ExternalRecord = external
		result.Name = external.Description
		result.Brand = external.BrandText()
		in = uc.fromExternal(external)

	default:
		uc.recordScan("not_found")
		return result, nil
	}

	in.UsedThisPeriodOz = input.UsedThisPeriodOz
	verdict := uc.rules.Evaluate(in)
	verdict.Alternatives = []model.AlternativeSuggestion{}

	if !verdict.IsApproved && uc.alternatives != nil {
		alts, err := uc.alternatives.Suggest(ctx, alternative.SuggestInput{
			Category:         verdict.Category,
			SizeOz:           verdict.SizeOz,
			Reasons:          verdict.RejectionReasons,
			ExcludeCode:      code,
			UsedThisPeriodOz: input.UsedThisPeriodOz,
		})
		if err != nil {
			uc.logger.Warn("Failed to load alternatives", zap.String("code", code), zap.Error(err))
		} else {
			verdict.Alternatives = alts
		}
	}

	category := verdict.Category
	result.Category = &category
	result.IsApproved = verdict.IsApproved
	result.Verdict = verdict

	if verdict.IsApproved {
		uc.recordScan("approved")
	} else {
		uc.recordScan("rejected")
	}
	return result, nil
}

// lookupBoth queries the registry and the external source concurrently and
// waits for both. Only a registry failure is an error; the external result
// is enrichment and degrades to nil.
func (uc *scanUseCase) lookupBoth(ctx context.Context, code string, kind model.CodeKind) (*model.CatalogEntry, *model.ExternalProductRecord, error) {
	var (
		wg          sync.WaitGroup
		entry       *model.CatalogEntry
		registryErr error
		external    *model.ExternalProductRecord
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		entry, registryErr = uc.catalog.FindByCode(ctx, code)
	}()
	go func() {
		defer wg.Done()
		external = uc.lookupExternal(ctx, code, kind)
	}()
	wg.Wait()

	if registryErr != nil {
		return nil, nil, fmt.Errorf("registry lookup %s: %w", code, registryErr)
	}
	return entry, external, nil
}

func (uc *scanUseCase) lookupExternal(ctx context.Context, code string, kind model.CodeKind) *model.ExternalProductRecord {
	if uc.external == nil {
		return nil
	}
	if uc.externalTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, uc.externalTimeout)
		defer cancel()
	}

	rec, err := uc.external.Lookup(ctx, code, kind)
	switch {
	case err == nil && rec != nil:
		uc.recordExternal("hit")
		return rec
	case err == nil, errors.Is(err, apperr.ErrNotFound):
		uc.recordExternal("not_found")
		uc.logger.Debug("External lookup miss", zap.String("code", code))
	default:
		uc.recordExternal("unavailable")
		uc.logger.Warn("External lookup unavailable", zap.String("code", code), zap.Error(err))
	}
	return nil
}

// fromCatalog takes category and size from the registry row, falling back to
// classifying its own text. External data never feeds a registry decision.
func (uc *scanUseCase) fromCatalog(entry *model.CatalogEntry) eligibility.EvaluateInput {
	category := model.ParseCategory(entry.Category)
	if !category.IsKnown() {
		category = uc.categorizer.Categorize(entry)
	}
	size := entry.SizeOz
	if size == nil {
		size = categorizer.ExtractSizeOunces(entry.DescriptionText())
	}
	return eligibility.EvaluateInput{
		Category:     category,
		SizeOz:       size,
		CatalogMatch: entry,
		Brand:        entry.BrandText(),
	}
}

func (uc *scanUseCase) fromExternal(rec *model.ExternalProductRecord) eligibility.EvaluateInput {
	size := categorizer.ExtractSizeOunces(rec.PackageSize)
	if size == nil {
		size = categorizer.ExtractSizeOunces(rec.Description)
	}
	return eligibility.EvaluateInput{
		Category: uc.categorizer.Categorize(rec),
		SizeOz:   size,
		Brand:    rec.BrandText(),
	}
}

func (uc *scanUseCase) recordScan(outcome string) {
	if uc.recorder != nil {
		uc.recorder.ScanCompleted(outcome)
	}
}

func (uc *scanUseCase) recordExternal(result string) {
	if uc.recorder != nil {
		uc.recorder.ExternalLookup(result)
	}
}

func validateCode(input *dto.ScanInput) (string, error) {
	if input == nil {
		return "", apperr.NewValidationError("code", "is required")
	}
	code := strings.TrimSpace(input.Code)
	if code == "" {
		return "", apperr.NewValidationError("code", "is required")
	}
	switch input.Kind {
	case "", model.CodeKindUPC, model.CodeKindPLU:
	default:
		return "", apperr.NewValidationError("kind", fmt.Sprintf("unknown code kind %q", input.Kind))
	}
	return code, nil
}
