package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fekuna/omnipos-benefits-service/internal/apperr"
	"github.com/fekuna/omnipos-benefits-service/internal/ledger"
	"github.com/fekuna/omnipos-benefits-service/internal/ledger/dto"
	"github.com/fekuna/omnipos-benefits-service/internal/model"
	"github.com/fekuna/omnipos-benefits-service/pkg/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// NegativeBalancePolicy decides what a purchase does to a balance that would
// go below zero.
type NegativeBalancePolicy string

const (
	PolicyAllow  NegativeBalancePolicy = "allow"  // record debt
	PolicyClamp  NegativeBalancePolicy = "clamp"  // floor at zero
	PolicyReject NegativeBalancePolicy = "reject" // decline the whole purchase
)

func ParsePolicy(s string) (NegativeBalancePolicy, error) {
	switch p := NegativeBalancePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyAllow, PolicyClamp, PolicyReject:
		return p, nil
	case "":
		return PolicyAllow, nil
	default:
		return "", fmt.Errorf("unknown negative balance policy %q", s)
	}
}

// Recorder receives ledger outcomes for metrics. Optional.
type Recorder interface {
	PurchaseApplied(status string)
	LedgerConflictRetry()
}

type Options struct {
	Policy       NegativeBalancePolicy
	MaxRetries   int
	RetryBackoff time.Duration
	Recorder     Recorder
	Now          func() time.Time
}

type ledgerUseCase struct {
	repo     ledger.Repository
	logger   logger.ZapLogger
	policy   NegativeBalancePolicy
	retries  int
	backoff  time.Duration
	recorder Recorder
	now      func() time.Time
}

func NewLedgerUseCase(repo ledger.Repository, log logger.ZapLogger, opts Options) ledger.UseCase {
	uc := &ledgerUseCase{
		repo:     repo,
		logger:   log,
		policy:   opts.Policy,
		retries:  opts.MaxRetries,
		backoff:  opts.RetryBackoff,
		recorder: opts.Recorder,
		now:      opts.Now,
	}
	if uc.policy == "" {
		uc.policy = PolicyAllow
	}
	if uc.retries < 0 {
		uc.retries = 0
	}
	if uc.now == nil {
		uc.now = time.Now
	}
	return uc
}

func (uc *ledgerUseCase) ApplyPurchase(ctx context.Context, input *dto.ApplyPurchaseInput) (*model.PurchaseRecord, error) {
	lines, err := validatePurchase(input)
	if err != nil {
		uc.record("invalid")
		return nil, err
	}

	period := input.Period
	if period.IsZero() {
		period = model.MonthlyPeriod(uc.now())
	}

	var record *model.PurchaseRecord
	for attempt := 0; ; attempt++ {
		record, err = uc.applyOnce(ctx, input, lines, period)
		if err == nil || !errors.Is(err, apperr.ErrLedgerConflict) || attempt >= uc.retries {
			break
		}

		if uc.recorder != nil {
			uc.recorder.LedgerConflictRetry()
		}
		uc.logger.Warn("Ledger conflict, retrying purchase",
			zap.String("card_id", input.CardID),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			uc.record("declined")
			return nil, ctx.Err()
		case <-time.After(uc.backoff * time.Duration(attempt+1)):
		}
	}

	if err != nil {
		if apperr.IsValidation(err) {
			uc.record("invalid")
		} else {
			uc.record("declined")
		}
		return nil, err
	}
	uc.record("applied")
	return record, nil
}

// applyOnce is one all-or-nothing attempt. Lines without a matching entry
// are stored with LedgerApplied=false and change nothing.
func (uc *ledgerUseCase) applyOnce(ctx context.Context, input *dto.ApplyPurchaseInput, lines []model.PurchaseLineItem, period model.Period) (*model.PurchaseRecord, error) {
	var record *model.PurchaseRecord

	err := uc.repo.RunInTx(ctx, func(tx ledger.TxRepository) error {
		if input.ReferenceID != "" {
			existing, err := tx.GetPurchaseByReference(ctx, input.ReferenceID)
			if err != nil {
				return err
			}
			if existing != nil {
				if existing.CardID != input.CardID {
					return apperr.NewValidationError("reference_id", "already used by another card")
				}
				uc.logger.Info("Purchase already recorded", zap.String("reference_id", input.ReferenceID))
				record = existing
				return nil
			}
		}

		now := uc.now()
		p := &model.PurchaseRecord{
			ID:          uuid.New().String(),
			CardID:      input.CardID,
			StoreID:     optional(input.StoreID),
			ReferenceID: optional(input.ReferenceID),
			PeriodStart: period.Start,
			PeriodEnd:   period.End,
			CreatedAt:   now,
		}
		if err := tx.InsertPurchase(ctx, p); err != nil {
			return err
		}

		entries, err := tx.LockEntries(ctx, input.CardID, categoriesOf(lines), period.Start)
		if err != nil {
			return err
		}
		byCategory := make(map[model.Category]*model.BenefitEntry, len(entries))
		for i := range entries {
			byCategory[entries[i].Category] = &entries[i]
		}

		before := map[model.Category]decimal.Decimal{}
		for i := range lines {
			line := lines[i]
			line.ID = uuid.New().String()
			line.PurchaseID = p.ID

			entry, ok := byCategory[line.Category]
			if ok {
				if !strings.EqualFold(entry.Unit, line.Unit) {
					return apperr.NewValidationError(fmt.Sprintf("lines[%d].unit", i),
						fmt.Sprintf("%s is tracked in %s", line.Category, entry.Unit))
				}
				if _, seen := before[line.Category]; !seen {
					before[line.Category] = entry.Remaining
				}
				next, err := uc.decrement(entry.Remaining, line.Quantity)
				if err != nil {
					return fmt.Errorf("%s: %w", line.Category, err)
				}
				entry.Remaining = next
				line.LedgerApplied = true
			} else {
				uc.logger.Debug("No benefit entry for line, recorded without ledger change",
					zap.String("card_id", input.CardID),
					zap.String("category", string(line.Category)),
				)
			}

			if err := tx.InsertLineItem(ctx, &line); err != nil {
				return err
			}
			p.Lines = append(p.Lines, line)
		}

		for _, entry := range entries {
			b, touched := before[entry.Category]
			if !touched {
				continue
			}
			if err := tx.UpdateRemaining(ctx, entry.ID, entry.Remaining, now); err != nil {
				return err
			}
			p.Changes = append(p.Changes, model.BalanceChange{
				Category: entry.Category,
				Unit:     entry.Unit,
				Before:   b,
				After:    entry.Remaining,
			})
		}

		record = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (uc *ledgerUseCase) decrement(remaining, quantity decimal.Decimal) (decimal.Decimal, error) {
	next := remaining.Sub(quantity)
	if !next.IsNegative() {
		return next, nil
	}
	switch uc.policy {
	case PolicyClamp:
		return decimal.Zero, nil
	case PolicyReject:
		return remaining, apperr.ErrInsufficientBalance
	default:
		return next, nil
	}
}

func (uc *ledgerUseCase) PreviewPurchase(ctx context.Context, input *dto.PreviewInput) (*model.PurchasePreview, error) {
	if input == nil || strings.TrimSpace(input.CardID) == "" {
		return nil, apperr.NewValidationError("card_id", "is required")
	}
	category := model.ParseCategory(input.Category)
	if !category.IsKnown() {
		return nil, apperr.NewValidationError("category", fmt.Sprintf("unknown category %q", input.Category))
	}
	if !input.Quantity.IsPositive() {
		return nil, apperr.NewValidationError("quantity", "must be greater than zero")
	}
	if input.UnitSize.IsNegative() {
		return nil, apperr.NewValidationError("unit_size", "must not be negative")
	}

	period := input.Period
	if period.IsZero() {
		period = model.MonthlyPeriod(uc.now())
	}

	entry, err := uc.repo.GetEntry(ctx, input.CardID, category, period.Start)
	if err != nil {
		return nil, err
	}

	preview := &model.PurchasePreview{
		CardID:           input.CardID,
		Category:         category,
		Quantity:         input.Quantity,
		CurrentRemaining: decimal.Zero,
	}
	if entry != nil {
		preview.EntryFound = true
		preview.Unit = entry.Unit
		preview.CurrentRemaining = entry.Remaining
	}
	fillPreview(preview, input.UnitSize)
	return preview, nil
}

// fillPreview derives the after-purchase figures from CurrentRemaining and
// Quantity. unitSize defaults to the quantity itself.
func fillPreview(p *model.PurchasePreview, unitSize decimal.Decimal) {
	p.AfterPurchase = p.CurrentRemaining.Sub(p.Quantity)
	p.CanAfford = !p.AfterPurchase.IsNegative()

	if !unitSize.IsPositive() {
		unitSize = p.Quantity
	}
	if p.CurrentRemaining.IsPositive() {
		p.MaxQuantity = p.CurrentRemaining.Div(unitSize).Floor().IntPart()
	}
}

func (uc *ledgerUseCase) ListBalances(ctx context.Context, cardID string, asOf time.Time) ([]model.BenefitEntry, error) {
	if strings.TrimSpace(cardID) == "" {
		return nil, apperr.NewValidationError("card_id", "is required")
	}
	if asOf.IsZero() {
		asOf = uc.now()
	}
	return uc.repo.ListEntries(ctx, cardID, asOf)
}

func (uc *ledgerUseCase) ListPurchases(ctx context.Context, filters *dto.PurchaseFilters) ([]model.PurchaseRecord, int, error) {
	if filters == nil || strings.TrimSpace(filters.CardID) == "" {
		return nil, 0, apperr.NewValidationError("card_id", "is required")
	}
	return uc.repo.ListPurchases(ctx, filters)
}

func (uc *ledgerUseCase) record(status string) {
	if uc.recorder != nil {
		uc.recorder.PurchaseApplied(status)
	}
}

// Quantities are stored as NUMERIC(12,3).
const quantityScale = 3

var maxQuantity = decimal.New(1, 9)

func validatePurchase(input *dto.ApplyPurchaseInput) ([]model.PurchaseLineItem, error) {
	if input == nil || strings.TrimSpace(input.CardID) == "" {
		return nil, apperr.NewValidationError("card_id", "is required")
	}
	if len(input.Lines) == 0 {
		return nil, apperr.NewValidationError("lines", "at least one line is required")
	}
	if !input.Period.IsZero() && !input.Period.End.After(input.Period.Start) {
		return nil, apperr.NewValidationError("period", "end must be after start")
	}

	lines := make([]model.PurchaseLineItem, len(input.Lines))
	for i, in := range input.Lines {
		category := model.ParseCategory(in.Category)
		if !category.IsKnown() {
			return nil, apperr.NewValidationError(fmt.Sprintf("lines[%d].category", i), fmt.Sprintf("unknown category %q", in.Category))
		}
		if !in.Quantity.IsPositive() {
			return nil, apperr.NewValidationError(fmt.Sprintf("lines[%d].quantity", i), "must be greater than zero")
		}
		if !in.Quantity.Equal(in.Quantity.Truncate(quantityScale)) {
			return nil, apperr.NewValidationError(fmt.Sprintf("lines[%d].quantity", i), fmt.Sprintf("has more than %d decimal places", quantityScale))
		}
		if in.Quantity.GreaterThanOrEqual(maxQuantity) {
			return nil, apperr.NewValidationError(fmt.Sprintf("lines[%d].quantity", i), "is too large")
		}
		unit := strings.TrimSpace(in.Unit)
		if unit == "" {
			return nil, apperr.NewValidationError(fmt.Sprintf("lines[%d].unit", i), "is required")
		}
		lines[i] = model.PurchaseLineItem{
			LineNo:      i + 1,
			Category:    category,
			Quantity:    in.Quantity,
			Unit:        unit,
			ProductName: strings.TrimSpace(in.ProductName),
			ProductCode: optional(in.ProductCode),
		}
	}
	return lines, nil
}

func categoriesOf(lines []model.PurchaseLineItem) []model.Category {
	seen := map[model.Category]bool{}
	var out []model.Category
	for _, l := range lines {
		if !seen[l.Category] {
			seen[l.Category] = true
			out = append(out, l.Category)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
