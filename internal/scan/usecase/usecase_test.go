package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/fekuna/omnipos-benefits-service/internal/alternative"
	"github.com/fekuna/omnipos-benefits-service/internal/apperr"
	"github.com/fekuna/omnipos-benefits-service/internal/eligibility"
	"github.com/fekuna/omnipos-benefits-service/internal/model"
	"github.com/fekuna/omnipos-benefits-service/internal/scan"
	"github.com/fekuna/omnipos-benefits-service/internal/scan/dto"
	"github.com/fekuna/omnipos-benefits-service/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCatalog struct {
	entries []model.CatalogEntry
	findErr error
	listErr error
	onFind  func()
}

func (f *fakeCatalog) FindByCode(ctx context.Context, code string) (*model.CatalogEntry, error) {
	if f.onFind != nil {
		f.onFind()
	}
	if f.findErr != nil {
		return nil, f.findErr
	}
	for i := range f.entries {
		if f.entries[i].Code == code {
			e := f.entries[i]
			return &e, nil
		}
	}
	return nil, nil
}

func (f *fakeCatalog) ListApprovedByCategory(ctx context.Context, c model.Category) ([]model.CatalogEntry, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []model.CatalogEntry
	for _, e := range f.entries {
		if e.IsApproved && model.ParseCategory(e.Category) == c {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeLookup struct {
	records  map[string]model.ExternalProductRecord
	block    bool
	err      error
	onLookup func()

	mu    sync.Mutex
	kinds []model.CodeKind
}

func (f *fakeLookup) Lookup(ctx context.Context, code string, kind model.CodeKind) (*model.ExternalProductRecord, error) {
	f.mu.Lock()
	f.kinds = append(f.kinds, kind)
	f.mu.Unlock()

	if f.onLookup != nil {
		f.onLookup()
	}
	if f.block {
		<-ctx.Done()
		return nil, fmt.Errorf("%w: %v", apperr.ErrProviderUnavailable, ctx.Err())
	}
	if f.err != nil {
		return nil, f.err
	}
	rec, ok := f.records[code]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &rec, nil
}

type fakeRecorder struct {
	mu       sync.Mutex
	scans    []string
	external []string
}

func (r *fakeRecorder) ScanCompleted(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scans = append(r.scans, outcome)
}

func (r *fakeRecorder) ExternalLookup(result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.external = append(r.external, result)
}

func oz(f float64) *float64 { return &f }

func registry() []model.CatalogEntry {
	return []model.CatalogEntry{
		{Code: "070852993386", Name: "Lowfat Milk Half Gallon", Brand: "Dairy Pure", Category: "milk", SizeOz: oz(64), SizeDisplay: "64 fl oz", IsApproved: true},
		{Code: "016000275287", Name: "Cheerios", Brand: "General Mills", Category: "cereal", SizeOz: oz(18), IsApproved: true},
		{Code: "016000275270", Name: "Cheerios Family Size", Brand: "General Mills", Category: "cereal", SizeOz: oz(36), IsApproved: true},
		{Code: "016000487697", Name: "Cheerios Mega Pack", Brand: "General Mills", Category: "cereal", SizeOz: oz(48), IsApproved: true},
		{Code: "072250011372", Name: "White Bread", Category: "bread", SizeOz: oz(20), IsApproved: false},
	}
}

func newUseCase(cat *fakeCatalog, ext *fakeLookup, rec *fakeRecorder, timeout time.Duration) scan.UseCase {
	rules := eligibility.DefaultRuleSet()
	d := Deps{
		Catalog:         cat,
		External:        ext,
		Rules:           eligibility.NewEngine(rules),
		Alternatives:    alternative.NewEngine(cat, rules),
		Logger:          logger.NewNopLogger(),
		ExternalTimeout: timeout,
	}
	if rec != nil {
		d.Recorder = rec
	}
	return NewScanUseCase(d)
}

func TestScan_GallonMilkFromExternalOnly(t *testing.T) {
	ext := &fakeLookup{records: map[string]model.ExternalProductRecord{
		"041303001806": {Code: "041303001806", Description: "Whole Milk", Brand: "Great Value", Category: "Dairies, Milks", PackageSize: "1 gal"},
	}}
	uc := newUseCase(&fakeCatalog{entries: registry()}, ext, nil, time.Second)

	res, err := uc.Scan(context.Background(), &dto.ScanInput{Code: "041303001806"})
	require.NoError(t, err)

	assert.True(t, res.Found)
	assert.False(t, res.IsApproved)
	assert.Nil(t, res.MatchedCatalogEntry)
	require.NotNil(t, res.Category)
	assert.Equal(t, model.CategoryMilk, *res.Category)
	require.NotNil(t, res.Verdict.SizeOz)
	assert.Equal(t, 128.0, *res.Verdict.SizeOz)
	assert.Equal(t, model.ReasonPackageSizeNotAllowed, res.Verdict.PrimaryReason())
	assert.True(t, res.Verdict.HasReason(model.ReasonMilkGallonNotAllowed))
	require.Len(t, res.Verdict.Alternatives, 1)
	assert.Equal(t, "070852993386", res.Verdict.Alternatives[0].Code)
	assert.Equal(t, "Whole Milk", res.Name)
	assert.Equal(t, "Great Value", res.Brand)
}

func TestScan_RegistryApprovedWhileExternalTimesOut(t *testing.T) {
	rec := &fakeRecorder{}
	uc := newUseCase(&fakeCatalog{entries: registry()}, &fakeLookup{block: true}, rec, 30*time.Millisecond)

	start := time.Now()
	res, err := uc.Scan(context.Background(), &dto.ScanInput{Code: "070852993386"})
	require.NoError(t, err)

	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, res.Found)
	assert.True(t, res.IsApproved)
	assert.Empty(t, res.Verdict.RejectionReasons)
	assert.Empty(t, res.Verdict.Alternatives)
	assert.Nil(t, res.ExternalRecord)
	assert.Equal(t, "Lowfat Milk Half Gallon", res.Name)
	assert.Equal(t, []string{"unavailable"}, rec.external)
	assert.Equal(t, []string{"approved"}, rec.scans)
}

func TestScan_BothMiss(t *testing.T) {
	rec := &fakeRecorder{}
	uc := newUseCase(&fakeCatalog{entries: registry()}, &fakeLookup{}, rec, time.Second)

	res, err := uc.Scan(context.Background(), &dto.ScanInput{Code: "000000000017"})
	require.NoError(t, err)

	assert.False(t, res.Found)
	assert.False(t, res.IsApproved)
	assert.Nil(t, res.Category)
	assert.Empty(t, res.Verdict.Alternatives)
	assert.Equal(t, []string{"not_found"}, rec.external)
	assert.Equal(t, []string{"not_found"}, rec.scans)
}

func TestScan_CerealOverMonthlyCeiling(t *testing.T) {
	uc := newUseCase(&fakeCatalog{entries: registry()}, &fakeLookup{}, nil, time.Second)

	res, err := uc.Scan(context.Background(), &dto.ScanInput{Code: "016000487697", UsedThisPeriodOz: oz(36)})
	require.NoError(t, err)

	assert.False(t, res.IsApproved)
	assert.Equal(t, []string{model.ReasonExceedsMonthlyLimit}, res.Verdict.RejectionReasons)
	require.Len(t, res.Verdict.Alternatives, 2)
	assert.Equal(t, "016000275270", res.Verdict.Alternatives[0].Code) // 36 oz
	assert.Equal(t, "016000275287", res.Verdict.Alternatives[1].Code) // 18 oz
}

func TestScan_ExternalOnlyEnrichesRegistryHit(t *testing.T) {
	ext := &fakeLookup{records: map[string]model.ExternalProductRecord{
		"072250011372": {Description: "Classic White Bread", Brand: "Wonder", PackageSize: "16 oz", Category: "Breads"},
	}}
	uc := newUseCase(&fakeCatalog{entries: registry()}, ext, nil, time.Second)

	res, err := uc.Scan(context.Background(), &dto.ScanInput{Code: "072250011372"})
	require.NoError(t, err)

	assert.Equal(t, "White Bread", res.Name)
	assert.Equal(t, "Wonder", res.Brand)
	assert.False(t, res.IsApproved)
	require.NotNil(t, res.Verdict.SizeOz)
	assert.Equal(t, 20.0, *res.Verdict.SizeOz)
	assert.Equal(t, []string{model.ReasonPackageSizeNotAllowed, model.ReasonNotApproved}, res.Verdict.RejectionReasons)
}

func TestScan_RegistryFailureIsAnError(t *testing.T) {
	rec := &fakeRecorder{}
	uc := newUseCase(&fakeCatalog{findErr: errors.New("connection refused")}, &fakeLookup{}, rec, time.Second)

	_, err := uc.Scan(context.Background(), &dto.ScanInput{Code: "070852993386"})

	assert.Error(t, err)
	assert.Equal(t, []string{"error"}, rec.scans)
}

func TestScan_AlternativesFailureDegrades(t *testing.T) {
	cat := &fakeCatalog{entries: registry(), listErr: errors.New("timeout")}
	uc := newUseCase(cat, &fakeLookup{}, nil, time.Second)

	res, err := uc.Scan(context.Background(), &dto.ScanInput{Code: "072250011372"})
	require.NoError(t, err)

	assert.False(t, res.IsApproved)
	assert.Empty(t, res.Verdict.Alternatives)
}

// Each lookup waits until the other has started, so a sequential
// implementation would never finish.
func TestScan_LookupsRunConcurrently(t *testing.T) {
	registryStarted := make(chan struct{})
	externalStarted := make(chan struct{})
	wait := func(ch chan struct{}) {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Error("lookups did not overlap")
		}
	}

	cat := &fakeCatalog{entries: registry()}
	cat.onFind = func() {
		close(registryStarted)
		wait(externalStarted)
	}
	ext := &fakeLookup{onLookup: func() {
		close(externalStarted)
		wait(registryStarted)
	}}
	uc := newUseCase(cat, ext, nil, 5*time.Second)

	_, err := uc.Scan(context.Background(), &dto.ScanInput{Code: "070852993386"})
	require.NoError(t, err)
}

func TestScan_InfersPLU(t *testing.T) {
	ext := &fakeLookup{records: map[string]model.ExternalProductRecord{
		"4011": {Description: "Bananas", Category: "produce fresh fruits"},
	}}
	uc := newUseCase(&fakeCatalog{}, ext, nil, time.Second)

	res, err := uc.Scan(context.Background(), &dto.ScanInput{Code: "4011"})
	require.NoError(t, err)

	assert.Equal(t, model.CodeKindPLU, res.CodeKind)
	assert.Equal(t, []model.CodeKind{model.CodeKindPLU}, ext.kinds)
	require.NotNil(t, res.Category)
	assert.Equal(t, model.CategoryProduce, *res.Category)
}

func TestInferKind(t *testing.T) {
	assert.Equal(t, model.CodeKindPLU, InferKind("4011"))
	assert.Equal(t, model.CodeKindPLU, InferKind("94011"))
	assert.Equal(t, model.CodeKindUPC, InferKind("041303001806"))
	assert.Equal(t, model.CodeKindUPC, InferKind("12345678"))
	assert.Equal(t, model.CodeKindUPC, InferKind("AB12"))
}

func TestScan_Validation(t *testing.T) {
	uc := newUseCase(&fakeCatalog{}, &fakeLookup{}, nil, time.Second)

	for _, in := range []*dto.ScanInput{
		nil,
		{Code: ""},
		{Code: "   "},
		{Code: "4011", Kind: "isbn"},
	} {
		_, err := uc.Scan(context.Background(), in)
		assert.True(t, apperr.IsValidation(err), "%+v", in)
	}
}

func TestScan_GallonMilkKnownOnlyByProviderCategory(t *testing.T) {
	ext := &fakeLookup{records: map[string]model.ExternalProductRecord{
		"093966002104": {Description: "Organic Valley Whole", Category: "Dairies, Milks, Whole milks", PackageSize: "1 gal"},
	}}
	uc := newUseCase(&fakeCatalog{entries: registry()}, ext, nil, time.Second)

	res, err := uc.Scan(context.Background(), &dto.ScanInput{Code: "093966002104"})
	require.NoError(t, err)

	require.NotNil(t, res.Category)
	assert.Equal(t, model.CategoryMilk, *res.Category)
	assert.False(t, res.IsApproved)
	assert.True(t, res.Verdict.HasReason(model.ReasonPackageSizeNotAllowed))
	assert.True(t, res.Verdict.HasReason(model.ReasonMilkGallonNotAllowed))
	require.NotEmpty(t, res.Verdict.Alternatives)
	assert.Equal(t, "070852993386", res.Verdict.Alternatives[0].Code)
}

func TestScan_AnyCodeFormatIsLookedUp(t *testing.T) {
	cat := &fakeCatalog{entries: []model.CatalogEntry{
		{Code: "ABC123", Name: "Store Brand Milk", Category: "milk", SizeOz: oz(64), IsApproved: true},
	}}
	uc := newUseCase(cat, &fakeLookup{}, nil, time.Second)

	res, err := uc.Scan(context.Background(), &dto.ScanInput{Code: "ABC123"})
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.True(t, res.IsApproved)

	for _, code := range []string{"04130300180A", "123456789012345678"} {
		res, err := uc.Scan(context.Background(), &dto.ScanInput{Code: code})
		require.NoError(t, err, code)
		assert.False(t, res.Found, code)
		assert.False(t, res.IsApproved, code)
		assert.Equal(t, model.CodeKindUPC, res.CodeKind, code)
	}
}

func TestScan_Deterministic(t *testing.T) {
	ext := &fakeLookup{records: map[string]model.ExternalProductRecord{
		"041303001806": {Description: "Whole Milk", PackageSize: "1 gal"},
	}}
	uc := newUseCase(&fakeCatalog{entries: registry()}, ext, nil, time.Second)

	first, err := uc.Scan(context.Background(), &dto.ScanInput{Code: "041303001806"})
	require.NoError(t, err)
	second, err := uc.Scan(context.Background(), &dto.ScanInput{Code: "041303001806"})
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
