package alternative

import (
	"context"
	"errors"
	"testing"

	"github.com/fekuna/omnipos-benefits-service/internal/eligibility"
	"github.com/fekuna/omnipos-benefits-service/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCatalog struct {
	entries []model.CatalogEntry
	err     error
	calls   int
}

func (f *fakeCatalog) FindByCode(ctx context.Context, code string) (*model.CatalogEntry, error) {
	for i := range f.entries {
		if f.entries[i].Code == code {
			return &f.entries[i], nil
		}
	}
	return nil, nil
}

func (f *fakeCatalog) ListApprovedByCategory(ctx context.Context, category model.Category) ([]model.CatalogEntry, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var out []model.CatalogEntry
	for _, e := range f.entries {
		if e.IsApproved && model.ParseCategory(e.Category) == category {
			out = append(out, e)
		}
	}
	return out, nil
}

func oz(f float64) *float64 { return &f }

func entry(code, name, category string, size float64, approved bool) model.CatalogEntry {
	return model.CatalogEntry{Code: code, Name: name, Category: category, SizeOz: oz(size), IsApproved: approved}
}

func registry() []model.CatalogEntry {
	return []model.CatalogEntry{
		entry("milk-gal", "Whole Milk Gallon", "milk", 128, false),
		entry("milk-half", "Lowfat Milk Half Gallon", "milk", 64, true),
		entry("bread-24", "Wheat Bread Family Size", "bread", 24, false),
		entry("bread-16", "Whole Wheat Bread", "bread", 16, true),
		entry("cereal-36", "Toasted Oats Mega", "cereal", 36, true),
		entry("cereal-18", "Toasted Oats", "cereal", 18, true),
		entry("cereal-12", "Corn Flakes", "cereal", 12, true),
		entry("cereal-48", "Bran Flakes Club", "cereal", 48, true),
		entry("juice-64a", "Apple Juice", "juice", 64, true),
		entry("juice-64b", "Grape Juice", "juice", 64, true),
	}
}

func TestSuggest_MilkGallonPointsAtHalfGallon(t *testing.T) {
	e := NewEngine(&fakeCatalog{entries: registry()}, eligibility.DefaultRuleSet())

	got, err := e.Suggest(context.Background(), SuggestInput{
		Category:    model.CategoryMilk,
		SizeOz:      oz(128),
		Reasons:     []string{model.ReasonPackageSizeNotAllowed, model.ReasonMilkGallonNotAllowed},
		ExcludeCode: "milk-gal",
	})

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "milk-half", got[0].Code)
	assert.NotEmpty(t, got[0].Suggestion)
	assert.NotEmpty(t, got[0].Reason)
}

func TestSuggest_BreadWrongSize(t *testing.T) {
	e := NewEngine(&fakeCatalog{entries: registry()}, eligibility.DefaultRuleSet())

	got, err := e.Suggest(context.Background(), SuggestInput{
		Category:    model.CategoryBread,
		SizeOz:      oz(24),
		Reasons:     []string{model.ReasonPackageSizeNotAllowed},
		ExcludeCode: "bread-24",
	})

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "bread-16", got[0].Code)
}

func TestSuggest_CerealOverLimitLargestFirst(t *testing.T) {
	e := NewEngine(&fakeCatalog{entries: registry()}, eligibility.DefaultRuleSet())

	got, err := e.Suggest(context.Background(), SuggestInput{
		Category:         model.CategoryCereal,
		SizeOz:           oz(48),
		Reasons:          []string{model.ReasonExceedsMonthlyLimit},
		ExcludeCode:      "cereal-48",
		UsedThisPeriodOz: oz(36),
	})

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "cereal-36", got[0].Code)
	assert.Equal(t, "cereal-18", got[1].Code)
}

func TestSuggest_SameSizeDifferentBrand(t *testing.T) {
	e := NewEngine(&fakeCatalog{entries: registry()}, eligibility.DefaultRuleSet())

	got, err := e.Suggest(context.Background(), SuggestInput{
		Category:    model.CategoryJuice,
		SizeOz:      oz(64),
		Reasons:     []string{model.ReasonNotApproved},
		ExcludeCode: "juice-64a",
	})

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "juice-64b", got[0].Code)
	assert.Equal(t, "Same size, approved brand", got[0].Reason)
}

func TestSuggest_FallbackFirstApproved(t *testing.T) {
	e := NewEngine(&fakeCatalog{entries: registry()}, eligibility.DefaultRuleSet())

	got, err := e.Suggest(context.Background(), SuggestInput{
		Category: model.CategoryJuice,
		SizeOz:   oz(10),
		Reasons:  []string{model.ReasonNotApproved},
	})

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "juice-64a", got[0].Code)
}

func TestSuggest_UnknownCategorySkipsStore(t *testing.T) {
	repo := &fakeCatalog{entries: registry()}
	e := NewEngine(repo, eligibility.DefaultRuleSet())

	got, err := e.Suggest(context.Background(), SuggestInput{Category: model.CategoryUnknown})

	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 0, repo.calls)
}

func TestSuggest_StoreError(t *testing.T) {
	e := NewEngine(&fakeCatalog{err: errors.New("db down")}, eligibility.DefaultRuleSet())

	_, err := e.Suggest(context.Background(), SuggestInput{Category: model.CategoryMilk})
	assert.Error(t, err)
}

// Every suggestion is an approved, same-category entry other than the
// rejected code, and there are never more than three.
func TestRank_SuggestionProperties(t *testing.T) {
	entries := registry()
	byCode := map[string]model.CatalogEntry{}
	for _, e := range entries {
		byCode[e.Code] = e
	}
	inputs := []SuggestInput{
		{Category: model.CategoryMilk, SizeOz: oz(128), Reasons: []string{model.ReasonPackageSizeNotAllowed, model.ReasonMilkGallonNotAllowed}, ExcludeCode: "milk-gal"},
		{Category: model.CategoryMilk, SizeOz: oz(64), Reasons: []string{model.ReasonNotApproved}, ExcludeCode: "milk-half"},
		{Category: model.CategoryCereal, SizeOz: oz(48), Reasons: []string{model.ReasonExceedsMonthlyLimit}, ExcludeCode: "cereal-48"},
		{Category: model.CategoryCereal, SizeOz: oz(18), Reasons: []string{model.ReasonNotApproved}, ExcludeCode: "cereal-18"},
		{Category: model.CategoryBread, Reasons: []string{model.ReasonCannotDetermineSize}, ExcludeCode: "bread-16"},
	}

	for _, in := range inputs {
		got := Rank(entries, eligibility.DefaultRuleSet(), in)
		assert.LessOrEqual(t, len(got), MaxSuggestions)
		for _, s := range got {
			e, ok := byCode[s.Code]
			require.True(t, ok)
			assert.True(t, e.IsApproved, s.Code)
			assert.Equal(t, in.Category, model.ParseCategory(e.Category), s.Code)
			assert.NotEqual(t, in.ExcludeCode, s.Code)
		}
	}
}

func TestRank_RemovesRejectedCodeFromSameSize(t *testing.T) {
	entries := []model.CatalogEntry{entry("only", "Only Milk", "milk", 64, true)}

	got := Rank(entries, eligibility.DefaultRuleSet(), SuggestInput{
		Category:    model.CategoryMilk,
		SizeOz:      oz(64),
		Reasons:     []string{model.ReasonNotApproved},
		ExcludeCode: "only",
	})

	assert.Empty(t, got)
}
