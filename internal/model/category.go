package model

import "strings"

// Category is a benefit bucket allotments are tracked against.
type Category string

const (
	CategoryUnknown       Category = "unknown"
	CategoryInfantFormula Category = "infant_formula"
	CategoryInfantFood    Category = "infant_food"
	CategorySoyBeverage   Category = "soy_beverage"
	CategoryMilk          Category = "milk"
	CategoryCheese        Category = "cheese"
	CategoryYogurt        Category = "yogurt"
	CategoryDairy         Category = "dairy"
	CategoryEggs          Category = "eggs"
	CategoryBread         Category = "bread"
	CategoryCereal        Category = "cereal"
	CategoryWholeGrains   Category = "whole_grains"
	CategoryJuice         Category = "juice"
	CategoryPeanutButter  Category = "peanut_butter"
	CategoryLegumes       Category = "legumes"
	CategoryFish          Category = "fish"
	CategoryTofu          Category = "tofu"
	CategoryProduce       Category = "produce"
)

var knownCategories = map[Category]struct{}{
	CategoryInfantFormula: {},
	CategoryInfantFood:    {},
	CategorySoyBeverage:   {},
	CategoryMilk:          {},
	CategoryCheese:        {},
	CategoryYogurt:        {},
	CategoryDairy:         {},
	CategoryEggs:          {},
	CategoryBread:         {},
	CategoryCereal:        {},
	CategoryWholeGrains:   {},
	CategoryJuice:         {},
	CategoryPeanutButter:  {},
	CategoryLegumes:       {},
	CategoryFish:          {},
	CategoryTofu:          {},
	CategoryProduce:       {},
}

// ParseCategory normalizes a stored or user supplied category name.
// Anything outside the taxonomy maps to CategoryUnknown.
func ParseCategory(s string) Category {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	c = Category(strings.ReplaceAll(string(c), " ", "_"))
	if _, ok := knownCategories[c]; ok {
		return c
	}
	return CategoryUnknown
}

func (c Category) IsKnown() bool {
	_, ok := knownCategories[c]
	return ok
}

func (c Category) String() string {
	return string(c)
}
