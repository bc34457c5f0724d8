package categorizer

import "github.com/fekuna/omnipos-benefits-service/internal/model"

// Rule maps a keyword set to a category. Rules are evaluated by ascending
// Priority; the first rule with any keyword present wins.
type Rule struct {
	Priority int
	Keywords []string
	Category model.Category
}

// DefaultRules is the shipped precedence table. When two rules can match the
// same text the more specific one must have the lower priority: soy beverage
// before milk, milk before generic dairy, bread before cereal and grains,
// juice before produce, infant formula before everything that says "milk".
// Cheese and yogurt sit before milk because provider category paths file them
// under "fermented milk products". Keywords carry the plural forms those paths
// use ("Milks", "Whole milks", "Cheeses").
var DefaultRules = []Rule{
	{Priority: 10, Category: model.CategoryInfantFormula, Keywords: []string{
		"infant formula", "infant formulas", "baby formula", "formula", "formulas", "baby milks", "infant milks",
		"similac", "enfamil", "good start",
	}},
	{Priority: 20, Category: model.CategoryInfantFood, Keywords: []string{
		"baby food", "baby foods", "infant cereal", "infant cereals", "infant fruit", "infant vegetable",
		"infant meat", "stage 1", "stage 2",
	}},
	{Priority: 30, Category: model.CategorySoyBeverage, Keywords: []string{
		"soy milk", "soy milks", "soymilk", "soymilks", "soy beverage", "soy beverages", "soy based drinks",
	}},
	{Priority: 35, Category: model.CategoryCheese, Keywords: []string{
		"cheese", "cheeses", "cheddar", "cheddars", "mozzarella", "mozzarellas", "monterey jack", "colby",
	}},
	{Priority: 37, Category: model.CategoryYogurt, Keywords: []string{
		"yogurt", "yogurts", "yoghurt", "yoghurts",
	}},
	{Priority: 40, Category: model.CategoryMilk, Keywords: []string{
		"milk", "milks", "whole milk", "whole milks", "lowfat milk", "low fat milks", "skim milk", "skimmed milks",
		"semi skimmed milks", "fat free milk", "lactose free", "2%", "1%",
	}},
	{Priority: 70, Category: model.CategoryDairy, Keywords: []string{
		"dairy", "dairies",
	}},
	{Priority: 80, Category: model.CategoryEggs, Keywords: []string{
		"egg", "eggs",
	}},
	{Priority: 90, Category: model.CategoryBread, Keywords: []string{
		"bread", "breads", "loaf", "loaves", "whole wheat bread", "sandwich bread", "sandwich breads",
	}},
	// Provider paths put pasta and rice under "Cereals and potatoes"; their
	// leaf names must win before the cereal rule sees "cereals".
	{Priority: 95, Category: model.CategoryWholeGrains, Keywords: []string{
		"pastas", "rices", "brown rices", "cereal grains", "tortillas", "rolled oats", "oat flakes",
	}},
	{Priority: 100, Category: model.CategoryCereal, Keywords: []string{
		"cereal", "cereals", "breakfast cereals", "cheerios", "corn flakes", "bran flakes", "rice krispies",
		"shredded wheat", "chex", "kix", "granola",
	}},
	{Priority: 110, Category: model.CategoryWholeGrains, Keywords: []string{
		"tortilla", "brown rice", "rice", "oatmeal", "oats", "pasta",
		"whole wheat", "whole grain", "bulgur", "barley", "quinoa",
	}},
	{Priority: 120, Category: model.CategoryJuice, Keywords: []string{
		"juice", "juices", "100% juice", "fruit juices",
	}},
	{Priority: 130, Category: model.CategoryPeanutButter, Keywords: []string{
		"peanut butter", "peanut butters",
	}},
	{Priority: 140, Category: model.CategoryProduce, Keywords: []string{
		"green beans", "string beans",
	}},
	{Priority: 150, Category: model.CategoryLegumes, Keywords: []string{
		"beans", "dry beans", "dried beans", "lentils", "chickpeas", "garbanzo", "split peas", "legumes",
		"pulses", "dried pulses",
	}},
	{Priority: 160, Category: model.CategoryFish, Keywords: []string{
		"tuna", "tunas", "salmon", "salmons", "sardines", "mackerel", "mackerels", "canned fish",
		"canned fishes", "fishes",
	}},
	{Priority: 170, Category: model.CategoryTofu, Keywords: []string{
		"tofu", "tofus",
	}},
	{Priority: 180, Category: model.CategoryProduce, Keywords: []string{
		"produce", "fruit", "fruits", "vegetable", "vegetables", "fresh",
		"apple", "apples", "banana", "bananas", "orange", "oranges", "grapes", "pear", "pears",
		"peach", "peaches", "strawberries", "blueberries", "melon", "melons", "watermelon", "mango", "mangoes",
		"pineapple", "pineapples", "avocado", "avocados", "tomato", "tomatoes", "potato", "potatoes",
		"onion", "onions", "carrot", "carrots", "broccoli", "lettuce", "lettuces", "spinach", "kale",
		"cucumber", "cucumbers", "pepper", "peppers", "zucchini", "zucchinis", "squash", "squashes",
		"celery", "cabbage", "cabbages", "corn",
	}},
}
