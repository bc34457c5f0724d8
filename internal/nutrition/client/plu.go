package client

import (
	"strings"

	"github.com/fekuna/omnipos-benefits-service/internal/model"
)

type pluItem struct {
	Name     string
	Category string
}

// IFPS produce codes. Only the common fresh items stocked by most stores.
var pluTable = map[string]pluItem{
	"3082": {"Broccoli Crowns", "fresh vegetables"},
	"4011": {"Bananas", "fresh fruits"},
	"4022": {"Green Seedless Grapes", "fresh fruits"},
	"4023": {"Red Seedless Grapes", "fresh fruits"},
	"4032": {"Watermelon", "fresh fruits"},
	"4046": {"Hass Avocado Small", "fresh fruits"},
	"4048": {"Limes", "fresh fruits"},
	"4050": {"Cantaloupe", "fresh fruits"},
	"4060": {"Broccoli", "fresh vegetables"},
	"4061": {"Iceberg Lettuce", "fresh vegetables"},
	"4062": {"Cucumber", "fresh vegetables"},
	"4065": {"Green Bell Pepper", "fresh vegetables"},
	"4069": {"Green Cabbage", "fresh vegetables"},
	"4072": {"Russet Potatoes", "fresh vegetables"},
	"4078": {"Yellow Corn", "fresh vegetables"},
	"4087": {"Roma Tomatoes", "fresh vegetables"},
	"4093": {"Yellow Onions", "fresh vegetables"},
	"4131": {"Fuji Apples", "fresh fruits"},
	"4166": {"Sweet Onions", "fresh vegetables"},
	"4225": {"Hass Avocado Large", "fresh fruits"},
	"4562": {"Carrots", "fresh vegetables"},
	"4640": {"Romaine Lettuce", "fresh vegetables"},
	"4664": {"Tomatoes On The Vine", "fresh vegetables"},
	"4816": {"Sweet Potatoes", "fresh vegetables"},
	"4958": {"Lemons", "fresh fruits"},
}

// lookupPLU resolves a 4 digit code, or a 5 digit code with the organic
// prefix 9. Sold by weight, so no package size is reported.
func lookupPLU(code string) (*model.ExternalProductRecord, bool) {
	code = strings.TrimSpace(code)
	key := code
	organic := false
	if len(key) == 5 && key[0] == '9' {
		organic = true
		key = key[1:]
	}
	item, ok := pluTable[key]
	if !ok {
		return nil, false
	}
	name := item.Name
	if organic {
		name = "Organic " + name
	}
	return &model.ExternalProductRecord{
		Code:        code,
		Description: name,
		Category:    "produce " + item.Category,
	}, true
}
