package model

// CodeKind tells which numbering system a scanned code belongs to.
type CodeKind string

const (
	CodeKindUPC CodeKind = "upc"
	CodeKindPLU CodeKind = "plu"
)

// CatalogEntry is a first-party approved-items record. Reference data,
// maintained outside this service.
type CatalogEntry struct {
	Code        string   `db:"code" json:"code"`
	CodeKind    CodeKind `db:"code_kind" json:"code_kind"`
	Name        string   `db:"name" json:"name"`
	Brand       string   `db:"brand" json:"brand"`
	Category    string   `db:"category" json:"category"`
	Subcategory *string  `db:"subcategory" json:"subcategory"` // Nullable
	SizeOz      *float64 `db:"size_oz" json:"size_oz"`         // Nullable
	SizeDisplay string   `db:"size_display" json:"size_display"`
	IsApproved  bool     `db:"is_approved" json:"is_approved"`
	Notes       *string  `db:"notes" json:"notes"`
}

func (e *CatalogEntry) DescriptionText() string { return e.Name + " " + e.SizeDisplay }
func (e *CatalogEntry) CategoryText() string {
	if e.Subcategory != nil {
		return e.Category + " " + *e.Subcategory
	}
	return e.Category
}
func (e *CatalogEntry) BrandText() string { return e.Brand }

// Nutrient is one normalized nutrient value per 100 g/ml.
type Nutrient struct {
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
	Unit   string  `json:"unit"`
}

// ExternalProductRecord is what the nutrition provider told us about a code.
// Transient, any field may be empty.
type ExternalProductRecord struct {
	Code        string     `json:"code"`
	Description string     `json:"description"`
	Brand       string     `json:"brand"`
	BrandOwner  string     `json:"brand_owner"`
	Category    string     `json:"category"`
	PackageSize string     `json:"package_size"`
	ServingSize string     `json:"serving_size"`
	Nutrients   []Nutrient `json:"nutrients"`
}

func (r *ExternalProductRecord) DescriptionText() string { return r.Description + " " + r.PackageSize }
func (r *ExternalProductRecord) CategoryText() string    { return r.Category }
func (r *ExternalProductRecord) BrandText() string {
	if r.Brand != "" {
		return r.Brand
	}
	return r.BrandOwner
}
