package model

// Rejection reason codes. The first reason of a verdict is the one to show.
const (
	ReasonNotApproved           = "brand_or_product_not_approved"
	ReasonNotInCategory         = "product_not_in_wic_category"
	ReasonCannotDetermineSize   = "cannot_determine_size"
	ReasonPackageSizeNotAllowed = "package_size_not_allowed"
	ReasonMilkGallonNotAllowed  = "milk_gallon_not_allowed"
	ReasonExceedsMonthlyLimit   = "exceeds_monthly_limit"
)

type EligibilityVerdict struct {
	IsApproved       bool                    `json:"is_approved"`
	Category         Category                `json:"category"`
	SizeOz           *float64                `json:"size_oz"`
	RejectionReasons []string                `json:"rejection_reasons"`
	Alternatives     []AlternativeSuggestion `json:"alternatives"`
}

// PrimaryReason is empty for approved verdicts.
func (v *EligibilityVerdict) PrimaryReason() string {
	if len(v.RejectionReasons) == 0 {
		return ""
	}
	return v.RejectionReasons[0]
}

func (v *EligibilityVerdict) HasReason(code string) bool {
	for _, r := range v.RejectionReasons {
		if r == code {
			return true
		}
	}
	return false
}

type AlternativeSuggestion struct {
	Code       string `json:"code"`
	Suggestion string `json:"suggestion"`
	Reason     string `json:"reason"`
}

type ScanResult struct {
	Code                string                 `json:"code"`
	CodeKind            CodeKind               `json:"code_kind"`
	Found               bool                   `json:"found"`
	IsApproved          bool                   `json:"is_approved"`
	Name                string                 `json:"name,omitempty"`
	Brand               string                 `json:"brand,omitempty"`
	Category            *Category              `json:"category,omitempty"`
	ApprovalNotes       *string                `json:"approval_notes,omitempty"`
	MatchedCatalogEntry *CatalogEntry          `json:"matched_catalog_entry,omitempty"`
	ExternalRecord      *ExternalProductRecord `json:"external_record,omitempty"`
	Verdict             EligibilityVerdict     `json:"verdict"`
}
