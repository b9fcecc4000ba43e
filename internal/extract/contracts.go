package extract

import "context"

// AuctionFields is the normalized shape we want from the LLM.
type AuctionFields struct {
	CaseNumber           string  `json:"case_number"`
	CourtName            string  `json:"court_name,omitempty"`
	Plaintiff            string  `json:"plaintiff,omitempty"`
	Defendant            string  `json:"defendant,omitempty"`
	AuctionDate          string  `json:"auction_date,omitempty"` // YYYY-MM-DD
	AuctionTime          string  `json:"auction_time,omitempty"` // HH:MM
	SheriffOffice        string  `json:"sheriff_office,omitempty"`
	SheriffAddress       string  `json:"sheriff_address,omitempty"`
	ErfNumber            string  `json:"erf_number,omitempty"`
	Township             string  `json:"township,omitempty"`
	Extension            string  `json:"extension,omitempty"`
	RegistrationDivision string  `json:"registration_division,omitempty"`
	Province             string  `json:"province,omitempty"`
	StandSize            int64   `json:"stand_size,omitempty"` // square meters
	DeedOfTransferNumber string  `json:"deed_of_transfer_number,omitempty"`
	StreetAddress        string  `json:"street_address,omitempty"`
	Zoning               string  `json:"zoning,omitempty"`
	ReservePrice         int64   `json:"reserve_price,omitempty"`
	Bedrooms             int64   `json:"bedrooms,omitempty"`
	Bathrooms            int64   `json:"bathrooms,omitempty"`
	Kitchen              string  `json:"kitchen,omitempty"`
	Scullery             string  `json:"scullery,omitempty"`
	Laundry              string  `json:"laundry,omitempty"`
	LivingAreas          int64   `json:"living_areas,omitempty"`
	Garage               string  `json:"garage,omitempty"`
	Carport              string  `json:"carport,omitempty"`
	OtherStructures      string  `json:"other_structures,omitempty"`
	RegistrationFee      string  `json:"registration_fee_required,omitempty"`
	FicaRequirements     string  `json:"fica_requirements,omitempty"`
	Attorney             string  `json:"attorney,omitempty"`
	AttorneyContact      string  `json:"attorney_contact,omitempty"`
	AttorneyReference    string  `json:"attorney_reference,omitempty"`
	NoticeDate           string  `json:"notice_date,omitempty"` // YYYY-MM-DD
	AdditionalFees       string  `json:"additional_fees,omitempty"`
	TotalEstimatedCost   int64   `json:"total_estimated_cost,omitempty"`
	Currency             string  `json:"currency,omitempty"` // ISO 4217
	ConditionsOfSale     string  `json:"conditions_of_sale,omitempty"`
	ModelConfidence      float32 `json:"confidence,omitempty"` // optional (0..1)
}

// ExtractRequest carries one listing's text plus positional context for logs.
type ExtractRequest struct {
	ListingText  string
	DocID        string
	ListingIndex int
}

// FieldExtractor is the interface the extraction worker depends on.
type FieldExtractor interface {
	ExtractFields(ctx context.Context, req ExtractRequest) (AuctionFields, []byte /*rawJSON*/, error)
}
