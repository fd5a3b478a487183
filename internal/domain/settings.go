package domain

// CompanyProfile is the tenant's business identity, printed on documents
type CompanyProfile struct {
	CompanyName string `json:"companyName"`
	AddressLine string `json:"addressLine,omitempty"`
	City        string `json:"city,omitempty"`
	State       string `json:"state,omitempty"`
	Zip         string `json:"zip,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Email       string `json:"email,omitempty"`
	LogoURL     string `json:"logoUrl,omitempty"`
}

// CostSettings are the tenant's unit costs
type CostSettings struct {
	OpenCell   float64 `json:"openCell"`
	ClosedCell float64 `json:"closedCell"`
	LaborRate  float64 `json:"laborRate"`
}

// YieldSettings are board feet produced per foam set
type YieldSettings struct {
	OpenCell   float64 `json:"openCell"`
	ClosedCell float64 `json:"closedCell"`
}

// ExpenseDefaults prefill new estimates' expenses
type ExpenseDefaults struct {
	TripCharge    float64 `json:"tripCharge"`
	FuelSurcharge float64 `json:"fuelSurcharge"`
}

// DefaultCostSettings is used until a tenant saves its own
func DefaultCostSettings() CostSettings {
	return CostSettings{OpenCell: 2000, ClosedCell: 2600, LaborRate: 85}
}

// DefaultYieldSettings is used until a tenant saves its own
func DefaultYieldSettings() YieldSettings {
	return YieldSettings{OpenCell: 16000, ClosedCell: 4000}
}

// DefaultExpenseDefaults is used until a tenant saves its own
func DefaultExpenseDefaults() ExpenseDefaults {
	return ExpenseDefaults{TripCharge: 0, FuelSurcharge: 0}
}
