package domain

// Semantic column names used throughout the panel. Raw indicators are renamed
// to these labels at acquisition time; derived covariates are appended during
// panel assembly.
const (
	ColGini                  = "Gini"
	ColTaxRevenueGDP         = "Tax_Revenue_GDP"
	ColGDPPerCapita          = "GDP_per_Capita"
	ColUnemploymentRate      = "Unemployment_Rate"
	ColEducationExpenditure  = "Education_Expenditure"
	ColHealthcareExpenditure = "Healthcare_Expenditure"
	ColIndustryShare         = "Industry_Share"
	ColServicesShare         = "Services_Share"
	ColTop10Share            = "Top_10_Share"
	ColBottom20Share         = "Bottom_20_Share"

	ColLogGDP            = "log_gdp"
	ColTaxGDPInteraction = "tax_gdp_interaction"
	ColSocialSpending    = "social_spending"
)

// Indicator maps a source indicator code to its semantic column name.
type Indicator struct {
	Code string `json:"code" yaml:"code" validate:"required"`
	Name string `json:"name" yaml:"name" validate:"required"`
}

// DependentVariable is the regressand of the inequality model.
const DependentVariable = ColGini

// IndependentVariables is the fixed regressor set, in model order.
func IndependentVariables() []string {
	return []string{
		ColTaxRevenueGDP,
		ColLogGDP,
		ColTaxGDPInteraction,
		ColSocialSpending,
		ColUnemploymentRate,
		ColIndustryShare,
		ColServicesShare,
	}
}

// DerivedColumns lists the covariates computed during panel assembly.
func DerivedColumns() []string {
	return []string{ColLogGDP, ColTaxGDPInteraction, ColSocialSpending}
}
