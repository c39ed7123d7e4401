// Package panel turns the flat acquisition table into an indexed panel and
// appends the derived covariates used by the inequality model:
//
//	log_gdp             = ln(GDP_per_Capita), NaN when GDP_per_Capita <= 0
//	tax_gdp_interaction = Tax_Revenue_GDP * log_gdp
//	social_spending     = Education_Expenditure + Healthcare_Expenditure
//
// Missing values are NaN and propagate through every derived column.
package panel
