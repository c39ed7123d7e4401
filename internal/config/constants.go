package config

import (
	"time"

	"ineqpanel/pkg/contracts/domain"
)

// Application constants - the analysis inputs are fixed at compile time
const (
	// Application Info
	AppName    = "Inequality Panel"
	AppVersion = "1.0.0"

	// Analysis window (inclusive)
	StartYear = 2000
	EndYear   = 2020

	// Lagged correlation horizon in years
	DefaultMaxLag = 5

	// Source
	DefaultWorldBankURL = "https://api.worldbank.org/v2"
	DefaultPerPage      = 1000
	DefaultHTTPTimeout  = 30 * time.Second
	DefaultRequestRate  = 5.0 // requests per second
	DefaultRequestBurst = 1

	// Output
	DefaultOutputRoot = "."
	RunDirPrefix      = "figures_"
	RunDirTimeLayout  = "20060102_150405"
	DefaultFigureDPI  = 300
	DefaultLogFile    = "logs/inequality.log"
	DefaultLogLevel   = "info"
	DefaultLogOutput  = "both"
	DefaultConfigFile = "config.yaml"
	EnvPrefix         = "INEQ"
	EnvConfigFile     = "INEQ_CONFIG_FILE"
)

// Output artifact names
const (
	FileCorrelationMatrix      = "correlation_matrix.png"
	FileGiniOverTime           = "gini_over_time.png"
	FileInequalityPersistence  = "inequality_persistence.png"
	FileGiniByCountry          = "gini_distribution_by_country.png"
	FileEducationHealthScatter = "education_healthcare_scatter.png"
	FileInequalityTrends       = "inequality_trends.png"
	FileIndicatorsByLevel      = "indicators_by_inequality_level.png"
	FileLaggedCorrelations     = "lagged_correlations.png"
	FileActualVsPredicted      = "actual_vs_predicted.png"

	FileSummaryStatistics = "summary_statistics.csv"
	FileCoefficients      = "regression_coefficients.csv"
	FileFittedValues      = "fitted_values.csv"
	FilePanel             = "panel.csv"
	FileRawData           = "raw_data.csv"
	FileWorkbook          = "inequality_report.xlsx"
	FileTrace             = "trace.json"
	FileMetrics           = "metrics.prom"
)

// Indicators returns the indicator catalogue in column order.
func Indicators() []domain.Indicator {
	return []domain.Indicator{
		{Code: "SI.POV.GINI", Name: domain.ColGini},
		{Code: "GC.TAX.TOTL.GD.ZS", Name: domain.ColTaxRevenueGDP},
		{Code: "NY.GDP.PCAP.CD", Name: domain.ColGDPPerCapita},
		{Code: "SL.UEM.TOTL.ZS", Name: domain.ColUnemploymentRate},
		{Code: "SE.XPD.TOTL.GD.ZS", Name: domain.ColEducationExpenditure},
		{Code: "SH.XPD.CHEX.GD.ZS", Name: domain.ColHealthcareExpenditure},
		{Code: "NV.IND.TOTL.ZS", Name: domain.ColIndustryShare},
		{Code: "NV.SRV.TOTL.ZS", Name: domain.ColServicesShare},
		{Code: "SI.DST.10TH.10", Name: domain.ColTop10Share},
		{Code: "SI.DST.FRST.20", Name: domain.ColBottom20Share},
	}
}

// Countries returns the OECD country set (ISO 3166-1 alpha-3).
func Countries() []string {
	return []string{
		"AUS", "AUT", "BEL", "CAN", "CHE", "CZE", "DNK", "EST", "FIN",
		"FRA", "DEU", "GRC", "HUN", "ISL", "IRL", "ITA", "JPN", "LVA",
		"LTU", "LUX", "NLD", "NZL", "NOR", "POL", "PRT", "SVK", "SVN",
		"ESP", "SWE", "GBR", "USA",
	}
}

// SummaryColumns are the indicators averaged per country in the summary table.
func SummaryColumns() []string {
	return []string{
		domain.ColTaxRevenueGDP,
		domain.ColEducationExpenditure,
		domain.ColHealthcareExpenditure,
		domain.ColGDPPerCapita,
	}
}

// TrendColumns are the inequality measures averaged per year.
func TrendColumns() []string {
	return []string{domain.ColGini, domain.ColTop10Share, domain.ColBottom20Share}
}
