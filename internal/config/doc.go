// Package config provides configuration management for the inequality panel
// pipeline.
//
// # Compile-time inputs
//
// The analysis inputs are constants (constants.go) and cannot be changed at
// runtime:
//
//   - Indicators: World Bank indicator codes mapped to semantic column names
//   - Countries: the OECD country set, as ISO3 codes
//   - StartYear..EndYear: the inclusive year range (2000-2020)
//
// # Runtime settings
//
// Operational settings are loaded in increasing order of precedence:
//
//  1. Default values (Default)
//  2. YAML file (config.yaml, configs/config.yaml or $INEQ_CONFIG_FILE)
//  3. Environment variables with the INEQ_ prefix
//
// For example:
//
//	INEQ_LOGGING_LEVEL=debug
//	INEQ_SOURCE_BASE_URL=https://api.worldbank.org/v2
//	INEQ_SOURCE_REQUEST_RATE=2
//	INEQ_OUTPUT_ROOT=/tmp/reports
//	INEQ_TELEMETRY_TRACING=false
//
// The merged configuration is validated with struct tags before use.
//
// # Output paths
//
// Paths describes the timestamped run directory (figures_YYYYMMDD_HHMMSS)
// that receives every artifact of one run.
package config
