// Package analysis computes the descriptive statistics reported alongside
// the regression: column summaries, correlations, lagged correlations and
// per-country and per-year aggregates. Functions read the panel and never
// modify it. Missing values (NaN) are skipped unless stated otherwise.
package analysis
