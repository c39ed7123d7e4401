// Package worldbank fetches indicator series from the World Bank Indicators
// API (v2) and merges them into a flat table keyed by country and year.
//
// Requests are issued one at a time and throttled by a token-bucket limiter.
// Nothing is retried: any transport, status or decoding failure aborts the
// fetch with an ACQUISITION error wrapping the cause.
package worldbank
