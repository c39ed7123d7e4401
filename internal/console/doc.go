// Package console prints the run's headline tables to a terminal: the
// regression summary, the Gini description and observation counts per
// country.
package console
