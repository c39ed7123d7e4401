// Package charts renders the report figures with gonum/plot.
//
// Every chart constructor returns a *Figure: one plot or a grid of plots with
// its size in inches. Figures are written with Save, which is the only place
// that touches the filesystem. There is no package-level figure state.
package charts
