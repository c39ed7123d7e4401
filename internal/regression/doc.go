// Package regression estimates the panel model
//
//	Gini_it = X_it β + α_i + λ_t + ε_it
//
// by the within transformation. Entity effects are removed by demeaning and
// period effects by dummies on the demeaned data, which by Frisch-Waugh-Lovell
// reproduces the two-way within estimator on unbalanced panels. Standard
// errors are clustered by entity.
//
// Any design that cannot be estimated returns an error wrapping
// ErrInfeasible; no partial result is produced.
package regression
