// Package shared holds helpers used by more than one package.
//
// The testutil subpackage provides synthetic panels with known model
// parameters and a capturing slog handler. It depends only on the domain
// contracts and config constants so that any package's tests can import it.
package shared
