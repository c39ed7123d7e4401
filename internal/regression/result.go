package regression

import (
	"gonum.org/v1/gonum/mat"

	"ineqpanel/pkg/contracts/domain"
)

// ClusterKind selects the covariance estimator
type ClusterKind int

const (
	// ClusterEntity clusters residuals by entity.
	ClusterEntity ClusterKind = iota
	// ClusterNone uses the conventional OLS covariance.
	ClusterNone
)

func (c ClusterKind) String() string {
	switch c {
	case ClusterEntity:
		return "clustered (entity)"
	case ClusterNone:
		return "unadjusted"
	default:
		return "unknown"
	}
}

// Options configures the estimator
type Options struct {
	EntityEffects   bool
	TimeEffects     bool
	Cluster         ClusterKind
	ConfidenceLevel float64
}

// DefaultOptions returns two-way effects clustered by entity at 95%
func DefaultOptions() Options {
	return Options{
		EntityEffects:   true,
		TimeEffects:     true,
		Cluster:         ClusterEntity,
		ConfidenceLevel: 0.95,
	}
}

// Coefficient is one estimated slope with its inference
type Coefficient struct {
	Name     string  `json:"name"`
	Estimate float64 `json:"estimate"`
	StdErr   float64 `json:"std_err"`
	TStat    float64 `json:"t_stat"`
	PValue   float64 `json:"p_value"`
	CILower  float64 `json:"ci_lower"`
	CIUpper  float64 `json:"ci_upper"`
}

// Result is a fitted fixed-effects model. All per-observation slices are
// aligned with Keys, which is a subset of the panel index in panel order.
type Result struct {
	Options      Options
	Dependent    string
	Coefficients []Coefficient
	// Covariance of the slope estimates.
	Covariance *mat.SymDense

	Keys             []domain.Key
	Y                []float64
	Fitted           []float64
	LinearPrediction []float64
	Residuals        []float64

	// EntityEffects holds α per entity. Without entity effects every entity
	// maps to the common intercept.
	EntityEffects map[string]float64
	// TimeEffects holds λ per year; the first period is the base with λ = 0.
	TimeEffects map[int]float64

	R2Within  float64
	R2Overall float64
	FStat     float64
	FPValue   float64
	// FDoF are the numerator and denominator degrees of freedom of FStat.
	FDoF [2]int

	NObs              int
	NEntities         int
	NPeriods          int
	DroppedMissing    int
	DroppedSingletons int
	// ResidualDoF is N minus slopes, period dummies and absorbed means.
	ResidualDoF int
	// InferenceDoF is the t distribution's degrees of freedom.
	InferenceDoF int
	SSR          float64
}

// Coefficient returns the named slope
func (r *Result) Coefficient(name string) (Coefficient, bool) {
	for _, c := range r.Coefficients {
		if c.Name == name {
			return c, true
		}
	}
	return Coefficient{}, false
}

// Params returns the slope estimates by name
func (r *Result) Params() map[string]float64 {
	out := make(map[string]float64, len(r.Coefficients))
	for _, c := range r.Coefficients {
		out[c.Name] = c.Estimate
	}
	return out
}

// FittedByKey returns the fitted values keyed by observation
func (r *Result) FittedByKey() map[domain.Key]float64 {
	out := make(map[domain.Key]float64, len(r.Keys))
	for i, k := range r.Keys {
		out[k] = r.Fitted[i]
	}
	return out
}
