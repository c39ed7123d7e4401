package regression

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"ineqpanel/internal/errors"
	"ineqpanel/internal/panel"
	"ineqpanel/pkg/contracts/domain"
)

// ErrInfeasible is returned when the design cannot be estimated
var ErrInfeasible = stderrors.New("infeasible fixed-effects design")

const (
	// rankTolerance bounds the smallest-to-largest singular value ratio of the
	// column-equilibrated absorbed design.
	rankTolerance = 1e-10
	// withinTolerance bounds the share of a regressor's sum of squares that
	// must survive demeaning.
	withinTolerance = 1e-12
)

// Estimator fits two-way fixed-effects models
type Estimator struct {
	opts   Options
	logger *slog.Logger
}

// NewEstimator creates an estimator
func NewEstimator(opts Options, logger *slog.Logger) *Estimator {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.ConfidenceLevel <= 0 || opts.ConfidenceLevel >= 1 {
		opts.ConfidenceLevel = DefaultOptions().ConfidenceLevel
	}
	return &Estimator{
		opts:   opts,
		logger: logger.With("component", "regression"),
	}
}

func infeasible(reason string) error {
	return errors.NewEstimationError(reason, ErrInfeasible)
}

// Fit estimates Gini = Xβ + α_entity + λ_period + ε on the complete-case
// sample of p for the named regressors.
func (e *Estimator) Fit(ctx context.Context, p *panel.Panel, names []string) (*Result, error) {
	dm, err := p.Design(names)
	if err != nil {
		return nil, errors.NewEstimationError("failed to build design matrix", err)
	}
	return e.FitDesign(ctx, dm)
}

// FitDesign estimates the model on an explicit design. Rows must be grouped
// by entity as produced by panel.Panel.Design.
func (e *Estimator) FitDesign(ctx context.Context, dm *panel.DesignMatrix) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.NewEstimationError("estimation cancelled", err)
	}

	s := e.prepareSample(dm)
	n, k := len(s.keys), len(dm.Names)

	if k == 0 {
		return nil, infeasible("no regressors")
	}
	if n == 0 {
		return nil, infeasible("empty complete-case sample")
	}
	if e.opts.EntityEffects && len(s.entities) < 2 {
		return nil, infeasible("fewer than two entities with repeated observations")
	}
	if e.opts.Cluster == ClusterEntity && len(s.entities) < 2 {
		return nil, infeasible("clustering needs at least two entities")
	}

	var dummies []int
	if e.opts.TimeEffects && len(s.years) > 1 {
		dummies = s.years[1:]
	}
	p := k + len(dummies)
	absorbed := 1
	if e.opts.EntityEffects {
		absorbed = len(s.entities)
	}
	dfResid := n - p - absorbed
	if dfResid <= 0 {
		return nil, infeasible(fmt.Sprintf("no residual degrees of freedom (n=%d, parameters=%d)", n, p+absorbed))
	}

	// Z = [X | period dummies]
	z := mat.NewDense(n, p, nil)
	dummyCol := make(map[int]int, len(dummies))
	for j, y := range dummies {
		dummyCol[y] = k + j
	}
	for i := 0; i < n; i++ {
		for j := 0; j < k; j++ {
			z.Set(i, j, s.x[i][j])
		}
		if col, ok := dummyCol[s.keys[i].Year]; ok {
			z.Set(i, col, 1)
		}
	}

	absorbGroup := s.entityOf
	if !e.opts.EntityEffects {
		absorbGroup = make([]int, n)
	}
	zt, yt := demean(z, s.y, absorbGroup, absorbed)

	for j := 0; j < k; j++ {
		raw := floats.Dot(mat.Col(nil, j, z), mat.Col(nil, j, z))
		within := floats.Dot(mat.Col(nil, j, zt), mat.Col(nil, j, zt))
		if within <= withinTolerance*math.Max(raw, 1) {
			return nil, infeasible(fmt.Sprintf("regressor %s has no within variation", dm.Names[j]))
		}
	}

	// Equilibrate columns so the rank test and the normal equations are
	// insensitive to regressor units.
	scale := make([]float64, p)
	zs := mat.NewDense(n, p, nil)
	for j := 0; j < p; j++ {
		col := mat.Col(nil, j, zt)
		scale[j] = floats.Norm(col, 2)
		if scale[j] == 0 {
			return nil, infeasible("rank-deficient design: period dummy absorbed by entity effects")
		}
		floats.Scale(1/scale[j], col)
		zs.SetCol(j, col)
	}

	var svd mat.SVD
	if !svd.Factorize(zs, mat.SVDNone) {
		return nil, infeasible("singular value decomposition failed")
	}
	sv := svd.Values(nil)
	if sv[len(sv)-1] <= rankTolerance*sv[0] {
		return nil, infeasible(fmt.Sprintf("rank-deficient design (condition number %.3g)", sv[0]/sv[len(sv)-1]))
	}

	var xtx mat.SymDense
	xtx.SymOuterK(1, zs.T())
	var chol mat.Cholesky
	if ok := chol.Factorize(&xtx); !ok {
		return nil, infeasible("normal equations are not positive definite")
	}

	ytVec := mat.NewVecDense(n, yt)
	var xty mat.VecDense
	xty.MulVec(zs.T(), ytVec)
	var thetaS mat.VecDense
	if err := chol.SolveVecTo(&thetaS, &xty); err != nil {
		return nil, infeasible(fmt.Sprintf("normal equations: %v", err))
	}

	// Residuals of the absorbed problem
	var fit mat.VecDense
	fit.MulVec(zs, &thetaS)
	resid := make([]float64, n)
	for i := range resid {
		resid[i] = yt[i] - fit.AtVec(i)
	}
	ssr := floats.Dot(resid, resid)

	theta := make([]float64, p)
	for j := range theta {
		theta[j] = thetaS.AtVec(j) / scale[j]
	}
	beta := theta[:k]

	lambda := make(map[int]float64, len(s.years))
	if e.opts.TimeEffects {
		for _, y := range s.years {
			lambda[y] = 0
		}
		for j, y := range dummies {
			lambda[y] = theta[k+j]
		}
	}

	// Recover α as the group mean of y - Zθ on the raw scale
	linear := make([]float64, n)
	partial := make([]float64, n)
	for i := 0; i < n; i++ {
		linear[i] = floats.Dot(s.x[i], beta)
		partial[i] = s.y[i] - linear[i] - lambda[s.keys[i].Year]
	}
	alphaByGroup := groupMeans(partial, absorbGroup, absorbed)

	fitted := make([]float64, n)
	residuals := make([]float64, n)
	alpha := make(map[string]float64, len(s.entities))
	for i := 0; i < n; i++ {
		a := alphaByGroup[absorbGroup[i]]
		alpha[s.keys[i].Entity] = a
		fitted[i] = linear[i] + a + lambda[s.keys[i].Year]
		residuals[i] = s.y[i] - fitted[i]
	}

	// Covariance in the equilibrated space, then unscaled
	var inv mat.SymDense
	if err := chol.InverseTo(&inv); err != nil {
		return nil, infeasible(fmt.Sprintf("invert normal equations: %v", err))
	}

	var covS *mat.Dense
	inferenceDoF := dfResid
	switch e.opts.Cluster {
	case ClusterEntity:
		covS = clusteredCovariance(zs, resid, s.entityOf, len(s.entities), &inv)
		g := float64(len(s.entities))
		c := g / (g - 1) * float64(n-1) / float64(n-p)
		covS.Scale(c, covS)
		inferenceDoF = len(s.entities) - 1
	default:
		covS = mat.NewDense(p, p, nil)
		covS.Scale(ssr/float64(dfResid), &inv)
	}

	cov := mat.NewSymDense(k, nil)
	for a := 0; a < k; a++ {
		for b := a; b < k; b++ {
			cov.SetSym(a, b, covS.At(a, b)/(scale[a]*scale[b]))
		}
	}

	coefs := inference(dm.Names, beta, cov, inferenceDoF, e.opts.ConfidenceLevel)

	tssWithin, err := withinTSS(zs, yt, k)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Options:           e.opts,
		Dependent:         domain.DependentVariable,
		Coefficients:      coefs,
		Covariance:        cov,
		Keys:              s.keys,
		Y:                 s.y,
		Fitted:            fitted,
		LinearPrediction:  linear,
		Residuals:         residuals,
		EntityEffects:     alpha,
		TimeEffects:       lambda,
		R2Within:          rSquared(ssr, tssWithin),
		R2Overall:         squaredCorrelation(s.y, fitted),
		NObs:              n,
		NEntities:         len(s.entities),
		NPeriods:          len(s.years),
		DroppedMissing:    dm.Dropped,
		DroppedSingletons: s.droppedSingletons,
		ResidualDoF:       dfResid,
		InferenceDoF:      inferenceDoF,
		SSR:               ssr,
	}
	res.FStat, res.FPValue = waldF(beta, cov, inferenceDoF)
	res.FDoF = [2]int{k, inferenceDoF}

	e.logger.InfoContext(ctx, "Fixed-effects model estimated",
		slog.Int("observations", n),
		slog.Int("entities", res.NEntities),
		slog.Int("periods", res.NPeriods),
		slog.Int("dropped_missing", res.DroppedMissing),
		slog.Int("dropped_singletons", res.DroppedSingletons),
		slog.Float64("r2_within", res.R2Within),
		slog.Float64("r2_overall", res.R2Overall))

	return res, nil
}

// sample is the estimation sample after singleton removal
type sample struct {
	keys              []domain.Key
	y                 []float64
	x                 [][]float64
	entities          []string
	entityOf          []int
	years             []int
	droppedSingletons int
}

func (e *Estimator) prepareSample(dm *panel.DesignMatrix) *sample {
	counts := make(map[string]int)
	for _, key := range dm.Keys {
		counts[key.Entity]++
	}

	s := &sample{}
	entityIdx := make(map[string]int)
	yearSeen := make(map[int]bool)
	for i, key := range dm.Keys {
		if e.opts.EntityEffects && counts[key.Entity] < 2 {
			s.droppedSingletons++
			continue
		}
		idx, ok := entityIdx[key.Entity]
		if !ok {
			idx = len(s.entities)
			entityIdx[key.Entity] = idx
			s.entities = append(s.entities, key.Entity)
		}
		s.keys = append(s.keys, key)
		s.y = append(s.y, dm.Y[i])
		s.x = append(s.x, dm.X[i])
		s.entityOf = append(s.entityOf, idx)
		if !yearSeen[key.Year] {
			yearSeen[key.Year] = true
			s.years = append(s.years, key.Year)
		}
	}
	sort.Ints(s.years)
	return s
}

// demean subtracts group means from every column of z and from y
func demean(z *mat.Dense, y []float64, group []int, groups int) (*mat.Dense, []float64) {
	n, p := z.Dims()
	out := mat.DenseCopyOf(z)

	yt := make([]float64, n)
	copy(yt, y)
	subtractGroupMeans(yt, group, groups)

	col := make([]float64, n)
	for j := 0; j < p; j++ {
		mat.Col(col, j, z)
		subtractGroupMeans(col, group, groups)
		out.SetCol(j, col)
	}
	return out, yt
}

func subtractGroupMeans(v []float64, group []int, groups int) {
	means := groupMeans(v, group, groups)
	for i := range v {
		v[i] -= means[group[i]]
	}
}

func groupMeans(v []float64, group []int, groups int) []float64 {
	sums := make([]float64, groups)
	counts := make([]float64, groups)
	for i, x := range v {
		sums[group[i]] += x
		counts[group[i]]++
	}
	for g := range sums {
		if counts[g] > 0 {
			sums[g] /= counts[g]
		}
	}
	return sums
}

// clusteredCovariance returns inv·(Σ_g u_g u_g')·inv with u_g = Z_g'e_g
func clusteredCovariance(z *mat.Dense, resid []float64, cluster []int, clusters int, inv *mat.SymDense) *mat.Dense {
	n, p := z.Dims()
	scores := make([]*mat.VecDense, clusters)
	for g := range scores {
		scores[g] = mat.NewVecDense(p, nil)
	}
	for i := 0; i < n; i++ {
		scores[cluster[i]].AddScaledVec(scores[cluster[i]], resid[i], z.RowView(i))
	}

	meat := mat.NewSymDense(p, nil)
	for _, u := range scores {
		meat.SymRankOne(meat, 1, u)
	}

	var left, cov mat.Dense
	left.Mul(inv, meat)
	cov.Mul(&left, inv)
	return &cov
}

// withinTSS is the sum of squares of y after both effects are removed: the
// entity-demeaned y net of its projection on the demeaned period dummies.
func withinTSS(zs *mat.Dense, yt []float64, k int) (float64, error) {
	n, p := zs.Dims()
	if p == k {
		return floats.Dot(yt, yt), nil
	}

	d := zs.Slice(0, n, k, p)
	var dtd mat.SymDense
	dtd.SymOuterK(1, d.T())
	var chol mat.Cholesky
	if !chol.Factorize(&dtd) {
		return 0, infeasible("period dummies are collinear")
	}

	yv := mat.NewVecDense(n, yt)
	var dty, coef, proj mat.VecDense
	dty.MulVec(d.T(), yv)
	if err := chol.SolveVecTo(&coef, &dty); err != nil {
		return 0, infeasible(fmt.Sprintf("period dummies: %v", err))
	}
	proj.MulVec(d, &coef)

	var tss float64
	for i := 0; i < n; i++ {
		r := yt[i] - proj.AtVec(i)
		tss += r * r
	}
	return tss, nil
}

func inference(names []string, beta []float64, cov *mat.SymDense, dof int, level float64) []Coefficient {
	t := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(dof)}
	q := t.Quantile(1 - (1-level)/2)

	coefs := make([]Coefficient, len(names))
	for j, name := range names {
		se := math.Sqrt(cov.At(j, j))
		c := Coefficient{
			Name:     name,
			Estimate: beta[j],
			StdErr:   se,
			TStat:    math.NaN(),
			PValue:   math.NaN(),
			CILower:  beta[j] - q*se,
			CIUpper:  beta[j] + q*se,
		}
		if se > 0 {
			c.TStat = beta[j] / se
			c.PValue = 2 * t.Survival(math.Abs(c.TStat))
		}
		coefs[j] = c
	}
	return coefs
}

// waldF tests that all slopes are zero using the chosen covariance
func waldF(beta []float64, cov *mat.SymDense, dof int) (float64, float64) {
	k := len(beta)
	var chol mat.Cholesky
	if !chol.Factorize(cov) {
		return math.NaN(), math.NaN()
	}
	b := mat.NewVecDense(k, append([]float64{}, beta...))
	var solved mat.VecDense
	if err := chol.SolveVecTo(&solved, b); err != nil {
		return math.NaN(), math.NaN()
	}
	f := mat.Dot(b, &solved) / float64(k)
	if math.IsNaN(f) || f < 0 {
		return math.NaN(), math.NaN()
	}
	dist := distuv.F{D1: float64(k), D2: float64(dof)}
	return f, dist.Survival(f)
}

func rSquared(ssr, tss float64) float64 {
	if tss <= 0 {
		return math.NaN()
	}
	return 1 - ssr/tss
}

func squaredCorrelation(a, b []float64) float64 {
	if len(a) < 2 {
		return math.NaN()
	}
	r := stat.Correlation(a, b, nil)
	return r * r
}
