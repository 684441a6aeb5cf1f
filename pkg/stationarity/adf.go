// Package stationarity implements the augmented Dickey-Fuller unit-root
// test used to decide the differencing orders before the model search.
//
// The null hypothesis is that the series has a unit root (is
// non-stationary). A p-value above the caller's significance threshold is
// evidence of non-stationarity and motivates one differencing pass before
// re-testing.
package stationarity

import (
	"fmt"
	"math"

	"github.com/quantfold/pricecast/pkg/timeseries"
)

// minObservations is the smallest series the ADF regression supports.
const minObservations = 10

// InsufficientDataError reports a series too short for the test's lag
// structure.
type InsufficientDataError struct {
	Need int
	Have int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("series too short for ADF test: need at least %d observations, have %d", e.Need, e.Have)
}

// Result holds the outcome of an augmented Dickey-Fuller test.
type Result struct {
	Statistic float64
	PValue    float64
	Lags      int
	NObs      int
}

// ADF runs the augmented Dickey-Fuller test with a constant term.
//
// maxLag <= 0 selects the conventional default floor((n-1)^(1/3)). The
// regression is
//
//	Δy_t = α + β·y_{t-1} + Σ γ_i·Δy_{t-i} + ε_t
//
// and the reported statistic is the t-statistic on β; the p-value is a
// MacKinnon-style interpolation in [0,1].
func ADF(s *timeseries.Series, maxLag int) (*Result, error) {
	n := s.Len()
	if n < minObservations {
		return nil, &InsufficientDataError{Need: minObservations, Have: n}
	}

	if maxLag <= 0 {
		maxLag = int(math.Floor(math.Pow(float64(n-1), 1.0/3.0)))
	}
	if maxLag >= n-1 {
		maxLag = n - 2
	}

	diff := timeseries.Diff(s.Values)

	nObs := n - maxLag - 1
	if nObs < minObservations {
		return nil, &InsufficientDataError{Need: maxLag + 1 + minObservations, Have: n}
	}

	y := make([]float64, nObs)
	x := make([][]float64, nObs)
	for i := 0; i < nObs; i++ {
		t := i + maxLag
		y[i] = diff[t]

		// Regressors: constant, lagged level, lagged differences.
		x[i] = make([]float64, 2+maxLag)
		x[i][0] = 1
		x[i][1] = s.Values[t]
		for j := 1; j <= maxLag; j++ {
			x[i][1+j] = diff[t-j]
		}
	}

	coeffs, se, err := ols(x, y)
	if err != nil {
		return nil, fmt.Errorf("adf regression: %w", err)
	}
	if se[1] == 0 {
		return nil, fmt.Errorf("adf regression: degenerate standard error on lagged level")
	}

	tStat := coeffs[1] / se[1]

	return &Result{
		Statistic: tStat,
		PValue:    mackinnonPValue(tStat),
		Lags:      maxLag,
		NObs:      nObs,
	}, nil
}

// SuggestD returns the smallest non-seasonal differencing order in [0, maxD]
// at which the ADF test rejects the unit root at the given significance
// threshold. If no order passes, maxD is returned.
func SuggestD(s *timeseries.Series, maxD int, threshold float64) (int, error) {
	values := s.Values
	for d := 0; d <= maxD; d++ {
		if d > 0 {
			values = timeseries.Diff(values)
		}
		if len(values) < minObservations {
			return d, nil
		}
		current := timeseries.FromValues(values)
		res, err := ADF(current, 0)
		if err != nil {
			return 0, err
		}
		if res.PValue < threshold {
			return d, nil
		}
	}
	return maxD, nil
}

// SuggestSeasonalD returns 1 when the autocorrelation at the seasonal lag is
// strong enough (|acf| > 0.5) to warrant one seasonal differencing pass, 0
// otherwise.
func SuggestSeasonalD(s *timeseries.Series, period int) int {
	if period <= 0 {
		return 0
	}
	acf := timeseries.ACF(s.Values, 2*period)
	if acf == nil || len(acf) <= period {
		return 0
	}
	if math.Abs(acf[period]) > 0.5 {
		return 1
	}
	return 0
}

// ols fits y = X·β by ordinary least squares and returns coefficients and
// their standard errors.
func ols(x [][]float64, y []float64) (coeffs, stdErrors []float64, err error) {
	n := len(y)
	if n == 0 || len(x) != n {
		return nil, nil, fmt.Errorf("mismatched regression inputs")
	}
	k := len(x[0])
	if n <= k {
		return nil, nil, fmt.Errorf("too few observations (%d) for %d regressors", n, k)
	}

	xtx := make([][]float64, k)
	for i := range xtx {
		xtx[i] = make([]float64, k)
	}
	xty := make([]float64, k)

	for i := 0; i < n; i++ {
		for j := 0; j < k; j++ {
			xty[j] += x[i][j] * y[i]
			for l := 0; l < k; l++ {
				xtx[j][l] += x[i][j] * x[i][l]
			}
		}
	}

	xtxInv, err := invert(xtx)
	if err != nil {
		return nil, nil, err
	}

	coeffs = make([]float64, k)
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			coeffs[i] += xtxInv[i][j] * xty[j]
		}
	}

	sse := 0.0
	for i := 0; i < n; i++ {
		pred := 0.0
		for j := 0; j < k; j++ {
			pred += coeffs[j] * x[i][j]
		}
		r := y[i] - pred
		sse += r * r
	}

	s2 := sse / float64(n-k)
	stdErrors = make([]float64, k)
	for i := 0; i < k; i++ {
		stdErrors[i] = math.Sqrt(s2 * xtxInv[i][i])
	}

	return coeffs, stdErrors, nil
}

// invert inverts a square matrix by Gauss-Jordan elimination with partial
// pivoting.
func invert(m [][]float64) ([][]float64, error) {
	n := len(m)
	if n == 0 {
		return nil, fmt.Errorf("empty matrix")
	}

	aug := make([][]float64, n)
	for i := 0; i < n; i++ {
		aug[i] = make([]float64, 2*n)
		copy(aug[i][:n], m[i])
		aug[i][n+i] = 1
	}

	for i := 0; i < n; i++ {
		maxRow := i
		for k := i + 1; k < n; k++ {
			if math.Abs(aug[k][i]) > math.Abs(aug[maxRow][i]) {
				maxRow = k
			}
		}
		aug[i], aug[maxRow] = aug[maxRow], aug[i]

		if math.Abs(aug[i][i]) < 1e-10 {
			return nil, fmt.Errorf("singular regression matrix")
		}

		pivot := aug[i][i]
		for j := 0; j < 2*n; j++ {
			aug[i][j] /= pivot
		}

		for k := 0; k < n; k++ {
			if k == i {
				continue
			}
			factor := aug[k][i]
			for j := 0; j < 2*n; j++ {
				aug[k][j] -= factor * aug[i][j]
			}
		}
	}

	inv := make([][]float64, n)
	for i := 0; i < n; i++ {
		inv[i] = make([]float64, n)
		copy(inv[i], aug[i][n:])
	}
	return inv, nil
}

// mackinnonPValue approximates the ADF p-value by interpolating the
// MacKinnon (1994) response surface for the constant-only regression.
func mackinnonPValue(stat float64) float64 {
	switch {
	case stat < -3.96:
		return 0.001
	case stat < -3.43:
		return 0.01
	case stat < -2.86:
		return 0.05
	case stat < -2.57:
		return 0.10
	case stat < -1.94:
		return 0.25
	case stat < -1.62:
		return 0.50
	default:
		return math.Min(0.5+(stat+1.62)*0.25, 0.99)
	}
}
