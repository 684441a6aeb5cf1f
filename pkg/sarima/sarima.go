// Package sarima implements the seasonal ARIMA(p,d,q)(P,D,Q,s) model used
// by the search engine: conditional-sum-of-squares fitting, information
// criteria, and forward forecasting with integration back to the original
// scale.
package sarima

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/quantfold/pricecast/pkg/timeseries"
)

// ErrFitFailed marks recoverable fitting failures: the series is too short
// for the requested order, or the optimizer diverged or was cut off. The
// search engine skips candidates whose fit error wraps ErrFitFailed;
// anything else is treated as a bug and aborts the search.
var ErrFitFailed = errors.New("sarima: fit failed")

// FitError is the concrete error type for recoverable fitting failures.
// It wraps ErrFitFailed and, when available, the underlying cause (for a
// per-candidate timeout that is context.DeadlineExceeded).
type FitError struct {
	Order  Order
	Reason string
	Cause  error
}

func (e *FitError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("sarima: fit %s failed: %s: %v", e.Order, e.Reason, e.Cause)
	}
	return fmt.Sprintf("sarima: fit %s failed: %s", e.Order, e.Reason)
}

func (e *FitError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrFitFailed, e.Cause}
	}
	return []error{ErrFitFailed}
}

// Order is the full SARIMA specification (p,d,q)(P,D,Q,s).
type Order struct {
	P  int // non-seasonal AR order
	D  int // non-seasonal differencing order
	Q  int // non-seasonal MA order
	SP int // seasonal AR order
	SD int // seasonal differencing order
	SQ int // seasonal MA order
	S  int // seasonal period in observations
}

func (o Order) String() string {
	return fmt.Sprintf("(%d,%d,%d)(%d,%d,%d,%d)", o.P, o.D, o.Q, o.SP, o.SD, o.SQ, o.S)
}

// NumParams returns the count of estimated coefficients including the
// intercept.
func (o Order) NumParams() int {
	return o.P + o.Q + o.SP + o.SQ + 1
}

// MinObservations is the shortest series Fit accepts for this order.
func (o Order) MinObservations() int {
	return o.P + o.Q + o.D + o.S*(o.SP+o.SD+o.SQ) + 20
}

// WarmupLen is the number of leading observations consumed by the
// differencing structure; fitted values are undefined there.
func (o Order) WarmupLen() int {
	return o.D + o.SD*o.S
}

// Model is a SARIMA model. Create with New, then call Fit before Forecast
// or FittedValues.
type Model struct {
	Order     Order
	ARCoeffs  []float64
	MACoeffs  []float64
	SARCoeffs []float64
	SMACoeffs []float64
	Intercept float64
	Variance  float64
	AIC       float64
	AICc      float64
	BIC       float64
	LogLik    float64

	fitted     bool
	data       []float64 // original values, borrowed read-only
	diffData   []float64 // after non-seasonal then seasonal differencing
	residuals  []float64 // on the differenced scale
	fittedVals []float64 // on the original scale, NaN during warm-up
}

// New creates an unfitted model for the given order.
func New(order Order) *Model {
	return &Model{
		Order:     order,
		ARCoeffs:  make([]float64, order.P),
		MACoeffs:  make([]float64, order.Q),
		SARCoeffs: make([]float64, order.SP),
		SMACoeffs: make([]float64, order.SQ),
	}
}

// Fit estimates the model on series by conditional sum of squares. The
// series is borrowed read-only. Recoverable failures (series too short for
// the order, diverging optimizer, context expiry mid-optimization) return a
// *FitError wrapping ErrFitFailed.
func (m *Model) Fit(ctx context.Context, series *timeseries.Series) error {
	o := m.Order
	if series.Len() < o.MinObservations() {
		return &FitError{Order: o, Reason: fmt.Sprintf("need at least %d observations, have %d",
			o.MinObservations(), series.Len())}
	}

	m.data = series.Values

	diffed := series.Values
	for i := 0; i < o.D; i++ {
		diffed = timeseries.Diff(diffed)
		if len(diffed) == 0 {
			return &FitError{Order: o, Reason: "differencing exhausted the series"}
		}
	}
	for i := 0; i < o.SD; i++ {
		diffed = timeseries.SeasonalDiff(diffed, o.S)
		if len(diffed) == 0 {
			return &FitError{Order: o, Reason: "seasonal differencing exhausted the series"}
		}
	}
	m.diffData = diffed

	if err := m.fitCSS(ctx); err != nil {
		return err
	}

	m.calculateIC()
	m.computeFittedOriginal()
	m.fitted = true
	return nil
}

// Fitted reports whether Fit has completed successfully.
func (m *Model) Fitted() bool {
	return m.fitted
}

// fitCSS initializes coefficients from the autocorrelation structure and
// refines them with the momentum optimizer.
func (m *Model) fitCSS(ctx context.Context) error {
	y := m.diffData
	o := m.Order

	mean := 0.0
	for _, v := range y {
		mean += v
	}
	m.Intercept = mean / float64(len(y))

	if o.P > 0 {
		acf := timeseries.ACF(y, o.P)
		for i := 0; i < o.P && i+1 < len(acf); i++ {
			m.ARCoeffs[i] = acf[i+1] * 0.5
		}
	}
	if o.SP > 0 {
		acf := timeseries.ACF(y, o.SP*o.S)
		for i := 0; i < o.SP; i++ {
			idx := (i + 1) * o.S
			if idx < len(acf) {
				m.SARCoeffs[i] = acf[idx] * 0.5
			}
		}
	}
	for i := range m.MACoeffs {
		m.MACoeffs[i] = 0.1
	}
	for i := range m.SMACoeffs {
		m.SMACoeffs[i] = 0.1
	}

	return m.optimizeCSS(ctx)
}

// predictAt computes the one-step prediction at index t of the differenced
// series given the residuals accumulated so far.
func (m *Model) predictAt(t int, y, residuals []float64) float64 {
	o := m.Order
	pred := m.Intercept

	for i := 0; i < o.P && t-i-1 >= 0; i++ {
		pred += m.ARCoeffs[i] * (y[t-i-1] - m.Intercept)
	}
	for i := 0; i < o.SP; i++ {
		lag := (i + 1) * o.S
		if t-lag >= 0 {
			pred += m.SARCoeffs[i] * (y[t-lag] - m.Intercept)
		}
	}
	for i := 0; i < o.Q && t-i-1 >= 0; i++ {
		pred += m.MACoeffs[i] * residuals[t-i-1]
	}
	for i := 0; i < o.SQ; i++ {
		lag := (i + 1) * o.S
		if t-lag >= 0 {
			pred += m.SMACoeffs[i] * residuals[t-lag]
		}
	}
	return pred
}

// optimizeCSS refines the coefficients with momentum gradient descent on
// the conditional sum of squares. Deterministic: no random initialization
// or sampling anywhere, so identical inputs give identical fits.
func (m *Model) optimizeCSS(ctx context.Context) error {
	y := m.diffData
	n := len(y)
	o := m.Order

	const (
		maxIter   = 200
		tolerance = 1e-8
		momentum  = 0.9
		decay     = 0.99
	)
	learningRate := 0.005

	arMomentum := make([]float64, o.P)
	maMomentum := make([]float64, o.Q)
	sarMomentum := make([]float64, o.SP)
	smaMomentum := make([]float64, o.SQ)

	startIdx := max(max(o.P, o.Q), max(o.SP*o.S, o.SQ*o.S))
	if startIdx >= n-10 {
		startIdx = 0
	}

	bestSSE := math.Inf(1)
	bestAR := make([]float64, o.P)
	bestMA := make([]float64, o.Q)
	bestSAR := make([]float64, o.SP)
	bestSMA := make([]float64, o.SQ)
	noImprove := 0

	for iter := 0; iter < maxIter; iter++ {
		// The optimizer is CPU bound; poll the context between iterations
		// so a per-candidate deadline converts into a recoverable failure.
		if err := ctx.Err(); err != nil {
			return &FitError{Order: o, Reason: "optimization interrupted", Cause: err}
		}

		residuals := make([]float64, n)
		currentSSE := 0.0
		for t := startIdx; t < n; t++ {
			residuals[t] = y[t] - m.predictAt(t, y, residuals)
			currentSSE += residuals[t] * residuals[t]
		}

		if math.IsNaN(currentSSE) || math.IsInf(currentSSE, 0) {
			return &FitError{Order: o, Reason: "optimizer diverged"}
		}

		if currentSSE < bestSSE {
			bestSSE = currentSSE
			copy(bestAR, m.ARCoeffs)
			copy(bestMA, m.MACoeffs)
			copy(bestSAR, m.SARCoeffs)
			copy(bestSMA, m.SMACoeffs)
			noImprove = 0
		} else {
			noImprove++
		}
		if noImprove > 20 {
			break
		}

		arGrad := make([]float64, o.P)
		maGrad := make([]float64, o.Q)
		sarGrad := make([]float64, o.SP)
		smaGrad := make([]float64, o.SQ)

		for t := startIdx; t < n; t++ {
			for i := 0; i < o.P && t-i-1 >= 0; i++ {
				arGrad[i] -= 2 * residuals[t] * (y[t-i-1] - m.Intercept)
			}
			for i := 0; i < o.SP; i++ {
				lag := (i + 1) * o.S
				if t-lag >= 0 {
					sarGrad[i] -= 2 * residuals[t] * (y[t-lag] - m.Intercept)
				}
			}
			for i := 0; i < o.Q && t-i-1 >= 0; i++ {
				maGrad[i] -= 2 * residuals[t] * residuals[t-i-1]
			}
			for i := 0; i < o.SQ; i++ {
				lag := (i + 1) * o.S
				if t-lag >= 0 {
					smaGrad[i] -= 2 * residuals[t] * residuals[t-lag]
				}
			}
		}

		for i := 0; i < o.P; i++ {
			arMomentum[i] = momentum*arMomentum[i] + learningRate*arGrad[i]/float64(n)
			m.ARCoeffs[i] = clamp(m.ARCoeffs[i]-arMomentum[i], -0.99, 0.99)
		}
		for i := 0; i < o.SP; i++ {
			sarMomentum[i] = momentum*sarMomentum[i] + learningRate*sarGrad[i]/float64(n)
			m.SARCoeffs[i] = clamp(m.SARCoeffs[i]-sarMomentum[i], -0.99, 0.99)
		}
		for i := 0; i < o.Q; i++ {
			maMomentum[i] = momentum*maMomentum[i] + learningRate*maGrad[i]/float64(n)
			m.MACoeffs[i] = clamp(m.MACoeffs[i]-maMomentum[i], -0.99, 0.99)
		}
		for i := 0; i < o.SQ; i++ {
			smaMomentum[i] = momentum*smaMomentum[i] + learningRate*smaGrad[i]/float64(n)
			m.SMACoeffs[i] = clamp(m.SMACoeffs[i]-smaMomentum[i], -0.99, 0.99)
		}

		learningRate *= decay

		if iter > 0 && math.Abs(currentSSE-bestSSE) < tolerance {
			break
		}
	}

	copy(m.ARCoeffs, bestAR)
	copy(m.MACoeffs, bestMA)
	copy(m.SARCoeffs, bestSAR)
	copy(m.SMACoeffs, bestSMA)

	m.residuals = make([]float64, n)
	for t := 0; t < n; t++ {
		m.residuals[t] = y[t] - m.predictAt(t, y, m.residuals)
	}

	sse := 0.0
	count := 0
	for t := startIdx; t < n; t++ {
		sse += m.residuals[t] * m.residuals[t]
		count++
	}
	if count > o.NumParams() {
		m.Variance = sse / float64(count-o.NumParams())
	} else if count > 0 {
		m.Variance = sse / float64(count)
	}

	return nil
}

// calculateIC computes AIC, AICc, and BIC from the residuals under a
// Gaussian likelihood.
func (m *Model) calculateIC() {
	n := len(m.residuals)
	k := m.Order.NumParams()

	sse := 0.0
	for _, r := range m.residuals {
		sse += r * r
	}

	if m.Variance > 0 {
		m.LogLik = -float64(n)/2*math.Log(2*math.Pi) - float64(n)/2*math.Log(m.Variance) - sse/(2*m.Variance)
	} else {
		m.LogLik = math.Inf(-1)
	}

	kf, nf := float64(k), float64(n)
	m.AIC = -2*m.LogLik + 2*kf
	if nf-kf-1 > 0 {
		m.AICc = m.AIC + 2*kf*(kf+1)/(nf-kf-1)
	} else {
		m.AICc = math.Inf(1)
	}
	m.BIC = -2*m.LogLik + kf*math.Log(nf)
}

// computeFittedOriginal maps the one-step predictions from the differenced
// scale back onto the original price scale.
//
// Differencing is linear with unit coefficient on y_t, so the one-step
// prediction error is identical on both scales: fitted[t] equals
// actual[t] minus the residual at the aligned differenced index. The first
// WarmupLen observations have no differenced counterpart and stay NaN.
func (m *Model) computeFittedOriginal() {
	offset := m.Order.WarmupLen()
	n := len(m.data)

	m.fittedVals = make([]float64, n)
	for t := 0; t < n; t++ {
		if t < offset || t-offset >= len(m.residuals) {
			m.fittedVals[t] = math.NaN()
			continue
		}
		m.fittedVals[t] = m.data[t] - m.residuals[t-offset]
	}
}

// FittedValues returns in-sample one-step predictions on the original
// scale, aligned to the input series. Warm-up entries are NaN.
func (m *Model) FittedValues() []float64 {
	if !m.fitted {
		return nil
	}
	out := make([]float64, len(m.fittedVals))
	copy(out, m.fittedVals)
	return out
}

// Residuals returns the residuals on the differenced scale.
func (m *Model) Residuals() []float64 {
	if !m.fitted {
		return nil
	}
	out := make([]float64, len(m.residuals))
	copy(out, m.residuals)
	return out
}

// Forecast produces point forecasts for steps future observations on the
// original scale, starting immediately after the last observed index.
func (m *Model) Forecast(steps int) ([]float64, error) {
	forecasts, _, _, err := m.ForecastWithInterval(steps, 0.95)
	return forecasts, err
}

// ForecastWithInterval produces point forecasts together with approximate
// lower/upper bounds at the given confidence level.
func (m *Model) ForecastWithInterval(steps int, confidence float64) (forecasts, lower, upper []float64, err error) {
	if !m.fitted {
		return nil, nil, nil, errors.New("sarima: model must be fitted before forecasting")
	}
	if steps < 1 {
		return nil, nil, nil, errors.New("sarima: steps must be at least 1")
	}
	if confidence <= 0 || confidence >= 1 {
		confidence = 0.95
	}

	o := m.Order
	y := m.diffData
	n := len(y)

	extY := make([]float64, n+steps)
	copy(extY, y)
	extResiduals := make([]float64, n+steps)
	copy(extResiduals, m.residuals)

	for h := 0; h < steps; h++ {
		t := n + h
		pred := m.Intercept

		for i := 0; i < o.P && t-i-1 >= 0; i++ {
			pred += m.ARCoeffs[i] * (extY[t-i-1] - m.Intercept)
		}
		for i := 0; i < o.SP; i++ {
			lag := (i + 1) * o.S
			if t-lag >= 0 {
				pred += m.SARCoeffs[i] * (extY[t-lag] - m.Intercept)
			}
		}
		// Future residuals have expectation zero; only observed ones enter.
		for i := 0; i < o.Q && t-i-1 >= 0 && t-i-1 < n; i++ {
			pred += m.MACoeffs[i] * extResiduals[t-i-1]
		}
		for i := 0; i < o.SQ; i++ {
			lag := (i + 1) * o.S
			if t-lag >= 0 && t-lag < n {
				pred += m.SMACoeffs[i] * extResiduals[t-lag]
			}
		}

		extY[t] = pred
		extResiduals[t] = 0
	}

	forecasts = make([]float64, steps)
	copy(forecasts, extY[n:])
	forecasts = m.integrate(forecasts)

	z := normalQuantile((1 + confidence) / 2)
	lower = make([]float64, steps)
	upper = make([]float64, steps)
	for h := 0; h < steps; h++ {
		se := math.Sqrt(m.Variance)
		growth := 1.0
		if o.D > 0 {
			growth *= math.Sqrt(float64(h + 1))
		}
		if o.SD > 0 && o.S > 0 {
			growth *= math.Sqrt(float64(h/o.S + 1))
		}
		se *= growth
		lower[h] = forecasts[h] - z*se
		upper[h] = forecasts[h] + z*se
	}

	return forecasts, lower, upper, nil
}

// integrate undoes the differencing applied in Fit. Fit differences
// non-seasonally first and seasonally second, so integration reverses the
// order: seasonal first, then non-seasonal.
func (m *Model) integrate(forecasts []float64) []float64 {
	o := m.Order
	original := m.data

	result := make([]float64, len(forecasts))
	copy(result, forecasts)

	// levels[i] is the series after i non-seasonal differences; the
	// seasonal integration anchors on levels[D], the scale the seasonal
	// differencing acted on, and each non-seasonal integration pass
	// anchors on the last value of the level it restores.
	levels := make([][]float64, o.D+1)
	levels[0] = original
	for i := 1; i <= o.D; i++ {
		levels[i] = timeseries.Diff(levels[i-1])
	}

	if o.SD > 0 && o.S > 0 {
		nonSeasonal := levels[o.D]
		nDiff := len(nonSeasonal)
		for i := 0; i < o.SD; i++ {
			for j := 0; j < len(result); j++ {
				if j < o.S {
					idx := nDiff - o.S + j
					if idx >= 0 && idx < nDiff {
						result[j] += nonSeasonal[idx]
					}
				} else {
					result[j] += result[j-o.S]
				}
			}
		}
	}

	for i := o.D; i >= 1; i-- {
		prev := levels[i-1]
		lastVal := prev[len(prev)-1]
		for j := 0; j < len(result); j++ {
			if j == 0 {
				result[j] += lastVal
			} else {
				result[j] += result[j-1]
			}
		}
	}

	return result
}

// normalQuantile returns the standard normal quantile for probability p
// using the Abramowitz-Stegun rational approximation.
func normalQuantile(p float64) float64 {
	if p <= 0 || p >= 1 {
		return 0
	}
	if p < 0.5 {
		return -normalQuantile(1 - p)
	}

	t := math.Sqrt(-2 * math.Log(1-p))
	c0, c1, c2 := 2.515517, 0.802853, 0.010328
	d1, d2, d3 := 1.432788, 0.189269, 0.001308
	return t - (c0+c1*t+c2*t*t)/(1+d1*t+d2*t*t+d3*t*t*t)
}

func clamp(v, lower, upper float64) float64 {
	if v < lower {
		return lower
	}
	if v > upper {
		return upper
	}
	return v
}
