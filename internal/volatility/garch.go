package volatility

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
)

// garchParams holds the fitted GARCH(1,1) parameters with a constant mean:
//
//	r_t = mu + e_t,  e_t ~ N(0, h_t)
//	h_t = omega + alpha*e_{t-1}^2 + beta*h_{t-1}
type garchParams struct {
	Mu    float64
	Omega float64
	Alpha float64
	Beta  float64
}

// maxPersistence keeps alpha+beta strictly inside the stationary region.
const maxPersistence = 0.999

// fitGARCH fits the model to residuals by maximum likelihood with normal
// innovations. The optimizer works on transformed parameters so omega stays
// positive and alpha+beta stays below one for any candidate point.
func fitGARCH(res []float64) (garchParams, []float64, error) {
	if len(res) == 0 {
		return garchParams{}, nil, errors.New("garch: empty residual series")
	}

	mean := stat.Mean(res, nil)
	variance := stat.Variance(res, nil)
	if variance <= 0 || math.IsNaN(variance) {
		variance = 1e-6
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			return negLogLikelihood(res, decodeParams(x), variance)
		},
	}
	x0 := encodeParams(garchParams{
		Mu:    mean,
		Omega: 0.05 * variance,
		Alpha: 0.10,
		Beta:  0.85,
	})

	// A best-effort point is still usable when the converger gives up, so
	// only a nil result is fatal.
	result, err := optimize.Minimize(problem, x0, nil, &optimize.NelderMead{})
	if result == nil {
		return garchParams{}, nil, err
	}

	params := decodeParams(result.X)
	return params, conditionalSigma(res, params, variance), nil
}

// conditionalSigma runs the variance recursion and returns sqrt(h_t) at
// every residual timestamp.
func conditionalSigma(res []float64, p garchParams, h0 float64) []float64 {
	sigma := make([]float64, len(res))
	h := h0
	for t := range res {
		if t > 0 {
			e := res[t-1] - p.Mu
			h = p.Omega + p.Alpha*e*e + p.Beta*h
		}
		if h <= 0 || math.IsNaN(h) {
			h = 1e-12
		}
		sigma[t] = math.Sqrt(h)
	}
	return sigma
}

func negLogLikelihood(res []float64, p garchParams, h0 float64) float64 {
	h := h0
	nll := 0.0
	for t, r := range res {
		if t > 0 {
			e := res[t-1] - p.Mu
			h = p.Omega + p.Alpha*e*e + p.Beta*h
		}
		if h <= 0 || math.IsNaN(h) {
			return 1e12
		}
		e := r - p.Mu
		nll += 0.5 * (math.Log(h) + e*e/h)
	}
	if math.IsNaN(nll) || math.IsInf(nll, 0) {
		return 1e12
	}
	return nll
}

// decodeParams maps unconstrained optimizer coordinates to valid model
// parameters: x[0]=mu, x[1]=log(omega), x[2]=logit(persistence),
// x[3]=logit(alpha share of persistence).
func decodeParams(x []float64) garchParams {
	persistence := maxPersistence * sigmoid(x[2])
	share := sigmoid(x[3])
	return garchParams{
		Mu:    x[0],
		Omega: math.Exp(x[1]),
		Alpha: persistence * share,
		Beta:  persistence * (1 - share),
	}
}

func encodeParams(p garchParams) []float64 {
	persistence := p.Alpha + p.Beta
	return []float64{
		p.Mu,
		math.Log(p.Omega),
		logit(persistence / maxPersistence),
		logit(p.Alpha / persistence),
	}
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func logit(p float64) float64 {
	return math.Log(p / (1 - p))
}
