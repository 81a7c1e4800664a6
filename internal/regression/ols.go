package regression

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrNoRows is returned when fitting on an empty design matrix.
	ErrNoRows = errors.New("no rows to fit")
	// ErrSingular is returned when the normal equations cannot be solved.
	ErrSingular = errors.New("singular system")
	// ErrShape is returned when rows and targets disagree in size.
	ErrShape = errors.New("shape mismatch")
)

// ridge keeps exactly collinear columns solvable. It is scaled by the largest
// diagonal entry of X'X so it stays negligible against real signal.
const ridge = 1e-10

// Model is an ordinary least squares fit: y = Intercept + Coefficients . x
type Model struct {
	Intercept    float64
	Coefficients []float64
}

// Predict evaluates the model, summing terms left to right.
func (m *Model) Predict(x []float64) float64 {
	result := m.Intercept
	for i, c := range m.Coefficients {
		result += c * x[i]
	}
	return result
}

// PredictAll evaluates the model for every row.
func (m *Model) PredictAll(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, x := range X {
		out[i] = m.Predict(x)
	}
	return out
}

// Fit solves least squares with an unpenalized intercept.
// Columns and target are centered, the normal equations X'X b = X'y are
// solved for the slopes, and the intercept is recovered from the means.
func Fit(X [][]float64, y []float64) (*Model, error) {
	n := len(X)
	if n == 0 {
		return nil, ErrNoRows
	}
	if len(y) != n {
		return nil, fmt.Errorf("%w: %d rows, %d targets", ErrShape, n, len(y))
	}

	p := len(X[0])
	for i, row := range X {
		if len(row) != p {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d", ErrShape, i, len(row), p)
		}
	}

	meanX := make([]float64, p)
	var meanY float64
	for i, row := range X {
		for j, v := range row {
			meanX[j] += v
		}
		meanY += y[i]
	}
	for j := range meanX {
		meanX[j] /= float64(n)
	}
	meanY /= float64(n)

	if p == 0 {
		return &Model{Intercept: meanY, Coefficients: []float64{}}, nil
	}

	// X'X and X'y over centered data
	xtx := make([][]float64, p)
	for i := range xtx {
		xtx[i] = make([]float64, p)
	}
	xty := make([]float64, p)

	centered := make([]float64, p)
	for i, row := range X {
		for j, v := range row {
			centered[j] = v - meanX[j]
		}
		dy := y[i] - meanY
		for a := 0; a < p; a++ {
			ca := centered[a]
			if ca == 0 {
				continue
			}
			for b := a; b < p; b++ {
				xtx[a][b] += ca * centered[b]
			}
			xty[a] += ca * dy
		}
	}
	for a := 0; a < p; a++ {
		for b := 0; b < a; b++ {
			xtx[a][b] = xtx[b][a]
		}
	}

	maxDiag := 0.0
	for i := 0; i < p; i++ {
		maxDiag = math.Max(maxDiag, xtx[i][i])
	}
	lambda := ridge * math.Max(maxDiag, 1)
	for i := 0; i < p; i++ {
		xtx[i][i] += lambda
	}

	coefs, err := solveLinearSystem(xtx, xty)
	if err != nil {
		return nil, err
	}

	intercept := meanY
	for j, c := range coefs {
		intercept -= c * meanX[j]
	}

	return &Model{Intercept: intercept, Coefficients: coefs}, nil
}

// solveLinearSystem solves Ax = b in place using Gaussian elimination with partial pivoting.
func solveLinearSystem(A [][]float64, b []float64) ([]float64, error) {
	n := len(b)
	if n == 0 || len(A) != n {
		return nil, fmt.Errorf("%w: %dx%d system", ErrShape, len(A), n)
	}

	for k := 0; k < n; k++ {
		maxIdx := k
		maxVal := math.Abs(A[k][k])
		for i := k + 1; i < n; i++ {
			if math.Abs(A[i][k]) > maxVal {
				maxIdx = i
				maxVal = math.Abs(A[i][k])
			}
		}

		if maxIdx != k {
			A[k], A[maxIdx] = A[maxIdx], A[k]
			b[k], b[maxIdx] = b[maxIdx], b[k]
		}

		if maxVal == 0 || math.IsNaN(maxVal) {
			return nil, fmt.Errorf("%w: zero pivot in column %d", ErrSingular, k)
		}

		for i := k + 1; i < n; i++ {
			factor := A[i][k] / A[k][k]
			if factor == 0 {
				continue
			}
			for j := k; j < n; j++ {
				A[i][j] -= factor * A[k][j]
			}
			b[i] -= factor * b[k]
		}
	}

	x := make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		x[i] = b[i]
		for j := i + 1; j < n; j++ {
			x[i] -= A[i][j] * x[j]
		}
		x[i] /= A[i][i]
	}

	for i, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: non-finite coefficient %d", ErrSingular, i)
		}
	}
	return x, nil
}
