package features

import "math"

// zeroScaleTolerance treats near-zero spreads as constant columns.
const zeroScaleTolerance = 1e-12

// Scaler standardizes numeric columns: (x - mean) / scale.
type Scaler struct {
	Mean  []float64
	Scale []float64
}

// FitScaler computes the population mean and standard deviation of each column.
// A constant column gets scale 1 so it maps to zero instead of dividing by zero.
func FitScaler(cols [][]float64) *Scaler {
	s := &Scaler{
		Mean:  make([]float64, len(cols)),
		Scale: make([]float64, len(cols)),
	}

	for j, col := range cols {
		if len(col) == 0 {
			s.Scale[j] = 1
			continue
		}

		n := float64(len(col))
		var sum float64
		for _, x := range col {
			sum += x
		}
		mean := sum / n

		var ss float64
		for _, x := range col {
			d := x - mean
			ss += d * d
		}
		scale := math.Sqrt(ss / n)

		if scale < zeroScaleTolerance*math.Max(1, math.Abs(mean)) {
			scale = 1
		}

		s.Mean[j] = mean
		s.Scale[j] = scale
	}

	return s
}

// Apply standardizes x as column j.
func (s *Scaler) Apply(j int, x float64) float64 {
	return (x - s.Mean[j]) / s.Scale[j]
}
