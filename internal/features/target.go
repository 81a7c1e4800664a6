package features

import "math"

// LogTarget maps a complexity value into the space the model is fitted in.
func LogTarget(y float64) float64 {
	return math.Log1p(y)
}

// InverseLogTarget maps a prediction back from log space.
func InverseLogTarget(v float64) float64 {
	return math.Expm1(v)
}
