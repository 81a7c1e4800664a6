package regression

import "math"

// R2 returns the coefficient of determination.
// A constant target scores 1 when predicted exactly and 0 otherwise.
func R2(y, pred []float64) float64 {
	if len(y) == 0 {
		return 0
	}

	var mean float64
	for _, v := range y {
		mean += v
	}
	mean /= float64(len(y))

	var ssRes, ssTot float64
	for i, v := range y {
		r := v - pred[i]
		ssRes += r * r
		d := v - mean
		ssTot += d * d
	}

	if ssTot == 0 {
		if ssRes == 0 {
			return 1
		}
		return 0
	}
	return 1 - ssRes/ssTot
}

// MSE returns the mean squared error.
func MSE(y, pred []float64) float64 {
	if len(y) == 0 {
		return 0
	}
	var sum float64
	for i, v := range y {
		r := v - pred[i]
		sum += r * r
	}
	return sum / float64(len(y))
}

// RMSE returns the root mean squared error.
func RMSE(y, pred []float64) float64 {
	return math.Sqrt(MSE(y, pred))
}

// Score holds accuracy metrics for one subset.
type Score struct {
	R2   float64
	MSE  float64
	RMSE float64
	Rows int
}

// Evaluate scores the model on rows X with targets y.
func Evaluate(m *Model, X [][]float64, y []float64) Score {
	pred := m.PredictAll(X)
	mse := MSE(y, pred)
	return Score{
		R2:   R2(y, pred),
		MSE:  mse,
		RMSE: math.Sqrt(mse),
		Rows: len(y),
	}
}
