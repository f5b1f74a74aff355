package training

import "math"

// Score computes RMSE, MAE and R² of pred against truth. A constant truth gives
// R² of 1 for a perfect fit and 0 otherwise.
func Score(truth, pred []float64) (rmse, mae, r2 float64) {
	n := float64(len(truth))
	if n == 0 {
		return 0, 0, 0
	}
	var mean float64
	for _, v := range truth {
		mean += v
	}
	mean /= n

	var ssRes, ssTot, absSum float64
	for i, v := range truth {
		d := v - pred[i]
		ssRes += d * d
		absSum += math.Abs(d)
		m := v - mean
		ssTot += m * m
	}
	rmse = math.Sqrt(ssRes / n)
	mae = absSum / n
	switch {
	case ssTot > 0:
		r2 = 1 - ssRes/ssTot
	case ssRes == 0:
		r2 = 1
	}
	return rmse, mae, r2
}
