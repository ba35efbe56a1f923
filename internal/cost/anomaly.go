package cost

import (
	"math"

	"github.com/shopspring/decimal"
)

// minAnomalyHistory is the fewest historical points needed to score.
const minAnomalyHistory = 3

// Anomaly is a z-score of one period's spend against earlier periods.
type Anomaly struct {
	Anomalous bool    `json:"anomalous"`
	ZScore    float64 `json:"z_score"`
	Mean      float64 `json:"mean"`
	StdDev    float64 `json:"std_dev"`
	Threshold float64 `json:"threshold"`
	Samples   int     `json:"samples"`
}

// DetectAnomaly scores current against history using the population
// standard deviation. Fewer than three points is never anomalous. With zero
// variance any deviation from the mean is anomalous.
func DetectAnomaly(current decimal.Decimal, history []decimal.Decimal, threshold float64) Anomaly {
	a := Anomaly{Threshold: threshold, Samples: len(history)}
	if len(history) < minAnomalyHistory {
		return a
	}

	values := make([]float64, len(history))
	var sum float64
	for i, h := range history {
		values[i] = h.InexactFloat64()
		sum += values[i]
	}
	a.Mean = sum / float64(len(values))

	var sq float64
	for _, v := range values {
		sq += (v - a.Mean) * (v - a.Mean)
	}
	a.StdDev = math.Sqrt(sq / float64(len(values)))

	c := current.InexactFloat64()
	switch {
	case a.StdDev == 0 && c == a.Mean:
		a.ZScore = 0
	case a.StdDev == 0:
		a.ZScore = math.Inf(1)
		if c < a.Mean {
			a.ZScore = math.Inf(-1)
		}
		a.Anomalous = true
	default:
		a.ZScore = (c - a.Mean) / a.StdDev
		a.Anomalous = math.Abs(a.ZScore) > threshold
	}
	return a
}
