package ml

import (
	"fmt"
	"math"
)

// StandardScaler centres and scales features with statistics fit on the
// training split only. Zero-variance columns pass through unscaled.
type StandardScaler struct {
	Means []float64 `json:"means"`
	Stds  []float64 `json:"stds"`
}

// Fit computes per-column mean and standard deviation.
func (s *StandardScaler) Fit(rows [][]float64) error {
	if len(rows) == 0 {
		return fmt.Errorf("scaler: no rows to fit")
	}
	cols := len(rows[0])
	s.Means = make([]float64, cols)
	s.Stds = make([]float64, cols)

	for j := 0; j < cols; j++ {
		mean := 0.0
		for _, row := range rows {
			mean += row[j]
		}
		mean /= float64(len(rows))

		variance := 0.0
		for _, row := range rows {
			d := row[j] - mean
			variance += d * d
		}
		std := math.Sqrt(variance / float64(len(rows)))

		s.Means[j] = mean
		if std > 0 {
			s.Stds[j] = std
		} else {
			s.Stds[j] = 1
		}
	}
	return nil
}

// Transform scales rows in place-safe copies.
func (s *StandardScaler) Transform(rows [][]float64) ([][]float64, error) {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		scaled, err := s.TransformRow(row)
		if err != nil {
			return nil, err
		}
		out[i] = scaled
	}
	return out, nil
}

// TransformRow scales a single feature vector.
func (s *StandardScaler) TransformRow(row []float64) ([]float64, error) {
	if len(row) != len(s.Means) {
		return nil, fmt.Errorf("scaler: row has %d features, fitted on %d", len(row), len(s.Means))
	}
	out := make([]float64, len(row))
	for j, v := range row {
		out[j] = (v - s.Means[j]) / s.Stds[j]
	}
	return out, nil
}
