package ml

import "sort"

// Metrics summarises binary classification quality on the held-out split.
// Precision, recall and F1 are for the positive (up) class.
type Metrics struct {
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	TrainRows int     `json:"train_rows"`
	TestRows  int     `json:"test_rows"`
	Positives int     `json:"positives"`
}

// Evaluate compares predicted up-probabilities against labels at the 0.5
// decision boundary.
func Evaluate(probs []float64, labels []int) Metrics {
	var tp, tn, fp, fn int
	for i, p := range probs {
		predicted := 0
		if p >= 0.5 {
			predicted = 1
		}
		switch {
		case predicted == 1 && labels[i] == 1:
			tp++
		case predicted == 1 && labels[i] == 0:
			fp++
		case predicted == 0 && labels[i] == 0:
			tn++
		default:
			fn++
		}
	}

	m := Metrics{TestRows: len(labels), Positives: tp + fn}
	if len(labels) > 0 {
		m.Accuracy = float64(tp+tn) / float64(len(labels))
	}
	if tp+fp > 0 {
		m.Precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		m.Recall = float64(tp) / float64(tp+fn)
	}
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	return m
}

// FeatureImportance pairs a feature name with its share of total split gain.
type FeatureImportance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// RankImportance normalises raw gains to sum to one and sorts descending.
func RankImportance(features []string, gains []float64) []FeatureImportance {
	total := 0.0
	for _, g := range gains {
		total += g
	}

	out := make([]FeatureImportance, 0, len(features))
	for i, name := range features {
		if i >= len(gains) {
			break
		}
		imp := 0.0
		if total > 0 {
			imp = gains[i] / total
		}
		out = append(out, FeatureImportance{Feature: name, Importance: imp})
	}
	sort.Slice(out, func(a, b int) bool {
		return out[a].Importance > out[b].Importance
	})
	return out
}
