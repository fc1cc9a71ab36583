package ml

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// TreeNode is one node of a regression tree in the flattened array layout the
// model serialises to. Leaf nodes carry the output value; internal nodes the
// split and child indices.
type TreeNode struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Value     float64 `json:"value"`
	Leaf      bool    `json:"leaf"`
}

// RegressionTree predicts a real-valued score from a feature vector.
type RegressionTree struct {
	Nodes []TreeNode `json:"nodes"`
}

// Predict walks the tree for one row.
func (t *RegressionTree) Predict(row []float64) float64 {
	i := 0
	for {
		node := t.Nodes[i]
		if node.Leaf {
			return node.Value
		}
		if row[node.Feature] < node.Threshold {
			i = node.Left
		} else {
			i = node.Right
		}
	}
}

// GBDT is a gradient boosted tree ensemble with logistic loss for binary
// direction classification. Each round fits a regression tree to the
// gradients, with row subsampling and per-tree feature sampling.
type GBDT struct {
	Params       GBDTParams       `json:"params"`
	Trees        []RegressionTree `json:"trees"`
	BaseScore    float64          `json:"base_score"`
	FeatureCount int              `json:"feature_count"`
	BestRound    int              `json:"best_round"`

	gains []float64
}

func NewGBDT(params GBDTParams) *GBDT {
	return &GBDT{Params: params}
}

// Fit trains on the scaled training split. The validation split drives early
// stopping; pass empty slices to train the full round budget.
func (g *GBDT) Fit(trainX [][]float64, trainY []int, valX [][]float64, valY []int) error {
	if len(trainX) == 0 {
		return fmt.Errorf("gbdt: empty training set")
	}
	if len(trainX) != len(trainY) {
		return fmt.Errorf("gbdt: %d rows vs %d labels", len(trainX), len(trainY))
	}

	g.FeatureCount = len(trainX[0])
	g.gains = make([]float64, g.FeatureCount)
	g.Trees = g.Trees[:0]

	// Base score is the log-odds of the positive rate, clamped away from
	// degenerate all-one or all-zero label sets.
	pos := 0
	for _, y := range trainY {
		if y == 1 {
			pos++
		}
	}
	rate := clamp(float64(pos)/float64(len(trainY)), 0.01, 0.99)
	g.BaseScore = math.Log(rate / (1 - rate))

	rng := rand.New(rand.NewSource(g.Params.Seed))

	scores := make([]float64, len(trainX))
	for i := range scores {
		scores[i] = g.BaseScore
	}
	valScores := make([]float64, len(valX))
	for i := range valScores {
		valScores[i] = g.BaseScore
	}

	grad := make([]float64, len(trainX))
	hess := make([]float64, len(trainX))

	bestLoss := math.Inf(1)
	sinceBest := 0
	g.BestRound = 0

	for round := 0; round < g.Params.NEstimators; round++ {
		for i := range trainX {
			p := sigmoid(scores[i])
			grad[i] = p - float64(trainY[i])
			hess[i] = p * (1 - p)
		}

		rows := sampleRows(len(trainX), g.Params.Subsample, rng)
		features := sampleFeatures(g.FeatureCount, g.Params.ColsampleByTree, rng)

		tree := g.buildTree(trainX, grad, hess, rows, features)
		g.Trees = append(g.Trees, tree)

		for i, row := range trainX {
			scores[i] += g.Params.LearningRate * tree.Predict(row)
		}

		if len(valX) == 0 {
			g.BestRound = round + 1
			continue
		}

		loss := 0.0
		for i, row := range valX {
			valScores[i] += g.Params.LearningRate * tree.Predict(row)
			p := clamp(sigmoid(valScores[i]), 1e-7, 1-1e-7)
			if valY[i] == 1 {
				loss -= math.Log(p)
			} else {
				loss -= math.Log(1 - p)
			}
		}
		loss /= float64(len(valX))

		if loss < bestLoss-1e-6 {
			bestLoss = loss
			g.BestRound = round + 1
			sinceBest = 0
		} else {
			sinceBest++
			if g.Params.EarlyStopping > 0 && sinceBest >= g.Params.EarlyStopping {
				break
			}
		}
	}

	if g.BestRound > 0 && g.BestRound < len(g.Trees) {
		g.Trees = g.Trees[:g.BestRound]
	}
	return nil
}

// PredictProb returns P(direction up) for one scaled feature vector.
func (g *GBDT) PredictProb(row []float64) (float64, error) {
	if len(row) != g.FeatureCount {
		return 0, fmt.Errorf("gbdt: row has %d features, model expects %d", len(row), g.FeatureCount)
	}
	score := g.BaseScore
	for i := range g.Trees {
		score += g.Params.LearningRate * g.Trees[i].Predict(row)
	}
	return sigmoid(score), nil
}

// FeatureGains returns total split gain per feature index, accumulated during
// training. Zero for loaded models that were not trained in this process.
func (g *GBDT) FeatureGains() []float64 {
	out := make([]float64, len(g.gains))
	copy(out, g.gains)
	return out
}

type splitCandidate struct {
	feature   int
	threshold float64
	gain      float64
	leftRows  []int
	rightRows []int
}

// buildTree grows one depth-limited regression tree on the sampled rows.
func (g *GBDT) buildTree(x [][]float64, grad, hess []float64, rows, features []int) RegressionTree {
	tree := RegressionTree{}
	g.growNode(&tree, x, grad, hess, rows, features, 0)
	return tree
}

// growNode appends the node for rows and recurses. Returns the node index.
func (g *GBDT) growNode(tree *RegressionTree, x [][]float64, grad, hess []float64, rows, features []int, depth int) int {
	sumG, sumH := 0.0, 0.0
	for _, i := range rows {
		sumG += grad[i]
		sumH += hess[i]
	}

	idx := len(tree.Nodes)
	tree.Nodes = append(tree.Nodes, TreeNode{})

	if depth >= g.Params.MaxDepth || sumH < 2*g.Params.MinChildWeight || len(rows) < 2 {
		tree.Nodes[idx] = g.leafNode(sumG, sumH)
		return idx
	}

	best := g.bestSplit(x, grad, hess, rows, features, sumG, sumH)
	if best == nil {
		tree.Nodes[idx] = g.leafNode(sumG, sumH)
		return idx
	}
	g.gains[best.feature] += best.gain

	left := g.growNode(tree, x, grad, hess, best.leftRows, features, depth+1)
	right := g.growNode(tree, x, grad, hess, best.rightRows, features, depth+1)
	tree.Nodes[idx] = TreeNode{
		Feature:   best.feature,
		Threshold: best.threshold,
		Left:      left,
		Right:     right,
	}
	return idx
}

func (g *GBDT) leafNode(sumG, sumH float64) TreeNode {
	return TreeNode{Leaf: true, Value: -softThreshold(sumG, g.Params.Alpha) / (sumH + g.Params.Lambda)}
}

func (g *GBDT) splitScore(sumG, sumH float64) float64 {
	t := softThreshold(sumG, g.Params.Alpha)
	return t * t / (sumH + g.Params.Lambda)
}

// softThreshold applies the L1 shrinkage to a gradient sum.
func softThreshold(g, alpha float64) float64 {
	switch {
	case g > alpha:
		return g - alpha
	case g < -alpha:
		return g + alpha
	default:
		return 0
	}
}

// bestSplit scans each sampled feature for the gain-maximising threshold.
func (g *GBDT) bestSplit(x [][]float64, grad, hess []float64, rows, features []int, sumG, sumH float64) *splitCandidate {
	parentScore := g.splitScore(sumG, sumH)

	var best *splitCandidate
	sorted := make([]int, len(rows))

	for _, f := range features {
		copy(sorted, rows)
		sort.Slice(sorted, func(a, b int) bool {
			return x[sorted[a]][f] < x[sorted[b]][f]
		})

		leftG, leftH := 0.0, 0.0
		for k := 0; k < len(sorted)-1; k++ {
			i := sorted[k]
			leftG += grad[i]
			leftH += hess[i]

			// No split between identical feature values.
			if x[sorted[k]][f] == x[sorted[k+1]][f] {
				continue
			}

			rightG := sumG - leftG
			rightH := sumH - leftH
			if leftH < g.Params.MinChildWeight || rightH < g.Params.MinChildWeight {
				continue
			}

			gain := g.splitScore(leftG, leftH) + g.splitScore(rightG, rightH) - parentScore
			if gain <= 1e-6 {
				continue
			}
			if best == nil || gain > best.gain {
				best = &splitCandidate{
					feature:   f,
					threshold: (x[sorted[k]][f] + x[sorted[k+1]][f]) / 2,
					gain:      gain,
					leftRows:  append([]int(nil), sorted[:k+1]...),
					rightRows: append([]int(nil), sorted[k+1:]...),
				}
			}
		}
	}
	return best
}

func sampleRows(n int, fraction float64, rng *rand.Rand) []int {
	if fraction >= 1 || fraction <= 0 {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out
	}
	k := int(float64(n) * fraction)
	if k < 2 {
		k = n
	}
	perm := rng.Perm(n)[:k]
	sort.Ints(perm)
	return perm
}

func sampleFeatures(n int, fraction float64, rng *rand.Rand) []int {
	if fraction >= 1 || fraction <= 0 {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out
	}
	k := int(float64(n) * fraction)
	if k < 1 {
		k = 1
	}
	perm := rng.Perm(n)[:k]
	sort.Ints(perm)
	return perm
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
