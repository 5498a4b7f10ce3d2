package automl

import (
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Node is one node of a fitted tree. Leaves have Feature == -1. Value holds
// class probabilities for classification trees and the single predicted
// value for regression trees.
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     []float64
	Samples   int
	Impurity  float64
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool { return n.Feature < 0 }

// Tree is a binary CART tree stored as a flat node slice; node 0 is the root.
type Tree struct {
	Nodes     []Node
	Classes   int
	NFeatures int
}

// Leaf returns the index of the leaf reached by x.
func (t *Tree) Leaf(x []float64) int {
	i := 0
	for !t.Nodes[i].IsLeaf() {
		n := &t.Nodes[i]
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
	return i
}

// Value returns the leaf value for x.
func (t *Tree) Value(x []float64) []float64 {
	return t.Nodes[t.Leaf(x)].Value
}

// Depth returns the length of the longest root-to-leaf path.
func (t *Tree) Depth() int {
	var walk func(i int) int
	walk = func(i int) int {
		n := &t.Nodes[i]
		if n.IsLeaf() {
			return 0
		}
		return 1 + max(walk(n.Left), walk(n.Right))
	}
	return walk(0)
}

// Importances returns the impurity decrease attributed to each feature,
// weighted by node size and normalised to sum to one.
func (t *Tree) Importances() []float64 {
	imp := make([]float64, t.NFeatures)
	for i := range t.Nodes {
		n := &t.Nodes[i]
		if n.IsLeaf() {
			continue
		}
		l, r := &t.Nodes[n.Left], &t.Nodes[n.Right]
		imp[n.Feature] += float64(n.Samples)*n.Impurity - float64(l.Samples)*l.Impurity - float64(r.Samples)*r.Impurity
	}
	normalise(imp)
	return imp
}

func normalise(v []float64) {
	var sum float64
	for _, x := range v {
		sum += x
	}
	if sum <= 0 {
		return
	}
	for i := range v {
		v[i] /= sum
	}
}

type treeParams struct {
	classes         int // 0 for regression
	maxDepth        int // <= 0 means unlimited
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     int // <= 0 means all
	rng             *rand.Rand
}

type treeBuilder struct {
	X *mat.Dense
	y []float64
	p treeParams
	t *Tree
}

// growTree fits a CART tree on the rows listed in idx.
func growTree(X *mat.Dense, y []float64, idx []int, p treeParams) *Tree {
	_, nf := X.Dims()
	if p.minSamplesSplit < 2 {
		p.minSamplesSplit = 2
	}
	if p.minSamplesLeaf < 1 {
		p.minSamplesLeaf = 1
	}
	b := &treeBuilder{X: X, y: y, p: p, t: &Tree{Classes: p.classes, NFeatures: nf}}
	b.build(append([]int(nil), idx...), 0)
	return b.t
}

func (b *treeBuilder) leafValue(idx []int) ([]float64, float64) {
	if b.p.classes > 0 {
		counts := make([]float64, b.p.classes)
		for _, i := range idx {
			counts[int(b.y[i])]++
		}
		gini := 1.0
		n := float64(len(idx))
		for k := range counts {
			counts[k] /= n
			gini -= counts[k] * counts[k]
		}
		return counts, gini
	}
	var sum, sq float64
	for _, i := range idx {
		sum += b.y[i]
		sq += b.y[i] * b.y[i]
	}
	n := float64(len(idx))
	mean := sum / n
	return []float64{mean}, math.Max(sq/n-mean*mean, 0)
}

func (b *treeBuilder) build(idx []int, depth int) int {
	value, impurity := b.leafValue(idx)
	node := len(b.t.Nodes)
	b.t.Nodes = append(b.t.Nodes, Node{Feature: -1, Value: value, Samples: len(idx), Impurity: impurity})

	if impurity <= 1e-12 || len(idx) < b.p.minSamplesSplit || (b.p.maxDepth > 0 && depth >= b.p.maxDepth) {
		return node
	}
	feature, threshold, ok := b.bestSplit(idx, impurity)
	if !ok {
		return node
	}

	var left, right []int
	for _, i := range idx {
		if b.X.At(i, feature) <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	n := &b.t.Nodes[node]
	n.Feature, n.Threshold, n.Left, n.Right = feature, threshold, l, r
	return node
}

func (b *treeBuilder) candidateFeatures() []int {
	nf := b.t.NFeatures
	features := make([]int, nf)
	for i := range features {
		features[i] = i
	}
	if b.p.maxFeatures <= 0 || b.p.maxFeatures >= nf || b.p.rng == nil {
		return features
	}
	b.p.rng.Shuffle(nf, func(i, j int) { features[i], features[j] = features[j], features[i] })
	return features[:b.p.maxFeatures]
}

// bestSplit scans every candidate feature for the threshold with the lowest
// weighted child impurity.
func (b *treeBuilder) bestSplit(idx []int, parent float64) (int, float64, bool) {
	n := len(idx)
	bestFeature, bestThreshold := -1, 0.0
	bestScore := parent * float64(n)
	order := append([]int(nil), idx...)

	for _, f := range b.candidateFeatures() {
		sort.Slice(order, func(a, c int) bool { return b.X.At(order[a], f) < b.X.At(order[c], f) })

		var sc splitScorer
		if b.p.classes > 0 {
			sc = newGiniScorer(b.p.classes, b.y, order)
		} else {
			sc = newVarianceScorer(b.y, order)
		}
		for pos := 0; pos < n-1; pos++ {
			sc.move(b.y[order[pos]])
			lo, hi := b.X.At(order[pos], f), b.X.At(order[pos+1], f)
			if lo == hi {
				continue
			}
			nl := pos + 1
			if nl < b.p.minSamplesLeaf || n-nl < b.p.minSamplesLeaf {
				continue
			}
			if score := sc.score(); score < bestScore-1e-12 {
				bestScore = score
				bestFeature = f
				bestThreshold = lo + (hi-lo)/2
			}
		}
	}
	return bestFeature, bestThreshold, bestFeature >= 0
}

// splitScorer tracks a left/right partition as rows move from right to left
// and reports the size-weighted impurity of both sides.
type splitScorer interface {
	move(y float64)
	score() float64
}

type giniScorer struct {
	left, right []float64
	nl, nr      float64
}

func newGiniScorer(classes int, y []float64, idx []int) *giniScorer {
	s := &giniScorer{left: make([]float64, classes), right: make([]float64, classes)}
	for _, i := range idx {
		s.right[int(y[i])]++
	}
	s.nr = float64(len(idx))
	return s
}

func (s *giniScorer) move(y float64) {
	k := int(y)
	s.left[k]++
	s.right[k]--
	s.nl++
	s.nr--
}

func gini(counts []float64, n float64) float64 {
	if n == 0 {
		return 0
	}
	g := 1.0
	for _, c := range counts {
		p := c / n
		g -= p * p
	}
	return g
}

func (s *giniScorer) score() float64 {
	return s.nl*gini(s.left, s.nl) + s.nr*gini(s.right, s.nr)
}

type varianceScorer struct {
	sumL, sqL, nl float64
	sumR, sqR, nr float64
}

func newVarianceScorer(y []float64, idx []int) *varianceScorer {
	s := &varianceScorer{}
	for _, i := range idx {
		s.sumR += y[i]
		s.sqR += y[i] * y[i]
	}
	s.nr = float64(len(idx))
	return s
}

func (s *varianceScorer) move(y float64) {
	s.sumL += y
	s.sqL += y * y
	s.nl++
	s.sumR -= y
	s.sqR -= y * y
	s.nr--
}

func (s *varianceScorer) score() float64 {
	// n*var = sumsq - sum^2/n
	return (s.sqL - s.sumL*s.sumL/s.nl) + (s.sqR - s.sumR*s.sumR/s.nr)
}

// DecisionTree is a single CART tree. Classes > 0 selects classification.
type DecisionTree struct {
	Classes         int
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	Seed            uint64
	Tree            *Tree
}

func (m *DecisionTree) Fit(X *mat.Dense, y []float64) error {
	if err := checkFit(X, y); err != nil {
		return err
	}
	m.Tree = growTree(X, y, allRows(len(y)), treeParams{
		classes:         m.Classes,
		maxDepth:        m.MaxDepth,
		minSamplesSplit: m.MinSamplesSplit,
		minSamplesLeaf:  m.MinSamplesLeaf,
		rng:             newRand(m.Seed),
	})
	return nil
}

func (m *DecisionTree) Predict(X *mat.Dense) []float64 {
	if m.Classes > 0 {
		return argmaxRows(m.PredictProba(X))
	}
	r, _ := X.Dims()
	out := make([]float64, r)
	for i := range out {
		out[i] = m.Tree.Value(rowOf(X, i))[0]
	}
	return out
}

func (m *DecisionTree) PredictProba(X *mat.Dense) *mat.Dense {
	r, _ := X.Dims()
	out := mat.NewDense(r, m.Classes, nil)
	for i := 0; i < r; i++ {
		out.SetRow(i, m.Tree.Value(rowOf(X, i)))
	}
	return out
}

func (m *DecisionTree) TypeName() string {
	if m.Classes > 0 {
		return "DecisionTreeClassifier"
	}
	return "DecisionTreeRegressor"
}

func (m *DecisionTree) Params() []Param {
	criterion := "squared_error"
	if m.Classes > 0 {
		criterion = "gini"
	}
	return []Param{
		{"criterion", criterion},
		{"max_depth", noneOr(m.MaxDepth)},
		{"min_samples_leaf", itoa(m.MinSamplesLeaf)},
		{"min_samples_split", itoa(m.MinSamplesSplit)},
		{"random_state", ftoa(float64(m.Seed))},
	}
}

func (m *DecisionTree) Family() Family { return FamilyDecisionTree }

func (m *DecisionTree) FeatureImportances() []float64 { return m.Tree.Importances() }

func allRows(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

func argmaxRows(p *mat.Dense) []float64 {
	r, c := p.Dims()
	out := make([]float64, r)
	for i := 0; i < r; i++ {
		best := 0
		for j := 1; j < c; j++ {
			if p.At(i, j) > p.At(i, best) {
				best = j
			}
		}
		out[i] = float64(best)
	}
	return out
}
