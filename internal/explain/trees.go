package explain

import (
	"fmt"
	"image/color"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/learner/internal/automl"
	"github.com/banshee-data/learner/internal/plots"
)

// DefaultMaxDepth is the deepest level drawn; deeper subtrees are collapsed.
const DefaultMaxDepth = 4

var (
	edgeColor = color.RGBA{R: 120, G: 120, B: 120, A: 255}
	pathColor = color.RGBA{R: 200, G: 30, B: 30, A: 255}
)

// TreeOptions bounds how much of the ensemble is drawn. A zero MaxTrees
// draws every estimator.
type TreeOptions struct {
	MaxDepth int
	MaxTrees int
}

func (o TreeOptions) withDefaults() TreeOptions {
	if o.MaxDepth <= 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	return o
}

// placed is a node position in the drawing.
type placed struct {
	node      int
	parent    int
	x, y      float64
	truncated bool
}

// layout places leaves left to right and centres parents over children.
// Nodes deeper than maxDepth are folded into their ancestor.
func layout(t *automl.Tree, maxDepth int) (nodes []placed, width int) {
	var place func(i, parent, depth int) float64
	place = func(i, parent, depth int) float64 {
		n := &t.Nodes[i]
		if n.IsLeaf() || depth == maxDepth {
			x := float64(width)
			width++
			nodes = append(nodes, placed{node: i, parent: parent, x: x, y: -float64(depth), truncated: !n.IsLeaf()})
			return x
		}
		at := len(nodes)
		nodes = append(nodes, placed{node: i, parent: parent, y: -float64(depth)})
		l := place(n.Left, i, depth+1)
		r := place(n.Right, i, depth+1)
		nodes[at].x = (l + r) / 2
		return nodes[at].x
	}
	place(0, -1, 0)
	return nodes, width
}

// decisionPath lists the nodes visited by x.
func decisionPath(t *automl.Tree, x []float64) map[int]bool {
	path := map[int]bool{0: true}
	i := 0
	for !t.Nodes[i].IsLeaf() {
		n := &t.Nodes[i]
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
		path[i] = true
	}
	return path
}

func nodeText(t *automl.Tree, p placed, names, labels []string) string {
	n := &t.Nodes[p.node]
	var head string
	switch {
	case p.truncated:
		head = "...\n"
	case !n.IsLeaf():
		name := "x" + strconv.Itoa(n.Feature)
		if n.Feature < len(names) {
			name = names[n.Feature]
		}
		head = fmt.Sprintf("%s <= %.3g\n", name, n.Threshold)
	}
	body := fmt.Sprintf("samples = %d", n.Samples)
	if len(n.Value) > 1 {
		best := 0
		for k, v := range n.Value {
			if v > n.Value[best] {
				best = k
			}
		}
		return head + body + "\nclass = " + label(labels, best)
	}
	return head + body + fmt.Sprintf("\nvalue = %.3g", n.Value[0])
}

func label(labels []string, k int) string {
	if k < len(labels) {
		return labels[k]
	}
	return strconv.Itoa(k)
}

// renderTree draws one tree and highlights the decision path of x.
func renderTree(t *automl.Tree, x []float64, names, labels []string, maxDepth int) ([]byte, error) {
	nodes, leaves := layout(t, maxDepth)
	path := decisionPath(t, x)

	pos := make(map[int]plotter.XY, len(nodes))
	depth := 0.0
	for _, p := range nodes {
		pos[p.node] = plotter.XY{X: p.x, Y: p.y}
		depth = min(depth, p.y)
	}

	pl := plot.New()
	pl.HideAxes()
	for _, p := range nodes {
		if p.parent < 0 {
			continue
		}
		edge, err := plotter.NewLine(plotter.XYs{pos[p.parent], pos[p.node]})
		if err != nil {
			return nil, err
		}
		edge.Color = edgeColor
		edge.Width = vg.Points(1)
		if path[p.parent] && path[p.node] {
			edge.Color = pathColor
			edge.Width = vg.Points(2.5)
		}
		pl.Add(edge)
	}

	xys := make(plotter.XYs, len(nodes))
	texts := make([]string, len(nodes))
	for i, p := range nodes {
		xys[i] = pos[p.node]
		texts[i] = nodeText(t, p, names, labels)
	}
	lbls, err := plotter.NewLabels(plotter.XYLabels{XYs: xys, Labels: texts})
	if err != nil {
		return nil, err
	}
	for i := range lbls.TextStyle {
		lbls.TextStyle[i].XAlign = text.XCenter
		lbls.TextStyle[i].YAlign = text.YCenter
	}
	pl.Add(lbls)

	pl.X.Min, pl.X.Max = -0.7, float64(leaves)-0.3
	pl.Y.Min, pl.Y.Max = depth-0.6, 0.6
	w := vg.Length(min(max(float64(leaves)*1.6, 6), 40)) * vg.Inch
	h := vg.Length(-depth+1)*1.3*vg.Inch + vg.Inch/2
	return plots.EncodePNG(pl, w, h)
}

// TreeImages renders one PNG per estimator, or the first MaxTrees when set. The decision
// path of the first holdout row is highlighted in each tree.
func TreeImages(in Input, o TreeOptions) ([][]byte, error) {
	te, err := ensemble(in.Model)
	if err != nil {
		return nil, err
	}
	if r, _ := in.X.Dims(); r == 0 {
		return nil, fmt.Errorf("tree images need at least one holdout row")
	}
	o = o.withDefaults()
	trees := te.Estimators()
	if o.MaxTrees > 0 && len(trees) > o.MaxTrees {
		trees = trees[:o.MaxTrees]
	}
	x := in.X.RawRowView(0)
	out := make([][]byte, 0, len(trees))
	for i, t := range trees {
		png, err := renderTree(t, x, in.FeatureNames, in.Labels, o.MaxDepth)
		if err != nil {
			return out, fmt.Errorf("tree %d: %w", i+1, err)
		}
		out = append(out, png)
	}
	return out, nil
}
