package automl

import "math/rand/v2"

// stratifiedSplit shuffles each class separately and puts trainSize of
// every class into the training set. Regression passes nil classes.
func stratifiedSplit(y []float64, classes bool, trainSize float64, rng *rand.Rand) (train, test []int) {
	for _, group := range groupRows(y, classes, rng) {
		cut := int(float64(len(group))*trainSize + 0.5)
		if len(group) > 1 {
			cut = min(max(cut, 1), len(group)-1)
		}
		train = append(train, group[:cut]...)
		test = append(test, group[cut:]...)
	}
	return train, test
}

// kFold assigns rows to k folds, dealing each class round-robin so that
// class proportions are kept. It returns the held-out rows of every fold.
func kFold(y []float64, classes bool, k int, rng *rand.Rand) [][]int {
	folds := make([][]int, k)
	next := 0
	for _, group := range groupRows(y, classes, rng) {
		for _, r := range group {
			folds[next%k] = append(folds[next%k], r)
			next++
		}
	}
	return folds
}

// groupRows returns shuffled row groups: one per class, or a single group
// for regression.
func groupRows(y []float64, classes bool, rng *rand.Rand) [][]int {
	if !classes {
		rows := allRows(len(y))
		rng.Shuffle(len(rows), func(i, j int) { rows[i], rows[j] = rows[j], rows[i] })
		return [][]int{rows}
	}
	byClass := map[int][]int{}
	maxClass := 0
	for i, v := range y {
		byClass[int(v)] = append(byClass[int(v)], i)
		maxClass = max(maxClass, int(v))
	}
	var groups [][]int
	for k := 0; k <= maxClass; k++ {
		g := byClass[k]
		if len(g) == 0 {
			continue
		}
		rng.Shuffle(len(g), func(i, j int) { g[i], g[j] = g[j], g[i] })
		groups = append(groups, g)
	}
	return groups
}

func complement(n int, held []int) []int {
	out := make([]bool, n)
	for _, r := range held {
		out[r] = true
	}
	var rest []int
	for i, h := range out {
		if !h {
			rest = append(rest, i)
		}
	}
	return rest
}

// oversample duplicates random rows of minority classes until every class
// matches the majority count.
func oversample(y []float64, classes int, rng *rand.Rand) []int {
	byClass := make([][]int, classes)
	for i, v := range y {
		byClass[int(v)] = append(byClass[int(v)], i)
	}
	target := 0
	for _, g := range byClass {
		target = max(target, len(g))
	}
	rows := allRows(len(y))
	for _, g := range byClass {
		for n := len(g); n > 0 && n < target; n++ {
			rows = append(rows, g[rng.IntN(len(g))])
		}
	}
	return rows
}
