package index

import "sort"

// candidate is a scored document awaiting top-K selection.
type candidate struct {
	result *Result
	score  float64
}

// selectTopK returns the k highest-scoring candidates, fully sorted
// descending by score with ties broken by ascending path then ascending
// start line (§4.5.3). Selection of the k-subset runs in average linear
// time via quickselect; only the selected k are sorted, never the full
// candidate set.
func selectTopK(items []*candidate, k int) []*candidate {
	if k <= 0 || len(items) == 0 {
		return nil
	}
	if k < len(items) {
		quickselect(items, 0, len(items)-1, k-1)
		items = items[:k]
	}
	sort.Slice(items, func(i, j int) bool {
		return rankLess(items[i], items[j])
	})
	return items
}

// rankLess reports whether a ranks strictly ahead of b.
func rankLess(a, b *candidate) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	if a.result.Path != b.result.Path {
		return a.result.Path < b.result.Path
	}
	return a.result.StartLine < b.result.StartLine
}

// quickselect partitions items[lo:hi+1] in place so that item k (by
// rankLess order) is in its sorted position, with everything ranked ahead
// of it to its left.
func quickselect(items []*candidate, lo, hi, k int) {
	for lo < hi {
		p := partition(items, lo, hi)
		switch {
		case p == k:
			return
		case k < p:
			hi = p - 1
		default:
			lo = p + 1
		}
	}
}

func partition(items []*candidate, lo, hi int) int {
	pivot := items[hi]
	i := lo
	for j := lo; j < hi; j++ {
		if rankLess(items[j], pivot) {
			items[i], items[j] = items[j], items[i]
			i++
		}
	}
	items[i], items[hi] = items[hi], items[i]
	return i
}
