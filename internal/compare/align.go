package compare

// Pair holds one metric from both sets, full length and unpadded.
type Pair struct {
	Metric    string
	Reference []float64
	Other     []float64
}

// Alignment is the positional pairing of two column sets.
type Alignment struct {
	// ReferenceRows and OtherRows are the row counts of the longer and
	// shorter set.
	ReferenceRows int
	OtherRows     int

	// Overlap is the number of indices that have a value in both sets.
	Overlap int

	// Pairs lists every metric present in both sets, in reference order.
	Pairs []Pair
}

// Align pairs a and b by index. The set with more rows is the reference;
// on a tie a stays the reference. Indices are positions, not timestamps.
func Align(a, b *ColumnSet) Alignment {
	ref, other := a, b
	if other.Len() > ref.Len() {
		ref, other = other, ref
	}

	al := Alignment{
		ReferenceRows: ref.Len(),
		OtherRows:     other.Len(),
		Overlap:       other.Len(),
	}
	for _, rc := range ref.Columns {
		oc, ok := other.Column(rc.Name)
		if !ok {
			continue
		}
		al.Pairs = append(al.Pairs, Pair{
			Metric:    rc.Name,
			Reference: rc.Values,
			Other:     oc.Values,
		})
	}
	return al
}

// Pair returns the pair for metric.
func (al Alignment) Pair(metric string) (Pair, bool) {
	for _, p := range al.Pairs {
		if p.Metric == metric {
			return p, true
		}
	}
	return Pair{}, false
}

// At returns both values at index i. ok is false for a series that has no
// value there.
func (p Pair) At(i int) (ref float64, refOK bool, other float64, otherOK bool) {
	if i >= 0 && i < len(p.Reference) {
		ref, refOK = p.Reference[i], true
	}
	if i >= 0 && i < len(p.Other) {
		other, otherOK = p.Other[i], true
	}
	return
}
