// Package interval implements half-open [Start, End) ranges in minutes since midnight.
//
// Once the calendar date is fixed, every scheduling question reduces to arithmetic on these
// ranges; no time zone or calendar logic lives here.
package interval

import "sort"

// MinutesPerDay bounds every interval produced for a single calendar day.
const MinutesPerDay = 24 * 60

type Interval struct {
	Start int
	End   int
}

// FullDay covers the entire calendar day.
var FullDay = Interval{Start: 0, End: MinutesPerDay}

func New(start, end int) Interval {
	return Interval{Start: start, End: end}
}

func (i Interval) Len() int {
	if i.End <= i.Start {
		return 0
	}
	return i.End - i.Start
}

func (i Interval) Empty() bool {
	return i.End <= i.Start
}

// Overlaps reports whether a and b share at least one minute.
// Half-open intervals: [a.Start,a.End) overlaps [b.Start,b.End) iff a.Start < b.End && b.Start < a.End.
func Overlaps(a, b Interval) bool {
	if a.Empty() || b.Empty() {
		return false
	}
	return a.Start < b.End && b.Start < a.End
}

// Contains reports whether inner lies entirely within outer.
func Contains(outer, inner Interval) bool {
	if inner.Empty() {
		return false
	}
	return outer.Start <= inner.Start && inner.End <= outer.End
}

// Subtract removes cut from base and returns the 0, 1 or 2 remaining fragments in order.
func Subtract(base, cut Interval) []Interval {
	if base.Empty() {
		return nil
	}
	if !Overlaps(base, cut) {
		return []Interval{base}
	}
	var out []Interval
	if cut.Start > base.Start {
		out = append(out, Interval{Start: base.Start, End: cut.Start})
	}
	if cut.End < base.End {
		out = append(out, Interval{Start: cut.End, End: base.End})
	}
	return out
}

// SubtractAll removes every cut from every base interval. The result keeps the ordering of
// base, which callers pass already sorted and disjoint.
func SubtractAll(base []Interval, cuts []Interval) []Interval {
	out := append([]Interval(nil), base...)
	for _, c := range cuts {
		next := make([]Interval, 0, len(out)+1)
		for _, b := range out {
			next = append(next, Subtract(b, c)...)
		}
		out = next
	}
	return out
}

// Union sorts the input and merges overlapping or touching intervals. Empty intervals are
// dropped.
func Union(in []Interval) []Interval {
	items := make([]Interval, 0, len(in))
	for _, i := range in {
		if !i.Empty() {
			items = append(items, i)
		}
	}
	if len(items) == 0 {
		return nil
	}
	sort.Slice(items, func(a, b int) bool {
		if items[a].Start == items[b].Start {
			return items[a].End < items[b].End
		}
		return items[a].Start < items[b].Start
	})

	merged := make([]Interval, 0, len(items))
	for _, cur := range items {
		if len(merged) == 0 {
			merged = append(merged, cur)
			continue
		}
		last := &merged[len(merged)-1]
		if cur.Start > last.End {
			merged = append(merged, cur)
			continue
		}
		if cur.End > last.End {
			last.End = cur.End
		}
	}
	return merged
}

// ContainedInAny reports whether some interval in set contains inner.
func ContainedInAny(set []Interval, inner Interval) bool {
	for _, s := range set {
		if Contains(s, inner) {
			return true
		}
	}
	return false
}

// OverlapsAny reports whether candidate overlaps some interval in set.
func OverlapsAny(set []Interval, candidate Interval) bool {
	for _, s := range set {
		if Overlaps(s, candidate) {
			return true
		}
	}
	return false
}
