package interval

import "sort"

// Set is an ordered collection of intervals. Callers keep members disjoint;
// Chop preserves that property.
type Set struct {
	items []Interval
}

// NewSet builds a set from the given intervals.
func NewSet(ivs ...Interval) *Set {
	s := &Set{}
	for _, iv := range ivs {
		s.Add(iv)
	}
	return s
}

// Add inserts iv keeping Begin/End order.
func (s *Set) Add(iv Interval) {
	idx := sort.Search(len(s.items), func(i int) bool {
		return iv.Less(s.items[i])
	})
	s.items = append(s.items, Interval{})
	copy(s.items[idx+1:], s.items[idx:])
	s.items[idx] = iv
}

// Overlaps reports whether any member shares a minute with iv.
func (s *Set) Overlaps(iv Interval) bool {
	for _, m := range s.items {
		if m.Begin >= iv.End {
			return false
		}
		if m.Overlaps(iv) {
			return true
		}
	}
	return false
}

// Containing returns the first member that fully contains iv.
func (s *Set) Containing(iv Interval) (Interval, bool) {
	for _, m := range s.items {
		if m.Contains(iv) {
			return m, true
		}
	}
	return Interval{}, false
}

// Chop removes [begin, end) from every member, splitting members that
// straddle the range. Payloads of the remaining pieces are kept.
func (s *Set) Chop(begin, end int) {
	if begin >= end {
		return
	}

	out := make([]Interval, 0, len(s.items)+1)
	for _, m := range s.items {
		if m.End <= begin || m.Begin >= end {
			out = append(out, m)
			continue
		}
		if m.Begin < begin {
			out = append(out, Interval{Begin: m.Begin, End: begin, Data: m.Data})
		}
		if end < m.End {
			out = append(out, Interval{Begin: end, End: m.End, Data: m.Data})
		}
	}
	s.items = out
}

// Items returns a copy of the members in order.
func (s *Set) Items() []Interval {
	out := make([]Interval, len(s.items))
	copy(out, s.items)
	return out
}

// Len returns the number of members.
func (s *Set) Len() int {
	return len(s.items)
}

// Total returns the summed length of all members.
func (s *Set) Total() int {
	total := 0
	for _, m := range s.items {
		total += m.Len()
	}
	return total
}
