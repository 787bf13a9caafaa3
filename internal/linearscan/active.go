// Package linearscan implements BasicLinearScan (py-regallo/allocators/
// lscan/basic/basic.py) and ExtendedLinearScan (.../extended/extended.py):
// active-list-driven register allocation over precomputed lifetime
// intervals, with a pluggable spill policy.
package linearscan

import (
	"sort"

	"github.com/kestrelc/regallo/internal/interval"
)

// activeSet keeps *interval.Interval entries sorted by ascending EndPoint,
// mirroring the original's SortedSet(key=lambda iv: iv.to). Membership
// tests and removal are O(n); fine at research-framework scale (these
// mirror Python's SortedSet usage, which is itself O(log n) insert / O(n)
// scan for iteration, not asymptotically better for our purposes).
type activeSet struct {
	items []*interval.Interval
}

func (s *activeSet) Add(iv *interval.Interval) {
	i := sort.Search(len(s.items), func(i int) bool { return s.items[i].EndPoint() >= iv.EndPoint() })
	s.items = append(s.items, nil)
	copy(s.items[i+1:], s.items[i:])
	s.items[i] = iv
}

func (s *activeSet) Remove(iv *interval.Interval) {
	for i, it := range s.items {
		if it == iv {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return
		}
	}
}

func (s *activeSet) All() []*interval.Interval { return s.items }

func (s *activeSet) Last() *interval.Interval {
	if len(s.items) == 0 {
		return nil
	}
	return s.items[len(s.items)-1]
}

// extActiveSet is activeSet's twin for *interval.ExtendedInterval, plus an
// O(1) membership map (ExtendedLinearScan's main loop repeatedly tests
// "iv in active"/"iv in inactive").
type extActiveSet struct {
	items  []*interval.ExtendedInterval
	member map[*interval.ExtendedInterval]bool
}

func newExtActiveSet() *extActiveSet {
	return &extActiveSet{member: map[*interval.ExtendedInterval]bool{}}
}

func (s *extActiveSet) Add(iv *interval.ExtendedInterval) {
	i := sort.Search(len(s.items), func(i int) bool { return s.items[i].EndPoint() >= iv.EndPoint() })
	s.items = append(s.items, nil)
	copy(s.items[i+1:], s.items[i:])
	s.items[i] = iv
	s.member[iv] = true
}

func (s *extActiveSet) Remove(iv *interval.ExtendedInterval) {
	for i, it := range s.items {
		if it == iv {
			s.items = append(s.items[:i], s.items[i+1:]...)
			break
		}
	}
	delete(s.member, iv)
}

func (s *extActiveSet) Has(iv *interval.ExtendedInterval) bool { return s.member[iv] }

func (s *extActiveSet) All() []*interval.ExtendedInterval { return s.items }

func (s *extActiveSet) Last() *interval.ExtendedInterval {
	if len(s.items) == 0 {
		return nil
	}
	return s.items[len(s.items)-1]
}

func (s *extActiveSet) Len() int { return len(s.items) }
