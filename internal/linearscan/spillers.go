package linearscan

import "github.com/kestrelc/regallo/internal/interval"

// FurthestFirst spills whichever of current and the active interval with
// the furthest end point has the greater end point.
type FurthestFirst struct{}

func (FurthestFirst) SpillAtInterval(current *interval.Interval, active *activeSet) *interval.Interval {
	if spilled := active.Last(); spilled != nil && spilled.EndPoint() > current.EndPoint() {
		current.Allocate(spilled.Alloc)
		spilled.Spill()
		active.Remove(spilled)
		active.Add(current)
		return spilled
	}
	current.Spill()
	return current
}

// CurrentFirst always spills the interval currently being processed.
type CurrentFirst struct{}

func (CurrentFirst) SpillAtInterval(current *interval.Interval, active *activeSet) *interval.Interval {
	current.Spill()
	return current
}

// LessUsedFirst spills whichever active interval (or current) has the
// fewest uses; ties break toward the lowest variable id, for deterministic
// output (an explicit decision: the original's Python iterates a hash-order
// set and is not reproducible here).
type LessUsedFirst struct{}

func (LessUsedFirst) SpillAtInterval(current *interval.Interval, active *activeSet) *interval.Interval {
	spilled := current
	for _, iv := range active.All() {
		if len(iv.Uses) < len(spilled.Uses) {
			spilled = iv
		} else if len(iv.Uses) == len(spilled.Uses) && iv != spilled && iv.Var.ID < spilled.Var.ID {
			spilled = iv
		}
	}

	if spilled != current {
		current.Allocate(spilled.Alloc)
		spilled.Spill()
		active.Remove(spilled)
		active.Add(current)
		return spilled
	}

	current.Spill()
	return current
}

// FurthestNextUseFirst spills the active interval whose next use (after
// current's start) is furthest away, provided that is later than current's
// own first use; otherwise it spills current.
type FurthestNextUseFirst struct{}

func (FurthestNextUseFirst) SpillAtInterval(current *interval.Interval, active *activeSet) *interval.Interval {
	var furthestNum float64
	var furthestIv *interval.Interval

	for _, iv := range active.All() {
		found := false
		var next float64
		for _, use := range iv.Uses {
			if use.Num > current.Fr && (!found || use.Num < next) {
				next, found = use.Num, true
			}
		}
		if found && (furthestIv == nil || furthestNum < next) {
			furthestNum = next
			furthestIv = iv
		}
	}

	currentFirst, hasUse := 0.0, false
	for _, use := range current.Uses {
		if !hasUse || use.Num < currentFirst {
			currentFirst, hasUse = use.Num, true
		}
	}

	if furthestIv != nil && hasUse && furthestNum > currentFirst {
		current.Allocate(furthestIv.Alloc)
		furthestIv.Spill()
		active.Remove(furthestIv)
		active.Add(current)
		return furthestIv
	}

	current.Spill()
	return current
}
