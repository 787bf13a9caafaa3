package linearscan

import "github.com/kestrelc/regallo/internal/interval"

// ExtendedFurthestFirst picks whichever of active's and inactive's
// furthest-ending interval has the furthest end point, spilling it in
// current's favor if that is further than current's own end; otherwise it
// spills current. Grounded on py-regallo/allocators/lscan/extended/
// spillers.py's FurthestFirst.
type ExtendedFurthestFirst struct{}

func (ExtendedFurthestFirst) SpillAtInterval(current *interval.ExtendedInterval, active, inactive *extActiveSet) *interval.ExtendedInterval {
	var source *extActiveSet
	switch {
	case active.Len() > 0 && inactive.Len() > 0:
		if active.Last().EndPoint() > inactive.Last().EndPoint() {
			source = active
		} else {
			source = inactive
		}
	case active.Len() > 0:
		source = active
	case inactive.Len() > 0:
		source = inactive
	default:
		current.Spill()
		return current
	}

	spilled := source.Last()
	if spilled.EndPoint() > current.EndPoint() {
		current.Allocate(spilled.Alloc)
		spilled.Spill()
		source.Remove(spilled)
		source.Add(current)
		return spilled
	}

	current.Spill()
	return current
}
