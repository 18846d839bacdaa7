package dispatch

// nextBackoffMs computes the next retry delay after a failed send:
// double the larger of the current backoff and the destination's own
// cycle, apply the floor, then apply the cap (spec §4.7/S5 — floor
// before cap, not the other way around, matters whenever floor > the
// doubled value but the cap would otherwise clip it first).
func nextBackoffMs(current, cycleMs, floorMs int64) int64 {
	v := current
	if v < cycleMs {
		v = cycleMs
	}
	v *= 2
	if v < floorMs {
		v = floorMs
	}
	capMs := 2 * cycleMs
	if v > capMs {
		v = capMs
	}
	return v
}

const (
	httpBackoffFloorMs = 30_000
	abrpBackoffFloorMs = 60_000
)
