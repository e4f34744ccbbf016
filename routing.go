package bicas

import (
	"errors"
	"fmt"
	"math"
)

// NumBLTS is the number of raw channels delivered by the digitizers.
const NumBLTS = 5

// NumModes is the number of defined mux modes, numbered 0..NumModes-1.
const NumModes = 8

// Routing and configuration errors.
var (
	ErrUnsupportedMode     = errors.New("unsupported mux mode")
	ErrUnsupportedDiffGain = errors.New("unsupported differential gain")
	ErrShapeMismatch       = errors.New("channel shapes differ")
)

// routingRule describes one BLTS channel in one mux mode. When relay is set,
// the rule follows the latching relay: its pair 1-2 becomes 1-3 when the
// relay connects antennas 1 and 3.
type routingRule struct {
	dest  ASRID
	cat   Category
	relay bool
}

// muxRules is the routing of BLTS1..5 for each mux mode. Stimulus categories
// go to the slot of the antenna (or pair) whose input they replace.
var muxRules = [NumModes][NumBLTS]routingRule{
	// 0: standard operation
	{{DCV1, DCSingle, false}, {DCV12, DCDiff, true}, {DCV23, DCDiff, false}, {ACV12, AC, true}, {ACV23, AC, false}},
	// 1: probe 1 fails
	{{DCV2, DCSingle, false}, {DCV3, DCSingle, false}, {DCV23, DCDiff, false}, {ACV12, AC, true}, {ACV23, AC, false}},
	// 2: probe 2 fails
	{{DCV1, DCSingle, false}, {DCV3, DCSingle, false}, {DCV13, DCDiff, false}, {ACV12, AC, true}, {ACV23, AC, false}},
	// 3: probe 3 fails
	{{DCV1, DCSingle, false}, {DCV2, DCSingle, false}, {DCV12, DCDiff, false}, {ACV12, AC, true}, {ACV23, AC, false}},
	// 4: calibration mode 0
	{{DCV1, DCSingle, false}, {DCV2, DCSingle, false}, {DCV3, DCSingle, false}, {ACV12, AC, true}, {ACV23, AC, false}},
	// 5: calibration mode 1
	{{DCV1, Ref25V, false}, {DCV2, Ref25V, false}, {DCV3, Ref25V, false}, {ACV12, AC, true}, {ACV23, AC, false}},
	// 6: calibration mode 2
	{{DCV1, Ground, false}, {DCV2, Ground, false}, {DCV3, Ground, false}, {ACV12, AC, true}, {ACV23, AC, false}},
	// 7: calibration mode 3
	{{DCV1, Ground, false}, {DCV2, Ground, false}, {DCV3, Ground, false}, {ACV12, Ground, true}, {ACV23, Ground, false}},
}

// routingTables[1] holds the routings with the relay on antennas 1-2,
// routingTables[0] with the relay on 1-3.
var routingTables [2][NumModes][NumBLTS]Routing

func init() {
	routingTables = buildRoutingTables(muxRules)
}

// buildRoutingTables expands the rules for both relay positions. It panics if
// any mode is inconsistent, so a bad table can never be used.
func buildRoutingTables(rules [NumModes][NumBLTS]routingRule) (tables [2][NumModes][NumBLTS]Routing) {
	for relay, dlrUsing12 := range []bool{false, true} {
		for mode, modeRules := range rules {
			for i, rule := range modeRules {
				dest := rule.dest
				if rule.relay && !dlrUsing12 {
					dest = swapRelayPair(dest)
				}
				tables[relay][mode][i] = Routing{Dest: dest, Antennas: dest.Antennas(), Category: rule.cat}
			}
			if err := validateRoutings(tables[relay][mode]); err != nil {
				panic(fmt.Sprintf("routing table for mode %d, relay 1-2=%v: %v", mode, dlrUsing12, err))
			}
		}
	}
	return tables
}

// swapRelayPair moves a 1-2 differential onto 1-3.
func swapRelayPair(id ASRID) ASRID {
	switch id {
	case DCV12:
		return DCV13
	case ACV12:
		return ACV13
	}
	return id
}

// validateRoutings checks that no two BLTS share a destination and that every
// category is compatible with its destination slot.
func validateRoutings(rs [NumBLTS]Routing) error {
	var used [NumASR]bool
	for i, r := range rs {
		if r.Dest < 0 || int(r.Dest) >= NumASR {
			return fmt.Errorf("BLTS%d: invalid destination %v", i+1, r.Dest)
		}
		if used[r.Dest] {
			return fmt.Errorf("BLTS%d: destination %v used twice", i+1, r.Dest)
		}
		used[r.Dest] = true

		ok := false
		switch r.Category {
		case DCSingle:
			ok = !r.Dest.IsDiff()
		case DCDiff:
			ok = r.Dest.IsDiff() && !r.Dest.IsAC()
		case AC:
			ok = r.Dest.IsAC()
		case Ground, Ref25V:
			ok = !r.Dest.IsDiff() || r.Dest.IsAC()
		}
		if !ok {
			return fmt.Errorf("BLTS%d: category %v cannot feed %v", i+1, r.Category, r.Dest)
		}
	}
	return nil
}

// parseMuxMode converts a per-record mode value. NaN means "unknown", which is
// not an error; anything else outside the integers 0..NumModes-1 is.
func parseMuxMode(mode float64) (m int, known bool, err error) {
	if math.IsNaN(mode) {
		return 0, false, nil
	}
	if mode != math.Trunc(mode) || mode < 0 || mode >= NumModes {
		return 0, false, fmt.Errorf("%w: %v", ErrUnsupportedMode, mode)
	}
	return int(mode), true, nil
}

// RoutingFor returns the routing of all five BLTS channels for a mux mode
// and latching relay position.
func RoutingFor(mode int, dlrUsing12 bool) ([NumBLTS]Routing, error) {
	if mode < 0 || mode >= NumModes {
		return [NumBLTS]Routing{}, fmt.Errorf("%w: %d", ErrUnsupportedMode, mode)
	}
	relay := 0
	if dlrUsing12 {
		relay = 1
	}
	return routingTables[relay][mode], nil
}
