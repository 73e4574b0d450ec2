// Package metric exposes engine diagnostic counters through expvar.
// Counters are incremented from the audio thread, so everything here is
// atomic and allocation-free.
package metric

import "expvar"

const prefix = "patch.engine."

// Counter names.
const (
	// BlockCounter counts processed blocks.
	BlockCounter = "Blocks"
	// UnderrunCounter counts reads resolved to silence.
	UnderrunCounter = "Underruns"
	// OverrunCounter counts blocks dropped on write.
	OverrunCounter = "Overruns"
	// FaultCounter counts node faults.
	FaultCounter = "Faults"
	// LateCounter counts blocks that missed the transport deadline.
	LateCounter = "LateBlocks"
)

var counters = map[string]*expvar.Int{
	BlockCounter:    expvar.NewInt(prefix + BlockCounter),
	UnderrunCounter: expvar.NewInt(prefix + UnderrunCounter),
	OverrunCounter:  expvar.NewInt(prefix + OverrunCounter),
	FaultCounter:    expvar.NewInt(prefix + FaultCounter),
	LateCounter:     expvar.NewInt(prefix + LateCounter),
}

// Add increments named counter.
func Add(name string, delta int64) {
	if c, ok := counters[name]; ok {
		c.Add(delta)
	}
}

// Get returns current value of named counter.
func Get(name string) int64 {
	if c, ok := counters[name]; ok {
		return c.Value()
	}
	return 0
}

// GetAll returns values of all counters.
func GetAll() map[string]int64 {
	m := make(map[string]int64, len(counters))
	for name, c := range counters {
		m[name] = c.Value()
	}
	return m
}
