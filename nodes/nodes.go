/*
Package nodes provides the built-in effect kinds.

Every kind is registered as a prototype in the registry returned by
Registry; dispatch over kinds is data-driven by kind tag. Optional kinds
guarded by build tags (fuzz under gpl, the vst2 host in its own package)
register through the same mechanism.

Control inputs modulate parameters additively: the effective value per
sample is the parameter snapshot value plus the control sample. An
unconnected control port reads silence, leaving the parameter alone.
*/
package nodes

import (
	"math"

	"github.com/dudk/patch"
)

// Registry returns a registry with all built-in kinds.
func Registry() *patch.Registry {
	r := patch.NewRegistry()
	for _, p := range prototypes {
		r.Add(p)
	}
	return r
}

// prototypes of the built-in kinds. Extra kinds append here from
// tag-guarded files.
var prototypes = []patch.Prototype{
	gainProto,
	addProto,
	multiplyProto,
	mixProto,
	muxProto,
	demuxProto,
	distortProto,
	overdriveProto,
	chebyshevProto,
	lowpassProto,
	highpassProto,
	biquadProto,
	firProto,
	envelopeProto,
	siggenProto,
	pitchProto,
	delayProto,
	reverbProto,
	compressorProto,
}

func clamp(v, min, max float64) float64 {
	return math.Min(math.Max(v, min), max)
}
