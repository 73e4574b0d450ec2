package nodes

import (
	"github.com/cwbudde/algo-dsp/dsp/effects/pitch"

	"github.com/dudk/patch"
	"github.com/dudk/patch/signal"
)

var pitchProto = patch.Prototype{
	Kind:        "pitch",
	Description: "Shift the pitch of a signal in semitones",
	Inputs:      []patch.Port{{Name: "in", Kind: patch.Audio}},
	Outputs:     []patch.Port{{Name: "out", Kind: patch.Audio}},
	Params: []patch.ParamSpec{
		{Name: "semitones", Min: -12, Max: 12, Default: 0},
	},
	Allocate: allocatePitch,
}

func allocatePitch(sampleRate, blockSize int, cfg patch.Config) (patch.Node, error) {
	shifter, err := pitch.NewPitchShifter(float64(sampleRate))
	if err != nil {
		return nil, err
	}
	return &pitchNode{shifter: shifter}, nil
}

// pitchNode tracks the applied semitone value: the setter rebuilds the
// shifter windows, so it runs only when the value actually changed.
type pitchNode struct {
	shifter   *pitch.PitchShifter
	semitones float64
}

func (n *pitchNode) Process(in, out []signal.Block, p patch.Params) error {
	if v := p.Value("semitones", 0); v != n.semitones {
		if err := n.shifter.SetPitchSemitones(v); err != nil {
			return err
		}
		n.semitones = v
	}
	out[0].Copy(in[0])
	n.shifter.ProcessInPlace(out[0])
	return nil
}
