package nodes

import (
	"math"

	"github.com/dudk/patch"
	"github.com/dudk/patch/signal"
)

// Signal generator waveforms.
const (
	waveSine = iota
	waveSquare
	waveSaw
	waveTriangle
	waveNoise
)

var siggenProto = patch.Prototype{
	Kind:        "siggen",
	Description: "Signal generator: sine, square, saw, triangle, noise",
	Inputs: []patch.Port{
		{Name: "freq", Kind: patch.Control},
		{Name: "level", Kind: patch.Control},
	},
	Outputs: []patch.Port{{Name: "out", Kind: patch.Audio}},
	Params: []patch.ParamSpec{
		{Name: "freq", Min: 0.1, Max: 20000, Default: 100},
		{Name: "level", Min: -1, Max: 1, Default: 0.5},
		{Name: "wave", Min: waveSine, Max: waveNoise, Default: waveSine},
	},
	Allocate: func(sampleRate, blockSize int, cfg patch.Config) (patch.Node, error) {
		return &siggen{sampleRate: float64(sampleRate), rnd: 0x2545F4914F6CDD1D}, nil
	},
}

// siggen keeps oscillator phase and noise state across blocks.
type siggen struct {
	sampleRate float64
	phase      float64
	rnd        uint64
}

func (n *siggen) Process(in, out []signal.Block, p patch.Params) error {
	freq := p.Value("freq", 100)
	level := p.Value("level", 0.5)
	wave := int(p.Value("wave", waveSine))
	for i := range out[0] {
		f := math.Max(freq+in[0][i], 0)
		n.phase += f / n.sampleRate
		if n.phase >= 1 {
			n.phase -= math.Floor(n.phase)
		}
		var s float64
		switch wave {
		case waveSquare:
			if n.phase < 0.5 {
				s = 1
			} else {
				s = -1
			}
		case waveSaw:
			s = 2*n.phase - 1
		case waveTriangle:
			s = 4*math.Abs(n.phase-0.5) - 1
		case waveNoise:
			s = n.noise()
		default:
			s = math.Sin(2 * math.Pi * n.phase)
		}
		out[0][i] = s * (level + in[1][i])
	}
	return nil
}

// noise is a xorshift generator: the global math/rand source takes a
// lock, which is off-limits on the audio thread.
func (n *siggen) noise() float64 {
	n.rnd ^= n.rnd << 13
	n.rnd ^= n.rnd >> 7
	n.rnd ^= n.rnd << 17
	return float64(n.rnd>>11)/float64(1<<53)*2 - 1
}
