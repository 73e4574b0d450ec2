// Package wav provides wav-file node kinds: a sample player sourcing a
// decoded file and a sink rendering the stream to disk.
package wav

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/dudk/patch"
	"github.com/dudk/patch/signal"
)

// ErrUnsupportedBitDepth is returned when unsupported bit depth is used.
var ErrUnsupportedBitDepth = errors.New("only 16 and 32 bit depth is supported")

// Register adds the wav kinds to the registry.
func Register(r *patch.Registry) {
	r.Add(sampleProto)
	r.Add(sinkProto)
}

var sampleProto = patch.Prototype{
	Kind:        "sample",
	Description: "Play a wav file from memory",
	Outputs:     []patch.Port{{Name: "out", Kind: patch.Audio}},
	Params: []patch.ParamSpec{
		{Name: "level", Min: 0, Max: 2, Default: 1},
		{Name: "loop", Min: 0, Max: 1, Default: 1},
	},
	Allocate: allocateSample,
}

// allocateSample decodes the whole file on the control plane; playback
// itself only reads the decoded samples.
func allocateSample(sampleRate, blockSize int, cfg patch.Config) (patch.Node, error) {
	path := cfg.String("path")
	if path == "" {
		return nil, errors.New("sample: path is required")
	}
	// Played back at engine rate without resampling; a file recorded at
	// a different rate shifts pitch accordingly.
	samples, _, err := decode(path)
	if err != nil {
		return nil, err
	}
	return &sample{samples: samples}, nil
}

// decode reads the file into a mono float64 slice.
func decode(path string) ([]float64, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer file.Close()

	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		return nil, 0, fmt.Errorf("%v is not a valid wav file", path)
	}
	if decoder.BitDepth != 16 && decoder.BitDepth != 32 {
		return nil, 0, ErrUnsupportedBitDepth
	}
	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, 0, err
	}

	numChannels := buf.Format.NumChannels
	devider := float64(int(1)<<(decoder.BitDepth-1)) - 1
	frames := len(buf.Data) / numChannels
	samples := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < numChannels; c++ {
			sum += float64(buf.Data[i*numChannels+c]) / devider
		}
		samples[i] = sum / float64(numChannels)
	}
	return samples, int(decoder.SampleRate), nil
}

// sample keeps playback position across blocks.
type sample struct {
	samples []float64
	pos     int
}

func (s *sample) Process(in, out []signal.Block, p patch.Params) error {
	level := p.Value("level", 1)
	loop := p.Value("loop", 1) >= 0.5
	for i := range out[0] {
		if s.pos >= len(s.samples) {
			if !loop {
				out[0][i] = 0
				continue
			}
			s.pos = 0
		}
		out[0][i] = s.samples[s.pos] * level
		s.pos++
	}
	return nil
}

var sinkProto = patch.Prototype{
	Kind:        "wavsink",
	Description: "Render the stream to a wav file; intended for offline rendering",
	Inputs:      []patch.Port{{Name: "in", Kind: patch.Audio}},
	Allocate:    allocateSink,
}

func allocateSink(sampleRate, blockSize int, cfg patch.Config) (patch.Node, error) {
	path := cfg.String("path")
	if path == "" {
		return nil, errors.New("wavsink: path is required")
	}
	bitDepth := int(cfg.Float("bitdepth", 16))
	if bitDepth != 16 && bitDepth != 32 {
		return nil, ErrUnsupportedBitDepth
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &sink{
		file:     file,
		encoder:  wav.NewEncoder(file, sampleRate, bitDepth, 1, 1),
		bitDepth: bitDepth,
		buf: &audio.IntBuffer{
			Format: &audio.Format{NumChannels: 1, SampleRate: sampleRate},
			Data:   make([]int, blockSize),
		},
	}, nil
}

type sink struct {
	file     *os.File
	encoder  *wav.Encoder
	bitDepth int
	buf      *audio.IntBuffer
}

func (s *sink) Process(in, out []signal.Block, p patch.Params) error {
	multiplier := float64(int(1)<<(s.bitDepth-1)) - 1
	for i, v := range in[0] {
		s.buf.Data[i] = int(v * multiplier)
	}
	return s.encoder.Write(s.buf)
}

// Flush finalizes the encoder header and closes the file.
func (s *sink) Flush() error {
	if err := s.encoder.Close(); err != nil {
		return err
	}
	return s.file.Close()
}
