package wav_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dudk/patch"
	"github.com/dudk/patch/signal"
	"github.com/dudk/patch/wav"
)

const (
	sampleRate = 44100
	blockSize  = 64
)

func registry() *patch.Registry {
	r := patch.NewRegistry()
	wav.Register(r)
	return r
}

func TestRegister(t *testing.T) {
	r := registry()
	assert.Equal(t, []string{"sample", "wavsink"}, r.Kinds())
}

func TestSinkConfigErrors(t *testing.T) {
	r := registry()
	proto, err := r.Get("wavsink")
	require.NoError(t, err)

	_, err = proto.Allocate(sampleRate, blockSize, nil)
	assert.Error(t, err, "path is required")

	_, err = proto.Allocate(sampleRate, blockSize, patch.Config{
		"path":     filepath.Join(t.TempDir(), "out.wav"),
		"bitdepth": 24,
	})
	assert.ErrorIs(t, err, wav.ErrUnsupportedBitDepth)
}

func TestSampleConfigErrors(t *testing.T) {
	r := registry()
	proto, err := r.Get("sample")
	require.NoError(t, err)

	_, err = proto.Allocate(sampleRate, blockSize, nil)
	assert.Error(t, err, "path is required")

	_, err = proto.Allocate(sampleRate, blockSize, patch.Config{"path": "missing.wav"})
	assert.Error(t, err)
}

// Render a known signal through the sink, then play it back through the
// sample kind and compare.
func TestRoundTrip(t *testing.T) {
	r := registry()
	path := filepath.Join(t.TempDir(), "roundtrip.wav")

	sinkProto, err := r.Get("wavsink")
	require.NoError(t, err)
	sink, err := sinkProto.Allocate(sampleRate, blockSize, patch.Config{"path": path})
	require.NoError(t, err)

	in := signal.Make(blockSize)
	for i := range in {
		in[i] = 0.5
	}
	require.NoError(t, sink.Process([]signal.Block{in}, nil, nil))
	require.NoError(t, sink.(patch.Flusher).Flush())

	sampleProto, err := r.Get("sample")
	require.NoError(t, err)
	player, err := sampleProto.Allocate(sampleRate, blockSize, patch.Config{"path": path})
	require.NoError(t, err)

	out := []signal.Block{signal.Make(blockSize)}
	require.NoError(t, player.Process(nil, out, sampleProto.DefaultParams()))
	for _, v := range out[0] {
		// 16 bit quantization
		assert.InDelta(t, 0.5, v, 1.0/32767)
	}
}

func TestSampleLoop(t *testing.T) {
	r := registry()
	path := filepath.Join(t.TempDir(), "loop.wav")

	sinkProto, _ := r.Get("wavsink")
	sink, err := sinkProto.Allocate(sampleRate, blockSize, patch.Config{"path": path})
	require.NoError(t, err)
	in := signal.Make(blockSize)
	for i := range in {
		in[i] = 0.25
	}
	require.NoError(t, sink.Process([]signal.Block{in}, nil, nil))
	require.NoError(t, sink.(patch.Flusher).Flush())

	sampleProto, _ := r.Get("sample")
	player, err := sampleProto.Allocate(sampleRate, blockSize, patch.Config{"path": path})
	require.NoError(t, err)

	out := []signal.Block{signal.Make(blockSize)}
	params := sampleProto.DefaultParams()

	// loops: second block wraps to the start
	require.NoError(t, player.Process(nil, out, params))
	require.NoError(t, player.Process(nil, out, params))
	assert.InDelta(t, 0.25, out[0][0], 1.0/32767)

	// one-shot: playback past the end falls silent
	player, err = sampleProto.Allocate(sampleRate, blockSize, patch.Config{"path": path})
	require.NoError(t, err)
	params["loop"] = 0
	require.NoError(t, player.Process(nil, out, params))
	require.NoError(t, player.Process(nil, out, params))
	assert.Equal(t, 0.0, out[0].Peak())
}
