package engine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dudk/patch"
	"github.com/dudk/patch/engine"
	"github.com/dudk/patch/graph"
	"github.com/dudk/patch/internal/mock"
	"github.com/dudk/patch/signal"
)

const (
	sampleRate = 44100
	blockSize  = 16
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testRegistry(faulty *mock.Faulty) *patch.Registry {
	r := patch.NewRegistry()
	r.Add(patch.Prototype{
		Kind:    "gain",
		Inputs:  []patch.Port{{Name: "in", Kind: patch.Audio}},
		Outputs: []patch.Port{{Name: "out", Kind: patch.Audio}},
		Params: []patch.ParamSpec{
			{Name: "level", Min: 0, Max: 10, Default: 1},
		},
		Allocate: func(int, int, patch.Config) (patch.Node, error) {
			return gainNode{}, nil
		},
	})
	if faulty != nil {
		r.Add(faulty.FaultyProto("faulty"))
	}
	return r
}

type gainNode struct{}

func (gainNode) Process(in, out []signal.Block, p patch.Params) error {
	level := p.Value("level", 1)
	for i, s := range in[0] {
		out[0][i] = s * level
	}
	return nil
}

// patchChain wires device input through a gain into device output and
// returns the gain node id.
func patchChain(t *testing.T, e *engine.Engine) graph.NodeID {
	t.Helper()
	in, err := e.AddNode("input", nil)
	require.NoError(t, err)
	g, err := e.AddNode("gain", nil)
	require.NoError(t, err)
	out, err := e.AddNode("output", nil)
	require.NoError(t, err)
	_, err = e.Connect(graph.PortAddr{Node: in}, graph.PortAddr{Node: g})
	require.NoError(t, err)
	_, err = e.Connect(graph.PortAddr{Node: g}, graph.PortAddr{Node: out})
	require.NoError(t, err)
	return g
}

func constBlock(v float32) []float32 {
	b := make([]float32, blockSize)
	for i := range b {
		b[i] = v
	}
	return b
}

func TestProcessBlock(t *testing.T) {
	e := engine.New(sampleRate, blockSize, testRegistry(nil))
	defer e.Close()
	g := patchChain(t, e)
	require.NoError(t, e.SetParams(g, map[string]float64{"level": 2}))

	out := make([]float32, blockSize)
	e.ProcessBlock(constBlock(0.25), out)

	for _, v := range out {
		assert.InDelta(t, 0.5, v, 1e-6)
	}
	peak, rms := e.Meter()
	assert.InDelta(t, 0.5, peak, 1e-6)
	assert.InDelta(t, 0.5, rms, 1e-6)
}

func TestProcessBlockEmptyGraph(t *testing.T) {
	e := engine.New(sampleRate, blockSize, testRegistry(nil))
	defer e.Close()

	out := constBlock(1)
	e.ProcessBlock(constBlock(1), out)
	for _, v := range out {
		assert.Equal(t, float32(0), v)
	}
}

func TestSyncOnlyRecompilesOnChange(t *testing.T) {
	e := engine.New(sampleRate, blockSize, testRegistry(nil))
	defer e.Close()
	patchChain(t, e)

	order := e.Order()
	require.Len(t, order, 3)

	// no topology change, same program
	require.NoError(t, e.Sync())
	assert.Equal(t, order, e.Order())
}

func TestRemoveNodeMidStream(t *testing.T) {
	e := engine.New(sampleRate, blockSize, testRegistry(nil))
	defer e.Close()
	g := patchChain(t, e)

	out := make([]float32, blockSize)
	e.ProcessBlock(constBlock(0.25), out)
	assert.InDelta(t, 0.25, out[0], 1e-6)

	require.NoError(t, e.RemoveNode(g))
	e.ProcessBlock(constBlock(0.25), out)
	// chain is broken, output falls silent rather than failing
	assert.Equal(t, float32(0), out[0])
	assert.Len(t, e.Order(), 2)
}

func TestFaultEvent(t *testing.T) {
	faulty := &mock.Faulty{FailAfter: 0, ErrProcess: assert.AnError}
	e := engine.New(sampleRate, blockSize, testRegistry(faulty))
	defer e.Close()

	in, err := e.AddNode("input", nil)
	require.NoError(t, err)
	fx, err := e.AddNode("faulty", nil)
	require.NoError(t, err)
	out, err := e.AddNode("output", nil)
	require.NoError(t, err)
	_, err = e.Connect(graph.PortAddr{Node: in}, graph.PortAddr{Node: fx})
	require.NoError(t, err)
	_, err = e.Connect(graph.PortAddr{Node: fx}, graph.PortAddr{Node: out})
	require.NoError(t, err)

	dst := make([]float32, blockSize)
	e.ProcessBlock(constBlock(0.5), dst)

	event := <-e.Events()
	assert.Equal(t, engine.NodeFault, event.Type)
	assert.Equal(t, fx, event.Node)
	assert.ErrorIs(t, event.Err, assert.AnError)
	// bypass keeps the stream alive
	assert.InDelta(t, 0.5, dst[0], 1e-6)

	require.NoError(t, e.ClearFault(fx))
	faulty.FailAfter = 1 << 62
	e.ProcessBlock(constBlock(0.5), dst)
	assert.InDelta(t, 0.5, dst[0], 1e-6)
}

func TestRender(t *testing.T) {
	e := engine.New(sampleRate, blockSize, testRegistry(nil))
	defer e.Close()
	patchChain(t, e)

	require.NoError(t, e.Render(context.Background(), 10))
	assert.GreaterOrEqual(t, e.Diagnostics().Blocks, int64(10))
}

func TestRenderCancel(t *testing.T) {
	e := engine.New(sampleRate, blockSize, testRegistry(nil))
	defer e.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := e.Render(ctx, 1000)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSetParamsValidation(t *testing.T) {
	e := engine.New(sampleRate, blockSize, testRegistry(nil))
	defer e.Close()
	g := patchChain(t, e)

	assert.Error(t, e.SetParams(g, map[string]float64{"level": 100}))
	values, err := e.Params(g)
	require.NoError(t, err)
	assert.Equal(t, 1.0, values["level"])
}
