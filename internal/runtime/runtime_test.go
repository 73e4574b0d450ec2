package runtime_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dudk/patch"
	"github.com/dudk/patch/graph"
	"github.com/dudk/patch/internal/mock"
	"github.com/dudk/patch/internal/runtime"
	"github.com/dudk/patch/param"
	"github.com/dudk/patch/signal"
)

const (
	sampleRate = 44100
	blockSize  = 8
)

// gainNode scales its input by the level parameter.
type gainNode struct{}

func (gainNode) Process(in, out []signal.Block, p patch.Params) error {
	level := p.Value("level", 1)
	for i, s := range in[0] {
		out[0][i] = s * level
	}
	return nil
}

func testRegistry(source *mock.Source, sink *mock.Sink, faulty *mock.Faulty) *patch.Registry {
	r := patch.NewRegistry()
	r.Add(source.SourceProto("src"))
	r.Add(sink.SinkProto("sink"))
	r.Add(faulty.FaultyProto("faulty"))
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
	r.Add(patch.Prototype{
		Kind:          "dly",
		Inputs:        []patch.Port{{Name: "in", Kind: patch.Audio}},
		Outputs:       []patch.Port{{Name: "out", Kind: patch.Audio}},
		DelayBreaking: true,
		Allocate: func(int, int, patch.Config) (patch.Node, error) {
			return &mock.Faulty{FailAfter: 1 << 62}, nil
		},
	})
	return r
}

func newStore(source *mock.Source, sink *mock.Sink, faulty *mock.Faulty) *graph.Store {
	return graph.New(testRegistry(source, sink, faulty), param.NewStore(), sampleRate, blockSize)
}

func connect(t *testing.T, s *graph.Store, src, dst graph.NodeID) {
	t.Helper()
	_, err := s.Connect(
		graph.PortAddr{Node: src, Port: 0},
		graph.PortAddr{Node: dst, Port: 0},
	)
	require.NoError(t, err)
}

func compile(t *testing.T, s *graph.Store, notify runtime.FaultFunc) *runtime.Program {
	t.Helper()
	p, err := runtime.Compile(s.Snapshot(), blockSize, notify)
	require.NoError(t, err)
	return p
}

func TestOrderFollowsEdges(t *testing.T) {
	source, sink := &mock.Source{Value: 1}, &mock.Sink{}
	s := newStore(source, sink, &mock.Faulty{FailAfter: 1 << 62})

	// created sink-first so topology, not creation order, must win
	snk, _ := s.AddNode("sink", nil)
	g, _ := s.AddNode("gain", nil)
	src, _ := s.AddNode("src", nil)
	connect(t, s, src, g)
	connect(t, s, g, snk)

	p := compile(t, s, nil)
	assert.Equal(t, []graph.NodeID{src, g, snk}, p.Order())
	assert.Equal(t, 3, p.Steps())
}

func TestOrderBreaksTiesByID(t *testing.T) {
	source, sink := &mock.Source{Value: 1}, &mock.Sink{}
	s := newStore(source, sink, &mock.Faulty{FailAfter: 1 << 62})

	// no edges at all: execution order is creation order
	a, _ := s.AddNode("src", nil)
	b, _ := s.AddNode("gain", nil)
	c, _ := s.AddNode("sink", nil)

	p := compile(t, s, nil)
	assert.Equal(t, []graph.NodeID{a, b, c}, p.Order())
}

func TestRunChain(t *testing.T) {
	source, sink := &mock.Source{Value: 0.5}, &mock.Sink{}
	s := newStore(source, sink, &mock.Faulty{FailAfter: 1 << 62})

	src, _ := s.AddNode("src", nil)
	g1, _ := s.AddNode("gain", nil)
	g2, _ := s.AddNode("gain", nil)
	snk, _ := s.AddNode("sink", nil)
	connect(t, s, src, g1)
	connect(t, s, g1, g2)
	connect(t, s, g2, snk)
	require.NoError(t, s.Params().Set(string(g1), map[string]float64{"level": 2}))
	require.NoError(t, s.Params().Set(string(g2), map[string]float64{"level": 3}))

	p := compile(t, s, nil)
	p.Run()

	// 0.5 * 2 * 3, delivered within the same block
	require.Len(t, sink.Captured, 1)
	for _, v := range sink.Last() {
		assert.InDelta(t, 3.0, v, 1e-12)
	}
}

func TestRunUnconnectedInputIsSilence(t *testing.T) {
	source, sink := &mock.Source{Value: 1}, &mock.Sink{}
	s := newStore(source, sink, &mock.Faulty{FailAfter: 1 << 62})

	g, _ := s.AddNode("gain", nil)
	snk, _ := s.AddNode("sink", nil)
	connect(t, s, g, snk)

	p := compile(t, s, nil)
	p.Run()

	require.Len(t, sink.Captured, 1)
	assert.Equal(t, signal.Make(blockSize), sink.Last())
}

func TestRunParamSwapIsPickedUp(t *testing.T) {
	source, sink := &mock.Source{Value: 1}, &mock.Sink{}
	s := newStore(source, sink, &mock.Faulty{FailAfter: 1 << 62})

	src, _ := s.AddNode("src", nil)
	g, _ := s.AddNode("gain", nil)
	snk, _ := s.AddNode("sink", nil)
	connect(t, s, src, g)
	connect(t, s, g, snk)

	p := compile(t, s, nil)
	p.Run()
	assert.Equal(t, 1.0, sink.Last()[0])

	// no recompile needed for a parameter change
	require.NoError(t, s.Params().Set(string(g), map[string]float64{"level": 4}))
	p.Run()
	assert.Equal(t, 4.0, sink.Last()[0])
}

// A delay-breaking node scheduled ahead of its producer reads the
// previous block, so a feedback path costs exactly one block.
func TestRunDelayBreakingLatency(t *testing.T) {
	source, sink := &mock.Source{Value: 1}, &mock.Sink{}
	s := newStore(source, sink, &mock.Faulty{FailAfter: 1 << 62})

	// created before the source, so it executes first
	dly, _ := s.AddNode("dly", nil)
	src, _ := s.AddNode("src", nil)
	snk, _ := s.AddNode("sink", nil)
	connect(t, s, src, dly)
	connect(t, s, dly, snk)

	p := compile(t, s, nil)
	assert.Equal(t, []graph.NodeID{dly, src, snk}, p.Order())

	p.Run()
	assert.Equal(t, signal.Make(blockSize), sink.Last(), "first block is silence")

	p.Run()
	assert.Equal(t, 1.0, sink.Last()[0], "second block carries the first block's input")
}

func TestRunFaultIsolation(t *testing.T) {
	source, sink := &mock.Source{Value: 0.25}, &mock.Sink{}
	errBroken := errors.New("broken")
	faulty := &mock.Faulty{FailAfter: 1, ErrProcess: errBroken}
	s := newStore(source, sink, faulty)

	src, _ := s.AddNode("src", nil)
	fx, _ := s.AddNode("faulty", nil)
	snk, _ := s.AddNode("sink", nil)
	connect(t, s, src, fx)
	connect(t, s, fx, snk)

	var faultID graph.NodeID
	var faultErr error
	p := compile(t, s, func(id graph.NodeID, err error) {
		faultID, faultErr = id, err
	})

	p.Run() // passes through
	assert.Equal(t, 0.25, sink.Last()[0])

	p.Run() // faults, bypass kicks in for the same block
	assert.Equal(t, fx, faultID)
	assert.ErrorIs(t, faultErr, errBroken)
	node, _ := s.Snapshot().Node(fx)
	assert.True(t, node.Health.Faulted())
	assert.Equal(t, 0.25, sink.Last()[0], "bypass passes input to output")

	// faulted node is skipped without re-notifying
	faultID, faultErr = "", nil
	p.Run()
	assert.Equal(t, graph.NodeID(""), faultID)
	assert.NoError(t, faultErr)
	assert.Equal(t, 0.25, sink.Last()[0])
	assert.Equal(t, uint64(1), node.Health.Faults())
}

func TestRunPanicBecomesFault(t *testing.T) {
	source, sink := &mock.Source{Value: 1}, &mock.Sink{}
	faulty := &mock.Faulty{FailAfter: 0, Panic: true}
	s := newStore(source, sink, faulty)

	src, _ := s.AddNode("src", nil)
	fx, _ := s.AddNode("faulty", nil)
	snk, _ := s.AddNode("sink", nil)
	connect(t, s, src, fx)
	connect(t, s, fx, snk)

	var faultErr error
	p := compile(t, s, func(id graph.NodeID, err error) {
		faultErr = err
	})

	assert.NotPanics(t, func() { p.Run() })
	require.Error(t, faultErr)
	assert.Contains(t, faultErr.Error(), "panic")
	node, _ := s.Snapshot().Node(fx)
	assert.True(t, node.Health.Faulted())
}

// One output port may feed several connections; every consumer gets its
// own copy of the block.
func TestRunFanOut(t *testing.T) {
	source, sink := &mock.Source{Value: 1}, &mock.Sink{}
	s := newStore(source, sink, &mock.Faulty{FailAfter: 1 << 62})

	src, _ := s.AddNode("src", nil)
	a, _ := s.AddNode("sink", nil)
	b, _ := s.AddNode("sink", nil)
	connect(t, s, src, a)
	connect(t, s, src, b)

	p := compile(t, s, nil)
	p.Run()

	// both sink nodes share the recorder, so one run captures twice
	require.Len(t, sink.Captured, 2)
	assert.Equal(t, 1.0, sink.Captured[0][0])
	assert.Equal(t, 1.0, sink.Captured[1][0])
}
