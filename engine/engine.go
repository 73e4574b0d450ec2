/*
Package engine owns the real-time audio path of a patch.

The engine sits between the audio transport and the graph: once per
block it copies the device input in, executes the current program and
copies the result out. All graph and parameter edits go through the
engine's control-plane methods, which mutate the store, recompile the
execution program and publish it with one atomic pointer swap. The
audio thread itself never allocates, never takes a lock and never
compiles anything.
*/
package engine

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"github.com/dudk/patch"
	"github.com/dudk/patch/graph"
	"github.com/dudk/patch/internal/runtime"
	"github.com/dudk/patch/log"
	"github.com/dudk/patch/metric"
	"github.com/dudk/patch/param"
	"github.com/dudk/patch/signal"
)

// EventType identifies an asynchronous engine notification.
type EventType int

const (
	// NodeFault is emitted when a node's processing reports a fault.
	NodeFault EventType = iota
	// LateBlock is emitted when a block missed the transport deadline.
	LateBlock
)

// Event is an asynchronous notification for the control plane. Events
// are emitted non-blocking: if nobody listens, they are dropped and
// only the counters remain.
type Event struct {
	Type EventType
	Node graph.NodeID
	Err  error
}

// Engine drives block-by-block execution of a node graph.
type Engine struct {
	sampleRate int
	blockSize  int
	period     time.Duration

	store   *graph.Store
	program atomic.Pointer[runtime.Program]
	logger  log.Logger

	// device-facing blocks, written only by the audio thread and the
	// engine's own input/output node kinds executing on it.
	input  signal.Block
	output signal.Block

	peak   atomic.Uint64 // float64 bits
	rms    atomic.Uint64 // float64 bits
	events chan Event
}

// New returns an engine for negotiated sample rate and block size. The
// device-facing "input" and "output" node kinds are registered into the
// provided registry, bound to this engine's block buffers; a registry is
// therefore owned by exactly one engine.
func New(sampleRate, blockSize int, registry *patch.Registry, options ...graph.Option) *Engine {
	e := &Engine{
		sampleRate: sampleRate,
		blockSize:  blockSize,
		period:     time.Duration(float64(blockSize) / float64(sampleRate) * float64(time.Second)),
		input:      signal.Make(blockSize),
		output:     signal.Make(blockSize),
		events:     make(chan Event, 64),
		logger:     log.GetLogger(),
	}
	registry.Add(patch.Prototype{
		Kind:        "input",
		Description: "Stream input from the audio device",
		Outputs:     []patch.Port{{Name: "out", Kind: patch.Audio}},
		Allocate: func(int, int, patch.Config) (patch.Node, error) {
			return &inputNode{engine: e}, nil
		},
	})
	registry.Add(patch.Prototype{
		Kind:        "output",
		Description: "Stream output to the audio device",
		Inputs:      []patch.Port{{Name: "in", Kind: patch.Audio}},
		Params: []patch.ParamSpec{
			{Name: "level", Min: 0, Max: 2, Default: 1},
		},
		Allocate: func(int, int, patch.Config) (patch.Node, error) {
			return &outputNode{engine: e}, nil
		},
	})
	e.store = graph.New(registry, param.NewStore(), sampleRate, blockSize, options...)
	return e
}

// Graph returns the underlying graph store. Mutating it directly
// requires a Sync call to pick up the new topology.
func (e *Engine) Graph() *graph.Store {
	return e.store
}

// SampleRate returns negotiated sample rate.
func (e *Engine) SampleRate() int {
	return e.sampleRate
}

// BlockSize returns negotiated block size.
func (e *Engine) BlockSize() int {
	return e.blockSize
}

// Events returns the asynchronous notification channel.
func (e *Engine) Events() <-chan Event {
	return e.events
}

// AddNode adds a node and publishes the new topology.
func (e *Engine) AddNode(kind string, cfg patch.Config) (graph.NodeID, error) {
	id, err := e.store.AddNode(kind, cfg)
	if err != nil {
		return "", err
	}
	return id, e.Sync()
}

// RemoveNode removes a node and publishes the new topology. The block
// already dispatched from the previous program finishes with the node
// still present.
func (e *Engine) RemoveNode(id graph.NodeID) error {
	if err := e.store.RemoveNode(id); err != nil {
		return err
	}
	return e.Sync()
}

// Connect connects two ports and publishes the new topology.
func (e *Engine) Connect(src, dst graph.PortAddr) (graph.ConnID, error) {
	id, err := e.store.Connect(src, dst)
	if err != nil {
		return "", err
	}
	return id, e.Sync()
}

// Disconnect removes a connection and publishes the new topology.
func (e *Engine) Disconnect(id graph.ConnID) error {
	if err := e.store.Disconnect(id); err != nil {
		return err
	}
	return e.Sync()
}

// SetParams replaces parameter values of a node. Parameter changes do
// not alter topology, so no recompile happens.
func (e *Engine) SetParams(id graph.NodeID, values map[string]float64) error {
	return e.store.Params().Set(string(id), values)
}

// Params returns the current parameter snapshot of a node.
func (e *Engine) Params(id graph.NodeID) (patch.Params, error) {
	return e.store.Params().Get(string(id))
}

// ClearFault resets a faulted node to normal processing.
func (e *Engine) ClearFault(id graph.NodeID) error {
	return e.store.ClearFault(id)
}

// Sync recompiles the execution program if the published snapshot has
// changed since the current program was compiled. It runs on the
// control plane; the audio thread picks the new program up on its next
// block.
func (e *Engine) Sync() error {
	snap := e.store.Snapshot()
	if p := e.program.Load(); p != nil && p.Generation() == snap.Generation() {
		return nil
	}
	p, err := runtime.Compile(snap, e.blockSize, e.onFault)
	if err != nil {
		return err
	}
	e.program.Store(p)
	e.logger.Debug("compiled program generation ", p.Generation(), " with ", p.Steps(), " steps")
	return nil
}

// Order returns the current node execution order.
func (e *Engine) Order() []graph.NodeID {
	if p := e.program.Load(); p != nil {
		return p.Order()
	}
	return nil
}

// onFault runs on the audio thread.
func (e *Engine) onFault(id graph.NodeID, err error) {
	metric.Add(metric.FaultCounter, 1)
	select {
	case e.events <- Event{Type: NodeFault, Node: id, Err: err}:
	default:
	}
}

// ProcessBlock runs one block: device input in, device output out. Both
// slices must have the negotiated block size. It is intended to be
// called from the transport callback and performs no allocation.
func (e *Engine) ProcessBlock(in, out []float32) {
	start := time.Now()

	for i := range e.input {
		if i < len(in) {
			e.input[i] = float64(in[i])
		} else {
			e.input[i] = 0
		}
	}
	e.output.Zero()

	if p := e.program.Load(); p != nil {
		p.Run()
	}

	for i := range out {
		if i < len(e.output) {
			out[i] = float32(e.output[i])
		} else {
			out[i] = 0
		}
	}
	e.peak.Store(math.Float64bits(e.output.Peak()))
	e.rms.Store(math.Float64bits(e.output.RMS()))
	metric.Add(metric.BlockCounter, 1)

	if elapsed := time.Since(start); elapsed > e.period {
		metric.Add(metric.LateCounter, 1)
		select {
		case e.events <- Event{Type: LateBlock}:
		default:
		}
	}
}

// Render pulls blocks through the graph without a device, feeding
// silence to the input kind and discarding device output. Sink nodes
// inside the graph (wav, mp3) capture whatever they are connected to.
func (e *Engine) Render(ctx context.Context, blocks int) error {
	in := make([]float32, e.blockSize)
	out := make([]float32, e.blockSize)
	for i := 0; i < blocks; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		e.ProcessBlock(in, out)
	}
	return nil
}

// Close flushes nodes holding external resources and closes the event
// channel. The engine must not process blocks afterwards.
func (e *Engine) Close() error {
	err := e.store.Close()
	close(e.events)
	return err
}

// Meter returns current output peak and RMS levels for visualisation.
func (e *Engine) Meter() (peak, rms float64) {
	return math.Float64frombits(e.peak.Load()), math.Float64frombits(e.rms.Load())
}

// Diagnostics is a point-in-time view of engine counters.
type Diagnostics struct {
	Blocks     int64
	LateBlocks int64
	Faults     int64
	Underruns  uint64
	Overruns   uint64
}

// Diagnostics aggregates engine and ring counters for the control
// plane.
func (e *Engine) Diagnostics() Diagnostics {
	d := Diagnostics{
		Blocks:     metric.Get(metric.BlockCounter),
		LateBlocks: metric.Get(metric.LateCounter),
		Faults:     metric.Get(metric.FaultCounter),
	}
	for _, c := range e.store.Snapshot().Connections() {
		d.Underruns += c.Ring.Underruns()
		d.Overruns += c.Ring.Overruns()
	}
	return d
}

// inputNode copies the engine's device input block to its output port.
type inputNode struct {
	engine *Engine
}

func (n *inputNode) Process(in, out []signal.Block, p patch.Params) error {
	out[0].Copy(n.engine.input)
	return nil
}

// outputNode accumulates its input into the engine's device output
// block, so multiple output nodes sum together.
type outputNode struct {
	engine *Engine
}

func (n *outputNode) Process(in, out []signal.Block, p patch.Params) error {
	level := p.Value("level", 1)
	dst := n.engine.output
	for i, s := range in[0] {
		if i == len(dst) {
			break
		}
		dst[i] += s * level
	}
	return nil
}
