/*
Package runtime compiles graph snapshots into linear execution programs
and runs them block by block.

Compilation happens on the control plane whenever a new snapshot is
published. The compiled program owns all scratch buffers, so the per
block Run is allocation-free and lock-free: the audio thread only loads
the current program pointer and executes it.
*/
package runtime

import (
	"fmt"
	"sort"

	"github.com/dudk/patch"
	"github.com/dudk/patch/graph"
	"github.com/dudk/patch/param"
	"github.com/dudk/patch/signal"
	"github.com/dudk/patch/stream"
)

// FaultFunc is called when a node's processing reports a fault. It runs
// on the audio thread and must not block.
type FaultFunc func(id graph.NodeID, err error)

// step is one node execution with its bound rings and scratch blocks.
type step struct {
	id     graph.NodeID
	node   patch.Node
	health *graph.Health
	cell   *param.Cell

	in       []signal.Block
	out      []signal.Block
	inRings  []*stream.Ring   // nil for unconnected inputs
	outRings [][]*stream.Ring // fan-out per output port

	// first audio input index, -1 if none; used for pass-through when
	// the node is faulted.
	audioIn   int
	audioOuts []int
}

// Program is a linear execution order over one graph snapshot.
type Program struct {
	generation uint64
	steps      []*step
	notify     FaultFunc
}

// Compile turns a snapshot into a program. The execution order is a
// topological order over the graph with edges into delay-breaking nodes
// ignored: such a node's current output was computed from the previous
// block's input, so it orders as a source. Ties break by ascending node
// id, which makes re-compiling an unchanged graph reproducible.
func Compile(snap *graph.Snapshot, blockSize int, notify FaultFunc) (*Program, error) {
	nodes := snap.Nodes()
	order, err := sortNodes(snap, nodes)
	if err != nil {
		return nil, err
	}

	p := &Program{
		generation: snap.Generation(),
		steps:      make([]*step, 0, len(order)),
		notify:     notify,
	}
	for _, n := range order {
		s := &step{
			id:       n.ID,
			node:     n.Node,
			health:   n.Health,
			cell:     n.Cell,
			in:       make([]signal.Block, len(n.Proto.Inputs)),
			out:      make([]signal.Block, len(n.Proto.Outputs)),
			inRings:  make([]*stream.Ring, len(n.Proto.Inputs)),
			outRings: make([][]*stream.Ring, len(n.Proto.Outputs)),
			audioIn:  -1,
		}
		for i, port := range n.Proto.Inputs {
			s.in[i] = signal.Make(blockSize)
			if port.Kind == patch.Audio && s.audioIn == -1 {
				s.audioIn = i
			}
			if c, ok := snap.Inbound(graph.PortAddr{Node: n.ID, Port: i}); ok {
				s.inRings[i] = c.Ring
			}
		}
		for i, port := range n.Proto.Outputs {
			s.out[i] = signal.Make(blockSize)
			if port.Kind == patch.Audio {
				s.audioOuts = append(s.audioOuts, i)
			}
		}
		for _, c := range snap.Connections() {
			if c.Src.Node == n.ID {
				s.outRings[c.Src.Port] = append(s.outRings[c.Src.Port], c.Ring)
			}
		}
		p.steps = append(p.steps, s)
	}
	return p, nil
}

// sortNodes returns nodes in execution order. Input is already sorted
// by ascending id; the scan below always picks the smallest ready id.
func sortNodes(snap *graph.Snapshot, nodes []*graph.NodeRef) ([]*graph.NodeRef, error) {
	indegree := make(map[graph.NodeID]int, len(nodes))
	adjacent := make(map[graph.NodeID][]graph.NodeID, len(nodes))
	for _, n := range nodes {
		indegree[n.ID] = 0
	}
	for _, c := range snap.Connections() {
		dst, _ := snap.Node(c.Dst.Node)
		if dst.Proto.DelayBreaking {
			continue
		}
		adjacent[c.Src.Node] = append(adjacent[c.Src.Node], c.Dst.Node)
		indegree[c.Dst.Node]++
	}

	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	order := make([]*graph.NodeRef, 0, len(nodes))
	done := make(map[graph.NodeID]bool, len(nodes))
	for len(order) < len(nodes) {
		picked := false
		for _, n := range nodes {
			if done[n.ID] || indegree[n.ID] != 0 {
				continue
			}
			done[n.ID] = true
			order = append(order, n)
			for _, next := range adjacent[n.ID] {
				indegree[next]--
			}
			picked = true
			break
		}
		if !picked {
			// The store validates acyclicity at mutation time, so a
			// leftover here is a programmer error.
			return nil, fmt.Errorf("graph is not schedulable: cycle among %d nodes", len(nodes)-len(order))
		}
	}
	return order, nil
}

// Generation returns the snapshot generation this program was compiled
// from.
func (p *Program) Generation() uint64 {
	return p.generation
}

// Steps returns number of node executions per block.
func (p *Program) Steps() int {
	return len(p.steps)
}

// Order returns the node execution order.
func (p *Program) Order() []graph.NodeID {
	order := make([]graph.NodeID, len(p.steps))
	for i, s := range p.steps {
		order[i] = s.id
	}
	return order
}

// Run executes one block: for every node in order, gather inputs from
// rings (silence when unconnected), process with the current parameter
// snapshot and write outputs to every connected ring. A faulted node is
// replaced by pass-through until its health is cleared; the fault never
// aborts the block.
func (p *Program) Run() {
	for _, s := range p.steps {
		for i, ring := range s.inRings {
			if ring != nil {
				ring.Read(s.in[i])
			} else {
				s.in[i].Zero()
			}
		}

		if s.health.Faulted() {
			s.bypass()
		} else if err := s.process(); err != nil {
			s.health.Fault()
			if p.notify != nil {
				p.notify(s.id, err)
			}
			s.bypass()
		}

		for i, rings := range s.outRings {
			for _, ring := range rings {
				ring.Write(s.out[i])
			}
		}
	}
}

// process runs the node, converting a panic into a fault so that a
// misbehaving node cannot take down the callback or its siblings.
func (s *step) process() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("node panic: %v", r)
		}
	}()
	return s.node.Process(s.in, s.out, s.cell.Load())
}

// bypass replaces a faulted node: the first audio input is passed
// through to all audio outputs, everything else is silence.
func (s *step) bypass() {
	for i := range s.out {
		s.out[i].Zero()
	}
	if s.audioIn >= 0 {
		for _, i := range s.audioOuts {
			s.out[i].Copy(s.in[s.audioIn])
		}
	}
}
