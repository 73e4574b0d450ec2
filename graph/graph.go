/*
Package graph stores the audio node graph and publishes immutable
snapshots of it.

All mutation happens on the control plane: a mutating call validates the
request, builds a new snapshot and publishes it with one atomic pointer
swap. Readers always observe a fully consistent graph, never a partial
edit. The audio thread never touches the store itself, it only executes
programs compiled from snapshots.
*/
package graph

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/rs/xid"

	"github.com/dudk/patch"
	"github.com/dudk/patch/param"
	"github.com/dudk/patch/stream"
)

// Structural errors rejected at mutation time. They never reach the
// audio thread.
var (
	ErrUnknownNode       = errors.New("unknown node")
	ErrUnknownPort       = errors.New("unknown port")
	ErrUnknownConnection = errors.New("unknown connection")
	ErrPortKindMismatch  = errors.New("port kind mismatch")
	ErrPortConnected     = errors.New("input port already connected")
	ErrCycle             = errors.New("cycle detected")
)

type (
	// NodeID identifies a node. Ids are k-sortable, so ascending id
	// order is creation order.
	NodeID string

	// ConnID identifies a connection.
	ConnID string

	// PortAddr identifies a port as (node id, port index). Direction is
	// implied by use: source addresses index output ports, destination
	// addresses index input ports.
	PortAddr struct {
		Node NodeID
		Port int
	}
)

// Health is the fault state of one node. It is shared by reference
// across snapshots, so a fault raised while one snapshot executes stays
// raised after the graph is edited, until explicitly cleared.
type Health struct {
	faulted atomic.Bool
	faults  atomic.Uint64
}

// Fault marks the node faulted and counts the occurrence.
func (h *Health) Fault() {
	h.faulted.Store(true)
	h.faults.Add(1)
}

// Clear resets the fault flag.
func (h *Health) Clear() {
	h.faulted.Store(false)
}

// Faulted reports whether the node is currently faulted.
func (h *Health) Faulted() bool {
	return h.faulted.Load()
}

// Faults returns total number of faults raised.
func (h *Health) Faults() uint64 {
	return h.faults.Load()
}

// NodeRef is a node as stored in a snapshot: identity, kind metadata,
// the processing instance and its parameter cell. The instance is owned
// exclusively by the store; other components reference nodes by id.
type NodeRef struct {
	ID     NodeID
	Kind   string
	Proto  patch.Prototype
	Config patch.Config
	Node   patch.Node
	Cell   *param.Cell
	Health *Health
}

// Conn is a connection between a source output port and a destination
// input port. Each connection owns one ring buffer, allocated when the
// connection is created and released with the last snapshot holding it.
type Conn struct {
	ID   ConnID
	Src  PortAddr
	Dst  PortAddr
	Ring *stream.Ring
}

// Snapshot is an immutable view of all nodes and connections at a point
// in time. Multiple snapshots may be alive simultaneously: the old one
// still executing a block while a new one is being built.
type Snapshot struct {
	generation uint64
	nodes      map[NodeID]*NodeRef
	conns      map[ConnID]Conn
}

// Generation returns the publish counter of this snapshot. It changes
// with every successful mutation and is what invalidates cached
// execution orders.
func (s *Snapshot) Generation() uint64 {
	return s.generation
}

// Node returns the node reference for provided id.
func (s *Snapshot) Node(id NodeID) (*NodeRef, bool) {
	n, ok := s.nodes[id]
	return n, ok
}

// Nodes returns all nodes in ascending id order.
func (s *Snapshot) Nodes() []*NodeRef {
	nodes := make([]*NodeRef, 0, len(s.nodes))
	for _, n := range s.nodes {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	return nodes
}

// Connections returns all connections in ascending id order.
func (s *Snapshot) Connections() []Conn {
	conns := make([]Conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	sort.Slice(conns, func(i, j int) bool { return conns[i].ID < conns[j].ID })
	return conns
}

// Inbound returns the connection feeding provided input port, if any.
// Input ports accept at most one connection.
func (s *Snapshot) Inbound(dst PortAddr) (Conn, bool) {
	for _, c := range s.conns {
		if c.Dst == dst {
			return c, true
		}
	}
	return Conn{}, false
}

// Store holds the graph and constructs node instances through the
// registry. All methods are safe for concurrent use from the control
// plane.
type Store struct {
	m            sync.Mutex
	registry     *patch.Registry
	params       *param.Store
	sampleRate   int
	blockSize    int
	ringCapacity int
	current      atomic.Pointer[Snapshot]
}

// Option configures the store.
type Option func(*Store)

// WithRingCapacity overrides ring buffer capacity for new connections.
func WithRingCapacity(capacity int) Option {
	return func(s *Store) {
		s.ringCapacity = capacity
	}
}

// New returns an empty store for negotiated sample rate and block size.
func New(registry *patch.Registry, params *param.Store, sampleRate, blockSize int, options ...Option) *Store {
	s := &Store{
		registry:     registry,
		params:       params,
		sampleRate:   sampleRate,
		blockSize:    blockSize,
		ringCapacity: stream.DefaultCapacity,
	}
	for _, option := range options {
		option(s)
	}
	s.current.Store(&Snapshot{
		nodes: make(map[NodeID]*NodeRef),
		conns: make(map[ConnID]Conn),
	})
	return s
}

// Snapshot returns the currently published snapshot.
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// SampleRate returns negotiated sample rate.
func (s *Store) SampleRate() int {
	return s.sampleRate
}

// BlockSize returns negotiated block size.
func (s *Store) BlockSize() int {
	return s.blockSize
}

// Params returns the parameter store bound to this graph.
func (s *Store) Params() *param.Store {
	return s.params
}

// AddNode constructs a node of provided kind and publishes a snapshot
// containing it. Construction runs on the control plane and may block,
// e.g. to decode a sample file.
func (s *Store) AddNode(kind string, cfg patch.Config) (NodeID, error) {
	proto, err := s.registry.Get(kind)
	if err != nil {
		return "", err
	}
	node, err := proto.Allocate(s.sampleRate, s.blockSize, cfg)
	if err != nil {
		return "", fmt.Errorf("allocate %q: %w", kind, err)
	}

	s.m.Lock()
	defer s.m.Unlock()

	id := NodeID(xid.New().String())
	ref := &NodeRef{
		ID:     id,
		Kind:   kind,
		Proto:  proto,
		Config: cfg,
		Node:   node,
		Cell:   s.params.Bind(string(id), proto.Params),
		Health: &Health{},
	}

	next := s.clone()
	next.nodes[id] = ref
	s.publish(next)
	return id, nil
}

// RemoveNode removes the node and all its connections. An in-flight
// block scheduled from the previous snapshot finishes with the node
// still present; the next block simply omits it.
func (s *Store) RemoveNode(id NodeID) error {
	s.m.Lock()
	defer s.m.Unlock()

	snap := s.current.Load()
	if _, ok := snap.nodes[id]; !ok {
		return fmt.Errorf("%w: %v", ErrUnknownNode, id)
	}

	next := s.clone()
	delete(next.nodes, id)
	for connID, c := range next.conns {
		if c.Src.Node == id || c.Dst.Node == id {
			delete(next.conns, connID)
		}
	}
	s.params.Drop(string(id))
	s.publish(next)

	node := snap.nodes[id]
	if f, ok := node.Node.(patch.Flusher); ok {
		if err := f.Flush(); err != nil {
			return fmt.Errorf("flush %v: %w", id, err)
		}
	}
	return nil
}

// Close flushes all nodes holding external resources. The store is not
// usable afterwards.
func (s *Store) Close() error {
	s.m.Lock()
	defer s.m.Unlock()
	var errFlush error
	for _, n := range s.current.Load().Nodes() {
		if f, ok := n.Node.(patch.Flusher); ok {
			if err := f.Flush(); err != nil && errFlush == nil {
				errFlush = fmt.Errorf("flush %v: %w", n.ID, err)
			}
		}
	}
	return errFlush
}

// Connect connects a source output port to a destination input port.
// Signal kinds must match, the input must be free and the resulting
// audio graph must stay acyclic except through delay-breaking nodes. On
// validation failure the published snapshot is unchanged.
func (s *Store) Connect(src, dst PortAddr) (ConnID, error) {
	s.m.Lock()
	defer s.m.Unlock()

	snap := s.current.Load()
	srcNode, ok := snap.nodes[src.Node]
	if !ok {
		return "", fmt.Errorf("%w: source %v", ErrUnknownNode, src.Node)
	}
	dstNode, ok := snap.nodes[dst.Node]
	if !ok {
		return "", fmt.Errorf("%w: destination %v", ErrUnknownNode, dst.Node)
	}
	if src.Port < 0 || src.Port >= len(srcNode.Proto.Outputs) {
		return "", fmt.Errorf("%w: output %d of %v", ErrUnknownPort, src.Port, src.Node)
	}
	if dst.Port < 0 || dst.Port >= len(dstNode.Proto.Inputs) {
		return "", fmt.Errorf("%w: input %d of %v", ErrUnknownPort, dst.Port, dst.Node)
	}
	srcPort := srcNode.Proto.Outputs[src.Port]
	dstPort := dstNode.Proto.Inputs[dst.Port]
	if srcPort.Kind != dstPort.Kind {
		return "", fmt.Errorf("%w: %v is %v, %v is %v",
			ErrPortKindMismatch, src, srcPort.Kind, dst, dstPort.Kind)
	}
	if c, ok := snap.Inbound(dst); ok {
		return "", fmt.Errorf("%w: %v already fed by %v", ErrPortConnected, dst, c.Src)
	}
	if hasCycle(snap, src.Node, dst.Node) {
		return "", fmt.Errorf("%w: %v -> %v", ErrCycle, src.Node, dst.Node)
	}

	id := ConnID(xid.New().String())
	next := s.clone()
	next.conns[id] = Conn{
		ID:   id,
		Src:  src,
		Dst:  dst,
		Ring: stream.NewRing(s.ringCapacity, s.blockSize),
	}
	s.publish(next)
	return id, nil
}

// Disconnect removes the connection. Its ring stays alive until the
// last snapshot chain referencing it is dropped, never released inside
// the real-time path.
func (s *Store) Disconnect(id ConnID) error {
	s.m.Lock()
	defer s.m.Unlock()

	snap := s.current.Load()
	if _, ok := snap.conns[id]; !ok {
		return fmt.Errorf("%w: %v", ErrUnknownConnection, id)
	}
	next := s.clone()
	delete(next.conns, id)
	s.publish(next)
	return nil
}

// ClearFault resets the fault state of the node, returning it to normal
// processing on the next block.
func (s *Store) ClearFault(id NodeID) error {
	snap := s.current.Load()
	n, ok := snap.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %v", ErrUnknownNode, id)
	}
	n.Health.Clear()
	return nil
}

// clone builds the next snapshot from the current one. Node references
// and rings are shared, the maps are copied.
func (s *Store) clone() *Snapshot {
	snap := s.current.Load()
	next := &Snapshot{
		generation: snap.generation + 1,
		nodes:      make(map[NodeID]*NodeRef, len(snap.nodes)+1),
		conns:      make(map[ConnID]Conn, len(snap.conns)+1),
	}
	for id, n := range snap.nodes {
		next.nodes[id] = n
	}
	for id, c := range snap.conns {
		next.conns[id] = c
	}
	return next
}

func (s *Store) publish(next *Snapshot) {
	s.current.Store(next)
}

// hasCycle reports whether adding edge src -> dst closes a cycle not
// routed through a delay-breaking node. Edges into delay-breaking nodes
// impose no same-block ordering, so they are excluded: a feedback path
// must pass through one such node and incurs exactly one block of
// latency there.
func hasCycle(snap *Snapshot, src, dst NodeID) bool {
	adjacent := make(map[NodeID][]NodeID, len(snap.nodes))
	indegree := make(map[NodeID]int, len(snap.nodes))
	for id := range snap.nodes {
		indegree[id] = 0
	}

	addEdge := func(from, to NodeID) {
		if snap.nodes[to].Proto.DelayBreaking {
			return
		}
		adjacent[from] = append(adjacent[from], to)
		indegree[to]++
	}
	for _, c := range snap.conns {
		addEdge(c.Src.Node, c.Dst.Node)
	}
	addEdge(src, dst)

	ready := make([]NodeID, 0, len(indegree))
	for id, deg := range indegree {
		if deg == 0 {
			ready = append(ready, id)
		}
	}
	visited := 0
	for len(ready) > 0 {
		id := ready[len(ready)-1]
		ready = ready[:len(ready)-1]
		visited++
		for _, next := range adjacent[id] {
			if indegree[next]--; indegree[next] == 0 {
				ready = append(ready, next)
			}
		}
	}
	return visited != len(indegree)
}
