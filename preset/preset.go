/*
Package preset saves and restores patches as yaml documents.

A preset stores what the control plane knows: node kinds with their
configs and parameter values, and the connections between ports. Node
ids are not preserved across a restore, they are remapped as nodes are
recreated.
*/
package preset

import (
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/dudk/patch"
	"github.com/dudk/patch/engine"
	"github.com/dudk/patch/graph"
)

// Preset is the serialized form of a patch.
type Preset struct {
	Nodes       []Node       `yaml:"nodes"`
	Connections []Connection `yaml:"connections"`
}

// Node is one node of a preset. Id is only meaningful within the
// document, as a target for connections.
type Node struct {
	ID     string             `yaml:"id"`
	Kind   string             `yaml:"kind"`
	Config patch.Config       `yaml:"config,omitempty"`
	Params map[string]float64 `yaml:"params,omitempty"`
}

// Connection is one port-to-port connection of a preset.
type Connection struct {
	From Endpoint `yaml:"from"`
	To   Endpoint `yaml:"to"`
}

// Endpoint addresses a port of a preset node.
type Endpoint struct {
	Node string `yaml:"node"`
	Port int    `yaml:"port"`
}

// Capture builds a preset from the engine's current graph and
// parameters.
func Capture(e *engine.Engine) (*Preset, error) {
	snap := e.Graph().Snapshot()
	p := &Preset{}
	for _, n := range snap.Nodes() {
		values, err := e.Params(n.ID)
		if err != nil {
			return nil, err
		}
		p.Nodes = append(p.Nodes, Node{
			ID:     string(n.ID),
			Kind:   n.Kind,
			Config: n.Config,
			Params: nonDefault(n.Proto, values),
		})
	}
	for _, c := range snap.Connections() {
		p.Connections = append(p.Connections, Connection{
			From: Endpoint{Node: string(c.Src.Node), Port: c.Src.Port},
			To:   Endpoint{Node: string(c.Dst.Node), Port: c.Dst.Port},
		})
	}
	return p, nil
}

// nonDefault keeps the document small: values equal to the prototype
// default are restored implicitly.
func nonDefault(proto patch.Prototype, values patch.Params) map[string]float64 {
	var out map[string]float64
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		def := 0.0
		for _, spec := range proto.Params {
			if spec.Name == name {
				def = spec.Default
			}
		}
		if values[name] != def {
			if out == nil {
				out = make(map[string]float64)
			}
			out[name] = values[name]
		}
	}
	return out
}

// Apply recreates the preset's nodes and connections in the engine. Ids
// from the document are remapped to freshly assigned ones; the mapping
// from document id to live id is returned so callers can address the
// restored nodes.
func Apply(p *Preset, e *engine.Engine) (map[string]graph.NodeID, error) {
	ids := make(map[string]graph.NodeID, len(p.Nodes))
	for _, n := range p.Nodes {
		id, err := e.AddNode(n.Kind, n.Config)
		if err != nil {
			return nil, fmt.Errorf("node %v: %w", n.ID, err)
		}
		ids[n.ID] = id
		if len(n.Params) > 0 {
			if err := e.SetParams(id, n.Params); err != nil {
				return nil, fmt.Errorf("node %v: %w", n.ID, err)
			}
		}
	}
	for _, c := range p.Connections {
		src, ok := ids[c.From.Node]
		if !ok {
			return nil, fmt.Errorf("connection from unknown node %v", c.From.Node)
		}
		dst, ok := ids[c.To.Node]
		if !ok {
			return nil, fmt.Errorf("connection to unknown node %v", c.To.Node)
		}
		_, err := e.Connect(
			graph.PortAddr{Node: src, Port: c.From.Port},
			graph.PortAddr{Node: dst, Port: c.To.Port},
		)
		if err != nil {
			return nil, fmt.Errorf("connect %v -> %v: %w", c.From.Node, c.To.Node, err)
		}
	}
	return ids, nil
}

// Encode writes the preset as yaml.
func (p *Preset) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return err
	}
	return enc.Close()
}

// Decode reads a preset from yaml.
func Decode(r io.Reader) (*Preset, error) {
	var p Preset
	if err := yaml.NewDecoder(r).Decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Save captures the engine's patch and writes it to a file.
func Save(path string, e *engine.Engine) error {
	p, err := Capture(e)
	if err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return p.Encode(file)
}

// Load reads a preset file and applies it to the engine.
func Load(path string, e *engine.Engine) (map[string]graph.NodeID, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	p, err := Decode(file)
	if err != nil {
		return nil, err
	}
	return Apply(p, e)
}
