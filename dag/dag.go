package dag

import (
	"fmt"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/encoding"
	"gonum.org/v1/gonum/graph/encoding/dot"
	"gonum.org/v1/gonum/graph/simple"
)

// Graph is a directed graph whose nodes carry DOT attributes.
type Graph struct {
	*simple.DirectedGraph
	attrs     encoding.Attributes
	nodeAttrs encoding.Attributes
	edgeAttrs encoding.Attributes
}

func New() *Graph {
	return &Graph{DirectedGraph: simple.NewDirectedGraph()}
}

// NewNode returns a new node with a unique ID. The node is not added to the
// graph.
func (g *Graph) NewNode() *Node {
	return &Node{Node: g.DirectedGraph.NewNode()}
}

// DOTAttributers implements dot.Attributers.
func (g *Graph) DOTAttributers() (graph, node, edge encoding.Attributer) {
	return &g.attrs, &g.nodeAttrs, &g.edgeAttrs
}

func (g *Graph) SetAttribute(attr encoding.Attribute) error {
	return g.attrs.SetAttribute(attr)
}

// Connect adds an edge from -> to. Both nodes must be in the graph.
func (g *Graph) Connect(from, to int64) error {
	f := g.Node(from)
	if f == nil {
		return fmt.Errorf("node %d does not exist", from)
	}
	t := g.Node(to)
	if t == nil {
		return fmt.Errorf("node %d does not exist", to)
	}
	g.SetEdge(simple.Edge{F: f, T: t})
	return nil
}

// ExportToDot exports the graph to Graphviz .dot format.
func (g *Graph) ExportToDot(name string) (string, error) {
	data, err := dot.Marshal(g, name, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to export DAG to DOT format: %v", err)
	}
	return string(data), nil
}

type Node struct {
	graph.Node
	dotID string
	attrs encoding.Attributes
}

// DOTID implements dot.Node. Nodes without an explicit ID fall back to
// their numeric ID.
func (n *Node) DOTID() string {
	if n.dotID == "" {
		return fmt.Sprint(n.ID())
	}
	return n.dotID
}

// SetDOTID sets a DOT ID.
func (n *Node) SetDOTID(id string) {
	n.dotID = id
}

func (n *Node) Attributes() []encoding.Attribute {
	return n.attrs.Attributes()
}

func (n *Node) SetAttribute(attr encoding.Attribute) error {
	return n.attrs.SetAttribute(attr)
}
