// Package flow interprets authored conversation graphs.
//
// A conversation positioned in a flow stores only (flowID, nodeID). The
// interpreter consumes at most one outgoing edge per node: when a graph carries
// several, the first in declaration order wins and Validate reports the graph
// as unsupported.
package flow

import (
	"errors"
	"fmt"
	"strings"

	"whatsflow/internal/models"
)

var (
	ErrNoStartNode     = errors.New("flow has no start node")
	ErrNoOutgoingEdge  = errors.New("node has no outgoing edge")
	ErrMissingTarget   = errors.New("edge target node does not exist")
	ErrInvalidFlowData = errors.New("invalid flow graph")
)

// Graph is an indexed, read-only view of a flow.
type Graph struct {
	flow  *models.Flow
	nodes map[string]*models.Node
	next  map[string]string
	out   map[string]int
}

// NewGraph indexes f. The flow must not be mutated while the graph is in use.
func NewGraph(f *models.Flow) *Graph {
	g := &Graph{
		flow:  f,
		nodes: make(map[string]*models.Node, len(f.Nodes)),
		next:  make(map[string]string, len(f.Edges)),
		out:   make(map[string]int, len(f.Edges)),
	}
	for i := range f.Nodes {
		n := &f.Nodes[i]
		if _, dup := g.nodes[n.ID]; !dup {
			g.nodes[n.ID] = n
		}
	}
	for _, e := range f.Edges {
		if _, seen := g.next[e.Source]; !seen {
			g.next[e.Source] = e.Target
		}
		g.out[e.Source]++
	}
	return g
}

func (g *Graph) FlowID() string {
	return g.flow.ID
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (*models.Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// OutDegree is the number of edges leaving id.
func (g *Graph) OutDegree(id string) int {
	return g.out[id]
}

// Next follows the first outgoing edge of id.
func (g *Graph) Next(id string) (*models.Node, error) {
	target, ok := g.next[id]
	if !ok {
		return nil, ErrNoOutgoingEdge
	}
	n, ok := g.nodes[target]
	if !ok {
		return nil, fmt.Errorf("%w: %s -> %s", ErrMissingTarget, id, target)
	}
	return n, nil
}

// Start resolves the first content node, the target of the start node's edge.
func (g *Graph) Start() (*models.Node, error) {
	start, ok := g.nodes[models.StartNodeID]
	if !ok || start.Type != models.NodeTypeInput {
		return nil, ErrNoStartNode
	}
	return g.Next(start.ID)
}

// Kind classifies the outcome of Advance.
type Kind int

const (
	// NotWaiting: the current node is missing or is not an incomingMessageNode.
	NotWaiting Kind = iota
	// Advanced: the reply matched and the conversation moves to Target.
	Advanced
	// Stalled: the reply matched but the node has no outgoing edge.
	Stalled
	// Reprompt: the reply did not match; the conversation stays put.
	Reprompt
	// Broken: the reply matched but the edge points at a node that does not exist.
	Broken
)

func (k Kind) String() string {
	switch k {
	case NotWaiting:
		return "not_waiting"
	case Advanced:
		return "advanced"
	case Stalled:
		return "stalled"
	case Reprompt:
		return "reprompt"
	case Broken:
		return "broken"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Transition is the result of feeding one inbound text to the current node.
type Transition struct {
	Kind     Kind
	Target   *models.Node
	Expected string
	Err      error
}

// Advance applies an inbound text to the node the conversation is parked on.
// It never mutates the graph or any stored state.
func (g *Graph) Advance(currentNodeID, text string) Transition {
	current, ok := g.nodes[currentNodeID]
	if !ok || current.Type != models.NodeTypeIncomingMessage {
		return Transition{Kind: NotWaiting}
	}

	expected := current.Data.ExpectedMessage
	if !strings.EqualFold(text, expected) {
		return Transition{Kind: Reprompt, Expected: expected}
	}

	target, err := g.Next(current.ID)
	switch {
	case errors.Is(err, ErrNoOutgoingEdge):
		return Transition{Kind: Stalled}
	case err != nil:
		return Transition{Kind: Broken, Err: err}
	}
	return Transition{Kind: Advanced, Target: target}
}
