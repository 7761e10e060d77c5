package flow

import (
	"testing"

	"whatsflow/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func confirmFlow() *models.Flow {
	return &models.Flow{
		ID:   "flow-1",
		Name: "confirm",
		Nodes: []models.Node{
			{ID: models.StartNodeID, Type: models.NodeTypeInput},
			{ID: "welcome", Type: models.NodeTypeWelcomeMessage, Data: models.NodeData{Message: "Welcome!"}},
			{ID: "ask", Type: models.NodeTypeIncomingMessage, Data: models.NodeData{ExpectedMessage: "yes"}},
			{ID: "done", Type: models.NodeTypeMessage, Data: models.NodeData{Message: "Great, proceeding..."}},
		},
		Edges: []models.Edge{
			{ID: "e1", Source: models.StartNodeID, Target: "welcome"},
			{ID: "e2", Source: "welcome", Target: "ask"},
			{ID: "e3", Source: "ask", Target: "done"},
		},
	}
}

func TestGraph_Start(t *testing.T) {
	g := NewGraph(confirmFlow())

	node, err := g.Start()
	require.NoError(t, err)
	assert.Equal(t, "welcome", node.ID)
	assert.NotEqual(t, models.StartNodeID, node.ID)
	assert.Equal(t, "flow-1", g.FlowID())
}

func TestGraph_Start_Errors(t *testing.T) {
	t.Run("no start node", func(t *testing.T) {
		f := confirmFlow()
		f.Nodes = f.Nodes[1:]
		_, err := NewGraph(f).Start()
		assert.ErrorIs(t, err, ErrNoStartNode)
	})

	t.Run("start node without edge", func(t *testing.T) {
		f := &models.Flow{ID: "f", Nodes: []models.Node{{ID: models.StartNodeID, Type: models.NodeTypeInput}}}
		_, err := NewGraph(f).Start()
		assert.ErrorIs(t, err, ErrNoOutgoingEdge)
	})

	t.Run("edge to missing node", func(t *testing.T) {
		f := &models.Flow{
			ID:    "f",
			Nodes: []models.Node{{ID: models.StartNodeID, Type: models.NodeTypeInput}},
			Edges: []models.Edge{{Source: models.StartNodeID, Target: "ghost"}},
		}
		_, err := NewGraph(f).Start()
		assert.ErrorIs(t, err, ErrMissingTarget)
	})
}

func TestGraph_Advance(t *testing.T) {
	g := NewGraph(confirmFlow())

	tests := []struct {
		name     string
		current  string
		text     string
		kind     Kind
		targetID string
		expected string
	}{
		{name: "case-insensitive match advances", current: "ask", text: "Yes", kind: Advanced, targetID: "done"},
		{name: "exact match advances", current: "ask", text: "yes", kind: Advanced, targetID: "done"},
		{name: "mismatch reprompts", current: "ask", text: "no", kind: Reprompt, expected: "yes"},
		{name: "whitespace is significant", current: "ask", text: " yes", kind: Reprompt, expected: "yes"},
		{name: "message node is not waiting", current: "done", text: "yes", kind: NotWaiting},
		{name: "unknown node is not waiting", current: "ghost", text: "yes", kind: NotWaiting},
		{name: "start node is not waiting", current: models.StartNodeID, text: "yes", kind: NotWaiting},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := g.Advance(tt.current, tt.text)
			assert.Equal(t, tt.kind, tr.Kind)
			assert.Equal(t, tt.expected, tr.Expected)
			if tt.targetID != "" {
				require.NotNil(t, tr.Target)
				assert.Equal(t, tt.targetID, tr.Target.ID)
			} else {
				assert.Nil(t, tr.Target)
			}
		})
	}
}

func TestGraph_Advance_RepromptIsStable(t *testing.T) {
	g := NewGraph(confirmFlow())

	first := g.Advance("ask", "nope")
	second := g.Advance("ask", "nope")
	assert.Equal(t, first, second)
	assert.Equal(t, Reprompt, second.Kind)
}

func TestGraph_Advance_Stalled(t *testing.T) {
	f := confirmFlow()
	f.Edges = f.Edges[:2]

	tr := NewGraph(f).Advance("ask", "YES")
	assert.Equal(t, Stalled, tr.Kind)
	assert.Nil(t, tr.Target)
}

func TestGraph_Advance_Broken(t *testing.T) {
	f := confirmFlow()
	f.Edges[2].Target = "ghost"

	tr := NewGraph(f).Advance("ask", "yes")
	assert.Equal(t, Broken, tr.Kind)
	assert.ErrorIs(t, tr.Err, ErrMissingTarget)
}

func TestGraph_FirstEdgeWins(t *testing.T) {
	f := confirmFlow()
	f.Nodes = append(f.Nodes, models.Node{ID: "other", Type: models.NodeTypeMessage, Data: models.NodeData{Message: "other"}})
	f.Edges = append(f.Edges, models.Edge{ID: "e4", Source: "ask", Target: "other"})

	g := NewGraph(f)
	assert.Equal(t, 2, g.OutDegree("ask"))

	tr := g.Advance("ask", "yes")
	require.Equal(t, Advanced, tr.Kind)
	assert.Equal(t, "done", tr.Target.ID)
}

func TestGraph_Cycle(t *testing.T) {
	f := confirmFlow()
	f.Edges[2].Target = "ask"

	g := NewGraph(f)
	tr := g.Advance("ask", "yes")
	require.Equal(t, Advanced, tr.Kind)
	assert.Equal(t, "ask", tr.Target.ID)
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "advanced", Advanced.String())
	assert.Equal(t, "reprompt", Reprompt.String())
	assert.Equal(t, "kind(42)", Kind(42).String())
}
