package flow

import (
	"testing"

	"whatsflow/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(f *models.Flow)
		wantErr string
	}{
		{name: "valid", mutate: func(*models.Flow) {}},
		{
			name:    "missing start",
			mutate:  func(f *models.Flow) { f.Nodes = f.Nodes[1:]; f.Edges = f.Edges[1:] },
			wantErr: "exactly one start node, found 0",
		},
		{
			name: "two start nodes",
			mutate: func(f *models.Flow) {
				f.Nodes = append(f.Nodes, models.Node{ID: "start-2", Type: models.NodeTypeInput})
			},
			wantErr: "found 2",
		},
		{
			name:    "edge into start",
			mutate:  func(f *models.Flow) { f.Edges = append(f.Edges, models.Edge{ID: "back", Source: "done", Target: models.StartNodeID}) },
			wantErr: "points into the start node",
		},
		{
			name:    "dangling target",
			mutate:  func(f *models.Flow) { f.Edges[2].Target = "ghost" },
			wantErr: "unknown target \"ghost\"",
		},
		{
			name:    "dangling source",
			mutate:  func(f *models.Flow) { f.Edges = append(f.Edges, models.Edge{ID: "x", Source: "ghost", Target: "done"}) },
			wantErr: "unknown source \"ghost\"",
		},
		{
			name:    "branching",
			mutate:  func(f *models.Flow) { f.Edges = append(f.Edges, models.Edge{ID: "e4", Source: "ask", Target: "welcome"}) },
			wantErr: "branching is not supported",
		},
		{
			name: "too many buttons",
			mutate: func(f *models.Flow) {
				f.Nodes[3] = models.Node{ID: "done", Type: models.NodeTypeButtonMessage, Data: models.NodeData{
					Message: "pick",
					Buttons: []models.Button{{Text: "1"}, {Text: "2"}, {Text: "3"}, {Text: "4"}},
				}}
			},
			wantErr: "has 4 buttons",
		},
		{
			name:    "unknown node type",
			mutate:  func(f *models.Flow) { f.Nodes[3].Type = "delayNode" },
			wantErr: "unknown type",
		},
		{
			name:    "duplicate id",
			mutate:  func(f *models.Flow) { f.Nodes = append(f.Nodes, models.Node{ID: "done", Type: models.NodeTypeMessage}) },
			wantErr: "duplicate node id",
		},
		{
			name:    "incoming without expected message",
			mutate:  func(f *models.Flow) { f.Nodes[2].Data.ExpectedMessage = "" },
			wantErr: "no expected message",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := confirmFlow()
			tt.mutate(f)
			err := Validate(f)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidFlowData)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
