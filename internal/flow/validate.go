package flow

import (
	"fmt"
	"strings"

	"whatsflow/internal/models"
)

// Validate checks the structural rules the interpreter relies on and returns
// every violation found, joined into one error.
func Validate(f *models.Flow) error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	ids := make(map[string]bool, len(f.Nodes))
	starts := 0
	for _, n := range f.Nodes {
		if n.ID == "" {
			add("node with empty id")
			continue
		}
		if ids[n.ID] {
			add("duplicate node id %q", n.ID)
		}
		ids[n.ID] = true

		switch n.Type {
		case models.NodeTypeInput:
			starts++
			if n.ID != models.StartNodeID {
				add("input node %q must have id %q", n.ID, models.StartNodeID)
			}
		case models.NodeTypeMessage, models.NodeTypeWelcomeMessage:
		case models.NodeTypeButtonMessage:
			if len(n.Data.Buttons) > models.MaxButtons {
				add("node %q has %d buttons (max %d)", n.ID, len(n.Data.Buttons), models.MaxButtons)
			}
		case models.NodeTypeIncomingMessage:
			if n.Data.ExpectedMessage == "" {
				add("incoming node %q has no expected message", n.ID)
			}
		default:
			add("node %q has unknown type %q", n.ID, n.Type)
		}
	}
	if starts != 1 {
		add("flow must have exactly one start node, found %d", starts)
	}

	outgoing := make(map[string]int, len(f.Edges))
	for _, e := range f.Edges {
		if !ids[e.Source] {
			add("edge %q references unknown source %q", e.ID, e.Source)
		}
		if !ids[e.Target] {
			add("edge %q references unknown target %q", e.ID, e.Target)
		}
		if e.Target == models.StartNodeID {
			add("edge %q points into the start node", e.ID)
		}
		outgoing[e.Source]++
	}
	for _, n := range f.Nodes {
		if outgoing[n.ID] > 1 {
			add("node %q has %d outgoing edges; branching is not supported", n.ID, outgoing[n.ID])
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidFlowData, strings.Join(problems, "; "))
}
