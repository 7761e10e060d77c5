package models

import "time"

type NodeType string

const (
	NodeTypeInput           NodeType = "input"
	NodeTypeMessage         NodeType = "messageNode"
	NodeTypeButtonMessage   NodeType = "buttonMessageNode"
	NodeTypeIncomingMessage NodeType = "incomingMessageNode"
	NodeTypeWelcomeMessage  NodeType = "welcomeMessageNode"
)

// StartNodeID is the id of the synthetic entry node every flow carries.
const StartNodeID = "start-node"

// Flow is an authored conversation graph.
type Flow struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	Nodes     []Node    `json:"nodes"`
	Edges     []Edge    `json:"edges"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Node struct {
	ID       string    `json:"id"`
	Type     NodeType  `json:"type"`
	Data     NodeData  `json:"data"`
	Position *Position `json:"position,omitempty"`
}

type NodeData struct {
	Label           string   `json:"label,omitempty"`
	Message         string   `json:"message,omitempty"`
	Buttons         []Button `json:"buttons,omitempty"`
	ExpectedMessage string   `json:"expectedMessage,omitempty"`
}

// Position is editor layout, carried through untouched.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Edge struct {
	ID     string `json:"id,omitempty"`
	Source string `json:"source"`
	Target string `json:"target"`
}
