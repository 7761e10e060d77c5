package models

import "time"

// Conversation is the per-contact routing record for one account. CurrentFlowID and
// CurrentNodeID are either both nil (idle) or both set (in-flow).
type Conversation struct {
	ID                int64     `json:"id"`
	AccountID         string    `json:"accountId"`
	ContactNumber     string    `json:"contactNumber"`
	ContactName       string    `json:"contactName,omitempty"`
	ProfilePictureURL string    `json:"profilePictureUrl,omitempty"`
	LastMessage       string    `json:"lastMessage"`
	LastMessageAt     time.Time `json:"lastMessageAt"`
	CurrentFlowID     *string   `json:"currentFlowId,omitempty"`
	CurrentNodeID     *string   `json:"currentNodeId,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// InFlow reports whether the conversation is positioned inside a flow.
func (c *Conversation) InFlow() bool {
	return c != nil && c.CurrentFlowID != nil && c.CurrentNodeID != nil
}

// FlowState returns the flow and node ids, or empty strings when idle.
func (c *Conversation) FlowState() (flowID, nodeID string) {
	if !c.InFlow() {
		return "", ""
	}
	return *c.CurrentFlowID, *c.CurrentNodeID
}
