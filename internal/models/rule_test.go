package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRule_Validate(t *testing.T) {
	flowID := "flow-1"
	empty := ""

	tests := []struct {
		name    string
		rule    Rule
		wantErr bool
	}{
		{name: "static", rule: Rule{TriggerType: TriggerExactMatch, TriggerValue: "hi", Responses: []string{"hello"}}},
		{name: "static with buttons", rule: Rule{TriggerType: TriggerContains, TriggerValue: "menu", Responses: []string{"pick"}, Buttons: []Button{{Text: "A", Payload: "a"}}}},
		{name: "flow", rule: Rule{TriggerType: TriggerStartsWith, TriggerValue: "start", FlowID: &flowID}},
		{name: "ai", rule: Rule{TriggerType: TriggerContains, TriggerValue: "?", UseAI: true}},
		{name: "unknown trigger", rule: Rule{TriggerType: "REGEX", TriggerValue: "x", UseAI: true}, wantErr: true},
		{name: "blank trigger value", rule: Rule{TriggerType: TriggerExactMatch, TriggerValue: "  ", UseAI: true}, wantErr: true},
		{name: "no mode", rule: Rule{TriggerType: TriggerExactMatch, TriggerValue: "hi"}, wantErr: true},
		{name: "empty flow id is no mode", rule: Rule{TriggerType: TriggerExactMatch, TriggerValue: "hi", FlowID: &empty}, wantErr: true},
		{name: "two modes", rule: Rule{TriggerType: TriggerExactMatch, TriggerValue: "hi", Responses: []string{"a"}, UseAI: true}, wantErr: true},
		{name: "buttons without text", rule: Rule{TriggerType: TriggerExactMatch, TriggerValue: "hi", Buttons: []Button{{Text: "A"}}}, wantErr: true},
		{
			name:    "too many buttons",
			rule:    Rule{TriggerType: TriggerExactMatch, TriggerValue: "hi", Responses: []string{"a"}, Buttons: []Button{{}, {}, {}, {}}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rule.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConversation_FlowState(t *testing.T) {
	var nilConv *Conversation
	assert.False(t, nilConv.InFlow())

	flowID, nodeID := "f", "n"
	c := &Conversation{CurrentFlowID: &flowID, CurrentNodeID: &nodeID}
	assert.True(t, c.InFlow())
	gotFlow, gotNode := c.FlowState()
	assert.Equal(t, "f", gotFlow)
	assert.Equal(t, "n", gotNode)

	c.CurrentNodeID = nil
	assert.False(t, c.InFlow())
}

func TestMessageType_IsMedia(t *testing.T) {
	assert.True(t, MessageTypeImage.IsMedia())
	assert.True(t, MessageTypeDocument.IsMedia())
	assert.False(t, MessageTypeText.IsMedia())
	assert.False(t, MessageTypeInteractive.IsMedia())
}

func TestAccount_Provider(t *testing.T) {
	assert.Equal(t, AIProviderOpenAI, (&Account{}).Provider())
	assert.Equal(t, AIProviderGemini, (&Account{AIProvider: "gemini"}).Provider())
}
