package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManager_Defaults(t *testing.T) {
	m := NewManager()

	assert.True(t, m.IsEnabled(FlagInboxStream))
	assert.True(t, m.IsEnabled(FlagInboundMediaResolution))
	assert.True(t, m.IsEnabled(FlagAIFallback))
	assert.False(t, m.IsEnabled(FlagDebugHeaders))
	assert.False(t, m.IsEnabled("no_such_flag"))
}

func TestManager_Set(t *testing.T) {
	m := NewManager()

	require.NoError(t, m.Set(FlagAIFallback, false))
	assert.False(t, m.IsEnabled(FlagAIFallback))

	err := m.Set("no_such_flag", true)
	assert.Equal(t, ErrFlagNotFound{Name: "no_such_flag"}, err)
	assert.Contains(t, err.Error(), "no_such_flag")
}

func TestManager_Apply(t *testing.T) {
	m := NewManager()

	unknown := m.Apply(map[string]bool{
		FlagDebugHeaders: true,
		FlagInboxStream:  false,
		"zeta":           true,
		"alpha":          false,
	})
	assert.Equal(t, []string{"alpha", "zeta"}, unknown)
	assert.True(t, m.IsEnabled(FlagDebugHeaders))
	assert.False(t, m.IsEnabled(FlagInboxStream))
}

func TestManager_LoadFromEnvironment(t *testing.T) {
	tests := []struct {
		name    string
		environ []string
		flag    string
		want    bool
	}{
		{"disable", []string{"WHATSFLOW_FEATURE_AI_FALLBACK=false"}, FlagAIFallback, false},
		{"enable", []string{"WHATSFLOW_FEATURE_DEBUG_HEADERS=1"}, FlagDebugHeaders, true},
		{"unparseable ignored", []string{"WHATSFLOW_FEATURE_AI_FALLBACK=nope"}, FlagAIFallback, true},
		{"other prefix ignored", []string{"OTHER_FEATURE_AI_FALLBACK=false"}, FlagAIFallback, true},
		{"unknown flag ignored", []string{"WHATSFLOW_FEATURE_MYSTERY=true", "PATH"}, FlagInboxStream, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager()
			m.loadFrom(tt.environ)
			assert.Equal(t, tt.want, m.IsEnabled(tt.flag))
		})
	}
}

func TestManager_LoadFromProcessEnvironment(t *testing.T) {
	t.Setenv("WHATSFLOW_FEATURE_INBOX_STREAM", "false")
	m := NewManager()
	m.LoadFromEnvironment()
	assert.False(t, m.IsEnabled(FlagInboxStream))
}

func TestManager_List(t *testing.T) {
	flags := NewManager().List()
	require.Len(t, flags, 4)
	assert.Equal(t, FlagAIFallback, flags[0].Name)
	assert.NotEmpty(t, flags[0].Description)
}

func TestGlobal(t *testing.T) {
	assert.Same(t, global, Global())
	assert.Equal(t, global.IsEnabled(FlagInboxStream), IsEnabled(FlagInboxStream))
}
