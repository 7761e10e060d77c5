package features

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Flag is one operator switch.
type Flag struct {
	Name        string    `json:"name"`
	Enabled     bool      `json:"enabled"`
	Description string    `json:"description"`
	UpdatedAt   time.Time `json:"updated_at"`
}

const (
	// FlagInboxStream serves the live inbox websocket.
	FlagInboxStream = "inbox_stream"
	// FlagInboundMediaResolution resolves media ids on inbound messages to download URLs.
	FlagInboundMediaResolution = "inbound_media_resolution"
	// FlagAIFallback lets accounts with AI enabled answer unmatched messages.
	FlagAIFallback = "ai_fallback"
	// FlagDebugHeaders logs masked request headers at debug level.
	FlagDebugHeaders = "debug_headers"
)

// EnvPrefix prefixes per-flag environment overrides, e.g.
// WHATSFLOW_FEATURE_AI_FALLBACK=false.
const EnvPrefix = "WHATSFLOW_FEATURE_"

type definition struct {
	name        string
	description string
	enabled     bool
}

var defaultFlags = []definition{
	{FlagInboxStream, "Serve live inbox updates over websocket", true},
	{FlagInboundMediaResolution, "Resolve inbound media ids through the Cloud API", true},
	{FlagAIFallback, "Answer unmatched messages with AI for accounts that enable it", true},
	{FlagDebugHeaders, "Log masked request headers at debug level", false},
}

// ErrFlagNotFound is returned for names that were never defined.
type ErrFlagNotFound struct {
	Name string
}

func (e ErrFlagNotFound) Error() string {
	return fmt.Sprintf("feature flag not found: %s", e.Name)
}

// Manager holds flag state. It is safe for concurrent use.
type Manager struct {
	mu    sync.RWMutex
	flags map[string]*Flag
}

// NewManager returns a manager with every known flag at its default.
func NewManager() *Manager {
	m := &Manager{flags: make(map[string]*Flag, len(defaultFlags))}
	now := time.Now()
	for _, def := range defaultFlags {
		m.flags[def.name] = &Flag{Name: def.name, Enabled: def.enabled, Description: def.description, UpdatedAt: now}
	}
	return m
}

// IsEnabled reports whether name is on. Unknown flags are off.
func (m *Manager) IsEnabled(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.flags[name]
	return ok && f.Enabled
}

// Set turns a known flag on or off.
func (m *Manager) Set(name string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.flags[name]
	if !ok {
		return ErrFlagNotFound{Name: name}
	}
	f.Enabled = enabled
	f.UpdatedAt = time.Now()
	return nil
}

// Apply sets every flag named in values and returns the names it did not know.
func (m *Manager) Apply(values map[string]bool) []string {
	var unknown []string
	for name, enabled := range values {
		if err := m.Set(name, enabled); err != nil {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)
	return unknown
}

// LoadFromEnvironment applies WHATSFLOW_FEATURE_<NAME>=<bool> overrides.
// Values that do not parse as booleans are ignored.
func (m *Manager) LoadFromEnvironment() {
	m.loadFrom(os.Environ())
}

func (m *Manager) loadFrom(environ []string) {
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			continue
		}
		name := strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
		_ = m.Set(name, enabled)
	}
}

// List returns a snapshot of all flags sorted by name.
func (m *Manager) List() []Flag {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Flag, 0, len(m.flags))
	for _, f := range m.flags {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

var global = NewManager()

// IsEnabled checks a flag on the process-wide manager.
func IsEnabled(name string) bool {
	return global.IsEnabled(name)
}

// Global returns the process-wide manager.
func Global() *Manager {
	return global
}
