// Package featureflags evaluates per-user feature switches.
package featureflags

import (
	"fmt"
	"hash/fnv"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Flags read by the server. Both default to on when unset.
const (
	// Realtime gates the /api/ws event stream.
	Realtime = "realtime"
	// Stories gates story uploads. Existing stories stay visible.
	Stories = "stories"
)

// Manager evaluates feature flags defined in a simple key=value list.
// Example: "realtime=on,story_views=25%,legacy_ui=off"
type Manager struct {
	flags map[string]string
}

// fileLayout is the YAML shape of FEATURE_FLAGS_FILE:
//
//	flags:
//	  realtime: on
//	  story_views: 25%
type fileLayout struct {
	Flags map[string]any `yaml:"flags"`
}

// NewManager creates a feature-flag manager from a comma-separated config string.
func NewManager(raw string) *Manager {
	out := make(map[string]string)

	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		set(out, parts[0], parts[1])
	}

	return &Manager{flags: out}
}

// Load builds a manager from a YAML file overlaid by the inline list. Inline
// entries win. An empty path skips the file.
func Load(raw, path string) (*Manager, error) {
	m := &Manager{flags: make(map[string]string)}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read feature flags file: %w", err)
		}
		var f fileLayout
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse feature flags file %s: %w", path, err)
		}
		for k, v := range f.Flags {
			set(m.flags, k, fmt.Sprint(v))
		}
	}
	for k, v := range NewManager(raw).flags {
		m.flags[k] = v
	}
	return m, nil
}

func set(flags map[string]string, key, value string) {
	key, value = normalize(key), normalize(value)
	if key == "" || value == "" {
		return
	}
	flags[key] = value
}

// Enabled returns whether a flag is enabled for a given user.
// Supported values:
// - on/true/1
// - off/false/0
// - N% (deterministic user rollout, e.g. 25%)
func (m *Manager) Enabled(name string, userID uint) bool {
	return m.EnabledOr(name, userID, false)
}

// EnabledOr is Enabled with a fallback for flags that are not configured.
func (m *Manager) EnabledOr(name string, userID uint, fallback bool) bool {
	if m == nil {
		return fallback
	}

	value, ok := m.flags[normalize(name)]
	if !ok {
		return fallback
	}

	switch value {
	case "on", "true", "1":
		return true
	case "off", "false", "0":
		return false
	}

	if pctRaw, isPct := strings.CutSuffix(value, "%"); isPct {
		pct, err := strconv.Atoi(pctRaw)
		if err != nil || pct <= 0 {
			return false
		}
		if pct >= 100 {
			return true
		}
		if userID == 0 {
			return false
		}
		return rolloutBucket(name, userID) < pct
	}

	return false
}

// Raw returns a copy of configured flags.
func (m *Manager) Raw() map[string]string {
	out := make(map[string]string)
	if m == nil {
		return out
	}
	for k, v := range m.flags {
		out[k] = v
	}
	return out
}

// Snapshot returns evaluated flag status for one user.
func (m *Manager) Snapshot(userID uint) map[string]bool {
	out := make(map[string]bool)
	if m == nil {
		return out
	}
	for name := range m.flags {
		out[name] = m.Enabled(name, userID)
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func rolloutBucket(name string, userID uint) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(fmt.Sprintf("%s:%d", normalize(name), userID)))
	return int(h.Sum32() % 100)
}
