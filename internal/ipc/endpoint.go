package ipc

import (
	"strconv"
	"strings"
)

const (
	DefaultSocketPrefix = "discord-ipc"
	MaxEndpointIndex    = 9

	// IndexPlaceholder marks where the candidate index goes in a template.
	IndexPlaceholder = "{index}"
)

// baseDirEnv is probed in order by ResolveBaseDirectory.
var baseDirEnv = []string{"XDG_RUNTIME_DIR", "TMPDIR", "TMP", "TEMP"}

// ResolveBaseDirectory returns the first set, non-empty base directory from
// the environment, or the platform fallback.
func ResolveBaseDirectory(getenv func(string) string) string {
	for _, name := range baseDirEnv {
		if v := strings.TrimSpace(getenv(name)); v != "" {
			return v
		}
	}
	return fallbackBaseDir
}

// Endpoint is one candidate host socket.
type Endpoint struct {
	Template string
	Index    int
}

func (e Endpoint) Path() string {
	return strings.ReplaceAll(e.Template, IndexPlaceholder, strconv.Itoa(e.Index))
}

func (e Endpoint) String() string {
	return e.Path()
}

// Candidates returns the endpoints for indices 0..MaxEndpointIndex in scan order.
func Candidates(template string) []Endpoint {
	out := make([]Endpoint, 0, MaxEndpointIndex+1)
	for i := 0; i <= MaxEndpointIndex; i++ {
		out = append(out, Endpoint{Template: template, Index: i})
	}
	return out
}

func normalizePrefix(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return DefaultSocketPrefix
	}
	return prefix
}
