//go:build !windows

package ipc

import (
	"context"
	"net"
	"path/filepath"
)

const fallbackBaseDir = "/tmp"

// EndpointTemplate returns <baseDir>/<prefix>-{index}.
func EndpointTemplate(baseDir, prefix string) string {
	return filepath.Join(baseDir, normalizePrefix(prefix)+"-"+IndexPlaceholder)
}

// dialEndpoint connects to the host via Unix socket on Linux/macOS.
func dialEndpoint(ctx context.Context, path string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, "unix", path)
}
