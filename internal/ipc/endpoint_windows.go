//go:build windows

package ipc

import (
	"context"
	"net"

	"github.com/Microsoft/go-winio"
)

const fallbackBaseDir = `\\?\pipe`

// EndpointTemplate returns \\?\pipe\<prefix>-{index}. Named pipes live in the
// pipe namespace, so baseDir is ignored.
func EndpointTemplate(_ string, prefix string) string {
	return fallbackBaseDir + `\` + normalizePrefix(prefix) + "-" + IndexPlaceholder
}

// dialEndpoint connects to the host via named pipe on Windows.
func dialEndpoint(ctx context.Context, path string) (net.Conn, error) {
	return winio.DialPipeContext(ctx, path)
}
