package ipc

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"time"

	"github.com/danmuck/mpvpresence/internal/observability"
	"github.com/rs/zerolog/log"
)

// DialFunc opens one connection to path. ctx carries the per-attempt timeout.
type DialFunc func(ctx context.Context, path string) (net.Conn, error)

type DialConfig struct {
	ConnectTimeout time.Duration
	DialFunc       DialFunc
}

// Dial scans the template's candidates in ascending index order and returns
// the first connection that opens. Absent sockets continue the scan; any
// other failure stops it.
func Dial(ctx context.Context, template string, cfg DialConfig) (net.Conn, Endpoint, error) {
	dial := cfg.DialFunc
	if dial == nil {
		dial = dialEndpoint
	}
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}

	for _, ep := range Candidates(template) {
		if err := ctx.Err(); err != nil {
			return nil, Endpoint{}, err
		}
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		conn, err := dial(attemptCtx, ep.Path())
		cancel()
		if err == nil {
			observability.RecordConnectAttempt("connected")
			log.Debug().Str("endpoint", ep.Path()).Msg("ipc.Dial connected")
			return conn, ep, nil
		}
		if errors.Is(err, fs.ErrNotExist) {
			observability.RecordConnectAttempt("absent")
			log.Trace().Str("endpoint", ep.Path()).Msg("ipc.Dial absent")
			continue
		}
		observability.RecordConnectAttempt("failed")
		return nil, ep, fmt.Errorf("%w: %s: %w", ErrConnectFailed, ep.Path(), err)
	}
	return nil, Endpoint{}, fmt.Errorf("%w: %s", ErrEndpointUnavailable, template)
}
