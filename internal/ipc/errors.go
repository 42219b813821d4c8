package ipc

import "errors"

var (
	ErrClientIDRequired    = errors.New("ipc: client_id required")
	ErrEndpointUnavailable = errors.New("ipc: no presence host socket found")
	ErrConnectFailed       = errors.New("ipc: connect failed")
	ErrHandshakeRejected   = errors.New("ipc: handshake rejected")
	ErrNotReady            = errors.New("ipc: client not ready")
	ErrClientUnusable      = errors.New("ipc: client unusable after failure")
	ErrClientClosed        = errors.New("ipc: client closed")
	ErrInvalidActivity     = errors.New("ipc: invalid activity")
	ErrAlreadyConnected    = errors.New("ipc: client already connected")
)
