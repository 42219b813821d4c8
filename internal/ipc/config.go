package ipc

import (
	"os"
	"strings"
	"time"

	"github.com/danmuck/mpvpresence/internal/ipc/frame"
)

const (
	HandshakeVersion = 1

	// DefaultConnectTimeout bounds each of the ten dial attempts so a stale
	// socket file cannot hang the scan.
	DefaultConnectTimeout   = 100 * time.Millisecond
	DefaultHandshakeTimeout = 5 * time.Second
	DefaultWriteTimeout     = 5 * time.Second
)

// Config defines client identity and transport limits.
type Config struct {
	ClientID         string
	SocketPrefix     string
	ConnectTimeout   time.Duration
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	Limits           frame.Limits

	// PID is reported in SET_ACTIVITY args; defaults to os.Getpid.
	PID int
	// Getenv resolves the base directory on every Connect; defaults to os.Getenv.
	Getenv   func(string) string
	DialFunc DialFunc
	// Nonce generates a per-request token; defaults to a random UUID.
	Nonce func() string
}

func DefaultConfig() Config {
	return Config{
		SocketPrefix:     DefaultSocketPrefix,
		ConnectTimeout:   DefaultConnectTimeout,
		HandshakeTimeout: DefaultHandshakeTimeout,
		WriteTimeout:     DefaultWriteTimeout,
		Limits:           frame.DefaultLimits(),
	}
}

// WithDefaults fills zero fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	c.ClientID = strings.TrimSpace(c.ClientID)
	if strings.TrimSpace(c.SocketPrefix) == "" {
		c.SocketPrefix = def.SocketPrefix
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = def.ConnectTimeout
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = def.HandshakeTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.Limits.MaxPayloadBytes <= 0 {
		c.Limits = def.Limits
	}
	if c.PID <= 0 {
		c.PID = os.Getpid()
	}
	if c.Getenv == nil {
		c.Getenv = os.Getenv
	}
	if c.Nonce == nil {
		c.Nonce = newNonce
	}
	return c
}
