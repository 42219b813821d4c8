package ipc

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/danmuck/mpvpresence/internal/ipc/frame"
	"github.com/danmuck/mpvpresence/internal/observability"
	"github.com/rs/zerolog/log"
)

type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateHandshaking
	StateReady
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateHandshaking:
		return "handshaking"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Client owns one connection to the presence host.
type Client struct {
	cfg Config

	mu       sync.Mutex
	state    State
	conn     net.Conn
	endpoint Endpoint
	drained  chan struct{}
}

func NewClient(cfg Config) (*Client, error) {
	cfg = cfg.WithDefaults()
	if cfg.ClientID == "" {
		return nil, ErrClientIDRequired
	}
	return &Client{cfg: cfg}, nil
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Endpoint reports the candidate the client connected to.
func (c *Client) Endpoint() Endpoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.endpoint
}

// Connect dials the host and performs the version 1 handshake.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StateDisconnected:
	case StateClosed:
		return ErrClientClosed
	case StateFailed:
		return ErrClientUnusable
	default:
		return ErrAlreadyConnected
	}

	c.state = StateConnecting
	template := EndpointTemplate(ResolveBaseDirectory(c.cfg.Getenv), c.cfg.SocketPrefix)
	conn, ep, err := Dial(ctx, template, DialConfig{
		ConnectTimeout: c.cfg.ConnectTimeout,
		DialFunc:       c.cfg.DialFunc,
	})
	if err != nil {
		c.state = StateFailed
		observability.RecordHandshake("unreachable")
		return err
	}
	c.conn = conn
	c.endpoint = ep

	c.state = StateHandshaking
	user, err := c.handshake(ctx)
	if err != nil {
		c.failLocked()
		observability.RecordHandshake("rejected")
		return err
	}
	c.state = StateReady
	observability.RecordHandshake("ready")
	log.Info().
		Str("endpoint", ep.Path()).
		Str("client_id", c.cfg.ClientID).
		Str("user", user).
		Msg("ipc.Client ready")

	c.drained = make(chan struct{})
	go c.drain(conn, c.drained)
	return nil
}

func (c *Client) handshake(ctx context.Context) (string, error) {
	_ = c.conn.SetDeadline(deadlineFor(ctx, c.cfg.HandshakeTimeout))
	req := handshakeRequest{V: HandshakeVersion, ClientID: c.cfg.ClientID}
	if err := frame.WriteFrame(c.conn, frame.OpHandshake, req, c.cfg.Limits); err != nil {
		return "", fmt.Errorf("ipc: write handshake: %w", err)
	}
	fr, err := frame.ReadFrame(c.conn, c.cfg.Limits)
	if err != nil {
		return "", fmt.Errorf("ipc: read handshake: %w", err)
	}
	var resp response
	if err := fr.Decode(&resp); err != nil {
		return "", err
	}
	if fr.Op == frame.OpClose || resp.Evt != evtReady {
		return "", fmt.Errorf("%w: op=%s evt=%q code=%d message=%q",
			ErrHandshakeRejected, fr.Op, resp.Evt, resp.Code, resp.Message)
	}
	_ = c.conn.SetDeadline(time.Time{})

	var data readyData
	if len(resp.Data) > 0 {
		_ = json.Unmarshal(resp.Data, &data)
	}
	return data.User.Username, nil
}

// Publish sends one SET_ACTIVITY request without waiting for a reply.
func (c *Client) Publish(activity Activity) error {
	if err := activity.Validate(); err != nil {
		return err
	}
	return c.setActivity(&activity)
}

// ClearActivity asks the host to drop the current presence.
func (c *Client) ClearActivity() error {
	return c.setActivity(nil)
}

func (c *Client) setActivity(activity *Activity) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.readyLocked(); err != nil {
		return err
	}

	req := commandRequest{
		Cmd: cmdSetActivity,
		Args: setActivityArgs{
			PID:      c.cfg.PID,
			Activity: activity,
		},
		Nonce: c.cfg.Nonce(),
	}
	buf, err := frame.Encode(frame.OpFrame, req, c.cfg.Limits)
	if err != nil {
		observability.RecordPublish("invalid")
		return err
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	if err := frame.WriteAll(c.conn, buf); err != nil {
		observability.RecordPublish("failed")
		c.failLocked()
		return fmt.Errorf("ipc: publish: %w", err)
	}
	observability.RecordPublish("sent")
	log.Trace().Str("nonce", req.Nonce).Msg("ipc.Client publish")
	return nil
}

// Close sends a best-effort close frame and releases the connection. Safe to
// call in any state and more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	prev := c.state
	if prev == StateClosed {
		c.mu.Unlock()
		return nil
	}
	c.state = StateClosed
	conn, drained := c.conn, c.drained
	c.conn = nil

	var err error
	if conn != nil {
		if prev == StateReady {
			_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			req := handshakeRequest{V: HandshakeVersion, ClientID: c.cfg.ClientID}
			if werr := frame.WriteFrame(conn, frame.OpClose, req, c.cfg.Limits); werr != nil {
				log.Debug().Err(werr).Msg("ipc.Client close frame")
			}
		}
		err = conn.Close()
	}
	c.mu.Unlock()

	if drained != nil {
		<-drained
	}
	return err
}

func (c *Client) readyLocked() error {
	switch c.state {
	case StateReady:
		return nil
	case StateClosed:
		return ErrClientClosed
	case StateFailed:
		return ErrClientUnusable
	default:
		return ErrNotReady
	}
}

func (c *Client) failLocked() {
	c.state = StateFailed
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

// drain consumes host replies so the socket never backs up. Replies are not
// correlated with publishes.
func (c *Client) drain(conn net.Conn, done chan struct{}) {
	defer close(done)
	for {
		fr, err := frame.ReadFrame(conn, c.cfg.Limits)
		if err != nil {
			c.lost(err)
			return
		}
		var resp response
		if err := fr.Decode(&resp); err != nil {
			log.Debug().Err(err).Str("op", fr.Op.String()).Msg("ipc.Client drain decode")
		}
		if fr.Op == frame.OpClose {
			c.lost(fmt.Errorf("host closed: code=%d message=%q", resp.Code, resp.Message))
			return
		}
		if resp.Evt == evtError {
			log.Warn().
				Str("cmd", resp.Cmd).
				Str("nonce", resp.Nonce).
				RawJSON("data", nonEmptyJSON(resp.Data)).
				Msg("ipc.Client host error reply")
			continue
		}
		log.Trace().Str("cmd", resp.Cmd).Str("nonce", resp.Nonce).Msg("ipc.Client reply")
	}
}

func (c *Client) lost(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateReady {
		return
	}
	log.Warn().Err(err).Str("endpoint", c.endpoint.Path()).Msg("ipc.Client connection lost")
	c.failLocked()
}

func deadlineFor(ctx context.Context, timeout time.Duration) time.Time {
	deadline := time.Now().Add(timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	return deadline
}

func nonEmptyJSON(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return []byte("null")
	}
	return raw
}
