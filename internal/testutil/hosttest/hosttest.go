// Package hosttest runs an in-process presence host on a Unix socket.
package hosttest

import (
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/mpvpresence/internal/ipc/frame"
)

// ReadyReply is the host's affirmative handshake response.
func ReadyReply() map[string]any {
	return map[string]any{
		"cmd": "DISPATCH",
		"evt": "READY",
		"data": map[string]any{
			"v":    1,
			"user": map[string]any{"id": "1", "username": "tester"},
		},
	}
}

// ErrorReply is a rejected handshake response.
func ErrorReply() map[string]any {
	return map[string]any{
		"cmd":  "DISPATCH",
		"evt":  "ERROR",
		"data": map[string]any{"code": 4000, "message": "Invalid Client ID"},
	}
}

// Host accepts one client, answers its handshake with Reply and records every
// frame received afterwards.
type Host struct {
	Path string

	ln        net.Listener
	reply     any
	handshake chan frame.Frame
	frames    chan frame.Frame
	done      chan struct{}

	mu   sync.Mutex
	conn net.Conn
}

// ShortTempDir returns a temp dir short enough for sun_path limits.
func ShortTempDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "ipc")
	if err != nil {
		t.Fatalf("mkdir temp: %v", err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return dir
}

// SocketPath returns <dir>/<prefix>-<index>.
func SocketPath(dir, prefix string, index int) string {
	return filepath.Join(dir, prefix+"-"+strconv.Itoa(index))
}

func Start(t *testing.T, path string, reply any) *Host {
	t.Helper()
	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("listen %s: %v", path, err)
	}
	h := &Host{
		Path:      path,
		ln:        ln,
		reply:     reply,
		handshake: make(chan frame.Frame, 1),
		frames:    make(chan frame.Frame, 64),
		done:      make(chan struct{}),
	}
	go h.serve()
	t.Cleanup(h.Close)
	return h
}

func (h *Host) serve() {
	defer close(h.done)
	conn, err := h.ln.Accept()
	if err != nil {
		return
	}
	h.mu.Lock()
	h.conn = conn
	h.mu.Unlock()
	defer conn.Close()

	hs, err := frame.ReadFrame(conn, frame.DefaultLimits())
	if err != nil {
		return
	}
	h.handshake <- hs
	if err := frame.WriteFrame(conn, frame.OpFrame, h.reply, frame.DefaultLimits()); err != nil {
		return
	}
	for {
		fr, err := frame.ReadFrame(conn, frame.DefaultLimits())
		if err != nil {
			close(h.frames)
			return
		}
		h.frames <- fr
	}
}

// Handshake waits for the client's handshake frame.
func (h *Host) Handshake(t *testing.T) frame.Frame {
	t.Helper()
	select {
	case fr := <-h.handshake:
		return fr
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for handshake")
		return frame.Frame{}
	}
}

// Next waits for the next post-handshake frame.
func (h *Host) Next(t *testing.T) frame.Frame {
	t.Helper()
	select {
	case fr, ok := <-h.frames:
		if !ok {
			t.Fatalf("host connection closed")
		}
		return fr
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for frame")
		return frame.Frame{}
	}
}

// Drain returns the frames received so far without blocking.
func (h *Host) Drain() []frame.Frame {
	var out []frame.Frame
	for {
		select {
		case fr, ok := <-h.frames:
			if !ok {
				return out
			}
			out = append(out, fr)
		default:
			return out
		}
	}
}

// Disconnect drops the accepted client connection.
func (h *Host) Disconnect() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conn != nil {
		_ = h.conn.Close()
	}
}

func (h *Host) Close() {
	_ = h.ln.Close()
	h.Disconnect()
	<-h.done
}
