// Package ipc implements the local presence IPC client.
//
// Ownership boundary:
// - endpoint resolution (base directory + indexed socket names)
// - transport dial scan over indices 0..9
// - handshake and SET_ACTIVITY publishing on top of package frame
//
// One Client owns one connection. It is not reusable after a transport or
// handshake failure; callers discard it and build a new one.
package ipc
