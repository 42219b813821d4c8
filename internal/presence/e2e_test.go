//go:build !windows

package presence

import (
	"context"
	"testing"
	"time"

	"github.com/danmuck/mpvpresence/internal/ipc"
	"github.com/danmuck/mpvpresence/internal/ipc/frame"
	"github.com/danmuck/mpvpresence/internal/testutil/hosttest"
	"github.com/danmuck/mpvpresence/internal/testutil/testlog"
)

func TestOnePollCycleAgainstMockHost(t *testing.T) {
	testlog.Start(t)
	dir := hosttest.ShortTempDir(t)
	host := hosttest.Start(t, hosttest.SocketPath(dir, ipc.DefaultSocketPrefix, 0), hosttest.ReadyReply())

	client, err := ipc.NewClient(ipc.Config{
		ClientID: "1084791136981352558",
		Getenv: func(k string) string {
			if k == "XDG_RUNTIME_DIR" {
				return dir
			}
			return ""
		},
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	defer client.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	host.Handshake(t)

	proc := newFakeProcess()
	proc.exit()
	src := &staticSource{text: "AV: 00:05:00 / 00:20:00 (25%)\nAV: 00:10:00 / 00:20:00 (50%)\n"}
	r := NewRunner(testRunnerConfig(), client, src, proc)
	if err := r.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	fr := host.Next(t)
	if fr.Op != frame.OpFrame {
		t.Fatalf("unexpected op: %s", fr.Op)
	}
	var doc struct {
		Cmd  string `json:"cmd"`
		Args struct {
			Activity ipc.Activity `json:"activity"`
		} `json:"args"`
	}
	if err := fr.Decode(&doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.Cmd != "SET_ACTIVITY" || doc.Args.Activity.State != "00:10:00 / 00:20:00" {
		t.Fatalf("unexpected publish: %+v", doc)
	}

	time.Sleep(50 * time.Millisecond)
	if extra := host.Drain(); len(extra) != 0 {
		t.Fatalf("expected exactly one publish, got %d more", len(extra))
	}
}
