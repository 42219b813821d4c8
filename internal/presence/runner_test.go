package presence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/mpvpresence/internal/ipc"
	"github.com/danmuck/mpvpresence/internal/metadata"
	"github.com/danmuck/mpvpresence/internal/testutil/testlog"
	"github.com/danmuck/mpvpresence/internal/watcher"
)

type staticSource struct {
	mu   sync.Mutex
	text string
	err  error
}

func (s *staticSource) Read() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text, s.err
}

func (s *staticSource) set(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.text = text
}

type recordingPublisher struct {
	mu   sync.Mutex
	got  []ipc.Activity
	fail error
}

func (p *recordingPublisher) Publish(a ipc.Activity) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	p.got = append(p.got, a)
	return nil
}

func (p *recordingPublisher) published() []ipc.Activity {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ipc.Activity(nil), p.got...)
}

type fakeProcess struct {
	done chan struct{}
	once sync.Once
}

func newFakeProcess() *fakeProcess {
	return &fakeProcess{done: make(chan struct{})}
}

func (p *fakeProcess) Done() <-chan struct{} { return p.done }

func (p *fakeProcess) exit() { p.once.Do(func() { close(p.done) }) }

func testRunnerConfig() RunnerConfig {
	cfg := DefaultRunnerConfig()
	cfg.Media = metadata.Media{Title: "Sousou no Frieren", PosterURL: "https://media.kitsu.io/p/original.jpg"}
	cfg.Episode = "3"
	cfg.PollInterval = 5 * time.Millisecond
	return cfg
}

func TestBuildActivity(t *testing.T) {
	testlog.Start(t)
	cfg := testRunnerConfig()
	cfg.Buttons = []ipc.Button{
		{Label: "Github", URL: "https://github.com/justchokingaround/jerry"},
		{Label: "Discord", URL: "https://discord.gg/4P2DaJFxbm"},
		{Label: "Extra", URL: "https://example.com"},
	}
	r := NewRunner(cfg, &recordingPublisher{}, &staticSource{}, newFakeProcess())

	a := r.BuildActivity(watcher.Sample("AV: 00:01:10 / 00:20:00 (5%)"))
	if a.Details != "Sousou no Frieren" || a.State != "00:01:10 / 00:20:00" {
		t.Fatalf("unexpected activity: %+v", a)
	}
	if a.Assets.LargeText != "Sousou no Frieren - Episode 3" || a.Assets.SmallText != "Episode 3" {
		t.Fatalf("unexpected assets: %+v", a.Assets)
	}
	if a.Assets.SmallImage != DefaultPlayImage {
		t.Fatalf("expected play icon, got %q", a.Assets.SmallImage)
	}
	if len(a.Buttons) != ipc.MaxButtons {
		t.Fatalf("expected buttons capped at %d, got %d", ipc.MaxButtons, len(a.Buttons))
	}
	if err := a.Validate(); err != nil {
		t.Fatalf("built activity invalid: %v", err)
	}

	paused := r.BuildActivity(watcher.Sample("(Paused) AV: 00:01:10 / 00:20:00 (5%)"))
	if paused.Assets.SmallImage != DefaultPauseImage {
		t.Fatalf("expected pause icon, got %q", paused.Assets.SmallImage)
	}
	idle := r.BuildActivity(watcher.Sample(""))
	if idle.State != "00:00:00" || idle.Assets.SmallImage != DefaultPauseImage {
		t.Fatalf("unexpected idle activity: %+v", idle)
	}
}

func TestTickSkipsUnchangedActivity(t *testing.T) {
	testlog.Start(t)
	src := &staticSource{text: "AV: 00:00:01 / 00:20:00 (0%)"}
	pub := &recordingPublisher{}
	r := NewRunner(testRunnerConfig(), pub, src, newFakeProcess())

	for i := 0; i < 3; i++ {
		if err := r.Tick(); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
	}
	src.set("AV: 00:00:02 / 00:20:00 (0%)")
	if err := r.Tick(); err != nil {
		t.Fatalf("tick: %v", err)
	}

	got := pub.published()
	if len(got) != 2 {
		t.Fatalf("expected 2 publishes, got %d", len(got))
	}
	if got[1].State != "00:00:02 / 00:20:00" {
		t.Fatalf("unexpected second state: %q", got[1].State)
	}
	st := r.Status()
	if st.Published != 2 || st.Skipped != 2 {
		t.Fatalf("unexpected status: %+v", st)
	}
}

func TestPublishFailureDisablesPresenceButKeepsRunning(t *testing.T) {
	testlog.Start(t)
	pub := &recordingPublisher{fail: ipc.ErrClientUnusable}
	proc := newFakeProcess()
	cfg := testRunnerConfig()
	cfg.SkipUnchanged = false
	r := NewRunner(cfg, pub, &staticSource{}, proc)

	if err := r.Tick(); !errors.Is(err, ipc.ErrClientUnusable) {
		t.Fatalf("expected publish error, got %v", err)
	}
	if r.Status().PresenceEnabled {
		t.Fatalf("presence should be disabled")
	}

	done := make(chan error, 1)
	go func() { done <- r.Run(context.Background()) }()
	time.Sleep(30 * time.Millisecond)
	select {
	case err := <-done:
		t.Fatalf("runner stopped before the player exited: %v", err)
	default:
	}
	proc.exit()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("runner did not stop after player exit")
	}
	if st := r.Status(); st.LastError == "" || st.Published != 0 {
		t.Fatalf("unexpected status: %+v", st)
	}
}

func TestRunWithoutPublisher(t *testing.T) {
	testlog.Start(t)
	proc := newFakeProcess()
	proc.exit()
	r := NewRunner(testRunnerConfig(), nil, &staticSource{text: "AV: 00:00:01 / 00:20:00 (0%)"}, proc)
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	st := r.Status()
	if st.PresenceEnabled || st.Position != "00:00:01 / 00:20:00" {
		t.Fatalf("unexpected status: %+v", st)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	testlog.Start(t)
	ctx, cancel := context.WithCancel(context.Background())
	r := NewRunner(testRunnerConfig(), &recordingPublisher{}, &staticSource{}, newFakeProcess())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("runner ignored cancellation")
	}
}

func TestSourceErrorFallsBackToDefaultPosition(t *testing.T) {
	testlog.Start(t)
	pub := &recordingPublisher{}
	r := NewRunner(testRunnerConfig(), pub, &staticSource{err: errors.New("permission denied")}, newFakeProcess())
	if err := r.Tick(); err != nil {
		t.Fatalf("tick: %v", err)
	}
	got := pub.published()
	if len(got) != 1 || got[0].State != "00:00:00" {
		t.Fatalf("unexpected publishes: %+v", got)
	}
}

func TestDisplayTitle(t *testing.T) {
	if DisplayTitle("Frieren", "") != "Frieren" || DisplayTitle("Frieren", "12") != "Frieren - Episode 12" {
		t.Fatalf("unexpected display titles")
	}
}

type blockingPublisher struct {
	entered chan struct{}
	release chan struct{}
}

func (p *blockingPublisher) Publish(ipc.Activity) error {
	close(p.entered)
	<-p.release
	return nil
}

func TestStatusReadableWhilePublishBlocks(t *testing.T) {
	testlog.Start(t)
	pub := &blockingPublisher{entered: make(chan struct{}), release: make(chan struct{})}
	src := &staticSource{text: "AV: 00:10:00 / 00:20:00 (50%)"}
	r := NewRunner(testRunnerConfig(), pub, src, newFakeProcess())

	tickDone := make(chan error, 1)
	go func() { tickDone <- r.Tick() }()
	<-pub.entered

	statusDone := make(chan Status, 1)
	go func() { statusDone <- r.Status() }()
	select {
	case st := <-statusDone:
		if st.Position != "00:10:00 / 00:20:00" {
			t.Fatalf("unexpected in-flight position: %q", st.Position)
		}
	case <-time.After(time.Second):
		t.Fatalf("Status blocked behind an in-flight publish")
	}

	close(pub.release)
	if err := <-tickDone; err != nil {
		t.Fatalf("tick: %v", err)
	}
	if st := r.Status(); st.Published != 1 || st.LastPublish.IsZero() {
		t.Fatalf("publish outcome not recorded: %+v", st)
	}
}
