// Package presence drives the poll loop: status source -> activity -> host.
package presence

import (
	"context"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/mpvpresence/internal/ipc"
	"github.com/danmuck/mpvpresence/internal/metadata"
	"github.com/danmuck/mpvpresence/internal/observability"
	"github.com/danmuck/mpvpresence/internal/watcher"
	"github.com/rs/zerolog/log"
)

const (
	DefaultPollInterval = time.Second

	DefaultPauseImage = "https://cdn-icons-png.flaticon.com/128/3669/3669483.png"
	DefaultPlayImage  = "https://cdn-icons-png.flaticon.com/128/5577/5577228.png"
)

// Publisher sends one activity to the presence host.
type Publisher interface {
	Publish(activity ipc.Activity) error
}

// StatusSource yields the player's latest status text.
type StatusSource interface {
	Read() (string, error)
}

// Process is the supervised player.
type Process interface {
	Done() <-chan struct{}
}

type RunnerConfig struct {
	Media        metadata.Media
	Episode      string
	SmallText    string
	PlayImage    string
	PauseImage   string
	Buttons      []ipc.Button
	PollInterval time.Duration
	// SkipUnchanged suppresses publishes identical to the previous one.
	SkipUnchanged bool
}

func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		PlayImage:     DefaultPlayImage,
		PauseImage:    DefaultPauseImage,
		PollInterval:  DefaultPollInterval,
		SkipUnchanged: true,
	}
}

// Status is the runner's externally visible state.
type Status struct {
	PresenceEnabled bool             `json:"presence_enabled"`
	Snapshot        watcher.Snapshot `json:"snapshot"`
	Position        string           `json:"position"`
	Activity        *ipc.Activity    `json:"activity,omitempty"`
	Published       int              `json:"published"`
	Skipped         int              `json:"skipped"`
	LastError       string           `json:"last_error,omitempty"`
	LastTick        time.Time        `json:"last_tick"`
	LastPublish     time.Time        `json:"last_publish"`
}

type Runner struct {
	cfg  RunnerConfig
	pub  Publisher
	src  StatusSource
	proc Process

	mu     sync.Mutex
	last   *ipc.Activity
	status Status
}

// NewRunner wires the loop. A nil pub runs with presence disabled.
func NewRunner(cfg RunnerConfig, pub Publisher, src StatusSource, proc Process) *Runner {
	def := DefaultRunnerConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if strings.TrimSpace(cfg.PlayImage) == "" {
		cfg.PlayImage = def.PlayImage
	}
	if strings.TrimSpace(cfg.PauseImage) == "" {
		cfg.PauseImage = def.PauseImage
	}
	if strings.TrimSpace(cfg.SmallText) == "" && strings.TrimSpace(cfg.Episode) != "" {
		cfg.SmallText = "Episode " + strings.TrimSpace(cfg.Episode)
	}
	observability.SetPresenceEnabled(pub != nil)
	return &Runner{
		cfg:    cfg,
		pub:    pub,
		src:    src,
		proc:   proc,
		status: Status{PresenceEnabled: pub != nil},
	}
}

// DisplayTitle is "<title> - Episode <n>", or the bare title without an episode.
func DisplayTitle(title, episode string) string {
	episode = strings.TrimSpace(episode)
	if episode == "" {
		return title
	}
	return title + " - Episode " + episode
}

// BuildActivity renders the presence document for one snapshot.
func (r *Runner) BuildActivity(s watcher.Snapshot) ipc.Activity {
	small := r.cfg.PauseImage
	if s.Matched && !s.Paused {
		small = r.cfg.PlayImage
	}
	activity := ipc.Activity{
		Details: r.cfg.Media.Title,
		State:   s.Position(),
		Assets: &ipc.Assets{
			LargeImage: r.cfg.Media.PosterURL,
			LargeText:  DisplayTitle(r.cfg.Media.Title, r.cfg.Episode),
			SmallImage: small,
			SmallText:  r.cfg.SmallText,
		},
	}
	if len(r.cfg.Buttons) > 0 {
		n := len(r.cfg.Buttons)
		if n > ipc.MaxButtons {
			n = ipc.MaxButtons
		}
		activity.Buttons = append([]ipc.Button(nil), r.cfg.Buttons[:n]...)
	}
	return activity
}

// Tick runs one poll cycle. A publish failure disables presence for the rest
// of the run and is returned; the caller keeps supervising the player.
func (r *Runner) Tick() error {
	text, err := r.src.Read()
	if err != nil {
		log.Warn().Err(err).Msg("presence.Runner read status source")
		text = ""
	}
	snap := watcher.Sample(text)
	activity := r.BuildActivity(snap)

	r.mu.Lock()
	r.status.Snapshot = snap
	r.status.Position = snap.Position()
	r.status.Activity = &activity
	r.status.LastTick = time.Now()
	enabled := r.status.PresenceEnabled
	unchanged := r.cfg.SkipUnchanged && r.last != nil && reflect.DeepEqual(*r.last, activity)
	if enabled && unchanged {
		r.status.Skipped++
	}
	r.mu.Unlock()

	if !enabled {
		observability.RecordPollTick("presence_disabled")
		return nil
	}
	if unchanged {
		observability.RecordPollTick("unchanged")
		return nil
	}

	// Publish may block up to the write timeout; Status stays readable meanwhile.
	err = r.pub.Publish(activity)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.status.PresenceEnabled = false
		r.status.LastError = err.Error()
		observability.SetPresenceEnabled(false)
		observability.RecordPollTick("publish_failed")
		log.Warn().Err(err).Msg("presence.Runner publish failed; presence disabled")
		return err
	}
	now := time.Now()
	r.last = &activity
	r.status.Published++
	r.status.LastPublish = now
	observability.RecordPublishTime(now)
	observability.RecordPollTick("published")
	log.Debug().Str("state", activity.State).Bool("paused", snap.Paused).Msg("presence.Runner published")
	return nil
}

// Run polls until the player exits or ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()
	for {
		_ = r.Tick()

		select {
		case <-r.proc.Done():
			return nil
		default:
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.proc.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.status
	if out.Activity != nil {
		a := *out.Activity
		out.Activity = &a
	}
	return out
}
