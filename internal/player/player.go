// Package player assembles mpv arguments and supervises the player process.
package player

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

const DefaultExecutable = "mpv"

var ErrExecutableRequired = errors.New("player: executable required")

// Request describes one playback.
type Request struct {
	Executable string
	Title      string
	Content    string
	Subtitle   string
	Opts       string
}

// Args returns the mpv argument list for req, without the executable.
func Args(req Request) []string {
	args := []string{
		req.Content,
		"--force-media-title=" + req.Title,
	}
	if sub := strings.TrimSpace(req.Subtitle); sub != "" {
		args = append(args, "--sub-files="+sub)
	}
	args = append(args, "--msg-level=ffmpeg/demuxer=error")
	if opts := strings.TrimSpace(req.Opts); opts != "" {
		args = append(args, opts)
	}
	return args
}

// Output redirects the player's streams. Nil writers inherit the parent's.
type Output struct {
	Stdout io.Writer
	Stderr io.Writer
}

// Process is one running player.
type Process struct {
	cmd  *exec.Cmd
	done chan struct{}

	mu   sync.Mutex
	code int32
	err  error
}

func Start(executable string, args []string, out Output) (*Process, error) {
	if strings.TrimSpace(executable) == "" {
		return nil, ErrExecutableRequired
	}
	cmd := exec.Command(executable, args...)
	cmd.Stdout = out.Stdout
	cmd.Stderr = out.Stderr
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	configureCommand(cmd)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("player: start %s: %w", executable, err)
	}
	log.Info().Str("executable", executable).Int("pid", cmd.Process.Pid).Msg("player.Start")

	p := &Process{cmd: cmd, done: make(chan struct{})}
	go p.wait()
	return p, nil
}

func (p *Process) wait() {
	err := p.cmd.Wait()
	code := ExitCode(err)
	p.mu.Lock()
	p.code = code
	p.err = err
	p.mu.Unlock()
	close(p.done)
	log.Info().Int32("exit_code", code).Err(err).Msg("player exited")
}

func (p *Process) PID() int {
	return p.cmd.Process.Pid
}

// Done is closed once the process has terminated.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

func (p *Process) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the process terminates and returns its exit code.
func (p *Process) Wait() (int32, error) {
	<-p.done
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.code, p.err
}

// ExitCode maps a Wait/Run error to a process exit code: the child's own code,
// 127 when it could not be executed, 1 otherwise.
func ExitCode(err error) int32 {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return int32(exitErr.ExitCode())
	}
	var execErr *exec.Error
	if errors.As(err, &execErr) {
		return 127
	}
	return 1
}
