package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/danmuck/mpvpresence/internal/config"
	"github.com/danmuck/mpvpresence/internal/ipc"
	"github.com/danmuck/mpvpresence/internal/logging"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

// ErrNavigateExit signals caller-intent to leave the console.
var ErrNavigateExit = errors.New("navigate exit")

func main() {
	clientID := pflag.String("client-id", config.DefaultClientID, "presence application client id")
	prefix := pflag.String("socket-prefix", ipc.DefaultSocketPrefix, "host socket name prefix")
	pflag.Parse()

	logging.ConfigureRuntime()
	cfg := ipc.DefaultConfig()
	cfg.ClientID = *clientID
	cfg.SocketPrefix = *prefix

	app := NewApp(os.Stdin, os.Stdout, cfg)
	if err := app.Run(context.Background()); err != nil {
		log.Error().Err(err).Msg("presencectl")
		os.Exit(1)
	}
}

// App is an interactive console around one ipc.Client.
type App struct {
	reader *bufio.Reader
	out    io.Writer
	cfg    ipc.Config
	client *ipc.Client
}

func NewApp(in io.Reader, out io.Writer, cfg ipc.Config) *App {
	return &App{
		reader: bufio.NewReader(in),
		out:    out,
		cfg:    cfg.WithDefaults(),
	}
}

// Run executes the main menu loop until exit or end of input.
func (a *App) Run(ctx context.Context) error {
	defer a.closeClient()
	for {
		a.printMainMenu()
		choice, err := a.promptInt("Choose", 1, 6)
		if err != nil {
			if errors.Is(err, ErrNavigateExit) || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		switch choice {
		case 1:
			a.listEndpoints()
		case 2:
			if err := a.connect(ctx); err != nil {
				log.Error().Err(err).Msg("presencectl connect failed")
			}
		case 3:
			if err := a.setActivity(); err != nil {
				if errors.Is(err, io.EOF) {
					return nil
				}
				log.Error().Err(err).Msg("presencectl set activity failed")
			}
		case 4:
			if err := a.clearActivity(); err != nil {
				log.Error().Err(err).Msg("presencectl clear activity failed")
			}
		case 5:
			a.showStatus()
		case 6:
			return nil
		}
	}
}

func (a *App) printMainMenu() {
	fmt.Fprintln(a.out)
	fmt.Fprintln(a.out, "Presence Console")
	fmt.Fprintf(a.out, "  client id: %s\n", a.cfg.ClientID)
	fmt.Fprintf(a.out, "  state:     %s\n", a.state())
	fmt.Fprintln(a.out, "  1) List host endpoints")
	fmt.Fprintln(a.out, "  2) Connect")
	fmt.Fprintln(a.out, "  3) Set activity")
	fmt.Fprintln(a.out, "  4) Clear activity")
	fmt.Fprintln(a.out, "  5) Show status")
	fmt.Fprintln(a.out, "  6) Exit")
}

func (a *App) template() string {
	return ipc.EndpointTemplate(ipc.ResolveBaseDirectory(a.cfg.Getenv), a.cfg.SocketPrefix)
}

// listEndpoints prints every candidate and whether a socket file exists there.
func (a *App) listEndpoints() {
	fmt.Fprintln(a.out, "Host Endpoints")
	for _, ep := range ipc.Candidates(a.template()) {
		fmt.Fprintf(a.out, "  %d) %s [%s]\n", ep.Index, ep.Path(), endpointState(ep.Path()))
	}
}

func endpointState(path string) string {
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return "present"
	case errors.Is(err, fs.ErrNotExist):
		return "absent"
	default:
		return err.Error()
	}
}

func (a *App) connect(ctx context.Context) error {
	if a.client != nil && a.client.State() == ipc.StateReady {
		fmt.Fprintf(a.out, "already connected to %s\n", a.client.Endpoint())
		return nil
	}
	a.closeClient()
	client, err := ipc.NewClient(a.cfg)
	if err != nil {
		return err
	}
	connectCtx, cancel := context.WithTimeout(ctx, a.cfg.HandshakeTimeout+time.Second)
	defer cancel()
	if err := client.Connect(connectCtx); err != nil {
		_ = client.Close()
		return err
	}
	a.client = client
	fmt.Fprintf(a.out, "connected to %s\n", client.Endpoint())
	return nil
}

func (a *App) setActivity() error {
	if a.client == nil {
		return ipc.ErrNotReady
	}
	details, err := a.promptLine("details")
	if err != nil {
		return err
	}
	state, err := a.promptLine("state")
	if err != nil {
		return err
	}
	activity := ipc.Activity{
		Details:    strings.TrimSpace(details),
		State:      strings.TrimSpace(state),
		Timestamps: &ipc.Timestamps{Start: time.Now().Unix()},
	}
	if err := a.client.Publish(activity); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "activity published")
	return nil
}

func (a *App) clearActivity() error {
	if a.client == nil {
		return ipc.ErrNotReady
	}
	if err := a.client.ClearActivity(); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "activity cleared")
	return nil
}

func (a *App) showStatus() {
	fmt.Fprintf(a.out, "state: %s\n", a.state())
	if a.client != nil && a.client.State() == ipc.StateReady {
		fmt.Fprintf(a.out, "endpoint: %s\n", a.client.Endpoint())
	}
}

func (a *App) state() string {
	if a.client == nil {
		return ipc.StateDisconnected.String()
	}
	return a.client.State().String()
}

func (a *App) closeClient() {
	if a.client == nil {
		return
	}
	if err := a.client.Close(); err != nil {
		log.Warn().Err(err).Msg("presencectl close")
	}
	a.client = nil
}

func (a *App) promptLine(label string) (string, error) {
	if strings.TrimSpace(label) != "" {
		fmt.Fprintf(a.out, "%s: ", label)
	}
	line, err := a.reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimRight(line, "\r\n"), nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (a *App) promptInt(label string, min int, max int) (int, error) {
	for {
		line, err := a.promptLine(fmt.Sprintf("%s [%d-%d|exit|e]", label, min, max))
		if err != nil {
			return 0, err
		}
		trimmed := strings.ToLower(strings.TrimSpace(line))
		if trimmed == "exit" || trimmed == "e" {
			return 0, ErrNavigateExit
		}
		v, err := strconv.Atoi(trimmed)
		if err != nil || v < min || v > max {
			fmt.Fprintln(a.out, "Invalid selection.")
			continue
		}
		return v, nil
	}
}
