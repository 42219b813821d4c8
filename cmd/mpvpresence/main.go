package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/danmuck/mpvpresence/internal/ipc"
	"github.com/danmuck/mpvpresence/internal/logging"
	"github.com/danmuck/mpvpresence/internal/metadata"
	"github.com/danmuck/mpvpresence/internal/observability"
	"github.com/danmuck/mpvpresence/internal/player"
	"github.com/danmuck/mpvpresence/internal/presence"
	"github.com/danmuck/mpvpresence/internal/watcher"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	logging.ConfigureRuntime()

	inv, cfg, err := parseInvocation(argv, os.Getenv)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "mpvpresence: %v\n", err)
		return 1
	}
	ctx := context.Background()

	mc, err := metadata.NewClient(metadata.Config{
		Endpoint: cfg.MetadataEndpoint,
		Timeout:  cfg.MetadataTimeout,
	})
	if err != nil {
		log.Error().Err(err).Msg("mpvpresence metadata client")
		return 1
	}
	media, err := mc.Lookup(ctx, inv.Title)
	if err != nil {
		log.Error().Err(err).Str("title", inv.Title).Msg("mpvpresence metadata lookup")
		return 1
	}

	var pub presence.Publisher
	client, err := ipc.NewClient(ipc.Config{
		ClientID:         cfg.ClientID,
		SocketPrefix:     cfg.SocketPrefix,
		ConnectTimeout:   cfg.ConnectTimeout,
		HandshakeTimeout: cfg.HandshakeTimeout,
		WriteTimeout:     cfg.WriteTimeout,
	})
	if err == nil {
		defer client.Close()
		err = client.Connect(ctx)
	}
	if err != nil {
		if cfg.RequirePresence {
			log.Error().Err(err).Msg("mpvpresence presence host")
			return 1
		}
		log.Warn().Err(err).Msg("mpvpresence presence host unavailable; playing without presence")
	} else {
		pub = client
	}

	out := player.Output{}
	if cfg.StatusCapture {
		f, err := os.Create(cfg.StatusFile)
		if err != nil {
			log.Error().Err(err).Str("path", cfg.StatusFile).Msg("mpvpresence status file")
			return 1
		}
		defer f.Close()
		out = player.Output{Stdout: f, Stderr: f}
	}

	req := player.Request{
		Executable: inv.Executable,
		Title:      presence.DisplayTitle(media.Title, inv.Episode),
		Content:    inv.Content,
		Subtitle:   inv.Subtitle,
		Opts:       inv.Opts,
	}
	proc, err := player.Start(req.Executable, player.Args(req), out)
	if err != nil {
		log.Error().Err(err).Msg("mpvpresence player")
		return 1
	}

	runner := presence.NewRunner(presence.RunnerConfig{
		Media:         media,
		Episode:       inv.Episode,
		SmallText:     cfg.SmallText,
		PlayImage:     cfg.PlayImage,
		PauseImage:    cfg.PauseImage,
		Buttons:       cfg.Buttons,
		PollInterval:  cfg.PollInterval,
		SkipUnchanged: cfg.SkipUnchanged,
	}, pub, watcher.FileSource{Path: cfg.StatusFile}, proc)

	if cfg.StatusAddr != "" {
		srv := observability.NewStatusServer(cfg.StatusAddr, func() any { return runner.Status() }, nil)
		if err := srv.Start(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.StatusAddr).Msg("mpvpresence status server")
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()
		}
	}

	if err := runner.Run(ctx); err != nil {
		log.Warn().Err(err).Msg("mpvpresence poll loop")
	}
	code, _ := proc.Wait()
	log.Info().Int32("player_exit_code", code).Msg("mpvpresence done")

	if pub != nil && client.State() == ipc.StateReady {
		if err := client.ClearActivity(); err != nil {
			log.Debug().Err(err).Msg("mpvpresence clear activity")
		}
	}
	return 0
}
