package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/mpvpresence/internal/config"
	"github.com/danmuck/mpvpresence/internal/ipc"
	"github.com/danmuck/mpvpresence/internal/metadata"
	"github.com/danmuck/mpvpresence/internal/presence"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

const envPrefix = "MPVPRESENCE_"

type appConfig struct {
	ClientID         string
	SocketPrefix     string
	ConnectTimeout   time.Duration
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	MetadataEndpoint string
	MetadataTimeout  time.Duration
	StatusFile       string
	StatusCapture    bool
	PollInterval     time.Duration
	SkipUnchanged    bool
	RequirePresence  bool
	SmallText        string
	PauseImage       string
	PlayImage        string
	Buttons          []ipc.Button
	StatusAddr       string
}

func defaultAppConfig() appConfig {
	ipcCfg := ipc.DefaultConfig()
	return appConfig{
		ClientID:         config.DefaultClientID,
		SocketPrefix:     ipcCfg.SocketPrefix,
		ConnectTimeout:   ipcCfg.ConnectTimeout,
		HandshakeTimeout: ipcCfg.HandshakeTimeout,
		WriteTimeout:     ipcCfg.WriteTimeout,
		MetadataEndpoint: metadata.DefaultEndpoint,
		MetadataTimeout:  metadata.DefaultTimeout,
		StatusFile:       config.DefaultStatusFile,
		PollInterval:     presence.DefaultPollInterval,
		SkipUnchanged:    true,
		RequirePresence:  true,
		PauseImage:       presence.DefaultPauseImage,
		PlayImage:        presence.DefaultPlayImage,
		Buttons:          normalizeButtons(config.Default().Buttons),
	}
}

// loadConfigFile applies the keys defined in path on top of cfg.
func loadConfigFile(path string, cfg *appConfig) error {
	var raw config.File
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := config.Validate(raw); err != nil {
		return fmt.Errorf("config invalid (%s): %w", path, err)
	}

	setString := func(key, v string, dst *string) {
		if meta.IsDefined(key) {
			if v = strings.TrimSpace(v); v != "" {
				*dst = v
			}
		}
	}
	setDuration := func(key, v string, dst *time.Duration) error {
		if !meta.IsDefined(key) {
			return nil
		}
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("parse %s: %w", key, err)
		}
		*dst = d
		return nil
	}

	setString("client_id", raw.ClientID, &cfg.ClientID)
	setString("socket_prefix", raw.SocketPrefix, &cfg.SocketPrefix)
	setString("metadata_endpoint", raw.MetadataEndpoint, &cfg.MetadataEndpoint)
	setString("status_file", raw.StatusFile, &cfg.StatusFile)
	setString("small_text", raw.SmallText, &cfg.SmallText)
	setString("pause_image", raw.PauseImage, &cfg.PauseImage)
	setString("play_image", raw.PlayImage, &cfg.PlayImage)
	if meta.IsDefined("status_addr") {
		cfg.StatusAddr = strings.TrimSpace(raw.StatusAddr)
	}

	for key, d := range map[string]struct {
		raw string
		dst *time.Duration
	}{
		"connect_timeout":   {raw.ConnectTimeout, &cfg.ConnectTimeout},
		"handshake_timeout": {raw.HandshakeTimeout, &cfg.HandshakeTimeout},
		"write_timeout":     {raw.WriteTimeout, &cfg.WriteTimeout},
		"metadata_timeout":  {raw.MetadataTimeout, &cfg.MetadataTimeout},
		"poll_interval":     {raw.PollInterval, &cfg.PollInterval},
	} {
		if err := setDuration(key, d.raw, d.dst); err != nil {
			return err
		}
	}

	if meta.IsDefined("status_capture") {
		cfg.StatusCapture = raw.StatusCapture
	}
	if meta.IsDefined("skip_unchanged") {
		cfg.SkipUnchanged = raw.SkipUnchanged
	}
	if meta.IsDefined("require_presence") {
		cfg.RequirePresence = raw.RequirePresence
	}
	if meta.IsDefined("buttons") {
		cfg.Buttons = normalizeButtons(raw.Buttons)
	}
	return nil
}

func normalizeButtons(in []config.Button) []ipc.Button {
	out := make([]ipc.Button, 0, len(in))
	for _, b := range in {
		label, url := strings.TrimSpace(b.Label), strings.TrimSpace(b.URL)
		if label == "" || url == "" {
			continue
		}
		out = append(out, ipc.Button{Label: label, URL: url})
	}
	return out
}

// applyEnvOverrides applies MPVPRESENCE_* variables on top of the file config.
func applyEnvOverrides(cfg *appConfig, getenv func(string) string) error {
	str := func(name string, dst *string) {
		if v := strings.TrimSpace(getenv(envPrefix + name)); v != "" {
			*dst = v
		}
	}
	str("CLIENT_ID", &cfg.ClientID)
	str("SOCKET_PREFIX", &cfg.SocketPrefix)
	str("METADATA_ENDPOINT", &cfg.MetadataEndpoint)
	str("STATUS_FILE", &cfg.StatusFile)
	str("STATUS_ADDR", &cfg.StatusAddr)

	if v := strings.TrimSpace(getenv(envPrefix + "POLL_INTERVAL")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse %sPOLL_INTERVAL: %w", envPrefix, err)
		}
		cfg.PollInterval = d
	}
	for name, dst := range map[string]*bool{
		"STATUS_CAPTURE":   &cfg.StatusCapture,
		"SKIP_UNCHANGED":   &cfg.SkipUnchanged,
		"REQUIRE_PRESENCE": &cfg.RequirePresence,
	} {
		v := strings.TrimSpace(getenv(envPrefix + name))
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parse %s%s: %w", envPrefix, name, err)
		}
		*dst = b
	}
	return nil
}

// invocation is the positional argument contract kept from the jerry launcher:
// <mpv> <title> <episode> <content> [subtitle] [opts]
type invocation struct {
	Executable string
	Title      string
	Episode    string
	Content    string
	Subtitle   string
	Opts       string
}

var errUsage = errors.New("usage: mpvpresence [flags] <mpv> <title> <episode> <content> [subtitle] [opts]")

func parseInvocation(argv []string, getenv func(string) string) (invocation, appConfig, error) {
	flags := pflag.NewFlagSet("mpvpresence", pflag.ContinueOnError)
	configPath := flags.StringP("config", "c", "", "path to config.toml")
	envFile := flags.String("env-file", "", "dotenv file loaded before MPVPRESENCE_* overrides")
	clientID := flags.String("client-id", "", "presence application client id")
	statusFile := flags.String("status-file", "", "player status file to poll")
	pollInterval := flags.Duration("poll-interval", 0, "status poll interval")
	statusAddr := flags.String("status-addr", "", "serve /health, /status and /metrics on this address")
	noPresence := flags.Bool("no-require-presence", false, "keep playing when the presence host is unavailable")
	flags.SetInterspersed(false)

	if err := flags.Parse(argv); err != nil {
		return invocation{}, appConfig{}, err
	}

	if err := loadEnvFile(*envFile); err != nil {
		return invocation{}, appConfig{}, err
	}

	cfg := defaultAppConfig()
	path, explicit := *configPath, *configPath != ""
	if !explicit {
		path = defaultConfigPath()
	}
	if path != "" {
		if _, err := os.Stat(path); err == nil || explicit {
			if err := loadConfigFile(path, &cfg); err != nil {
				return invocation{}, appConfig{}, err
			}
		}
	}
	if err := applyEnvOverrides(&cfg, getenv); err != nil {
		return invocation{}, appConfig{}, err
	}

	if flags.Changed("client-id") {
		cfg.ClientID = strings.TrimSpace(*clientID)
	}
	if flags.Changed("status-file") {
		cfg.StatusFile = strings.TrimSpace(*statusFile)
	}
	if flags.Changed("poll-interval") {
		cfg.PollInterval = *pollInterval
	}
	if flags.Changed("status-addr") {
		cfg.StatusAddr = strings.TrimSpace(*statusAddr)
	}
	if *noPresence {
		cfg.RequirePresence = false
	}

	args := flags.Args()
	if len(args) < 4 {
		return invocation{}, appConfig{}, errUsage
	}
	inv := invocation{
		Executable: args[0],
		Title:      args[1],
		Episode:    args[2],
		Content:    args[3],
	}
	if len(args) > 4 {
		inv.Subtitle = args[4]
	}
	if len(args) > 5 {
		inv.Opts = args[5]
	}
	return inv, cfg, nil
}

// loadEnvFile loads path, or ./.env when path is empty and the file exists.
// Variables already set in the environment win.
func loadEnvFile(path string) error {
	if path == "" {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	path := filepath.Join(dir, "mpvpresence", "config.toml")
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return ""
	}
	return path
}
