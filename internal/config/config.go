// Package config describes the mpvpresence config.toml layout, renders the
// default template and validates files against it.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/danmuck/mpvpresence/internal/ipc"
	"github.com/danmuck/mpvpresence/internal/metadata"
	"github.com/danmuck/mpvpresence/internal/presence"
	"github.com/pelletier/go-toml/v2"
)

const (
	DefaultClientID   = "1084791136981352558"
	DefaultStatusFile = "/tmp/jerry_position"
)

// File is the config.toml key mapping. Empty strings mean "not set".
type File struct {
	ClientID         string   `toml:"client_id" comment:"presence application id"`
	SocketPrefix     string   `toml:"socket_prefix"`
	ConnectTimeout   string   `toml:"connect_timeout" comment:"per-endpoint dial timeout"`
	HandshakeTimeout string   `toml:"handshake_timeout"`
	WriteTimeout     string   `toml:"write_timeout"`
	MetadataEndpoint string   `toml:"metadata_endpoint"`
	MetadataTimeout  string   `toml:"metadata_timeout"`
	StatusFile       string   `toml:"status_file" comment:"file the player status line is redirected to"`
	StatusCapture    bool     `toml:"status_capture"`
	PollInterval     string   `toml:"poll_interval"`
	SkipUnchanged    bool     `toml:"skip_unchanged"`
	RequirePresence  bool     `toml:"require_presence" comment:"exit when the presence host cannot be reached"`
	SmallText        string   `toml:"small_text,omitempty"`
	PauseImage       string   `toml:"pause_image"`
	PlayImage        string   `toml:"play_image"`
	StatusAddr       string   `toml:"status_addr,omitempty"`
	Buttons          []Button `toml:"buttons"`
}

type Button struct {
	Label string `toml:"label"`
	URL   string `toml:"url"`
}

// Default returns the values mpvpresence runs with when no file is present.
func Default() File {
	ipcCfg := ipc.DefaultConfig()
	return File{
		ClientID:         DefaultClientID,
		SocketPrefix:     ipcCfg.SocketPrefix,
		ConnectTimeout:   ipcCfg.ConnectTimeout.String(),
		HandshakeTimeout: ipcCfg.HandshakeTimeout.String(),
		WriteTimeout:     ipcCfg.WriteTimeout.String(),
		MetadataEndpoint: metadata.DefaultEndpoint,
		MetadataTimeout:  metadata.DefaultTimeout.String(),
		StatusFile:       DefaultStatusFile,
		PollInterval:     presence.DefaultPollInterval.String(),
		SkipUnchanged:    true,
		RequirePresence:  true,
		PauseImage:       presence.DefaultPauseImage,
		PlayImage:        presence.DefaultPlayImage,
		Buttons: []Button{
			{Label: "Github", URL: "https://github.com/justchokingaround/jerry"},
			{Label: "Discord", URL: "https://discord.gg/4P2DaJFxbm"},
		},
	}
}

// Load strictly decodes path; unknown keys are an error.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	var out File
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return File{}, fmt.Errorf("config parse failed (%s): unknown keys:\n%s", path, strict.String())
		}
		return File{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	if err := Validate(out); err != nil {
		return File{}, fmt.Errorf("config invalid (%s): %w", path, err)
	}
	return out, nil
}

func Validate(f File) error {
	if f.ClientID != "" && strings.TrimSpace(f.ClientID) == "" {
		return fmt.Errorf("client_id is blank")
	}
	for key, v := range map[string]string{
		"connect_timeout":   f.ConnectTimeout,
		"handshake_timeout": f.HandshakeTimeout,
		"write_timeout":     f.WriteTimeout,
		"metadata_timeout":  f.MetadataTimeout,
		"poll_interval":     f.PollInterval,
	} {
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	if f.MetadataEndpoint != "" {
		u, err := url.Parse(f.MetadataEndpoint)
		if err != nil {
			return fmt.Errorf("metadata_endpoint: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("metadata_endpoint must be http(s): %s", f.MetadataEndpoint)
		}
	}
	if len(f.Buttons) > ipc.MaxButtons {
		return fmt.Errorf("at most %d buttons allowed, got %d", ipc.MaxButtons, len(f.Buttons))
	}
	for i, b := range f.Buttons {
		if strings.TrimSpace(b.Label) == "" || strings.TrimSpace(b.URL) == "" {
			return fmt.Errorf("buttons[%d]: label and url are required", i)
		}
	}
	return nil
}
