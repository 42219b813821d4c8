// Package watcher derives playback position from the player's status output.
package watcher

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strconv"
)

// DefaultPosition is reported before the player prints its first status line.
const DefaultPosition = "00:00:00"

var statusLine = regexp.MustCompile(`(\(Paused\)\s)?AV:\s([0-9:]*) / ([0-9:]*) \(([0-9]*)%\)`)

// Snapshot is the most recent playback position.
type Snapshot struct {
	Matched  bool   `json:"matched"`
	Paused   bool   `json:"paused"`
	Elapsed  string `json:"elapsed,omitempty"`
	Duration string `json:"duration,omitempty"`
	Percent  int    `json:"percent"`
}

// Position renders "<elapsed> / <duration>", or DefaultPosition without a match.
func (s Snapshot) Position() string {
	if !s.Matched {
		return DefaultPosition
	}
	return fmt.Sprintf("%s / %s", s.Elapsed, s.Duration)
}

// Sample parses text and returns the last status line found. It never fails.
func Sample(text string) Snapshot {
	matches := statusLine.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return Snapshot{}
	}
	last := matches[len(matches)-1]
	percent, _ := strconv.Atoi(last[4])
	return Snapshot{
		Matched:  true,
		Paused:   last[1] != "",
		Elapsed:  last[2],
		Duration: last[3],
		Percent:  percent,
	}
}

// FileSource reads the status file written alongside the player.
type FileSource struct {
	Path string
}

// Read returns the file contents. A missing file reads as empty text since
// the player may not have written anything yet.
func (s FileSource) Read() (string, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	return string(data), nil
}
