package ipc

import (
	"fmt"
	"strings"
)

const MaxButtons = 2

// Activity is the presence document rendered by the host.
type Activity struct {
	Details    string      `json:"details"`
	State      string      `json:"state,omitempty"`
	Timestamps *Timestamps `json:"timestamps,omitempty"`
	Assets     *Assets     `json:"assets,omitempty"`
	Buttons    []Button    `json:"buttons,omitempty"`
}

// Timestamps drive the host's elapsed/remaining clock. Values are epoch seconds.
type Timestamps struct {
	Start int64 `json:"start,omitempty"`
	End   int64 `json:"end,omitempty"`
}

type Assets struct {
	LargeImage string `json:"large_image,omitempty"`
	LargeText  string `json:"large_text,omitempty"`
	SmallImage string `json:"small_image,omitempty"`
	SmallText  string `json:"small_text,omitempty"`
}

type Button struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

func (a Activity) Validate() error {
	if strings.TrimSpace(a.Details) == "" {
		return fmt.Errorf("%w: missing details", ErrInvalidActivity)
	}
	if len(a.Buttons) > MaxButtons {
		return fmt.Errorf("%w: %d buttons exceeds %d", ErrInvalidActivity, len(a.Buttons), MaxButtons)
	}
	for i, b := range a.Buttons {
		if strings.TrimSpace(b.Label) == "" {
			return fmt.Errorf("%w: buttons[%d] missing label", ErrInvalidActivity, i)
		}
		if strings.TrimSpace(b.URL) == "" {
			return fmt.Errorf("%w: buttons[%d] missing url", ErrInvalidActivity, i)
		}
	}
	if a.Timestamps != nil && a.Timestamps.End != 0 && a.Timestamps.End < a.Timestamps.Start {
		return fmt.Errorf("%w: timestamps end before start", ErrInvalidActivity)
	}
	return nil
}
