package ipc

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestActivityValidate(t *testing.T) {
	tests := []struct {
		name string
		in   Activity
		ok   bool
	}{
		{"details only", Activity{Details: "Frieren"}, true},
		{"missing details", Activity{State: "00:00:00"}, false},
		{"two buttons", Activity{Details: "a", Buttons: []Button{{"a", "https://a"}, {"b", "https://b"}}}, true},
		{"three buttons", Activity{Details: "a", Buttons: []Button{{"a", "https://a"}, {"b", "https://b"}, {"c", "https://c"}}}, false},
		{"button without url", Activity{Details: "a", Buttons: []Button{{Label: "a"}}}, false},
		{"end before start", Activity{Details: "a", Timestamps: &Timestamps{Start: 10, End: 5}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.Validate()
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidActivity) {
				t.Fatalf("expected ErrInvalidActivity, got %v", err)
			}
		})
	}
}

func TestActivityDocumentOmitsEmptyFields(t *testing.T) {
	raw, err := json.Marshal(Activity{Details: "Frieren", Timestamps: &Timestamps{Start: 1700000000}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got := string(raw)
	if got != `{"details":"Frieren","timestamps":{"start":1700000000}}` {
		t.Fatalf("unexpected document: %s", got)
	}
	if strings.Contains(got, "buttons") || strings.Contains(got, "assets") {
		t.Fatalf("empty fields leaked: %s", got)
	}
}
