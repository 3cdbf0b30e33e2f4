package client

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/litka-chat/litka/pkg/model"
)

func TestFormat(t *testing.T) {
	ts := time.Date(2026, 3, 4, 9, 5, 0, 0, time.Local).UnixMilli()
	profile := model.DefaultProfile()
	profile.BracketStyle = "<>"
	profile.SelectedPrefix = "pro"

	type tcase struct {
		ev   Event
		want []string
	}

	tcases := map[string]tcase{
		"message": {
			ev:   Event{Type: "message", Username: "alice", Message: "hi", Timestamp: ts, SpecialRank: "VIP", Profile: &profile},
			want: []string{"09:05 [VIP] pro <alice> hi"},
		},
		"message_without_profile": {
			ev:   Event{Type: "message", Username: "bob", Message: "yo", Timestamp: ts},
			want: []string{"09:05 [bob] yo"},
		},
		"history": {
			ev: Event{Type: "history", Messages: []model.ChatMessage{
				{Username: "a", Message: "one", Timestamp: ts, Profile: model.DefaultProfile()},
				{Username: "b", Message: "two", Timestamp: ts, Profile: model.DefaultProfile()},
			}},
			want: []string{"09:05 [a] one", "09:05 [b] two"},
		},
		"system": {
			ev:   Event{Type: "system", Message: "bob joined the chat"},
			want: []string{"* bob joined the chat"},
		},
		"online": {
			ev:   Event{Type: "online", Count: 3},
			want: []string{"* 3 online"},
		},
		"private": {
			ev:   Event{Type: "private_message", From: "a", To: "b", Message: "psst"},
			want: []string{"[a -> b] psst"},
		},
		"custom_response_multiline": {
			ev:   Event{Type: "custom_response", Message: "line one\nline two"},
			want: []string{"line one", "line two"},
		},
		"error": {
			ev:   Event{Type: "error", Message: "Not authenticated"},
			want: []string{"! Not authenticated"},
		},
		"pong_hidden": {
			ev: Event{Type: "pong", Timestamp: ts},
		},
	}

	fn := func(tc tcase) func(*testing.T) {
		return func(t *testing.T) {
			if diff := cmp.Diff(tc.want, Format(tc.ev)); diff != "" {
				t.Errorf("Format mismatch (-want +got):\n%s", diff)
			}
		}
	}

	for name, tc := range tcases {
		t.Run(name, fn(tc))
	}
}

func TestSplitBrackets(t *testing.T) {
	for style, want := range map[model.BracketStyle][2]string{
		"[]":   {"[", "]"},
		"««»»": {"««", "»»"},
		"":     {"[", "]"},
		"(((":  {"[", "]"},
	} {
		open, closing := splitBrackets(style)
		if open != want[0] || closing != want[1] {
			t.Errorf("splitBrackets(%q): got %q %q", style, open, closing)
		}
	}
}

func TestParseInput(t *testing.T) {
	type tcase struct {
		line       string
		wantCmd    string
		wantArgs   []string
		wantCustom bool
	}

	tcases := map[string]tcase{
		"chat":        {line: "hello there"},
		"chat_at":     {line: "@msg bob hi"},
		"bare_slash":  {line: "/  "},
		"custom":      {line: "/Prefix add pro", wantCmd: "prefix", wantArgs: []string{"add", "pro"}, wantCustom: true},
		"custom_noop": {line: "  /help", wantCmd: "help", wantArgs: []string{}, wantCustom: true},
	}

	fn := func(tc tcase) func(*testing.T) {
		return func(t *testing.T) {
			cmd, args, ok := ParseInput(tc.line)
			if ok != tc.wantCustom || cmd != tc.wantCmd {
				t.Fatalf("ParseInput(%q): got %q %v", tc.line, cmd, ok)
			}
			if diff := cmp.Diff(tc.wantArgs, args); diff != "" {
				t.Errorf("args mismatch (-want +got):\n%s", diff)
			}
		}
	}

	for name, tc := range tcases {
		t.Run(name, fn(tc))
	}
}
