package client

import (
	"fmt"
	"strings"
	"time"

	"github.com/litka-chat/litka/pkg/model"
	pb "github.com/litka-chat/litka/pkg/protocol/pb"
)

// FormatMessage renders a chat message as "hh:mm [rank] <prefix> [name] text",
// using the sender's bracket style.
func FormatMessage(m model.ChatMessage) string {
	var b strings.Builder
	b.WriteString(time.UnixMilli(m.Timestamp).Format("15:04"))
	b.WriteByte(' ')
	if m.SpecialRank != "" {
		b.WriteString("[" + m.SpecialRank + "] ")
	}
	if m.Profile.SelectedPrefix != "" {
		b.WriteString(m.Profile.SelectedPrefix + " ")
	}
	open, closing := splitBrackets(m.Profile.BracketStyle)
	b.WriteString(open + m.Username + closing + " ")
	b.WriteString(m.Message)
	return b.String()
}

// splitBrackets returns the opening and closing halves of a bracket style.
func splitBrackets(style model.BracketStyle) (string, string) {
	runes := []rune(string(style))
	if len(runes) == 0 || len(runes)%2 != 0 {
		return "[", "]"
	}
	half := len(runes) / 2
	return string(runes[:half]), string(runes[half:])
}

// Format renders an event as terminal lines. It returns nil for events
// with nothing to show.
func Format(ev Event) []string {
	switch ev.Type {
	case pb.TypeMessage:
		m := model.ChatMessage{
			Username:    ev.Username,
			Message:     ev.Message,
			SpecialRank: ev.SpecialRank,
			Mention:     ev.Mention,
			Timestamp:   ev.Timestamp,
		}
		if ev.Profile != nil {
			m.Profile = *ev.Profile
		}
		return []string{FormatMessage(m)}
	case pb.TypeHistory:
		lines := make([]string, 0, len(ev.Messages))
		for _, m := range ev.Messages {
			lines = append(lines, FormatMessage(m))
		}
		return lines
	case pb.TypeSystem:
		return []string{"* " + ev.Message}
	case pb.TypeOnline:
		return []string{fmt.Sprintf("* %d online", ev.Count)}
	case pb.TypePrivateMessage:
		return []string{fmt.Sprintf("[%s -> %s] %s", ev.From, ev.To, ev.Message)}
	case pb.TypeCustomResponse:
		return strings.Split(ev.Message, "\n")
	case pb.TypeError, pb.TypeAuthError:
		return []string{"! " + ev.Message}
	default:
		return nil
	}
}

// ParseInput maps a typed line to a request. Lines starting with '/' are
// profile commands ("/prefix add pro"); everything else is sent as chat.
func ParseInput(line string) (command string, args []string, isCustom bool) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(line), "/")
	if !ok {
		return "", nil, false
	}
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return "", nil, false
	}
	return strings.ToLower(fields[0]), fields[1:], true
}
