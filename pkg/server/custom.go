package server

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/litka-chat/litka/pkg/model"
	pb "github.com/litka-chat/litka/pkg/protocol/pb"
)

var customHelp = fmt.Sprintf(`Profile commands:
bracket <style> - one of %s
bracketcolor <color> - bracket color
messagecolor <color> - message color
prefix add <name> - add a custom prefix (max %d, up to %d characters)
prefix remove <name> - remove a custom prefix
prefix list - show your prefixes
prefix select <name> - show a prefix next to your name
prefix clear - hide your prefix
Colors: %s`,
	model.BracketStyleList(), model.MaxCustomPrefixes, model.MaxCustomPrefixLength, colorList())

func colorList() string {
	names := make([]string, len(model.Colors))
	for i, c := range model.Colors {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}

// errIgnored marks a custom command that produced no change and no reply.
var errIgnored = errors.New("ignored")

// handleCustom edits the sender's own profile. Invalid or missing arguments
// are dropped without a reply.
func (s *Server) handleCustom(conn Conn, sess model.Session, req *pb.CustomRequest) {
	args := []string(req.Args)
	arg := func(i int) string {
		if i < len(args) {
			return args[i]
		}
		return ""
	}

	var (
		reply string
		edit  func(p *model.Profile) error
	)
	switch strings.ToLower(req.Command) {
	case "help":
		s.reply(conn, customHelp)
		return

	case "bracket":
		style, err := model.ParseBracketStyle(arg(0))
		if err != nil {
			break
		}
		reply = fmt.Sprintf("Bracket style set to %s", style)
		edit = func(p *model.Profile) error { p.BracketStyle = style; return nil }

	case "bracketcolor":
		color, err := model.ParseColor(arg(0))
		if err != nil {
			break
		}
		reply = fmt.Sprintf("Bracket color set to %s", color)
		edit = func(p *model.Profile) error { p.BracketColor = color; return nil }

	case "messagecolor":
		color, err := model.ParseColor(arg(0))
		if err != nil {
			break
		}
		reply = fmt.Sprintf("Message color set to %s", color)
		edit = func(p *model.Profile) error { p.MessageColor = color; return nil }

	case "prefix":
		sub := strings.ToLower(arg(0))
		if sub == "list" {
			s.reply(conn, describePrefixes(s.profiles.Ensure(sess.Username)))
			return
		}
		reply, edit = prefixEdit(sub, arg(1))
	}

	if edit == nil {
		slog.Debug("custom command ignored", "user", sess.Username, "command", req.Command, "args", args)
		return
	}
	if _, err := s.profiles.Update(sess.Username, edit); err != nil {
		slog.Debug("custom command rejected", "user", sess.Username, "command", req.Command, "err", err)
		return
	}
	s.reply(conn, reply)
	s.pushProfile(sess.Username)
}

// prefixEdit returns the reply and profile edit for a prefix subcommand,
// or a nil edit when sub is unknown.
func prefixEdit(sub, name string) (string, func(p *model.Profile) error) {
	switch sub {
	case "add":
		return fmt.Sprintf("Prefix %s added", name), func(p *model.Profile) error {
			return p.AddPrefix(name)
		}

	case "remove":
		return fmt.Sprintf("Prefix %s removed", name), func(p *model.Profile) error {
			if !p.RemovePrefix(name) {
				return errIgnored
			}
			return nil
		}

	case "select":
		return fmt.Sprintf("Prefix %s selected", name), func(p *model.Profile) error {
			return p.SelectPrefix(name)
		}

	case "clear":
		return "Prefix cleared", func(p *model.Profile) error {
			if p.SelectedPrefix == "" {
				return errIgnored
			}
			p.SelectedPrefix = ""
			return nil
		}
	}
	return "", nil
}

func describePrefixes(p model.Profile) string {
	if len(p.CustomPrefixes) == 0 {
		return "You have no custom prefixes"
	}
	msg := "Your prefixes: " + strings.Join(p.CustomPrefixes, ", ")
	if p.SelectedPrefix != "" {
		msg += " (selected: " + p.SelectedPrefix + ")"
	}
	return msg
}
