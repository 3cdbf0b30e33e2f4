package server

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/litka-chat/litka/pkg/model"
	pb "github.com/litka-chat/litka/pkg/protocol/pb"
)

const chatHelp = `Chat commands:
@to <user> <text> - mention a user publicly
@msg <user> <text> - send a private message
@msg on|off - allow or block private messages
@help - show this list
Moderator commands:
@mute <user> <seconds>, @unmute <user>
@prefix add <user> <name> <color>, @prefix dell <user>
@rank <user> [rank] - set or clear a special rank`

// handleCommand runs an @command line (without the leading '@').
func (s *Server) handleCommand(conn Conn, sess model.Session, line string, now time.Time) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		s.reply(conn, "Unknown command")
		return
	}
	name, args := strings.ToLower(fields[0]), fields[1:]
	slog.Debug("chat command", "user", sess.Username, "command", name)

	switch name {
	case "mute":
		s.cmdMute(conn, sess, args, now)
	case "unmute":
		s.cmdUnmute(conn, sess, args)
	case "prefix":
		s.cmdPrefix(conn, sess, args)
	case "rank":
		s.cmdRank(conn, sess, line, args)
	case "msg":
		s.cmdPrivateMessage(conn, sess, line, args, now)
	case "to":
		s.cmdMention(conn, sess, line, args, now)
	case "help":
		s.reply(conn, chatHelp)
	default:
		s.reply(conn, "Unknown command")
	}
}

// requireTarget checks that username names a registered account.
func (s *Server) requireTarget(conn Conn, username string) bool {
	if !s.accounts.Exists(username) {
		s.reply(conn, feedback(fmt.Errorf("%w: %s", model.ErrTargetNotFound, username)))
		return false
	}
	return true
}

func (s *Server) cmdMute(conn Conn, sess model.Session, args []string, now time.Time) {
	if err := s.roster.Require(sess.Username, model.PermMute); err != nil {
		s.reply(conn, feedback(model.ErrInsufficientPrivilege))
		return
	}
	if len(args) < 2 {
		s.reply(conn, "Usage: @mute <user> <seconds>")
		return
	}
	target := args[0]
	if !s.requireTarget(conn, target) {
		return
	}
	seconds, err := strconv.Atoi(args[1])
	if err != nil || seconds <= 0 {
		s.reply(conn, "Duration must be a positive number of seconds")
		return
	}

	s.moderation.Mute(target, time.Duration(seconds)*time.Second, now)
	s.metrics.recordMute(muteReasonAdmin)
	slog.Info("user muted", "user", target, "by", sess.Username, "seconds", seconds)
	s.broadcastSystem(fmt.Sprintf("%s was muted by %s for %d seconds", target, sess.Username, seconds))
}

func (s *Server) cmdUnmute(conn Conn, sess model.Session, args []string) {
	if err := s.roster.Require(sess.Username, model.PermMute); err != nil {
		s.reply(conn, feedback(model.ErrInsufficientPrivilege))
		return
	}
	if len(args) < 1 {
		s.reply(conn, "Usage: @unmute <user>")
		return
	}
	target := args[0]
	if !s.requireTarget(conn, target) {
		return
	}
	if !s.moderation.Unmute(target) {
		s.reply(conn, fmt.Sprintf("%s is not muted", target))
		return
	}
	slog.Info("user unmuted", "user", target, "by", sess.Username)
	s.broadcastSystem(fmt.Sprintf("%s was unmuted by %s", target, sess.Username))
}

func (s *Server) cmdPrefix(conn Conn, sess model.Session, args []string) {
	if err := s.roster.Require(sess.Username, model.PermManagePrefixes); err != nil {
		s.reply(conn, feedback(model.ErrInsufficientPrivilege))
		return
	}
	if len(args) == 0 {
		s.reply(conn, "Usage: @prefix add <user> <name> <color> | @prefix dell <user>")
		return
	}

	switch strings.ToLower(args[0]) {
	case "add":
		if len(args) < 4 {
			s.reply(conn, "Usage: @prefix add <user> <name> <color>")
			return
		}
		target := args[1]
		if !s.requireTarget(conn, target) {
			return
		}
		prefix, err := model.NewAdminPrefix(args[2], args[3])
		if err != nil {
			s.reply(conn, fmt.Sprintf("Invalid prefix: name must be 1-%d characters and color one of the 16 chat colors", model.MaxAdminPrefixLength))
			return
		}
		s.profiles.SetAdminPrefix(target, prefix)
		slog.Info("admin prefix assigned", "user", target, "prefix", prefix.Name, "by", sess.Username)
		s.pushProfile(target)
		s.reply(conn, fmt.Sprintf("Prefix %s (%s) assigned to %s", prefix.Name, prefix.Color, target))

	case "dell", "del":
		if len(args) < 2 {
			s.reply(conn, "Usage: @prefix dell <user>")
			return
		}
		target := args[1]
		if !s.requireTarget(conn, target) {
			return
		}
		if !s.profiles.RemoveAdminPrefix(target) {
			s.reply(conn, fmt.Sprintf("%s has no prefix", target))
			return
		}
		slog.Info("admin prefix removed", "user", target, "by", sess.Username)
		s.pushProfile(target)
		s.reply(conn, fmt.Sprintf("Prefix removed from %s", target))

	default:
		s.reply(conn, "Unknown command")
	}
}

func (s *Server) cmdRank(conn Conn, sess model.Session, line string, args []string) {
	if err := s.roster.Require(sess.Username, model.PermAssignRank); err != nil {
		s.reply(conn, feedback(model.ErrInsufficientPrivilege))
		return
	}
	if len(args) < 1 {
		s.reply(conn, "Usage: @rank <user> [rank]")
		return
	}
	target := args[0]
	if !s.requireTarget(conn, target) {
		return
	}
	rank := restAfter(line, 2)
	s.profiles.SetSpecialRank(target, rank)
	slog.Info("special rank assigned", "user", target, "rank", rank, "by", sess.Username)
	s.pushProfile(target)
	if rank == "" {
		s.reply(conn, fmt.Sprintf("Rank cleared for %s", target))
		return
	}
	s.reply(conn, fmt.Sprintf("Rank %s assigned to %s", rank, target))
}

func (s *Server) cmdPrivateMessage(conn Conn, sess model.Session, line string, args []string, now time.Time) {
	if len(args) == 1 {
		switch strings.ToLower(args[0]) {
		case "on":
			s.profiles.SetPMEnabled(sess.Username, true)
			s.reply(conn, "Private messages enabled")
			return
		case "off":
			s.profiles.SetPMEnabled(sess.Username, false)
			s.reply(conn, "Private messages disabled")
			return
		}
	}
	if len(args) < 2 {
		s.reply(conn, "Usage: @msg <user> <text> | @msg on | @msg off")
		return
	}
	target := args[0]
	if !s.requireTarget(conn, target) {
		return
	}
	if target == sess.Username {
		s.reply(conn, "You cannot message yourself")
		return
	}
	if !s.profiles.PMEnabled(target) {
		s.reply(conn, fmt.Sprintf("%s does not accept private messages", target))
		return
	}
	if !s.sessions.Online(target) {
		s.reply(conn, fmt.Sprintf("%s is offline", target))
		return
	}
	text := restAfter(line, 2)
	ev := pb.NewPrivateMessage(sess.Username, target, text, now.UnixMilli())
	if s.SendToUser(target, ev) == 0 {
		s.reply(conn, fmt.Sprintf("%s is offline", target))
		return
	}
	s.metrics.PrivateMessagesSent.Add(1)
	s.SendTo(conn, ev)
}

func (s *Server) cmdMention(conn Conn, sess model.Session, line string, args []string, now time.Time) {
	if len(args) < 2 {
		s.reply(conn, "Usage: @to <user> <text>")
		return
	}
	target := args[0]
	if !s.requireTarget(conn, target) {
		return
	}
	s.publish(sess.Username, "@"+target+" "+restAfter(line, 2), target, now)
}

// restAfter returns line with its first n whitespace-separated fields removed,
// preserving the spacing of what remains.
func restAfter(line string, n int) string {
	rest := strings.TrimSpace(line)
	for i := 0; i < n; i++ {
		idx := strings.IndexFunc(rest, unicode.IsSpace)
		if idx < 0 {
			return ""
		}
		rest = strings.TrimLeftFunc(rest[idx:], unicode.IsSpace)
	}
	return rest
}
