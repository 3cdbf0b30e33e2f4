package server

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/litka-chat/litka/pkg/model"
	"github.com/litka-chat/litka/pkg/moderation"
	"github.com/litka-chat/litka/pkg/protocol"
	pb "github.com/litka-chat/litka/pkg/protocol/pb"
)

// Connect starts tracking a transport before it authenticates.
func (s *Server) Connect(conn Conn) {
	s.liveMu.Lock()
	s.live[conn.ID()] = conn
	s.liveMu.Unlock()

	s.metrics.TotalConnections.Add(1)
	s.metrics.ActiveConnections.Add(1)
	slog.Debug("new connection", "conn", conn.ID(), "remote", conn.RemoteAddr())
}

// Disconnect unregisters conn and, if it carried a session, announces the
// new online count.
func (s *Server) Disconnect(conn Conn) {
	_ = conn.Close()

	s.liveMu.Lock()
	_, tracked := s.live[conn.ID()]
	delete(s.live, conn.ID())
	s.liveMu.Unlock()
	if tracked {
		s.metrics.ActiveConnections.Add(-1)
		s.metrics.TotalDisconnects.Add(1)
	}
	s.msgLimiter.Forget(conn.ID())

	sess, ok := s.sessions.Unregister(conn)
	if !ok {
		return
	}
	slog.Info("client disconnected", "user", sess.Username, "conn", conn.ID())
	s.announceLeave(sess)
	s.broadcastOnline()
}

// announceLeave broadcasts a leave notice once the user's last joined
// connection is gone. sess must already be unregistered.
func (s *Server) announceLeave(sess model.Session) {
	if sess.Joined && s.sessions.JoinedCount(sess.Username) == 0 {
		s.broadcastSystem(fmt.Sprintf("%s left the chat", sess.Username))
	}
}

// HandleFrame decodes one inbound frame and dispatches it. Malformed frames
// are logged and dropped; the connection stays open.
func (s *Server) HandleFrame(conn Conn, data []byte) {
	msg, err := protocol.Decode(data)
	if err != nil {
		s.metrics.MalformedEvents.Add(1)
		slog.Warn("dropping malformed event", "conn", conn.ID(), "err", err)
		return
	}
	s.handleMessage(conn, msg)
}

// handleMessage dispatches an inbound event to the appropriate handler.
func (s *Server) handleMessage(conn Conn, msg *pb.Inbound) {
	switch {
	case msg.Register != nil:
		s.handleRegister(conn, msg.Register)

	case msg.Login != nil:
		s.handleLogin(conn, msg.Login)

	case msg.Resume != nil:
		s.handleResume(conn, msg.Resume)

	case msg.Ping != nil:
		ts := msg.Ping.Timestamp
		if ts == 0 {
			ts = s.nowMillis()
		}
		s.SendTo(conn, pb.NewPong(ts))

	default:
		sess, ok := s.sessions.Session(conn)
		if !ok {
			s.sendError(conn, feedback(model.ErrNotAuthenticated))
			return
		}
		switch {
		case msg.Logout != nil:
			s.handleLogout(conn, sess)
		case msg.Join != nil:
			s.handleJoin(conn, sess)
		case msg.Message != nil:
			s.handleChat(conn, sess, msg.Message)
		case msg.Custom != nil:
			s.handleCustom(conn, sess, msg.Custom)
		}
	}
}

func (s *Server) handleRegister(conn Conn, req *pb.RegisterRequest) {
	token, err := s.accounts.Register(req.Username, req.Password)
	if err != nil {
		s.authFailed(conn, req.Username, err)
		return
	}
	slog.Info("account registered", "user", req.Username, "conn", conn.ID())
	s.authSucceeded(conn, req.Username, token)
}

func (s *Server) handleLogin(conn Conn, req *pb.LoginRequest) {
	token, err := s.accounts.Login(req.Username, req.Password)
	if err != nil {
		s.authFailed(conn, req.Username, err)
		return
	}
	s.authSucceeded(conn, req.Username, token)
}

func (s *Server) handleResume(conn Conn, req *pb.ResumeRequest) {
	username, ok := s.accounts.Validate(req.SessionToken)
	if !ok {
		s.authFailed(conn, "", model.ErrInvalidSession)
		return
	}
	s.authSucceeded(conn, username, req.SessionToken)
}

func (s *Server) authSucceeded(conn Conn, username, token string) {
	// A connection switching identity leaves its old one first.
	if prev, ok := s.sessions.Session(conn); ok && prev.Username != username {
		s.sessions.Unregister(conn)
		s.announceLeave(prev)
	}
	s.sessions.Register(conn, username, token)
	s.metrics.SuccessfulAuths.Add(1)
	slog.Info("client authenticated", "user", username, "conn", conn.ID())
	s.SendTo(conn, pb.NewAuthSuccess(username, token))
}

func (s *Server) authFailed(conn Conn, username string, err error) {
	s.metrics.FailedAuths.Add(1)
	if !model.IsAuthError(err) {
		slog.Error("authentication error", "user", username, "conn", conn.ID(), "err", err)
		s.SendTo(conn, pb.NewAuthError("Authentication unavailable, try again"))
		return
	}
	slog.Info("authentication failed", "user", username, "conn", conn.ID(), "err", err)
	s.SendTo(conn, pb.NewAuthError(feedback(err)))
}

func (s *Server) handleLogout(conn Conn, sess model.Session) {
	s.accounts.Revoke(sess.Token)
	s.sessions.Unregister(conn)
	s.msgLimiter.Forget(conn.ID())
	slog.Info("client logged out", "user", sess.Username, "conn", conn.ID())

	s.reply(conn, "Logged out")
	s.announceLeave(sess)
	s.broadcastOnline()
}

func (s *Server) handleJoin(conn Conn, sess model.Session) {
	s.profiles.Ensure(sess.Username)
	wasJoined, _ := s.sessions.MarkJoined(conn)

	s.SendTo(conn, pb.NewHistory(s.history.Snapshot()))
	d := s.profiles.Decorate(sess.Username)
	s.SendTo(conn, pb.NewProfileEvent(d.Profile, d.DisplayRank, d.PrefixColor))

	// Only the user's first joined connection is announced.
	if !wasJoined && s.sessions.JoinedCount(sess.Username) == 1 {
		s.broadcastSystem(fmt.Sprintf("%s joined the chat", sess.Username))
		slog.Info("client joined", "user", sess.Username, "online", s.sessions.Count())
	}
	s.broadcastOnline()
}

// handleChat runs the message pipeline: mute, rate limit, length, then
// either an @command or a plain public message.
func (s *Server) handleChat(conn Conn, sess model.Session, req *pb.ChatRequest) {
	now := s.now()
	if remaining, muted := s.moderation.Remaining(sess.Username, now); muted {
		s.metrics.RejectedMuted.Add(1)
		err := &model.MutedError{RemainingMinutes: moderation.RemainingMinutes(remaining)}
		s.reply(conn, err.Error())
		return
	}
	if !s.msgLimiter.Allow(conn.ID()) {
		s.metrics.RateLimited.Add(1)
		s.sendError(conn, "You are sending messages too fast")
		return
	}
	body, err := model.SanitizeBody(req.Message)
	if err != nil {
		s.sendError(conn, feedback(err))
		return
	}
	if line, ok := strings.CutPrefix(body, "@"); ok {
		s.handleCommand(conn, sess, line, now)
		return
	}
	s.publish(sess.Username, body, "", now)
}

// publish runs the spam check and relays a public message. It reports
// whether the message was broadcast.
func (s *Server) publish(username, text, mention string, now time.Time) bool {
	if s.moderation.RecordMessage(username, text, now) {
		return false
	}
	d := s.profiles.Decorate(username)
	msg := model.ChatMessage{
		Username:    username,
		Message:     text,
		Profile:     d.Profile,
		SpecialRank: d.DisplayRank,
		PrefixColor: d.PrefixColor,
		Mention:     mention,
		Timestamp:   now.UnixMilli(),
	}
	s.history.Append(msg)
	s.metrics.ChatMessagesSent.Add(1)
	s.Broadcast(pb.NewChatEvent(msg))
	return true
}

func (s *Server) announceSpamMute(username string, until time.Time) {
	s.metrics.recordMute(muteReasonSpam)
	minutes := moderation.RemainingMinutes(until.Sub(s.now()))
	s.broadcastSystem(fmt.Sprintf("%s has been muted for %d minutes for spamming", username, minutes))
}

// feedback turns an error into the sentence shown to the user.
func feedback(err error) string {
	var muted *model.MutedError
	if errors.As(err, &muted) {
		return muted.Error()
	}
	msg := err.Error()
	r, size := utf8.DecodeRuneInString(msg)
	if r == utf8.RuneError {
		return msg
	}
	return string(unicode.ToUpper(r)) + msg[size:]
}
