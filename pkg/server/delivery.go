package server

import (
	"log/slog"

	"github.com/litka-chat/litka/pkg/protocol"
	pb "github.com/litka-chat/litka/pkg/protocol/pb"
)

// Broadcast encodes event once and queues it on every registered open
// connection. Closed connections are skipped.
func (s *Server) Broadcast(event any) {
	data, err := protocol.Encode(event)
	if err != nil {
		slog.Error("broadcast encode failed", "err", err)
		return
	}
	for _, conn := range s.sessions.Conns() {
		s.deliver(conn, data)
	}
}

// SendTo queues event on a single connection.
func (s *Server) SendTo(conn Conn, event any) {
	data, err := protocol.Encode(event)
	if err != nil {
		slog.Error("send encode failed", "conn", conn.ID(), "err", err)
		return
	}
	s.deliver(conn, data)
}

// SendToUser queues event on every live connection of username and
// reports how many accepted it.
func (s *Server) SendToUser(username string, event any) int {
	conns := s.sessions.ResolveAll(username)
	if len(conns) == 0 {
		return 0
	}
	data, err := protocol.Encode(event)
	if err != nil {
		slog.Error("send encode failed", "user", username, "err", err)
		return 0
	}
	sent := 0
	for _, conn := range conns {
		if s.deliver(conn, data) {
			sent++
		}
	}
	return sent
}

func (s *Server) deliver(conn Conn, data []byte) bool {
	if !conn.Open() {
		return false
	}
	if !conn.Send(data) {
		s.metrics.DroppedDeliveries.Add(1)
		return false
	}
	return true
}

func (s *Server) broadcastOnline() {
	s.Broadcast(pb.NewOnline(s.sessions.Count()))
}

func (s *Server) broadcastSystem(msg string) {
	s.Broadcast(pb.NewSystem(msg, s.nowMillis()))
}

// pushProfile sends the user's current decoration to all of their connections.
func (s *Server) pushProfile(username string) {
	d := s.profiles.Decorate(username)
	s.SendToUser(username, pb.NewProfileEvent(d.Profile, d.DisplayRank, d.PrefixColor))
}

func (s *Server) reply(conn Conn, msg string) {
	s.SendTo(conn, pb.NewCustomResponse(msg))
}

func (s *Server) sendError(conn Conn, msg string) {
	s.SendTo(conn, pb.NewError(msg))
}
