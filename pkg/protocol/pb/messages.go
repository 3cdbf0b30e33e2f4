// Package pb defines the JSON wire messages exchanged over the chat socket.
package pb

import (
	"encoding/json"
	"strings"

	"github.com/litka-chat/litka/pkg/model"
)

// Inbound kinds.
const (
	KindRegister = "register"
	KindLogin    = "login"
	KindResume   = "resume"
	KindLogout   = "logout"
	KindJoin     = "join"
	KindMessage  = "message"
	KindCustom   = "custom"
	KindPing     = "ping"
)

// Outbound kinds.
const (
	TypeAuthSuccess    = "auth_success"
	TypeAuthError      = "auth_error"
	TypeHistory        = "history"
	TypeProfile        = "profile"
	TypeOnline         = "online"
	TypeMessage        = "message"
	TypeSystem         = "system"
	TypeCustomResponse = "custom_response"
	TypeError          = "error"
	TypePrivateMessage = "private_message"
	TypePong           = "pong"
)

// Inbound wraps every client-to-server message.
// Exactly one of these fields is set after a successful decode.
type Inbound struct {
	Register *RegisterRequest
	Login    *LoginRequest
	Resume   *ResumeRequest
	Logout   *LogoutRequest
	Join     *JoinRequest
	Message  *ChatRequest
	Custom   *CustomRequest
	Ping     *Ping
}

// ----- Auth -----

type RegisterRequest struct {
	Username string `json:"regUsername"`
	Password string `json:"regPassword"`
}

type LoginRequest struct {
	Username string `json:"loginUsername"`
	Password string `json:"loginPassword"`
}

type ResumeRequest struct {
	SessionToken string `json:"sessionToken"`
}

type LogoutRequest struct{}

type AuthSuccess struct {
	Type         string `json:"type"`
	Username     string `json:"username"`
	SessionToken string `json:"sessionToken"`
}

type AuthError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ----- Chat -----

type JoinRequest struct{}

type ChatRequest struct {
	Message string `json:"message"`
}

// Args accepts either a JSON array of strings or one space-delimited string.
type Args []string

func (a *Args) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*a = nil
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*a = list
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*a = strings.Fields(s)
	return nil
}

type CustomRequest struct {
	Command string `json:"command"`
	Args    Args   `json:"args"`
}

type Ping struct {
	Timestamp int64 `json:"timestamp"`
}

type Pong struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

type History struct {
	Type     string              `json:"type"`
	Messages []model.ChatMessage `json:"messages"`
}

type ProfileEvent struct {
	Type        string        `json:"type"`
	Profile     model.Profile `json:"profile"`
	SpecialRank string        `json:"specialRank"`
	PrefixColor model.Color   `json:"prefixColor,omitempty"`
}

type Online struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// ChatEvent is a relayed public message.
type ChatEvent struct {
	Type string `json:"type"`
	model.ChatMessage
}

type System struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

type CustomResponse struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type PrivateMessage struct {
	Type      string `json:"type"`
	From      string `json:"from"`
	To        string `json:"to"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// ----- Constructors -----

func NewAuthSuccess(username, token string) *AuthSuccess {
	return &AuthSuccess{Type: TypeAuthSuccess, Username: username, SessionToken: token}
}

func NewAuthError(msg string) *AuthError {
	return &AuthError{Type: TypeAuthError, Message: msg}
}

func NewHistory(msgs []model.ChatMessage) *History {
	if msgs == nil {
		msgs = []model.ChatMessage{}
	}
	return &History{Type: TypeHistory, Messages: msgs}
}

func NewProfileEvent(p model.Profile, rank string, color model.Color) *ProfileEvent {
	return &ProfileEvent{Type: TypeProfile, Profile: p, SpecialRank: rank, PrefixColor: color}
}

func NewOnline(count int) *Online {
	return &Online{Type: TypeOnline, Count: count}
}

func NewChatEvent(m model.ChatMessage) *ChatEvent {
	return &ChatEvent{Type: TypeMessage, ChatMessage: m}
}

func NewSystem(msg string, ts int64) *System {
	return &System{Type: TypeSystem, Message: msg, Timestamp: ts}
}

func NewCustomResponse(msg string) *CustomResponse {
	return &CustomResponse{Type: TypeCustomResponse, Message: msg}
}

func NewError(msg string) *ErrorResponse {
	return &ErrorResponse{Type: TypeError, Message: msg}
}

func NewPrivateMessage(from, to, msg string, ts int64) *PrivateMessage {
	return &PrivateMessage{Type: TypePrivateMessage, From: from, To: to, Message: msg, Timestamp: ts}
}

func NewPong(ts int64) *Pong {
	return &Pong{Type: TypePong, Timestamp: ts}
}
