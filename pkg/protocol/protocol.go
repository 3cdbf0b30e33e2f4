// Package protocol decodes inbound chat frames into closed variants and
// encodes outbound events.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	pb "github.com/litka-chat/litka/pkg/protocol/pb"
)

// MaxMessageSize is the maximum inbound frame size (64KB).
const MaxMessageSize = 65536

var (
	ErrMalformed     = errors.New("protocol: malformed frame")
	ErrUnknownKind   = errors.New("protocol: unknown message type")
	ErrMissingField  = errors.New("protocol: missing required field")
	ErrFrameTooLarge = fmt.Errorf("protocol: frame exceeds %d bytes", MaxMessageSize)
)

type envelope struct {
	Type string `json:"type"`
}

// Decode parses a frame into an Inbound with exactly one variant set.
// Frames missing a required field are rejected here so handlers never see
// partially populated requests.
func Decode(data []byte) (*pb.Inbound, error) {
	if len(data) > MaxMessageSize {
		return nil, ErrFrameTooLarge
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	in := &pb.Inbound{}
	switch env.Type {
	case pb.KindRegister:
		var raw struct {
			Username *string `json:"regUsername"`
			Password *string `json:"regPassword"`
		}
		if err := unmarshal(data, &raw); err != nil {
			return nil, err
		}
		if raw.Username == nil || raw.Password == nil {
			return nil, fmt.Errorf("%w: regUsername/regPassword", ErrMissingField)
		}
		in.Register = &pb.RegisterRequest{Username: *raw.Username, Password: *raw.Password}

	case pb.KindLogin:
		var raw struct {
			Username *string `json:"loginUsername"`
			Password *string `json:"loginPassword"`
		}
		if err := unmarshal(data, &raw); err != nil {
			return nil, err
		}
		if raw.Username == nil || raw.Password == nil {
			return nil, fmt.Errorf("%w: loginUsername/loginPassword", ErrMissingField)
		}
		in.Login = &pb.LoginRequest{Username: *raw.Username, Password: *raw.Password}

	case pb.KindResume:
		var req pb.ResumeRequest
		if err := unmarshal(data, &req); err != nil {
			return nil, err
		}
		if req.SessionToken == "" {
			return nil, fmt.Errorf("%w: sessionToken", ErrMissingField)
		}
		in.Resume = &req

	case pb.KindLogout:
		in.Logout = &pb.LogoutRequest{}

	case pb.KindJoin:
		in.Join = &pb.JoinRequest{}

	case pb.KindMessage:
		var raw struct {
			Message *string `json:"message"`
		}
		if err := unmarshal(data, &raw); err != nil {
			return nil, err
		}
		if raw.Message == nil {
			return nil, fmt.Errorf("%w: message", ErrMissingField)
		}
		in.Message = &pb.ChatRequest{Message: *raw.Message}

	case pb.KindCustom:
		var req pb.CustomRequest
		if err := unmarshal(data, &req); err != nil {
			return nil, err
		}
		if req.Command == "" {
			return nil, fmt.Errorf("%w: command", ErrMissingField)
		}
		in.Custom = &req

	case pb.KindPing:
		var req pb.Ping
		if err := unmarshal(data, &req); err != nil {
			return nil, err
		}
		in.Ping = &req

	case "":
		return nil, fmt.Errorf("%w: type", ErrMissingField)

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, env.Type)
	}
	return in, nil
}

func unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

// Kind returns the wire name of the variant set on in, or "".
func Kind(in *pb.Inbound) string {
	switch {
	case in == nil:
		return ""
	case in.Register != nil:
		return pb.KindRegister
	case in.Login != nil:
		return pb.KindLogin
	case in.Resume != nil:
		return pb.KindResume
	case in.Logout != nil:
		return pb.KindLogout
	case in.Join != nil:
		return pb.KindJoin
	case in.Message != nil:
		return pb.KindMessage
	case in.Custom != nil:
		return pb.KindCustom
	case in.Ping != nil:
		return pb.KindPing
	default:
		return ""
	}
}

// Encode serializes an outbound event.
func Encode(event any) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("protocol: marshal: %w", err)
	}
	return data, nil
}
