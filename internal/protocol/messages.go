// Package protocol defines the four peer messages and their JSON envelope.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ColinKOB/PhotoParty/internal/game"
)

// MessageType discriminates protocol messages.
type MessageType string

const (
	// TypeGameState carries a full session snapshot from the host.
	TypeGameState MessageType = "gameState"
	// TypeSubmission carries a player's photo entry.
	TypeSubmission MessageType = "submission"
	// TypeVote carries a single vote.
	TypeVote MessageType = "vote"
	// TypePlayerInfo announces the sender's identity.
	TypePlayerInfo MessageType = "playerInfo"
)

// Envelope wraps every protocol message with a type discriminator.
type Envelope struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Message is implemented by the four payload types.
type Message interface {
	Type() MessageType
	validate() error
}

// StateSnapshot is only ever produced by the host. Seq grows with every
// snapshot the host sends during its lifetime.
type StateSnapshot struct {
	Seq     uint64        `json:"seq"`
	Session *game.Session `json:"session"`
}

type SubmissionMessage struct {
	Submission game.Submission `json:"submission"`
}

type VoteMessage struct {
	VoterID      string `json:"voterId"`
	SubmissionID string `json:"submissionId"`
}

type PlayerInfoMessage struct {
	Player game.Player `json:"player"`
}

func (StateSnapshot) Type() MessageType     { return TypeGameState }
func (SubmissionMessage) Type() MessageType { return TypeSubmission }
func (VoteMessage) Type() MessageType       { return TypeVote }
func (PlayerInfoMessage) Type() MessageType { return TypePlayerInfo }

var (
	ErrUnknownType  = errors.New("unknown message type")
	ErrMissingField = errors.New("missing required field")
)

func (m StateSnapshot) validate() error {
	if m.Session == nil {
		return fmt.Errorf("%w: session", ErrMissingField)
	}
	if m.Session.Code == "" {
		return fmt.Errorf("%w: session.code", ErrMissingField)
	}
	return nil
}

func (m SubmissionMessage) validate() error {
	if m.Submission.ID == "" || m.Submission.PlayerID == "" {
		return fmt.Errorf("%w: submission id/playerId", ErrMissingField)
	}
	return nil
}

func (m VoteMessage) validate() error {
	if m.VoterID == "" || m.SubmissionID == "" {
		return fmt.Errorf("%w: voterId/submissionId", ErrMissingField)
	}
	return nil
}

func (m PlayerInfoMessage) validate() error {
	if m.Player.ID == "" {
		return fmt.Errorf("%w: player.id", ErrMissingField)
	}
	return nil
}

// Encode marshals m into an envelope.
func Encode(m Message) ([]byte, error) {
	if m == nil {
		return nil, &CodecError{Op: EncodingFailed, Err: ErrUnknownType}
	}
	if err := m.validate(); err != nil {
		return nil, &CodecError{Op: EncodingFailed, Type: m.Type(), Err: err}
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, &CodecError{Op: EncodingFailed, Type: m.Type(), Err: err}
	}
	b, err := json.Marshal(Envelope{Type: m.Type(), Data: raw})
	if err != nil {
		return nil, &CodecError{Op: EncodingFailed, Type: m.Type(), Err: err}
	}
	return b, nil
}

// Decode parses an envelope and its payload. Every failure is a *CodecError
// with Op DecodingFailed.
func Decode(b []byte) (Message, error) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, &CodecError{Op: DecodingFailed, Err: err}
	}
	var m Message
	switch env.Type {
	case TypeGameState:
		var v StateSnapshot
		if err := unmarshalData(env, &v); err != nil {
			return nil, err
		}
		m = v
	case TypeSubmission:
		var v SubmissionMessage
		if err := unmarshalData(env, &v); err != nil {
			return nil, err
		}
		m = v
	case TypeVote:
		var v VoteMessage
		if err := unmarshalData(env, &v); err != nil {
			return nil, err
		}
		m = v
	case TypePlayerInfo:
		var v PlayerInfoMessage
		if err := unmarshalData(env, &v); err != nil {
			return nil, err
		}
		m = v
	default:
		return nil, &CodecError{Op: DecodingFailed, Type: env.Type, Err: ErrUnknownType}
	}
	if err := m.validate(); err != nil {
		return nil, &CodecError{Op: DecodingFailed, Type: env.Type, Err: err}
	}
	return m, nil
}

func unmarshalData(env Envelope, v any) error {
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return &CodecError{Op: DecodingFailed, Type: env.Type, Err: fmt.Errorf("%w: data", ErrMissingField)}
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return &CodecError{Op: DecodingFailed, Type: env.Type, Err: err}
	}
	return nil
}
