// Package protocol defines the wire contract for live connections: every
// inbound and outbound unit of data is a JSON envelope of the form
// {"type": "<namespace>.<action>", "data": {...}}.
package protocol

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrMalformedEnvelope is returned when an inbound frame cannot be decoded
// into an envelope, or decodes to one without a type.
var ErrMalformedEnvelope = errors.New("malformed envelope")

// Envelope is the atomic, self-contained unit exchanged over a live
// connection. Data is kept raw so each action handler decodes only the
// payload shape it owns.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Parse decodes a single complete frame into an envelope.
func Parse(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, errors.Join(ErrMalformedEnvelope, err)
	}
	if env.Type == "" {
		return nil, ErrMalformedEnvelope
	}
	return &env, nil
}

// NewEnvelope builds an outbound envelope, marshalling payload into the
// data field. A nil payload produces an envelope with no data.
func NewEnvelope(envelopeType string, payload any) (*Envelope, error) {
	env := &Envelope{Type: envelopeType}
	if payload == nil {
		return env, nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	env.Data = raw
	return env, nil
}

// Marshal encodes the envelope as a single wire frame.
func (e *Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Namespace returns the capability prefix of the envelope type: everything
// up to and including the first dot. Types without a dot (such as
// "register") return the whole type.
func (e *Envelope) Namespace() string {
	idx := strings.Index(e.Type, ".")
	if idx < 0 {
		return e.Type
	}
	return e.Type[:idx+1]
}

// DecodeData unmarshals the envelope payload into out.
func (e *Envelope) DecodeData(out any) error {
	if len(e.Data) == 0 {
		return ErrMalformedEnvelope
	}
	if err := json.Unmarshal(e.Data, out); err != nil {
		return errors.Join(ErrMalformedEnvelope, err)
	}
	return nil
}
