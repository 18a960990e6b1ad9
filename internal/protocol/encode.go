package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// wireEnvelope is the JSON object written on the wire.
type wireEnvelope struct {
	Type      string          `json:"type"`
	From      string          `json:"from"`
	To        string          `json:"to"`
	Timestamp int64           `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// Encode renders env as one line of compact JSON without the terminator.
// String fields containing newlines are escaped, so the result never holds a
// raw line break.
func Encode(env Envelope) ([]byte, error) {
	if env.kind == "" || env.sender == "" || env.recipient == "" {
		return nil, fmt.Errorf("%w: zero envelope", ErrInvalidEnvelope)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(wireEnvelope{
		Type:      string(env.kind),
		From:      env.sender,
		To:        env.recipient,
		Timestamp: env.timestamp,
		Data:      env.Data(),
	}); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Write encodes env and writes it followed by '\n' in a single Write call.
func Write(w io.Writer, env Envelope) error {
	line, err := Encode(env)
	if err != nil {
		return err
	}
	line = append(line, '\n')
	_, err = w.Write(line)
	return err
}
