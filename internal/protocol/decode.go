package protocol

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
)

// DefaultMaxLineBytes bounds one wire line, terminator included.
const DefaultMaxLineBytes = 8 * 1024 * 1024

// Decode parses one wire line into an Envelope. Leading/trailing whitespace,
// including the line terminator, is ignored.
func Decode(line []byte) (Envelope, error) {
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 {
		return Envelope{}, decodeErr("", "empty line", nil)
	}
	if trimmed[0] != '{' {
		return Envelope{}, decodeErr("", "top level is not a JSON object", nil)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return Envelope{}, decodeErr("", "malformed JSON", err)
	}

	kind, err := stringField(fields, "type")
	if err != nil {
		return Envelope{}, err
	}
	sender, err := stringField(fields, "from")
	if err != nil {
		return Envelope{}, err
	}
	recipient, err := stringField(fields, "to")
	if err != nil {
		return Envelope{}, err
	}
	timestamp, err := timestampField(fields)
	if err != nil {
		return Envelope{}, err
	}

	data, ok := fields["data"]
	if !ok || isNull(data) {
		return Envelope{}, decodeErr("data", "missing", nil)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return Envelope{}, decodeErr("data", "must be an object", nil)
	}

	env, err := New(Kind(kind), sender, recipient, timestamp, data)
	if err != nil {
		return Envelope{}, decodeErr("", "", err)
	}
	return env, nil
}

// ReadEnvelope reads one line from r and decodes it.
func ReadEnvelope(r *bufio.Reader, maxBytes int) (Envelope, error) {
	line, err := ReadLine(r, maxBytes)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return Envelope{}, err
	}
	return Decode(line)
}

// ReadLine reads up to and including the next '\n'. It returns io.EOF when
// nothing was read, io.ErrUnexpectedEOF together with the partial line when
// the stream ended mid-line, and ErrLineTooLarge once maxBytes is exceeded.
// maxBytes <= 0 disables the limit.
func ReadLine(r *bufio.Reader, maxBytes int) ([]byte, error) {
	var line []byte
	for {
		chunk, err := r.ReadSlice('\n')
		if maxBytes > 0 && len(line)+len(chunk) > maxBytes {
			return nil, ErrLineTooLarge
		}
		line = append(line, chunk...)
		switch {
		case err == nil:
			return line, nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			if len(line) == 0 {
				return nil, io.EOF
			}
			return line, io.ErrUnexpectedEOF
		default:
			return line, err
		}
	}
}

func stringField(fields map[string]json.RawMessage, name string) (string, error) {
	raw, ok := fields[name]
	if !ok || isNull(raw) {
		return "", decodeErr(name, "missing", nil)
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", decodeErr(name, "must be a string", nil)
	}
	if strings.TrimSpace(v) == "" {
		return "", decodeErr(name, "must not be empty", nil)
	}
	return v, nil
}

func timestampField(fields map[string]json.RawMessage) (int64, error) {
	raw, ok := fields["timestamp"]
	if !ok || isNull(raw) {
		return 0, decodeErr("timestamp", "missing", nil)
	}
	var v int64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, decodeErr("timestamp", "must be integer epoch milliseconds", nil)
	}
	return v, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
