package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Kind tags what an envelope requests or reports. The set is open; unknown
// kinds still decode.
type Kind string

const (
	KindRegisterWorker Kind = "REGISTER_WORKER"
	KindHeartbeat      Kind = "HEARTBEAT"
	KindWorkerStatus   Kind = "WORKER_STATUS"
	KindShutdown       Kind = "SHUTDOWN"

	KindDistributeArray Kind = "DISTRIBUTE_ARRAY"
	KindProcessSegment  Kind = "PROCESS_SEGMENT"
	KindSegmentResult   Kind = "SEGMENT_RESULT"
	KindReplicateData   Kind = "REPLICATE_DATA"

	KindNodeFailure      Kind = "NODE_FAILURE"
	KindRecoverData      Kind = "RECOVER_DATA"
	KindRecoveryComplete Kind = "RECOVERY_COMPLETE"

	KindCreateArray       Kind = "CREATE_ARRAY"
	KindApplyOperation    Kind = "APPLY_OPERATION"
	KindGetResult         Kind = "GET_RESULT"
	KindOperationComplete Kind = "OPERATION_COMPLETE"
)

// Well-known participant names.
const (
	ParticipantClient = "client"
	ParticipantMaster = "master"
)

// ClientFacing reports whether a client is allowed to emit k.
func (k Kind) ClientFacing() bool {
	switch k {
	case KindCreateArray, KindApplyOperation, KindGetResult:
		return true
	default:
		return false
	}
}

func (k Kind) String() string {
	return string(k)
}

// Envelope is one immutable wire message. The zero value is not valid; build
// envelopes with Build or New.
type Envelope struct {
	kind      Kind
	sender    string
	recipient string
	timestamp int64
	data      []byte
}

// New constructs an envelope from an already-encoded JSON object payload.
// The payload is compacted and copied. Identity fields must be valid UTF-8.
func New(kind Kind, sender, recipient string, timestampMS int64, data []byte) (Envelope, error) {
	if strings.TrimSpace(string(kind)) == "" {
		return Envelope{}, fmt.Errorf("%w: missing kind", ErrInvalidEnvelope)
	}
	if strings.TrimSpace(sender) == "" {
		return Envelope{}, fmt.Errorf("%w: missing sender", ErrInvalidEnvelope)
	}
	if strings.TrimSpace(recipient) == "" {
		return Envelope{}, fmt.Errorf("%w: missing recipient", ErrInvalidEnvelope)
	}
	for _, field := range []string{string(kind), sender, recipient} {
		if !utf8.ValidString(field) {
			return Envelope{}, fmt.Errorf("%w: invalid UTF-8 in %q", ErrInvalidEnvelope, field)
		}
	}
	compact, err := compactObject(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	return Envelope{
		kind:      kind,
		sender:    sender,
		recipient: recipient,
		timestamp: timestampMS,
		data:      compact,
	}, nil
}

// Build stamps the current time and encodes payload as the envelope data.
// A nil payload produces an empty data object.
func Build(kind Kind, sender, recipient string, payload Payload) (Envelope, error) {
	data := []byte("{}")
	if payload != nil {
		if payload.Kind() != kind {
			return Envelope{}, fmt.Errorf("%w: envelope=%s payload=%s", ErrPayloadKindMismatch, kind, payload.Kind())
		}
		if err := payload.Validate(); err != nil {
			return Envelope{}, err
		}
		raw, err := json.Marshal(payload)
		if err != nil {
			return Envelope{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		data = raw
	}
	return New(kind, sender, recipient, stamp(), data)
}

func (e Envelope) Kind() Kind {
	return e.kind
}

func (e Envelope) Sender() string {
	return e.sender
}

func (e Envelope) Recipient() string {
	return e.recipient
}

// Timestamp returns the construction time in epoch milliseconds.
func (e Envelope) Timestamp() int64 {
	return e.timestamp
}

func (e Envelope) CreatedAt() time.Time {
	return time.UnixMilli(e.timestamp)
}

// Data returns a copy of the compact JSON object payload.
func (e Envelope) Data() []byte {
	if e.data == nil {
		return []byte("{}")
	}
	out := make([]byte, len(e.data))
	copy(out, e.data)
	return out
}

// Equal reports field-for-field equality.
func (e Envelope) Equal(other Envelope) bool {
	return e.kind == other.kind &&
		e.sender == other.sender &&
		e.recipient == other.recipient &&
		e.timestamp == other.timestamp &&
		bytes.Equal(e.Data(), other.Data())
}

func compactObject(data []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return []byte("{}"), nil
	}
	if trimmed[0] != '{' {
		return nil, fmt.Errorf("data must be a JSON object")
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
