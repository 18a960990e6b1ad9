package client

import (
	"errors"
	"fmt"
	"strings"

	"github.com/danmuck/darrayctl/internal/protocol"
)

const errorPrefix = "ERROR:"

var ErrNotOperationComplete = errors.New("client: reply is not OPERATION_COMPLETE")

// Reply is the coordinator's answer exactly as received. Coordinators answer
// with an encoded envelope, a bare status word or an "ERROR: ..." line, so
// interpretation is left to the caller.
type Reply struct {
	Raw string
}

func (r Reply) String() string {
	return r.Raw
}

// IsError reports an "ERROR: ..." reply line.
func (r Reply) IsError() bool {
	return strings.HasPrefix(r.Raw, errorPrefix)
}

// ErrorText returns the reason of an error reply.
func (r Reply) ErrorText() (string, bool) {
	if !r.IsError() {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(r.Raw, errorPrefix)), true
}

// Envelope decodes the reply as an envelope.
func (r Reply) Envelope() (protocol.Envelope, error) {
	return protocol.Decode([]byte(r.Raw))
}

// Outcome decodes the reply as an OPERATION_COMPLETE envelope payload.
func (r Reply) Outcome() (protocol.OperationComplete, error) {
	env, err := r.Envelope()
	if err != nil {
		return protocol.OperationComplete{}, err
	}
	if env.Kind() != protocol.KindOperationComplete {
		return protocol.OperationComplete{}, fmt.Errorf("%w: got %s", ErrNotOperationComplete, env.Kind())
	}
	return protocol.PayloadAs[protocol.OperationComplete](env)
}
