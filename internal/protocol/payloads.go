package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Payload is the typed data of one envelope kind.
type Payload interface {
	Kind() Kind
	Validate() error
}

// DataType names the element type of an array payload.
type DataType string

const (
	DataTypeInt    DataType = "int"
	DataTypeDouble DataType = "double"
)

// Operation status values reported in OPERATION_COMPLETE replies.
const (
	StatusCreated    = "created"
	StatusProcessing = "processing"
	StatusComplete   = "complete"
)

// CreateArray asks the coordinator to store and distribute a new array.
// Exactly one of Ints or Doubles is used, selected by DataType.
type CreateArray struct {
	ArrayID  string
	DataType DataType
	Ints     []int64
	Doubles  []float64
}

func NewIntArray(arrayID string, values []int64) CreateArray {
	return CreateArray{ArrayID: arrayID, DataType: DataTypeInt, Ints: values}
}

func NewDoubleArray(arrayID string, values []float64) CreateArray {
	return CreateArray{ArrayID: arrayID, DataType: DataTypeDouble, Doubles: values}
}

func (CreateArray) Kind() Kind { return KindCreateArray }

func (p CreateArray) Len() int {
	if p.DataType == DataTypeDouble {
		return len(p.Doubles)
	}
	return len(p.Ints)
}

func (p CreateArray) Validate() error {
	if strings.TrimSpace(p.ArrayID) == "" {
		return fmt.Errorf("%w: missing arrayId", ErrInvalidPayload)
	}
	return validateValues(p.DataType, p.Ints, p.Doubles)
}

func (p CreateArray) MarshalJSON() ([]byte, error) {
	values, err := wireValues(p.DataType, p.Ints, p.Doubles)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		ArrayID  string   `json:"arrayId"`
		DataType DataType `json:"dataType"`
		Values   any      `json:"values"`
	}{p.ArrayID, p.DataType, values})
}

func (p *CreateArray) UnmarshalJSON(b []byte) error {
	var w struct {
		ArrayID  string          `json:"arrayId"`
		DataType DataType        `json:"dataType"`
		Values   json.RawMessage `json:"values"`
	}
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	ints, doubles, err := parseValues("values", w.DataType, w.Values)
	if err != nil {
		return err
	}
	*p = CreateArray{ArrayID: w.ArrayID, DataType: w.DataType, Ints: ints, Doubles: doubles}
	return nil
}

// ApplyOperation asks the coordinator to run a named operation over an array.
type ApplyOperation struct {
	ArrayID   string `json:"arrayId"`
	Operation string `json:"operation"`
}

func (ApplyOperation) Kind() Kind { return KindApplyOperation }

func (p ApplyOperation) Validate() error {
	if strings.TrimSpace(p.ArrayID) == "" {
		return fmt.Errorf("%w: missing arrayId", ErrInvalidPayload)
	}
	if strings.TrimSpace(p.Operation) == "" {
		return fmt.Errorf("%w: missing operation", ErrInvalidPayload)
	}
	return nil
}

// GetResult asks the coordinator for the current result of an array.
type GetResult struct {
	ArrayID string `json:"arrayId"`
}

func (GetResult) Kind() Kind { return KindGetResult }

func (p GetResult) Validate() error {
	if strings.TrimSpace(p.ArrayID) == "" {
		return fmt.Errorf("%w: missing arrayId", ErrInvalidPayload)
	}
	return nil
}

// OperationComplete is the coordinator's reply to client commands. Result is
// kept raw: coordinators answer with either a number array or a message.
type OperationComplete struct {
	Status  string          `json:"status"`
	ArrayID string          `json:"arrayId,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Message string          `json:"message,omitempty"`
}

func (OperationComplete) Kind() Kind { return KindOperationComplete }

func (p OperationComplete) Validate() error {
	if strings.TrimSpace(p.Status) == "" {
		return fmt.Errorf("%w: missing status", ErrInvalidPayload)
	}
	return nil
}

// ResultValues decodes Result as a number array.
func (p OperationComplete) ResultValues() ([]float64, error) {
	if len(p.Result) == 0 {
		return nil, fmt.Errorf("%w: no result", ErrInvalidPayload)
	}
	_, doubles, err := parseValues("result", DataTypeDouble, p.Result)
	return doubles, err
}

// ResultText decodes Result as a plain message.
func (p OperationComplete) ResultText() (string, bool) {
	var s string
	if len(p.Result) == 0 || json.Unmarshal(p.Result, &s) != nil {
		return "", false
	}
	return s, true
}

// RegisterWorker announces a worker and its capacity.
type RegisterWorker struct {
	Host   string `json:"host,omitempty"`
	Port   int    `json:"port,omitempty"`
	Cores  int    `json:"cores"`
	Memory int64  `json:"memory"`
}

func (RegisterWorker) Kind() Kind { return KindRegisterWorker }

func (p RegisterWorker) Validate() error {
	if p.Cores <= 0 {
		return fmt.Errorf("%w: cores must be positive", ErrInvalidPayload)
	}
	if p.Memory < 0 {
		return fmt.Errorf("%w: memory must not be negative", ErrInvalidPayload)
	}
	return nil
}

type Heartbeat struct{}

func (Heartbeat) Kind() Kind { return KindHeartbeat }
func (Heartbeat) Validate() error { return nil }

type Shutdown struct{}

func (Shutdown) Kind() Kind { return KindShutdown }
func (Shutdown) Validate() error { return nil }

type WorkerStatus struct {
	Status   string `json:"status"`
	Segments int    `json:"segments,omitempty"`
}

func (WorkerStatus) Kind() Kind { return KindWorkerStatus }

func (p WorkerStatus) Validate() error {
	if strings.TrimSpace(p.Status) == "" {
		return fmt.Errorf("%w: missing status", ErrInvalidPayload)
	}
	return nil
}

// SegmentData is one contiguous slice [StartIndex, EndIndex) of an array as
// shipped to a worker.
type SegmentData struct {
	ArrayID    string
	SegmentID  int
	StartIndex int
	EndIndex   int
	DataType   DataType
	Ints       []int64
	Doubles    []float64
	IsPrimary  bool
}

func (p SegmentData) Validate() error {
	if strings.TrimSpace(p.ArrayID) == "" {
		return fmt.Errorf("%w: missing arrayId", ErrInvalidPayload)
	}
	if p.StartIndex < 0 || p.EndIndex < p.StartIndex {
		return fmt.Errorf("%w: invalid segment bounds [%d,%d)", ErrInvalidPayload, p.StartIndex, p.EndIndex)
	}
	if err := validateValues(p.DataType, p.Ints, p.Doubles); err != nil {
		return err
	}
	n := len(p.Ints)
	if p.DataType == DataTypeDouble {
		n = len(p.Doubles)
	}
	if n != p.EndIndex-p.StartIndex {
		return fmt.Errorf("%w: segment holds %d values for [%d,%d)", ErrInvalidPayload, n, p.StartIndex, p.EndIndex)
	}
	return nil
}

func (p SegmentData) MarshalJSON() ([]byte, error) {
	values, err := wireValues(p.DataType, p.Ints, p.Doubles)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		ArrayID    string   `json:"arrayId"`
		SegmentID  int      `json:"segmentId"`
		StartIndex int      `json:"startIndex"`
		EndIndex   int      `json:"endIndex"`
		DataType   DataType `json:"dataType"`
		Data       any      `json:"data"`
		IsPrimary  bool     `json:"isPrimary"`
	}{p.ArrayID, p.SegmentID, p.StartIndex, p.EndIndex, p.DataType, values, p.IsPrimary})
}

func (p *SegmentData) UnmarshalJSON(b []byte) error {
	var w struct {
		ArrayID    string          `json:"arrayId"`
		SegmentID  int             `json:"segmentId"`
		StartIndex int             `json:"startIndex"`
		EndIndex   int             `json:"endIndex"`
		DataType   DataType        `json:"dataType"`
		Data       json.RawMessage `json:"data"`
		IsPrimary  bool            `json:"isPrimary"`
	}
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	ints, doubles, err := parseValues("data", w.DataType, w.Data)
	if err != nil {
		return err
	}
	*p = SegmentData{
		ArrayID:    w.ArrayID,
		SegmentID:  w.SegmentID,
		StartIndex: w.StartIndex,
		EndIndex:   w.EndIndex,
		DataType:   w.DataType,
		Ints:       ints,
		Doubles:    doubles,
		IsPrimary:  w.IsPrimary,
	}
	return nil
}

// DistributeArray ships a primary segment to a worker.
type DistributeArray struct {
	SegmentData
}

func (DistributeArray) Kind() Kind { return KindDistributeArray }

// ReplicateData ships a replica segment to a worker.
type ReplicateData struct {
	SegmentData
}

func (ReplicateData) Kind() Kind { return KindReplicateData }

type ProcessSegment struct {
	ArrayID   string `json:"arrayId"`
	Operation string `json:"operation"`
}

func (ProcessSegment) Kind() Kind { return KindProcessSegment }

func (p ProcessSegment) Validate() error {
	return ApplyOperation(p).Validate()
}

type SegmentResult struct {
	ArrayID   string          `json:"arrayId"`
	SegmentID int             `json:"segmentId"`
	Status    string          `json:"status"`
	Data      json.RawMessage `json:"data,omitempty"`
}

func (SegmentResult) Kind() Kind { return KindSegmentResult }

func (p SegmentResult) Validate() error {
	if strings.TrimSpace(p.ArrayID) == "" {
		return fmt.Errorf("%w: missing arrayId", ErrInvalidPayload)
	}
	if strings.TrimSpace(p.Status) == "" {
		return fmt.Errorf("%w: missing status", ErrInvalidPayload)
	}
	return nil
}

type NodeFailure struct {
	WorkerID string `json:"workerId"`
}

func (NodeFailure) Kind() Kind { return KindNodeFailure }

func (p NodeFailure) Validate() error {
	if strings.TrimSpace(p.WorkerID) == "" {
		return fmt.Errorf("%w: missing workerId", ErrInvalidPayload)
	}
	return nil
}

// RecoverData promotes a worker's replica of a segment to primary.
type RecoverData struct {
	ArrayID     string `json:"arrayId"`
	SegmentID   int    `json:"segmentId"`
	MakePrimary bool   `json:"makePrimary"`
}

func (RecoverData) Kind() Kind { return KindRecoverData }

func (p RecoverData) Validate() error {
	if strings.TrimSpace(p.ArrayID) == "" {
		return fmt.Errorf("%w: missing arrayId", ErrInvalidPayload)
	}
	return nil
}

type RecoveryComplete struct {
	ArrayID   string `json:"arrayId"`
	SegmentID int    `json:"segmentId"`
	Status    string `json:"status"`
}

func (RecoveryComplete) Kind() Kind { return KindRecoveryComplete }

func (p RecoveryComplete) Validate() error {
	if strings.TrimSpace(p.ArrayID) == "" {
		return fmt.Errorf("%w: missing arrayId", ErrInvalidPayload)
	}
	return nil
}

var payloadDecoders = map[Kind]func(Envelope) (Payload, error){
	KindCreateArray:       decodeAs[CreateArray],
	KindApplyOperation:    decodeAs[ApplyOperation],
	KindGetResult:         decodeAs[GetResult],
	KindOperationComplete: decodeAs[OperationComplete],
	KindRegisterWorker:    decodeAs[RegisterWorker],
	KindHeartbeat:         decodeAs[Heartbeat],
	KindWorkerStatus:      decodeAs[WorkerStatus],
	KindShutdown:          decodeAs[Shutdown],
	KindDistributeArray:   decodeAs[DistributeArray],
	KindReplicateData:     decodeAs[ReplicateData],
	KindProcessSegment:    decodeAs[ProcessSegment],
	KindSegmentResult:     decodeAs[SegmentResult],
	KindNodeFailure:       decodeAs[NodeFailure],
	KindRecoverData:       decodeAs[RecoverData],
	KindRecoveryComplete:  decodeAs[RecoveryComplete],
}

// DecodePayload converts env's data into the typed payload for its kind.
func DecodePayload(env Envelope) (Payload, error) {
	decode, ok := payloadDecoders[env.Kind()]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedKind, env.Kind())
	}
	return decode(env)
}

// PayloadAs converts env's data into T, failing when env carries another kind.
func PayloadAs[T Payload](env Envelope) (T, error) {
	var zero T
	if zero.Kind() != env.Kind() {
		return zero, fmt.Errorf("%w: envelope=%s want=%s", ErrPayloadKindMismatch, env.Kind(), zero.Kind())
	}
	p, err := decodeAs[T](env)
	if err != nil {
		return zero, err
	}
	return p.(T), nil
}

func decodeAs[T Payload](env Envelope) (Payload, error) {
	var v T
	if err := json.Unmarshal(env.Data(), &v); err != nil {
		if errors.Is(err, ErrInvalidPayload) {
			return nil, fmt.Errorf("%s: %w", env.Kind(), err)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPayload, env.Kind(), err)
	}
	if err := v.Validate(); err != nil {
		return nil, err
	}
	return v, nil
}

func validateValues(dt DataType, ints []int64, doubles []float64) error {
	switch dt {
	case DataTypeInt:
		if len(doubles) > 0 {
			return fmt.Errorf("%w: double values on int array", ErrInvalidPayload)
		}
	case DataTypeDouble:
		if len(ints) > 0 {
			return fmt.Errorf("%w: int values on double array", ErrInvalidPayload)
		}
		for i, v := range doubles {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: values[%d] is not finite", ErrInvalidPayload, i)
			}
		}
	default:
		return fmt.Errorf("%w: unknown dataType %q", ErrInvalidPayload, dt)
	}
	return nil
}

func wireValues(dt DataType, ints []int64, doubles []float64) (any, error) {
	switch dt {
	case DataTypeInt:
		if ints == nil {
			return []int64{}, nil
		}
		return ints, nil
	case DataTypeDouble:
		if doubles == nil {
			return []float64{}, nil
		}
		return doubles, nil
	default:
		return nil, fmt.Errorf("%w: unknown dataType %q", ErrInvalidPayload, dt)
	}
}

// parseValues decodes a JSON number array keeping integer and fractional
// values exact for the declared element type.
func parseValues(field string, dt DataType, raw json.RawMessage) ([]int64, []float64, error) {
	if len(raw) == 0 || isNull(raw) {
		return nil, nil, fmt.Errorf("%w: missing %s", ErrInvalidPayload, field)
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, nil, fmt.Errorf("%w: %s must be an array of numbers", ErrInvalidPayload, field)
	}
	nums := make([]json.Number, len(elems))
	for i, e := range elems {
		e = bytes.TrimSpace(e)
		if len(e) == 0 || (e[0] != '-' && (e[0] < '0' || e[0] > '9')) {
			return nil, nil, fmt.Errorf("%w: %s[%d] is not a number", ErrInvalidPayload, field, i)
		}
		nums[i] = json.Number(e)
	}
	switch dt {
	case DataTypeInt:
		ints := make([]int64, len(nums))
		for i, n := range nums {
			v, err := strconv.ParseInt(n.String(), 10, 64)
			if err != nil {
				return nil, nil, fmt.Errorf("%w: %s[%d]=%s is not an int", ErrInvalidPayload, field, i, n)
			}
			ints[i] = v
		}
		return ints, nil, nil
	case DataTypeDouble:
		doubles := make([]float64, len(nums))
		for i, n := range nums {
			v, err := n.Float64()
			if err != nil {
				return nil, nil, fmt.Errorf("%w: %s[%d]=%s is not a double", ErrInvalidPayload, field, i, n)
			}
			doubles[i] = v
		}
		return nil, doubles, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown dataType %q", ErrInvalidPayload, dt)
	}
}
