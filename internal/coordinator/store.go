package coordinator

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/danmuck/darrayctl/internal/protocol"
)

var (
	ErrArrayNotFound = errors.New("coordinator: array not found")
	ErrNoResult      = errors.New("coordinator: no result")
)

type storedArray struct {
	id        string
	dataType  protocol.DataType
	ints      []int64
	doubles   []float64
	operation string
	result    json.RawMessage
	createdAt time.Time
	updatedAt time.Time
}

// ArrayInfo is the admin view of one stored array.
type ArrayInfo struct {
	ID        string            `json:"id"`
	DataType  protocol.DataType `json:"dataType"`
	Length    int               `json:"length"`
	Operation string            `json:"operation,omitempty"`
	HasResult bool              `json:"hasResult"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// Store holds arrays by id. Creating an id that exists replaces it.
type Store struct {
	mu      sync.RWMutex
	arrays  map[string]*storedArray
	workers int
}

func NewStore(workers int) *Store {
	if workers < 1 {
		workers = 1
	}
	return &Store{
		arrays:  make(map[string]*storedArray),
		workers: workers,
	}
}

func (s *Store) Create(p protocol.CreateArray) (replaced bool) {
	now := time.Now()
	a := &storedArray{
		id:        p.ArrayID,
		dataType:  p.DataType,
		ints:      slices.Clone(p.Ints),
		doubles:   slices.Clone(p.Doubles),
		createdAt: now,
		updatedAt: now,
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, replaced = s.arrays[p.ArrayID]
	s.arrays[p.ArrayID] = a
	return replaced
}

// Apply evaluates op over the array and stores the result. The computation
// runs outside the lock on a snapshot of the values.
func (s *Store) Apply(arrayID, op string) error {
	want, err := requiredDataType(op)
	if err != nil {
		return err
	}

	s.mu.RLock()
	a, ok := s.arrays[arrayID]
	var ints []int64
	var doubles []float64
	var dt protocol.DataType
	if ok {
		ints, doubles, dt = a.ints, a.doubles, a.dataType
	}
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrArrayNotFound, arrayID)
	}
	if dt != want {
		return fmt.Errorf("%w: %s needs %s, %s is %s", ErrOperationDataType, op, want, arrayID, dt)
	}

	var result any
	switch dt {
	case protocol.DataTypeDouble:
		result = applyDoubles(doubles, s.workers)
	default:
		result = applyInts(ints, s.workers)
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// the array may have been replaced meanwhile; only the original keeps the result
	if cur, ok := s.arrays[arrayID]; ok && cur == a {
		cur.operation = op
		cur.result = raw
		cur.updatedAt = time.Now()
	}
	return nil
}

// Result returns the last computed result for arrayID as a JSON array.
func (s *Store) Result(arrayID string) (json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.arrays[arrayID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrArrayNotFound, arrayID)
	}
	if a.result == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoResult, arrayID)
	}
	return slices.Clone(a.result), nil
}

func (s *Store) Get(arrayID string) (ArrayInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.arrays[arrayID]
	if !ok {
		return ArrayInfo{}, false
	}
	return a.info(), true
}

// Snapshot lists every array sorted by id.
func (s *Store) Snapshot() []ArrayInfo {
	s.mu.RLock()
	out := make([]ArrayInfo, 0, len(s.arrays))
	for _, a := range s.arrays {
		out = append(out, a.info())
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.arrays)
}

func (a *storedArray) info() ArrayInfo {
	n := len(a.ints)
	if a.dataType == protocol.DataTypeDouble {
		n = len(a.doubles)
	}
	return ArrayInfo{
		ID:        a.id,
		DataType:  a.dataType,
		Length:    n,
		Operation: a.operation,
		HasResult: a.result != nil,
		CreatedAt: a.createdAt,
		UpdatedAt: a.updatedAt,
	}
}
