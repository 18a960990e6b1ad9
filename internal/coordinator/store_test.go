package coordinator

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/danmuck/darrayctl/internal/protocol"
)

func TestStoreCreateApplyResult(t *testing.T) {
	s := NewStore(2)
	values := []int64{3, 10}
	if replaced := s.Create(protocol.NewIntArray("a1", values)); replaced {
		t.Fatalf("first create must not replace")
	}
	values[0] = 99

	if _, err := s.Result("a1"); !errors.Is(err, ErrNoResult) {
		t.Fatalf("expected ErrNoResult before apply, got %v", err)
	}
	if err := s.Apply("a1", OpExample2); err != nil {
		t.Fatalf("apply: %v", err)
	}
	raw, err := s.Result("a1")
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	var got []int64
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if len(got) != 2 || got[0] != 3 || got[1] != 10 {
		t.Fatalf("store must not alias caller values: %v", got)
	}

	info, ok := s.Get("a1")
	if !ok || info.Length != 2 || info.Operation != OpExample2 || !info.HasResult {
		t.Fatalf("unexpected info: %+v", info)
	}
}

func TestStoreApplyErrors(t *testing.T) {
	s := NewStore(1)
	s.Create(protocol.NewDoubleArray("d", []float64{1.5}))

	if err := s.Apply("missing", OpExample1); !errors.Is(err, ErrArrayNotFound) {
		t.Fatalf("expected ErrArrayNotFound, got %v", err)
	}
	if err := s.Apply("d", OpExample2); !errors.Is(err, ErrOperationDataType) {
		t.Fatalf("expected ErrOperationDataType, got %v", err)
	}
	if err := s.Apply("d", "nope"); !errors.Is(err, ErrUnknownOperation) {
		t.Fatalf("expected ErrUnknownOperation, got %v", err)
	}
	if _, err := s.Result("missing"); !errors.Is(err, ErrArrayNotFound) {
		t.Fatalf("expected ErrArrayNotFound, got %v", err)
	}
}

func TestStoreReplaceDropsResult(t *testing.T) {
	s := NewStore(1)
	s.Create(protocol.NewIntArray("a", []int64{3}))
	if err := s.Apply("a", OpExample2); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !s.Create(protocol.NewIntArray("a", []int64{4, 5})) {
		t.Fatalf("expected replace")
	}
	if _, err := s.Result("a"); !errors.Is(err, ErrNoResult) {
		t.Fatalf("replaced array must start without result, got %v", err)
	}
	s.Create(protocol.NewDoubleArray("b", nil))
	snap := s.Snapshot()
	if len(snap) != 2 || snap[0].ID != "a" || snap[1].ID != "b" || s.Len() != 2 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}
