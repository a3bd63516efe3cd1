package middleware

import (
	"context"
	"errors"
	"testing"

	"staybook/internal/app/commands"
)

type stubStore struct {
	records map[string]IdempotencyRecord
}

func newStubStore() *stubStore {
	return &stubStore{records: make(map[string]IdempotencyRecord)}
}

func (s *stubStore) Get(ctx context.Context, key string) (IdempotencyRecord, bool, error) {
	rec, ok := s.records[key]
	return rec, ok, nil
}

func (s *stubStore) Save(ctx context.Context, rec IdempotencyRecord) error {
	s.records[rec.Key] = rec
	return nil
}

type countingBus struct {
	calls  int
	result any
	err    error
}

func (b *countingBus) Dispatch(ctx context.Context, cmd commands.Command) (any, error) {
	b.calls++
	return b.result, b.err
}

type testResult struct {
	Value string `json:"value"`
}

type keyedCommand struct {
	key string
}

func (keyedCommand) Key() string              { return "test.keyed" }
func (c keyedCommand) IdempotencyKey() string { return c.key }
func (keyedCommand) ResultPrototype() any     { return &testResult{} }

type plainCommand struct{}

func (plainCommand) Key() string { return "test.plain" }

func TestIdempotencyReplaysRecordedResult(t *testing.T) {
	inner := &countingBus{result: &testResult{Value: "first"}}
	bus := ChainCommands(inner, Idempotency(newStubStore(), nil))

	cmd := keyedCommand{key: "idem-1"}
	first, err := bus.Dispatch(context.Background(), cmd)
	if err != nil {
		t.Fatalf("first dispatch: %v", err)
	}
	second, err := bus.Dispatch(context.Background(), cmd)
	if err != nil {
		t.Fatalf("second dispatch: %v", err)
	}

	if inner.calls != 1 {
		t.Fatalf("handler calls = %d, want 1", inner.calls)
	}
	if first.(*testResult).Value != "first" || second.(*testResult).Value != "first" {
		t.Errorf("results = %v, %v, want both \"first\"", first, second)
	}
}

func TestIdempotencyReplaysRecordedError(t *testing.T) {
	inner := &countingBus{err: errors.New("gateway down")}
	bus := ChainCommands(inner, Idempotency(newStubStore(), nil))

	cmd := keyedCommand{key: "idem-1"}
	if _, err := bus.Dispatch(context.Background(), cmd); err == nil {
		t.Fatal("first dispatch: expected error")
	}
	_, err := bus.Dispatch(context.Background(), cmd)
	if err == nil || err.Error() != "gateway down" {
		t.Fatalf("replayed error = %v, want \"gateway down\"", err)
	}
	if inner.calls != 1 {
		t.Fatalf("handler calls = %d, want 1", inner.calls)
	}
}

func TestIdempotencySkipsUnkeyedDispatches(t *testing.T) {
	inner := &countingBus{result: &testResult{}}
	bus := ChainCommands(inner, Idempotency(newStubStore(), nil))

	// No key on the command: every dispatch runs.
	for i := 0; i < 3; i++ {
		if _, err := bus.Dispatch(context.Background(), keyedCommand{}); err != nil {
			t.Fatalf("dispatch %d: %v", i, err)
		}
	}
	// Command without the idempotent contract: same.
	if _, err := bus.Dispatch(context.Background(), plainCommand{}); err != nil {
		t.Fatalf("plain dispatch: %v", err)
	}
	if inner.calls != 4 {
		t.Fatalf("handler calls = %d, want 4", inner.calls)
	}
}

func TestIdempotencyKeysAreIndependent(t *testing.T) {
	inner := &countingBus{result: &testResult{Value: "v"}}
	bus := ChainCommands(inner, Idempotency(newStubStore(), nil))

	if _, err := bus.Dispatch(context.Background(), keyedCommand{key: "a"}); err != nil {
		t.Fatalf("dispatch a: %v", err)
	}
	if _, err := bus.Dispatch(context.Background(), keyedCommand{key: "b"}); err != nil {
		t.Fatalf("dispatch b: %v", err)
	}
	if inner.calls != 2 {
		t.Fatalf("handler calls = %d, want 2", inner.calls)
	}
}
