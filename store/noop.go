package store

import (
	"context"
	"fmt"
)

// NoOpStore discards every write and reports nothing stored. It is the
// Layer-3 fallback when Redis is unreachable at startup or an operator
// simply hasn't configured telemetry persistence (§11 "optional").
type NoOpStore struct{}

func (NoOpStore) Store(context.Context, AgentSnapshot) error { return nil }

func (NoOpStore) Get(_ context.Context, agentName string) (*AgentSnapshot, error) {
	return nil, fmt.Errorf("store: telemetry persistence not configured")
}

func (NoOpStore) ListRecent(context.Context, int) ([]SnapshotSummary, error) {
	return nil, nil
}

func (NoOpStore) Close() error { return nil }

var _ ExecutionStore = NoOpStore{}

// NewConfigured returns a RedisExecutionStore built from opts, degrading
// to a NoOpStore if Redis is unreachable — the Layer-3 fallback the
// teacher pack's debug stores document but leave to each call site's
// factory. err is non-nil only to let the caller log the degrade
// decision; the returned store is always usable.
func NewConfigured(opts ...RedisExecutionStoreOption) (ExecutionStore, error) {
	s, err := NewRedisExecutionStore(opts...)
	if err != nil {
		return NoOpStore{}, err
	}
	return s, nil
}
