package tokens

import (
	"context"
	"sync"
)

// MemoryBackend keeps records in process. Used when no Redis URL is configured and in tests.
type MemoryBackend struct {
	mu      sync.RWMutex
	records map[string]Record
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{records: make(map[string]Record)}
}

func (m *MemoryBackend) Load(_ context.Context, userID, workflowID string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	record, ok := m.records[recordKey(userID, workflowID)]
	if !ok {
		return nil, ErrTokenNotFound
	}

	return &record, nil
}

func (m *MemoryBackend) Store(_ context.Context, record *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records[recordKey(record.UserID, record.WorkflowID)] = *record

	return nil
}

func (m *MemoryBackend) Remove(_ context.Context, userID, workflowID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := recordKey(userID, workflowID)
	if _, ok := m.records[key]; !ok {
		return ErrTokenNotFound
	}

	delete(m.records, key)

	return nil
}

func recordKey(userID, workflowID string) string {
	return "zerodha:token:" + userID + ":" + workflowID
}
