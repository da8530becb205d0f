package store

import (
	"context"
	"sort"
	"sync"

	"github.com/iurnickita/orderexport/internal/model"
)

// memStore - хранилище в памяти для запуска без базы и для тестов.
type memStore struct {
	mu       sync.RWMutex
	sessions map[string]model.Session
	journal  []model.ExportRecord
}

func newMemStore() *memStore {
	return &memStore{sessions: map[string]model.Session{}}
}

func (m *memStore) Close() error {
	return nil
}

func (m *memStore) SessionPost(_ context.Context, session model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[session.ID]; ok {
		return ErrAlreadyExists
	}
	m.sessions[session.ID] = session
	return nil
}

func (m *memStore) SessionGet(_ context.Context, id string) (model.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[id]
	if !ok {
		return model.Session{}, ErrNoRows
	}
	return session, nil
}

func (m *memStore) SessionPut(_ context.Context, session model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.sessions[session.ID]
	if !ok {
		return ErrNoRows
	}
	// аккаунт-источник и дата создания не меняются
	current.Target = session.Target
	current.Config = session.Config
	m.sessions[session.ID] = current
	return nil
}

func (m *memStore) SessionDelete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *memStore) ExportRecordPost(_ context.Context, record model.ExportRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.journal {
		if r.SourceProfile == record.SourceProfile && r.SourceOrderID == record.SourceOrderID &&
			r.TargetProfile == record.TargetProfile && r.TargetOrderID == record.TargetOrderID {
			return ErrAlreadyExists
		}
	}
	m.journal = append(m.journal, record)
	return nil
}

func (m *memStore) ExportRecordGet(_ context.Context, sourceProfile string, targetProfile string) ([]model.ExportRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var records []model.ExportRecord
	for _, r := range m.journal {
		if r.SourceProfile == sourceProfile && r.TargetProfile == targetProfile {
			records = append(records, r)
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].ExportedAt.Before(records[j].ExportedAt)
	})
	return records, nil
}
