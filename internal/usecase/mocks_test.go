package usecase

import (
	"context"
	"errors"
	"sync"

	"github.com/totegamma/ticketgate"
	"github.com/totegamma/ticketgate/internal/domain"
)

// --- mocks ---

type mockStore struct {
	mu      sync.Mutex
	used    map[string]bool
	hasHook func()
	marks   int
	err     error
}

func newMockStore() *mockStore {
	return &mockStore{used: map[string]bool{}}
}

func (m *mockStore) Has(ctx context.Context, ticketID string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	m.mu.Lock()
	used := m.used[ticketID]
	hook := m.hasHook
	m.mu.Unlock()
	if hook != nil {
		hook()
	}
	return used, nil
}

func (m *mockStore) MarkUsed(ctx context.Context, ticketID string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.marks++
	if m.used[ticketID] {
		return false, nil
	}
	m.used[ticketID] = true
	return true, nil
}

func (m *mockStore) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.used)
}

type mockLedger struct {
	mu       sync.Mutex
	failures int
	calls    int
	reject   map[string]bool
	records  []domain.ScanRecord
}

func (m *mockLedger) Append(ctx context.Context, records []domain.ScanRecord) ([]domain.SyncResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.failures > 0 {
		m.failures--
		return nil, errors.New("ledger unreachable")
	}
	results := make([]domain.SyncResult, 0, len(records))
	for _, r := range records {
		if m.reject[r.ID] {
			results = append(results, domain.SyncResult{RecordID: r.ID, Error: "rejected"})
			continue
		}
		m.records = append(m.records, r)
		results = append(results, domain.SyncResult{RecordID: r.ID, OK: true})
	}
	return results, nil
}

type mockQueue struct {
	mu      sync.Mutex
	records []domain.ScanRecord
	synced  map[string]bool
}

func newMockQueue() *mockQueue {
	return &mockQueue{synced: map[string]bool{}}
}

func (m *mockQueue) Enqueue(ctx context.Context, record domain.ScanRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, record)
	return nil
}

func (m *mockQueue) Pending(ctx context.Context, limit int) ([]domain.ScanRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var pending []domain.ScanRecord
	for _, r := range m.records {
		if m.synced[r.ID] {
			continue
		}
		pending = append(pending, r)
		if len(pending) == limit {
			break
		}
	}
	return pending, nil
}

func (m *mockQueue) MarkSynced(ctx context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		m.synced[id] = true
	}
	return nil
}

type mockConnectivity struct {
	online bool
}

func (m *mockConnectivity) Online() bool { return m.online }

type mockQR struct {
	err     error
	payload string
}

func (m *mockQR) Encode(payload string) ([]byte, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.payload = payload
	return []byte("png:" + payload), nil
}

type mockRenderer struct {
	err      error
	empty    bool
	artifact Artifact
}

func (m *mockRenderer) Render(ctx context.Context, artifact Artifact) ([]byte, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.artifact = artifact
	if m.empty {
		return nil, nil
	}
	return []byte("%PDF-1.3 " + artifact.TicketID), nil
}

type mockBanners struct {
	err error
}

func (m *mockBanners) FetchBanner(ctx context.Context, url string) ([]byte, error) {
	if m.err != nil {
		return nil, m.err
	}
	return []byte("banner"), nil
}

type mockAnchors struct {
	err error
}

func (m *mockAnchors) Validate(ctx context.Context, anchor ticketgate.Anchor) error {
	return m.err
}
