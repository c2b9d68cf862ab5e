package repository

import (
	"context"
	"sync"

	"github.com/totegamma/ticketgate/internal/domain"
	"github.com/totegamma/ticketgate/internal/usecase"
)

// MemoryQueue is the offline queue of a scanner without a database.
type MemoryQueue struct {
	mu      sync.Mutex
	records []domain.ScanRecord
	index   map[string]int
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{index: map[string]int{}}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, record domain.ScanRecord) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.index[record.ID]; ok {
		return nil
	}
	record.State = domain.ScanStateQueued
	record.Sync = domain.SyncPending
	q.index[record.ID] = len(q.records)
	q.records = append(q.records, record)
	return nil
}

func (q *MemoryQueue) Pending(ctx context.Context, limit int) ([]domain.ScanRecord, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var pending []domain.ScanRecord
	for _, r := range q.records {
		if r.Sync != domain.SyncPending {
			continue
		}
		pending = append(pending, r)
		if limit > 0 && len(pending) == limit {
			break
		}
	}
	return pending, nil
}

func (q *MemoryQueue) MarkSynced(ctx context.Context, ids []string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, id := range ids {
		i, ok := q.index[id]
		if !ok {
			continue
		}
		q.records[i].Sync = domain.SyncSynced
		q.records[i].State = domain.ScanStateSynced
	}
	return nil
}

// Records returns a copy of every queued record, synced or not.
func (q *MemoryQueue) Records() []domain.ScanRecord {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]domain.ScanRecord(nil), q.records...)
}

var _ usecase.ScanQueue = (*MemoryQueue)(nil)
