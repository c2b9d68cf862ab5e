package usecase

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/totegamma/ticketgate/internal/domain"
)

func fillQueue(q *mockQueue, n int) {
	for i := 1; i <= n; i++ {
		q.Enqueue(context.Background(), domain.ScanRecord{ID: fmt.Sprintf("rec-%d", i), EventID: "42"})
	}
}

func fastFlusher(queue ScanQueue, ledger ScanLedger, batch int) *SyncFlusher {
	return NewSyncFlusher(queue, ledger, FlusherOptions{
		BatchSize:       batch,
		MaxRetries:      3,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
	})
}

func TestFlushDeliversInOrder(t *testing.T) {
	queue := newMockQueue()
	fillQueue(queue, 5)
	ledger := &mockLedger{}

	report, err := fastFlusher(queue, ledger, 2).Flush(context.Background())
	if err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	if report.Synced != 5 || report.Failed != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
	for i, r := range ledger.records {
		if r.ID != fmt.Sprintf("rec-%d", i+1) {
			t.Fatalf("expected capture order, got %s at %d", r.ID, i)
		}
	}
	pending, _ := queue.Pending(context.Background(), 10)
	if len(pending) != 0 {
		t.Fatalf("expected empty queue got %d", len(pending))
	}
}

func TestFlushRetriesTransientFailure(t *testing.T) {
	queue := newMockQueue()
	fillQueue(queue, 2)
	ledger := &mockLedger{failures: 2}

	report, err := fastFlusher(queue, ledger, 10).Flush(context.Background())
	if err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	if report.Synced != 2 {
		t.Fatalf("expected 2 synced got %d", report.Synced)
	}
	if ledger.calls != 3 {
		t.Fatalf("expected 3 attempts got %d", ledger.calls)
	}
}

func TestFlushGivesUpAndKeepsPending(t *testing.T) {
	queue := newMockQueue()
	fillQueue(queue, 2)
	ledger := &mockLedger{failures: 100}

	if _, err := fastFlusher(queue, ledger, 10).Flush(context.Background()); err == nil {
		t.Fatalf("expected error after retries")
	}
	pending, _ := queue.Pending(context.Background(), 10)
	if len(pending) != 2 {
		t.Fatalf("records must stay pending, got %d", len(pending))
	}
}

func TestFlushRejectedRecordStaysPending(t *testing.T) {
	queue := newMockQueue()
	fillQueue(queue, 3)
	ledger := &mockLedger{reject: map[string]bool{"rec-2": true}}

	report, err := fastFlusher(queue, ledger, 10).Flush(context.Background())
	if err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	if report.Synced != 2 || report.Failed != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	pending, _ := queue.Pending(context.Background(), 10)
	if len(pending) != 1 || pending[0].ID != "rec-2" {
		t.Fatalf("expected rec-2 pending got %+v", pending)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	queue := newMockQueue()
	fillQueue(queue, 1)
	ledger := &mockLedger{}
	flusher := fastFlusher(queue, ledger, 10)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- flusher.Run(ctx, time.Millisecond, &mockConnectivity{online: true})
	}()

	deadline := time.After(2 * time.Second)
	for {
		pending, _ := queue.Pending(context.Background(), 10)
		if len(pending) == 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("record was never flushed")
		case <-time.After(time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("expected context.Canceled got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not stop")
	}
}
