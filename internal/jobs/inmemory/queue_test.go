package inmemory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dvloznov/ledger-assistant/internal/jobs"
)

func TestQueue_PublishAndProcess(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	q := NewQueue(10, 1, store)

	done := make(chan string, 1)
	if err := q.Start(ctx, func(ctx context.Context, job *jobs.Job) error {
		done <- job.JobID
		return nil
	}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	job := &jobs.Job{Type: jobs.JobTypeIndexItem, UserID: "u1", ItemID: "tx-1", Text: "午餐 120"}
	if err := q.Publish(ctx, job); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if job.JobID == "" {
		t.Fatal("Publish did not assign a job id")
	}

	select {
	case id := <-done:
		if id != job.JobID {
			t.Errorf("processed %q, want %q", id, job.JobID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("job never processed")
	}

	// Status reaches completed in the store.
	deadline := time.Now().Add(2 * time.Second)
	for {
		got, err := store.GetJob(ctx, job.JobID)
		if err != nil {
			t.Fatalf("GetJob: %v", err)
		}
		if got.Status == jobs.JobStatusCompleted {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job status = %q, want completed", got.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := q.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestQueue_RetriesUntilSuccess(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	q := NewQueue(10, 1, store)

	var calls int32
	done := make(chan struct{}, 1)
	if err := q.Start(ctx, func(ctx context.Context, job *jobs.Job) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New("transient")
		}
		done <- struct{}{}
		return nil
	}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	job := &jobs.Job{Type: jobs.JobTypeTrainClassifier, UserID: "u1"}
	if err := q.Publish(ctx, job); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatalf("job never succeeded, calls = %d", atomic.LoadInt32(&calls))
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := q.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestQueue_PublishAfterStopFails(t *testing.T) {
	ctx := context.Background()
	q := NewQueue(1, 1, nil)

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := q.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := q.Publish(ctx, &jobs.Job{Type: jobs.JobTypeIndexItem}); err == nil {
		t.Fatal("expected error publishing to a stopped queue")
	}
}

func TestStore_ListJobsFilters(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	seed := []*jobs.Job{
		{JobID: "j1", Type: jobs.JobTypeIndexItem, UserID: "u1", Status: jobs.JobStatusCompleted},
		{JobID: "j2", Type: jobs.JobTypeIndexItem, UserID: "u2", Status: jobs.JobStatusPending},
		{JobID: "j3", Type: jobs.JobTypeTrainClassifier, UserID: "u1", Status: jobs.JobStatusFailed},
	}
	for _, job := range seed {
		if err := store.SaveJob(ctx, job); err != nil {
			t.Fatalf("SaveJob: %v", err)
		}
	}

	got, err := store.ListJobs(ctx, jobs.JobFilter{UserID: "u1"})
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("user filter returned %d jobs, want 2", len(got))
	}

	got, err = store.ListJobs(ctx, jobs.JobFilter{Type: jobs.JobTypeIndexItem, Status: jobs.JobStatusPending})
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(got) != 1 || got[0].JobID != "j2" {
		t.Errorf("combined filter = %v, want only j2", got)
	}

	got, err = store.ListJobs(ctx, jobs.JobFilter{Limit: 2})
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("limit returned %d jobs, want 2", len(got))
	}
}
