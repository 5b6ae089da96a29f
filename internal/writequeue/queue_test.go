package writequeue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestQueue_SameKeyRunsInOrder(t *testing.T) {
	q := New()

	var (
		mu    sync.Mutex
		order []int
	)
	for i := range 50 {
		q.Enqueue("alert-1", func(context.Context) error {
			// Earlier ops sleep longer; order must still hold.
			time.Sleep(time.Duration(50-i) * 50 * time.Microsecond)
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil
		})
	}
	q.Wait()

	if len(order) != 50 {
		t.Fatalf("ran %d ops, want 50", len(order))
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("order[%d] = %d; got %v", i, v, order)
		}
	}
	if q.Active("alert-1") {
		t.Fatal("drained key was not torn down")
	}
}

func TestQueue_DifferentKeysDoNotBlock(t *testing.T) {
	q := New()
	release := make(chan struct{})
	started := make(chan struct{})

	q.Enqueue("slow", func(context.Context) error {
		close(started)
		<-release
		return nil
	})
	<-started

	done := make(chan struct{})
	q.Enqueue("fast", func(context.Context) error {
		close(done)
		return nil
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("op on another key waited behind a blocked key")
	}
	close(release)
	q.Wait()
}

func TestQueue_FailureDoesNotAbortRemaining(t *testing.T) {
	var (
		mu        sync.Mutex
		failures  []string
		successes int
	)
	q := New(WithCallbacks(
		func(string) {
			mu.Lock()
			successes++
			mu.Unlock()
		},
		func(key string, err error) {
			mu.Lock()
			failures = append(failures, key+": "+err.Error())
			mu.Unlock()
		},
	))

	ran := 0
	q.Enqueue("a", func(context.Context) error { ran++; return errors.New("boom") })
	q.Enqueue("a", func(context.Context) error { ran++; panic("worse") })
	q.Enqueue("a", func(context.Context) error { ran++; return nil })
	q.Wait()

	if ran != 3 {
		t.Fatalf("ran = %d, want 3", ran)
	}
	if successes != 1 {
		t.Fatalf("successes = %d, want 1", successes)
	}
	if len(failures) != 2 || failures[0] != "a: boom" {
		t.Fatalf("failures = %v", failures)
	}
}

func TestQueue_CanceledIsSilent(t *testing.T) {
	called := false
	q := New(WithCallbacks(nil, func(string, error) { called = true }))

	err := q.EnqueueAndWait(context.Background(), "a", func(context.Context) error {
		return context.Canceled
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if called {
		t.Fatal("error callback called for a canceled op")
	}
}

func TestQueue_EnqueueAndWaitReturnsResult(t *testing.T) {
	q := New()
	want := errors.New("nope")

	if err := q.EnqueueAndWait(context.Background(), "k", func(context.Context) error { return nil }); err != nil {
		t.Fatalf("err = %v", err)
	}
	if err := q.EnqueueAndWait(context.Background(), "k", func(context.Context) error { return want }); !errors.Is(err, want) {
		t.Fatalf("err = %v, want %v", err, want)
	}
}

func TestQueue_WaiterGivesUpOpStillRuns(t *testing.T) {
	q := New()
	release := make(chan struct{})
	finished := make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := q.EnqueueAndWait(ctx, "k", func(context.Context) error {
		<-release
		close(finished)
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}

	close(release)
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("op abandoned by its waiter never ran")
	}
	q.Wait()
}
