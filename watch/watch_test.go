package watch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/ongspa/dbopen"
	"github.com/hazyhaar/ongspa/store"
)

type item struct {
	N int `json:"n"`
}

func newList(t *testing.T) (*store.Store, *store.List[item]) {
	t.Helper()
	s, err := store.New(dbopen.OpenMemory(t))
	if err != nil {
		t.Fatal(err)
	}
	return s, store.NewList[item](s, "itens")
}

func TestListLength(t *testing.T) {
	s, list := newList(t)
	ctx := context.Background()
	det := ListLength("itens")

	if v, err := det(ctx, s.DB); err != nil || v != 0 {
		t.Fatalf("absent key = %d, %v", v, err)
	}
	for i := 1; i <= 2; i++ {
		if err := list.Append(ctx, item{N: i}); err != nil {
			t.Fatal(err)
		}
	}
	if v, err := det(ctx, s.DB); err != nil || v != 2 {
		t.Fatalf("two items = %d, %v", v, err)
	}
	if err := s.Set(ctx, "itens", "{quebrado"); err != nil {
		t.Fatal(err)
	}
	if v, err := det(ctx, s.DB); err != nil || v != -1 {
		t.Fatalf("corrupt value = %d, %v", v, err)
	}
}

func TestDataVersion(t *testing.T) {
	s, _ := newList(t)
	if _, err := DataVersion(context.Background(), s.DB); err != nil {
		t.Fatal(err)
	}
}

func TestRun_ReportsAppends(t *testing.T) {
	s, list := newList(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := New(s.DB, Options{Interval: 5 * time.Millisecond, Detector: ListLength("itens")})
	seen := make(chan int64, 8)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.Run(ctx, func(_ context.Context, v int64) error {
			seen <- v
			return nil
		})
	}()

	// Let Run read its baseline before the first write.
	waitFor(t, func() bool { return w.Version() == 0 })
	if err := list.Append(ctx, item{N: 1}); err != nil {
		t.Fatal(err)
	}
	select {
	case v := <-seen:
		if v != 1 {
			t.Fatalf("version = %d, want 1", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("change not reported")
	}

	cancel()
	wg.Wait()
	if st := w.Stats(); st.Changes != 1 || st.Checks == 0 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestRun_RetriesFailedAction(t *testing.T) {
	s, list := newList(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := New(s.DB, Options{Interval: 5 * time.Millisecond, Detector: ListLength("itens")})
	var calls atomic.Int32
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx, func(context.Context, int64) error {
			if calls.Add(1) == 1 {
				return errors.New("falhou")
			}
			return nil
		})
	}()

	waitFor(t, func() bool { return w.Version() == 0 })
	if err := list.Append(ctx, item{N: 1}); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return w.Version() == 1 })
	cancel()
	<-done

	if calls.Load() != 2 {
		t.Fatalf("action calls = %d, want 2", calls.Load())
	}
	if st := w.Stats(); st.Errors != 1 {
		t.Fatalf("stats = %+v", st)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not reached")
		}
		time.Sleep(time.Millisecond)
	}
}
