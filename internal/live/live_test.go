package live

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

const waitTimeout = 2 * time.Second

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatalf("channel closed")
		}
		return v
	case <-time.After(waitTimeout):
		t.Fatalf("timed out waiting for value")
	}
	var zero T
	return zero
}

func waitClosed[T any](t *testing.T, ch <-chan T) {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatalf("channel not closed")
		}
	}
}

func TestNotifierDeliversOncePerListener(t *testing.T) {
	n := NewNotifier()
	var a, b int32
	cancelA := n.Listen(func() { atomic.AddInt32(&a, 1) }, "transactions", "categories")
	n.Listen(func() { atomic.AddInt32(&b, 1) }, "goals")

	n.Notify("transactions", "categories")
	if got := atomic.LoadInt32(&a); got != 1 {
		t.Fatalf("listener a called %d times, want 1", got)
	}
	if got := atomic.LoadInt32(&b); got != 0 {
		t.Fatalf("listener b called %d times, want 0", got)
	}

	cancelA()
	cancelA()
	n.Notify("transactions")
	if got := atomic.LoadInt32(&a); got != 1 {
		t.Fatalf("cancelled listener called again")
	}
	if n.Listeners("transactions") != 0 {
		t.Fatalf("listener not removed")
	}
}

func TestQueryRerunsOnNotify(t *testing.T) {
	n := NewNotifier()
	var counter int64
	q := NewQuery(n, func(ctx context.Context) (int64, error) {
		return atomic.LoadInt64(&counter), nil
	}, "transactions")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := q.Subscribe(ctx)

	if s := recv(t, ch); s.Value != 0 {
		t.Fatalf("first snapshot = %d", s.Value)
	}

	atomic.StoreInt64(&counter, 7)
	n.Notify("transactions")
	if s := recv(t, ch); s.Value != 7 {
		t.Fatalf("second snapshot = %d", s.Value)
	}
}

func TestQueryIgnoresUnrelatedTables(t *testing.T) {
	n := NewNotifier()
	var runs int32
	q := NewQuery(n, func(ctx context.Context) (int32, error) {
		return atomic.AddInt32(&runs, 1), nil
	}, "goals")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := q.Subscribe(ctx)
	recv(t, ch)

	n.Notify("transactions")
	select {
	case s := <-ch:
		t.Fatalf("unexpected snapshot %v", s)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestQueryLateSubscriberGetsCachedSnapshot(t *testing.T) {
	n := NewNotifier()
	var runs int32
	q := NewQuery(n, func(ctx context.Context) (int32, error) {
		return atomic.AddInt32(&runs, 1), nil
	}, "categories")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	first := q.Subscribe(ctx)
	recv(t, first)

	second := q.Subscribe(ctx)
	if s := recv(t, second); s.Value != 1 {
		t.Fatalf("late subscriber got %d, want cached 1", s.Value)
	}
	if got := atomic.LoadInt32(&runs); got != 1 {
		t.Fatalf("query ran %d times, want 1", got)
	}
	if q.Subscribers() != 2 {
		t.Fatalf("subscribers = %d", q.Subscribers())
	}
}

func TestQueryRestartsAfterLastSubscriberLeaves(t *testing.T) {
	n := NewNotifier()
	var runs int32
	q := NewQuery(n, func(ctx context.Context) (int32, error) {
		return atomic.AddInt32(&runs, 1), nil
	}, "goals")

	ctx1, cancel1 := context.WithCancel(context.Background())
	ch1 := q.Subscribe(ctx1)
	recv(t, ch1)
	cancel1()
	waitClosed(t, ch1)

	if q.Subscribers() != 0 {
		t.Fatalf("subscriber not removed")
	}

	ctx2, cancel2 := context.WithCancel(context.Background())
	defer cancel2()
	ch2 := q.Subscribe(ctx2)
	if s := recv(t, ch2); s.Value != 2 {
		t.Fatalf("resubscribe got %d, want a fresh run", s.Value)
	}
}

func TestQueryPropagatesErrors(t *testing.T) {
	n := NewNotifier()
	boom := errors.New("boom")
	q := NewQuery(n, func(ctx context.Context) (string, error) {
		return "", boom
	}, "users")

	got, err := First[string](context.Background(), q)
	if !errors.Is(err, boom) || got != "" {
		t.Fatalf("First = %q, %v", got, err)
	}
}

func TestSubscribeWithDoneContext(t *testing.T) {
	n := NewNotifier()
	q := NewQuery(n, func(ctx context.Context) (int, error) { return 1, nil }, "goals")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	waitClosed(t, q.Subscribe(ctx))
	if q.Subscribers() != 0 {
		t.Fatalf("subscribers = %d", q.Subscribers())
	}
}

func TestValue(t *testing.T) {
	v := NewValue("en")
	ctx, cancel := context.WithCancel(context.Background())
	ch := v.Subscribe(ctx)
	if got := recv(t, ch); got != "en" {
		t.Fatalf("initial = %q", got)
	}

	v.Set("it")
	if got := recv(t, ch); got != "it" {
		t.Fatalf("after Set = %q", got)
	}

	v.Set("de")
	v.Set("fr")
	if got := recv(t, ch); got != "fr" {
		t.Fatalf("conflated value = %q, want latest", got)
	}

	if got := v.Update(func(s string) string { return s + "-CA" }); got != "fr-CA" {
		t.Fatalf("Update = %q", got)
	}
	cancel()
	waitClosed(t, ch)
}

func TestCombineLatest(t *testing.T) {
	n := NewNotifier()
	var a, b int64 = 1, 10
	qa := NewQuery(n, func(ctx context.Context) (int64, error) { return atomic.LoadInt64(&a), nil }, "transactions")
	qb := NewQuery(n, func(ctx context.Context) (int64, error) { return atomic.LoadInt64(&b), nil }, "goals")

	ctx, cancel := context.WithCancel(context.Background())
	out := CombineLatest[int64, int64, int64](ctx, qa, qb, func(x, y int64) int64 { return x + y })

	if s := recv(t, out); s.Value != 11 {
		t.Fatalf("first = %d", s.Value)
	}

	atomic.StoreInt64(&b, 20)
	n.Notify("goals")
	if s := recv(t, out); s.Value != 21 {
		t.Fatalf("after goals change = %d", s.Value)
	}

	atomic.StoreInt64(&a, 5)
	n.Notify("transactions")
	if s := recv(t, out); s.Value != 25 {
		t.Fatalf("after transactions change = %d", s.Value)
	}

	cancel()
	waitClosed(t, out)
}

func TestCombineLatestError(t *testing.T) {
	n := NewNotifier()
	boom := errors.New("disk on fire")
	qa := NewQuery(n, func(ctx context.Context) (int, error) { return 0, boom }, "transactions")
	qb := NewQuery(n, func(ctx context.Context) (int, error) { return 1, nil }, "goals")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := CombineLatest[int, int, int](ctx, qa, qb, func(x, y int) int { return x + y })
	if s := recv(t, out); !errors.Is(s.Err, boom) {
		t.Fatalf("expected error snapshot, got %+v", s)
	}
}

func TestMap(t *testing.T) {
	n := NewNotifier()
	q := NewQuery(n, func(ctx context.Context) ([]int, error) { return []int{1, 2, 3}, nil }, "goals")
	got, err := First(context.Background(), Map[[]int, int](q, func(xs []int) int { return len(xs) }))
	if err != nil || got != 3 {
		t.Fatalf("First(Map) = %d, %v", got, err)
	}
}

func TestFirstSeesWriteWhileQueryShared(t *testing.T) {
	n := NewNotifier()
	var v int64
	q := NewQuery(n, func(ctx context.Context) (int64, error) { return atomic.LoadInt64(&v), nil }, "transactions")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	held := q.Subscribe(ctx)
	recv(t, held)

	for i := int64(1); i <= 50; i++ {
		atomic.StoreInt64(&v, i)
		n.Notify("transactions")
		got, err := First[int64](context.Background(), q)
		if err != nil || got != i {
			t.Fatalf("write %d: First = %d, %v", i, got, err)
		}
	}
}

func TestSubscribeAfterWriteGetsFreshSnapshot(t *testing.T) {
	n := NewNotifier()
	var v int64 = 1
	q := NewQuery(n, func(ctx context.Context) (int64, error) { return atomic.LoadInt64(&v), nil }, "goals")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	recv(t, q.Subscribe(ctx))

	atomic.StoreInt64(&v, 2)
	n.Notify("goals")
	if s := recv(t, q.Subscribe(ctx)); s.Value != 2 {
		t.Fatalf("late subscriber got %d, want 2", s.Value)
	}
}

func TestFirstLeavesNoRunner(t *testing.T) {
	n := NewNotifier()
	var runs int32
	q := NewQuery(n, func(ctx context.Context) (int, error) {
		atomic.AddInt32(&runs, 1)
		return 1, nil
	}, "categories")

	if _, err := First[int](context.Background(), q); err != nil {
		t.Fatal(err)
	}
	if q.Subscribers() != 0 || n.Listeners("categories") != 0 {
		t.Fatalf("subscribers = %d, listeners = %d after First", q.Subscribers(), n.Listeners("categories"))
	}
	n.Notify("categories")
	if got := atomic.LoadInt32(&runs); got != 1 {
		t.Fatalf("runs = %d, want 1: nothing should re-execute after First", got)
	}
}
