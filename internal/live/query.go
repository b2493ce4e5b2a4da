package live

import (
	"context"
	"sync"
)

// Snapshot is one emission of a stream: a value or the error that replaced it.
type Snapshot[T any] struct {
	Value T
	Err   error
}

// Stream is a push-based source of snapshots. The returned channel is closed
// once ctx is done; it holds at most one pending snapshot, and a slow reader
// only ever sees the latest one.
type Stream[T any] interface {
	Subscribe(ctx context.Context) <-chan Snapshot[T]
}

// Query is a shared live query.
//
// The first subscriber starts a runner that executes fn and re-executes it on
// every notification for the query's tables. Later subscribers receive the
// cached snapshot without re-running fn. When the last subscriber leaves the
// runner stops and the cache is dropped, so the next subscription starts over.
type Query[T any] struct {
	notifier *Notifier
	tables   []Table
	fn       func(ctx context.Context) (T, error)

	mu   sync.Mutex
	subs map[chan Snapshot[T]]struct{}
	// latest is the snapshot of the current version; nil once a write has
	// invalidated it and the runner has not re-executed yet.
	latest  *Snapshot[T]
	version uint64
	stop    context.CancelFunc
}

var _ Stream[int] = (*Query[int])(nil)

func NewQuery[T any](n *Notifier, fn func(ctx context.Context) (T, error), tables ...Table) *Query[T] {
	return &Query[T]{
		notifier: n,
		tables:   tables,
		fn:       fn,
		subs:     make(map[chan Snapshot[T]]struct{}),
	}
}

func (q *Query[T]) Subscribe(ctx context.Context) <-chan Snapshot[T] {
	ch := make(chan Snapshot[T], 1)

	q.mu.Lock()
	if ctx.Err() != nil {
		q.mu.Unlock()
		close(ch)
		return ch
	}
	q.subs[ch] = struct{}{}
	if q.latest != nil {
		offer(ch, *q.latest)
	}
	if q.stop == nil {
		q.start()
	}
	q.mu.Unlock()

	go func() {
		<-ctx.Done()
		q.unsubscribe(ch)
	}()
	return ch
}

// Subscribers returns the number of active subscriptions.
func (q *Query[T]) Subscribers() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.subs)
}

// start must be called with q.mu held.
func (q *Query[T]) start() {
	ctx, cancel := context.WithCancel(context.Background())
	q.stop = cancel

	dirty := make(chan struct{}, 1)
	dirty <- struct{}{}
	unlisten := q.notifier.Listen(func() {
		q.mu.Lock()
		// a stopped runner's listener must not invalidate its successor
		if ctx.Err() == nil {
			q.version++
			q.latest = nil
		}
		q.mu.Unlock()
		select {
		case dirty <- struct{}{}:
		default:
		}
	}, q.tables...)

	go func() {
		defer unlisten()
		for {
			select {
			case <-ctx.Done():
				return
			case <-dirty:
			}
			q.mu.Lock()
			version := q.version
			q.mu.Unlock()

			v, err := q.fn(ctx)
			q.publish(ctx, version, Snapshot[T]{Value: v, Err: err})
		}
	}()
}

// publish stores s as current and hands it to every subscriber, unless the
// runner was stopped or a write landed while s was being computed; in the
// latter case dirty is already set and a fresh execution follows.
func (q *Query[T]) publish(ctx context.Context, version uint64, s Snapshot[T]) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if ctx.Err() != nil || q.version != version {
		return
	}
	q.latest = &s
	for ch := range q.subs {
		offer(ch, s)
	}
}

// read returns the current snapshot without subscribing: the cached one when
// it is still valid, otherwise a direct execution of fn.
func (q *Query[T]) read(ctx context.Context) (T, error) {
	q.mu.Lock()
	latest := q.latest
	q.mu.Unlock()
	if latest != nil {
		return latest.Value, latest.Err
	}
	return q.fn(ctx)
}

func (q *Query[T]) unsubscribe(ch chan Snapshot[T]) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.subs[ch]; !ok {
		return
	}
	delete(q.subs, ch)
	close(ch)
	if len(q.subs) == 0 && q.stop != nil {
		q.stop()
		q.stop = nil
		q.latest = nil
	}
}

// offer replaces whatever is pending on ch with v. Callers must be the only
// sender on ch.
func offer[V any](ch chan V, v V) {
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
}

// reader is implemented by streams that can produce their current value
// without holding a subscription open.
type reader[T any] interface {
	read(ctx context.Context) (T, error)
}

// First returns the current value of s. Queries are read directly, so no
// runner outlives the call; other streams are subscribed to until their
// first snapshot arrives.
func First[T any](ctx context.Context, s Stream[T]) (T, error) {
	if r, ok := s.(reader[T]); ok {
		return r.read(ctx)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var zero T
	select {
	case snap, ok := <-s.Subscribe(ctx):
		if !ok {
			return zero, ctx.Err()
		}
		return snap.Value, snap.Err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
