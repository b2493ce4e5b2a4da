package live

import "context"

// CombineLatest subscribes to a and b and emits fn applied to the latest value
// of each every time either one emits. The first emission waits for both
// inputs; an error from either input is emitted as is. The result channel is
// closed once ctx is done.
func CombineLatest[A, B, C any](ctx context.Context, a Stream[A], b Stream[B], fn func(A, B) C) <-chan Snapshot[C] {
	out := make(chan Snapshot[C], 1)
	ca := a.Subscribe(ctx)
	cb := b.Subscribe(ctx)

	go func() {
		defer close(out)
		var (
			la *Snapshot[A]
			lb *Snapshot[B]
		)
		for ca != nil || cb != nil {
			select {
			case s, ok := <-ca:
				if !ok {
					ca = nil
					continue
				}
				la = &s
			case s, ok := <-cb:
				if !ok {
					cb = nil
					continue
				}
				lb = &s
			}
			if ctx.Err() != nil {
				continue
			}

			var snap Snapshot[C]
			switch {
			case la != nil && la.Err != nil:
				snap.Err = la.Err
			case lb != nil && lb.Err != nil:
				snap.Err = lb.Err
			case la != nil && lb != nil:
				snap.Value = fn(la.Value, lb.Value)
			default:
				continue
			}
			offer(out, snap)
		}
	}()
	return out
}

// Map transforms every snapshot of s.
func Map[T, U any](s Stream[T], fn func(T) U) Stream[U] {
	return mapped[T, U]{src: s, fn: fn}
}

type mapped[T, U any] struct {
	src Stream[T]
	fn  func(T) U
}

func (m mapped[T, U]) read(ctx context.Context) (U, error) {
	v, err := First(ctx, m.src)
	if err != nil {
		var zero U
		return zero, err
	}
	return m.fn(v), nil
}

func (m mapped[T, U]) Subscribe(ctx context.Context) <-chan Snapshot[U] {
	out := make(chan Snapshot[U], 1)
	in := m.src.Subscribe(ctx)
	go func() {
		defer close(out)
		for s := range in {
			var u Snapshot[U]
			if s.Err != nil {
				u.Err = s.Err
			} else {
				u.Value = m.fn(s.Value)
			}
			offer(out, u)
		}
	}()
	return out
}
