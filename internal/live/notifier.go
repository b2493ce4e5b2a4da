// Package live implements re-query-on-write streams.
//
// A Notifier keeps per-table invalidation listeners. The store calls Notify
// after every committed write, and each Query registered on an affected table
// re-executes and republishes its result to its subscribers.
package live

import "sync"

// Table names a store table that queries can depend on.
type Table string

// Notifier fans table invalidations out to registered listeners.
type Notifier struct {
	mu        sync.Mutex
	nextID    int
	listeners map[Table]map[int]func()
}

func NewNotifier() *Notifier {
	return &Notifier{listeners: make(map[Table]map[int]func())}
}

// Listen registers fn for writes to any of tables and returns a function that
// removes the registration. fn must not block.
func (n *Notifier) Listen(fn func(), tables ...Table) func() {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextID
	n.nextID++
	for _, t := range tables {
		m, ok := n.listeners[t]
		if !ok {
			m = make(map[int]func())
			n.listeners[t] = m
		}
		m[id] = fn
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			for _, t := range tables {
				delete(n.listeners[t], id)
				if len(n.listeners[t]) == 0 {
					delete(n.listeners, t)
				}
			}
		})
	}
}

// Notify invokes every listener registered on any of tables exactly once.
func (n *Notifier) Notify(tables ...Table) {
	n.mu.Lock()
	seen := make(map[int]struct{})
	var fns []func()
	for _, t := range tables {
		for id, fn := range n.listeners[t] {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			fns = append(fns, fn)
		}
	}
	n.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Listeners returns how many registrations currently watch t.
func (n *Notifier) Listeners(t Table) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.listeners[t])
}
