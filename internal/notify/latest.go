package notify

import "sync"

// Latest holds the most recent value of T and fans it out to subscribers.
// The zero value is ready to use.
type Latest[T any] struct {
	mu    sync.Mutex
	value T
	set   bool
	subs  map[int]chan T
	next  int
}

// Publish stores v and delivers it to every subscriber, replacing any value
// a subscriber has not read yet.
func (l *Latest[T]) Publish(v T) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.value = v
	l.set = true
	for _, ch := range l.subs {
		offer(ch, v)
	}
}

// Get returns the current value and whether one was ever published.
func (l *Latest[T]) Get() (T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.value, l.set
}

// Subscribe returns a channel carrying the newest value and a cancel func
// that closes it. The current value, if any, is delivered immediately.
func (l *Latest[T]) Subscribe() (<-chan T, func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.subs == nil {
		l.subs = make(map[int]chan T)
	}
	id := l.next
	l.next++
	ch := make(chan T, 1)
	l.subs[id] = ch
	if l.set {
		ch <- l.value
	}
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			delete(l.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

// offer must be called with the owner's lock held.
func offer[T any](ch chan T, v T) {
	select {
	case <-ch:
	default:
	}
	ch <- v
}
