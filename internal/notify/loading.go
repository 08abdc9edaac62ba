package notify

import "sync"

// Loading counts in-flight requests. It publishes true when the first
// request begins and false when the last one ends. The zero value is ready
// to use.
type Loading struct {
	mu    sync.Mutex
	count int
	state Latest[bool]
}

// Begin records a request start.
func (l *Loading) Begin() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.count++
	if l.count == 1 {
		l.state.Publish(true)
	}
}

// End records a request finish. Extra calls are ignored.
func (l *Loading) End() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.count == 0 {
		return
	}
	l.count--
	if l.count == 0 {
		l.state.Publish(false)
	}
}

// Active reports whether any request is in flight.
func (l *Loading) Active() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count > 0
}

// InFlight returns the number of outstanding requests.
func (l *Loading) InFlight() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

// Subscribe streams busy state transitions.
func (l *Loading) Subscribe() (<-chan bool, func()) {
	return l.state.Subscribe()
}
