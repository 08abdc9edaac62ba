package notify

import (
	"sync"
	"time"
)

// Severity classifies a notice.
type Severity string

const (
	SeverityError   Severity = "error"
	SeveritySuccess Severity = "success"
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
)

const (
	DefaultErrorTTL  = 5 * time.Second
	DefaultNoticeTTL = 3 * time.Second
)

// Notice is a transient status message. The zero Notice means nothing is
// shown.
type Notice struct {
	Message  string
	Severity Severity
	Shown    time.Time
}

// Empty reports whether n carries no message.
func (n Notice) Empty() bool { return n.Message == "" }

// Notices shows one message at a time and clears it after a delay that
// depends on its severity. A new notice replaces the old one and its timer.
type Notices struct {
	errorTTL time.Duration
	otherTTL time.Duration

	mu      sync.Mutex
	gen     uint64
	timer   *time.Timer
	current Latest[Notice]
}

// NewNotices returns a Notices using the given lifetimes. Non-positive
// values fall back to DefaultErrorTTL and DefaultNoticeTTL.
func NewNotices(errorTTL, otherTTL time.Duration) *Notices {
	if errorTTL <= 0 {
		errorTTL = DefaultErrorTTL
	}
	if otherTTL <= 0 {
		otherTTL = DefaultNoticeTTL
	}
	return &Notices{errorTTL: errorTTL, otherTTL: otherTTL}
}

// Show publishes message with the given severity.
func (n *Notices) Show(message string, severity Severity) {
	if severity == "" {
		severity = SeverityInfo
	}
	ttl := n.otherTTL
	if severity == SeverityError {
		ttl = n.errorTTL
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	n.stopLocked()
	n.gen++
	gen := n.gen
	n.current.Publish(Notice{Message: message, Severity: severity, Shown: time.Now()})
	n.timer = time.AfterFunc(ttl, func() { n.expire(gen) })
}

func (n *Notices) Error(message string)   { n.Show(message, SeverityError) }
func (n *Notices) Success(message string) { n.Show(message, SeveritySuccess) }
func (n *Notices) Info(message string)    { n.Show(message, SeverityInfo) }
func (n *Notices) Warning(message string) { n.Show(message, SeverityWarning) }

// Clear removes the current notice immediately.
func (n *Notices) Clear() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stopLocked()
	n.gen++
	n.current.Publish(Notice{})
}

// Current returns the notice on screen, if any.
func (n *Notices) Current() Notice {
	v, _ := n.current.Get()
	return v
}

// Subscribe streams notice changes, including clears.
func (n *Notices) Subscribe() (<-chan Notice, func()) {
	return n.current.Subscribe()
}

func (n *Notices) expire(gen uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if gen != n.gen {
		return
	}
	n.timer = nil
	n.current.Publish(Notice{})
}

func (n *Notices) stopLocked() {
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
}
