package notify

import (
	"context"
	"errors"
	"sync"
)

// ErrConfirmPending is returned by Ask while another confirmation is open.
var ErrConfirmPending = errors.New("a confirmation is already pending")

// Prompt is the confirmation currently awaiting an answer.
type Prompt struct {
	Text string
	Open bool
}

// Confirmer asks the operator a yes/no question and suspends the asking
// goroutine until the UI resolves it. Only one question may be open. The
// zero value is ready to use.
type Confirmer struct {
	mu      sync.Mutex
	pending chan bool
	prompt  Latest[Prompt]
}

// Ask publishes prompt and waits for Resolve or ctx cancellation.
func (c *Confirmer) Ask(ctx context.Context, prompt string) (bool, error) {
	c.mu.Lock()
	if c.pending != nil {
		c.mu.Unlock()
		return false, ErrConfirmPending
	}
	answer := make(chan bool, 1)
	c.pending = answer
	c.prompt.Publish(Prompt{Text: prompt, Open: true})
	c.mu.Unlock()

	select {
	case ok := <-answer:
		return ok, nil
	case <-ctx.Done():
		c.mu.Lock()
		if c.pending == answer {
			c.pending = nil
			c.prompt.Publish(Prompt{})
		}
		c.mu.Unlock()
		return false, ctx.Err()
	}
}

// Resolve answers the open question. It reports false when nothing was
// pending.
func (c *Confirmer) Resolve(ok bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return false
	}
	c.pending <- ok
	c.pending = nil
	c.prompt.Publish(Prompt{})
	return true
}

// Pending returns the open prompt, if any.
func (c *Confirmer) Pending() (Prompt, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, _ := c.prompt.Get()
	return p, c.pending != nil
}

// Subscribe streams prompt open and close events.
func (c *Confirmer) Subscribe() (<-chan Prompt, func()) {
	return c.prompt.Subscribe()
}
