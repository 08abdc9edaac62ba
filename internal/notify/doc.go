// Package notify holds the small shared services the console views talk
// through: a last-value-wins broadcast cell, the in-flight request counter
// behind the busy indicator, transient notices, and a single-slot
// confirmation prompt.
//
// Every type here is safe for concurrent use. Subscribers never block a
// publisher: each subscription is a one-slot channel that always holds the
// newest value, so a slow reader skips intermediate values.
package notify
