package api

import "sync"

// Usage is a snapshot of the tokens a backend has consumed.
type Usage struct {
	Input  int64
	Output int64
	Calls  int
}

// Sum returns input and output tokens combined.
func (u Usage) Sum() int64 { return u.Input + u.Output }

// TokenTracker accumulates usage for one backend. Roles that share a
// backend share its tracker, so every call is counted once per run.
type TokenTracker struct {
	mu    sync.Mutex
	usage Usage
}

// NewTokenTracker returns an empty tracker.
func NewTokenTracker() *TokenTracker {
	return &TokenTracker{}
}

// Add records the usage reported for one completed call.
func (t *TokenTracker) Add(input, output int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.usage.Input += input
	t.usage.Output += output
	t.usage.Calls++
}

// Usage returns the usage recorded so far.
func (t *TokenTracker) Usage() Usage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.usage
}

// Total returns input and output tokens recorded so far.
func (t *TokenTracker) Total() (input, output int64) {
	u := t.Usage()
	return u.Input, u.Output
}

// Calls returns the number of calls recorded.
func (t *TokenTracker) Calls() int {
	return t.Usage().Calls
}
