// internal/eventbus/bus.go
package eventbus

import (
	"sync"

	"netlogd/internal/logentry"
)

// CaptureMode mirrors the verbosity argument StartObserving takes in
// spec.md §4.1. The bus itself does not filter on it — spec.md treats
// filtering as the real bus's business — but it is threaded through
// Subscribe so a concrete bus implementation could.
type CaptureMode int

const (
	CaptureModeDefault CaptureMode = iota
	CaptureModeIncludeSensitive
)

// Observer is the subset of the observer front end the bus depends
// on: something it can hand entries to from any thread.
type Observer interface {
	OnEvent(entry logentry.Entry)
}

// Bus is a minimal concrete stand-in for "the event bus that delivers
// events to the observer" — spec.md §1 explicitly scopes the real bus
// out as an external collaborator specified only by its callback
// contract. This implementation exists so the pipeline in this
// repository is runnable and testable end to end: Publish fans an
// entry out to every subscribed observer, synchronously, on the
// calling goroutine — matching spec.md §6's "called from arbitrary
// threads, possibly concurrently."
type Bus struct {
	mu        sync.RWMutex
	observers map[Observer]CaptureMode
}

func New() *Bus {
	return &Bus{observers: make(map[Observer]CaptureMode)}
}

// Subscribe registers o to receive every Publish call until
// Unsubscribe. Subscribing the same observer twice is a caller error;
// spec.md §4.1 only requires that the bus "must not be subscribed
// twice," so this overwrites the stored mode rather than erroring.
func (b *Bus) Subscribe(o Observer, mode CaptureMode) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.observers[o] = mode
}

// Unsubscribe removes o. It is synchronous with respect to any
// Publish call that has not yet started iterating — once Unsubscribe
// returns, o will receive no further OnEvent calls. This is what lets
// StopObserving guarantee no OnEvent races past its unsubscribe step.
func (b *Bus) Unsubscribe(o Observer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.observers, o)
}

// Publish delivers entry to every currently subscribed observer.
func (b *Bus) Publish(entry logentry.Entry) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for o := range b.observers {
		o.OnEvent(entry)
	}
}
