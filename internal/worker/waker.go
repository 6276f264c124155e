package worker

import "sync"

// Waker broadcasts "something changed" to every idle worker.
type Waker struct {
	mu sync.Mutex
	ch chan struct{}
}

// NewWaker returns a ready Waker.
func NewWaker() *Waker {
	return &Waker{ch: make(chan struct{})}
}

// Wake releases every worker currently waiting on C.
func (w *Waker) Wake() {
	if w == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	close(w.ch)
	w.ch = make(chan struct{})
}

// C returns a channel closed by the next Wake. A nil Waker never fires.
func (w *Waker) C() <-chan struct{} {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ch
}
