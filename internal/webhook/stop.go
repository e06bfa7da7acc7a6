package webhook

import "sync"

// StopToken is a cooperative cancellation handle shared between the webhook
// server and whoever runs it. Stop may be called any number of times from
// any goroutine.
type StopToken struct {
	once sync.Once
	done chan struct{}
}

// NewStopToken creates an unsignalled token.
func NewStopToken() *StopToken {
	return &StopToken{done: make(chan struct{})}
}

// Stop signals the token.
func (t *StopToken) Stop() {
	t.once.Do(func() {
		close(t.done)
	})
}

// Done is closed once Stop has been called.
func (t *StopToken) Done() <-chan struct{} {
	return t.done
}
