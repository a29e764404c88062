// Package mailertest provides an in-memory mailer.Transport for tests.
package mailertest

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/MrSnakeDoc/uptimer/internal/mailer"
)

// ErrInjected is the default failure returned for recipients marked failing.
var ErrInjected = errors.New("injected delivery failure")

// Recorder records every accepted message and can fail chosen recipients.
type Recorder struct {
	mu      sync.Mutex
	sent    []mailer.Message
	failing map[string]error
	calls   int
}

// New returns an empty recorder.
func New() *Recorder {
	return &Recorder{failing: make(map[string]error)}
}

// FailFor makes every send to recipient fail with err (ErrInjected if nil).
func (r *Recorder) FailFor(recipient string, err error) {
	if err == nil {
		err = ErrInjected
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failing[strings.ToLower(recipient)] = err
}

// Heal clears the failure for recipient.
func (r *Recorder) Heal(recipient string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.failing, strings.ToLower(recipient))
}

func (r *Recorder) Send(_ context.Context, msg mailer.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if err, ok := r.failing[strings.ToLower(msg.To)]; ok {
		return err
	}
	r.sent = append(r.sent, msg)
	return nil
}

// Sent returns a copy of the accepted messages in send order.
func (r *Recorder) Sent() []mailer.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]mailer.Message, len(r.sent))
	copy(out, r.sent)
	return out
}

// SentTo returns the accepted messages for one recipient.
func (r *Recorder) SentTo(recipient string) []mailer.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []mailer.Message
	for _, m := range r.sent {
		if strings.EqualFold(m.To, recipient) {
			out = append(out, m)
		}
	}
	return out
}

// Calls counts every Send, including failed ones.
func (r *Recorder) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// Reset forgets recorded messages and call counts.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = nil
	r.calls = 0
}
