package mailertest

import (
	"context"
	"errors"
	"testing"

	"github.com/MrSnakeDoc/uptimer/internal/mailer"
)

func TestRecorderFailureInjection(t *testing.T) {
	r := New()
	ctx := context.Background()

	r.FailFor("Broken@Example.com", nil)

	if err := r.Send(ctx, mailer.Message{To: "ok@example.com"}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if err := r.Send(ctx, mailer.Message{To: "broken@example.com"}); !errors.Is(err, ErrInjected) {
		t.Fatalf("Send() error = %v, want ErrInjected", err)
	}

	if got := len(r.Sent()); got != 1 {
		t.Errorf("Sent() len = %d, want 1", got)
	}
	if got := r.Calls(); got != 2 {
		t.Errorf("Calls() = %d, want 2", got)
	}

	r.Heal("broken@example.com")
	if err := r.Send(ctx, mailer.Message{To: "broken@example.com"}); err != nil {
		t.Errorf("Send() after Heal error = %v", err)
	}
	if got := len(r.SentTo("BROKEN@example.com")); got != 1 {
		t.Errorf("SentTo() len = %d, want 1", got)
	}

	r.Reset()
	if len(r.Sent()) != 0 || r.Calls() != 0 {
		t.Error("Reset() did not clear the recorder")
	}
}
