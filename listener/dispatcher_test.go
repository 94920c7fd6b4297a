package listener

import (
	"context"
	"errors"
	"testing"
)

func TestSingleHandlerMatchesAnySubject(t *testing.T) {
	h := func(ctx context.Context, msg Notification) (bool, error) { return true, nil }
	d := SingleHandler(h)

	if err := d.validate(); err != nil {
		t.Fatalf("validate() returned error: %v", err)
	}

	for _, subject := range []string{"Test Message", "anything", ""} {
		if _, err := d.handler(subject); err != nil {
			t.Errorf("handler(%q) returned error: %v", subject, err)
		}
	}
}

func TestSubjectRouter(t *testing.T) {
	h := func(ctx context.Context, msg Notification) (bool, error) { return true, nil }
	d := SubjectRouter(map[string]Handler{"Test Message": h})

	if err := d.validate(); err != nil {
		t.Fatalf("validate() returned error: %v", err)
	}

	if _, err := d.handler("Test Message"); err != nil {
		t.Errorf("handler() returned error for a registered subject: %v", err)
	}

	_, err := d.handler("Unknown Subject")
	if !errors.Is(err, ErrUnhandledSubject) {
		t.Errorf("handler() = %v, want ErrUnhandledSubject", err)
	}
}

func TestEmptyDispatcherFailsValidation(t *testing.T) {
	if err := (Dispatcher{}).validate(); err == nil {
		t.Error("validate() succeeded for an empty dispatcher, want error")
	}

	if err := SubjectRouter(nil).validate(); err == nil {
		t.Error("validate() succeeded for a nil routing table, want error")
	}
}
