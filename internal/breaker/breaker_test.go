package breaker

import (
	"errors"
	"testing"

	gobreaker "github.com/sony/gobreaker"
)

func TestBreaker_TripsAfterThreeConsecutiveFailures(t *testing.T) {
	b := New("test-source")
	failing := func() (interface{}, error) { return nil, errors.New("boom") }

	for i := 0; i < 3; i++ {
		if _, err := b.Execute(failing); err == nil {
			t.Fatalf("call %d: expected the injected failure to propagate", i)
		}
	}

	if b.State() != gobreaker.StateOpen {
		t.Fatalf("expected breaker to be open after 3 consecutive failures, got %v", b.State())
	}

	_, err := b.Execute(func() (interface{}, error) { return "ok", nil })
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("expected ErrOpenState while tripped, got %v", err)
	}
}

func TestBreaker_StaysClosedOnSuccess(t *testing.T) {
	b := New("healthy-source")
	for i := 0; i < 5; i++ {
		if _, err := b.Execute(func() (interface{}, error) { return "ok", nil }); err != nil {
			t.Fatalf("call %d: unexpected error: %v", i, err)
		}
	}
	if b.State() != gobreaker.StateClosed {
		t.Errorf("expected breaker to remain closed, got %v", b.State())
	}
}
