package circuitbreaker

import (
	"errors"
	"testing"
	"time"
)

func TestCircuitBreakerStateClosed(t *testing.T) {
	cb := New(Config{
		Name:             "test",
		FailureThreshold: 3,
		SuccessThreshold: 2,
		RecoveryTimeout:  100 * time.Millisecond,
	})

	// Should allow calls in closed state
	err := cb.Call(func() error { return nil })
	if err != nil {
		t.Errorf("Expected success, got error: %v", err)
	}

	if cb.GetState() != StateClosed {
		t.Errorf("Expected state to be Closed, got %v", cb.GetState())
	}
}

func TestCircuitBreakerOpensAfterFailures(t *testing.T) {
	cb := New(Config{
		Name:             "test",
		FailureThreshold: 3,
		SuccessThreshold: 2,
		RecoveryTimeout:  100 * time.Millisecond,
	})

	testErr := errors.New("test error")

	// Fail 3 times to open the circuit
	for i := 0; i < 3; i++ {
		err := cb.Call(func() error { return testErr })
		if err != testErr {
			t.Errorf("Expected test error, got: %v", err)
		}
	}

	if cb.GetState() != StateOpen {
		t.Errorf("Expected state to be Open, got %v", cb.GetState())
	}

	// Next call should fail immediately with circuit open error
	err := cb.Call(func() error { return nil })
	if err != ErrCircuitOpen {
		t.Errorf("Expected ErrCircuitOpen, got: %v", err)
	}
}

func TestCircuitBreakerSuccessResetsFailureCount(t *testing.T) {
	cb := New(Config{
		Name:             "test",
		FailureThreshold: 3,
		SuccessThreshold: 1,
		RecoveryTimeout:  100 * time.Millisecond,
	})

	testErr := errors.New("test error")

	// Two failures, then a success: the consecutive-failure count resets
	cb.Call(func() error { return testErr })
	cb.Call(func() error { return testErr })
	cb.Call(func() error { return nil })

	// Two more failures still should not open the circuit
	cb.Call(func() error { return testErr })
	cb.Call(func() error { return testErr })

	if cb.GetState() != StateClosed {
		t.Errorf("Expected state to be Closed, got %v", cb.GetState())
	}
}

func TestCircuitBreakerHalfOpenAfterTimeout(t *testing.T) {
	cb := New(Config{
		Name:             "test",
		FailureThreshold: 2,
		SuccessThreshold: 2,
		RecoveryTimeout:  50 * time.Millisecond,
	})

	testErr := errors.New("test error")

	// Open the circuit
	cb.Call(func() error { return testErr })
	cb.Call(func() error { return testErr })

	if cb.GetState() != StateOpen {
		t.Errorf("Expected state to be Open, got %v", cb.GetState())
	}

	// Wait for the recovery timeout
	time.Sleep(60 * time.Millisecond)

	// Should transition to half-open and allow attempt
	err := cb.Call(func() error { return nil })
	if err != nil {
		t.Errorf("Expected success in half-open state, got: %v", err)
	}
}

func TestCircuitBreakerClosesAfterSuccesses(t *testing.T) {
	cb := New(Config{
		Name:             "test",
		FailureThreshold: 2,
		SuccessThreshold: 2,
		RecoveryTimeout:  50 * time.Millisecond,
	})

	testErr := errors.New("test error")

	// Open the circuit
	cb.Call(func() error { return testErr })
	cb.Call(func() error { return testErr })

	// Wait for the recovery timeout to transition to half-open
	time.Sleep(60 * time.Millisecond)

	// Two successes should close the circuit
	cb.Call(func() error { return nil })
	cb.Call(func() error { return nil })

	if cb.GetState() != StateClosed {
		t.Errorf("Expected state to be Closed, got %v", cb.GetState())
	}
}

func TestCircuitBreakerReopensOnFailureInHalfOpen(t *testing.T) {
	cb := New(Config{
		Name:             "test",
		FailureThreshold: 2,
		SuccessThreshold: 2,
		RecoveryTimeout:  50 * time.Millisecond,
	})

	testErr := errors.New("test error")

	// Open the circuit
	cb.Call(func() error { return testErr })
	cb.Call(func() error { return testErr })

	// Wait for the recovery timeout to transition to half-open
	time.Sleep(60 * time.Millisecond)

	// Failure in half-open should reopen the circuit
	cb.Call(func() error { return testErr })

	if cb.GetState() != StateOpen {
		t.Errorf("Expected state to be Open after failure in half-open, got %v", cb.GetState())
	}

	// And the rejection window starts over
	err := cb.Call(func() error { return nil })
	if err != ErrCircuitOpen {
		t.Errorf("Expected ErrCircuitOpen immediately after reopen, got: %v", err)
	}
}

func TestCircuitBreakerSingleTrialInHalfOpen(t *testing.T) {
	cb := New(Config{
		Name:             "test",
		FailureThreshold: 1,
		SuccessThreshold: 1,
		RecoveryTimeout:  50 * time.Millisecond,
	})

	// Open the circuit
	cb.Call(func() error { return errors.New("boom") })

	time.Sleep(60 * time.Millisecond)

	// First Allow claims the half-open trial slot
	if err := cb.Allow(); err != nil {
		t.Fatalf("Expected trial call to be admitted, got: %v", err)
	}

	// A second concurrent call is rejected while the trial is in flight
	if err := cb.Allow(); err != ErrCircuitOpen {
		t.Errorf("Expected ErrCircuitOpen for second half-open call, got: %v", err)
	}

	// Trial succeeds: the circuit closes and calls flow again
	cb.RecordSuccess()
	if cb.GetState() != StateClosed {
		t.Errorf("Expected state to be Closed after trial success, got %v", cb.GetState())
	}
	if err := cb.Allow(); err != nil {
		t.Errorf("Expected call to be allowed after close, got: %v", err)
	}
	cb.RecordSuccess()
}

func TestCircuitBreakerReset(t *testing.T) {
	cb := New(Config{
		Name:             "test",
		FailureThreshold: 1,
		SuccessThreshold: 1,
		RecoveryTimeout:  time.Hour,
	})

	cb.Call(func() error { return errors.New("boom") })
	if cb.GetState() != StateOpen {
		t.Fatalf("Expected state to be Open, got %v", cb.GetState())
	}

	cb.Reset()

	if cb.GetState() != StateClosed {
		t.Errorf("Expected state to be Closed after reset, got %v", cb.GetState())
	}
	if err := cb.Call(func() error { return nil }); err != nil {
		t.Errorf("Expected success after reset, got: %v", err)
	}
}

func TestStateString(t *testing.T) {
	cases := map[State]string{
		StateClosed:   "closed",
		StateOpen:     "open",
		StateHalfOpen: "half-open",
		State(99):     "unknown",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
}
