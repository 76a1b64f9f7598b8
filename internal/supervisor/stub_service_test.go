// Feedloom - Personalized Feed Ranking and Experimentation Engine
// Copyright 2026 The Feedloom Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/feedloom/feedloom

package supervisor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

var errScriptedCrash = errors.New("scripted crash")

// stubService is a scripted suture.Service: it crashes for the first
// failures runs, then blocks until its context is canceled. A non-nil
// exitErr makes every run return that error instead.
type stubService struct {
	name string

	mu       sync.Mutex
	failLeft int
	exitErr  error
	starts   int
	stops    int
}

func newStubService(name string) *stubService {
	return &stubService{name: name}
}

func failingStub(name string, failures int) *stubService {
	return &stubService{name: name, failLeft: failures}
}

func exitingStub(name string, err error) *stubService {
	return &stubService{name: name, exitErr: err}
}

func (s *stubService) Serve(ctx context.Context) error {
	s.mu.Lock()
	s.starts++
	crash := s.failLeft > 0
	if crash {
		s.failLeft--
	}
	exitErr := s.exitErr
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.stops++
		s.mu.Unlock()
	}()

	if crash {
		return errScriptedCrash
	}
	if exitErr != nil {
		return exitErr
	}

	<-ctx.Done()
	return ctx.Err()
}

func (s *stubService) String() string { return s.name }

func (s *stubService) startCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.starts
}

func (s *stubService) stopCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stops
}

// waitUntil polls cond every 10ms and reports whether it became true
// within the timeout.
func waitUntil(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func TestStubServiceScripting(t *testing.T) {
	t.Parallel()

	var _ suture.Service = (*stubService)(nil)

	t.Run("blocks until canceled", func(t *testing.T) {
		stub := newStubService("steady")
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		if err := stub.Serve(ctx); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Serve() = %v, want deadline exceeded", err)
		}
		if stub.startCount() != 1 || stub.stopCount() != 1 {
			t.Errorf("counts = %d starts / %d stops, want 1/1", stub.startCount(), stub.stopCount())
		}
	})

	t.Run("crashes the scripted number of times", func(t *testing.T) {
		stub := failingStub("flaky", 2)

		for run := 1; run <= 2; run++ {
			if err := stub.Serve(context.Background()); !errors.Is(err, errScriptedCrash) {
				t.Fatalf("run %d: Serve() = %v, want scripted crash", run, err)
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		if err := stub.Serve(ctx); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("run 3 should block until cancel, got %v", err)
		}
		if stub.startCount() != 3 {
			t.Errorf("startCount() = %d, want 3", stub.startCount())
		}
	})

	t.Run("returns a fixed exit error", func(t *testing.T) {
		boom := errors.New("boom")
		stub := exitingStub("exiting", boom)

		if err := stub.Serve(context.Background()); !errors.Is(err, boom) {
			t.Errorf("Serve() = %v, want %v", err, boom)
		}
	})

	t.Run("names itself for supervision logs", func(t *testing.T) {
		if got := newStubService("event-pump").String(); got != "event-pump" {
			t.Errorf("String() = %q, want event-pump", got)
		}
	})
}
