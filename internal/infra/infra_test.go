// Copyright Contributors to the KubeTask project

package infra

import (
	"context"
	"testing"
	"time"
)

func TestSignalAwaitReturnsOnStarted(t *testing.T) {
	s := NewSignal()
	go s.Started("identifier-1")

	identifier, err := s.Await(context.Background())
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if identifier != "identifier-1" {
		t.Errorf("identifier = %q, want identifier-1", identifier)
	}
}

func TestSignalStartedIsOneShot(t *testing.T) {
	s := NewSignal()
	s.Started("first")
	s.Started("second")

	identifier, err := s.Await(context.Background())
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if identifier != "first" {
		t.Errorf("identifier = %q, want first (second call should be a no-op)", identifier)
	}
}

func TestSignalAwaitRespectsContextCancellation(t *testing.T) {
	s := NewSignal()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := s.Await(ctx)
	if err == nil {
		t.Fatal("Await = nil error, want context deadline error")
	}
}

func TestProcessRunSignalsStartedAndWaits(t *testing.T) {
	p := &Process{Command: []string{"true"}}
	s := NewSignal()

	done := make(chan struct{})
	var result Result
	var runErr error
	go func() {
		result, runErr = p.Run(context.Background(), s)
		close(done)
	}()

	identifier, err := s.Await(context.Background())
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if identifier == "" {
		t.Error("started identifier is empty")
	}

	<-done
	if runErr != nil {
		t.Fatalf("Run: %v", runErr)
	}
	if result.Status != "Completed" {
		t.Errorf("result.Status = %q, want Completed", result.Status)
	}
}

func TestProcessTypeTag(t *testing.T) {
	p := &Process{}
	if p.Type() != "process" {
		t.Errorf("Type() = %q, want process", p.Type())
	}
}
