// Copyright Contributors to the KubeTask project

package agent

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kubetask/flowagent/internal/client"
	"github.com/kubetask/flowagent/internal/client/fakeserver"
	"github.com/kubetask/flowagent/internal/infra"
	"github.com/kubetask/flowagent/internal/model"
)

func newTestAgent(t *testing.T, srv *fakeserver.Server, queues ...string) (*Agent, client.Client) {
	t.Helper()
	cl := client.NewHTTPClient(srv.URL())
	a, err := New(cl, Options{WorkQueues: queues, PrefetchSeconds: 10})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = a.Shutdown() })
	return a, cl
}

func TestPausedQueueIsSkipped(t *testing.T) {
	srv := fakeserver.New()
	defer srv.Close()

	queue := model.WorkQueue{ID: uuid.New(), Name: "q1", IsPaused: true}
	srv.SeedWorkQueue(queue)

	a, _ := newTestAgent(t, srv, "q1")

	runs, err := a.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("runs = %v, want none (paused queue)", runs)
	}
}

func TestDedupAcrossTicks(t *testing.T) {
	srv := fakeserver.New()
	defer srv.Close()

	queue := model.WorkQueue{ID: uuid.New(), Name: "q1"}
	srv.SeedWorkQueue(queue)

	run := model.FlowRun{ID: uuid.New(), DeploymentID: uuid.New(), ScheduledStart: time.Now()}
	srv.SeedRuns(queue.ID, []model.FlowRun{run})

	// Hold the claim call open until the second tick has run, so the
	// run is provably still in flight when dedup must kick in.
	release := make(chan struct{})
	srv.ProposeStateFunc = func(flowRunID uuid.UUID, proposed model.State) (model.State, int) {
		<-release
		return model.State{Type: model.StateFailed}, http.StatusConflict
	}

	a, _ := newTestAgent(t, srv, "q1")

	first, err := a.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick 1: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("tick 1 runs = %d, want 1", len(first))
	}

	second, err := a.Tick(context.Background())
	close(release)
	if err != nil {
		t.Fatalf("Tick 2: %v", err)
	}
	if len(second) != 0 {
		t.Errorf("tick 2 runs = %d, want 0 (already in flight)", len(second))
	}
}

func TestClaimLostDoesNotSubmitOrReportFailure(t *testing.T) {
	srv := fakeserver.New()
	defer srv.Close()

	queue := model.WorkQueue{ID: uuid.New(), Name: "q1"}
	srv.SeedWorkQueue(queue)

	run := model.FlowRun{ID: uuid.New(), DeploymentID: uuid.New(), ScheduledStart: time.Now()}
	srv.SeedRuns(queue.ID, []model.FlowRun{run})

	// Only the claim is answered with Running; any later proposal is
	// recorded as proposed, so a Failed report would be visible below.
	srv.ProposeStateFunc = func(flowRunID uuid.UUID, proposed model.State) (model.State, int) {
		if proposed.Type == model.StatePending {
			return model.State{Type: model.StateRunning}, http.StatusOK
		}
		return proposed, http.StatusOK
	}

	a, _ := newTestAgent(t, srv, "q1")

	if _, err := a.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	waitForInFlightClear(t, a, run.ID)

	state, ok := srv.StateFor(run.ID)
	if !ok {
		t.Fatal("expected the claim's own proposed state to be recorded")
	}
	if state.Type == model.StateFailed {
		t.Error("coordinator should not report Failed on a lost claim")
	}
}

func TestSubmitFailurePathReportsExactMessage(t *testing.T) {
	srv := fakeserver.New()
	defer srv.Close()

	queue := model.WorkQueue{ID: uuid.New(), Name: "q1"}
	srv.SeedWorkQueue(queue)

	run := model.FlowRun{ID: uuid.New(), DeploymentID: uuid.New(), ScheduledStart: time.Now()}
	srv.SeedRuns(queue.ID, []model.FlowRun{run})

	// Claim succeeds (Pending); resolving infrastructure then fails
	// because no deployment was seeded for run.DeploymentID.
	claims := 0
	srv.ProposeStateFunc = func(flowRunID uuid.UUID, proposed model.State) (model.State, int) {
		if proposed.Type == model.StatePending {
			claims++
			return model.State{Type: model.StatePending}, http.StatusOK
		}
		return proposed, http.StatusOK
	}

	a, _ := newTestAgent(t, srv, "q1")

	if _, err := a.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	waitForInFlightClear(t, a, run.ID)

	state, ok := srv.StateFor(run.ID)
	if !ok {
		t.Fatal("expected a state to be recorded for the run")
	}
	if state.Type != model.StateFailed {
		t.Fatalf("state.Type = %v, want Failed", state.Type)
	}
	if state.Message != submissionFailedMessage {
		t.Errorf("message = %q, want %q", state.Message, submissionFailedMessage)
	}
}

func TestTickFailsWhenNotStarted(t *testing.T) {
	srv := fakeserver.New()
	defer srv.Close()

	cl := client.NewHTTPClient(srv.URL())
	a, err := New(cl, Options{WorkQueues: []string{"q1"}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := a.Tick(context.Background()); err != ErrNotStarted {
		t.Errorf("Tick error = %v, want ErrNotStarted", err)
	}
}

func TestNewRejectsBothDefaultInfrastructureForms(t *testing.T) {
	srv := fakeserver.New()
	defer srv.Close()

	docID := uuid.New()
	cl := client.NewHTTPClient(srv.URL())
	_, err := New(cl, Options{
		WorkQueues:                      []string{"q1"},
		DefaultInfrastructure:           &infra.Process{Command: []string{"true"}},
		DefaultInfrastructureDocumentID: &docID,
	})
	if err == nil {
		t.Fatal("expected an error when both default infrastructure forms are supplied")
	}
}

func TestStartPersistsInlineDefaultInfrastructureAsAnonymousBlock(t *testing.T) {
	srv := fakeserver.New()
	defer srv.Close()

	cl := client.NewHTTPClient(srv.URL())
	a, err := New(cl, Options{
		WorkQueues:            []string{"q1"},
		DefaultInfrastructure: &infra.Process{Command: []string{"true"}},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = a.Shutdown() })

	if a.resolver.DefaultInfrastructureDocumentID == nil {
		t.Fatal("expected Start to populate the resolver's default infrastructure document id")
	}

	block, err := cl.ReadBlockDocument(context.Background(), *a.resolver.DefaultInfrastructureDocumentID)
	if err != nil {
		t.Fatalf("ReadBlockDocument: %v", err)
	}
	if block.BlockType != "process" {
		t.Errorf("block.BlockType = %q, want %q", block.BlockType, "process")
	}
}

func waitForInFlightClear(t *testing.T, a *Agent, id uuid.UUID) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		a.mu.Lock()
		_, inFlight := a.inFlight[id]
		a.mu.Unlock()
		if !inFlight {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("run %s still in flight after deadline", id)
}
