// Copyright Contributors to the KubeTask project

// Package infra implements the tagged Infrastructure variants flow
// runs submit to. Each variant's Run delegates real submission work
// elsewhere (a child process, a Kubernetes runner) and reports back
// through a one-shot TaskStatus handshake once the workload is
// observably running.
package infra

import "context"

// Result carries the identifier and terminal status of a submitted
// workload.
type Result struct {
	Identifier string
	Status     string
}

// TaskStatus is the one-shot started-handshake an Infrastructure
// reports through. Run must call Started at most once, as soon as the
// workload is observably running; the caller awaits only this signal,
// not completion of Run.
type TaskStatus interface {
	Started(identifier string)
}

// Infrastructure is the tagged variant submission dispatches to. Type
// identifies the concrete kind for logging and for the resolver's
// reconstruction step. BlockData returns the variant's fields in the
// same generic map shape a block document stores them in, so an
// inline variant can be persisted and later re-resolved like any other
// block document.
type Infrastructure interface {
	Type() string
	BlockData() map[string]interface{}
	Run(ctx context.Context, status TaskStatus) (Result, error)
}

// signal is the default TaskStatus implementation: a single-use
// channel carrying the started identifier.
type signal struct {
	ch   chan string
	sent chan struct{}
}

// NewSignal creates a TaskStatus whose handshake can be awaited with
// Await.
func NewSignal() *signal {
	return &signal{
		ch:   make(chan string, 1),
		sent: make(chan struct{}),
	}
}

// Started implements TaskStatus. Calls after the first are no-ops: the
// handshake is one-shot by contract.
func (s *signal) Started(identifier string) {
	select {
	case <-s.sent:
		return
	default:
	}
	close(s.sent)
	s.ch <- identifier
}

// Await blocks until Started is called or ctx is cancelled, whichever
// comes first. It does not wait for Run to return.
func (s *signal) Await(ctx context.Context) (string, error) {
	select {
	case identifier := <-s.ch:
		return identifier, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
