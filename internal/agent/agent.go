// Copyright Contributors to the KubeTask project

package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/kubetask/flowagent/internal/client"
	"github.com/kubetask/flowagent/internal/infra"
	"github.com/kubetask/flowagent/internal/manifest"
	"github.com/kubetask/flowagent/internal/model"
)

// runsPerQueue is the maximum number of runs requested per queue per
// tick.
const runsPerQueue = 10

// Options configures an Agent's work queues and submission defaults.
//
// DefaultInfrastructure and DefaultInfrastructureDocumentID are
// mutually exclusive: supplying both is a programmer error rejected by
// New. Supplying DefaultInfrastructure persists it as a new anonymous
// block document on Start, and the resolver uses the resulting id as
// its default infrastructure document from then on.
type Options struct {
	WorkQueues                      []string
	PrefetchSeconds                 int
	DefaultInfrastructure           infra.Infrastructure
	DefaultInfrastructureDocumentID *uuid.UUID
	DefaultNamespace                string
	DefaultImagePullPolicy          manifest.ImagePullPolicy
	Log                             logr.Logger
}

// Agent polls a fixed set of work queues on each Tick and hands due
// runs off to a Submission Coordinator. Exactly one goroutine calls
// Tick at a time by convention of the external ticker; the in-flight
// set is also mutated from the coordinator goroutines the Agent itself
// spawns, so the mutex here guards it (and the lifecycle fields)
// against those goroutines rather than against Tick itself. The queue
// cache carries its own lock.
type Agent struct {
	client                client.Client
	resolver              *Resolver
	cache                 *queueCache
	prefetchSeconds       int
	defaultInfrastructure infra.Infrastructure
	log                   logr.Logger

	mu       sync.Mutex
	started  bool
	inFlight map[uuid.UUID]struct{}
	wg       sync.WaitGroup
	agentCtx context.Context
	cancel   context.CancelFunc
}

// New constructs an Agent. Start must be called before Tick. It
// rejects opts that supply both DefaultInfrastructure and
// DefaultInfrastructureDocumentID: exactly one default, if any, may be
// configured.
func New(cl client.Client, opts Options) (*Agent, error) {
	if opts.DefaultInfrastructure != nil && opts.DefaultInfrastructureDocumentID != nil {
		return nil, fmt.Errorf("agent: provide only one of DefaultInfrastructure and DefaultInfrastructureDocumentID")
	}

	log := opts.Log
	if log.GetSink() == nil {
		log = logr.Discard()
	}
	return &Agent{
		client: cl,
		resolver: &Resolver{
			Client:                          cl,
			DefaultInfrastructureDocumentID: opts.DefaultInfrastructureDocumentID,
			DefaultNamespace:                opts.DefaultNamespace,
			DefaultImagePullPolicy:          opts.DefaultImagePullPolicy,
		},
		cache:                 newQueueCache(opts.WorkQueues),
		prefetchSeconds:       opts.PrefetchSeconds,
		defaultInfrastructure: opts.DefaultInfrastructure,
		log:                   log,
		inFlight:              make(map[uuid.UUID]struct{}),
	}, nil
}

// Start marks the agent started and opens its background task group,
// deriving a long-lived context from ctx that outlives any single
// Tick. If the agent was configured with an inline default
// infrastructure object rather than a document id, Start persists it
// as a new anonymous block document and remembers the resulting id for
// the resolver to use. Idempotent: a second call is a no-op, even if
// the first has not finished persisting a default infrastructure.
func (a *Agent) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return nil
	}
	a.started = true
	a.mu.Unlock()

	if a.defaultInfrastructure != nil {
		block, err := a.client.CreateBlockDocument(ctx, a.defaultInfrastructure.Type(), a.defaultInfrastructure.BlockData())
		if err != nil {
			a.mu.Lock()
			a.started = false
			a.mu.Unlock()
			return fmt.Errorf("agent: persist default infrastructure: %w", err)
		}
		a.resolver.DefaultInfrastructureDocumentID = &block.ID
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	agentCtx, cancel := context.WithCancel(ctx)
	a.agentCtx = agentCtx
	a.cancel = cancel
	return nil
}

// Shutdown cancels the task group, waits for all in-flight coordinators
// to observe cancellation and exit, then closes the client and resets
// state. Idempotent.
func (a *Agent) Shutdown() error {
	a.mu.Lock()
	if !a.started {
		a.mu.Unlock()
		return nil
	}
	cancel := a.cancel
	a.started = false
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	a.wg.Wait()

	a.mu.Lock()
	a.inFlight = make(map[uuid.UUID]struct{})
	a.cache = newQueueCache(a.cache.names)
	a.mu.Unlock()

	return a.client.Close()
}

// ErrNotStarted is returned by Tick when the agent's task group has not
// been started.
var ErrNotStarted = fmt.Errorf("agent: not started")

// Tick fetches due runs from each configured queue and spawns a
// Submission Coordinator for every run not already in flight. Returns
// the runs considered submittable this tick, for observability and
// tests.
func (a *Agent) Tick(ctx context.Context) ([]model.FlowRun, error) {
	a.mu.Lock()
	started := a.started
	a.mu.Unlock()
	if !started {
		return nil, ErrNotStarted
	}

	prefetch := a.prefetchSeconds
	if prefetch <= 0 {
		prefetch = 10
	}
	before := time.Now().Add(time.Duration(prefetch) * time.Second)

	var submittable []model.FlowRun

	for _, queue := range a.cache.get(ctx, a.client, a.log) {
		if queue.IsPaused {
			a.log.Info("skipping paused queue", "queue", queue.Name)
			continue
		}

		runs, err := a.client.GetRunsInWorkQueue(ctx, queue.ID, runsPerQueue, before)
		if err != nil {
			// A failing queue must not abort the rest of the tick.
			a.log.Info("skipping queue this tick", "queue", queue.Name, "error", err.Error())
			continue
		}

		for _, run := range runs {
			if a.markInFlight(run.ID) {
				submittable = append(submittable, run)
				a.spawn(run)
			}
		}
	}

	return submittable, nil
}

// markInFlight adds id to the in-flight set if absent, reporting
// whether it was newly added. Used to deduplicate a run already being
// submitted against a later tick that fetches it again.
func (a *Agent) markInFlight(id uuid.UUID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.inFlight[id]; exists {
		return false
	}
	a.inFlight[id] = struct{}{}
	return true
}

// clearInFlight removes id from the in-flight set unconditionally,
// regardless of how the coordinator handling it exited.
func (a *Agent) clearInFlight(id uuid.UUID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.inFlight, id)
}

// spawn runs a Submission Coordinator for run on the agent's task
// group. It uses the agent's own lifecycle context, not the calling
// tick's context, so the coordinator keeps running past the tick that
// spawned it and only observes cancellation from Shutdown.
func (a *Agent) spawn(run model.FlowRun) {
	a.mu.Lock()
	ctx := a.agentCtx
	a.mu.Unlock()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer a.clearInFlight(run.ID)

		coord := &coordinator{client: a.client, resolver: a.resolver, log: a.log}
		coord.run(ctx, run)
	}()
}
