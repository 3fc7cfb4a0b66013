// Copyright Contributors to the KubeTask project

package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/kubetask/flowagent/internal/client"
	"github.com/kubetask/flowagent/internal/infra"
	"github.com/kubetask/flowagent/internal/model"
)

// submissionFailedMessage is the fixed message a Failed state carries
// when resolving infrastructure or submitting the run raises an error.
const submissionFailedMessage = "Submission failed."

// coordinator runs the claim/resolve/submit state machine for a single
// flow run: claim it from the server, resolve its infrastructure, and
// submit it, reporting a Failed state back to the server if resolution
// or submission fails.
type coordinator struct {
	client   client.Client
	resolver *Resolver
	log      logr.Logger
}

// run executes the coordinator for one flow run to completion. The
// caller is responsible for removing the run's identifier from the
// in-flight set regardless of outcome; run itself does not touch that
// set.
func (c *coordinator) run(ctx context.Context, flowRun model.FlowRun) {
	claimed, err := c.claim(ctx, flowRun.ID)
	if err != nil {
		// Transport error while claiming: do not submit, do not report.
		c.log.Error(err, "claim failed with an unexpected error", "flow_run_id", flowRun.ID)
		return
	}
	if !claimed {
		// Aborted or lost; claim already logged the reason.
		return
	}

	infrastructure, err := c.resolver.Resolve(ctx, flowRun)
	if err != nil {
		c.reportFailure(ctx, flowRun.ID, err)
		return
	}

	if err := c.submit(ctx, flowRun.ID, infrastructure); err != nil {
		c.reportFailure(ctx, flowRun.ID, err)
	}
}

// claim proposes a Pending state for flowRunID, returning (true, nil)
// only when the server confirms the run is Pending with this agent as
// initiator. It returns (false, nil) when the server aborts the
// proposal or assigns some other state (the claim was lost to another
// agent), and (false, err) only on a transport error.
func (c *coordinator) claim(ctx context.Context, flowRunID uuid.UUID) (bool, error) {
	proposed := model.State{Type: model.StatePending}
	state, err := c.client.ProposeState(ctx, proposed, flowRunID)
	if errors.Is(err, client.ErrAbort) {
		c.log.Info("claim aborted by server", "flow_run_id", flowRunID)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !state.IsPending() {
		c.log.Info("claim lost to another agent", "flow_run_id", flowRunID, "state", state.Type)
		return false, nil
	}
	return true, nil
}

// submit runs the infrastructure as a background task and awaits only
// its started handshake, not its completion. The workload keeps
// running after submit returns; this coordinator never waits on
// runErrCh again once started fires.
func (c *coordinator) submit(ctx context.Context, flowRunID uuid.UUID, infrastructure infra.Infrastructure) error {
	sig := infra.NewSignal()
	runErrCh := make(chan error, 1)
	go func() {
		_, err := infrastructure.Run(ctx, sig)
		runErrCh <- err
	}()

	startedCh := make(chan struct{})
	awaitErrCh := make(chan error, 1)
	go func() {
		if _, err := sig.Await(ctx); err != nil {
			awaitErrCh <- err
			return
		}
		close(startedCh)
	}()

	select {
	case <-startedCh:
		return nil
	case err := <-runErrCh:
		if err != nil {
			return err
		}
		// The infrastructure finished (or failed fast) before ever
		// signalling started; treat as a submit failure either way.
		return fmt.Errorf("infrastructure exited before signalling started")
	case err := <-awaitErrCh:
		return err
	}
}

// reportFailure proposes a Failed state with the fixed submission
// message, swallowing a subsequent Abort and logging (but swallowing)
// any other error from the report itself.
func (c *coordinator) reportFailure(ctx context.Context, flowRunID uuid.UUID, cause error) {
	c.log.Error(cause, "submission failed", "flow_run_id", flowRunID)

	failed := model.State{
		Type:    model.StateFailed,
		Message: submissionFailedMessage,
		Data:    []byte(cause.Error()),
	}
	_, err := c.client.ProposeState(ctx, failed, flowRunID)
	if err == nil || errors.Is(err, client.ErrAbort) {
		return
	}
	c.log.Error(err, "failed to report submission failure", "flow_run_id", flowRunID)
}
