// Copyright Contributors to the KubeTask project

package infra

import (
	"context"
	"fmt"
	"os/exec"
)

// Process is the trivial Infrastructure variant: it runs the command
// as a local child process. It exists so the tagged variant set is
// complete, alongside the heavier KubernetesJob variant.
type Process struct {
	Command []string
}

func (p *Process) Type() string { return "process" }

// BlockData returns p's fields in the generic map shape a process
// block document's data carries.
func (p *Process) BlockData() map[string]interface{} {
	if len(p.Command) == 0 {
		return map[string]interface{}{}
	}
	cmd := make([]interface{}, len(p.Command))
	for i, c := range p.Command {
		cmd[i] = c
	}
	return map[string]interface{}{"command": cmd}
}

func (p *Process) Run(ctx context.Context, status TaskStatus) (Result, error) {
	if len(p.Command) == 0 {
		return Result{}, fmt.Errorf("process: command is required")
	}

	cmd := exec.CommandContext(ctx, p.Command[0], p.Command[1:]...)
	if err := cmd.Start(); err != nil {
		return Result{}, fmt.Errorf("process: start: %w", err)
	}

	identifier := fmt.Sprintf("pid:%d", cmd.Process.Pid)
	status.Started(identifier)

	err := cmd.Wait()
	result := Result{Identifier: identifier, Status: "Completed"}
	if err != nil {
		result.Status = "Failed"
	}
	return result, err
}
