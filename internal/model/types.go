// Copyright Contributors to the KubeTask project

// Package model holds the data types read from and proposed to the
// orchestration server: flow runs, work queues, deployments, and the
// block documents that describe infrastructure.
package model

import (
	"time"

	"github.com/google/uuid"
)

// StateType is the lifecycle state of a FlowRun as tracked by the
// orchestration server.
type StateType string

const (
	StateScheduled StateType = "SCHEDULED"
	StatePending   StateType = "PENDING"
	StateRunning   StateType = "RUNNING"
	StateFailed    StateType = "FAILED"
	StateCompleted StateType = "COMPLETED"
	StateCancelled StateType = "CANCELLED"
)

// State is a single state transition, proposed by the agent or returned
// by the server in response to a proposal.
type State struct {
	Type    StateType
	Message string
	// Data carries an opaque, server-accepted payload describing the
	// state (for example a serialized exception for a Failed state).
	Data []byte
}

// IsPending reports whether the state is StatePending.
func (s State) IsPending() bool {
	return s.Type == StatePending
}

// FlowRun is a single scheduled execution of a workflow. It is
// immutable from the agent's perspective except via server-side state
// proposals.
type FlowRun struct {
	ID             uuid.UUID
	State          State
	DeploymentID   uuid.UUID
	ScheduledStart time.Time
}

// WorkQueue is a named bucket the server uses to route runs to agents.
type WorkQueue struct {
	ID       uuid.UUID
	Name     string
	IsPaused bool
}

// Deployment binds a workflow to an infrastructure document and
// per-deployment overrides.
type Deployment struct {
	ID                       uuid.UUID
	InfrastructureDocumentID *uuid.UUID
	// InfraOverrides maps a dot-delimited attribute path to its
	// replacement value.
	InfraOverrides map[string]interface{}
}

// BlockDocument is a self-describing persisted configuration object
// reconstructible into a typed infrastructure instance.
type BlockDocument struct {
	ID        uuid.UUID
	BlockType string
	Data      map[string]interface{}
}
