// Copyright Contributors to the KubeTask project

// Package client defines the stable contract the agent consumes from
// the orchestration server, independent of transport.
package client

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kubetask/flowagent/internal/model"
)

// Client is the orchestration server API surface the agent depends on.
// Any transport (HTTP, in-process fake) can implement it.
type Client interface {
	// ReadWorkQueueByName returns the named queue, or ErrNotFound if it
	// does not exist.
	ReadWorkQueueByName(ctx context.Context, name string) (model.WorkQueue, error)
	// CreateWorkQueue creates a new queue with the given name.
	CreateWorkQueue(ctx context.Context, name string) (model.WorkQueue, error)
	// GetRunsInWorkQueue returns up to limit runs from the named queue
	// scheduled at or before scheduledBefore, or ErrNotFound if the
	// queue does not exist.
	GetRunsInWorkQueue(ctx context.Context, id uuid.UUID, limit int, scheduledBefore time.Time) ([]model.FlowRun, error)
	// ReadDeployment returns the deployment record for id.
	ReadDeployment(ctx context.Context, id uuid.UUID) (model.Deployment, error)
	// ReadBlockDocument returns the block document for id.
	ReadBlockDocument(ctx context.Context, id uuid.UUID) (model.BlockDocument, error)
	// CreateBlockDocument persists data under blockType as a new,
	// unnamed block document and returns it with its assigned id. Used
	// to save an inline default infrastructure object the agent was
	// configured with directly, rather than by document reference.
	CreateBlockDocument(ctx context.Context, blockType string, data map[string]interface{}) (model.BlockDocument, error)
	// ProposeState asks the server to transition flowRunID to state,
	// returning the state the server actually assigned, or ErrAbort if
	// the server refuses the transition outright.
	ProposeState(ctx context.Context, state model.State, flowRunID uuid.UUID) (model.State, error)
	// Close releases any resources held by the client.
	Close() error
}
