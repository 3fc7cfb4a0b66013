// Copyright Contributors to the KubeTask project

package client

import "errors"

// ErrNotFound is returned by read operations when the requested object
// (work queue, deployment, block document) does not exist.
var ErrNotFound = errors.New("client: object not found")

// ErrAbort is returned by ProposeState when the server explicitly
// refuses a state transition, for example because another agent
// already claimed the run.
var ErrAbort = errors.New("client: state proposal aborted by server")
