// Copyright Contributors to the KubeTask project

// Package log sets up structured logging the same way
// cmd/kubeopencode/server.go configures the controller-runtime logger,
// so every flowagent component logs through the same logr.Logger tree.
package log

import (
	"github.com/go-logr/logr"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
)

// Options controls the base logger's verbosity.
type Options struct {
	Development bool
}

// Setup installs the process-wide logger and returns the root logger.
func Setup(opts Options) logr.Logger {
	zapOpts := zap.Options{
		Development: opts.Development,
	}
	ctrl.SetLogger(zap.New(zap.UseFlagOptions(&zapOpts)))
	return ctrl.Log
}

// Named returns a child logger scoped to the given component name.
func Named(name string) logr.Logger {
	return ctrl.Log.WithName(name)
}
