// Copyright Contributors to the KubeTask project

// Package runner implements the Kubernetes Runner: cluster config
// resolution, job creation, and the pod/job watch state machine that
// reports a workload's lifecycle back to its caller.
package runner

import (
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// loadInClusterConfig and loadKubeConfig are package variables so tests
// can substitute a fake "not in cluster" failure and observe the
// fallback run exactly once.
var (
	loadInClusterConfig = rest.InClusterConfig
	loadKubeConfig      = func() (*rest.Config, error) {
		rules := clientcmd.NewDefaultClientConfigLoadingRules()
		overrides := &clientcmd.ConfigOverrides{}
		return clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, overrides).ClientConfig()
	}
)

// LoadConfig attempts in-cluster configuration first and falls back to
// the user's kubeconfig when the platform reports "not in cluster".
func LoadConfig() (*rest.Config, error) {
	cfg, err := loadInClusterConfig()
	if err == nil {
		return cfg, nil
	}
	if err != rest.ErrNotInCluster {
		return nil, err
	}
	return loadKubeConfig()
}
