// Copyright Contributors to the KubeTask project

package infra

import (
	"context"
	"fmt"

	"k8s.io/client-go/kubernetes"

	"github.com/kubetask/flowagent/internal/manifest"
	"github.com/kubetask/flowagent/internal/runner"
)

// KubernetesJob is the nontrivial Infrastructure variant: it builds a
// Job manifest, submits it to the cluster, and watches its pod and job
// lifecycle via the Kubernetes Runner.
type KubernetesJob struct {
	Command            []string
	Image              string
	Namespace          string
	Name               string
	Labels             map[string]string
	ServiceAccountName string
	ImagePullPolicy    manifest.ImagePullPolicy
	Job                manifest.Manifest
	Customizations     []manifest.Customization

	PodWatchTimeoutSeconds int64
	JobWatchTimeoutSeconds int64

	// Clientset is resolved lazily by Run when nil, via runner.LoadConfig.
	Clientset kubernetes.Interface
}

const defaultNamespace = "default"

func (k *KubernetesJob) Type() string { return "kubernetes-job" }

// BlockData returns k's fields in the generic map shape a
// kubernetes-job block document's data carries, so it can be
// persisted and later re-resolved the same way a referenced block
// document would be.
func (k *KubernetesJob) BlockData() map[string]interface{} {
	data := map[string]interface{}{
		"image_pull_policy":         string(k.ImagePullPolicy),
		"pod_watch_timeout_seconds": k.PodWatchTimeoutSeconds,
		"job_watch_timeout_seconds": k.JobWatchTimeoutSeconds,
	}
	if k.Image != "" {
		data["image"] = k.Image
	}
	if k.Namespace != "" {
		data["namespace"] = k.Namespace
	}
	if k.Name != "" {
		data["name"] = k.Name
	}
	if k.ServiceAccountName != "" {
		data["service_account_name"] = k.ServiceAccountName
	}
	if len(k.Command) > 0 {
		cmd := make([]interface{}, len(k.Command))
		for i, c := range k.Command {
			cmd[i] = c
		}
		data["command"] = cmd
	}
	if len(k.Labels) > 0 {
		labels := make(map[string]interface{}, len(k.Labels))
		for key, v := range k.Labels {
			labels[key] = v
		}
		data["labels"] = labels
	}
	if k.Job != nil {
		data["job"] = map[string]interface{}(k.Job)
	}
	if len(k.Customizations) > 0 {
		customizations := make([]interface{}, len(k.Customizations))
		for i, c := range k.Customizations {
			customizations[i] = map[string]interface{}(c)
		}
		data["customizations"] = customizations
	}
	return data
}

// Run builds the manifest, submits it, and watches it to completion,
// reporting the started handshake once the pod is observably running.
func (k *KubernetesJob) Run(ctx context.Context, status TaskStatus) (Result, error) {
	namespace := k.Namespace
	if namespace == "" {
		namespace = defaultNamespace
	}

	m, err := manifest.Build(manifest.BuildParams{
		Command:            k.Command,
		Image:              k.Image,
		Namespace:          namespace,
		Name:               k.Name,
		Labels:             k.Labels,
		ServiceAccountName: k.ServiceAccountName,
		ImagePullPolicy:    k.ImagePullPolicy,
		Job:                k.Job,
		Customizations:     k.Customizations,
	})
	if err != nil {
		return Result{}, fmt.Errorf("kubernetes job: build manifest: %w", err)
	}

	clientset, err := k.resolveClientset()
	if err != nil {
		return Result{}, fmt.Errorf("kubernetes job: resolve cluster config: %w", err)
	}

	r := runner.New(clientset)
	result, err := r.Run(ctx, runner.Params{
		Namespace:              namespace,
		Manifest:               m,
		PodWatchTimeoutSeconds: k.PodWatchTimeoutSeconds,
		JobWatchTimeoutSeconds: k.JobWatchTimeoutSeconds,
	}, status.Started)
	if err != nil {
		return Result{}, err
	}

	infraStatus := "Incomplete"
	if result.Completed {
		infraStatus = "Completed"
	}
	return Result{Identifier: result.Identifier, Status: infraStatus}, nil
}

func (k *KubernetesJob) resolveClientset() (kubernetes.Interface, error) {
	if k.Clientset != nil {
		return k.Clientset, nil
	}
	cfg, err := runner.LoadConfig()
	if err != nil {
		return nil, err
	}
	return kubernetes.NewForConfig(cfg)
}
