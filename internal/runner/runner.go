// Copyright Contributors to the KubeTask project

package runner

import (
	"context"
	"encoding/json"
	"fmt"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/kubernetes"

	"github.com/kubetask/flowagent/internal/manifest"
)

// jobNameLabel is the pod label key, carrying the owning Job's name,
// that the pod watch selects on. The manifest builder does not set it.
const jobNameLabel = "batch.kubernetes.io/job-name"

// Params holds everything the Runner needs to create and watch a Job.
type Params struct {
	Namespace              string
	Manifest               manifest.Manifest
	PodWatchTimeoutSeconds int64
	JobWatchTimeoutSeconds int64
}

// Result carries the identifier and terminal status of a submitted Job.
type Result struct {
	Identifier string
	Completed  bool
}

// Started is the one-shot handshake callback invoked once the Job's
// pod is observably running.
type Started func(identifier string)

// Clientset is the subset of kubernetes.Interface the Runner needs,
// narrowed so tests can substitute a fake clientset.
type Clientset = kubernetes.Interface

// Runner creates and watches Kubernetes Jobs on behalf of the agent.
type Runner struct {
	clientset Clientset
}

// New builds a Runner from an already-resolved clientset. Callers that
// need cluster-config resolution should combine this with LoadConfig
// and kubernetes.NewForConfig.
func New(clientset Clientset) *Runner {
	return &Runner{clientset: clientset}
}

// Run implements the Kubernetes Runner state machine: create, signal
// started once the pod is running, then watch until the job completes
// or a watch times out.
func (r *Runner) Run(ctx context.Context, params Params, started Started) (Result, error) {
	jobObj, err := toJob(params.Manifest)
	if err != nil {
		return Result{}, fmt.Errorf("runner: decode manifest: %w", err)
	}

	created, err := r.clientset.BatchV1().Jobs(params.Namespace).Create(ctx, jobObj, metav1.CreateOptions{})
	if err != nil {
		return Result{}, fmt.Errorf("runner: create job: %w", err)
	}

	identifier := fmt.Sprintf("%s/%s", params.Namespace, created.Name)

	running, err := r.watchPodRunning(ctx, params.Namespace, created.Name, params.PodWatchTimeoutSeconds)
	if err != nil {
		return Result{Identifier: identifier}, err
	}
	if !running {
		// The pod never reached Running before the watch drained; this
		// is a timeout, not a failure.
		return Result{Identifier: identifier}, nil
	}

	started(identifier)

	completed, err := r.watchJobCompletion(ctx, params.Namespace, created.Name, params.JobWatchTimeoutSeconds)
	return Result{Identifier: identifier, Completed: completed}, err
}

// watchPodRunning streams pods matching the job's selector until one
// reaches Running, confirming via a direct status read, or the stream
// ends (treated as a timeout, not a failure).
func (r *Runner) watchPodRunning(ctx context.Context, namespace, jobName string, timeoutSeconds int64) (bool, error) {
	timeout := timeoutSeconds
	watcher, err := r.clientset.CoreV1().Pods(namespace).Watch(ctx, metav1.ListOptions{
		LabelSelector:  fmt.Sprintf("%s=%s", jobNameLabel, jobName),
		TimeoutSeconds: &timeout,
	})
	if err != nil {
		return false, fmt.Errorf("runner: watch pods: %w", err)
	}
	defer watcher.Stop()

	for event := range watcher.ResultChan() {
		if event.Type == watch.Error {
			continue
		}
		pod, ok := event.Object.(*corev1.Pod)
		if !ok {
			continue
		}
		if pod.Status.Phase != corev1.PodRunning {
			continue
		}

		confirmed, err := r.clientset.CoreV1().Pods(namespace).Get(ctx, pod.Name, metav1.GetOptions{})
		if err != nil {
			return false, fmt.Errorf("runner: confirm pod status: %w", err)
		}
		if confirmed.Status.Phase == corev1.PodRunning {
			return true, nil
		}
	}

	return false, nil
}

// watchJobCompletion streams job events until a completion time is
// reported, or the stream ends (treated as a timeout).
func (r *Runner) watchJobCompletion(ctx context.Context, namespace, jobName string, timeoutSeconds int64) (bool, error) {
	timeout := timeoutSeconds
	watcher, err := r.clientset.BatchV1().Jobs(namespace).Watch(ctx, metav1.ListOptions{
		FieldSelector:  fmt.Sprintf("metadata.name=%s", jobName),
		TimeoutSeconds: &timeout,
	})
	if err != nil {
		return false, fmt.Errorf("runner: watch jobs: %w", err)
	}
	defer watcher.Stop()

	for event := range watcher.ResultChan() {
		if event.Type == watch.Error {
			continue
		}
		job, ok := event.Object.(*batchv1.Job)
		if !ok {
			continue
		}
		if job.Status.CompletionTime != nil {
			return true, nil
		}
	}

	return false, nil
}

// toJob decodes a generic Manifest into a typed batchv1.Job so it can
// be submitted through the typed clientset.
func toJob(m manifest.Manifest) (*batchv1.Job, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	var job batchv1.Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	return &job, nil
}
