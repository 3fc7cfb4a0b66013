// Copyright Contributors to the KubeTask project

package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/kubetask/flowagent/internal/client"
	"github.com/kubetask/flowagent/internal/infra"
	"github.com/kubetask/flowagent/internal/manifest"
	"github.com/kubetask/flowagent/internal/model"
)

// Resolver turns a flow run's deployment into a concrete Infrastructure
// instance: it reads the deployment, fetches the infrastructure block
// document it names (or the agent's default), applies the
// deployment's per-run overrides, and reconstructs the tagged
// Infrastructure variant the block describes.
type Resolver struct {
	Client                          client.Client
	DefaultInfrastructureDocumentID *uuid.UUID
	// DefaultNamespace and DefaultImagePullPolicy fill in a
	// KubernetesJob variant's blank fields from agent-wide
	// configuration rather than a hardcoded value.
	DefaultNamespace       string
	DefaultImagePullPolicy manifest.ImagePullPolicy
}

// Resolve reads run's deployment, falls back to the agent's default
// infrastructure document when the deployment names none, applies the
// deployment's per-run overrides to the block document's data, and
// reconstructs the resulting Infrastructure variant.
func (r *Resolver) Resolve(ctx context.Context, run model.FlowRun) (infra.Infrastructure, error) {
	deployment, err := r.Client.ReadDeployment(ctx, run.DeploymentID)
	if err != nil {
		return nil, fmt.Errorf("resolver: read deployment: %w", err)
	}

	docID := deployment.InfrastructureDocumentID
	if docID == nil {
		docID = r.DefaultInfrastructureDocumentID
	}
	if docID == nil {
		return nil, fmt.Errorf("resolver: no infrastructure document configured for deployment %s", deployment.ID)
	}

	block, err := r.Client.ReadBlockDocument(ctx, *docID)
	if err != nil {
		return nil, fmt.Errorf("resolver: read block document: %w", err)
	}

	data, err := applyOverrides(block.Data, deployment.InfraOverrides)
	if err != nil {
		return nil, fmt.Errorf("resolver: apply overrides: %w", err)
	}
	block.Data = data

	infrastructure, err := buildInfrastructure(block)
	if err != nil {
		return nil, err
	}
	if job, ok := infrastructure.(*infra.KubernetesJob); ok {
		if job.Namespace == "" {
			job.Namespace = r.DefaultNamespace
		}
		if job.ImagePullPolicy == "" {
			job.ImagePullPolicy = r.DefaultImagePullPolicy
		}
	}
	return infrastructure, nil
}

// applyOverrides applies dot-path overrides to a copy of data: each
// override's path is split on "." and descended through all but its
// last segment, then the value is set at the final segment. A missing
// intermediate segment is a caller error, never silently created.
func applyOverrides(data map[string]interface{}, overrides map[string]interface{}) (map[string]interface{}, error) {
	if len(overrides) == 0 {
		return data, nil
	}

	cloned := manifest.DeepCopy(data).(map[string]interface{})

	for path, value := range overrides {
		segments := strings.Split(path, ".")
		current := cloned
		for _, seg := range segments[:len(segments)-1] {
			next, ok := current[seg]
			if !ok {
				return nil, fmt.Errorf("override path %q: missing intermediate segment %q", path, seg)
			}
			nextMap, ok := next.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("override path %q: segment %q is not a mapping", path, seg)
			}
			current = nextMap
		}
		current[segments[len(segments)-1]] = value
	}

	return cloned, nil
}

// buildInfrastructure dispatches on the block document's type tag to
// construct the concrete Infrastructure variant it describes.
func buildInfrastructure(block model.BlockDocument) (infra.Infrastructure, error) {
	switch block.BlockType {
	case "kubernetes-job":
		return kubernetesJobFromData(block.Data)
	case "process":
		return processFromData(block.Data)
	default:
		return nil, fmt.Errorf("resolver: unknown infrastructure block type %q", block.BlockType)
	}
}

func processFromData(data map[string]interface{}) (*infra.Process, error) {
	command, err := stringSlice(data, "command")
	if err != nil {
		return nil, err
	}
	return &infra.Process{Command: command}, nil
}

func kubernetesJobFromData(data map[string]interface{}) (*infra.KubernetesJob, error) {
	command, _ := stringSlice(data, "command")
	labels, _ := stringMap(data, "labels")

	job := &infra.KubernetesJob{
		Command:                command,
		Image:                  stringField(data, "image"),
		Namespace:              stringField(data, "namespace"),
		Name:                   stringField(data, "name"),
		Labels:                 labels,
		ServiceAccountName:     stringField(data, "service_account_name"),
		ImagePullPolicy:        manifest.ImagePullPolicy(stringField(data, "image_pull_policy")),
		PodWatchTimeoutSeconds: int64Field(data, "pod_watch_timeout_seconds"),
		JobWatchTimeoutSeconds: int64Field(data, "job_watch_timeout_seconds"),
	}

	if rawJob, ok := data["job"].(map[string]interface{}); ok {
		job.Job = manifest.Manifest(rawJob)
	}
	if rawCustomizations, ok := data["customizations"].([]interface{}); ok {
		for _, c := range rawCustomizations {
			if cm, ok := c.(map[string]interface{}); ok {
				job.Customizations = append(job.Customizations, manifest.Customization(cm))
			}
		}
	}

	return job, nil
}

func stringField(data map[string]interface{}, key string) string {
	s, _ := data[key].(string)
	return s
}

func int64Field(data map[string]interface{}, key string) int64 {
	switch v := data[key].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	case int:
		return int64(v)
	default:
		return 0
	}
}

func stringSlice(data map[string]interface{}, key string) ([]string, error) {
	raw, ok := data[key]
	if !ok {
		return nil, nil
	}
	items, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("field %q is not a list", key)
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("field %q contains a non-string element", key)
		}
		out = append(out, s)
	}
	return out, nil
}

func stringMap(data map[string]interface{}, key string) (map[string]string, error) {
	raw, ok := data[key]
	if !ok {
		return nil, nil
	}
	items, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("field %q is not a mapping", key)
	}
	out := make(map[string]string, len(items))
	for k, v := range items {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("field %q.%q is not a string", key, k)
		}
		out[k] = s
	}
	return out, nil
}
