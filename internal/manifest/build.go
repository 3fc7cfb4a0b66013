// Copyright Contributors to the KubeTask project

package manifest

import (
	"fmt"

	"github.com/kubetask/flowagent/internal/sanitize"
)

// ImagePullPolicy mirrors the Kubernetes enum, with an explicit
// "unspecified" member so the builder can omit the field entirely
// rather than emit a default.
type ImagePullPolicy string

const (
	ImagePullPolicyUnspecified  ImagePullPolicy = ""
	ImagePullPolicyIfNotPresent ImagePullPolicy = "IfNotPresent"
	ImagePullPolicyAlways       ImagePullPolicy = "Always"
	ImagePullPolicyNever        ImagePullPolicy = "Never"
)

// BuildParams holds the KubernetesJob fields the builder needs to
// produce a manifest.
type BuildParams struct {
	Command            []string
	Image              string
	Namespace          string
	Name               string
	Labels             map[string]string
	ServiceAccountName string
	ImagePullPolicy    ImagePullPolicy
	// Job is the optional user-supplied base template. When nil, the
	// built-in default template is used.
	Job Manifest
	// Customizations is the ordered RFC 6902 JSON Patch applied after
	// the agent's own fields are injected.
	Customizations []Customization
}

// Build constructs a ready-to-submit Kubernetes Job manifest from
// params. Build is a pure function: two successive calls with the
// same params produce structurally equal but distinct manifests.
func Build(params BuildParams) (Manifest, error) {
	var base Manifest
	if params.Job != nil {
		if err := Validate(params.Job); err != nil {
			return nil, err
		}
		base = deepCopy(params.Job).(Manifest)
	} else {
		base = defaultTemplate()
	}

	injectGenerateName(base, params.Name)
	injectLabels(base, params.Labels)
	injectNamespace(base, params.Namespace)
	injectServiceAccount(base, params.ServiceAccountName)
	if err := injectContainer(base, params); err != nil {
		return nil, err
	}

	return ApplyCustomizations(base, params.Customizations)
}

func injectGenerateName(manifest Manifest, name string) {
	metadata := manifest["metadata"].(map[string]interface{})
	generated := name
	if generated == "" {
		generated = "flow-run"
	}
	metadata["generateName"] = sanitize.Name(generated)
}

func injectLabels(manifest Manifest, labels map[string]string) {
	metadata := manifest["metadata"].(map[string]interface{})
	existing, _ := metadata["labels"].(map[string]interface{})
	if existing == nil {
		existing = map[string]interface{}{}
	}
	for k, v := range labels {
		existing[sanitize.LabelKey(k)] = sanitize.LabelValue(v)
	}
	metadata["labels"] = existing
}

func injectNamespace(manifest Manifest, namespace string) {
	if namespace == "" {
		return
	}
	metadata := manifest["metadata"].(map[string]interface{})
	metadata["namespace"] = namespace
}

func injectServiceAccount(manifest Manifest, serviceAccountName string) {
	if serviceAccountName == "" {
		return
	}
	podSpec := podSpec(manifest)
	podSpec["serviceAccountName"] = serviceAccountName
}

func injectContainer(manifest Manifest, params BuildParams) error {
	podSpec := podSpec(manifest)
	containers, _ := podSpec["containers"].([]interface{})

	idx := -1
	for i, c := range containers {
		cm, ok := c.(map[string]interface{})
		if !ok {
			continue
		}
		if cm["name"] == ContainerName {
			idx = i
			break
		}
	}

	var container map[string]interface{}
	if idx >= 0 {
		container = containers[idx].(map[string]interface{})
	} else {
		container = map[string]interface{}{"name": ContainerName}
		containers = append(containers, container)
		idx = len(containers) - 1
	}

	if params.Image != "" {
		container["image"] = params.Image
	}
	if len(params.Command) > 0 {
		cmd := make([]interface{}, len(params.Command))
		for i, c := range params.Command {
			cmd[i] = c
		}
		container["command"] = cmd
	}
	if params.ImagePullPolicy != ImagePullPolicyUnspecified {
		container["imagePullPolicy"] = string(params.ImagePullPolicy)
	}

	containers[idx] = container
	podSpec["containers"] = containers
	return nil
}

// podSpec returns the mutable spec.template.spec map, panicking only
// if called on a manifest that skipped validation (a programmer error,
// since Validate already guarantees this path exists).
func podSpec(manifest Manifest) map[string]interface{} {
	spec, ok := manifest["spec"].(map[string]interface{})
	if !ok {
		panic(fmt.Sprintf("manifest: spec is not a map: %T", manifest["spec"]))
	}
	template, ok := spec["template"].(map[string]interface{})
	if !ok {
		template = map[string]interface{}{}
		spec["template"] = template
	}
	podSpec, ok := template["spec"].(map[string]interface{})
	if !ok {
		podSpec = map[string]interface{}{}
		template["spec"] = podSpec
	}
	return podSpec
}
