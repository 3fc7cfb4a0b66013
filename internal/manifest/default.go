// Copyright Contributors to the KubeTask project

package manifest

// ContainerName is the name the builder assigns (or adopts) for the
// container that runs the flow, matching the original agent's
// "prefect-job" convention.
const ContainerName = "prefect-job"

// defaultTemplate returns the built-in base Job template used when no
// user-supplied template is given. Returned fresh on every call so
// callers can mutate it freely.
func defaultTemplate() Manifest {
	return Manifest{
		"apiVersion": "batch/v1",
		"kind":       "Job",
		"metadata": map[string]interface{}{
			"labels": map[string]interface{}{},
		},
		"spec": map[string]interface{}{
			"template": map[string]interface{}{
				"spec": map[string]interface{}{
					"parallelism":   int64(1),
					"completions":   int64(1),
					"restartPolicy": "Never",
					"containers": []interface{}{
						map[string]interface{}{
							"name": ContainerName,
							"env":  []interface{}{},
						},
					},
				},
			},
		},
	}
}
