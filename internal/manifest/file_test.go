// Copyright Contributors to the KubeTask project

package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestJobFromFileYAML(t *testing.T) {
	path := writeTemp(t, "job.yaml", "apiVersion: batch/v1\nkind: Job\nmetadata:\n  labels: {}\n")

	job, err := JobFromFile(path)
	if err != nil {
		t.Fatalf("JobFromFile: %v", err)
	}
	if job["apiVersion"] != "batch/v1" {
		t.Errorf("apiVersion = %v, want batch/v1", job["apiVersion"])
	}
}

func TestJobFromFileJSON(t *testing.T) {
	path := writeTemp(t, "job.json", `{"apiVersion":"batch/v1","kind":"Job","metadata":{"labels":{}}}`)

	job, err := JobFromFile(path)
	if err != nil {
		t.Fatalf("JobFromFile: %v", err)
	}
	if job["kind"] != "Job" {
		t.Errorf("kind = %v, want Job", job["kind"])
	}
}

func TestJobFromFileYAMLAndJSONProduceSameShape(t *testing.T) {
	yamlPath := writeTemp(t, "job.yaml", "apiVersion: batch/v1\nkind: Job\nmetadata:\n  labels:\n    foo: bar\n")
	jsonPath := writeTemp(t, "job.json", `{"apiVersion":"batch/v1","kind":"Job","metadata":{"labels":{"foo":"bar"}}}`)

	fromYAML, err := JobFromFile(yamlPath)
	if err != nil {
		t.Fatalf("JobFromFile(yaml): %v", err)
	}
	fromJSON, err := JobFromFile(jsonPath)
	if err != nil {
		t.Fatalf("JobFromFile(json): %v", err)
	}

	labelsYAML := fromYAML["metadata"].(map[string]interface{})["labels"].(map[string]interface{})
	labelsJSON := fromJSON["metadata"].(map[string]interface{})["labels"].(map[string]interface{})
	if labelsYAML["foo"] != labelsJSON["foo"] {
		t.Errorf("labels differ: %v vs %v", labelsYAML, labelsJSON)
	}
}

func TestCustomizeFromFileJSON(t *testing.T) {
	path := writeTemp(t, "patch.json", `[{"op":"add","path":"/metadata/namespace","value":"custom"}]`)

	customizations, err := CustomizeFromFile(path)
	if err != nil {
		t.Fatalf("CustomizeFromFile: %v", err)
	}
	if len(customizations) != 1 {
		t.Fatalf("len(customizations) = %d, want 1", len(customizations))
	}
	if customizations[0]["op"] != "add" {
		t.Errorf("op = %v, want add", customizations[0]["op"])
	}
}

func TestCustomizeFromFileYAML(t *testing.T) {
	path := writeTemp(t, "patch.yaml", "- op: add\n  path: /metadata/namespace\n  value: custom\n")

	customizations, err := CustomizeFromFile(path)
	if err != nil {
		t.Fatalf("CustomizeFromFile: %v", err)
	}
	if len(customizations) != 1 {
		t.Fatalf("len(customizations) = %d, want 1", len(customizations))
	}
	if customizations[0]["path"] != "/metadata/namespace" {
		t.Errorf("path = %v, want /metadata/namespace", customizations[0]["path"])
	}
}

func TestUnmarshalFileRejectsUnsupportedExtension(t *testing.T) {
	path := writeTemp(t, "job.toml", "apiVersion = 'batch/v1'\n")

	if _, err := JobFromFile(path); err == nil {
		t.Fatal("JobFromFile(.toml) = nil error, want error")
	}
}
