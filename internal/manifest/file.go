// Copyright Contributors to the KubeTask project

package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	k8syaml "sigs.k8s.io/yaml"
)

// JobFromFile loads a Job manifest from a .yaml/.yml/.json file. YAML
// and JSON inputs produce the identical in-memory shape, since both
// are unmarshaled into the same Manifest map.
func JobFromFile(path string) (Manifest, error) {
	var job Manifest
	if err := unmarshalFile(path, &job); err != nil {
		return nil, fmt.Errorf("manifest: load job from %s: %w", path, err)
	}
	return job, nil
}

// CustomizeFromFile loads an ordered JSON Patch document from a
// .yaml/.yml/.json file.
func CustomizeFromFile(path string) ([]Customization, error) {
	var customizations []Customization
	if err := unmarshalFile(path, &customizations); err != nil {
		return nil, fmt.Errorf("manifest: load customizations from %s: %w", path, err)
	}
	return customizations, nil
}

func unmarshalFile(path string, out interface{}) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return k8syaml.Unmarshal(raw, out)
	case ".json":
		return json.Unmarshal(raw, out)
	default:
		return fmt.Errorf("unsupported file extension: %s", filepath.Ext(path))
	}
}
