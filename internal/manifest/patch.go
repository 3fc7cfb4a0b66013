// Copyright Contributors to the KubeTask project

package manifest

import (
	"encoding/json"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch/v5"
)

// Customization is a single RFC 6902 JSON Patch operation, matching
// the customizations field's wire shape.
type Customization map[string]interface{}

// ApplyCustomizations interprets customizations as an RFC 6902 JSON
// Patch and applies it, in order, to manifest. Patches apply after the
// agent's own fields are injected, so a customization can override
// anything the builder set. The input manifest is not mutated; a new
// manifest reflecting the patch is returned.
func ApplyCustomizations(manifest Manifest, customizations []Customization) (Manifest, error) {
	if len(customizations) == 0 {
		return deepCopy(manifest).(Manifest), nil
	}

	patchJSON, err := json.Marshal(customizations)
	if err != nil {
		return nil, fmt.Errorf("manifest: encode customizations: %w", err)
	}
	patch, err := jsonpatch.DecodePatch(patchJSON)
	if err != nil {
		return nil, fmt.Errorf("manifest: decode JSON patch: %w", err)
	}

	docJSON, err := json.Marshal(manifest)
	if err != nil {
		return nil, fmt.Errorf("manifest: encode manifest: %w", err)
	}
	patchedJSON, err := patch.Apply(docJSON)
	if err != nil {
		return nil, fmt.Errorf("manifest: apply customizations: %w", err)
	}

	var patched Manifest
	if err := json.Unmarshal(patchedJSON, &patched); err != nil {
		return nil, fmt.Errorf("manifest: decode patched manifest: %w", err)
	}
	return patched, nil
}
