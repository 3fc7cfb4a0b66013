// Copyright Contributors to the KubeTask project

// Package manifest builds, validates, and customizes Kubernetes Job
// manifests for flow run submission. Manifests are represented as
// generic JSON-shaped maps so that RFC 6902 JSON Patch customizations
// (applied in patch.go) can address any path in the document,
// regardless of Go struct field names.
package manifest

// Manifest is a Kubernetes Job object in its on-the-wire mapping form.
type Manifest = map[string]interface{}

// DeepCopy clones any JSON-shaped value (maps, slices, and scalars).
// Exported for other packages that need the same non-aliasing
// guarantee over generic document maps, such as the infrastructure
// resolver's override application.
func DeepCopy(v interface{}) interface{} {
	return deepCopy(v)
}

// deepCopy clones a JSON-shaped value (maps, slices, and scalars) so
// that two builds of the same job never alias each other's manifest:
// the results are structurally equal but never the same underlying
// maps or slices.
func deepCopy(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, v := range val {
			out[k] = deepCopy(v)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, v := range val {
			out[i] = deepCopy(v)
		}
		return out
	default:
		return val
	}
}

// getPath walks dot-free JSON pointer segments (already split) through
// nested maps, returning (value, true) if every segment resolves, or
// (nil, false) otherwise. Slices are not indexed: a segment reached
// through a slice does not resolve.
func getPath(doc interface{}, segments []string) (interface{}, bool) {
	current := doc
	for _, seg := range segments {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		v, ok := m[seg]
		if !ok {
			return nil, false
		}
		current = v
	}
	return current, true
}
