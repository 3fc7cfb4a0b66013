// Copyright Contributors to the KubeTask project

package manifest

import (
	"reflect"
	"testing"
)

func TestApplyCustomizationsNoOpCopies(t *testing.T) {
	original := defaultTemplate()
	patched, err := ApplyCustomizations(original, nil)
	if err != nil {
		t.Fatalf("ApplyCustomizations: %v", err)
	}

	if reflect.ValueOf(patched).Pointer() == reflect.ValueOf(original).Pointer() {
		t.Fatal("ApplyCustomizations returned the same map instance")
	}
	if !reflect.DeepEqual(original, patched) {
		t.Fatalf("patched = %#v, want %#v", patched, original)
	}
}

func TestApplyCustomizationsAddsField(t *testing.T) {
	patched, err := ApplyCustomizations(defaultTemplate(), []Customization{
		{"op": "add", "path": "/metadata/namespace", "value": "custom-namespace"},
	})
	if err != nil {
		t.Fatalf("ApplyCustomizations: %v", err)
	}

	ns := patched["metadata"].(map[string]interface{})["namespace"]
	if ns != "custom-namespace" {
		t.Errorf("namespace = %v, want custom-namespace", ns)
	}
}

func TestApplyCustomizationsReplacesField(t *testing.T) {
	patched, err := ApplyCustomizations(defaultTemplate(), []Customization{
		{"op": "replace", "path": "/spec/template/spec/restartPolicy", "value": "OnFailure"},
	})
	if err != nil {
		t.Fatalf("ApplyCustomizations: %v", err)
	}

	policy := patched["spec"].(map[string]interface{})["template"].(map[string]interface{})["spec"].(map[string]interface{})["restartPolicy"]
	if policy != "OnFailure" {
		t.Errorf("restartPolicy = %v, want OnFailure", policy)
	}
}

func TestApplyCustomizationsInvalidPatchErrors(t *testing.T) {
	_, err := ApplyCustomizations(defaultTemplate(), []Customization{
		{"op": "remove", "path": "/does/not/exist"},
	})
	if err == nil {
		t.Fatal("ApplyCustomizations = nil error, want error for missing path")
	}
}
