// Copyright Contributors to the KubeTask project

package runner

import (
	"errors"
	"testing"

	"k8s.io/client-go/rest"
)

func TestLoadConfigFallsBackExactlyOnceWhenNotInCluster(t *testing.T) {
	origInCluster, origKubeConfig := loadInClusterConfig, loadKubeConfig
	defer func() { loadInClusterConfig, loadKubeConfig = origInCluster, origKubeConfig }()

	loadInClusterConfig = func() (*rest.Config, error) {
		return nil, rest.ErrNotInCluster
	}
	calls := 0
	want := &rest.Config{Host: "https://kubeconfig.example"}
	loadKubeConfig = func() (*rest.Config, error) {
		calls++
		return want, nil
	}

	got, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if got != want {
		t.Errorf("LoadConfig returned %v, want %v", got, want)
	}
	if calls != 1 {
		t.Errorf("loadKubeConfig called %d times, want 1", calls)
	}
}

func TestLoadConfigUsesInClusterConfigWhenAvailable(t *testing.T) {
	origInCluster, origKubeConfig := loadInClusterConfig, loadKubeConfig
	defer func() { loadInClusterConfig, loadKubeConfig = origInCluster, origKubeConfig }()

	want := &rest.Config{Host: "https://in-cluster.example"}
	loadInClusterConfig = func() (*rest.Config, error) {
		return want, nil
	}
	loadKubeConfig = func() (*rest.Config, error) {
		t.Fatal("loadKubeConfig should not be called when in-cluster config succeeds")
		return nil, nil
	}

	got, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if got != want {
		t.Errorf("LoadConfig returned %v, want %v", got, want)
	}
}

func TestLoadConfigPropagatesOtherInClusterErrors(t *testing.T) {
	origInCluster, origKubeConfig := loadInClusterConfig, loadKubeConfig
	defer func() { loadInClusterConfig, loadKubeConfig = origInCluster, origKubeConfig }()

	wantErr := errors.New("boom")
	loadInClusterConfig = func() (*rest.Config, error) {
		return nil, wantErr
	}
	loadKubeConfig = func() (*rest.Config, error) {
		t.Fatal("loadKubeConfig should not be called for non-ErrNotInCluster failures")
		return nil, nil
	}

	_, err := LoadConfig()
	if !errors.Is(err, wantErr) {
		t.Errorf("LoadConfig error = %v, want %v", err, wantErr)
	}
}
