package version

import "testing"

func TestBuildVersion(t *testing.T) {
	if got, want := BuildVersion(), "unisearch version "+Version; got != want {
		t.Errorf("BuildVersion() = %q, want %q", got, want)
	}
	if APIVersion() != Version {
		t.Errorf("APIVersion() = %q, want %q", APIVersion(), Version)
	}
}
