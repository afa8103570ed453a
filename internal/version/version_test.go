package version

import (
	"strings"
	"testing"
)

func TestInfo_ContainsVersion(t *testing.T) {
	if !strings.Contains(Info(), Short()) {
		t.Errorf("Info() = %q, want it to contain %q", Info(), Short())
	}
}

func TestMap_Keys(t *testing.T) {
	m := Map()
	for _, k := range []string{"version", "git_commit", "build_date", "go_version"} {
		if m[k] == "" {
			t.Errorf("Map()[%q] is empty", k)
		}
	}
}
