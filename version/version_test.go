package version

import "testing"

func TestCheckAppBuild(t *testing.T) {
	tests := []struct {
		build    string
		expected string
	}{
		{build: "", expected: ""},
		{build: "rc-1", expected: "rc-1"},
		{build: "dirty+tree", expected: ""},
		{build: "feature/x", expected: ""},
	}
	for _, test := range tests {
		result := checkAppBuild(test.build)
		if result != test.expected {
			t.Errorf("checkAppBuild(%q): expected %q but got %q", test.build, test.expected, result)
		}
	}
}

func TestVersionIsStable(t *testing.T) {
	first := Version()
	if first == "" {
		t.Fatalf("empty version")
	}
	if Version() != first {
		t.Fatalf("Version changed between calls")
	}
}
