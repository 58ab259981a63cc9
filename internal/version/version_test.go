package version

import (
	"strings"
	"testing"
)

func TestIsDevelopment(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		version string
		want    bool
	}{
		{name: "devel", version: "devel", want: true},
		{name: "unknown", version: "unknown", want: true},
		{name: "empty", version: "", want: true},
		{name: "dirty", version: "v1.2.0-dirty", want: true},
		{name: "pseudo version", version: "v0.0.0-0.20250101000000-abcdef", want: true},
		{name: "release", version: "v1.2.0", want: false},
		{name: "release without prefix", version: "1.4.2", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := IsDevelopment(tt.version); got != tt.want {
				t.Errorf("IsDevelopment(%q) = %v, want %v", tt.version, got, tt.want)
			}
		})
	}
}

func TestUserAgent(t *testing.T) {
	t.Parallel()

	got := UserAgent()
	if !strings.HasPrefix(got, "slackerp/") {
		t.Errorf("UserAgent() = %q, want slackerp/ prefix", got)
	}
	if strings.TrimPrefix(got, "slackerp/") != Get() {
		t.Errorf("UserAgent() = %q, want suffix %q", got, Get())
	}
}
