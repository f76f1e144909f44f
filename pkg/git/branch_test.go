package git

import "testing"

func TestIsMainBranch(t *testing.T) {
	tests := []struct {
		name   string
		branch string
		want   bool
	}{
		{"main", "main", true},
		{"master", "master", true},
		{"develop", "develop", false},
		{"feature branch", "feature/auth", false},
		{"bugfix branch", "bugfix/security", false},
		{"detached", "detached", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsMainBranch(tt.branch)
			if got != tt.want {
				t.Errorf("IsMainBranch(%q) = %v, want %v", tt.branch, got, tt.want)
			}
		})
	}
}
