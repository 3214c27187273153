package config

import "testing"

func TestSplitOrigins(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"http://localhost:3000", 1},
		{"http://a.example.com, http://b.example.com", 2},
		{" http://a.example.com ,, ", 1},
	}

	for _, tt := range tests {
		got := splitOrigins(tt.in)
		if len(got) != tt.want {
			t.Errorf("splitOrigins(%q) returned %d origins, want %d", tt.in, len(got), tt.want)
		}
	}
}

func TestDefaults(t *testing.T) {
	cfg := Load()

	if cfg.ServerAddr == "" {
		t.Error("ServerAddr should have a default")
	}
	if cfg.JWTSecret == "" {
		t.Error("JWTSecret should never be empty")
	}
	if cfg.S3Bucket == "" {
		t.Error("S3Bucket should have a default")
	}
}
