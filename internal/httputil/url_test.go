// ABOUTME: Tests for NormalizeBaseURL: scheme defaulting and trailing /v1 stripping
// ABOUTME: Covers local server forms, hosted APIs, empty string and trailing slash variants

package httputil

import "testing"

func TestNormalizeBaseURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"strips trailing /v1", "http://127.0.0.1:8080/v1", "http://127.0.0.1:8080"},
		{"strips trailing /v1/", "http://127.0.0.1:8080/v1/", "http://127.0.0.1:8080"},
		{"no change without /v1", "http://127.0.0.1:8080", "http://127.0.0.1:8080"},
		{"https kept", "https://api.openai.com", "https://api.openai.com"},
		{"empty string", "", ""},
		{"strips trailing slash only", "http://host:8000/", "http://host:8000"},
		{"preserves path before /v1", "http://host:8000/api/v1", "http://host:8000/api/v1"},
		{"adds scheme to host:port", "127.0.0.1:8080", "http://127.0.0.1:8080"},
		{"adds scheme and strips /v1", "localhost:8080/v1", "http://localhost:8080"},
		{"trims whitespace", "  http://host:1 ", "http://host:1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := NormalizeBaseURL(tt.input); got != tt.want {
				t.Errorf("NormalizeBaseURL(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
