package ui

import "testing"

func TestPlainRendering(t *testing.T) {
	SetPlain(true)
	defer SetPlain(false)

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"pass", RenderPass("ok"), "ok"},
		{"fail", RenderFail("boom"), "boom"},
		{"status", RenderStatus("done"), "done"},
		{"priority", RenderPriority("urgent"), "urgent"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}
