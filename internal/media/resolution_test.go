package media

import "testing"

func TestResolutionFixedTable(t *testing.T) {
	cases := []struct {
		label string
		w, h  int
	}{
		{"9:16", 1080, 1920},
		{"16:9", 1920, 1080},
		{"1:1", 1080, 1080},
		{"4:3", 1024, 768},
	}
	for _, tc := range cases {
		t.Run(tc.label, func(t *testing.T) {
			w, h := Resolution(tc.label)
			if w != tc.w || h != tc.h {
				t.Errorf("Resolution(%q) = %dx%d, want %dx%d", tc.label, w, h, tc.w, tc.h)
			}
		})
	}
}

func TestResolutionDerivedFromRatio(t *testing.T) {
	w, h := Resolution("4:5")
	if w != 1080 || h != 1350 {
		t.Errorf("Resolution(4:5) = %dx%d, want 1080x1350", w, h)
	}
}

func TestResolutionFallback(t *testing.T) {
	w, h := Resolution("not-a-ratio")
	if w != 1080 || h != 1920 {
		t.Errorf("Resolution fallback = %dx%d, want 1080x1920", w, h)
	}
}

func TestExtensionFromURL(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"https://cdn.example.com/v/abc.mp4", "mp4"},
		{"https://cdn.example.com/v/abc.MOV", "mov"},
		{"https://cdn.example.com/v/abc.mp4?sig=xyz", "mp4"},
		{"https://cdn.example.com/v/abc", ""},
	}
	for _, tc := range cases {
		if got := ExtensionFromURL(tc.url); got != tc.want {
			t.Errorf("ExtensionFromURL(%q) = %q, want %q", tc.url, got, tc.want)
		}
	}
}
