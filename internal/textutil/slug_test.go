package textutil

import (
	"strings"
	"testing"
)

func TestSlug(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"Test Artist", "test-artist"},
		{"  Beyoncé  ", "beyonce"},
		{"AC/DC", "ac-dc"},
		{"Sigur Rós & Jónsi!!", "sigur-ros-jonsi"},
		{"Diljit   Dosanjh 2024", "diljit-dosanjh-2024"},
		{"---", "mashup"},
		{"", "mashup"},
	}
	for _, tc := range cases {
		if got := Slug(tc.input); got != tc.want {
			t.Fatalf("Slug(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestSlugTruncates(t *testing.T) {
	got := Slug(strings.Repeat("ab ", 50))
	if len(got) > maxSlugLength {
		t.Fatalf("slug too long: %d", len(got))
	}
	if strings.HasSuffix(got, "-") {
		t.Fatalf("slug should not end with a dash: %q", got)
	}
}

func TestArtifactName(t *testing.T) {
	if got := ArtifactName("Test Artist", ".mp3"); got != "test-artist-mashup.mp3" {
		t.Fatalf("unexpected name %q", got)
	}
	if got := ArtifactName("!!!", ".zip"); got != "mashup.zip" {
		t.Fatalf("unexpected name %q", got)
	}
}
