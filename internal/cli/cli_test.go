package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFormatDurationShort(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0:00"},
		{42 * time.Second, "0:42"},
		{3*time.Minute + 5*time.Second, "3:05"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1:02:03"},
	}
	for _, tt := range tests {
		if got := FormatDurationShort(tt.d); got != tt.want {
			t.Errorf("FormatDurationShort(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestPromptForPath(t *testing.T) {
	var out bytes.Buffer
	if got := PromptForPath(strings.NewReader("  ./templates \n"), &out, "Directory", "."); got != "./templates" {
		t.Errorf("got %q", got)
	}
	if !strings.Contains(out.String(), "Directory [.]:") {
		t.Errorf("prompt = %q", out.String())
	}
	if got := PromptForPath(strings.NewReader("\n"), &out, "Directory", "/tmp"); got != "/tmp" {
		t.Errorf("empty answer: got %q", got)
	}
	if got := PromptForPath(strings.NewReader(""), &out, "Directory", "/tmp"); got != "/tmp" {
		t.Errorf("EOF: got %q", got)
	}
}

func TestImagePaths(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.PNG", "a.jpg", "notes.txt", "c.webp", "d.gif"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.png"), 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := ImagePaths(dir)
	if err != nil {
		t.Fatalf("ImagePaths: %v", err)
	}
	want := []string{"a.jpg", "b.PNG", "c.webp"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i, p := range got {
		if filepath.Base(p) != want[i] {
			t.Errorf("got[%d] = %s, want %s", i, filepath.Base(p), want[i])
		}
	}
}
