package identity

import (
	"path/filepath"
	"testing"
)

func TestFromPath_Deterministic(t *testing.T) {
	p := "/home/user/Papers/smith2020.pdf"
	a := FromPath(p)
	b := FromPath(p)
	if a != b {
		t.Errorf("FromPath(%q) not deterministic: %q != %q", p, a, b)
	}
	if len(a) != Size {
		t.Errorf("len(FromPath()) = %d, want %d", len(a), Size)
	}
	if !Valid(a) {
		t.Errorf("Valid(%q) = false, want true", a)
	}
}

func TestFromPath_Distinct(t *testing.T) {
	seen := make(map[ID]string)
	paths := []string{
		"/papers/a.pdf",
		"/papers/b.pdf",
		"/papers/A.pdf",
		"/papers/a.pdf ",
		"/papers/sub/a.pdf",
		"/other/a.pdf",
	}
	for _, p := range paths {
		id := FromPath(p)
		if prev, ok := seen[id]; ok {
			t.Errorf("FromPath(%q) collides with FromPath(%q)", p, prev)
		}
		seen[id] = p
	}
}

func TestFromFile_ResolvesRelative(t *testing.T) {
	dir := t.TempDir()
	abs := filepath.Join(dir, "paper.pdf")

	id, resolved, err := FromFile(filepath.Join(dir, "sub", "..", "paper.pdf"))
	if err != nil {
		t.Fatalf("FromFile() error = %v", err)
	}
	if resolved != abs {
		t.Errorf("FromFile() path = %q, want %q", resolved, abs)
	}
	if id != FromPath(abs) {
		t.Errorf("FromFile() id = %q, want %q", id, FromPath(abs))
	}
}

func TestValid(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{FromPath("/x.pdf"), true},
		{"", false},
		{"abc", false},
		{"ZZ" + FromPath("/x.pdf")[2:], false},
		{FromPath("/x.pdf") + "0", false},
	}
	for _, tt := range tests {
		if got := Valid(tt.in); got != tt.want {
			t.Errorf("Valid(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
