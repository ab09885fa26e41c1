package scan

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bibsync/bibsync/internal/identity"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestDir_FindsPDFsRecursively(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.pdf"), "%PDF-1.4 a")
	writeFile(t, filepath.Join(root, "B.PDF"), "%PDF-1.4 bb")
	writeFile(t, filepath.Join(root, "sub", "deep", "c.pdf"), "%PDF-1.4 ccc")
	writeFile(t, filepath.Join(root, "notes.txt"), "not a paper")
	writeFile(t, filepath.Join(root, "pdf"), "no extension")
	writeFile(t, filepath.Join(root, ".hidden", "secret.pdf"), "%PDF")

	result, err := Dir(context.Background(), root)
	if err != nil {
		t.Fatalf("Dir() error = %v", err)
	}

	want := []string{
		filepath.Join(root, "B.PDF"),
		filepath.Join(root, "a.pdf"),
		filepath.Join(root, "sub", "deep", "c.pdf"),
	}
	if len(result.Files) != len(want) {
		t.Fatalf("Dir() found %d files, want %d: %+v", len(result.Files), len(want), result.Files)
	}
	for i, path := range want {
		f := result.Files[i]
		if f.Path != path {
			t.Errorf("Files[%d].Path = %q, want %q", i, f.Path, path)
		}
		if f.ID != identity.FromPath(path) {
			t.Errorf("Files[%d].ID = %q, want identity of path", i, f.ID)
		}
		if f.Name != filepath.Base(path) {
			t.Errorf("Files[%d].Name = %q, want %q", i, f.Name, filepath.Base(path))
		}
	}
	if result.Files[2].Size != int64(len("%PDF-1.4 ccc")) {
		t.Errorf("Size = %d, want %d", result.Files[2].Size, len("%PDF-1.4 ccc"))
	}
	if result.Created {
		t.Error("Created should be false for an existing root")
	}
}

func TestDir_CreatesMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "does", "not", "exist")

	result, err := Dir(context.Background(), root)
	if err != nil {
		t.Fatalf("Dir() error = %v", err)
	}
	if !result.Created {
		t.Error("Created should be true")
	}
	if len(result.Files) != 0 {
		t.Errorf("Files = %v, want empty", result.Files)
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		t.Errorf("root was not created: %v", err)
	}
}

func TestDir_RootIsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.pdf")
	writeFile(t, path, "x")

	if _, err := Dir(context.Background(), path); err == nil {
		t.Error("Dir() on a file should fail")
	}
}

func TestDir_CanceledContext(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.pdf"), "x")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Dir(ctx, root); err == nil {
		t.Error("Dir() with canceled context should fail")
	}
}

func TestIsPDF(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"paper.pdf", true},
		{"paper.PDF", true},
		{"paper.Pdf", true},
		{"paper.pdf.bak", false},
		{"pdf", false},
		{"paper.txt", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPDF(tt.name); got != tt.want {
				t.Errorf("IsPDF(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestWatcher_CoalescesEvents(t *testing.T) {
	root := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	changed := make(chan struct{}, 10)
	w := NewWatcher(root, WithDebounce(100*time.Millisecond))

	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(context.Context) error {
			calls.Add(1)
			changed <- struct{}{}
			return nil
		})
	}()

	// Give the watcher time to register the root
	time.Sleep(100 * time.Millisecond)

	for _, name := range []string{"one.pdf", "two.pdf", "three.pdf"} {
		writeFile(t, filepath.Join(root, name), "%PDF")
	}
	writeFile(t, filepath.Join(root, "ignored.txt"), "x")

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not report the change")
	}

	// Wait past another debounce window to catch a second report
	time.Sleep(300 * time.Millisecond)
	if n := calls.Load(); n != 1 {
		t.Errorf("onChange called %d times, want 1", n)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}
