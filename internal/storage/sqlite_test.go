package storage

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/bibsync/bibsync/internal/reference"
)

// setupTestStore opens a store in a fresh temporary directory.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	tmpDir := t.TempDir()
	s, err := Open(filepath.Join(tmpDir, "data"), filepath.Join(tmpDir, "notes"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testPaper(id, title string, tags ...string) reference.Paper {
	return reference.Paper{
		ID:           id,
		Path:         "/papers/" + id + ".pdf",
		FileName:     id + ".pdf",
		LastModified: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Size:         1024,
		Metadata: reference.Metadata{
			Title:   title,
			Authors: []string{"Jane Doe", "John Roe"},
			Year:    "2020",
			Tags:    tags,
		},
	}
}

func TestSavePaper_RoundTrip(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	want := testPaper("p1", "First Paper", "ml", "bio")
	want.Metadata.DOI = "10.1234/x"
	want.Metadata.Journal = "Nature"
	if err := s.SavePaper(ctx, want); err != nil {
		t.Fatalf("SavePaper() error = %v", err)
	}

	got, err := s.Paper(ctx, "p1")
	if err != nil {
		t.Fatalf("Paper() error = %v", err)
	}
	if got == nil {
		t.Fatal("Paper() = nil, want paper")
	}
	if got.Path != want.Path || got.FileName != want.FileName || got.Size != want.Size {
		t.Errorf("Paper() file fields = %+v, want %+v", got, want)
	}
	if !got.LastModified.Equal(want.LastModified) {
		t.Errorf("LastModified = %v, want %v", got.LastModified, want.LastModified)
	}
	if !reflect.DeepEqual(got.Metadata.Authors, want.Metadata.Authors) {
		t.Errorf("Authors = %v, want %v", got.Metadata.Authors, want.Metadata.Authors)
	}
	if !reflect.DeepEqual(got.Metadata.Tags, []string{"bio", "ml"}) {
		t.Errorf("Tags = %v, want [bio ml]", got.Metadata.Tags)
	}
	if got.Metadata.DOI != "10.1234/x" || got.Metadata.Journal != "Nature" {
		t.Errorf("Metadata = %+v", got.Metadata)
	}
}

func TestLoadMetadata_Absent(t *testing.T) {
	s := setupTestStore(t)

	m, err := s.LoadMetadata(context.Background(), "nope")
	if err != nil {
		t.Fatalf("LoadMetadata() error = %v, want nil", err)
	}
	if m != nil {
		t.Errorf("LoadMetadata() = %+v, want nil", m)
	}

	p, err := s.Paper(context.Background(), "nope")
	if err != nil || p != nil {
		t.Errorf("Paper() = %v, %v, want nil, nil", p, err)
	}
}

func TestSaveMetadata_ReplacesAtomically(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	if err := s.SaveMetadata(ctx, "id1", reference.Metadata{Title: "Old", Authors: []string{"A"}, Year: "1999", Tags: []string{"x", "y"}}); err != nil {
		t.Fatalf("SaveMetadata() error = %v", err)
	}
	if err := s.SaveMetadata(ctx, "id1", reference.Metadata{Title: "New", Tags: []string{"z"}}); err != nil {
		t.Fatalf("SaveMetadata() error = %v", err)
	}

	m, err := s.LoadMetadata(ctx, "id1")
	if err != nil {
		t.Fatalf("LoadMetadata() error = %v", err)
	}
	if m.Title != "New" || m.Year != "" {
		t.Errorf("LoadMetadata() = %+v, want full replacement", m)
	}
	if m.Authors == nil || len(m.Authors) != 0 {
		t.Errorf("Authors = %v, want empty non-nil", m.Authors)
	}
	if !reflect.DeepEqual(m.Tags, []string{"z"}) {
		t.Errorf("Tags = %v, want [z]", m.Tags)
	}
}

func TestSaveMetadata_WithoutPaper(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	if err := s.SaveMetadata(ctx, "orphan", reference.Metadata{Title: "No File Yet"}); err != nil {
		t.Fatalf("SaveMetadata() error = %v", err)
	}

	p, err := s.Paper(ctx, "orphan")
	if err != nil {
		t.Fatalf("Paper() error = %v", err)
	}
	if p == nil || p.Path != "" || p.Metadata.Title != "No File Yet" {
		t.Errorf("Paper() = %+v, want metadata-only record", p)
	}
}

func TestListAll_OrderedByTitle(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	for _, p := range []reference.Paper{
		testPaper("c", "zebra"),
		testPaper("a", "Apple"),
		testPaper("b", "mango"),
	} {
		if err := s.SavePaper(ctx, p); err != nil {
			t.Fatalf("SavePaper() error = %v", err)
		}
	}

	papers, err := s.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll() error = %v", err)
	}
	var titles []string
	for _, p := range papers {
		titles = append(titles, p.Metadata.Title)
	}
	want := []string{"Apple", "mango", "zebra"}
	if !reflect.DeepEqual(titles, want) {
		t.Errorf("ListAll() titles = %v, want %v", titles, want)
	}

	count, err := s.Count(ctx)
	if err != nil || count != 3 {
		t.Errorf("Count() = %d, %v, want 3", count, err)
	}
}

func TestListByTagAndTagCounts(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	papers := []reference.Paper{
		testPaper("a", "A", "ml", "bio"),
		testPaper("b", "B", "ml"),
		testPaper("c", "C"),
	}
	for _, p := range papers {
		if err := s.SavePaper(ctx, p); err != nil {
			t.Fatalf("SavePaper() error = %v", err)
		}
	}

	ml, err := s.ListByTag(ctx, "ml")
	if err != nil {
		t.Fatalf("ListByTag() error = %v", err)
	}
	if len(ml) != 2 || ml[0].ID != "a" || ml[1].ID != "b" {
		t.Errorf("ListByTag(ml) = %+v, want a, b", ml)
	}

	// Tags are case-sensitive
	if upper, _ := s.ListByTag(ctx, "ML"); len(upper) != 0 {
		t.Errorf("ListByTag(ML) = %d papers, want 0", len(upper))
	}

	counts, err := s.TagCounts(ctx)
	if err != nil {
		t.Fatalf("TagCounts() error = %v", err)
	}
	want := []reference.TagCount{{Name: "bio", PaperCount: 1}, {Name: "ml", PaperCount: 2}}
	if !reflect.DeepEqual(counts, want) {
		t.Errorf("TagCounts() = %v, want %v", counts, want)
	}

	// Removing the last carrier of a tag drops it from the counts
	if err := s.SaveMetadata(ctx, "a", reference.Metadata{Title: "A", Tags: []string{"ml"}}); err != nil {
		t.Fatal(err)
	}
	counts, _ = s.TagCounts(ctx)
	if len(counts) != 1 || counts[0].Name != "ml" {
		t.Errorf("TagCounts() = %v, want only ml", counts)
	}
}

func TestOpen_Locked(t *testing.T) {
	tmpDir := t.TempDir()
	dataDir := filepath.Join(tmpDir, "data")
	notesDir := filepath.Join(tmpDir, "notes")

	first, err := Open(dataDir, notesDir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if _, err := Open(dataDir, notesDir); !errors.Is(err, ErrLocked) {
		t.Errorf("second Open() error = %v, want ErrLocked", err)
	}

	if err := first.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	second, err := Open(dataDir, notesDir)
	if err != nil {
		t.Fatalf("Open() after Close() error = %v", err)
	}
	second.Close()
}

func TestSavePaper_KeepsExistingMetadata(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	user := reference.Metadata{Title: "User Title", Tags: []string{"mine"}}
	if err := s.SaveMetadata(ctx, "p1", user); err != nil {
		t.Fatalf("SaveMetadata() error = %v", err)
	}

	if err := s.SavePaper(ctx, testPaper("p1", "Default Title", "other")); err != nil {
		t.Fatalf("SavePaper() error = %v", err)
	}

	got, err := s.Paper(ctx, "p1")
	if err != nil || got == nil {
		t.Fatalf("Paper() = %v, %v", got, err)
	}
	if got.Path != "/papers/p1.pdf" {
		t.Errorf("Path = %q, want file fields saved", got.Path)
	}
	if got.Metadata.Title != "User Title" || !reflect.DeepEqual(got.Metadata.Tags, []string{"mine"}) {
		t.Errorf("Metadata = %+v, want existing record kept", got.Metadata)
	}
}

func TestUpsertFile_LeavesMetadata(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	if err := s.SavePaper(ctx, testPaper("p1", "Original", "ml")); err != nil {
		t.Fatalf("SavePaper() error = %v", err)
	}

	moved := testPaper("p1", "Ignored")
	moved.Path = "/elsewhere/p1.pdf"
	moved.Size = 4096
	if err := s.UpsertFile(ctx, moved); err != nil {
		t.Fatalf("UpsertFile() error = %v", err)
	}

	got, err := s.Paper(ctx, "p1")
	if err != nil || got == nil {
		t.Fatalf("Paper() = %v, %v", got, err)
	}
	if got.Path != "/elsewhere/p1.pdf" || got.Size != 4096 {
		t.Errorf("file fields = %q, %d, want updated", got.Path, got.Size)
	}
	if got.Metadata.Title != "Original" || !got.Metadata.HasTag("ml") {
		t.Errorf("Metadata = %+v, want untouched", got.Metadata)
	}

	// A file without a metadata record stays without one
	if err := s.UpsertFile(ctx, testPaper("p2", "")); err != nil {
		t.Fatalf("UpsertFile() error = %v", err)
	}
	if m, err := s.LoadMetadata(ctx, "p2"); err != nil || m != nil {
		t.Errorf("LoadMetadata(p2) = %+v, %v, want nil", m, err)
	}
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	tmpDir := t.TempDir()
	dataDir := filepath.Join(tmpDir, "data")
	notesDir := filepath.Join(tmpDir, "notes")
	ctx := context.Background()

	s, err := Open(dataDir, notesDir)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SavePaper(ctx, testPaper("p", "Kept", "t")); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = Open(dataDir, notesDir)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	m, err := s.LoadMetadata(ctx, "p")
	if err != nil || m == nil || m.Title != "Kept" {
		t.Errorf("LoadMetadata() after reopen = %+v, %v", m, err)
	}
}

func TestStore_CanceledContext(t *testing.T) {
	s := setupTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.SaveMetadata(ctx, "x", reference.Metadata{Title: "T"})
	if !errors.Is(err, ErrIO) {
		t.Errorf("SaveMetadata() error = %v, want ErrIO", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("SaveMetadata() error = %v, want context.Canceled in chain", err)
	}
}

func TestStore_ConcurrentWrites(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a' + i))
			if err := s.SaveMetadata(ctx, id, reference.Metadata{Title: id, Tags: []string{"shared"}}); err != nil {
				t.Errorf("SaveMetadata(%s) error = %v", id, err)
			}
		}(i)
	}
	wg.Wait()

	counts, err := s.TagCounts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(counts) != 1 || counts[0].PaperCount != 8 {
		t.Errorf("TagCounts() = %v, want shared:8", counts)
	}
}
