package reference

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func TestDefaultMetadata(t *testing.T) {
	tests := []struct {
		fileName string
		want     string
	}{
		{"smith2020.pdf", "smith2020"},
		{"Deep Learning.PDF", "Deep Learning"},
		{"notes.txt", "notes.txt"},
		{"/abs/path/paper.pdf", "paper"},
	}
	for _, tt := range tests {
		t.Run(tt.fileName, func(t *testing.T) {
			m := DefaultMetadata(tt.fileName)
			if m.Title != tt.want {
				t.Errorf("DefaultMetadata(%q).Title = %q, want %q", tt.fileName, m.Title, tt.want)
			}
			if m.Authors == nil || m.Tags == nil {
				t.Errorf("DefaultMetadata(%q) has nil Authors or Tags", tt.fileName)
			}
			if m.Year != "" || m.DOI != "" {
				t.Errorf("DefaultMetadata(%q) should have empty year and doi, got %+v", tt.fileName, m)
			}
		})
	}
}

func TestMetadata_JSONNeverNull(t *testing.T) {
	var m Metadata
	m.Normalize()
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	got := string(data)
	if !strings.Contains(got, `"authors":[]`) || !strings.Contains(got, `"tags":[]`) {
		t.Errorf("Marshal() = %s, want empty arrays for authors and tags", got)
	}
}

func TestNormalizeTags(t *testing.T) {
	got := NormalizeTags([]string{"ml", " nlp ", "ML", "ml", "", "  "})
	want := []string{"ML", "ml", "nlp"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("NormalizeTags() = %v, want %v", got, want)
	}
}

func TestCleanDOI(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"10.1/x", "10.1/x"},
		{"https://doi.org/10.1/x", "10.1/x"},
		{"HTTP://DOI.ORG/10.1/x", "10.1/x"},
		{"  https://doi.org/10.1/x  ", "10.1/x"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := CleanDOI(tt.in); got != tt.want {
			t.Errorf("CleanDOI(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLastName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Jane Doe", "Doe"},
		{"Doe", "Doe"},
		{"  Ludwig van  Beethoven ", "Beethoven"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := LastName(tt.in); got != tt.want {
			t.Errorf("LastName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
