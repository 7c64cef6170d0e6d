package fs

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestWalkerIncludesAndExcludes(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "b_brakes.md"), "brakes")
	writeFile(t, filepath.Join(root, "a_oil.txt"), "oil")
	writeFile(t, filepath.Join(root, "image.png"), "png")
	writeFile(t, filepath.Join(root, "drafts", "tires.md"), "tires")
	writeFile(t, filepath.Join(root, "manuals", "sedan.md"), "sedan")

	w := NewWalker(nil, []string{"drafts/**"})
	files, err := w.Walk(root)
	if err != nil {
		t.Fatal(err)
	}

	var names []string
	for _, f := range files {
		rel, _ := filepath.Rel(root, f.Path)
		names = append(names, filepath.ToSlash(rel))
	}
	want := []string{"a_oil.txt", "b_brakes.md", "manuals/sedan.md"}
	if len(names) != len(want) {
		t.Fatalf("got %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("file %d: got %s, want %s", i, names[i], want[i])
		}
	}
}

func TestWalkerSingleFileRoot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cars_seed.md")
	writeFile(t, path, "seed")

	files, err := NewWalker(nil, nil).Walk(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || files[0].Size != 4 {
		t.Errorf("unexpected files: %+v", files)
	}
}

func TestExtractorPlain(t *testing.T) {
	e := NewExtractor()

	got, err := e.ExtractBytes([]byte("caf\xc3\xa9"), ".md")
	if err != nil {
		t.Fatal(err)
	}
	if got != "café" {
		t.Errorf("got %q", got)
	}

	got, err = e.ExtractBytes([]byte("hello\x80world"), ".txt")
	if err != nil {
		t.Fatal(err)
	}
	if got != "hello�world" {
		t.Errorf("got %q", got)
	}
}

func TestExtractorRejectsBrokenPDF(t *testing.T) {
	if _, err := NewExtractor().ExtractBytes([]byte("not a pdf"), ".pdf"); err == nil {
		t.Error("expected error for invalid PDF")
	}
}
