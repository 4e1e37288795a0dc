package dlp

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveHeaders_InlineList(t *testing.T) {
	cfg := baseConfig()
	cfg.CSV = CSVConfig{Delimiter: ",", Headers: []string{"name", "ssn"}}

	h, err := ResolveHeaders(cfg)
	if err != nil {
		t.Fatalf("ResolveHeaders: %v", err)
	}
	if h.Len() != 2 || h.Unstructured() {
		t.Fatalf("unexpected header set: %v", h.Names())
	}
	ids := h.FieldIDs()
	if ids[0].GetName() != "name" || ids[1].GetName() != "ssn" {
		t.Fatalf("field ids wrong: %v", ids)
	}
}

func TestResolveHeaders_FromFileFirstLine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.csv")
	if err := os.WriteFile(path, []byte("x,y,z\r\nx1,y1,z1\n"), 0o644); err != nil {
		t.Fatalf("write header file: %v", err)
	}

	cfg := baseConfig()
	cfg.CSV = CSVConfig{Delimiter: ",", HeaderFile: path}
	h, err := ResolveHeaders(cfg)
	if err != nil {
		t.Fatalf("ResolveHeaders: %v", err)
	}
	want := []string{"x", "y", "z"}
	got := h.Names()
	if len(got) != len(want) {
		t.Fatalf("want %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("header %d: want %q, got %q", i, want[i], got[i])
		}
	}
}

func TestResolveHeaders_EmptyFileFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.csv")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg := baseConfig()
	cfg.CSV = CSVConfig{Delimiter: ",", HeaderFile: path}
	if _, err := ResolveHeaders(cfg); err == nil {
		t.Fatal("expected error for empty header file")
	}
}
