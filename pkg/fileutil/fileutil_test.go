package fileutil

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteAtomic(t *testing.T) {
	tmpDir := t.TempDir()
	outPath := filepath.Join(tmpDir, "nested", "report.csv")

	err := WriteAtomic(outPath, func(w io.Writer) error {
		_, err := io.WriteString(w, "id,sum\nA,1\n")
		return err
	})
	if err != nil {
		t.Fatalf("WriteAtomic failed: %v", err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "id,sum\nA,1\n" {
		t.Errorf("content = %q", data)
	}

	info, err := os.Stat(outPath)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o644 {
		t.Errorf("mode = %v, want 0644", info.Mode().Perm())
	}
	assertNoTmpFiles(t, filepath.Dir(outPath))
}

func TestWriteAtomicErrorKeepsOriginal(t *testing.T) {
	tmpDir := t.TempDir()
	outPath := filepath.Join(tmpDir, "report.json")
	if err := os.WriteFile(outPath, []byte("previous"), 0644); err != nil {
		t.Fatal(err)
	}

	wantErr := errors.New("encode failed")
	err := WriteAtomic(outPath, func(w io.Writer) error {
		io.WriteString(w, "partial")
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("error = %v, want %v", err, wantErr)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "previous" {
		t.Errorf("original overwritten: %q", data)
	}
	assertNoTmpFiles(t, tmpDir)
}

func assertNoTmpFiles(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), tmpSuffix) {
			t.Errorf("leftover temp file %s", e.Name())
		}
	}
}
