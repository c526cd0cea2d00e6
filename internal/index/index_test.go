package index

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/beansdb-go/dkv/internal/compress"
	"github.com/beansdb-go/dkv/internal/hint"
	"github.com/beansdb-go/dkv/internal/record"
)

func writeDataFile(t *testing.T, path string, records [][]byte) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	w := record.NewWriter(f, 0)
	for _, raw := range records {
		if _, err := w.WriteRaw(raw); err != nil {
			t.Fatalf("WriteRaw: %v", err)
		}
	}
}

func TestBuildFileIndexFromScan(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "000.data")
	writeDataFile(t, path, [][]byte{
		record.Encode(record.Header{Ver: 1}, []byte("a"), []byte("1")),
		record.Encode(record.Header{Ver: 2}, []byte("b"), []byte("2")),
	})

	idx, err := BuildFileIndex(path, BuildOptions{Codec: compress.New()})
	if err != nil {
		t.Fatalf("BuildFileIndex: %v", err)
	}
	if len(idx.Entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(idx.Entries))
	}
	if idx.Entries["a"].Ver != 1 || idx.Entries["b"].Ver != 2 {
		t.Fatalf("unexpected entries: %+v", idx.Entries)
	}
}

func TestBuildFileIndexPrefersHintWhenAllowed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "000.data")
	writeDataFile(t, path, [][]byte{
		record.Encode(record.Header{Ver: 7}, []byte("k"), []byte("v")),
	})

	codec := compress.New()
	if err := hint.Write(hint.PathFor(path), []hint.Record{
		{KSize: 1, DataPos: 0, Ver: 7, Hash: 42, Key: []byte("k")},
	}, codec); err != nil {
		t.Fatalf("hint.Write: %v", err)
	}

	idx, err := BuildFileIndex(path, BuildOptions{Codec: codec, AllowHint: true})
	if err != nil {
		t.Fatalf("BuildFileIndex: %v", err)
	}
	entry, ok := idx.Entries["k"]
	if !ok || entry.Ver != 7 || entry.Hash != 42 {
		t.Fatalf("got %+v, want ver=7 hash=42", entry)
	}
}

func TestBuildFileIndexFallsBackWhenHintMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "000.data")
	writeDataFile(t, path, [][]byte{
		record.Encode(record.Header{Ver: 1}, []byte("a"), []byte("1")),
	})

	idx, err := BuildFileIndex(path, BuildOptions{Codec: compress.New(), AllowHint: true})
	if err != nil {
		t.Fatalf("BuildFileIndex: %v", err)
	}
	if len(idx.Entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(idx.Entries))
	}
}

func TestListDataFilesSortedAndFiltered(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"002.data", "000.data", "001.data", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	got, err := ListDataFiles(dir)
	if err != nil {
		t.Fatalf("ListDataFiles: %v", err)
	}
	want := []string{"000.data", "001.data", "002.data"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want suffixes %v", got, want)
	}
	for i, w := range want {
		if filepath.Base(got[i]) != w {
			t.Errorf("got[%d] = %s, want %s", i, filepath.Base(got[i]), w)
		}
	}
}

func TestBuildAllPreservesInputOrder(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for i, name := range []string{"000.data", "001.data", "002.data"} {
		path := filepath.Join(dir, name)
		writeDataFile(t, path, [][]byte{
			record.Encode(record.Header{Ver: int32(i)}, []byte("k"), []byte("v")),
		})
		paths = append(paths, path)
	}

	indexes, err := BuildAll(paths, BuildOptions{Codec: compress.New()})
	if err != nil {
		t.Fatalf("BuildAll: %v", err)
	}
	if len(indexes) != 3 {
		t.Fatalf("got %d indexes, want 3", len(indexes))
	}
	for i, idx := range indexes {
		if idx.Path != paths[i] {
			t.Errorf("indexes[%d].Path = %s, want %s", i, idx.Path, paths[i])
		}
	}
}

func TestTag(t *testing.T) {
	if got := Tag("/a/b/007.data"); got != "007" {
		t.Fatalf("Tag = %q, want 007", got)
	}
}
