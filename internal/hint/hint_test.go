package hint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/beansdb-go/dkv/internal/compress"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	rec := Record{
		KSize:   5,
		DataPos: 256 * 7,
		Ver:     42,
		Hash:    0xbeef,
		Key:     []byte("hello"),
	}

	b := Encode(rec)
	got, n, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if n != len(b) {
		t.Fatalf("consumed %d bytes, want %d", n, len(b))
	}
	if got.DataPos != rec.DataPos || got.Ver != rec.Ver || got.Hash != rec.Hash || string(got.Key) != string(rec.Key) {
		t.Fatalf("got %+v, want %+v", got, rec)
	}
}

func TestDataPosLowByteAlwaysZero(t *testing.T) {
	rec := Record{KSize: 1, DataPos: 256*3 + 37, Key: []byte("k")}
	b := Encode(rec)
	got, _, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.DataPos%256 != 0 {
		t.Fatalf("decoded DataPos %d is not 256-aligned", got.DataPos)
	}
	if got.DataPos != 256*3 {
		t.Fatalf("got DataPos %d, want %d (low bits truncated)", got.DataPos, 256*3)
	}
}

func TestPathFor(t *testing.T) {
	got := PathFor("/data/000.data")
	want := filepath.Join("/data", "000hint.qlz")
	if got != want {
		t.Fatalf("PathFor = %q, want %q", got, want)
	}
}

func TestDecodeAllMultipleRecords(t *testing.T) {
	recs := []Record{
		{KSize: 1, DataPos: 0, Ver: 1, Hash: 1, Key: []byte("a")},
		{KSize: 2, DataPos: 256, Ver: -1, Hash: 2, Key: []byte("bb")},
	}
	var body []byte
	for _, r := range recs {
		body = append(body, Encode(r)...)
	}
	got, err := DecodeAll(body)
	if err != nil {
		t.Fatalf("DecodeAll: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
	for i := range recs {
		if string(got[i].Key) != string(recs[i].Key) || got[i].Ver != recs[i].Ver {
			t.Errorf("record %d = %+v, want %+v", i, got[i], recs[i])
		}
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "000hint.qlz")
	codec := compress.New()

	recs := []Record{
		{KSize: 3, DataPos: 0, Ver: 1, Hash: 0x1234, Key: []byte("foo")},
		{KSize: 3, DataPos: 256, Ver: 2, Hash: 0x5678, Key: []byte("bar")},
	}

	if err := Write(path, recs, codec); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file should have been renamed away")
	}

	got, err := Read(path, codec)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got) != len(recs) {
		t.Fatalf("got %d records, want %d", len(got), len(recs))
	}
	for i := range recs {
		if string(got[i].Key) != string(recs[i].Key) {
			t.Errorf("record %d key = %q, want %q", i, got[i].Key, recs[i].Key)
		}
	}
}
