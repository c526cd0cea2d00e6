package record

import (
	"bytes"
	"io"
	"testing"

	"github.com/beansdb-go/dkv/internal/compress"
)

func TestRoundTrip(t *testing.T) {
	codec := compress.New()

	raw := Encode(Header{TStamp: 100, Ver: 1}, []byte("hello"), []byte("world"))

	var buf bytes.Buffer
	w := NewWriter(&buf, 0)
	pos, err := w.WriteRaw(raw)
	if err != nil {
		t.Fatalf("WriteRaw: %v", err)
	}
	if pos != 0 {
		t.Fatalf("pos = %d, want 0", pos)
	}
	if buf.Len()%Alignment != 0 {
		t.Fatalf("buffer length %d is not %d-aligned", buf.Len(), Alignment)
	}

	r, err := NewReader(bytes.NewReader(buf.Bytes()), codec)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}

	rec, err := r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if string(rec.Key) != "hello" || string(rec.Value) != "world" {
		t.Fatalf("got key=%q value=%q", rec.Key, rec.Value)
	}
	if rec.Ver != 1 || rec.TStamp != 100 {
		t.Fatalf("got ver=%d tstamp=%d", rec.Ver, rec.TStamp)
	}
	if r.Pos()%Alignment != 0 {
		t.Fatalf("reader position %d is not %d-aligned", r.Pos(), Alignment)
	}
}

func TestInvalidRecordTerminatesScan(t *testing.T) {
	buf := make([]byte, Alignment) // all-zero header: crc == 0
	r, err := NewReader(bytes.NewReader(buf), compress.New())
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	if _, err := r.Next(); err != ErrInvalidRecord {
		t.Fatalf("Next() err = %v, want ErrInvalidRecord", err)
	}
}

func TestMultipleRecordsSequential(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, 0)

	raws := [][]byte{
		Encode(Header{Ver: 1}, []byte("k1"), []byte("v1")),
		Encode(Header{Ver: 2}, []byte("k2"), bytes.Repeat([]byte("v"), 1500)),
		Encode(Header{Ver: -1}, []byte("k1"), nil),
	}
	var positions []int64
	for _, raw := range raws {
		pos, err := w.WriteRaw(raw)
		if err != nil {
			t.Fatalf("WriteRaw: %v", err)
		}
		positions = append(positions, pos)
	}

	r, err := NewReader(bytes.NewReader(buf.Bytes()), compress.New())
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}

	for i, wantPos := range positions {
		rec, err := r.Next()
		if err != nil {
			t.Fatalf("Next(%d): %v", i, err)
		}
		if rec.DataPos != wantPos {
			t.Errorf("record %d DataPos = %d, want %d", i, rec.DataPos, wantPos)
		}
		if rec.DataPos%Alignment != 0 {
			t.Errorf("record %d DataPos %d not aligned", i, rec.DataPos)
		}
	}

	if _, err := r.Next(); err != io.EOF && !bytes.Contains([]byte(err.Error()), []byte("EOF")) {
		t.Fatalf("expected EOF at end of file, got %v", err)
	}
}

func TestTombstoneVersionNegative(t *testing.T) {
	h := Header{Ver: -5}
	if !h.Tombstone() {
		t.Fatal("expected tombstone for negative version")
	}
	h.Ver = 5
	if h.Tombstone() {
		t.Fatal("did not expect tombstone for positive version")
	}
}
