// Package hint implements the hint-file sidecar: a compressed index of
// every record in a data file, used to avoid a full data-file scan when
// building per-file key indexes.
package hint

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"

	"github.com/beansdb-go/dkv/internal/compress"
	"github.com/pkg/errors"
)

// headerSize is the fixed portion of a packed hint record: 1 byte ksz,
// 3 bytes datapos>>8, 4 bytes ver, 2 bytes hash low-16.
const headerSize = 10

// Record is one decoded entry from a hint file.
type Record struct {
	KSize   uint8
	DataPos int64 // full byte offset; low 8 bits are always zero
	Ver     int32
	Hash    uint16 // low 16 bits of the 32-bit content hash
	Key     []byte
}

// Encode packs a single hint record: fixed header, key bytes, one NUL pad
// byte. datapos must be 256-byte aligned — its low 8 bits are dropped on
// encode and assumed zero on decode, per spec.
func Encode(rec Record) []byte {
	buf := make([]byte, headerSize+len(rec.Key)+1)

	buf[0] = rec.KSize

	upper24 := uint32(rec.DataPos >> 8)
	buf[1] = byte(upper24)
	buf[2] = byte(upper24 >> 8)
	buf[3] = byte(upper24 >> 16)

	binary.LittleEndian.PutUint32(buf[4:8], uint32(rec.Ver))
	binary.LittleEndian.PutUint16(buf[8:10], rec.Hash)

	copy(buf[headerSize:], rec.Key)
	// final byte is left as the NUL pad

	return buf
}

// Decode reads one hint record from the front of b and returns the record
// plus the number of bytes consumed.
func Decode(b []byte) (Record, int, error) {
	if len(b) < headerSize+1 {
		return Record{}, 0, errors.New("hint: truncated record header")
	}

	ksz := b[0]
	upper24 := uint32(b[1]) | uint32(b[2])<<8 | uint32(b[3])<<16
	ver := int32(binary.LittleEndian.Uint32(b[4:8]))
	hash := binary.LittleEndian.Uint16(b[8:10])

	total := headerSize + int(ksz) + 1
	if len(b) < total {
		return Record{}, 0, errors.New("hint: truncated key")
	}

	key := make([]byte, ksz)
	copy(key, b[headerSize:headerSize+int(ksz)])

	return Record{
		KSize:   ksz,
		DataPos: int64(upper24) << 8,
		Ver:     ver,
		Hash:    hash,
		Key:     key,
	}, total, nil
}

// DecodeAll decodes every record in a (decompressed) hint-file body.
func DecodeAll(body []byte) ([]Record, error) {
	var records []Record
	for len(body) > 0 {
		rec, n, err := Decode(body)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
		body = body[n:]
	}
	return records, nil
}

// PathFor derives a hint file's path from its data file's path, replacing
// the ".data" suffix with "hint.qlz".
func PathFor(dataPath string) string {
	dir, base := filepath.Split(dataPath)
	base = strings.TrimSuffix(base, ".data")
	return filepath.Join(dir, base+"hint.qlz")
}

// Write builds the hint file for records and writes it to path, as the
// codec's compressed form of the concatenation of each record's packed
// encoding. The hint file is always written compressed, regardless of how
// it was produced.
func Write(path string, records []Record, codec compress.Codec) error {
	var buf bytes.Buffer
	for _, rec := range records {
		buf.Write(Encode(rec))
	}

	compressed := codec.Compress(buf.Bytes())

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, compressed, 0o644); err != nil {
		return errors.Wrapf(err, "hint: write temp file %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrapf(err, "hint: rename %s to %s", tmp, path)
	}
	return nil
}

// Read loads and decompresses a hint file, returning its decoded records.
func Read(path string, codec compress.Codec) ([]Record, error) {
	compressed, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "hint: read %s", path)
	}

	body, err := codec.Decompress(compressed)
	if err != nil {
		return nil, errors.Wrapf(err, "hint: decompress %s", path)
	}

	return DecodeAll(body)
}
