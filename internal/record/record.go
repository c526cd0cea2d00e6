// Package record implements the on-disk data-record codec: the 24-byte
// fixed header, key/value payload, and 256-byte alignment padding that make
// up a Beansdb-style append-only data file.
package record

import (
	"encoding/binary"
	"io"

	"github.com/beansdb-go/dkv/internal/compress"
	"github.com/beansdb-go/dkv/internal/fnvhash"
	"github.com/beansdb-go/dkv/internal/logging"
	"github.com/pkg/errors"
)

var log = logging.Get("record")

// HeaderSize is the fixed size, in bytes, of a record header.
const HeaderSize = 24

// Alignment is the byte boundary every record start and end is padded to.
const Alignment = 256

// FlagCompressed marks a record's value as compressed with the codec from
// the internal/compress package.
const FlagCompressed int32 = 0x00010000

// Header is the 24-byte fixed prefix of a data record.
type Header struct {
	CRC    uint32 // non-zero marks a valid record
	TStamp int32  // write time, unix seconds
	Flag   int32  // bit 0x00010000: value is compressed
	Ver    int32  // negative: tombstone
	KSize  uint32
	VSize  uint32
}

// Valid reports whether the header marks a live, readable record.
func (h Header) Valid() bool {
	return h.CRC != 0
}

// Tombstone reports whether this record is a deletion marker.
func (h Header) Tombstone() bool {
	return h.Ver < 0
}

// Compressed reports whether the record's value is stored compressed.
func (h Header) Compressed() bool {
	return h.Flag&FlagCompressed != 0
}

// Record is a fully decoded data-file record, plus the bookkeeping needed
// by the index builder and compactor: its byte offset in the file, its raw
// (on-disk, without padding) bytes, and the content hash of
// its decompressed value.
type Record struct {
	Header
	DataPos int64 // byte offset of the record's header in the file
	Key     []byte
	Value   []byte // decompressed value
	Hash    uint32 // fnvhash.ContentHash of Value

	// Raw is the unpadded header+key+value exactly as read from disk.
	// Compaction rewrites this slice verbatim — it never re-encodes a
	// record's payload, even when the value is compressed.
	Raw []byte
}

// PaddedSize rounds size up to the next multiple of Alignment.
func PaddedSize(size int) int {
	rem := size % Alignment
	if rem == 0 {
		return size
	}
	return size + (Alignment - rem)
}

// padLen returns the number of NUL padding bytes that follow a record of
// totalSize bytes (header+key+value) so the next record starts aligned.
func padLen(totalSize int) int {
	return (Alignment - totalSize%Alignment) % Alignment
}

// decodeHeader unpacks the 24-byte little-endian header.
func decodeHeader(b []byte) Header {
	return Header{
		CRC:    binary.LittleEndian.Uint32(b[0:4]),
		TStamp: int32(binary.LittleEndian.Uint32(b[4:8])),
		Flag:   int32(binary.LittleEndian.Uint32(b[8:12])),
		Ver:    int32(binary.LittleEndian.Uint32(b[12:16])),
		KSize:  binary.LittleEndian.Uint32(b[16:20]),
		VSize:  binary.LittleEndian.Uint32(b[20:24]),
	}
}

func encodeHeader(h Header, b []byte) {
	binary.LittleEndian.PutUint32(b[0:4], h.CRC)
	binary.LittleEndian.PutUint32(b[4:8], uint32(h.TStamp))
	binary.LittleEndian.PutUint32(b[8:12], uint32(h.Flag))
	binary.LittleEndian.PutUint32(b[12:16], uint32(h.Ver))
	binary.LittleEndian.PutUint32(b[16:20], h.KSize)
	binary.LittleEndian.PutUint32(b[20:24], h.VSize)
}

// Reader reads consecutive records from a data file.
type Reader struct {
	r     io.ReadSeeker
	codec compress.Codec
	pos   int64
}

// NewReader creates a Reader positioned at the current offset of r.
func NewReader(r io.ReadSeeker, codec compress.Codec) (*Reader, error) {
	pos, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, errors.Wrap(err, "record: determine start offset")
	}
	return &Reader{r: r, codec: codec, pos: pos}, nil
}

// ErrInvalidRecord is returned by Next when it encounters crc == 0, which
// marks the end of valid records in the file (the remainder is assumed to
// be trailing zeros left by a crash).
var ErrInvalidRecord = errors.New("record: invalid record (crc == 0)")

// Next reads the record starting at the reader's current position. On
// ErrInvalidRecord the reader has still advanced past the invalid header
// (but not attempted further padding skip, since total size is unknown);
// callers should stop scanning the file on this error.
func (rd *Reader) Next() (Record, error) {
	startPos := rd.pos

	var hdrBuf [HeaderSize]byte
	if _, err := io.ReadFull(rd.r, hdrBuf[:]); err != nil {
		return Record{}, errors.Wrap(err, "record: read header")
	}
	rd.pos += HeaderSize

	h := decodeHeader(hdrBuf[:])
	if !h.Valid() {
		log.Debugf("invalid record at position %d", startPos)
		return Record{}, ErrInvalidRecord
	}

	keyAndValue := make([]byte, int(h.KSize)+int(h.VSize))
	if _, err := io.ReadFull(rd.r, keyAndValue); err != nil {
		return Record{}, errors.Wrap(err, "record: read key/value")
	}
	rd.pos += int64(len(keyAndValue))

	key := keyAndValue[:h.KSize]
	rawValue := keyAndValue[h.KSize:]

	totalSize := HeaderSize + int(h.KSize) + int(h.VSize)

	value := rawValue
	if h.Compressed() {
		decompressed, err := rd.codec.Decompress(rawValue)
		if err != nil {
			return Record{}, errors.Wrapf(err, "record: decompress value at %d", startPos)
		}
		value = decompressed
	}

	raw := make([]byte, totalSize)
	copy(raw, hdrBuf[:])
	copy(raw[HeaderSize:], keyAndValue)

	rec := Record{
		Header:  h,
		DataPos: startPos,
		Key:     key,
		Value:   value,
		Hash:    fnvhash.ContentHash(value),
		Raw:     raw,
	}

	if pad := padLen(totalSize); pad > 0 {
		if _, err := rd.r.Seek(int64(pad), io.SeekCurrent); err != nil {
			return Record{}, errors.Wrap(err, "record: skip padding")
		}
		rd.pos += int64(pad)
	}

	return rec, nil
}

// Pos returns the reader's current byte offset.
func (rd *Reader) Pos() int64 {
	return rd.pos
}

// Writer appends raw record bytes, preserving the original encoding of a
// record (header+key+value unchanged) and re-deriving only the padding.
type Writer struct {
	w   io.Writer
	pos int64
}

// NewWriter creates a Writer that tracks byte offsets starting at startPos
// (the current length of the destination file).
func NewWriter(w io.Writer, startPos int64) *Writer {
	return &Writer{w: w, pos: startPos}
}

// WriteRaw writes a record's raw header+key+value bytes followed by NUL
// padding to the next Alignment boundary, and returns the offset the
// record was written at.
func (w *Writer) WriteRaw(raw []byte) (int64, error) {
	pos := w.pos
	if _, err := w.w.Write(raw); err != nil {
		return 0, errors.Wrap(err, "record: write raw record")
	}
	w.pos += int64(len(raw))

	if pad := padLen(len(raw)); pad > 0 {
		if _, err := w.w.Write(make([]byte, pad)); err != nil {
			return 0, errors.Wrap(err, "record: write padding")
		}
		w.pos += int64(pad)
	}

	return pos, nil
}

// Encode builds the raw header+key+value bytes for a fresh record (used by
// tests and by tools that synthesize records rather than copy them
// through). The value is written uncompressed. When h.CRC is zero, crc is
// computed over everything after the crc field (header tail, key, value).
func Encode(h Header, key, value []byte) []byte {
	h.KSize = uint32(len(key))
	h.VSize = uint32(len(value))

	buf := make([]byte, HeaderSize+len(key)+len(value))
	encodeHeader(h, buf)
	copy(buf[HeaderSize:], key)
	copy(buf[HeaderSize+len(key):], value)

	if h.CRC == 0 {
		binary.LittleEndian.PutUint32(buf[0:4], crc(buf[4:]))
	}

	return buf
}

// crc is a simple non-zero checksum over header-tail+key+value, sufficient
// to satisfy the "crc != 0 marks a valid record" invariant for
// synthetically constructed records in tests.
func crc(b []byte) uint32 {
	h := fnvhash.Sum32(b)
	if h == 0 {
		return 1
	}
	return h
}
