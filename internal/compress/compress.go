// Package compress wraps the opaque byte-to-byte compression codec used by
// the hint-file sidecar and by compressed record values. The codec is
// treated as an external collaborator whose only observable contract is
// "compress bytes in, get smaller bytes out, and back". The Codec interface
// keeps that boundary explicit so the concrete algorithm can be swapped
// without touching callers.
package compress

import "github.com/golang/snappy"

// Codec is the opaque compress/decompress boundary used by the hint file
// format and by the record codec's value-compression flag.
type Codec interface {
	// Compress returns the compressed form of src. It never fails: any
	// input, including the empty slice, has a valid compressed encoding.
	Compress(src []byte) []byte
	// Decompress reverses Compress. It fails if src is not a valid
	// encoding produced by Compress.
	Decompress(src []byte) ([]byte, error)
}

// snappyCodec backs Codec with github.com/golang/snappy.
type snappyCodec struct{}

// New returns the codec used by the rest of this module.
func New() Codec {
	return snappyCodec{}
}

func (snappyCodec) Compress(src []byte) []byte {
	return snappy.Encode(nil, src)
}

func (snappyCodec) Decompress(src []byte) ([]byte, error) {
	return snappy.Decode(nil, src)
}
