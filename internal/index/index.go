// Package index builds per-file key indexes by scanning data files or, when
// permitted, decoding their hint-file sidecars.
package index

import (
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/beansdb-go/dkv/internal/compress"
	"github.com/beansdb-go/dkv/internal/hint"
	"github.com/beansdb-go/dkv/internal/logging"
	"github.com/beansdb-go/dkv/internal/record"
	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/sourcegraph/conc/pool"
)

var log = logging.Get("index")

// Entry is the per-key bookkeeping the planner and compactor need.
type Entry struct {
	DataPos int64
	CRC     uint32
	Ver     int32
	TStamp  int32
	KSize   uint32
	VSize   uint32
	Hash    uint32 // full 32-bit content hash; hint-sourced entries only carry the low 16 bits
}

// FileIndex is one data file's key -> Entry map, plus its path for later
// rewriting.
type FileIndex struct {
	Path    string
	Entries map[string]Entry
}

// ListDataFiles returns the sorted (lexicographic by filename, i.e.
// creation order by naming convention) list of *.data files in dir.
func ListDataFiles(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.data"))
	if err != nil {
		return nil, errors.Wrapf(err, "index: glob %s", dir)
	}
	sort.Strings(matches)
	return matches, nil
}

// BuildOptions controls how a file's index is built.
type BuildOptions struct {
	// Codec decompresses the hint file and any compressed record values.
	Codec compress.Codec
	// AllowHint permits reading ksz/ver/hash/datapos from the hint file
	// instead of rescanning the data file. Only safe when no expiry
	// policy is active, since the hint file carries no tstamp.
	AllowHint bool
}

// BuildFileIndex builds the index for a single data file.
func BuildFileIndex(path string, opts BuildOptions) (*FileIndex, error) {
	if opts.AllowHint {
		hintPath := hint.PathFor(path)
		if _, err := os.Stat(hintPath); err == nil {
			idx, err := buildFromHint(path, hintPath, opts.Codec)
			if err == nil {
				return idx, nil
			}
			log.Warnf("hint-based index for %s failed (%v), falling back to full scan", path, err)
		}
	}
	return buildFromScan(path, opts.Codec)
}

func buildFromHint(dataPath, hintPath string, codec compress.Codec) (*FileIndex, error) {
	records, err := hint.Read(hintPath, codec)
	if err != nil {
		return nil, err
	}

	entries := make(map[string]Entry, len(records))
	for _, r := range records {
		entries[string(r.Key)] = Entry{
			DataPos: r.DataPos,
			Ver:     r.Ver,
			KSize:   uint32(r.KSize),
			Hash:    uint32(r.Hash), // low 16 bits only
		}
	}

	return &FileIndex{Path: dataPath, Entries: entries}, nil
}

func buildFromScan(path string, codec compress.Codec) (*FileIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "index: open %s", path)
	}
	defer f.Close()

	r, err := record.NewReader(f, codec)
	if err != nil {
		return nil, err
	}

	entries := make(map[string]Entry)
	for {
		rec, err := r.Next()
		if err == record.ErrInvalidRecord {
			break
		}
		if err != nil {
			log.Warnf("scan of %s stopped: %v", path, err)
			break
		}

		entries[string(rec.Key)] = Entry{
			DataPos: rec.DataPos,
			CRC:     rec.CRC,
			Ver:     rec.Ver,
			TStamp:  rec.TStamp,
			KSize:   rec.KSize,
			VSize:   rec.VSize,
			Hash:    rec.Hash,
		}
	}

	return &FileIndex{Path: path, Entries: entries}, nil
}

// BuildAll builds per-file indexes for every path, scanning files
// concurrently (bounded to GOMAXPROCS workers) and returning them in the
// same order as paths.
func BuildAll(paths []string, opts BuildOptions) ([]*FileIndex, error) {
	results := xsync.NewMapOf[int, *FileIndex]()

	p := pool.New().WithMaxGoroutines(runtime.GOMAXPROCS(0)).WithErrors()
	for i, path := range paths {
		i, path := i, path
		p.Go(func() error {
			idx, err := BuildFileIndex(path, opts)
			if err != nil {
				return errors.Wrapf(err, "index: build %s", path)
			}
			results.Store(i, idx)
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}

	out := make([]*FileIndex, len(paths))
	for i := range paths {
		idx, _ := results.Load(i)
		out[i] = idx
	}
	return out, nil
}

// Tag returns the canonical identifier for a data file used across the
// planner and compactor: its base name without the .data suffix.
func Tag(path string) string {
	return strings.TrimSuffix(filepath.Base(path), ".data")
}
