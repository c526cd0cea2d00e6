package compact

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/beansdb-go/dkv/internal/compress"
	"github.com/beansdb-go/dkv/internal/expiry"
	"github.com/beansdb-go/dkv/internal/hint"
	"github.com/beansdb-go/dkv/internal/index"
	"github.com/beansdb-go/dkv/internal/record"
	"github.com/pkg/errors"
)

// Options bundles the parameters needed to run the compactor's various
// modes over one directory, threaded explicitly through the planner and
// compactor rather than held as shared mutable state.
type Options struct {
	Dir    string
	Codec  compress.Codec
	Policy *expiry.Policy
	Now    int64
}

// Run scans dir, plans a compaction, and rewrites every file the plan
// marks as needing it. It returns the per-file stats for files that were
// actually rewritten; files with nothing to drop are left untouched.
func Run(opts Options) ([]Stats, error) {
	paths, err := index.ListDataFiles(opts.Dir)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		log.Infof("no data files in %s", opts.Dir)
		return nil, nil
	}

	// A hint-only index build is unsafe once an expiry policy is active,
	// since the hint file carries no tstamp.
	indexes, err := index.BuildAll(paths, index.BuildOptions{
		Codec:     opts.Codec,
		AllowHint: opts.Policy.Empty(),
	})
	if err != nil {
		return nil, err
	}

	plan := Build(indexes, opts.Policy, opts.Now)

	var allStats []Stats
	for _, fileIndex := range indexes {
		tag := index.Tag(fileIndex.Path)
		if !plan.Files[tag] {
			continue
		}
		stats, err := RewriteFile(fileIndex, plan, opts.Codec)
		if err != nil {
			// Fatal to this file only; the rest of the batch continues.
			log.Errorf("compaction of %s failed: %v", fileIndex.Path, err)
			continue
		}
		allStats = append(allStats, stats)
	}

	return allStats, nil
}

// LiveKey is one line of -p output.
type LiveKey struct {
	Key     string
	Ver     int32
	DataPos int64
}

// PrintLiveKeys lists every live key across dir's data files, in
// deterministic (file order, then ascending datapos) order.
func PrintLiveKeys(dir string, codec compress.Codec, w io.Writer) error {
	paths, err := index.ListDataFiles(dir)
	if err != nil {
		return err
	}

	for _, path := range paths {
		fileIndex, err := index.BuildFileIndex(path, index.BuildOptions{Codec: codec, AllowHint: true})
		if err != nil {
			log.Errorf("skipping %s: %v", path, err)
			continue
		}

		keys := make([]LiveKey, 0, len(fileIndex.Entries))
		for key, e := range fileIndex.Entries {
			keys = append(keys, LiveKey{Key: key, Ver: e.Ver, DataPos: e.DataPos})
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i].DataPos < keys[j].DataPos })

		for _, k := range keys {
			fmt.Fprintf(w, "%s\t%d\t%d\n", k.Key, k.Ver, k.DataPos)
		}
	}

	return nil
}

// BuildHints rebuilds the hint file for every data file in dir, replacing
// any existing hint file.
func BuildHints(dir string, codec compress.Codec) error {
	paths, err := index.ListDataFiles(dir)
	if err != nil {
		return err
	}

	for _, path := range paths {
		if err := buildHintForFile(path, codec); err != nil {
			log.Errorf("building hint for %s failed: %v", path, err)
			continue
		}
	}
	return nil
}

func buildHintForFile(path string, codec compress.Codec) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "compact: open %s", path)
	}
	defer f.Close()

	r, err := record.NewReader(f, codec)
	if err != nil {
		return err
	}

	var records []hint.Record
	for {
		rec, err := r.Next()
		if err == record.ErrInvalidRecord || errors.Cause(err) == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		records = append(records, hint.Record{
			KSize:   uint8(rec.KSize),
			DataPos: rec.DataPos,
			Ver:     rec.Ver,
			Hash:    uint16(rec.Hash),
			Key:     rec.Key,
		})
	}

	return hint.Write(hint.PathFor(path), records, codec)
}

// Mismatch is one field-level disagreement found by Validate.
type Mismatch struct {
	Path  string
	Key   string
	Field string
	Got   string
	Want  string
}

// ValidateAgainstScan rescans every data file in dir and compares the
// result to its hint file on datapos and ver (the -c CLI mode).
func ValidateAgainstScan(dir string, codec compress.Codec) ([]Mismatch, error) {
	paths, err := index.ListDataFiles(dir)
	if err != nil {
		return nil, err
	}

	var mismatches []Mismatch
	for _, path := range paths {
		scanned, err := index.BuildFileIndex(path, index.BuildOptions{Codec: codec, AllowHint: false})
		if err != nil {
			log.Errorf("scan of %s failed: %v", path, err)
			continue
		}

		hinted, err := hint.Read(hint.PathFor(path), codec)
		if err != nil {
			log.Errorf("reading hint for %s failed: %v", path, err)
			continue
		}

		hintedByKey := make(map[string]hint.Record, len(hinted))
		for _, r := range hinted {
			hintedByKey[string(r.Key)] = r
		}

		for key, want := range scanned.Entries {
			got, ok := hintedByKey[key]
			if !ok {
				mismatches = append(mismatches, Mismatch{Path: path, Key: key, Field: "presence", Got: "missing from hint", Want: "present"})
				continue
			}
			if got.DataPos != want.DataPos {
				mismatches = append(mismatches, Mismatch{Path: path, Key: key, Field: "datapos", Got: fmt.Sprint(got.DataPos), Want: fmt.Sprint(want.DataPos)})
			}
			if got.Ver != want.Ver {
				mismatches = append(mismatches, Mismatch{Path: path, Key: key, Field: "ver", Got: fmt.Sprint(got.Ver), Want: fmt.Sprint(want.Ver)})
			}
		}
	}

	return mismatches, nil
}

// ValidateHintAgainstTmp compares a data file's current hint file against
// hint records rebuilt in memory from a fresh scan of the data file (no
// file is written) on datapos, ver, hash, and ksz — the -t CLI mode.
func ValidateHintAgainstTmp(dir string, codec compress.Codec) ([]Mismatch, error) {
	paths, err := index.ListDataFiles(dir)
	if err != nil {
		return nil, err
	}

	var mismatches []Mismatch
	for _, path := range paths {
		current, err := hint.Read(hint.PathFor(path), codec)
		if err != nil {
			log.Errorf("reading hint for %s failed: %v", path, err)
			continue
		}

		fresh, err := rebuildHintRecords(path, codec)
		if err != nil {
			log.Errorf("rebuilding hint for %s failed: %v", path, err)
			continue
		}

		freshByKey := make(map[string]hint.Record, len(fresh))
		for _, r := range fresh {
			freshByKey[string(r.Key)] = r
		}

		for _, want := range current {
			got, ok := freshByKey[string(want.Key)]
			if !ok {
				mismatches = append(mismatches, Mismatch{Path: path, Key: string(want.Key), Field: "presence", Got: "missing from rescan", Want: "present"})
				continue
			}
			if got.DataPos != want.DataPos {
				mismatches = append(mismatches, Mismatch{Path: path, Key: string(want.Key), Field: "datapos", Got: fmt.Sprint(got.DataPos), Want: fmt.Sprint(want.DataPos)})
			}
			if got.Ver != want.Ver {
				mismatches = append(mismatches, Mismatch{Path: path, Key: string(want.Key), Field: "ver", Got: fmt.Sprint(got.Ver), Want: fmt.Sprint(want.Ver)})
			}
			if got.Hash != want.Hash {
				mismatches = append(mismatches, Mismatch{Path: path, Key: string(want.Key), Field: "hash", Got: fmt.Sprint(got.Hash), Want: fmt.Sprint(want.Hash)})
			}
			if got.KSize != want.KSize {
				mismatches = append(mismatches, Mismatch{Path: path, Key: string(want.Key), Field: "ksize", Got: fmt.Sprint(got.KSize), Want: fmt.Sprint(want.KSize)})
			}
		}
	}

	return mismatches, nil
}

func rebuildHintRecords(path string, codec compress.Codec) ([]hint.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "compact: open %s", path)
	}
	defer f.Close()

	r, err := record.NewReader(f, codec)
	if err != nil {
		return nil, err
	}

	var records []hint.Record
	for {
		rec, err := r.Next()
		if err == record.ErrInvalidRecord || errors.Cause(err) == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		records = append(records, hint.Record{
			KSize:   uint8(rec.KSize),
			DataPos: rec.DataPos,
			Ver:     rec.Ver,
			Hash:    uint16(rec.Hash),
			Key:     rec.Key,
		})
	}
	return records, nil
}
