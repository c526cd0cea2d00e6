package compact

import (
	"io"
	"os"
	"path/filepath"

	"github.com/VictoriaMetrics/metrics"
	"github.com/beansdb-go/dkv/internal/compress"
	"github.com/beansdb-go/dkv/internal/hint"
	"github.com/beansdb-go/dkv/internal/index"
	"github.com/beansdb-go/dkv/internal/record"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	deletedCounter = metrics.NewCounter("dkv_compact_deleted_total")
	expiredCounter = metrics.NewCounter("dkv_compact_expired_total")
	keptCounter    = metrics.NewCounter("dkv_compact_kept_total")
)

// Stats summarizes one file's compaction outcome.
type Stats struct {
	Path    string
	Deleted int64
	Expired int64
	Kept    int64
}

// RewriteFile compacts a single data file according to plan, rewriting its
// data file and hint file in place. An I/O error before the data file is
// renamed into place leaves the original data and hint files untouched; on
// any error the temp files linger for inspection/retry.
func RewriteFile(fileIndex *index.FileIndex, plan *Plan, codec compress.Codec) (Stats, error) {
	path := fileIndex.Path
	tag := index.Tag(path)

	unlock, err := lockFile(path)
	if err != nil {
		return Stats{}, errors.Wrapf(err, "compact: lock %s", path)
	}
	defer unlock()

	in, err := os.Open(path)
	if err != nil {
		return Stats{}, errors.Wrapf(err, "compact: open %s", path)
	}
	defer in.Close()

	tmpDataPath := filepath.Join(filepath.Dir(path), tag+".data."+uuid.NewString()+".tmp")
	outData, err := os.Create(tmpDataPath)
	if err != nil {
		return Stats{}, errors.Wrapf(err, "compact: create temp data file for %s", path)
	}

	stats, hintRecords, err := rewriteRecords(in, outData, fileIndex, plan, tag, codec)
	closeErr := outData.Close()
	if err != nil {
		return Stats{}, errors.Wrapf(err, "compact: rewrite %s", path)
	}
	if closeErr != nil {
		return Stats{}, errors.Wrapf(closeErr, "compact: close temp data file for %s", path)
	}

	hintPath := hint.PathFor(path)
	tmpHintPath := hintPath + "." + uuid.NewString() + ".tmp"
	if err := hint.Write(tmpHintPath, hintRecords, codec); err != nil {
		return Stats{}, errors.Wrapf(err, "compact: write temp hint file for %s", path)
	}

	// Rename data first, then hint: the hint file must never be newer
	// than the data file it describes after a successful compaction, so
	// if the process dies between the two renames the data file is still
	// internally consistent and a rebuild of the hint (-b) recovers.
	if err := os.Rename(tmpDataPath, path); err != nil {
		return Stats{}, errors.Wrapf(err, "compact: rename data file %s", path)
	}
	if err := os.Rename(tmpHintPath, hintPath); err != nil {
		return Stats{}, errors.Wrapf(err, "compact: rename hint file %s", hintPath)
	}

	deletedCounter.Add(int(stats.Deleted))
	expiredCounter.Add(int(stats.Expired))
	keptCounter.Add(int(stats.Kept))

	log.Infof("compacted %s: kept=%d deleted=%d expired=%d", path, stats.Kept, stats.Deleted, stats.Expired)

	return stats, nil
}

func rewriteRecords(in *os.File, out *os.File, fileIndex *index.FileIndex, plan *Plan, tag string, codec compress.Codec) (Stats, []hint.Record, error) {
	r, err := record.NewReader(in, codec)
	if err != nil {
		return Stats{}, nil, err
	}

	w := record.NewWriter(out, 0)

	var stats Stats
	stats.Path = fileIndex.Path

	var hintRecords []hint.Record

	for {
		rec, err := r.Next()
		if err == record.ErrInvalidRecord || errors.Cause(err) == io.EOF {
			break
		}
		if err != nil {
			return Stats{}, nil, err
		}

		key := string(rec.Key)

		// fileIndex.Entries already collapsed repeat writes to the same
		// key within this file down to the last one; any occurrence
		// whose position doesn't match that survivor is an earlier write
		// to the same key in the same file and is always superseded,
		// independent of the planner's cross-file delete set.
		if entry, ok := fileIndex.Entries[key]; !ok || entry.DataPos != rec.DataPos {
			stats.Deleted++
			continue
		}

		if reason, drop := plan.ShouldDrop(tag, key, rec.Ver); drop {
			switch reason {
			case ReasonExpired:
				stats.Expired++
			default:
				stats.Deleted++
			}
			continue
		}

		newPos, err := w.WriteRaw(rec.Raw)
		if err != nil {
			return Stats{}, nil, err
		}
		stats.Kept++

		hintRecords = append(hintRecords, hint.Record{
			KSize:   uint8(rec.KSize),
			DataPos: newPos,
			Ver:     rec.Ver,
			Hash:    uint16(rec.Hash),
			Key:     rec.Key,
		})
	}

	return stats, hintRecords, nil
}
