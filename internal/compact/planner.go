// Package compact implements the compaction planner and compactor: the
// tool that decides which records across a directory's data files are
// obsolete, and rewrites the affected files to drop them.
package compact

import (
	"github.com/beansdb-go/dkv/internal/expiry"
	"github.com/beansdb-go/dkv/internal/index"
	"github.com/beansdb-go/dkv/internal/logging"
)

var log = logging.Get("compact")

// Reason codes a delete-set entry's cause.
type Reason int

const (
	// ReasonSuperseded marks a record obsoleted by a newer write to the
	// same key (including the newer write being a tombstone).
	ReasonSuperseded Reason = 1
	// ReasonExpired marks a record dropped by the expiry policy.
	ReasonExpired Reason = 2
)

// DeleteKey identifies one obsolete occurrence of a key in a specific
// file's version history.
type DeleteKey struct {
	Tag string
	Key string
	Ver int32
}

// Plan is the output of planning a compaction run: which (tag,key,ver)
// occurrences to drop and from where, and which files need rewriting at
// all.
type Plan struct {
	Delete map[DeleteKey]Reason
	Files  map[string]bool // tag -> needs rewrite
}

type latestEntry struct {
	tag string
	ver int32
}

// Build runs the compaction planner over per-file indexes, which must
// already be in ascending file order (the same order index.ListDataFiles
// returns). now is the evaluation time for the expiry policy, in unix
// seconds; policy may be nil or empty to disable expiry.
func Build(indexes []*index.FileIndex, policy *expiry.Policy, now int64) *Plan {
	plan := &Plan{
		Delete: make(map[DeleteKey]Reason),
		Files:  make(map[string]bool),
	}

	latest := make(map[string]latestEntry)

	for _, fileIndex := range indexes {
		tag := index.Tag(fileIndex.Path)

		for key, rec := range fileIndex.Entries {
			if prev, ok := latest[key]; ok {
				// A later file always supersedes an earlier one for the
				// same key, regardless of the numeric version — file
				// order is the version order for cross-file conflicts.
				plan.markDelete(DeleteKey{Tag: prev.tag, Key: key, Ver: prev.ver}, ReasonSuperseded)
				plan.Files[prev.tag] = true
			} else if rec.Ver < 0 {
				plan.markDelete(DeleteKey{Tag: tag, Key: key, Ver: rec.Ver}, ReasonSuperseded)
				plan.Files[tag] = true
			} else if !policy.Empty() && policy.Expired(int64(rec.TStamp), int64(rec.VSize), now) {
				plan.markDelete(DeleteKey{Tag: tag, Key: key, Ver: rec.Ver}, ReasonExpired)
				plan.Files[tag] = true
			}

			latest[key] = latestEntry{tag: tag, ver: rec.Ver}
		}
	}

	return plan
}

func (p *Plan) markDelete(k DeleteKey, reason Reason) {
	p.Delete[k] = reason
}

// ShouldDrop reports whether a (tag,key,ver) occurrence is in the delete
// set, and if so why.
func (p *Plan) ShouldDrop(tag, key string, ver int32) (Reason, bool) {
	r, ok := p.Delete[DeleteKey{Tag: tag, Key: key, Ver: ver}]
	return r, ok
}
