// Package quorum implements the read/write quorum logic that sits on top
// of the sharding router: sequential reads with read-repair, and
// parallel writes with a reconciliation fallback.
package quorum

import (
	"bytes"

	"github.com/beansdb-go/dkv/internal/logging"
	"github.com/beansdb-go/dkv/lib/replica"
	"github.com/rcrowley/go-metrics"
	"github.com/sourcegraph/conc"
)

var log = logging.Get("quorum")

var (
	hitCounter    = metrics.GetOrRegisterCounter("quorum.get.hit", metrics.DefaultRegistry)
	missCounter   = metrics.GetOrRegisterCounter("quorum.get.miss", metrics.DefaultRegistry)
	repairCounter = metrics.GetOrRegisterCounter("quorum.get.repair", metrics.DefaultRegistry)
	writeOK       = metrics.GetOrRegisterCounter("quorum.set.ok", metrics.DefaultRegistry)
	writeFail     = metrics.GetOrRegisterCounter("quorum.set.fail", metrics.DefaultRegistry)
	reconciled    = metrics.GetOrRegisterCounter("quorum.set.reconciled", metrics.DefaultRegistry)
)

// Engine applies read/write quorum rules across an already-ordered
// replica list for a given key. It holds no state of its own: every call
// takes the replica list the sharding router produced for that key.
type Engine struct {
	// W is the number of successful writes required before a Set is
	// considered successful outright, without falling back to
	// reconciliation.
	W int
}

// New returns an Engine requiring w successful writes per Set.
func New(w int) *Engine {
	if w < 1 {
		w = 1
	}
	return &Engine{W: w}
}

// Get reads key from replicas in order, returning the first defined
// result. Earlier replicas that returned "not found" are repaired with
// the value found later in the list; repair failures are logged and
// otherwise ignored, since the data is still correct on the replicas
// that do have it.
func (e *Engine) Get(replicas []replica.Client, key string) ([]byte, bool, error) {
	var undefined []replica.Client

	for _, r := range replicas {
		value, ok, err := r.Get(key)
		if err != nil {
			log.Debugf("get %s@%s errored: %v", key, r.Endpoint(), err)
			continue
		}
		if !ok {
			undefined = append(undefined, r)
			continue
		}

		hitCounter.Inc(1)
		e.repair(undefined, key, value)
		return value, true, nil
	}

	missCounter.Inc(1)
	return nil, false, nil
}

func (e *Engine) repair(stale []replica.Client, key string, value []byte) {
	for _, r := range stale {
		if err := r.Set(key, value); err != nil {
			log.Debugf("read-repair of %s@%s failed: %v", key, r.Endpoint(), err)
			continue
		}
		repairCounter.Inc(1)
	}
}

// Set writes value to key on every replica concurrently, using
// sourcegraph/conc to bound the fan-out to one goroutine per replica. If
// fewer than W writes succeed, it falls back to a reconciliation read: it
// re-reads the key through Get and treats the write as successful if the
// stored value already matches, since a concurrent writer or a
// since-succeeded retry may have already landed it.
func (e *Engine) Set(replicas []replica.Client, key string, value []byte) error {
	if len(replicas) == 0 {
		return ErrNoReplicas
	}

	var wg conc.WaitGroup
	results := make([]error, len(replicas))
	for i, r := range replicas {
		i, r := i, r
		wg.Go(func() {
			results[i] = r.Set(key, value)
		})
	}
	wg.Wait()

	succeeded := 0
	for i, err := range results {
		if err != nil {
			log.Debugf("set %s@%s failed: %v", key, replicas[i].Endpoint(), err)
			continue
		}
		succeeded++
	}

	if succeeded >= e.W {
		writeOK.Inc(1)
		return nil
	}

	stored, ok, err := e.Get(replicas, key)
	if err == nil && ok && bytes.Equal(stored, value) {
		reconciled.Inc(1)
		return nil
	}

	writeFail.Inc(1)
	return ErrQuorumNotReached
}
