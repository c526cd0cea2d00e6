// Package shard implements the consistent-hash sharding router: it maps
// keys to an ordered list of replicas via a fixed power-of-two partition
// of the 32-bit hash space.
package shard

import (
	"sort"

	"github.com/beansdb-go/dkv/internal/fnvhash"
	"github.com/beansdb-go/dkv/internal/logging"
	"github.com/beansdb-go/dkv/lib/replica"
)

var log = logging.Get("shard")

// DefaultBucketsCount is the default number of buckets partitioning the
// 32-bit hash space.
const DefaultBucketsCount = 16

// Config describes which endpoints own which buckets.
type Config struct {
	// Servers maps an endpoint address to the bucket IDs it owns.
	Servers map[string][]int
	// BucketsCount is the total number of buckets; must evenly divide
	// 2^32. Zero means DefaultBucketsCount.
	BucketsCount int
	// NewReplica constructs the replica.Client for an endpoint. Nil
	// means replica.New (a real memcached adapter); tests override this
	// to inject fakes.
	NewReplica func(endpoint string) replica.Client
}

// Router owns every replica descriptor and the bucket -> ordered replica
// list mapping built from Config. The router holds no mutable state
// after construction: buckets are fixed at Init time and never
// rebalanced.
type Router struct {
	bucketsCount int
	bucketSize   uint64
	buckets      [][]replica.Client
	replicas     map[string]replica.Client // endpoint -> owned descriptor
}

// Init builds a Router from cfg. A replica client is constructed once
// per endpoint and registered into every bucket that endpoint owns.
// Construction does not contact the node, so an unreachable endpoint's
// replica client is still present in the bucket list after registration
// and simply fails later calls.
func Init(cfg Config) *Router {
	bucketsCount := cfg.BucketsCount
	if bucketsCount <= 0 {
		bucketsCount = DefaultBucketsCount
	}

	newReplica := cfg.NewReplica
	if newReplica == nil {
		newReplica = replica.New
	}

	r := &Router{
		bucketsCount: bucketsCount,
		bucketSize:   (uint64(1) << 32) / uint64(bucketsCount),
		buckets:      make([][]replica.Client, bucketsCount),
		replicas:     make(map[string]replica.Client, len(cfg.Servers)),
	}

	for endpoint, bucketIDs := range cfg.Servers {
		client := newReplica(endpoint)
		r.replicas[endpoint] = client

		for _, id := range bucketIDs {
			if id < 0 || id >= bucketsCount {
				log.Warnf("endpoint %s lists out-of-range bucket %d (buckets_count=%d), ignoring", endpoint, id, bucketsCount)
				continue
			}
			r.buckets[id] = append(r.buckets[id], client)
		}
	}

	// Sort every bucket's replica list by FNV-1a of the endpoint string,
	// including the last bucket -- a partial sort that skips one bucket
	// at either end would silently break the "ascending by endpoint
	// hash" invariant callers rely on for deterministic replica order.
	for i := range r.buckets {
		sortReplicas(r.buckets[i])
	}

	return r
}

func sortReplicas(replicas []replica.Client) {
	sort.SliceStable(replicas, func(i, j int) bool {
		return fnvhash.SumString32(replicas[i].Endpoint()) < fnvhash.SumString32(replicas[j].Endpoint())
	})
}

// Lookup returns the ordered replica list for key's bucket. The returned
// slice must not be mutated by callers.
func (r *Router) Lookup(key string) []replica.Client {
	bucket := uint64(fnvhash.SumString32(key)) / r.bucketSize
	return r.buckets[bucket]
}

// Bucket returns the bucket ID a key maps to, mainly for diagnostics and
// tests.
func (r *Router) Bucket(key string) int {
	return int(uint64(fnvhash.SumString32(key)) / r.bucketSize)
}

// BucketsCount returns the number of buckets the router was initialized
// with.
func (r *Router) BucketsCount() int {
	return r.bucketsCount
}

// Replicas returns every registered replica client, keyed by endpoint.
// Used for teardown.
func (r *Router) Replicas() map[string]replica.Client {
	return r.replicas
}
