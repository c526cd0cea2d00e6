package shard

import (
	"sort"
	"testing"

	"github.com/beansdb-go/dkv/internal/fnvhash"
	"github.com/beansdb-go/dkv/lib/replica"
)

type fakeClient struct {
	endpoint string
}

func (f *fakeClient) Endpoint() string                          { return f.endpoint }
func (f *fakeClient) Get(key string) ([]byte, bool, error)      { return nil, false, nil }
func (f *fakeClient) Set(key string, value []byte) error        { return nil }

func newFakeReplica(endpoint string) replica.Client {
	return &fakeClient{endpoint: endpoint}
}

func TestBucketCoversEntireHashSpace(t *testing.T) {
	r := Init(Config{
		Servers: map[string][]int{
			"a:1": {0, 1, 2, 3, 4, 5, 6, 7},
			"b:2": {8, 9, 10, 11, 12, 13, 14, 15},
		},
		BucketsCount: 16,
		NewReplica:   newFakeReplica,
	})

	if got := r.Bucket(""); got < 0 || got >= 16 {
		t.Fatalf("bucket(\"\") = %d, out of range", got)
	}

	// Every bucket ID must be reachable by some key: 10000 distinct keys
	// must between them land in every bucket across the space.
	seen := make(map[int]bool)
	for i := 0; i < 10000; i++ {
		key := string(rune(i))
		seen[r.Bucket(key)] = true
	}
	if len(seen) != r.BucketsCount() {
		t.Fatalf("only %d of %d buckets were ever selected", len(seen), r.BucketsCount())
	}
}

func TestEveryBucketSortedAscendingByEndpointHash(t *testing.T) {
	r := Init(Config{
		Servers: map[string][]int{
			"z:1": {0, 15},
			"a:2": {0, 15},
			"m:3": {0, 15},
		},
		BucketsCount: 16,
		NewReplica:   newFakeReplica,
	})

	// Check every bucket that has replicas, including the last one --
	// the off-by-one in the original sort loop left buckets_count-1
	// unsorted.
	for id := 0; id < r.BucketsCount(); id++ {
		list := r.buckets[id]
		if len(list) < 2 {
			continue
		}
		hashes := make([]uint32, len(list))
		for i, c := range list {
			hashes[i] = fnvhash.SumString32(c.Endpoint())
		}
		if !sort.SliceIsSorted(hashes, func(i, j int) bool { return hashes[i] < hashes[j] }) {
			t.Errorf("bucket %d not sorted ascending: %v", id, hashes)
		}
	}
}

func TestLookupReturnsOwningBucketReplicas(t *testing.T) {
	r := Init(Config{
		Servers: map[string][]int{
			"a:1": {0},
			"b:2": {1},
		},
		BucketsCount: 2,
		NewReplica:   newFakeReplica,
	})

	for _, key := range []string{"x", "y", "z", "hello", "world"} {
		bucket := r.Bucket(key)
		got := r.Lookup(key)
		want := r.buckets[bucket]
		if len(got) != len(want) {
			t.Errorf("key %q: Lookup returned %d replicas, bucket %d has %d", key, len(got), bucket, len(want))
		}
	}
}

func TestOutOfRangeBucketIgnored(t *testing.T) {
	r := Init(Config{
		Servers: map[string][]int{
			"a:1": {0, 99},
		},
		BucketsCount: 4,
		NewReplica:   newFakeReplica,
	})

	for id := 1; id < 4; id++ {
		if len(r.buckets[id]) != 0 {
			t.Errorf("bucket %d = %v, want empty", id, r.buckets[id])
		}
	}
	if len(r.buckets[0]) != 1 {
		t.Errorf("bucket 0 = %v, want 1 replica", r.buckets[0])
	}
}
