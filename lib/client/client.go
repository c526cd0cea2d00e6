// Package client combines the sharding router and the quorum engine into
// a single stateless key/value facade: one Get, one Set, no RPC layer of
// its own, since the facade runs the quorum logic in-process against
// each replica directly.
package client

import (
	"github.com/beansdb-go/dkv/internal/logging"
	"github.com/beansdb-go/dkv/lib/quorum"
	"github.com/beansdb-go/dkv/lib/replica"
	"github.com/beansdb-go/dkv/lib/shard"
)

var log = logging.Get("client")

// Config is the full set of constructor options.
type Config struct {
	// Servers maps an endpoint address to the bucket IDs it owns.
	Servers map[string][]int
	// BucketsCount is the total number of buckets. Zero means
	// shard.DefaultBucketsCount.
	BucketsCount int
	// W is the write quorum: how many replicas must accept a Set before
	// it is considered successful outright. Zero means 1.
	W int
	// NewReplica overrides replica construction, for tests.
	NewReplica func(endpoint string) replica.Client
}

// Client is the stateless facade applications use to read and write
// keys without knowing which replicas own them.
type Client struct {
	router *shard.Router
	quorum *quorum.Engine
}

// New builds a Client from cfg, constructing one replica.Client per
// endpoint and partitioning the hash space into cfg.BucketsCount
// buckets.
func New(cfg Config) *Client {
	router := shard.Init(shard.Config{
		Servers:      cfg.Servers,
		BucketsCount: cfg.BucketsCount,
		NewReplica:   cfg.NewReplica,
	})

	w := cfg.W
	if w < 1 {
		w = 1
	}

	log.Infof("client initialized: %d endpoints, %d buckets, W=%d", len(cfg.Servers), router.BucketsCount(), w)

	return &Client{
		router: router,
		quorum: quorum.New(w),
	}
}

// Get reads key, applying read-repair against any replica that reported
// absence before a defined result was found.
func (c *Client) Get(key string) ([]byte, bool, error) {
	replicas := c.router.Lookup(key)
	return c.quorum.Get(replicas, key)
}

// Set writes value to every replica owning key, requiring the
// configured write quorum (with reconciliation fallback) to succeed.
func (c *Client) Set(key string, value []byte) error {
	replicas := c.router.Lookup(key)
	return c.quorum.Set(replicas, key, value)
}

// Bucket returns the bucket ID key maps to, mainly for diagnostics.
func (c *Client) Bucket(key string) int {
	return c.router.Bucket(key)
}
