// Package replica adapts a single memcached-protocol storage node to the
// minimal get/set contract the sharding router and quorum engine need.
// Construction never fails: no connection is made until the first call, so
// a descriptor for an unreachable node is kept in the bucket map like any
// other (the router never removes a replica at runtime) and its calls fail.
package replica

import (
	"github.com/beansdb-go/dkv/internal/logging"
	"github.com/bradfitz/gomemcache/memcache"
)

var log = logging.Get("replica")

// Client is the adapter contract the sharding router and quorum engine use
// to talk to one replica node.
type Client interface {
	// Get returns the value for key and whether it was found. An error
	// is returned only for conditions other than "key not present" --
	// callers treat both a returned error and a false "ok" as absence.
	Get(key string) (value []byte, ok bool, err error)
	// Set stores value under key.
	Set(key string, value []byte) error
	// Endpoint returns the node's address, used for bucket-list sort
	// ordering.
	Endpoint() string
}

// memcachedClient implements Client over github.com/bradfitz/gomemcache,
// the standard Go memcached client, as a single-node adapter.
type memcachedClient struct {
	endpoint string
	mc       *memcache.Client
}

// New constructs a Client for a single memcached endpoint
// ("host:port"). Construction never returns an error: a node that is
// unreachable right now may come back later, and the descriptor must
// still exist so the router can keep routing to it (and keep failing
// calls against it) without special-casing "never connected".
func New(endpoint string) Client {
	mc := memcache.New(endpoint)
	return &memcachedClient{endpoint: endpoint, mc: mc}
}

func (c *memcachedClient) Endpoint() string {
	return c.endpoint
}

func (c *memcachedClient) Get(key string) ([]byte, bool, error) {
	item, err := c.mc.Get(key)
	if err == memcache.ErrCacheMiss {
		return nil, false, nil
	}
	if err != nil {
		log.Debugf("get %s@%s failed: %v", key, c.endpoint, err)
		return nil, false, err
	}
	return item.Value, true, nil
}

func (c *memcachedClient) Set(key string, value []byte) error {
	err := c.mc.Set(&memcache.Item{Key: key, Value: value})
	if err != nil {
		log.Debugf("set %s@%s failed: %v", key, c.endpoint, err)
	}
	return err
}
