package quorum

import "errors"

// ErrNoReplicas is returned by Set when the key's bucket owns no
// replicas at all.
var ErrNoReplicas = errors.New("quorum: key's bucket has no replicas")

// ErrQuorumNotReached is returned by Set when fewer than W writes
// succeeded and the reconciliation read did not confirm the value had
// already landed.
var ErrQuorumNotReached = errors.New("quorum: write quorum not reached")
