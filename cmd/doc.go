// Package cmd implements the command-line interface for dkv: a
// client command group for ad hoc get/set against a cluster, and a
// compact command implementing the offline data file compactor.
//
// The package is organized into subpackages:
//
//   - client: ad hoc get/set against a cluster described by a servers
//     config file
//   - compact: the offline compactor (merge, print, build-hints, check,
//     test-hint)
//   - util: shared command-line helpers (internal use)
//
// See dkv -help for a list of all commands.
package cmd
