// Package types defines the core data structures shared by the master and worker processes.
//
// This package contains the wire types of the load-testing harness, including:
//   - Test configuration and worker job states
//   - Metrics produced by virtual users
//   - Running statistics buckets and progress snapshots
//   - Worker registration records
package types
