// Package master implements the master node of the load-testing harness.
// The master keeps the worker registry, polls worker health, fans control
// commands out to every worker and aggregates the metrics workers stream back
// into live progress statistics.
package master
