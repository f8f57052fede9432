// Package progress aggregates per-task iteration statistics of the coretask
// scheduler. The counters are what tests and the CLI compare the shared
// counters against: a spinlock counter must equal the number of iterations
// of every task that updates it.
package progress
