// Package scheduler runs periodic tasks on a fixed pool of logical cores.
//
// Each core is a goroutine locked to its own OS thread, optionally bound to a
// physical CPU. A core executes one iteration at a time, picking the highest
// priority iteration that is ready. Tasks are either pinned to a core or
// floating; floating tasks are placed on the least loaded core for every
// iteration, so consecutive iterations may run on different cores.
package scheduler
