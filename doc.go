// Package coretask runs periodic tasks on a fixed pool of logical cores and
// lets them update two shared counters under different disciplines: a
// blocking counter guarded by a try-acquire mutex, where contention means the
// update is skipped, and a critical counter guarded by a cross-core spinlock,
// where every update lands.
//
// The parameterless bootstrap starts the reference design:
//
//	srv, err := coretask.Start()
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer srv.Stop()
//
// A Service can also be configured from YAML with LoadConfig and WithConfig,
// optionally adding the sensor event loop and a SQLite observation journal.
package coretask
