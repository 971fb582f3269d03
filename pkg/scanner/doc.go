// Package scanner checks a list of member identifiers against the lookup
// service in small concurrent batches.
//
// The provider throttles aggressively, so the scheduler keeps the request
// rate low and predictable: at most BatchSize lookups are in flight, batch
// N+1 never starts before batch N has completed, and a fixed delay separates
// consecutive batches. A rate-limit signal from any lookup stops the scan at
// the end of the batch in which it was observed.
//
// Example usage:
//
//	client, _ := lookup.New(lookup.DefaultConfig(apiKey))
//	sched := scanner.NewScheduler(client, scanner.DefaultConfig())
//	res := sched.Scan(ctx, ids, progress.NewLogSink(log.Logger))
//
// Scan never fails. Per-identifier transport faults end up in the Errors
// list of the returned snapshot.
package scanner
