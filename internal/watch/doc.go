// Package watch synchronises client-side state with a long-running scan job.
//
// Two cooperating state machines are bound to a single job id:
//
//   - StatusTracker polls the job status at a fixed interval while the job is
//     pending or running, publishes every change, and stops for good once a
//     terminal status (complete or failed) is observed, the caller cancels, or
//     a status fetch fails.
//   - ResultPager fetches findings one page at a time for a completed job and
//     only ever delivers the response of the most recent request.
//
// Session wires the two together: when the tracker publishes complete, the
// pager is activated and page 1 is requested.
//
// # Concurrency
//
// Every network call runs on its own goroutine. Component state is guarded by
// a mutex and all decisions are taken under it. Each response carries the
// epoch it was issued with and is dropped unless that epoch is still current,
// so superseded, cancelled and disposed work never reaches a listener.
//
// Listeners are invoked sequentially, in publication order, on a delivery
// goroutine owned by the component. They may call back into the component.
//
// The tracker owns a single timer slot: at any instant there is at most one
// armed poll timer or one status fetch in flight, never both.
package watch
