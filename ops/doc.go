// Package ops provides net/http handlers for operating a running ztick loop.
//
// The handlers read scheduler snapshots published by the loop goroutine, so they never touch the
// single-goroutine scheduler directly. Writes (stopping a task) go through ztick.Loop.Do.
//
// # Formats
//
// Handlers render text by default. The default can be changed with options and overridden per
// request with ?format=text or ?format=json. Text output is line-based and tab-separated:
//
//	task	7	name	wave
//	task	7	state	running
//	queue	update	realtime	pending	3
//
// # What ops provides
//
//   - health: HealthzHandler (liveness), ReadyzHandler (readiness checks)
//   - tasks: TasksSnapshotHandler, QueuesSnapshotHandler, TaskStopHandler
//   - logging: LogLevelGetHandler, LogLevelSetHandler (slog.LevelVar)
//   - NewRouter: all of the above on a chi router with request IDs, access logs and an optional
//     bearer token
//
// # Security notes
//
// Task snapshots expose task names, tags and error messages. Mount these handlers behind
// authentication (RouterConfig.Token or your own middleware) and restrict stops with
// WithTaskAllowNames or WithTaskAllowPrefixes.
package ops
