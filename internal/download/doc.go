// Package download implements the task queue and dispatcher.
//
// A single goroutine (Dispatcher.Run) owns the live task table, the FIFO
// queue and the running counter. Public methods and runner callbacks hand
// closures to that goroutine, so no locks guard the dispatcher state. Status
// is persisted before the in-memory state changes; a failed write leaves the
// live table untouched.
package download
