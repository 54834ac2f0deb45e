// Package runner launches external download workers and reports how they end.
//
// A Runner owns no queue state. It picks a Backend by video type, tags each
// invocation with a unique run id and reports progress and exit through
// callbacks that the caller correlates by that id.
package runner
