// Package notify fans dispatcher events out to subscribers.
//
// Every sink is fire-and-forget: Emit never blocks on a slow consumer,
// so the dispatcher loop is never held up by delivery.
package notify
