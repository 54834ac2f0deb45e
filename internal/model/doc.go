package model

// Package model defines domain data structures shared across the app: persisted
// download items, transient tasks, worker outcomes and the status state machine.
// Structures are plain values; every status change goes through Transition.
