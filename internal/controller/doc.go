// Package controller exposes the download operations to the IPC layer.
//
// Handlers returns a table of command name to handler; transports decode
// nothing themselves and pass the raw JSON parameters through.
package controller
