// Package app wires application dependencies for the CLI.
//
// It builds the concrete stores, relay client and high-level services from
// Config, exposing them via the Wire struct for commands to use. Simulate
// runs a complete two-party conversation in process.
package app
