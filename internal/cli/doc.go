// Package cli wires configuration, credentials and the report pipeline into
// the sprintpulse cobra commands. Errors returned by the commands carry a
// process exit code; see package clierr.
package cli
