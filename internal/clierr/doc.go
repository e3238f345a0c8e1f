// Package clierr attaches process exit codes to CLI errors.
package clierr
