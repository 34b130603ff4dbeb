// Package logging provides file-based logging with rotation for Dotmd.
// The CLI writes JSON logs to ~/.dotmd/logs/. By default (without --debug)
// it logs at info level to the file only; with --debug it logs at debug
// level to both the file and stderr.
package logging
