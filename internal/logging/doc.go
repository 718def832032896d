// Package logging provides file-based JSON logging with size-based
// rotation, optionally mirrored to stderr (Config.WriteToStderr).
//
// The greppy CLI sets it up for every command, the daemon included: logs
// go to the rotating file only, never to stderr, at info level by default
// and at debug level with --debug.
package logging
