// Package progress holds the per-acquisition progress cell and the monitor
// that samples it on a fixed interval, emitting an update only when the
// percentage advanced by at least a threshold since the last emission.
package progress
