// Package engine drives the relay's processing goroutines: the
// level-triggered record/replay state machine in simplex mode and the
// fixed-delay streaming pipeline in duplex mode.
package engine
