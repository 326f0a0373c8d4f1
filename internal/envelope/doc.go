// Package envelope implements the damped level follower that drives every
// trigger decision in the engine. It tracks the instantaneous chunk level
// with independent attack (rise) and release (fall) time constants.
package envelope
