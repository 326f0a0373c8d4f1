// Package device opens PortAudio input and output streams and adapts them
// to the chunk-based stream interfaces the engine consumes.
package device
