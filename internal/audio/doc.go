// Package audio provides the PCM primitives of the relay engine: fixed-size
// chunks of interleaved int16 samples, level metering, gain, channel
// up/down-mixing, the fixed-latency delay ring, and WAV encoding for
// archived captures.
package audio
