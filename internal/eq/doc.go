// Package eq implements a serial peaking-biquad equalizer with persistent
// per-band, per-channel filter state. Bands with invalid or unstable
// coefficients fall back to identity, and chunks that filter to non-finite
// values are discarded in favour of the unfiltered input.
package eq
