// Package archive persists finished capture episodes as WAV files on a
// background worker so disk writes never block the audio path.
package archive
