// Package audio provides playback backends for the dialogue scheduler: a
// multi-voice backend built on oto/v3 and a mock backend for tests and
// headless runs. It also holds the WAV helpers used by synthesizers.
package audio
