// Package cache keeps recently synthesized dialogue in memory so repeated
// lines skip the synthesizer. Audio payloads are optionally stored zstd
// compressed.
package cache
