// Package engines contains the synthesizers dialogue lines are voiced with.
// MockEngine generates tones for development and tests; PiperEngine runs
// the Piper binary as a subprocess. Both implement ttypes.Synthesizer.
package engines
