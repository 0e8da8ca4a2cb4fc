// Package analysis holds the stateless signal primitives used across the
// bench: RMS, windowed spectra, harmonic distortion, phasor extraction,
// three-phase balance, step-response metrics and a few helpers for
// comparing and smoothing series.
//
// Functions never return errors. Inputs that are too short or degenerate
// yield documented sentinels (0, an empty spectrum, or ok == false).
package analysis
