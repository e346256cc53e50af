// Package score implements the deterministic behavioral scoring model for
// box-pushing puzzle telemetry. It exposes [Parse], [Scorer], the [Clamp01]
// normalization primitive and [ModelVersion].
package score
