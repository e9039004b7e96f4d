// Package kde owns the risk density estimator.
//
// Responsibilities: the Gaussian kernel, the per-projection weighted
// distance, configuration validation and grid evaluation.
// Key types: Config, Point, Mode, Projection, Grid.
//
// Evaluate is a pure function of its inputs: it keeps no state between
// calls, never retains the Config or the point slice, and produces a fresh
// Grid on every call. Callers decide when to recompute.
//
// Dependency rule: kde has no knowledge of events, buffers or rendering.
// No SQL or HTTP code is allowed in this package.
package kde
