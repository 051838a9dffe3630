// Copyright 2026 The PublicBridge Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package analyzer

import (
	"context"
	"errors"
	"fmt"
)

// Typed failure taxonomy for adapter and input errors. Adapter-level failures
// are absorbed into degraded Results by the ensemble and never surface past it.
var (
	// ErrAdapterTimeout marks an adapter that did not answer within its
	// per-call deadline.
	ErrAdapterTimeout = errors.New("analyzer: adapter timed out")
	// ErrAdapterUnavailable marks an adapter that cannot run at all, for
	// example because credentials or a model are missing.
	ErrAdapterUnavailable = errors.New("analyzer: adapter unavailable")
	// ErrInvalidInput marks input the adapter could not work with. Empty
	// text short-circuits before adapters run; oversized text is truncated,
	// so this surfaces rarely.
	ErrInvalidInput = errors.New("analyzer: invalid input")
)

// Health reports whether an adapter is currently able to serve calls.
type Health struct {
	Available bool   `json:"available"`
	Detail    string `json:"detail,omitempty"`
}

// Analyzer is the uniform capability contract wrapping one analysis backend.
//
// Analyze must not panic and must not return an error: any internal failure is
// converted into a degraded Result with zero confidence. This lets the
// ensemble treat a remote LLM call and a keyword rule engine identically.
type Analyzer interface {
	// ID identifies the adapter in results and telemetry.
	ID() string
	// Axes lists the analysis dimensions this adapter produces scores for.
	Axes() []Axis
	// Analyze scores the input. Implementations honor ctx cancellation.
	Analyze(ctx context.Context, in Input) Result
	// Health reports current availability.
	Health() Health
}

// Supports reports whether the analyzer covers the given axis.
func Supports(a Analyzer, axis Axis) bool {
	for _, ax := range a.Axes() {
		if ax == axis {
			return true
		}
	}
	return false
}

// DegradedResult builds the canonical failure result for an adapter.
func DegradedResult(id string, err error) Result {
	r := Result{AnalyzerID: id, Confidence: 0, Degraded: true}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

// Guard runs fn and converts a panic into a degraded result. Adapters wrap
// their analysis entry point with it so the "must not raise" contract holds
// even for bugs in pattern tables or backend SDKs.
func Guard(id string, fn func() Result) (out Result) {
	defer func() {
		if rec := recover(); rec != nil {
			out = DegradedResult(id, fmt.Errorf("panic: %v", rec))
		}
	}()
	return fn()
}
