// Package classifier defines the pluggable injection-classification gate
// that sits alongside the deterministic scanners. Unlike the scanners
// (credential, path, command, vulnerability-echo, encoding) it is
// probabilistic and model-backed, so it is expressed as an interface with
// a disabled no-op default rather than a concrete dependency the module
// always requires.
package classifier

import (
	"context"

	"github.com/CherryPod/sentinel-sub000/internal/domain/valueobject"
)

// InjectionClassifier scores free text for prompt-injection / jailbreak
// characteristics. Implementations must never panic on malformed input —
// an unclassifiable chunk should report Found=false, not an error, unless
// the classifier is required-but-unavailable (see NewNoopClassifier).
type InjectionClassifier interface {
	// Classify scans text and returns a ScanResult in the same shape as the
	// deterministic scanners, so callers can merge it into a pipeline result
	// map uniformly.
	Classify(ctx context.Context, text string, threshold float64) (valueobject.ScanResult, error)

	// Loaded reports whether the underlying model is available. A pipeline
	// configured with RequireClassifier=true treats Loaded()==false as a
	// fail-closed condition (block, do not silently degrade).
	Loaded() bool
}

const ScannerName = "injection_classifier"

// NoopClassifier is the default: always reports Loaded()==false and a clean
// scan. Deployments without an injection-classification sidecar run with
// this and rely on the deterministic scanners alone, exactly as the
// original system degrades gracefully when its model fails to load.
type NoopClassifier struct{}

func NewNoopClassifier() *NoopClassifier { return &NoopClassifier{} }

func (NoopClassifier) Loaded() bool { return false }

func (NoopClassifier) Classify(ctx context.Context, text string, threshold float64) (valueobject.ScanResult, error) {
	return valueobject.CleanResult(ScannerName), nil
}
