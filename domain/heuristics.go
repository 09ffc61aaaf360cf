package domain

import "time"

// Default heuristic values. Exported so tests can pin exact expected outputs
// for given inputs.
const (
	// DefaultRecencyWindow is the trailing window within which backend
	// activity counts as "recent" during classification.
	DefaultRecencyWindow = 2 * 365 * 24 * time.Hour
	// DefaultModernRepoSampleLimit bounds how many repositories the modern
	// backend probe inspects per project.
	DefaultModernRepoSampleLimit = 3
	// DefaultSampleProbeLimit bounds per-item length probing; repositories
	// with more items skip the sampled-measurement stage to cap request
	// volume.
	DefaultSampleProbeLimit = 50
	// DefaultLegacyVolumeDominance is how many times the legacy item count
	// must exceed the modern file count before volume alone favors legacy.
	DefaultLegacyVolumeDominance = 2
	// DefaultSmallContentThreshold separates the two checkout-overhead
	// regimes: content below it is inflated far more aggressively.
	DefaultSmallContentThreshold = 10_000
	// DefaultSmallContentMultiplier applies below the small-content
	// threshold.
	DefaultSmallContentMultiplier = 50
	// DefaultLargeContentMultiplier applies at or above the threshold.
	DefaultLargeContentMultiplier = 8
	// DefaultMinCheckoutFootprint is the floor for any checkout estimate;
	// a repository has fixed on-disk overhead regardless of content size.
	DefaultMinCheckoutFootprint = 40 * 1024
	// DefaultModernBytesPerFile is the per-file projection used when
	// comparing backend sizes during classification.
	DefaultModernBytesPerFile = 5 * 1024
	// DefaultLegacyBytesPerItem is the per-item projection for the legacy
	// backend.
	DefaultLegacyBytesPerItem = 10 * 1024
	// DefaultFallbackBytesPerFile is the per-file projection used for
	// record size estimates when nothing was measured.
	DefaultFallbackBytesPerFile = 3 * 1024
)

// Heuristics collects every threshold and multiplier of the classification
// and estimation engine. Instances are injected into the Classifier and
// Estimator so tests can override them deterministically.
type Heuristics struct {
	RecencyWindow          time.Duration
	ModernRepoSampleLimit  int
	SampleProbeLimit       int
	LegacyVolumeDominance  int
	SmallContentThreshold  int64
	SmallContentMultiplier int64
	LargeContentMultiplier int64
	MinCheckoutFootprint   int64
	ModernBytesPerFile     int64
	LegacyBytesPerItem     int64
	FallbackBytesPerFile   int64
}

// DefaultHeuristics returns the documented defaults.
func DefaultHeuristics() Heuristics {
	return Heuristics{
		RecencyWindow:          DefaultRecencyWindow,
		ModernRepoSampleLimit:  DefaultModernRepoSampleLimit,
		SampleProbeLimit:       DefaultSampleProbeLimit,
		LegacyVolumeDominance:  DefaultLegacyVolumeDominance,
		SmallContentThreshold:  DefaultSmallContentThreshold,
		SmallContentMultiplier: DefaultSmallContentMultiplier,
		LargeContentMultiplier: DefaultLargeContentMultiplier,
		MinCheckoutFootprint:   DefaultMinCheckoutFootprint,
		ModernBytesPerFile:     DefaultModernBytesPerFile,
		LegacyBytesPerItem:     DefaultLegacyBytesPerItem,
		FallbackBytesPerFile:   DefaultFallbackBytesPerFile,
	}
}
