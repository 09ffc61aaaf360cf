package domain

import "time"

// kindPriority orders backend kinds for the generic tie-break when the
// content-bearing candidates are not the modern/legacy pair.
var kindPriority = []BackendKind{ModernVCS, LegacyVCS, ArtifactStore, Wiki, GenericFileStore}

// Classifier collapses a project's probe evidence to a single authoritative
// BackendKind. The decision is a total, deterministic function of the probe
// results and the injected "now"; no wall-clock reads happen inside.
type Classifier struct {
	h         Heuristics
	estimator *Estimator
}

// NewClassifier creates a classifier sharing the estimator's heuristics.
func NewClassifier(h Heuristics, estimator *Estimator) *Classifier {
	return &Classifier{h: h, estimator: estimator}
}

// Classify applies the ordered tie-break policy: lone content holder, size,
// recency, content volume, and finally the modern-standard default. A
// project always receives a kind; with no content anywhere the result is
// GenericFileStore, never "none".
func (c *Classifier) Classify(set ProbeSet, now time.Time) BackendKind {
	withContent := make([]BackendKind, 0, len(set))
	for _, kind := range kindPriority {
		if res, ok := set[kind]; ok && res.HasContent {
			withContent = append(withContent, kind)
		}
	}

	switch {
	case len(withContent) == 0:
		return GenericFileStore
	case len(withContent) == 1:
		return withContent[0]
	}

	modern, hasModern := set[ModernVCS]
	legacy, hasLegacy := set[LegacyVCS]
	if hasModern && modern.HasContent && hasLegacy && legacy.HasContent {
		return c.resolveAmbiguous(modern, legacy, now)
	}

	// Multiple lower-priority candidates: the priority order decides.
	return withContent[0]
}

// resolveAmbiguous handles the "both systems have content" case.
func (c *Classifier) resolveAmbiguous(modern, legacy BackendProbeResult, now time.Time) BackendKind {
	// Size is the primary decision factor.
	modernSize := c.estimator.ComparisonSize(modern)
	legacySize := c.estimator.ComparisonSize(legacy)
	switch {
	case modernSize > 0 && legacySize > 0 && modernSize > legacySize:
		return ModernVCS
	case modernSize > 0 && legacySize > 0 && legacySize > modernSize:
		return LegacyVCS
	case modernSize > 0 && legacySize == 0:
		return ModernVCS
	case legacySize > 0 && modernSize == 0:
		return LegacyVCS
	}

	// Sizes equal or both unusable: recency decides.
	modernRecent := modern.LastActivity.Within(c.h.RecencyWindow, now)
	legacyRecent := legacy.LastActivity.Within(c.h.RecencyWindow, now)
	switch {
	case modernRecent && !legacyRecent:
		return ModernVCS
	case legacyRecent && !modernRecent:
		return LegacyVCS
	case modernRecent && legacyRecent:
		if legacy.LastActivity.After(modern.LastActivity) {
			return LegacyVCS
		}
		return ModernVCS
	}

	// No recent activity in either: content volume, biased toward the
	// modern standard.
	modernFiles := modern.ItemCount.Int64()
	legacyItems := legacy.ItemCount.Int64()
	if modernFiles > legacyItems {
		return ModernVCS
	}
	if legacyItems > modernFiles*int64(c.h.LegacyVolumeDominance) {
		return LegacyVCS
	}
	return ModernVCS
}
