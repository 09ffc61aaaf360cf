package domain

// Estimator produces best-effort byte sizes through a cascade of
// decreasing-confidence methods. It is a pure function of its inputs:
// identical inputs always yield identical estimates.
type Estimator struct {
	h Heuristics
}

// NewEstimator creates an estimator with the given heuristics.
func NewEstimator(h Heuristics) *Estimator {
	return &Estimator{h: h}
}

// SizeInput bundles everything a platform gathered about one repository or
// item set. Fields left at their zero value are treated as "not available"
// and the cascade moves to the next stage.
type SizeInput struct {
	// Authoritative is the backend's own repository-level size figure.
	Authoritative Metric
	// MetadataSizes are per-item sizes reported in listing metadata.
	MetadataSizes []int64
	// SampledSizes are byte lengths observed through per-item probing.
	SampledSizes []int64
	// ItemCount is the number of items, for the last-resort projection.
	ItemCount int
	// BytesPerItem overrides the per-item projection for the last-resort
	// stage; 0 uses the fallback per-file default.
	BytesPerItem int64
	// CheckoutOverhead applies the on-disk overhead model to measured
	// content: raw content size understates what a checkout occupies.
	CheckoutOverhead bool
}

// Estimate walks the cascade: authoritative size, summed metadata, sampled
// probing, heuristic projection. Each stage runs only if the previous one
// produced no usable value.
func (e *Estimator) Estimate(in SizeInput) SizeEstimate {
	if in.Authoritative.Usable() {
		return SizeEstimate{Bytes: in.Authoritative, Tier: TierAuthoritative}
	}

	content := sumSizes(in.MetadataSizes)
	tier := TierMeasured
	if content == 0 && len(in.SampledSizes) > 0 {
		content = sumSizes(in.SampledSizes)
		tier = TierMeasuredSampled
	}
	if content > 0 {
		if in.CheckoutOverhead {
			content = e.CheckoutSize(content)
		}
		return SizeEstimate{Bytes: KnownMetric(content), Tier: tier}
	}

	if in.ItemCount > 0 {
		perItem := in.BytesPerItem
		if perItem <= 0 {
			perItem = e.h.FallbackBytesPerFile
		}
		return SizeEstimate{
			Bytes: KnownMetric(int64(in.ItemCount) * perItem),
			Tier:  TierEstimated,
		}
	}

	if in.Authoritative.Determined() || len(in.MetadataSizes) > 0 {
		// The backend answered and everything was zero: genuinely empty.
		return SizeEstimate{Bytes: EmptyMetric(), Tier: TierMeasured}
	}
	return SizeEstimate{Bytes: UnknownMetric(), Tier: TierUnknown}
}

// CheckoutSize projects raw content size onto on-disk checkout size. Very
// small content carries disproportionate fixed overhead and is inflated to
// at least the minimum footprint; larger content scales by a smaller
// constant factor.
func (e *Estimator) CheckoutSize(content int64) int64 {
	if content <= 0 {
		return 0
	}
	if content < e.h.SmallContentThreshold {
		size := content * e.h.SmallContentMultiplier
		if size < e.h.MinCheckoutFootprint {
			size = e.h.MinCheckoutFootprint
		}
		return size
	}
	return content * e.h.LargeContentMultiplier
}

// ShouldSampleProbe reports whether per-item length probing is worth the
// request volume: only when metadata carried no sizes and the item count is
// within the sampling cap.
func (e *Estimator) ShouldSampleProbe(metadataTotal int64, itemCount int) bool {
	return metadataTotal == 0 && itemCount > 0 && itemCount <= e.h.SampleProbeLimit
}

// ComparisonSize derives the size figure used when classification compares
// two content-bearing backends. Returns 0 when no usable figure exists so
// the classifier can fall through to the next tie-break.
func (e *Estimator) ComparisonSize(res BackendProbeResult) int64 {
	if v, ok := res.TotalSize.Value(); ok {
		return v
	}

	switch res.Kind {
	case ModernVCS:
		var total int64
		for _, s := range res.Samples {
			if v, ok := s.SizeBytes.Value(); ok {
				total += v
			} else if files, ok := s.FileCount.Value(); ok {
				total += files * e.h.ModernBytesPerFile
			}
		}
		if total > 0 {
			return total
		}
		if files, ok := res.ItemCount.Value(); ok {
			return files * e.h.ModernBytesPerFile
		}
	case LegacyVCS:
		if items, ok := res.ItemCount.Value(); ok {
			return items * e.h.LegacyBytesPerItem
		}
	default:
	}
	return 0
}

func sumSizes(sizes []int64) int64 {
	var total int64
	for _, s := range sizes {
		if s > 0 {
			total += s
		}
	}
	return total
}

// LargestSize returns the largest individual size among metadata and sampled
// observations, Unknown when nothing was observed.
func LargestSize(metadata, sampled []int64) Metric {
	var largest int64
	seen := false
	for _, group := range [][]int64{metadata, sampled} {
		for _, s := range group {
			seen = true
			if s > largest {
				largest = s
			}
		}
	}
	if !seen {
		return UnknownMetric()
	}
	return KnownMetric(largest)
}
