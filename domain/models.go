package domain

// BackendKind identifies which content system is authoritative for a project.
type BackendKind string

const (
	// ModernVCS is the distributed commit-graph backend (Git on every
	// supported platform).
	ModernVCS BackendKind = "ModernVCS"
	// LegacyVCS is the centralized changeset backend (TFVC on Azure DevOps).
	LegacyVCS BackendKind = "LegacyVCS"
	// ArtifactStore covers package/artifact feeds with no version control.
	ArtifactStore BackendKind = "ArtifactStore"
	// Wiki covers projects whose only content is wiki pages.
	Wiki BackendKind = "Wiki"
	// GenericFileStore is the exhaustive fallback: the project exists but
	// no version-control backend claims it.
	GenericFileStore BackendKind = "GenericFileStore"
	// KindUnknown is only valid before classification completes.
	KindUnknown BackendKind = "Unknown"
)

// ConfidenceTier labels how a size figure was obtained.
type ConfidenceTier string

const (
	// TierAuthoritative means the backend reported the size itself.
	TierAuthoritative ConfidenceTier = "authoritative"
	// TierMeasured means per-item metadata sizes were summed.
	TierMeasured ConfidenceTier = "measured"
	// TierMeasuredSampled means item lengths were probed individually.
	TierMeasuredSampled ConfidenceTier = "measured-sampled"
	// TierEstimated means the size is a heuristic projection.
	TierEstimated ConfidenceTier = "estimated"
	// TierUnknown means no method produced a usable figure.
	TierUnknown ConfidenceTier = "unknown"
)

// Project is one unit of classification work inside an organization.
// ID and Key are platform-specific addressing fields (Azure DevOps uses
// the name, Bitbucket Server uses the key, GitHub maps one repository to
// one synthetic project).
type Project struct {
	Organization string
	Name         string
	ID           string
	Key          string
}

// RepoSample holds the signals gathered from one sampled modern-VCS
// repository during probing.
type RepoSample struct {
	ID         string
	Name       string
	HasContent bool
	FileCount  Metric
	SizeBytes  Metric
	LastCommit Timestamp
}

// BackendProbeResult carries the presence-of-content signals for one
// (project, backend) candidate. Probe failures degrade the result (Err set,
// HasContent false) instead of propagating; classification proceeds with
// whatever subset of candidates answered.
type BackendProbeResult struct {
	Kind         BackendKind
	HasContent   bool
	ItemCount    Metric
	TotalSize    Metric
	LastActivity Timestamp
	// RepoCount and Samples are populated for ModernVCS only: the number of
	// repositories with content among the bounded sample, and the per-repo
	// signals behind the aggregate.
	RepoCount int
	Samples   []RepoSample
	// Err records why the probe degraded. Forbidden is set for 401/403 so
	// operators can tell "absent" from "forbidden" in the logs.
	Err       error
	Forbidden bool
}

// ProbeSet retains every probed candidate for a project. The set must stay
// intact until classification collapses it to a single BackendKind.
type ProbeSet map[BackendKind]BackendProbeResult

// SizeEstimate is the outcome of the estimation cascade.
type SizeEstimate struct {
	Bytes Metric
	Tier  ConfidenceTier
}

// RepositoryRecord is the exported unit: one row per repository, or one row
// per project for backends with no repository concept. Immutable once
// appended to the aggregator.
type RepositoryRecord struct {
	Organization    string
	Project         string
	Kind            BackendKind
	RepoName        string
	BranchCount     Metric
	SizeBytes       Metric
	SizeTier        ConfidenceTier
	FileCount       Metric
	LargestFileSize Metric
	LastModified    Timestamp
	// Err marks a record whose statistics collection failed outright; the
	// exporter renders its unusable cells as "Error" instead of "Unknown".
	Err error
}

// MembershipRecord is the exported unit of the users inventory: project
// member and administrator identity lists.
type MembershipRecord struct {
	Organization string
	Project      string
	Members      []string
	Admins       []string
}
