package domain

import "strings"

// AdminDetection is the configuration behind project administrator
// discovery for the users inventory. The group-name patterns and the
// per-project known-admin fallback are deployment-specific data, so they
// live in configuration rather than in code.
type AdminDetection struct {
	// GroupPatterns are lowercase substrings matched against security
	// group names to identify administrator groups.
	GroupPatterns []string
	// KnownAdmins maps a project name to identities that are known to be
	// administrators when the platform exposes no explicit admin group.
	KnownAdmins map[string][]string
	// ExcludedIdentityTerms filters service and system accounts out of
	// membership lists; matched case-insensitively as substrings.
	ExcludedIdentityTerms []string
}

// DefaultAdminDetection returns the defaults: common administrator group
// names, no known-admin fallback, and the usual service-account noise.
func DefaultAdminDetection() AdminDetection {
	return AdminDetection{
		GroupPatterns: []string{"administrator", "admin"},
		ExcludedIdentityTerms: []string{
			"service account",
			"build service",
			"svc_",
			"system",
			"agent",
			"pipeline",
			"noreply",
			"donotreply",
		},
	}
}

// ValidIdentity reports whether the identifier looks like a real user
// rather than a service or system account.
func (d AdminDetection) ValidIdentity(identifier string) bool {
	if identifier == "" {
		return false
	}
	lower := strings.ToLower(identifier)
	for _, term := range d.ExcludedIdentityTerms {
		if strings.Contains(lower, strings.ToLower(term)) {
			return false
		}
	}
	return true
}

// MatchesAdminGroup reports whether a security group name looks like an
// administrator group for the given project.
func (d AdminDetection) MatchesAdminGroup(groupName, project string) bool {
	lower := strings.ToLower(groupName)
	for _, pattern := range d.GroupPatterns {
		if strings.Contains(lower, strings.ToLower(pattern)) {
			return true
		}
	}
	projectLower := strings.ToLower(project)
	return strings.Contains(lower, projectLower+" administrator") ||
		strings.Contains(lower, projectLower+" admin")
}
