package azuredevops

import (
	"context"
	"fmt"

	logger "github.com/sirupsen/logrus"

	"github.com/rios0rios0/repoinventory/domain"
)

// ProjectMembership collects the member and administrator identities of a
// project from its teams. Teams whose names match the configured
// administrator patterns contribute to the admin list; every team
// contributes to the member list. Identity filtering and deduplication
// happen upstream.
func (p *Platform) ProjectMembership(
	ctx context.Context, project domain.Project,
) (domain.MembershipRecord, error) {
	c := p.clientFor(project.Organization)

	projectID := project.ID
	if projectID == "" {
		projectID = project.Name
	}

	teams, err := c.getTeams(ctx, projectID)
	if err != nil {
		return domain.MembershipRecord{}, fmt.Errorf("failed to list teams: %w", err)
	}

	record := domain.MembershipRecord{
		Organization: project.Organization,
		Project:      project.Name,
	}
	for _, team := range teams {
		members, err := c.getTeamMembers(ctx, projectID, team.ID)
		if err != nil {
			logger.Debugf("Member listing failed for team %s in %s/%s: %v",
				team.Name, project.Organization, project.Name, err)
			continue
		}

		isAdminTeam := p.detection.MatchesAdminGroup(team.Name, project.Name)
		for _, member := range members {
			identity := member.Identity.UniqueName
			if identity == "" {
				identity = member.Identity.DisplayName
			}
			record.Members = append(record.Members, identity)
			if isAdminTeam {
				record.Admins = append(record.Admins, identity)
			}
		}
	}
	return record, nil
}
