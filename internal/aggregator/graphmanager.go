package aggregator

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/orgportal-project/orgportal/internal/business"
	"github.com/orgportal-project/orgportal/internal/querycache"
)

/*
 * GraphManager is the legacy bulk-lookup path the aggregation engine falls
 * back to when the query cache cannot serve a source. The repository lookup
 * returns already-personalized records, so that path needs no local
 * reconciliation.
 */
type GraphManager interface {
	GetOrganizationStatusesByName(ctx context.Context, userID int64, login string) (map[string]string, error)
	GetTeamMemberships(ctx context.Context, userID int64, login string) ([]querycache.TeamMembershipRow, error)
	GetUserReposByTeamMemberships(ctx context.Context, userID int64, login string) ([]*RepositoryPermissionRecord, error)
}

// LiveGraphManager implements the fallback by walking the business entities
// directly. Every lookup rides the cached client, so the cost stays bounded
// by the entity staleness windows rather than by call volume.
type LiveGraphManager struct {
	ops *business.Operations
}

func NewLiveGraphManager(ops *business.Operations) *LiveGraphManager {
	return &LiveGraphManager{ops: ops}
}

func (g *LiveGraphManager) GetOrganizationStatusesByName(ctx context.Context, userID int64, login string) (map[string]string, error) {
	statuses := map[string]string{}
	for _, org := range g.ops.Organizations() {
		role, found, err := organizationRoleOf(ctx, org, userID)
		if err != nil {
			return nil, err
		}
		if found {
			statuses[org.Name()] = string(role)
		}
	}
	return statuses, nil
}

func organizationRoleOf(ctx context.Context, org *business.Organization, userID int64) (business.OrganizationRole, bool, error) {
	for _, role := range []business.OrganizationRole{business.OrganizationRoleAdmin, business.OrganizationRoleMember} {
		members, err := org.GetMembers(ctx, role, nil)
		if err != nil {
			return "", false, err
		}
		for _, member := range members {
			if member.ID() == userID {
				return role, true, nil
			}
		}
	}
	return "", false, nil
}

func (g *LiveGraphManager) GetTeamMemberships(ctx context.Context, userID int64, login string) ([]querycache.TeamMembershipRow, error) {
	rows := []querycache.TeamMembershipRow{}
	for _, org := range g.ops.Organizations() {
		teams, err := org.GetTeams(ctx, nil)
		if err != nil {
			return nil, err
		}
		for _, team := range teams {
			role, ok, err := team.GetMembershipEfficiently(ctx, login)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			rows = append(rows, querycache.TeamMembershipRow{
				OrgName:  org.Name(),
				TeamID:   team.ID(),
				TeamName: team.Name(),
				TeamSlug: team.Slug(),
				UserID:   userID,
				Login:    login,
				Role:     string(role),
			})
		}
	}
	return rows, nil
}

func (g *LiveGraphManager) GetUserReposByTeamMemberships(ctx context.Context, userID int64, login string) ([]*RepositoryPermissionRecord, error) {
	memberships, err := g.GetTeamMemberships(ctx, userID, login)
	if err != nil {
		return nil, err
	}

	records := map[int64]*RepositoryPermissionRecord{}
	for _, membership := range memberships {
		org, ok := g.ops.Organization(membership.OrgName)
		if !ok {
			logrus.Debugf("team membership references unconfigured organization %s", membership.OrgName)
			continue
		}
		team, err := org.Team(membership.TeamID)
		if err != nil {
			return nil, err
		}
		grants, err := team.GetRepositories(ctx, nil)
		if err != nil {
			return nil, err
		}
		for _, grant := range grants {
			record, ok := records[grant.Repository.ID()]
			if !ok {
				record = &RepositoryPermissionRecord{
					OrgName:        membership.OrgName,
					RepositoryID:   grant.Repository.ID(),
					RepositoryName: grant.Repository.Name(),
				}
				records[grant.Repository.ID()] = record
			}
			record.TeamPermissions = append(record.TeamPermissions, querycache.TeamPermissionRow{
				OrgName:        membership.OrgName,
				TeamID:         membership.TeamID,
				TeamName:       membership.TeamName,
				RepositoryID:   grant.Repository.ID(),
				RepositoryName: grant.Repository.Name(),
				Permission:     grant.Permission.String(),
			})
			if business.IsPermissionBetterThan(record.BestComputedPermission, grant.Permission) {
				record.BestComputedPermission = grant.Permission
			}
		}
	}

	return sortRecords(records), nil
}
