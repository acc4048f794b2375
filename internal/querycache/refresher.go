package querycache

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/orgportal-project/orgportal/internal/business"
	"github.com/orgportal-project/orgportal/internal/observability"
)

/*
 * Refresher rebuilds the provider's rows from the live business entities on
 * a cron schedule. One organization failing to refresh is logged and
 * skipped; its previous snapshot stays in place.
 */
type Refresher struct {
	ops      *business.Operations
	store    Store
	schedule string
	feedback observability.RemoteObservability
	cron     *cron.Cron
}

func NewRefresher(ops *business.Operations, store Store, schedule string, feedback observability.RemoteObservability) *Refresher {
	return &Refresher{
		ops:      ops,
		store:    store,
		schedule: schedule,
		feedback: feedback,
	}
}

// Start schedules recurring refreshes. The first run happens on the
// schedule, not immediately; call RefreshAll first if a warm cache is needed
// at boot.
func (r *Refresher) Start() error {
	r.cron = cron.New()
	_, err := r.cron.AddFunc(r.schedule, func() {
		if err := r.RefreshAll(context.Background()); err != nil {
			logrus.Errorf("query cache refresh failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("not able to schedule query cache refresh (%s): %v", r.schedule, err)
	}
	r.cron.Start()
	return nil
}

func (r *Refresher) Stop() {
	if r.cron != nil {
		r.cron.Stop()
	}
}

// RefreshAll rewrites the snapshot of every configured organization.
// Returns an error only when every organization failed.
func (r *Refresher) RefreshAll(ctx context.Context) error {
	organizations := r.ops.Organizations()
	if r.feedback != nil {
		r.feedback.Init(len(organizations))
	}

	failed := 0
	for _, org := range organizations {
		if r.feedback != nil {
			r.feedback.LoadingAsset(org.Name(), 1)
		}
		if err := r.RefreshOrganization(ctx, org); err != nil {
			logrus.Warnf("not able to refresh query cache for organization %s: %v", org.Name(), err)
			failed++
		}
	}

	if failed > 0 && failed == len(organizations) {
		return fmt.Errorf("query cache refresh failed for all %d organizations", failed)
	}
	return nil
}

// RefreshOrganization rebuilds one organization's snapshot and replaces it
// atomically in the store.
func (r *Refresher) RefreshOrganization(ctx context.Context, org *business.Organization) error {
	snapshot := OrganizationSnapshot{
		Memberships:   []OrganizationMembershipRow{},
		TeamMembers:   []TeamMembershipRow{},
		TeamGrants:    []TeamPermissionRow{},
		Collaborators: []RepositoryCollaboratorRow{},
	}

	for _, role := range []business.OrganizationRole{business.OrganizationRoleAdmin, business.OrganizationRoleMember} {
		members, err := org.GetMembers(ctx, role, nil)
		if err != nil {
			return err
		}
		for _, member := range members {
			snapshot.Memberships = append(snapshot.Memberships, OrganizationMembershipRow{
				OrgName: org.Name(),
				UserID:  member.ID(),
				Login:   member.Login(),
				Role:    string(role),
			})
		}
	}

	teams, err := org.GetTeams(ctx, nil)
	if err != nil {
		return err
	}
	for _, team := range teams {
		for _, role := range []business.TeamRole{business.TeamRoleMaintainer, business.TeamRoleMember} {
			members, err := team.GetMembers(ctx, role, nil)
			if err != nil {
				return err
			}
			for _, member := range members {
				snapshot.TeamMembers = append(snapshot.TeamMembers, TeamMembershipRow{
					OrgName:  org.Name(),
					TeamID:   team.ID(),
					TeamName: team.Name(),
					TeamSlug: team.Slug(),
					UserID:   member.ID(),
					Login:    member.Login(),
					Role:     string(role),
				})
			}
		}

		grants, err := team.GetRepositories(ctx, nil)
		if err != nil {
			return err
		}
		for _, grant := range grants {
			snapshot.TeamGrants = append(snapshot.TeamGrants, TeamPermissionRow{
				OrgName:        org.Name(),
				TeamID:         team.ID(),
				TeamName:       team.Name(),
				RepositoryID:   grant.Repository.ID(),
				RepositoryName: grant.Repository.Name(),
				Permission:     grant.Permission.String(),
			})
		}
	}

	repositories, err := org.GetRepositories(ctx, nil)
	if err != nil {
		return err
	}
	for _, repo := range repositories {
		collaborators, err := repo.GetCollaborators(ctx, business.AffiliationDirect, nil)
		if err != nil {
			return err
		}
		for _, collaborator := range collaborators {
			snapshot.Collaborators = append(snapshot.Collaborators, RepositoryCollaboratorRow{
				OrgName:        org.Name(),
				RepositoryID:   repo.ID(),
				RepositoryName: repo.Name(),
				UserID:         collaborator.ID(),
				Login:          collaborator.Login(),
				Permission:     collaborator.Permission().String(),
			})
		}
	}

	return r.store.ReplaceOrganizationRows(ctx, org.Name(), snapshot)
}
