// Package lockdown strips unexpected access from freshly created,
// transferred or forked repositories, keeping only the organization's
// special teams and its administrators.
package lockdown

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/orgportal-project/orgportal/internal/business"
	"github.com/orgportal-project/orgportal/internal/config"
	"github.com/orgportal-project/orgportal/internal/githubcache"
	"github.com/orgportal-project/orgportal/internal/observability"
)

const retryBaseDelay = 500 * time.Millisecond

// LockdownResult summarizes one sweep.
type LockdownResult struct {
	Repository   string
	RevokedTeams []string
	KeptTeams    []string
	RevokedUsers []string
	KeptUsers    []string
	FailedTeams  []string
	FailedUsers  []string
}

type RepositoryLockdownSystem struct {
	ops      *business.Operations
	attempts int
	dryRun   bool
}

func NewRepositoryLockdownSystem(ops *business.Operations, dryRun bool) *RepositoryLockdownSystem {
	attempts := config.Config.LockdownRemovalAttempts
	if attempts < 1 {
		attempts = 1
	}
	return &RepositoryLockdownSystem{
		ops:      ops,
		attempts: attempts,
		dryRun:   dryRun,
	}
}

/*
 * LockdownRepository fetches the repository's team permissions and direct
 * collaborators live, partitions them into exempt and to-be-revoked, and
 * removes the latter best-effort. One failed removal never aborts the rest
 * of the sweep: after the retries are exhausted the failure lands in the
 * log collection and the loop moves on.
 */
func (s *RepositoryLockdownSystem) LockdownRepository(ctx context.Context, logsCollector *observability.LogCollection, repo *business.Repository) *LockdownResult {
	result := &LockdownResult{
		Repository:   repo.FullName(),
		RevokedTeams: []string{},
		KeptTeams:    []string{},
		RevokedUsers: []string{},
		KeptUsers:    []string{},
		FailedTeams:  []string{},
		FailedUsers:  []string{},
	}

	// the repository was just created: the cache cannot know it yet
	live := &githubcache.CacheOptions{MaxAgeSeconds: -1}

	teamPermissions, err := repo.GetTeamPermissions(ctx, live)
	if err != nil {
		logsCollector.AddError(fmt.Errorf("not able to list team permissions for lockdown of %s: %w", repo.FullName(), err))
		teamPermissions = nil
	}

	collaborators, err := repo.GetCollaborators(ctx, business.AffiliationDirect, live)
	if err != nil {
		logsCollector.AddError(fmt.Errorf("not able to list collaborators for lockdown of %s: %w", repo.FullName(), err))
		collaborators = nil
	}

	administrators, err := repo.Organization().GetOrganizationAdministrators(ctx)
	if err != nil {
		logsCollector.AddError(fmt.Errorf("not able to list administrators for lockdown of %s: %w", repo.FullName(), err))
		administrators = map[int64]*business.OrganizationAdministrator{}
	}

	for _, tp := range teamPermissions {
		slug := tp.Team.Slug()
		if tp.Team.IsBroadAccessTeam() {
			result.KeptTeams = append(result.KeptTeams, slug)
			logsCollector.AddDebug(map[string]any{"repository": repo.FullName(), "team": slug},
				"lockdown keeping specially permitted team")
			continue
		}
		if s.dryRun {
			logsCollector.AddInfo(map[string]any{"repository": repo.FullName(), "team": slug},
				"lockdown would remove team")
			result.RevokedTeams = append(result.RevokedTeams, slug)
			continue
		}
		err := s.withRetries(ctx, func() error {
			return repo.RemoveTeamPermission(ctx, slug)
		})
		if err != nil {
			observability.LockdownRemovalFailures.WithLabelValues("team").Inc()
			logsCollector.AddError(fmt.Errorf("not able to remove team %s from %s: %w", slug, repo.FullName(), err))
			result.FailedTeams = append(result.FailedTeams, slug)
			continue
		}
		result.RevokedTeams = append(result.RevokedTeams, slug)
		logsCollector.AddInfo(map[string]any{"repository": repo.FullName(), "team": slug},
			"lockdown removed team")
	}

	for _, collaborator := range collaborators {
		login := collaborator.Login()
		if isAdministrator(administrators, collaborator) {
			result.KeptUsers = append(result.KeptUsers, login)
			logsCollector.AddDebug(map[string]any{"repository": repo.FullName(), "user": login},
				"lockdown keeping organization administrator")
			continue
		}
		if s.dryRun {
			logsCollector.AddInfo(map[string]any{"repository": repo.FullName(), "user": login},
				"lockdown would remove collaborator")
			result.RevokedUsers = append(result.RevokedUsers, login)
			continue
		}
		err := s.withRetries(ctx, func() error {
			return repo.RemoveCollaborator(ctx, login)
		})
		if err != nil {
			observability.LockdownRemovalFailures.WithLabelValues("collaborator").Inc()
			logsCollector.AddError(fmt.Errorf("not able to remove collaborator %s from %s: %w", login, repo.FullName(), err))
			result.FailedUsers = append(result.FailedUsers, login)
			continue
		}
		result.RevokedUsers = append(result.RevokedUsers, login)
		logsCollector.AddInfo(map[string]any{"repository": repo.FullName(), "user": login},
			"lockdown removed collaborator")
	}

	return result
}

// withRetries runs fn up to the configured attempt count, doubling the delay
// between attempts.
func (s *RepositoryLockdownSystem) withRetries(ctx context.Context, fn func() error) error {
	delay := retryBaseDelay
	var err error
	for attempt := 0; attempt < s.attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
		if err = fn(); err == nil {
			return nil
		}
	}
	return err
}

func isAdministrator(administrators map[int64]*business.OrganizationAdministrator, collaborator *business.Collaborator) bool {
	if _, ok := administrators[collaborator.ID()]; ok {
		return true
	}
	// id can be missing on partial entities, fall back to the login
	for _, administrator := range administrators {
		if strings.EqualFold(administrator.Login, collaborator.Login()) {
			return true
		}
	}
	return false
}
