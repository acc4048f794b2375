package querycache

import (
	"context"
	"sync"
)

// MemoryProvider keeps the row snapshots in process memory. It is the
// development and test provider, and the backing store behind the in-process
// refresher when no durable provider is configured.
type MemoryProvider struct {
	mu        sync.RWMutex
	snapshots map[string]OrganizationSnapshot
}

func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		snapshots: map[string]OrganizationSnapshot{},
	}
}

func (p *MemoryProvider) Capabilities() Capabilities {
	return Capabilities{
		OrganizationMembership:  true,
		TeamMembership:          true,
		TeamPermissions:         true,
		RepositoryCollaborators: true,
	}
}

func (p *MemoryProvider) ReplaceOrganizationRows(ctx context.Context, orgName string, snapshot OrganizationSnapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshots[orgName] = snapshot
	return nil
}

func (p *MemoryProvider) UserOrganizations(ctx context.Context, userID int64) ([]OrganizationMembershipRow, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	rows := []OrganizationMembershipRow{}
	for _, snapshot := range p.snapshots {
		for _, row := range snapshot.Memberships {
			if row.UserID == userID {
				rows = append(rows, row)
			}
		}
	}
	return rows, nil
}

func (p *MemoryProvider) UserTeams(ctx context.Context, userID int64) ([]TeamMembershipRow, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	rows := []TeamMembershipRow{}
	for _, snapshot := range p.snapshots {
		for _, row := range snapshot.TeamMembers {
			if row.UserID == userID {
				rows = append(rows, row)
			}
		}
	}
	return rows, nil
}

func (p *MemoryProvider) TeamsPermissions(ctx context.Context, teamIDs []int64) ([]TeamPermissionRow, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	wanted := make(map[int64]struct{}, len(teamIDs))
	for _, id := range teamIDs {
		wanted[id] = struct{}{}
	}

	rows := []TeamPermissionRow{}
	for _, snapshot := range p.snapshots {
		for _, row := range snapshot.TeamGrants {
			if _, ok := wanted[row.TeamID]; ok {
				rows = append(rows, row)
			}
		}
	}
	return rows, nil
}

func (p *MemoryProvider) UserCollaboratorRepositories(ctx context.Context, userID int64) ([]RepositoryCollaboratorRow, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	rows := []RepositoryCollaboratorRow{}
	for _, snapshot := range p.snapshots {
		for _, row := range snapshot.Collaborators {
			if row.UserID == userID {
				rows = append(rows, row)
			}
		}
	}
	return rows, nil
}
