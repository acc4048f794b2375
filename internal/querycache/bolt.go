package querycache

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"
)

// BoltProvider persists one snapshot per organization in a bbolt file.
// Bucket: "org_snapshots" -> key: organization name, value: JSON-encoded
// OrganizationSnapshot. Reads scan every organization; the row volume of an
// org portal stays small enough that a full scan is cheaper than secondary
// indexes.
type BoltProvider struct {
	db *bbolt.DB
}

const snapshotBucket = "org_snapshots"

func NewBoltProvider(path string) (*BoltProvider, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(snapshotBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltProvider{db: db}, nil
}

func (p *BoltProvider) Close() error {
	return p.db.Close()
}

func (p *BoltProvider) Capabilities() Capabilities {
	return Capabilities{
		OrganizationMembership:  true,
		TeamMembership:          true,
		TeamPermissions:         true,
		RepositoryCollaborators: true,
	}
}

func (p *BoltProvider) ReplaceOrganizationRows(ctx context.Context, orgName string, snapshot OrganizationSnapshot) error {
	return p.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(snapshotBucket))
		val, err := json.Marshal(snapshot)
		if err != nil {
			return err
		}
		return bucket.Put([]byte(orgName), val)
	})
}

// forEachSnapshot walks every stored organization snapshot.
func (p *BoltProvider) forEachSnapshot(fn func(orgName string, snapshot OrganizationSnapshot) error) error {
	return p.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(snapshotBucket))
		return bucket.ForEach(func(k, v []byte) error {
			var snapshot OrganizationSnapshot
			if err := json.Unmarshal(v, &snapshot); err != nil {
				return fmt.Errorf("not able to decode snapshot of organization %s: %v", string(k), err)
			}
			return fn(string(k), snapshot)
		})
	})
}

func (p *BoltProvider) UserOrganizations(ctx context.Context, userID int64) ([]OrganizationMembershipRow, error) {
	rows := []OrganizationMembershipRow{}
	err := p.forEachSnapshot(func(orgName string, snapshot OrganizationSnapshot) error {
		for _, row := range snapshot.Memberships {
			if row.UserID == userID {
				rows = append(rows, row)
			}
		}
		return nil
	})
	return rows, err
}

func (p *BoltProvider) UserTeams(ctx context.Context, userID int64) ([]TeamMembershipRow, error) {
	rows := []TeamMembershipRow{}
	err := p.forEachSnapshot(func(orgName string, snapshot OrganizationSnapshot) error {
		for _, row := range snapshot.TeamMembers {
			if row.UserID == userID {
				rows = append(rows, row)
			}
		}
		return nil
	})
	return rows, err
}

func (p *BoltProvider) TeamsPermissions(ctx context.Context, teamIDs []int64) ([]TeamPermissionRow, error) {
	wanted := make(map[int64]struct{}, len(teamIDs))
	for _, id := range teamIDs {
		wanted[id] = struct{}{}
	}

	rows := []TeamPermissionRow{}
	err := p.forEachSnapshot(func(orgName string, snapshot OrganizationSnapshot) error {
		for _, row := range snapshot.TeamGrants {
			if _, ok := wanted[row.TeamID]; ok {
				rows = append(rows, row)
			}
		}
		return nil
	})
	return rows, err
}

func (p *BoltProvider) UserCollaboratorRepositories(ctx context.Context, userID int64) ([]RepositoryCollaboratorRow, error) {
	rows := []RepositoryCollaboratorRow{}
	err := p.forEachSnapshot(func(orgName string, snapshot OrganizationSnapshot) error {
		for _, row := range snapshot.Collaborators {
			if row.UserID == userID {
				rows = append(rows, row)
			}
		}
		return nil
	})
	return rows, err
}
