package aggregator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/orgportal-project/orgportal/internal/business"
	"github.com/orgportal-project/orgportal/internal/github"
	"github.com/orgportal-project/orgportal/internal/githubcache"
	"github.com/orgportal-project/orgportal/internal/querycache"
)

// AggregatorMockClient serves canned per-endpoint responses.
type AggregatorMockClient struct {
	responses map[string][]byte
	apiErrors map[string]error
	calls     map[string]int
}

var _ github.Client = &AggregatorMockClient{}

func NewAggregatorMockClient() *AggregatorMockClient {
	return &AggregatorMockClient{
		responses: map[string][]byte{},
		apiErrors: map[string]error{},
		calls:     map[string]int{},
	}
}

func (m *AggregatorMockClient) QueryGraphQLAPI(ctx context.Context, query string, variables map[string]interface{}) ([]byte, error) {
	return []byte("{}"), nil
}

func (m *AggregatorMockClient) CallRestAPI(ctx context.Context, endpoint, parameters, method string, body map[string]interface{}, githubToken *string) ([]byte, error) {
	m.calls[endpoint]++
	if err, ok := m.apiErrors[endpoint]; ok {
		return nil, err
	}
	if response, ok := m.responses[endpoint]; ok {
		return response, nil
	}
	return nil, &github.APIError{Status: 404, Endpoint: endpoint, Message: "Not Found"}
}

func (m *AggregatorMockClient) GetAccessToken(ctx context.Context) (string, error) {
	return "mock-token", nil
}

func (m *AggregatorMockClient) CreateJWT() (string, error) {
	return "mock-jwt", nil
}

func (m *AggregatorMockClient) GetAppSlug() string {
	return "mock-app"
}

// StubGraphManager is the canned legacy fallback.
type StubGraphManager struct {
	statuses        map[string]string
	statusesErr     error
	memberships     []querycache.TeamMembershipRow
	records         []*RepositoryPermissionRecord
	reposCallCount  int
	statusCallCount int
}

func (s *StubGraphManager) GetOrganizationStatusesByName(ctx context.Context, userID int64, login string) (map[string]string, error) {
	s.statusCallCount++
	return s.statuses, s.statusesErr
}

func (s *StubGraphManager) GetTeamMemberships(ctx context.Context, userID int64, login string) ([]querycache.TeamMembershipRow, error) {
	return s.memberships, nil
}

func (s *StubGraphManager) GetUserReposByTeamMemberships(ctx context.Context, userID int64, login string) ([]*RepositoryPermissionRecord, error) {
	s.reposCallCount++
	return s.records, nil
}

func newTestOps(client github.Client, names ...string) *business.Operations {
	ops := business.NewOperations(githubcache.NewCachedClient(client, githubcache.NewMemoryStore(128, time.Minute)))
	for _, name := range names {
		if _, err := ops.AddOrganization(&business.OrganizationSettings{Name: name}); err != nil {
			panic(err)
		}
	}
	return ops
}

func seededProvider(t *testing.T, orgName string, snapshot querycache.OrganizationSnapshot) *querycache.MemoryProvider {
	t.Helper()
	provider := querycache.NewMemoryProvider()
	assert.NoError(t, provider.ReplaceOrganizationRows(context.TODO(), orgName, snapshot))
	return provider
}

func TestOrganizations(t *testing.T) {
	ctx := context.TODO()

	t.Run("happy path: membership rows partition and sort the registry", func(t *testing.T) {
		ops := newTestOps(NewAggregatorMockClient(), "Zebra", "alpha", "Beta", "gamma")
		provider := seededProvider(t, "stub", querycache.OrganizationSnapshot{
			Memberships: []querycache.OrganizationMembershipRow{
				{OrgName: "Zebra", UserID: 1, Login: "alice", Role: "member"},
				{OrgName: "alpha", UserID: 1, Login: "alice", Role: "admin"},
				{OrgName: "gamma", UserID: 2, Login: "bob", Role: "member"},
			},
		})

		userContext := NewUserContext(ops, provider, &StubGraphManager{}, 1, "alice")
		view, err := userContext.Organizations(ctx)
		assert.NoError(t, err)

		assert.Len(t, view.Admin, 1)
		assert.Equal(t, "alpha", view.Admin[0].Name())
		assert.Len(t, view.Member, 1)
		assert.Equal(t, "Zebra", view.Member[0].Name())

		available := []string{}
		for _, org := range view.Available {
			available = append(available, org.Name())
		}
		assert.Equal(t, []string{"Beta", "gamma"}, available)
	})

	t.Run("happy path: missing capability selects the graph manager", func(t *testing.T) {
		ops := newTestOps(NewAggregatorMockClient(), "myorg")
		graph := &StubGraphManager{statuses: map[string]string{"myorg": "admin"}}

		userContext := NewUserContext(ops, querycache.NoneClient{}, graph, 1, "alice")
		view, err := userContext.Organizations(ctx)
		assert.NoError(t, err)

		assert.Equal(t, 1, graph.statusCallCount)
		assert.Len(t, view.Admin, 1)
		assert.Empty(t, view.Available)
	})

	t.Run("error path: unrecognized role is a hard error", func(t *testing.T) {
		ops := newTestOps(NewAggregatorMockClient(), "myorg")
		provider := seededProvider(t, "stub", querycache.OrganizationSnapshot{
			Memberships: []querycache.OrganizationMembershipRow{
				{OrgName: "myorg", UserID: 1, Login: "alice", Role: "billing_manager"},
			},
		})

		userContext := NewUserContext(ops, provider, &StubGraphManager{}, 1, "alice")
		_, err := userContext.Organizations(ctx)
		var unrecognized *business.UnrecognizedValueError
		assert.ErrorAs(t, err, &unrecognized)
	})
}

func TestTeams(t *testing.T) {
	ctx := context.TODO()

	t.Run("happy path: teams split by role", func(t *testing.T) {
		mockClient := NewAggregatorMockClient()
		mockClient.responses["/orgs/myorg/teams/platform"] = []byte(`{"id":5,"name":"platform","slug":"platform"}`)
		mockClient.responses["/orgs/myorg/teams/tools"] = []byte(`{"id":6,"name":"tools","slug":"tools"}`)

		ops := newTestOps(mockClient, "myorg")
		provider := seededProvider(t, "myorg", querycache.OrganizationSnapshot{
			TeamMembers: []querycache.TeamMembershipRow{
				{OrgName: "myorg", TeamID: 5, TeamName: "platform", TeamSlug: "platform", UserID: 1, Login: "alice", Role: "maintainer"},
				{OrgName: "myorg", TeamID: 6, TeamName: "tools", TeamSlug: "tools", UserID: 1, Login: "alice", Role: "member"},
			},
		})

		userContext := NewUserContext(ops, provider, &StubGraphManager{}, 1, "alice")
		view, err := userContext.Teams(ctx)
		assert.NoError(t, err)

		assert.Len(t, view.Maintainer, 1)
		assert.Equal(t, "platform", view.Maintainer[0].Slug())
		assert.Len(t, view.Member, 1)
		assert.Equal(t, "tools", view.Member[0].Slug())
	})

	t.Run("edge case: a deleted team is dropped from the view", func(t *testing.T) {
		mockClient := NewAggregatorMockClient()
		mockClient.responses["/orgs/myorg/teams/alive"] = []byte(`{"id":5,"name":"alive","slug":"alive"}`)
		// /orgs/myorg/teams/ghost: mock default is 404

		ops := newTestOps(mockClient, "myorg")
		provider := seededProvider(t, "myorg", querycache.OrganizationSnapshot{
			TeamMembers: []querycache.TeamMembershipRow{
				{OrgName: "myorg", TeamID: 5, TeamName: "alive", TeamSlug: "alive", UserID: 1, Login: "alice", Role: "member"},
				{OrgName: "myorg", TeamID: 9, TeamName: "ghost", TeamSlug: "ghost", UserID: 1, Login: "alice", Role: "member"},
			},
		})

		userContext := NewUserContext(ops, provider, &StubGraphManager{}, 1, "alice")
		view, err := userContext.Teams(ctx)
		assert.NoError(t, err)
		assert.Len(t, view.Member, 1)
		assert.Equal(t, "alive", view.Member[0].Slug())
	})

	t.Run("edge case: a non-404 detail failure keeps the team", func(t *testing.T) {
		mockClient := NewAggregatorMockClient()
		mockClient.apiErrors["/orgs/myorg/teams/flaky"] = errors.New("transport exploded")

		ops := newTestOps(mockClient, "myorg")
		provider := seededProvider(t, "myorg", querycache.OrganizationSnapshot{
			TeamMembers: []querycache.TeamMembershipRow{
				{OrgName: "myorg", TeamID: 5, TeamName: "flaky", TeamSlug: "flaky", UserID: 1, Login: "alice", Role: "member"},
			},
		})

		userContext := NewUserContext(ops, provider, &StubGraphManager{}, 1, "alice")
		view, err := userContext.Teams(ctx)
		assert.NoError(t, err)
		assert.Len(t, view.Member, 1)
		assert.Equal(t, "flaky", view.Member[0].Slug())
	})

	t.Run("error path: unrecognized team role", func(t *testing.T) {
		mockClient := NewAggregatorMockClient()
		mockClient.responses["/orgs/myorg/teams/platform"] = []byte(`{"id":5,"name":"platform","slug":"platform"}`)

		ops := newTestOps(mockClient, "myorg")
		provider := seededProvider(t, "myorg", querycache.OrganizationSnapshot{
			TeamMembers: []querycache.TeamMembershipRow{
				{OrgName: "myorg", TeamID: 5, TeamName: "platform", TeamSlug: "platform", UserID: 1, Login: "alice", Role: "overlord"},
			},
		})

		userContext := NewUserContext(ops, provider, &StubGraphManager{}, 1, "alice")
		_, err := userContext.Teams(ctx)
		var unrecognized *business.UnrecognizedValueError
		assert.ErrorAs(t, err, &unrecognized)
	})
}

func TestRepositoryPermissions(t *testing.T) {
	ctx := context.TODO()

	snapshot := querycache.OrganizationSnapshot{
		TeamMembers: []querycache.TeamMembershipRow{
			{OrgName: "myorg", TeamID: 5, TeamName: "platform", UserID: 1, Login: "alice", Role: "member"},
			{OrgName: "myorg", TeamID: 6, TeamName: "tools", UserID: 1, Login: "alice", Role: "member"},
		},
		TeamGrants: []querycache.TeamPermissionRow{
			{OrgName: "myorg", TeamID: 5, TeamName: "platform", RepositoryID: 100, RepositoryName: "api", Permission: "pull"},
			{OrgName: "myorg", TeamID: 6, TeamName: "tools", RepositoryID: 100, RepositoryName: "api", Permission: "push"},
			{OrgName: "myorg", TeamID: 6, TeamName: "tools", RepositoryID: 101, RepositoryName: "docs", Permission: "pull"},
		},
		Collaborators: []querycache.RepositoryCollaboratorRow{
			{OrgName: "myorg", RepositoryID: 100, RepositoryName: "api", UserID: 1, Login: "alice", Permission: "admin"},
			{OrgName: "myorg", RepositoryID: 102, RepositoryName: "sandbox", UserID: 1, Login: "alice", Permission: "push"},
		},
	}

	t.Run("happy path: one record per repository, best covers every source", func(t *testing.T) {
		ops := newTestOps(NewAggregatorMockClient(), "myorg")
		provider := seededProvider(t, "myorg", snapshot)

		userContext := NewUserContext(ops, provider, &StubGraphManager{}, 1, "alice")
		records, err := userContext.RepositoryPermissions(ctx)
		assert.NoError(t, err)

		assert.Len(t, records, 3)

		byName := map[string]*RepositoryPermissionRecord{}
		for _, record := range records {
			byName[record.RepositoryName] = record
		}

		api := byName["api"]
		assert.Equal(t, business.PermissionAdmin, api.BestComputedPermission)
		assert.True(t, api.HasCollaboratorPermission)
		assert.Len(t, api.TeamPermissions, 2)

		docs := byName["docs"]
		assert.Equal(t, business.PermissionPull, docs.BestComputedPermission)
		assert.False(t, docs.HasCollaboratorPermission)

		sandbox := byName["sandbox"]
		assert.Equal(t, business.PermissionPush, sandbox.BestComputedPermission)
		assert.Empty(t, sandbox.TeamPermissions)
	})

	t.Run("happy path: best is never below any contributor", func(t *testing.T) {
		ops := newTestOps(NewAggregatorMockClient(), "myorg")
		provider := seededProvider(t, "myorg", snapshot)

		userContext := NewUserContext(ops, provider, &StubGraphManager{}, 1, "alice")
		records, err := userContext.RepositoryPermissions(ctx)
		assert.NoError(t, err)

		for _, record := range records {
			for _, grant := range record.TeamPermissions {
				permission, err := business.ParseRepositoryPermission(grant.Permission)
				assert.NoError(t, err)
				assert.False(t, business.IsPermissionBetterThan(record.BestComputedPermission, permission))
			}
			if record.HasCollaboratorPermission {
				assert.False(t, business.IsPermissionBetterThan(record.BestComputedPermission, record.CollaboratorPermission))
			}
		}
	})

	t.Run("happy path: output is sorted by repository name", func(t *testing.T) {
		ops := newTestOps(NewAggregatorMockClient(), "myorg")
		provider := seededProvider(t, "myorg", snapshot)

		userContext := NewUserContext(ops, provider, &StubGraphManager{}, 1, "alice")
		records, err := userContext.RepositoryPermissions(ctx)
		assert.NoError(t, err)

		names := []string{}
		for _, record := range records {
			names = append(names, record.RepositoryName)
		}
		assert.Equal(t, []string{"api", "docs", "sandbox"}, names)
	})

	t.Run("happy path: missing team capabilities select the graph manager", func(t *testing.T) {
		ops := newTestOps(NewAggregatorMockClient(), "myorg")
		graph := &StubGraphManager{
			records: []*RepositoryPermissionRecord{
				{OrgName: "myorg", RepositoryID: 100, RepositoryName: "api", BestComputedPermission: business.PermissionPush},
			},
		}

		userContext := NewUserContext(ops, querycache.NoneClient{}, graph, 1, "alice")
		records, err := userContext.RepositoryPermissions(ctx)
		assert.NoError(t, err)

		assert.Equal(t, 1, graph.reposCallCount)
		assert.Len(t, records, 1)
		assert.Equal(t, business.PermissionPush, records[0].BestComputedPermission)
	})

	t.Run("error path: unrecognized permission value in a grant row", func(t *testing.T) {
		ops := newTestOps(NewAggregatorMockClient(), "myorg")
		provider := seededProvider(t, "myorg", querycache.OrganizationSnapshot{
			TeamMembers: []querycache.TeamMembershipRow{
				{OrgName: "myorg", TeamID: 5, UserID: 1, Role: "member"},
			},
			TeamGrants: []querycache.TeamPermissionRow{
				{OrgName: "myorg", TeamID: 5, RepositoryID: 100, RepositoryName: "api", Permission: "overlord"},
			},
		})

		userContext := NewUserContext(ops, provider, &StubGraphManager{}, 1, "alice")
		_, err := userContext.RepositoryPermissions(ctx)
		var unrecognized *business.UnrecognizedValueError
		assert.ErrorAs(t, err, &unrecognized)
	})
}

func TestGetAggregatedOverview(t *testing.T) {
	ctx := context.TODO()

	t.Run("happy path: all three sections populate", func(t *testing.T) {
		mockClient := NewAggregatorMockClient()
		mockClient.responses["/orgs/myorg/teams/platform"] = []byte(`{"id":5,"name":"platform","slug":"platform"}`)

		ops := newTestOps(mockClient, "myorg")
		provider := seededProvider(t, "myorg", querycache.OrganizationSnapshot{
			Memberships: []querycache.OrganizationMembershipRow{
				{OrgName: "myorg", UserID: 1, Login: "alice", Role: "member"},
			},
			TeamMembers: []querycache.TeamMembershipRow{
				{OrgName: "myorg", TeamID: 5, TeamName: "platform", TeamSlug: "platform", UserID: 1, Login: "alice", Role: "member"},
			},
			TeamGrants: []querycache.TeamPermissionRow{
				{OrgName: "myorg", TeamID: 5, RepositoryID: 100, RepositoryName: "api", Permission: "push"},
			},
		})

		userContext := NewUserContext(ops, provider, &StubGraphManager{}, 1, "alice")
		overview := userContext.GetAggregatedOverview(ctx)

		assert.Len(t, overview.Organizations.Member, 1)
		assert.Len(t, overview.Teams.Member, 1)
		assert.Len(t, overview.Repositories, 1)
	})

	t.Run("edge case: one failing section degrades to its empty default", func(t *testing.T) {
		ops := newTestOps(NewAggregatorMockClient(), "myorg")
		// unrecognized role poisons the organizations branch only
		provider := seededProvider(t, "myorg", querycache.OrganizationSnapshot{
			Memberships: []querycache.OrganizationMembershipRow{
				{OrgName: "myorg", UserID: 1, Login: "alice", Role: "overlord"},
			},
			TeamGrants: []querycache.TeamPermissionRow{},
		})

		userContext := NewUserContext(ops, provider, &StubGraphManager{}, 1, "alice")
		overview := userContext.GetAggregatedOverview(ctx)

		assert.Empty(t, overview.Organizations.Member)
		assert.Empty(t, overview.Organizations.Admin)
		assert.NotNil(t, overview.Teams)
		assert.NotNil(t, overview.Repositories)
	})
}

func TestGetAggregatedOrganizationOverview(t *testing.T) {
	ctx := context.TODO()

	mockClient := NewAggregatorMockClient()
	mockClient.responses["/orgs/OrgA/teams/platform"] = []byte(`{"id":5,"name":"platform","slug":"platform"}`)
	mockClient.responses["/orgs/OrgB/teams/tools"] = []byte(`{"id":6,"name":"tools","slug":"tools"}`)

	ops := newTestOps(mockClient, "OrgA", "OrgB")
	provider := querycache.NewMemoryProvider()
	assert.NoError(t, provider.ReplaceOrganizationRows(ctx, "OrgA", querycache.OrganizationSnapshot{
		TeamMembers: []querycache.TeamMembershipRow{
			{OrgName: "OrgA", TeamID: 5, TeamName: "platform", TeamSlug: "platform", UserID: 1, Login: "alice", Role: "member"},
		},
	}))
	assert.NoError(t, provider.ReplaceOrganizationRows(ctx, "OrgB", querycache.OrganizationSnapshot{
		TeamMembers: []querycache.TeamMembershipRow{
			{OrgName: "OrgB", TeamID: 6, TeamName: "tools", TeamSlug: "tools", UserID: 1, Login: "alice", Role: "member"},
		},
	}))

	userContext := NewUserContext(ops, provider, &StubGraphManager{}, 1, "alice")
	overview := userContext.GetAggregatedOrganizationOverview(ctx, "orga")

	assert.Len(t, overview.Teams.Member, 1)
	assert.Equal(t, "platform", overview.Teams.Member[0].Slug())
}
