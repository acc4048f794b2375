package lockdown

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/orgportal-project/orgportal/internal/business"
	"github.com/orgportal-project/orgportal/internal/config"
	"github.com/orgportal-project/orgportal/internal/github"
	"github.com/orgportal-project/orgportal/internal/githubcache"
	"github.com/orgportal-project/orgportal/internal/observability"
)

// LockdownMockClient serves canned GET responses and records DELETE calls.
// Endpoints listed in failing always fail.
type LockdownMockClient struct {
	responses map[string][]byte
	failing   map[string]bool
	deletes   []string
	calls     map[string]int
}

var _ github.Client = &LockdownMockClient{}

func NewLockdownMockClient() *LockdownMockClient {
	return &LockdownMockClient{
		responses: map[string][]byte{},
		failing:   map[string]bool{},
		deletes:   []string{},
		calls:     map[string]int{},
	}
}

func (m *LockdownMockClient) QueryGraphQLAPI(ctx context.Context, query string, variables map[string]interface{}) ([]byte, error) {
	return []byte("{}"), nil
}

func (m *LockdownMockClient) CallRestAPI(ctx context.Context, endpoint, parameters, method string, body map[string]interface{}, githubToken *string) ([]byte, error) {
	m.calls[endpoint]++
	if m.failing[endpoint] {
		return nil, &github.APIError{Status: 500, Endpoint: endpoint, Message: "boom"}
	}
	if method == "DELETE" {
		m.deletes = append(m.deletes, endpoint)
		return []byte(`{}`), nil
	}
	if response, ok := m.responses[endpoint]; ok {
		return response, nil
	}
	return nil, &github.APIError{Status: 404, Endpoint: endpoint, Message: "Not Found"}
}

func (m *LockdownMockClient) GetAccessToken(ctx context.Context) (string, error) {
	return "mock-token", nil
}

func (m *LockdownMockClient) CreateJWT() (string, error) {
	return "mock-jwt", nil
}

func (m *LockdownMockClient) GetAppSlug() string {
	return "mock-app"
}

func newLockdownFixture(t *testing.T, mockClient *LockdownMockClient) (*business.Operations, *business.Repository) {
	t.Helper()
	cached := githubcache.NewCachedClient(mockClient, githubcache.NewMemoryStore(128, time.Minute))
	ops := business.NewOperations(cached)
	org, err := ops.AddOrganization(&business.OrganizationSettings{
		Name:         "myorg",
		SpecialTeams: business.SpecialTeams{Admin: []int64{10}},
	})
	assert.NoError(t, err)
	return ops, org.Repository("fresh")
}

func TestLockdownRepository(t *testing.T) {
	ctx := context.TODO()

	// keep the retry loop from sleeping in tests
	previousAttempts := config.Config.LockdownRemovalAttempts
	config.Config.LockdownRemovalAttempts = 1
	defer func() { config.Config.LockdownRemovalAttempts = previousAttempts }()

	teamsResponse := []byte(`[
		{"id":10,"name":"admins","slug":"admins","permissions":{"admin":true,"push":true,"pull":true}},
		{"id":20,"name":"interlopers","slug":"interlopers","permissions":{"admin":false,"push":true,"pull":true}}
	]`)
	collaboratorsResponse := []byte(`[
		{"id":1,"login":"alice"},
		{"id":2,"login":"mallory"}
	]`)
	ownersResponse := []byte(`[{"id":1,"login":"alice"}]`)

	t.Run("happy path: special teams and administrators survive", func(t *testing.T) {
		mockClient := NewLockdownMockClient()
		mockClient.responses["/repos/myorg/fresh/teams"] = teamsResponse
		mockClient.responses["/repos/myorg/fresh/collaborators"] = collaboratorsResponse
		mockClient.responses["/orgs/myorg/members"] = ownersResponse

		ops, repo := newLockdownFixture(t, mockClient)
		system := NewRepositoryLockdownSystem(ops, false)
		logsCollector := observability.NewLogCollection()

		result := system.LockdownRepository(ctx, logsCollector, repo)

		assert.Equal(t, []string{"admins"}, result.KeptTeams)
		assert.Equal(t, []string{"interlopers"}, result.RevokedTeams)
		assert.Equal(t, []string{"alice"}, result.KeptUsers)
		assert.Equal(t, []string{"mallory"}, result.RevokedUsers)
		assert.False(t, logsCollector.HasErrors())

		assert.Contains(t, mockClient.deletes, "/orgs/myorg/teams/interlopers/repos/myorg/fresh")
		assert.Contains(t, mockClient.deletes, "/repos/myorg/fresh/collaborators/mallory")
		assert.NotContains(t, mockClient.deletes, "/orgs/myorg/teams/admins/repos/myorg/fresh")
		assert.NotContains(t, mockClient.deletes, "/repos/myorg/fresh/collaborators/alice")
	})

	t.Run("edge case: only broad access teams are exempt, not sudoers", func(t *testing.T) {
		mockClient := NewLockdownMockClient()
		mockClient.responses["/repos/myorg/fresh/teams"] = []byte(`[
			{"id":10,"name":"admins","slug":"admins","permissions":{"admin":true,"push":true,"pull":true}},
			{"id":30,"name":"sudoers","slug":"sudoers","permissions":{"push":true,"pull":true}}
		]`)
		mockClient.responses["/repos/myorg/fresh/collaborators"] = []byte(`[]`)
		mockClient.responses["/orgs/myorg/members"] = ownersResponse

		cached := githubcache.NewCachedClient(mockClient, githubcache.NewMemoryStore(128, time.Minute))
		ops := business.NewOperations(cached)
		org, err := ops.AddOrganization(&business.OrganizationSettings{
			Name:         "myorg",
			SpecialTeams: business.SpecialTeams{Admin: []int64{10}, Sudo: []int64{30}},
		})
		assert.NoError(t, err)

		system := NewRepositoryLockdownSystem(ops, false)
		logsCollector := observability.NewLogCollection()

		result := system.LockdownRepository(ctx, logsCollector, org.Repository("fresh"))

		assert.Equal(t, []string{"admins"}, result.KeptTeams)
		assert.Equal(t, []string{"sudoers"}, result.RevokedTeams)
		assert.Contains(t, mockClient.deletes, "/orgs/myorg/teams/sudoers/repos/myorg/fresh")
	})

	t.Run("edge case: one failed removal never aborts the sweep", func(t *testing.T) {
		mockClient := NewLockdownMockClient()
		mockClient.responses["/repos/myorg/fresh/teams"] = []byte(`[
			{"id":20,"name":"first","slug":"first","permissions":{"push":true,"pull":true}},
			{"id":21,"name":"second","slug":"second","permissions":{"push":true,"pull":true}}
		]`)
		mockClient.responses["/repos/myorg/fresh/collaborators"] = collaboratorsResponse
		mockClient.responses["/orgs/myorg/members"] = ownersResponse
		mockClient.failing["/orgs/myorg/teams/first/repos/myorg/fresh"] = true

		ops, repo := newLockdownFixture(t, mockClient)
		system := NewRepositoryLockdownSystem(ops, false)
		logsCollector := observability.NewLogCollection()

		result := system.LockdownRepository(ctx, logsCollector, repo)

		assert.Equal(t, []string{"first"}, result.FailedTeams)
		assert.Equal(t, []string{"second"}, result.RevokedTeams)
		assert.Equal(t, []string{"mallory"}, result.RevokedUsers)
		assert.True(t, logsCollector.HasErrors())
	})

	t.Run("edge case: failed listings leave an empty but summarized sweep", func(t *testing.T) {
		mockClient := NewLockdownMockClient()
		mockClient.failing["/repos/myorg/fresh/teams"] = true
		mockClient.failing["/repos/myorg/fresh/collaborators"] = true
		mockClient.responses["/orgs/myorg/members"] = ownersResponse

		ops, repo := newLockdownFixture(t, mockClient)
		system := NewRepositoryLockdownSystem(ops, false)
		logsCollector := observability.NewLogCollection()

		result := system.LockdownRepository(ctx, logsCollector, repo)

		assert.Empty(t, result.RevokedTeams)
		assert.Empty(t, result.RevokedUsers)
		assert.True(t, logsCollector.HasErrors())
	})

	t.Run("happy path: dry run removes nothing", func(t *testing.T) {
		mockClient := NewLockdownMockClient()
		mockClient.responses["/repos/myorg/fresh/teams"] = teamsResponse
		mockClient.responses["/repos/myorg/fresh/collaborators"] = collaboratorsResponse
		mockClient.responses["/orgs/myorg/members"] = ownersResponse

		ops, repo := newLockdownFixture(t, mockClient)
		system := NewRepositoryLockdownSystem(ops, true)
		logsCollector := observability.NewLogCollection()

		result := system.LockdownRepository(ctx, logsCollector, repo)

		assert.Equal(t, []string{"interlopers"}, result.RevokedTeams)
		assert.Equal(t, []string{"mallory"}, result.RevokedUsers)
		assert.Empty(t, mockClient.deletes)
	})
}

func TestWithRetries(t *testing.T) {
	t.Run("happy path: a transient failure is retried", func(t *testing.T) {
		previousAttempts := config.Config.LockdownRemovalAttempts
		config.Config.LockdownRemovalAttempts = 3
		defer func() { config.Config.LockdownRemovalAttempts = previousAttempts }()

		system := NewRepositoryLockdownSystem(nil, false)
		attempts := 0
		err := system.withRetries(context.TODO(), func() error {
			attempts++
			if attempts < 2 {
				return &github.APIError{Status: 500, Endpoint: "x", Message: "boom"}
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 2, attempts)
	})

	t.Run("edge case: a canceled context stops the retries", func(t *testing.T) {
		previousAttempts := config.Config.LockdownRemovalAttempts
		config.Config.LockdownRemovalAttempts = 3
		defer func() { config.Config.LockdownRemovalAttempts = previousAttempts }()

		ctx, cancel := context.WithCancel(context.TODO())
		cancel()

		system := NewRepositoryLockdownSystem(nil, false)
		attempts := 0
		err := system.withRetries(ctx, func() error {
			attempts++
			return &github.APIError{Status: 500, Endpoint: "x", Message: "boom"}
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, attempts)
	})
}
