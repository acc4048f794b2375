package business

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/orgportal-project/orgportal/internal/githubcache"
)

const userLookupStaleSeconds = 24 * 3600

/*
 * Operations is the shared context every business entity hangs off: the
 * cached GitHub client and the organization registry. The registry is
 * populated at startup from configuration and read-only afterwards; there
 * is no ambient global.
 */
type Operations struct {
	cached   *githubcache.CachedClient
	registry map[string]*Organization // key is the lowercased organization name
}

func NewOperations(cached *githubcache.CachedClient) *Operations {
	return &Operations{
		cached:   cached,
		registry: map[string]*Organization{},
	}
}

// AddOrganization registers a managed organization. Names are
// case-insensitive-unique within the registry.
func (o *Operations) AddOrganization(settings *OrganizationSettings) (*Organization, error) {
	key := strings.ToLower(settings.Name)
	if _, exists := o.registry[key]; exists {
		return nil, &InvalidStateError{Reason: "organization " + settings.Name + " registered twice"}
	}
	org := newOrganization(o, settings)
	o.registry[key] = org
	return org, nil
}

// Organization looks up a managed organization by name, case-insensitively.
func (o *Operations) Organization(name string) (*Organization, bool) {
	org, ok := o.registry[strings.ToLower(name)]
	return org, ok
}

// Organizations returns all managed organizations sorted case-insensitively
// by name.
func (o *Operations) Organizations() []*Organization {
	orgs := make([]*Organization, 0, len(o.registry))
	for _, org := range o.registry {
		orgs = append(orgs, org)
	}
	sort.Slice(orgs, func(i, j int) bool {
		return strings.ToLower(orgs[i].Name()) < strings.ToLower(orgs[j].Name())
	})
	return orgs
}

// Cached exposes the cached GitHub client for collaborating packages.
func (o *Operations) Cached() *githubcache.CachedClient {
	return o.cached
}

// LookupUser resolves a GitHub login to its numeric user id.
func (o *Operations) LookupUser(ctx context.Context, login string) (int64, error) {
	merged := githubcache.MergeOptions(githubcache.CacheOptions{
		MaxAgeSeconds:     userLookupStaleSeconds,
		BackgroundRefresh: true,
	}, nil)

	body, err := o.cached.GetJSON(ctx, "/users/"+login, "", merged)
	if err != nil {
		return 0, fmt.Errorf("not able to look up user %s: %w", login, err)
	}

	var response struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return 0, fmt.Errorf("not able to decode user %s: %v", login, err)
	}
	if response.ID == 0 {
		return 0, &InvalidStateError{Reason: "user " + login + " has no id"}
	}
	return response.ID, nil
}
